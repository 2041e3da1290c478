package erasure

import (
	"golang.org/x/sync/errgroup"

	"github.com/pkg/errors"
)

// Encoder implements a systematic (DataShards, TotalShards) Reed-Solomon
// code over GF(2^8): the first DataShards output shards are the input
// split verbatim, the remaining TotalShards-DataShards are parity
// computed from a Vandermonde matrix, so any DataShards of the
// TotalShards outputs (in any combination of data/parity) suffice to
// recover the original input.
type Encoder struct {
	DataShards  int
	TotalShards int
	matrix      [][]byte // TotalShards x DataShards generator matrix
}

// NewEncoder builds an encoder for a (dataShards, totalShards) code.
// CT-RBC uses dataShards = t+1 and totalShards = n (spec.md §3, §4.3).
func NewEncoder(dataShards, totalShards int) (*Encoder, error) {
	if dataShards <= 0 || totalShards <= dataShards {
		return nil, errors.New("erasure: need 0 < dataShards < totalShards")
	}
	if totalShards > 255 {
		return nil, errors.New("erasure: GF(2^8) supports at most 255 shards")
	}
	initTables()
	m := vandermonde(totalShards, dataShards)
	// make the matrix systematic: the top dataShards rows become the
	// identity matrix via Gaussian elimination on the rows, so the
	// first dataShards shards are exactly the data.
	if err := systematize(m, dataShards); err != nil {
		return nil, err
	}
	return &Encoder{DataShards: dataShards, TotalShards: totalShards, matrix: m}, nil
}

// vandermonde builds a rows x cols matrix where m[i][j] = x_i^j for
// distinct non-zero evaluation points x_i = i+1.
func vandermonde(rows, cols int) [][]byte {
	m := make([][]byte, rows)
	for i := range m {
		m[i] = make([]byte, cols)
		x := byte(i + 1)
		p := byte(1)
		for j := 0; j < cols; j++ {
			m[i][j] = p
			p = gfMul(p, x)
		}
	}
	return m
}

// systematize transforms m in place so the top k rows form the
// identity matrix, by right-multiplying with the inverse of that
// leading k x k submatrix.
func systematize(m [][]byte, k int) error {
	top := make([][]byte, k)
	for i := 0; i < k; i++ {
		top[i] = append([]byte{}, m[i]...)
	}
	inv, err := invertMatrix(top)
	if err != nil {
		return err
	}
	result := make([][]byte, len(m))
	for i := range m {
		row := make([]byte, k)
		for c := 0; c < k; c++ {
			var acc byte
			for j := 0; j < k; j++ {
				acc = gfAdd(acc, gfMul(m[i][j], inv[j][c]))
			}
			row[c] = acc
		}
		result[i] = row
	}
	copy(m, result)
	return nil
}

// invertMatrix inverts a square k x k GF(2^8) matrix via Gauss-Jordan
// elimination with partial pivoting.
func invertMatrix(a [][]byte) ([][]byte, error) {
	k := len(a)
	aug := make([][]byte, k)
	for i := 0; i < k; i++ {
		aug[i] = make([]byte, 2*k)
		copy(aug[i], a[i])
		aug[i][k+i] = 1
	}
	for col := 0; col < k; col++ {
		pivot := -1
		for row := col; row < k; row++ {
			if aug[row][col] != 0 {
				pivot = row
				break
			}
		}
		if pivot == -1 {
			return nil, errors.New("erasure: singular matrix")
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]
		inv := gfInv(aug[col][col])
		for j := 0; j < 2*k; j++ {
			aug[col][j] = gfMul(aug[col][j], inv)
		}
		for row := 0; row < k; row++ {
			if row == col {
				continue
			}
			factor := aug[row][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < 2*k; j++ {
				aug[row][j] = gfAdd(aug[row][j], gfMul(factor, aug[col][j]))
			}
		}
	}
	out := make([][]byte, k)
	for i := 0; i < k; i++ {
		out[i] = append([]byte{}, aug[i][k:]...)
	}
	return out, nil
}

func matVecMul(m [][]byte, v []byte) []byte {
	out := make([]byte, len(m))
	for i, row := range m {
		var acc byte
		for j, e := range row {
			acc = gfAdd(acc, gfMul(e, v[j]))
		}
		out[i] = acc
	}
	return out
}

// Encode splits data into DataShards equal-length shards (zero-padding
// the tail), then produces TotalShards output shards column-by-column
// using errgroup to fan work out across byte columns.
func (e *Encoder) Encode(data []byte) ([][]byte, error) {
	shardLen := (len(data) + e.DataShards - 1) / e.DataShards
	if shardLen == 0 {
		shardLen = 1
	}
	padded := make([]byte, shardLen*e.DataShards)
	copy(padded, data)

	shards := make([][]byte, e.TotalShards)
	for i := range shards {
		shards[i] = make([]byte, shardLen)
	}

	var g errgroup.Group
	const chunk = 4096
	for start := 0; start < shardLen; start += chunk {
		start := start
		end := start + chunk
		if end > shardLen {
			end = shardLen
		}
		g.Go(func() error {
			for col := start; col < end; col++ {
				v := make([]byte, e.DataShards)
				for j := 0; j < e.DataShards; j++ {
					v[j] = padded[j*shardLen+col]
				}
				for i := 0; i < e.TotalShards; i++ {
					var acc byte
					row := e.matrix[i]
					for j := 0; j < e.DataShards; j++ {
						acc = gfAdd(acc, gfMul(row[j], v[j]))
					}
					shards[i][col] = acc
				}
			}
			return nil
		})
	}
	_ = g.Wait() // encode columns are pure and cannot fail
	return shards, nil
}

// Reconstruct recovers the original (unpadded length not tracked here;
// callers trim to their own framing) data vector from any DataShards
// of shards whose index is present. present must have exactly
// TotalShards entries.
func (e *Encoder) Reconstruct(shards [][]byte, present []bool) ([]byte, error) {
	if len(shards) != e.TotalShards || len(present) != e.TotalShards {
		return nil, errors.New("erasure: shards/present must have TotalShards entries")
	}
	var haveIdx []int
	for i, ok := range present {
		if ok && shards[i] != nil {
			haveIdx = append(haveIdx, i)
		}
		if len(haveIdx) == e.DataShards {
			break
		}
	}
	if len(haveIdx) < e.DataShards {
		return nil, errors.Errorf("erasure: need %d shards, have %d", e.DataShards, len(haveIdx))
	}
	shardLen := len(shards[haveIdx[0]])

	sub := make([][]byte, e.DataShards)
	for i, idx := range haveIdx {
		sub[i] = e.matrix[idx]
	}
	inv, err := invertMatrix(sub)
	if err != nil {
		return nil, errors.Wrap(err, "erasure: shard subset is not independent")
	}

	out := make([]byte, shardLen*e.DataShards)
	var g errgroup.Group
	const chunk = 4096
	for start := 0; start < shardLen; start += chunk {
		start := start
		end := start + chunk
		if end > shardLen {
			end = shardLen
		}
		g.Go(func() error {
			for col := start; col < end; col++ {
				v := make([]byte, e.DataShards)
				for i, idx := range haveIdx {
					v[i] = shards[idx][col]
				}
				rec := matVecMul(inv, v)
				for j := 0; j < e.DataShards; j++ {
					out[j*shardLen+col] = rec[j]
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}
