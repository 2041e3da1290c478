package beacon

import (
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/chacha20"

	"github.com/hashrand/beacon/replica"
	"github.com/zeebo/blake3"
)

// ElectCommittee draws Parameters.CommitteeSize distinct replica ids
// out of the full n-member set, seeded deterministically by coin 0 (the
// round's dealt-but-never-delivered-externally beacon value reserved
// for this purpose). Every replica that reconstructs the same coin 0
// derives the same committee with no further communication (spec.md
// §4.7 "coin 0 is reserved for committee election", grounded on
// appxcon/comm_election.rs's draw-and-remove sampling).
func ElectCommittee(n, committeeSize int, coinZero []byte) []replica.ID {
	seed := blake3.Sum256(coinZero)

	var nonce [12]byte
	cipher, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	if err != nil {
		// seed is always exactly 32 bytes; NewUnauthenticatedCipher
		// only fails on malformed key/nonce lengths.
		panic("beacon: chacha20 cipher construction failed: " + err.Error())
	}

	pool := make([]replica.ID, n)
	for i := range pool {
		pool[i] = replica.ID(i)
	}

	if committeeSize > n {
		committeeSize = n
	}
	committee := make([]replica.ID, 0, committeeSize)
	for len(committee) < committeeSize && len(pool) > 0 {
		idx := drawIndex(cipher, len(pool))
		committee = append(committee, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}

	sort.Slice(committee, func(i, j int) bool { return committee[i] < committee[j] })
	return committee
}

// drawIndex pulls an unbiased index in [0, bound) out of cipher's
// keystream via rejection sampling over 8-byte draws.
func drawIndex(cipher *chacha20.Cipher, bound int) int {
	if bound <= 0 {
		return 0
	}
	limit := (^uint64(0) / uint64(bound)) * uint64(bound)
	var buf [8]byte
	var zero [8]byte
	for {
		cipher.XORKeyStream(buf[:], zero[:])
		v := binary.LittleEndian.Uint64(buf[:])
		if v < limit {
			return int(v % uint64(bound))
		}
	}
}
