package merkle

import (
	"bytes"
	"encoding/gob"

	"github.com/hashrand/beacon/crypto/aeshash"
)

// Proof is a Merkle inclusion proof: lemma is [item, siblings..., root],
// path[i] is true when lemma[i+1] is the *right* sibling of the hash
// computed so far (i.e. the accumulated hash goes on the left).
type Proof struct {
	lemma []aeshash.Hash
	path  []bool
}

func NewProof(lemma []aeshash.Hash, path []bool) *Proof {
	return &Proof{lemma: lemma, path: path}
}

func (p *Proof) Item() aeshash.Hash { return p.lemma[0] }
func (p *Proof) Root() aeshash.Hash { return p.lemma[len(p.lemma)-1] }
func (p *Proof) Path() []bool       { return p.path }
func (p *Proof) Lemma() []aeshash.Hash {
	return p.lemma
}

// Validate recomputes the root from the proof's own lemma/path and
// compares it against the proof's claimed root.
func (p *Proof) Validate(hc *aeshash.Hasher) bool {
	size := len(p.lemma)
	if size < 2 {
		return false
	}
	h := p.Item()
	for i := 1; i < size-1; i++ {
		if p.path[i-1] {
			h = hc.HashTwo(h, p.lemma[i])
		} else {
			h = hc.HashTwo(p.lemma[i], h)
		}
	}
	return h == p.Root()
}

// gobProof mirrors Proof with exported fields so gob can see it; Proof
// itself keeps lemma/path unexported since nothing outside this package
// should construct one by hand.
type gobProof struct {
	Lemma []aeshash.Hash
	Path  []bool
}

func (p *Proof) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobProof{Lemma: p.lemma, Path: p.path}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Proof) GobDecode(data []byte) error {
	var g gobProof
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	p.lemma = g.Lemma
	p.path = g.Path
	return nil
}

// ValidateBatch is the batched equivalent of calling Validate on every
// proof in pfs; it must agree with Validate pairwise and exists so
// BAwVSS init verification can amortize the AES cipher schedule over
// the whole batch (spec.md §4.2).
func ValidateBatch(pfs []*Proof, hc *aeshash.Hasher) bool {
	if len(pfs) == 0 {
		return false
	}
	acc := make([]aeshash.Hash, len(pfs))
	for i, p := range pfs {
		acc[i] = p.Item()
	}
	sizeEach := len(pfs[0].lemma)
	if sizeEach < 2 {
		return false
	}
	for i := 1; i < sizeEach-1; i++ {
		one := make([]aeshash.Hash, len(pfs))
		two := make([]aeshash.Hash, len(pfs))
		for k, p := range pfs {
			if len(p.lemma) != sizeEach {
				return false
			}
			if p.path[i-1] {
				one[k] = acc[k]
				two[k] = p.lemma[i]
			} else {
				one[k] = p.lemma[i]
				two[k] = acc[k]
			}
		}
		acc = hc.HashBatch(one, two)
	}
	for k, p := range pfs {
		if acc[k] != p.Root() {
			return false
		}
	}
	return true
}
