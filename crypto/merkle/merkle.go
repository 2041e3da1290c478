// Package merkle builds Merkle trees and inclusion proofs over
// aeshash.Hash leaves, using the AES-based two-to-one compression
// function as the tree's internal node hash.
package merkle

import (
	"github.com/pkg/errors"

	"github.com/hashrand/beacon/crypto/aeshash"
)

// Tree stores every level of a Merkle tree flattened into one slice,
// leaves first and root last, exactly as built by Build.
type Tree struct {
	data   []aeshash.Hash
	leafs  int
	height int
}

// Build constructs a Merkle tree over leaves, padding to the next
// power of two by duplicating the last leaf at each level with an odd
// width (spec.md §4.2). leaves must contain at least 2 elements.
func Build(leaves []aeshash.Hash, hc *aeshash.Hasher) (*Tree, error) {
	if len(leaves) < 2 {
		return nil, errors.New("merkle: need at least 2 leaves")
	}
	data := make([]aeshash.Hash, len(leaves))
	copy(data, leaves)
	t := &Tree{data: data, leafs: len(leaves)}
	t.build(hc)
	t.height = heightFor(len(data))
	return t, nil
}

// BuildFromRoots builds the "master" tree of per-secret roots the same
// way Build does; used to recompute BatchWSSMsg.MasterRoot from the
// per-secret proof roots a receiver has already verified.
func BuildFromRoots(roots []aeshash.Hash, hc *aeshash.Hasher) (aeshash.Hash, error) {
	if len(roots) == 1 {
		// a single-secret batch has no internal tree; the master root
		// is the secret's own root.
		return roots[0], nil
	}
	t, err := Build(roots, hc)
	if err != nil {
		return aeshash.Hash{}, err
	}
	return t.Root(), nil
}

func (t *Tree) build(hc *aeshash.Hasher) {
	width := t.leafs
	i, j := 0, width
	for width > 1 {
		if width&1 == 1 {
			t.data = append(t.data, t.data[len(t.data)-1])
			width++
			j++
		}
		for i < j {
			h := hc.HashTwo(t.data[i], t.data[i+1])
			t.data = append(t.data, h)
			i += 2
		}
		width >>= 1
		j += width
	}
}

func heightFor(size int) int {
	h := 0
	for n := size + 1; n > 1; n >>= 1 {
		h++
	}
	return h
}

// Root returns the tree's root hash (the last element of the flat array).
func (t *Tree) Root() aeshash.Hash {
	return t.data[len(t.data)-1]
}

func (t *Tree) Leafs() int { return t.leafs }

// GenProof returns an inclusion proof for leaf i.
func (t *Tree) GenProof(i int) (*Proof, error) {
	if i < 0 || t.leafs <= i {
		return nil, errors.Errorf("merkle: leaf index %d out of range [0,%d)", i, t.leafs)
	}
	lemma := make([]aeshash.Hash, 0, t.height+1)
	path := make([]bool, 0, t.height)

	base := 0
	j := i
	width := t.leafs
	if width&1 == 1 {
		width++
	}

	lemma = append(lemma, t.data[j])
	for base+1 < len(t.data) {
		if j&1 == 0 {
			lemma = append(lemma, t.data[base+j+1])
		} else {
			lemma = append(lemma, t.data[base+j-1])
		}
		path = append(path, j&1 == 0)

		base += width
		width >>= 1
		if width&1 == 1 {
			width++
		}
		j >>= 1
	}

	lemma = append(lemma, t.Root())
	return &Proof{lemma: lemma, path: path}, nil
}
