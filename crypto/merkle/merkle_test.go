package merkle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashrand/beacon/crypto/aeshash"
	"github.com/hashrand/beacon/crypto/merkle"
)

func testHasher(t *testing.T) *aeshash.Hasher {
	t.Helper()
	h, err := aeshash.New([16]byte{1}, [16]byte{2}, [16]byte{3})
	require.NoError(t, err)
	return h
}

func leafHash(b byte) aeshash.Hash {
	var h aeshash.Hash
	h[0] = b
	return h
}

func TestGenProofValidatesAndBatchMatches(t *testing.T) {
	hc := testHasher(t)
	leaves := []aeshash.Hash{leafHash(1), leafHash(2), leafHash(3), leafHash(4), leafHash(5)}
	tree, err := merkle.Build(leaves, hc)
	require.NoError(t, err)

	proofs := make([]*merkle.Proof, len(leaves))
	for i := range leaves {
		p, err := tree.GenProof(i)
		require.NoError(t, err)
		assert.True(t, p.Validate(hc))
		proofs[i] = p
	}
	assert.True(t, merkle.ValidateBatch(proofs, hc))
}

func TestValidateRejectsTamperedProof(t *testing.T) {
	hc := testHasher(t)
	leaves := []aeshash.Hash{leafHash(1), leafHash(2), leafHash(3)}
	tree, err := merkle.Build(leaves, hc)
	require.NoError(t, err)

	p, err := tree.GenProof(1)
	require.NoError(t, err)
	require.True(t, p.Validate(hc))

	lemma := append([]aeshash.Hash{}, p.Lemma()...)
	lemma[1][0] ^= 0xFF
	bad := merkle.NewProof(lemma, p.Path())
	assert.False(t, bad.Validate(hc))
}

func TestHashTwoMatchesHashBatch(t *testing.T) {
	hc := testHasher(t)
	ones := []aeshash.Hash{leafHash(10), leafHash(20), leafHash(30)}
	twos := []aeshash.Hash{leafHash(11), leafHash(21), leafHash(31)}
	batch := hc.HashBatch(ones, twos)
	for i := range ones {
		assert.Equal(t, hc.HashTwo(ones[i], twos[i]), batch[i])
	}
}
