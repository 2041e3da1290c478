package beacon

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hashrand/beacon/replica"
)

func TestElectCommitteeIsDeterministicForSameCoin(t *testing.T) {
	coin := []byte("a fixed reconstructed coin-0 value")
	a := ElectCommittee(10, 6, coin)
	b := ElectCommittee(10, 6, coin)
	assert.Equal(t, a, b)
}

func TestElectCommitteeReturnsDistinctSortedIndices(t *testing.T) {
	committee := ElectCommittee(10, 6, []byte("seed"))
	assert.Len(t, committee, 6)

	seen := make(map[replica.ID]bool)
	for i, id := range committee {
		assert.False(t, seen[id], "committee must not contain duplicates")
		seen[id] = true
		assert.True(t, uint32(id) < 10)
		if i > 0 {
			assert.True(t, committee[i-1] < committee[i], "committee must be sorted")
		}
	}
}

func TestElectCommitteeDiffersAcrossSeeds(t *testing.T) {
	a := ElectCommittee(16, 5, []byte("seed-one"))
	b := ElectCommittee(16, 5, []byte("seed-two"))
	assert.NotEqual(t, a, b)
}

func TestElectCommitteeCapsAtN(t *testing.T) {
	committee := ElectCommittee(4, 10, []byte("seed"))
	assert.Len(t, committee, 4)
}
