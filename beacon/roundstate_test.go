package beacon

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hashrand/beacon/replica"
)

// n=4, f=1: t+1=2 echoes relay, n-f=3 echoes emit ECHO2, n-f=3 echo2s
// terminate.
const testN, testF = 4, 1

func TestAddEchoRelaysAtThresholdAndEmitsEcho2AtQuorum(t *testing.T) {
	rs := NewRoundState()
	idx := []replica.ID{0}
	v := big.NewInt(7)

	echo1, _, _, _ := rs.AddEcho(idx, []*big.Int{v}, replica.ID(0), testN, testF)
	assert.Empty(t, echo1, "first echo alone must not cross t+1=2")

	echo1, echo2, echo1Vals, _ := rs.AddEcho(idx, []*big.Int{v}, replica.ID(1), testN, testF)
	assert.Equal(t, []replica.ID{0}, echo1)
	assert.Equal(t, []*big.Int{v}, echo1Vals)
	assert.Empty(t, echo2)

	_, echo2, _, echo2Vals := rs.AddEcho(idx, []*big.Int{v}, replica.ID(2), testN, testF)
	assert.Equal(t, []replica.ID{0}, echo2)
	assert.Equal(t, []*big.Int{v}, echo2Vals)

	_, ok := rs.TermVals[0]
	assert.False(t, ok, "one matured value alone must not terminate the instance")
}

func TestTwoMaturedValuesTerminateAtMidpoint(t *testing.T) {
	rs := NewRoundState()
	idx := []replica.ID{0}
	low, high := big.NewInt(0), big.NewInt(16)

	for _, sender := range []replica.ID{0, 1, 2} {
		rs.AddEcho(idx, []*big.Int{low}, sender, testN, testF)
	}
	for _, sender := range []replica.ID{1, 2, 3} {
		rs.AddEcho(idx, []*big.Int{high}, sender, testN, testF)
	}

	term, ok := rs.TermVals[0]
	assert.True(t, ok)
	assert.Zero(t, big.NewInt(8).Cmp(term))
}

func TestAddEcho2TerminatesDirectlyAtQuorum(t *testing.T) {
	rs := NewRoundState()
	idx := []replica.ID{1}
	v := big.NewInt(42)

	rs.AddEcho2(idx, []*big.Int{v}, replica.ID(0), testN, testF)
	rs.AddEcho2(idx, []*big.Int{v}, replica.ID(1), testN, testF)
	_, ok := rs.TermVals[1]
	assert.False(t, ok)

	rs.AddEcho2(idx, []*big.Int{v}, replica.ID(2), testN, testF)
	term, ok := rs.TermVals[1]
	assert.True(t, ok)
	assert.Zero(t, v.Cmp(term))
}

func TestAddEchoIgnoresAlreadyTerminatedInstance(t *testing.T) {
	rs := NewRoundState()
	rs.TermVals[0] = big.NewInt(99)

	echo1, echo2, _, _ := rs.AddEcho([]replica.ID{0}, []*big.Int{big.NewInt(1)}, replica.ID(0), testN, testF)
	assert.Empty(t, echo1)
	assert.Empty(t, echo2)
	assert.Zero(t, big.NewInt(99).Cmp(rs.TermVals[0]))
}
