package beacon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

// n=4, f=1, t=1: n-f=3 echoes, readys and reconstructs drive the
// instance to termination.
func TestEncodeCTRBCRoundTripsThroughEchoReadyReconstruct(t *testing.T) {
	const n, f, t_ = 4, 1, 1
	broadcast := wire.Broadcast{Origin: 0, Round: 1, RootVec: [][32]byte{{9, 9}}}

	shards, tree, err := EncodeCTRBC(n, t_, broadcast)
	require.NoError(t, err)
	require.Len(t, shards, n)

	rb := NewRoundBundle(n)

	shardMsg := func(i int) wire.CTRBCMsg {
		p, err := tree.GenProof(i)
		require.NoError(t, err)
		return wire.CTRBCMsg{Round: 1, Origin: 0, Shard: shards[i], Proof: p}
	}

	rb.AddMessage(wire.BeaconMsg{Origin: 0, Round: 1, RootVec: broadcast.RootVec}, shardMsg(0))

	for i := 0; i < n-f; i++ {
		rb.AddEcho(0, replica.ID(i), shardMsg(i))
	}
	got, ok, err := rb.EchoCheck(0, n, f, t_)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, broadcast, got)

	for i := 0; i < n-f; i++ {
		rb.AddReady(0, replica.ID(i), shardMsg(i))
	}
	got, ok, threshold, err := rb.ReadyCheck(0, n, f, t_)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, n-f, threshold)
	assert.Equal(t, broadcast, got)
	assert.False(t, rb.Terminated(0), "n-f readys confirms reconstruction but does not itself terminate")

	for i := 0; i < n-f; i++ {
		rb.AddRecon(0, replica.ID(i), shards[i])
	}
	got, ok, err = rb.VerifyReconstructRBC(0, n, f, t_)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, broadcast, got)
	assert.True(t, rb.Terminated(0))
}

func TestReadyCheckAmplifiesAtFPlusOneBeforeTerminating(t *testing.T) {
	const n, f, t_ = 4, 1, 1
	broadcast := wire.Broadcast{Origin: 2, Round: 3, RootVec: [][32]byte{{5}}}
	shards, tree, err := EncodeCTRBC(n, t_, broadcast)
	require.NoError(t, err)

	rb := NewRoundBundle(n)
	shardMsg := func(i int) wire.CTRBCMsg {
		p, err := tree.GenProof(i)
		require.NoError(t, err)
		return wire.CTRBCMsg{Round: 3, Origin: 2, Shard: shards[i], Proof: p}
	}
	rb.AddMessage(wire.BeaconMsg{Origin: 2, Round: 3, RootVec: broadcast.RootVec}, shardMsg(0))

	for i := 0; i < f+1; i++ {
		rb.AddReady(2, replica.ID(i), shardMsg(i))
	}
	_, ok, threshold, err := rb.ReadyCheck(2, n, f, t_)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f+1, threshold)
	assert.False(t, rb.Terminated(2), "f+1 readys amplifies, it does not terminate")
}

func TestVerifyShardRejectsForeignShard(t *testing.T) {
	const n, t_ = 4, 1
	b1 := wire.Broadcast{Origin: 0, Round: 1, RootVec: [][32]byte{{1}}}
	b2 := wire.Broadcast{Origin: 1, Round: 1, RootVec: [][32]byte{{2}}}

	shards1, tree1, err := EncodeCTRBC(n, t_, b1)
	require.NoError(t, err)
	_, tree2, err := EncodeCTRBC(n, t_, b2)
	require.NoError(t, err)

	hc, err := defaultHasher()
	require.NoError(t, err)

	proof1, err := tree1.GenProof(0)
	require.NoError(t, err)
	shard := wire.CTRBCMsg{Round: 1, Origin: 0, Shard: shards1[0], Proof: proof1}

	assert.True(t, VerifyShard(shard, tree1.Root(), hc))
	assert.False(t, VerifyShard(shard, tree2.Root(), hc))
}
