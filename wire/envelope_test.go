package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key := []byte("pairwise-preshared-key-0-1")
	msg := wire.BeaconValue{CoinNumber: 3, Round: 7, Value: []byte{1, 2, 3}}

	env, err := wire.Seal(replica.ID(0), 7, msg, key)
	require.NoError(t, err)

	got, err := wire.Open(env, key)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestOpenRejectsTamperedPayload(t *testing.T) {
	key := []byte("pairwise-preshared-key-0-1")
	msg := wire.BeaconValue{CoinNumber: 3, Round: 7, Value: []byte{1, 2, 3}}

	env, err := wire.Seal(replica.ID(0), 7, msg, key)
	require.NoError(t, err)
	env.Payload[0] ^= 0xFF

	_, err = wire.Open(env, key)
	assert.Error(t, err)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	msg := wire.BeaconValue{CoinNumber: 1, Round: 1, Value: []byte{9}}
	env, err := wire.Seal(replica.ID(0), 1, msg, []byte("key-a"))
	require.NoError(t, err)

	_, err = wire.Open(env, []byte("key-b"))
	assert.Error(t, err)
}

func TestEncodeDecodeBroadcastRoundTrip(t *testing.T) {
	b := wire.Broadcast{
		Origin:  replica.ID(2),
		Round:   5,
		RootVec: [][32]byte{{1}, {2}},
		AAVals: []wire.AAPiggyback{{Round: 5, Vals: []wire.AAValue{
			{Index: replica.ID(0), Value: []byte{0}},
			{Index: replica.ID(1), Value: []byte{1}},
		}}},
	}
	bz, err := wire.EncodeBroadcast(b)
	require.NoError(t, err)

	got, err := wire.DecodeBroadcast(bz)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}
