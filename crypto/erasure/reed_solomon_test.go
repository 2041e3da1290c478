package erasure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashrand/beacon/crypto/erasure"
)

func TestEncodeReconstructFromAnyKShards(t *testing.T) {
	enc, err := erasure.NewEncoder(3, 7) // t+1=3, n=7 (f=2)
	require.NoError(t, err)

	data := []byte("the quick brown fox jumps over the lazy dog!!!")
	shards, err := enc.Encode(data)
	require.NoError(t, err)
	require.Len(t, shards, 7)

	// systematic: first DataShards outputs equal the data split verbatim.
	shardLen := len(shards[0])
	for i := 0; i < 3; i++ {
		start := i * shardLen
		end := start + shardLen
		expect := make([]byte, shardLen)
		if start < len(data) {
			copy(expect, data[start:min(end, len(data))])
		}
		assert.Equal(t, expect, shards[i])
	}

	present := []bool{false, false, true, true, true, false, false}
	out, err := enc.Reconstruct(shards, present)
	require.NoError(t, err)
	assert.Equal(t, data, trimPad(out, len(data)))
}

func TestReconstructInsufficientShardsFails(t *testing.T) {
	enc, err := erasure.NewEncoder(3, 7)
	require.NoError(t, err)
	shards, err := enc.Encode([]byte("abcdef"))
	require.NoError(t, err)
	present := []bool{true, true, false, false, false, false, false}
	_, err = enc.Reconstruct(shards, present)
	assert.Error(t, err)
}

func trimPad(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
