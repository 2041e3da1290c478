package netio

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

func TestWriteFrameReadFrameRoundTrips(t *testing.T) {
	key := []byte("pairwise preshared key")
	msg := wire.GatherEcho{Round: 7, Witness: []replica.ID{0, 2}}
	env, err := wire.Seal(replica.ID(3), 7, msg, key)
	require.NoError(t, err)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- writeFrame(client, env) }()

	got, err := readFrame(server)
	require.NoError(t, err)
	require.NoError(t, <-done)

	require.Equal(t, env.Sender, got.Sender)
	require.Equal(t, env.Round, got.Round)
	require.Equal(t, env.MAC, got.MAC)
	require.Equal(t, env.Payload, got.Payload)

	decoded, err := wire.Open(got, key)
	require.NoError(t, err)
	require.Equal(t, msg, decoded)
}
