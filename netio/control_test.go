package netio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hashrand/beacon/beacon"
	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

func TestControlServerAnswersMatchingRequestByID(t *testing.T) {
	params := &replica.Parameters{
		N: 4, F: 1, MyID: 0, BatchSize: 1, Frequency: 1, CommitteeSize: 4,
		SecretPrime: replica.DefaultSecretPrime,
		NoncePrime:  replica.DefaultNoncePrime,
	}
	output := make(chan beacon.BeaconOutput, 4)
	ctx := beacon.NewContext(params, noopTransport{}, output)

	server, err := NewControlServer("127.0.0.1:0", ctx, output)
	require.NoError(t, err)
	defer server.Close()
	addr := server.listener.Addr().String()

	result := make(chan [16]byte, 1)
	errs := make(chan error, 1)
	go func() {
		value, err := RequestCoin(addr, 42)
		if err != nil {
			errs <- err
			return
		}
		result <- value
	}()

	require.Eventually(t, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return len(server.clients) == 1
	}, time.Second, time.Millisecond)

	want := [16]byte{0xde, 0xad, 0xbe, 0xef}
	output <- beacon.BeaconOutput{RequestID: 42, Value: want}

	select {
	case got := <-result:
		require.Equal(t, want, got)
	case err := <-errs:
		t.Fatalf("RequestCoin failed: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for control answer")
	}
}

type noopTransport struct{}

func (noopTransport) SendTo(replica.ID, uint32, wire.CoinMsg) replica.CancelFunc { return nil }
func (noopTransport) Broadcast(uint32, wire.CoinMsg) replica.CancelFunc         { return nil }
