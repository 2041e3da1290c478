package beacon

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

type noopTransport struct{}

func (noopTransport) SendTo(replica.ID, uint32, wire.CoinMsg) replica.CancelFunc { return nil }
func (noopTransport) Broadcast(uint32, wire.CoinMsg) replica.CancelFunc         { return nil }

func TestProcessBeaconConstructRejectsTamperedShareButStillReconstructsFromHonestOnes(t *testing.T) {
	const n, f = 4, 1
	params := &replica.Parameters{
		N: n, F: f, MyID: 1, BatchSize: 1, Frequency: 1, CommitteeSize: n,
		SecretPrime: replica.DefaultSecretPrime,
		NoncePrime:  replica.DefaultNoncePrime,
	}
	out := make(chan BeaconOutput, 4)
	c := NewContext(params, noopTransport{}, out)

	const dealer replica.ID = 2
	dealerParams := &replica.Parameters{
		N: n, F: f, MyID: dealer, BatchSize: 1,
		SecretPrime: replica.DefaultSecretPrime,
		NoncePrime:  replica.DefaultNoncePrime,
	}
	perRecipient, rootVec, err := DealBatch(dealerParams, 1)
	require.NoError(t, err)

	rb := c.roundBundle(0)
	rb.commVectors[dealer] = rootVec
	rb.TermVals[dealer] = big.NewInt(1) // dealer counted heavy with weight 1

	tampered := perRecipient[0].Shares[0]
	tampered.Secret[0] ^= 0xFF

	// A forged share is dropped silently: it must never be recorded,
	// so it can never count toward the t+1 threshold.
	c.ProcessBeaconConstruct(0, 9, wire.BeaconConstruct{CoinNumber: 0, Shares: []wire.WSSMsg{tampered}})
	assert.Empty(t, rb.secretShares[0][dealer])

	c.ProcessBeaconConstruct(0, 0, wire.BeaconConstruct{CoinNumber: 0, Shares: []wire.WSSMsg{perRecipient[0].Shares[0]}})
	assert.False(t, rb.reconstructedCoins[0], "one honest share is below threshold f+1=2")

	c.ProcessBeaconConstruct(0, 2, wire.BeaconConstruct{CoinNumber: 0, Shares: []wire.WSSMsg{perRecipient[2].Shares[0]}})

	require.Len(t, rb.secretShares[0][dealer], 2, "only the two honest shares were ever recorded")
	require.Contains(t, rb.reconstructedSecret[0], dealer)
	require.Contains(t, rb.contribution[0], dealer)
	assert.Zero(t, rb.reconstructedSecret[0][dealer].Cmp(rb.contribution[0][dealer]), "weight of 1 leaves the contribution equal to the recovered secret")
}
