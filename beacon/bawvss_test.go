package beacon

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

func testParams(n, f int) *replica.Parameters {
	return &replica.Parameters{
		N: n, F: f, MyID: 0,
		SecretPrime: replica.DefaultSecretPrime,
		NoncePrime:  replica.DefaultNoncePrime,
	}
}

func TestDealBatchProducesVerifiableSharesForEveryRecipient(t *testing.T) {
	p := testParams(4, 1)
	perRecipient, rootVec, err := DealBatch(p, 2)
	require.NoError(t, err)
	require.Len(t, perRecipient, 4)
	require.Len(t, rootVec, 2)

	hc, err := defaultHasher()
	require.NoError(t, err)

	for _, bundle := range perRecipient {
		require.Len(t, bundle.Shares, 2)
		assert.True(t, VerifyMasterRoot(rootVec, bundle.MasterRoot, hc))
		for coinNumber, share := range bundle.Shares {
			assert.True(t, ValidateSecretShare(rootVec, coinNumber, share, hc))
		}
	}
}

func TestValidateSecretShareRejectsTamperedShare(t *testing.T) {
	p := testParams(4, 1)
	perRecipient, rootVec, err := DealBatch(p, 1)
	require.NoError(t, err)

	hc, err := defaultHasher()
	require.NoError(t, err)

	tampered := perRecipient[0].Shares[0]
	tampered.Secret[0] ^= 0xFF
	assert.False(t, ValidateSecretShare(rootVec, 0, tampered, hc))
}

func TestReconstructSecretFromThresholdShares(t *testing.T) {
	p := testParams(4, 1) // threshold = f+1 = 2
	perRecipient, _, err := DealBatch(p, 1)
	require.NoError(t, err)

	// Recover using exactly t+1=2 of the 4 recipients' shares for coin 0.
	subset := map[replica.ID]wire.WSSMsg{
		0: perRecipient[0].Shares[0],
		2: perRecipient[2].Shares[0],
	}
	secret, ok := ReconstructSecret(p, subset)
	require.True(t, ok)
	assert.True(t, secret.Cmp(big.NewInt(0)) >= 0)
	assert.True(t, secret.Cmp(p.SecretPrime) < 0)
}

func TestReconstructSecretFailsBelowThreshold(t *testing.T) {
	p := testParams(4, 1)
	perRecipient, _, err := DealBatch(p, 1)
	require.NoError(t, err)

	subset := map[replica.ID]wire.WSSMsg{0: perRecipient[0].Shares[0]}
	_, ok := ReconstructSecret(p, subset)
	assert.False(t, ok)
}
