package beacon

import (
	"math/big"

	"github.com/hashrand/beacon/common"
	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

// ReconstructBeacon starts reconstruction of coin coinNumber within
// round's RoundBundle: every heavy origin's c-th (share,nonce,proof)
// triple is broadcast as a BeaconConstruct so every other replica can
// accumulate t+1 shares and Lagrange-recover it (spec.md §4.7 step 1).
func (c *Context) ReconstructBeacon(round uint32, coinNumber int) {
	rb := c.roundBundle(round)
	shares := make([]wire.WSSMsg, 0, len(rb.TermVals))
	for origin := range rb.TermVals {
		secrets := rb.nodeSecrets[origin]
		if secrets == nil || coinNumber >= len(secrets.Shares) {
			continue
		}
		shares = append(shares, secrets.Shares[coinNumber])
	}
	if len(shares) == 0 {
		return
	}
	msg := wire.BeaconConstruct{CoinNumber: coinNumber, Shares: shares}
	c.broadcast(round, msg)
	c.ProcessBeaconConstruct(round, c.params.MyID, msg)
}

// ProcessBeaconConstruct validates every share sender contributed for
// coin coinNumber against that origin's already-terminated root vector,
// accumulates valid ones, Lagrange-recovers the secret once t+1 have
// arrived, and folds the recovered secret (weighted by that origin's
// BBAA term value) into the round's running coin sum (spec.md §4.7
// steps 2-4).
func (c *Context) ProcessBeaconConstruct(round uint32, sender replica.ID, msg wire.BeaconConstruct) {
	rb := c.roundBundle(round)
	hc, err := defaultHasher()
	if err != nil {
		return
	}
	for _, share := range msg.Shares {
		origin := share.Origin
		weight, heavy := rb.TermVals[origin]
		if !heavy {
			continue // only heavy (non-zero-terminated) origins contribute
		}
		root, ok := rb.commVectors[origin]
		if !ok {
			common.Logger.Warnf("beacon: round %d: %v (origin %s)", round, ErrUnknownOrigin, origin)
			continue
		}
		if !ValidateSecretShare(root, msg.CoinNumber, share, hc) {
			continue
		}
		rb.recordShare(msg.CoinNumber, origin, sender, share)

		byOrigin := rb.secretShares[msg.CoinNumber][origin]
		if len(byOrigin) < c.params.Threshold() {
			continue
		}
		if _, already := rb.reconstructedSecret[msg.CoinNumber][origin]; already {
			continue
		}
		secret, ok := ReconstructSecret(c.params, byOrigin)
		if !ok {
			continue
		}
		rb.recordReconstructedSecret(msg.CoinNumber, origin, secret)

		contribution := new(big.Int).Mul(weight, secret)
		contribution.Mod(contribution, c.params.SecretPrime)
		rb.recordContribution(msg.CoinNumber, origin, contribution)
	}
	c.checkCoinComplete(round, msg.CoinNumber)
}

func (rb *RoundBundle) recordShare(coinNumber int, origin, sender replica.ID, share wire.WSSMsg) {
	byOrigin, ok := rb.secretShares[coinNumber]
	if !ok {
		byOrigin = make(map[replica.ID]map[replica.ID]wire.WSSMsg)
		rb.secretShares[coinNumber] = byOrigin
	}
	bySender, ok := byOrigin[origin]
	if !ok {
		bySender = make(map[replica.ID]wire.WSSMsg)
		byOrigin[origin] = bySender
	}
	bySender[sender] = share
}

func (rb *RoundBundle) recordReconstructedSecret(coinNumber int, origin replica.ID, secret *big.Int) {
	byOrigin, ok := rb.reconstructedSecret[coinNumber]
	if !ok {
		byOrigin = make(map[replica.ID]*big.Int)
		rb.reconstructedSecret[coinNumber] = byOrigin
	}
	byOrigin[origin] = secret
}

func (rb *RoundBundle) recordContribution(coinNumber int, origin replica.ID, value *big.Int) {
	byOrigin, ok := rb.contribution[coinNumber]
	if !ok {
		byOrigin = make(map[replica.ID]*big.Int)
		rb.contribution[coinNumber] = byOrigin
	}
	byOrigin[origin] = value
}

// checkCoinComplete emits coinNumber once every heavy origin has
// contributed: coin 0 is consumed internally to elect the round's
// committee, every other coin is handed to the node's output channel
// (spec.md §4.7 steps 4, "Downstream").
func (c *Context) checkCoinComplete(round uint32, coinNumber int) {
	rb := c.roundBundle(round)
	contributions := rb.contribution[coinNumber]
	if len(contributions) < len(rb.TermVals) || rb.reconstructedCoins[coinNumber] {
		return
	}
	sum := big.NewInt(0)
	for _, v := range contributions {
		sum.Add(sum, v)
	}
	sum.Mod(sum, c.params.SecretPrime)
	rb.reconstructedCoins[coinNumber] = true

	if coinNumber == 0 {
		rb.Committee = ElectCommittee(c.params.N, c.params.CommitteeSize, sum.Bytes())
		rb.CommitteeElected = true
		if c.params.BatchSize > 1 {
			c.ReconstructBeacon(round, 1)
		}
		return
	}

	c.emitBeacon(round, coinNumber, sum)
	if coinNumber+1 < c.params.BatchSize {
		c.ReconstructBeacon(round, coinNumber+1)
	} else {
		c.clearRound(round)
	}
}
