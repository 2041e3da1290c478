package beacon

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/hashrand/beacon/common"
	"github.com/hashrand/beacon/crypto/aeshash"
	"github.com/hashrand/beacon/crypto/merkle"
	"github.com/hashrand/beacon/crypto/shamir"
	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

// padToShare left-pads v's big-endian bytes to exactly 32 bytes. A
// value that doesn't fit is an internal invariant violation: the
// caller's own Shamir scheme is configured with a prime that always
// fits 32 bytes, so overflow here means the scheme was misconfigured,
// not that a peer misbehaved (spec.md §7; grounded on
// batch_wssinit.rs's pad_shares, which panics for the same reason).
func padToShare(v *big.Int) [32]byte {
	b := v.Bytes()
	if len(b) > 32 {
		panic(ErrOversizedValue)
	}
	var out [32]byte
	copy(out[32-len(b):], b)
	return out
}

// DealBatch runs one dealer round of Batched Asynchronous weak VSS: it
// samples batchSize independent secrets (and one nonce per secret),
// Shamir-splits each over n=3f+1 points, commits to every
// (share,nonce) pair with a single batched HashBatch call, builds one
// Merkle tree per secret, and returns the per-recipient BatchWSSMsg
// bundles plus the public root vector that is what's actually broadcast
// (grounded on batch_wssinit.rs start_new_round).
func DealBatch(p *replica.Parameters, batchSize int) (perRecipient []wire.BatchWSSMsg, rootVec [][32]byte, err error) {
	secretScheme := shamir.NewScheme(p.Threshold(), p.ShareAmount(), p.SecretPrime)
	nonceScheme := shamir.NewScheme(p.Threshold(), p.ShareAmount(), p.NoncePrime)

	secretShares := make([][]shamir.Share, batchSize)
	nonceShares := make([][]shamir.Share, batchSize)
	for i := 0; i < batchSize; i++ {
		secret := common.GetRandomFieldElement(p.SecretPrime)
		nonce := common.GetRandomFieldElement(p.NoncePrime)
		var err error
		if secretShares[i], err = secretScheme.Split(secret); err != nil {
			return nil, nil, errors.Wrap(err, "beacon: splitting secret")
		}
		if nonceShares[i], err = nonceScheme.Split(nonce); err != nil {
			return nil, nil, errors.Wrap(err, "beacon: splitting nonce")
		}
	}

	hc, err := defaultHasher()
	if err != nil {
		return nil, nil, err
	}

	// batch every (share, nonce) leaf across the whole round into one
	// HashBatch call, amortizing the AES key schedule (spec.md §4.2).
	var ones, twos []aeshash.Hash
	for i := 0; i < batchSize; i++ {
		for x := 0; x < p.ShareAmount(); x++ {
			ones = append(ones, padToShare(secretShares[i][x].Y))
			twos = append(twos, padToShare(nonceShares[i][x].Y))
		}
	}
	leaves := hc.HashBatch(ones, twos)

	secretTrees := make([]*merkle.Tree, batchSize)
	roots := make([]aeshash.Hash, batchSize)
	for i := 0; i < batchSize; i++ {
		leafSlice := leaves[i*p.ShareAmount() : (i+1)*p.ShareAmount()]
		tree, err := merkle.Build(leafSlice, hc)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "beacon: building merkle tree for secret %d", i)
		}
		secretTrees[i] = tree
		roots[i] = tree.Root()
	}
	masterRoot, err := merkle.BuildFromRoots(roots, hc)
	if err != nil {
		return nil, nil, err
	}

	rootVec = make([][32]byte, batchSize)
	for i, r := range roots {
		rootVec[i] = r
	}

	perRecipient = make([]wire.BatchWSSMsg, p.N)
	for x := 0; x < p.N; x++ {
		shares := make([]wire.WSSMsg, batchSize)
		for i := 0; i < batchSize; i++ {
			proof, err := secretTrees[i].GenProof(x)
			if err != nil {
				return nil, nil, err
			}
			shares[i] = wire.WSSMsg{
				Origin: p.MyID,
				Secret: padToShare(secretShares[i][x].Y),
				Nonce:  padToShare(nonceShares[i][x].Y),
				Proof:  proof,
			}
		}
		perRecipient[x] = wire.BatchWSSMsg{Origin: p.MyID, Shares: shares, MasterRoot: masterRoot}
	}
	return perRecipient, rootVec, nil
}

// VerifyMasterRoot recomputes the master root from a dealer's published
// root_vec and checks it against the master root carried in its
// BatchWSSMsg: this is the Open Question decision to enforce
// master_root strictly rather than trust it blindly (DESIGN.md "master
// root"; ctrbc/state.rs verify_reconstructed_root's sibling check on
// the BAwVSS side, batch_wssinit.rs's root_vec commitment).
func VerifyMasterRoot(rootVec [][32]byte, masterRoot [32]byte, hc *aeshash.Hasher) bool {
	roots := make([]aeshash.Hash, len(rootVec))
	for i, r := range rootVec {
		roots[i] = aeshash.Hash(r)
	}
	recomputed, err := merkle.BuildFromRoots(roots, hc)
	if err != nil {
		return false
	}
	return aeshash.Hash(masterRoot) == recomputed
}

// ValidateSecretShare checks one received secret share against the
// dealer's already-terminated root vector: the HashTwo(secret, nonce)
// commitment must be a valid leaf of that secret's Merkle tree, rooted
// at commVectors[origin][coinNumber] (ctrbc/state.rs
// validate_secret_share).
func ValidateSecretShare(rootVec [][32]byte, coinNumber int, msg wire.WSSMsg, hc *aeshash.Hasher) bool {
	if coinNumber < 0 || coinNumber >= len(rootVec) {
		return false
	}
	leaf := hc.HashTwo(msg.Secret, msg.Nonce)
	return msg.Proof != nil &&
		msg.Proof.Item() == leaf &&
		msg.Proof.Root() == aeshash.Hash(rootVec[coinNumber]) &&
		msg.Proof.Validate(hc)
}

// ReconstructSecret Lagrange-interpolates the underlying secret from
// t+1 (origin, share) pairs once they've accumulated for one coin
// number (ctrbc/state.rs reconstruct_secret).
func ReconstructSecret(p *replica.Parameters, shares map[replica.ID]wire.WSSMsg) (*big.Int, bool) {
	if len(shares) < p.Threshold() {
		return nil, false
	}
	scheme := shamir.NewScheme(p.Threshold(), p.ShareAmount(), p.SecretPrime)
	picked := make([]shamir.Share, 0, p.Threshold())
	for rep, msg := range shares {
		picked = append(picked, shamir.Share{X: int(rep) + 1, Y: new(big.Int).SetBytes(msg.Secret[:])})
		if len(picked) == p.Threshold() {
			break
		}
	}
	secret, err := scheme.Recover(picked)
	if err != nil {
		return nil, false
	}
	return secret, true
}
