package beacon

import "github.com/pkg/errors"

// Sentinel errors for the taxonomy in spec.md §7: Byzantine/Structural
// conditions are expected and handled by dropping the offending
// message, never by tearing down the round or panicking.
var (
	ErrBadMerkleProof   = errors.New("beacon: merkle proof does not validate")
	ErrBadShardRoot     = errors.New("beacon: reconstructed shard root does not match broadcast root")
	ErrUnknownOrigin    = errors.New("beacon: secret share from an origin with no terminated commitment")
	ErrOversizedValue   = errors.New("beacon: share or nonce value does not fit in 32 bytes")
	ErrInsufficientData = errors.New("beacon: not enough matching shards/shares to proceed yet")
)
