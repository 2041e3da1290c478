// Package wire defines the on-the-wire message shapes exchanged between
// replicas: the CT-RBC shard envelope, the BAwVSS share bundle, and the
// per-recipient beacon message that carries both, plus the closed set of
// protocol messages a replica's MAC-authenticated envelope can carry.
package wire

import (
	"github.com/hashrand/beacon/crypto/merkle"
	"github.com/hashrand/beacon/replica"
)

// CTRBCMsg is a single shard of a Cachin-Tessaro reliable broadcast,
// together with the Merkle proof tying it to the broadcast root
// (spec.md §3 "CTRBCMsg").
type CTRBCMsg struct {
	Round  uint32
	Origin replica.ID
	Shard  []byte
	Proof  *merkle.Proof
}

// WSSMsg is one secret's share as delivered to a single recipient: the
// 32-byte secret share and the accompanying nonce share, plus the
// Merkle proof tying HashTwo(Secret, Nonce) into the dealer's published
// per-secret root (spec.md §3 "WSSMsg"). The commitment leaf is always
// recomputable from Secret/Nonce, so it is not stored separately.
type WSSMsg struct {
	Origin replica.ID
	Secret [32]byte
	Nonce  [32]byte
	Proof  *merkle.Proof
}

// BatchWSSMsg bundles every secret share a single recipient receives
// from a single dealer's batched BAwVSS round: one WSSMsg per secret in
// the batch, plus the master root binding all of the per-secret Merkle
// roots together. Every recipient gets a structurally distinct
// BatchWSSMsg (their own share of each secret), never a shared one
// (spec.md §3 "BatchWSSMsg", §4.2).
type BatchWSSMsg struct {
	Origin     replica.ID
	Shares     []WSSMsg
	MasterRoot [32]byte
}

// AAValue is one Binary Approximate Agreement instance's current
// estimate: a big-endian encoded non-negative integer (values range up
// to 2^rounds_aa, far larger than a byte) tagged with the instance
// index it belongs to (spec.md §4.6 "Vec<(Replica, bytes)>").
type AAValue struct {
	Index replica.ID
	Value []byte
}

// AAPiggyback carries one round's worth of Bundled Binary Approximate
// Agreement values, attached to a BeaconMsg (or a BinaryAAEcho/Echo2)
// so AA progress rides along on whatever traffic is already flowing
// instead of needing its own transport (spec.md §4.6, §6).
type AAPiggyback struct {
	Round uint32
	Vals  []AAValue
}

// BeaconMsg is the logical payload carried by a CTRBCInit message: the
// dealer's batched secret shares for this specific recipient (BatchWSS),
// the vector of per-secret Merkle roots being broadcast (RootVec), and
// any AA piggyback accumulated so far. Every recipient's BeaconMsg has
// an identical Round/Origin/RootVec/AAVals but a recipient-specific
// BatchWSS (spec.md §3 "BeaconMsg", §4.2).
type BeaconMsg struct {
	Origin  replica.ID
	Round   uint32
	BatchWSS *BatchWSSMsg
	RootVec  [][32]byte
	AAVals   []AAPiggyback
}

// Broadcast is the subset of BeaconMsg that is identical across every
// recipient and is the actual payload erasure-coded and reliably
// broadcast by CT-RBC. BatchWSS is recipient-specific and never appears
// here: it is carried directly, point-to-point, bundled alongside the
// broadcast shard inside the same CTRBCInit wire message (grounded on
// batch_wssinit.rs's serialize_ctrbc, which strips the wss field before
// the bytes are erasure-coded).
type Broadcast struct {
	Origin  replica.ID
	Round   uint32
	RootVec [][32]byte
	AAVals  []AAPiggyback
}

// ForBroadcast strips the recipient-specific BatchWSS field, returning
// the payload that is actually erasure-coded and carried by CT-RBC
// shards. Every recipient's BeaconMsg reduces to the same Broadcast
// value.
func (m *BeaconMsg) ForBroadcast() Broadcast {
	return Broadcast{Origin: m.Origin, Round: m.Round, RootVec: m.RootVec, AAVals: m.AAVals}
}
