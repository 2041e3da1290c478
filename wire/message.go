package wire

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"

	"github.com/hashrand/beacon/replica"
)

// CoinMsg is the closed set of protocol messages a replica's
// MAC-authenticated Envelope can carry (spec.md §3 "Protocol messages",
// §6 "Wire format"). The teacher's tss package wraps a protobuf oneof
// for the same purpose; this module swaps protobuf for gob (see
// SPEC_FULL.md §B) but keeps the same "closed interface + registration"
// shape.
type CoinMsg interface {
	isCoinMsg()
}

// CTRBCInit bundles the broadcast shard for this RBC instance (Shard,
// identical in shape for every recipient) with the recipient-specific
// BeaconMsg (carrying that recipient's own BatchWSSMsg). Sent directly
// by the dealer to each replica, not flooded: Cachin-Tessaro's
// broadcast property is established by the ECHO/READY phases that
// follow, not by this initial fan-out (ctrbc/state.rs, batch_wssinit.rs).
type CTRBCInit struct {
	Shard     CTRBCMsg
	Recipient BeaconMsg
}

// CTRBCEcho carries a replica's own shard back out after receiving
// INIT, for every other replica to cross-check against the broadcast
// Merkle root.
type CTRBCEcho struct {
	Shard CTRBCMsg
}

// CTRBCReady is sent either on observing n-f matching ECHOs or f+1
// matching READYs (amplification step of Cachin-Tessaro broadcast).
type CTRBCReady struct {
	Shard CTRBCMsg
}

// CTRBCReconstruct carries a replica's own shard, sent once n-f READYs
// for the instance have arrived and the reconstructed root checked out;
// n-f of these terminate the instance.
type CTRBCReconstruct struct {
	Shard CTRBCMsg
}

// GatherEcho is the Gather protocol's first round: a replica echoes the
// set of origins whose CT-RBC instances it has seen terminate.
type GatherEcho struct {
	Round   uint32
	Witness []replica.ID
}

// GatherEcho2 is Gather's second round: a replica echoes again the set
// of origins whose CT-RBC instances it has seen terminate.
type GatherEcho2 struct {
	Round   uint32
	Witness []replica.ID
}

// BinaryAAEcho is the first-phase message of Bundled Binary Approximate
// Agreement: a replica's (index, estimate) pairs for every parallel
// binary-AA instance, for one or more in-flight AA rounds piggybacked
// together (spec.md §4.6, §6).
type BinaryAAEcho struct {
	Rounds []AAPiggyback
}

// BinaryAAEcho2 is the second phase of a BBAA round, sent once n-f
// matching Echoes have been observed for an instance.
type BinaryAAEcho2 struct {
	Rounds []AAPiggyback
}

// BeaconConstruct carries a replica's own secret shares for every
// terminated BAwVSS instance contributing to one coin, used to
// reconstruct the weighted beacon value once enough shares and AA
// results have accumulated (spec.md §4.7, §6).
type BeaconConstruct struct {
	CoinNumber int
	Shares     []WSSMsg
}

// BeaconValue is the final output message: the reconstructed random
// value for a coin round, gossiped so late-joining replicas can catch
// up without re-running reconstruction.
type BeaconValue struct {
	CoinNumber int
	Round      uint32
	Value      []byte
}

func (CTRBCInit) isCoinMsg()        {}
func (CTRBCEcho) isCoinMsg()        {}
func (CTRBCReady) isCoinMsg()       {}
func (CTRBCReconstruct) isCoinMsg() {}
func (GatherEcho) isCoinMsg()       {}
func (GatherEcho2) isCoinMsg()      {}
func (BinaryAAEcho) isCoinMsg()     {}
func (BinaryAAEcho2) isCoinMsg()    {}
func (BeaconConstruct) isCoinMsg()  {}
func (BeaconValue) isCoinMsg()      {}

func init() {
	gob.Register(CTRBCInit{})
	gob.Register(CTRBCEcho{})
	gob.Register(CTRBCReady{})
	gob.Register(CTRBCReconstruct{})
	gob.Register(GatherEcho{})
	gob.Register(GatherEcho2{})
	gob.Register(BinaryAAEcho{})
	gob.Register(BinaryAAEcho2{})
	gob.Register(BeaconConstruct{})
	gob.Register(BeaconValue{})
}

// EncodeBroadcast serializes the recipient-independent part of a
// BeaconMsg, i.e. the bytes that are actually erasure-coded and carried
// by CT-RBC shards (batch_wssinit.rs's serialize_ctrbc).
func EncodeBroadcast(b Broadcast) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, errors.Wrap(err, "wire: encoding broadcast payload")
	}
	return buf.Bytes(), nil
}

// DecodeBroadcast is the inverse of EncodeBroadcast, used after
// erasure-decoding a CT-RBC instance's shards back into bytes.
func DecodeBroadcast(data []byte) (Broadcast, error) {
	var b Broadcast
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return Broadcast{}, errors.Wrap(err, "wire: decoding broadcast payload")
	}
	return b, nil
}
