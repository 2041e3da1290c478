package beacon

import (
	"math/big"

	"github.com/hashrand/beacon/common"
	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

// Transport is the network-facing side a Context needs: point-to-point
// send and reliable flood-broadcast to every other replica, each
// returning a cancel handle the caller can use to abandon retries
// early (spec.md §5 "Cancellation & timeouts"; grounded on the
// teacher's tss.Party/SendMsg split, generalized from per-party
// channels to an explicit interface since this module has no
// round-trip TSS signing session to piggyback transport on).
type Transport interface {
	SendTo(recipient replica.ID, round uint32, msg wire.CoinMsg) replica.CancelFunc
	Broadcast(round uint32, msg wire.CoinMsg) replica.CancelFunc
}

// BeaconOutput is one answered coin request: spec.md §6's control
// interface output channel emits (request_id, u128); Value holds the
// low 128 bits of the recovered field element, big-endian.
type BeaconOutput struct {
	RequestID uint32
	Value     [16]byte
}

// Context is the single-threaded state machine driving one replica
// through every round of CT-RBC, Gather, BBAA and beacon reconstruction
// (ctrbc/context.rs Context, generalized from its hardcoded n=4 AnyTrust
// deployment to arbitrary n/f).
type Context struct {
	params    *replica.Parameters
	transport Transport
	cancels   *replica.CancelBucket
	output    chan BeaconOutput

	rounds map[uint32]*RoundBundle

	// FIFO request queue: coin index 0 of every round is reserved for
	// committee election, so requests are allotted to (round, coin>=1)
	// slots in order (spec.md §6 "Control interface").
	slots         map[uint32]map[int]uint32 // round -> coin index -> request id
	nextRound     uint32
	nextCoinIndex int
	bootstrapped  bool

	// coinCache retains every coin this replica has ever reconstructed,
	// keyed by round and coin index, surviving clearRound so a request
	// arriving after its round already completed is answered instantly
	// instead of waiting on a reconstruction that already happened
	// (spec.md §8 "late joiner requests past round").
	coinCache map[uint32]map[int][16]byte
}

// NewContext builds a Context ready to accept requests; it does not
// start any round until the first request (or an explicit StartRound)
// arrives.
func NewContext(params *replica.Parameters, transport Transport, output chan BeaconOutput) *Context {
	return &Context{
		params:        params,
		transport:     transport,
		cancels:       replica.NewCancelBucket(),
		output:        output,
		rounds:        make(map[uint32]*RoundBundle),
		slots:         make(map[uint32]map[int]uint32),
		coinCache:     make(map[uint32]map[int][16]byte),
		nextCoinIndex: 1,
	}
}

func (c *Context) roundBundle(round uint32) *RoundBundle {
	rb, ok := c.rounds[round]
	if !ok {
		rb = NewRoundBundle(c.params.N)
		c.rounds[round] = rb
	}
	return rb
}

func (c *Context) broadcast(round uint32, msg wire.CoinMsg) {
	c.cancels.Add(round, c.transport.Broadcast(round, msg))
}

func (c *Context) sendTo(recipient replica.ID, round uint32, msg wire.CoinMsg) {
	c.cancels.Add(round, c.transport.SendTo(recipient, round, msg))
}

func gatherEcho2Msg(round uint32, witness []replica.ID) wire.CoinMsg {
	return wire.GatherEcho2{Round: round, Witness: witness}
}

// RequestCoin enqueues requestID for the next free coin slot and, if
// this is the very first request (id 0 bootstraps the whole protocol
// per spec.md §6), kicks off round 0's dealing.
func (c *Context) RequestCoin(requestID uint32) {
	if !c.bootstrapped {
		c.bootstrapped = true
		c.StartRound(0)
	}
	if requestID == 0 {
		return
	}
	c.allocateSlot(requestID)
}

func (c *Context) allocateSlot(requestID uint32) {
	round, coin := c.nextRound, c.nextCoinIndex

	if byCoin, ok := c.coinCache[round]; ok {
		if value, ok := byCoin[coin]; ok {
			c.output <- BeaconOutput{RequestID: requestID, Value: value}
			c.advanceSlotCursor()
			return
		}
	}

	byCoin, ok := c.slots[round]
	if !ok {
		byCoin = make(map[int]uint32)
		c.slots[round] = byCoin
	}
	byCoin[coin] = requestID
	c.advanceSlotCursor()
}

// advanceSlotCursor moves the FIFO cursor to the next coin slot, dealing
// the next round eagerly once the current one's usable slots (every
// index but 0, reserved for committee election) are exhausted.
func (c *Context) advanceSlotCursor() {
	c.nextCoinIndex++
	if c.nextCoinIndex >= c.params.BatchSize {
		c.nextCoinIndex = 1
		c.nextRound++
		c.StartRound(c.nextRound)
	}
}

// StartRound deals round's batch of secrets: DealBatch produces every
// recipient's share bundle plus the public root vector, which becomes
// the Broadcast payload erasure-coded into this round's CT-RBC shards
// and sent directly (INIT) to every replica (spec.md §4.2, §4.7 step 1
// analog for dealing; grounded on batch_wssinit.rs start_new_round).
func (c *Context) StartRound(round uint32) {
	rb := c.roundBundle(round)
	perRecipient, rootVec, err := DealBatch(c.params, c.params.BatchSize)
	if err != nil {
		common.Logger.Errorf("beacon: round %d: dealing batch: %v", round, err)
		return
	}
	rb.commVectors[c.params.MyID] = rootVec
	mine := perRecipient[c.params.MyID]
	rb.nodeSecrets[c.params.MyID] = &mine

	broadcast := wire.Broadcast{Origin: c.params.MyID, Round: round, RootVec: rootVec}
	shards, tree, err := EncodeCTRBC(c.params.N, c.params.Threshold()-1, broadcast)
	if err != nil {
		common.Logger.Errorf("beacon: round %d: encoding CT-RBC shards: %v", round, err)
		return
	}

	for rep := 0; rep < c.params.N; rep++ {
		recipient := replica.ID(rep)
		proof, err := tree.GenProof(rep)
		if err != nil {
			common.Logger.Errorf("beacon: round %d: proof for %s: %v", round, recipient, err)
			continue
		}
		shard := wire.CTRBCMsg{Round: round, Origin: c.params.MyID, Shard: shards[rep], Proof: proof}
		recipientMsg := wire.BeaconMsg{
			Origin:   c.params.MyID,
			Round:    round,
			BatchWSS: &perRecipient[rep],
			RootVec:  rootVec,
		}
		init := wire.CTRBCInit{Shard: shard, Recipient: recipientMsg}
		if recipient == c.params.MyID {
			c.ProcessCTRBCInit(c.params.MyID, init)
		} else {
			c.sendTo(recipient, round, init)
		}
	}
}

// ProcessCTRBCInit handles an INIT for secOrigin's CT-RBC instance:
// verify the shard's proof, record it, then echo it back out
// (ctrbc/state.rs process_init).
func (c *Context) ProcessCTRBCInit(secOrigin replica.ID, msg wire.CTRBCInit) {
	rb := c.roundBundle(msg.Shard.Round)
	hc, err := defaultHasher()
	if err != nil {
		return
	}
	if msg.Shard.Proof == nil || !VerifyShard(msg.Shard, msg.Shard.Proof.Root(), hc) {
		common.Logger.Warnf("beacon: dropping INIT from %s: %v", secOrigin, ErrBadMerkleProof)
		return
	}
	if msg.Recipient.BatchWSS != nil && !VerifyMasterRoot(msg.Recipient.RootVec, msg.Recipient.BatchWSS.MasterRoot, hc) {
		common.Logger.Warnf("beacon: dropping INIT from %s: master root mismatch", secOrigin)
		return
	}
	rb.AddMessage(msg.Recipient, msg.Shard)
	c.broadcast(msg.Shard.Round, wire.CTRBCEcho{Shard: msg.Shard})
	c.ProcessCTRBCEcho(msg.Shard.Round, secOrigin, c.params.MyID, msg.Shard)
}

// ProcessCTRBCEcho records echoSender's echo and, on reaching n-f
// matching echoes, moves the instance to READY (ctrbc/state.rs
// process_echo).
func (c *Context) ProcessCTRBCEcho(round uint32, secOrigin, echoSender replica.ID, shard wire.CTRBCMsg) {
	rb := c.roundBundle(round)
	hc, err := defaultHasher()
	if err != nil {
		return
	}
	entry, ok := rb.msgs[secOrigin]
	if ok {
		root := entry.shard.Proof.Root()
		if !VerifyShard(shard, root, hc) {
			common.Logger.Warnf("beacon: dropping ECHO for %s from %s: %v", secOrigin, echoSender, ErrBadShardRoot)
			return
		}
	}
	rb.AddEcho(secOrigin, echoSender, shard)
	broadcast, ok, err := rb.EchoCheck(secOrigin, c.params.N, c.params.F, c.params.Threshold()-1)
	if err != nil {
		common.Logger.Errorf("beacon: round %d: echo check for %s: %v", round, secOrigin, err)
		return
	}
	if !ok {
		return
	}
	c.handleRBCBroadcastVerified(round, secOrigin, broadcast, shard)
	c.broadcast(round, wire.CTRBCReady{Shard: shard})
	c.ProcessCTRBCReady(round, secOrigin, c.params.MyID, shard)
}

// ProcessCTRBCReady records readyOrigin's READY, amplifying at f+1 and,
// once reconstruction succeeds at n-f, broadcasting RECONSTRUCT with
// this replica's own shard (ctrbc/state.rs process_ready). Termination
// itself happens only once n-f RECONSTRUCT messages confirm the root
// (see ProcessCTRBCReconstruct), per spec.md §4.3's three-phase design.
func (c *Context) ProcessCTRBCReady(round uint32, secOrigin, readyOrigin replica.ID, shard wire.CTRBCMsg) {
	rb := c.roundBundle(round)
	hc, err := defaultHasher()
	if err != nil {
		return
	}
	entry, ok := rb.msgs[secOrigin]
	if ok {
		root := entry.shard.Proof.Root()
		if !VerifyShard(shard, root, hc) {
			common.Logger.Warnf("beacon: dropping READY for %s from %s: %v", secOrigin, readyOrigin, ErrBadShardRoot)
			return
		}
	}
	rb.AddReady(secOrigin, readyOrigin, shard)
	broadcast, ok, threshold, err := rb.ReadyCheck(secOrigin, c.params.N, c.params.F, c.params.Threshold()-1)
	if err != nil {
		common.Logger.Errorf("beacon: round %d: ready check for %s: %v", round, secOrigin, err)
		return
	}
	if !ok {
		return
	}
	c.handleRBCBroadcastVerified(round, secOrigin, broadcast, shard)
	if threshold == c.params.F+1 {
		c.broadcast(round, wire.CTRBCReady{Shard: shard})
		return
	}
	// threshold == n-f: reconstruction has occurred; broadcast this
	// replica's own shard for secOrigin's instance as RECONSTRUCT.
	mine, haveOwn := rb.msgs[secOrigin]
	if !haveOwn {
		return
	}
	reconShard := wire.CTRBCMsg{Round: round, Origin: secOrigin, Shard: mine.shard.Shard, Proof: mine.shard.Proof}
	c.broadcast(round, wire.CTRBCReconstruct{Shard: reconShard})
	c.ProcessCTRBCReconstruct(round, secOrigin, c.params.MyID, mine.shard.Shard)
}

// ProcessCTRBCReconstruct records reconOrigin's RECONSTRUCT shard and,
// once n-f have arrived and the n-f READY threshold was already
// crossed, erasure-decodes and re-verifies the root one final time
// before adding secOrigin to terminated_secrets (spec.md §4.3 "On
// RECONSTRUCT(sender)"; ctrbc/state.rs process_reconstruct_message).
func (c *Context) ProcessCTRBCReconstruct(round uint32, secOrigin, sender replica.ID, shard []byte) {
	rb := c.roundBundle(round)
	rb.AddRecon(secOrigin, sender, shard)
	_, ok, err := rb.VerifyReconstructRBC(secOrigin, c.params.N, c.params.F, c.params.Threshold()-1)
	if err != nil {
		common.Logger.Errorf("beacon: round %d: reconstruct check for %s: %v", round, secOrigin, err)
		return
	}
	if !ok {
		return
	}
	c.finishCTRBC(round, secOrigin)
}

func (c *Context) handleRBCBroadcastVerified(round uint32, secOrigin replica.ID, broadcast wire.Broadcast, shard wire.CTRBCMsg) {
	rb := c.roundBundle(round)
	if _, ok := rb.msgs[secOrigin]; !ok {
		rb.msgs[secOrigin] = ctrbcEntry{
			beacon: wire.BeaconMsg{Origin: broadcast.Origin, Round: broadcast.Round, RootVec: broadcast.RootVec, AAVals: broadcast.AAVals},
			shard:  shard,
		}
	}
}

func (c *Context) finishCTRBC(round uint32, secOrigin replica.ID) {
	rb := c.roundBundle(round)
	rb.Transform(secOrigin)
	c.checkTerminatedQuorum(round)
}

// ProcessEnvelope authenticates and dispatches one inbound message
// (spec.md §6 "Reject with log warning if MAC verification fails").
func (c *Context) ProcessEnvelope(env *wire.Envelope) error {
	if env.Round == IgnoreRound {
		return nil
	}
	key, ok := c.params.MACKeys[env.Sender]
	if !ok {
		common.Logger.Warnf("beacon: dropping message from unknown sender %s", env.Sender)
		return nil
	}
	msg, err := wire.Open(env, key)
	if err != nil {
		common.Logger.Warnf("beacon: dropping message from %s: %v", env.Sender, err)
		return nil
	}
	c.dispatch(env.Sender, env.Round, msg)
	return nil
}

// dispatch routes one authenticated CoinMsg to its subsystem handler
// (ctrbc/process.rs choose_fn, generalized from a match over a
// protobuf oneof to a Go type switch over the CoinMsg interface).
func (c *Context) dispatch(sender replica.ID, round uint32, msg wire.CoinMsg) {
	switch m := msg.(type) {
	case wire.CTRBCInit:
		c.ProcessCTRBCInit(m.Shard.Origin, m)
	case wire.CTRBCEcho:
		c.ProcessCTRBCEcho(round, m.Shard.Origin, sender, m.Shard)
	case wire.CTRBCReady:
		c.ProcessCTRBCReady(round, m.Shard.Origin, sender, m.Shard)
	case wire.CTRBCReconstruct:
		c.ProcessCTRBCReconstruct(round, m.Shard.Origin, sender, m.Shard.Shard)
	case wire.GatherEcho:
		c.ProcessGatherEcho(round, sender, m.Witness)
	case wire.GatherEcho2:
		c.ProcessGatherEcho2(round, sender, m.Witness)
	case wire.BinaryAAEcho:
		c.ProcessBinaryAAEcho(round, sender, m.Rounds)
	case wire.BinaryAAEcho2:
		c.ProcessBinaryAAEcho2(round, sender, m.Rounds)
	case wire.BeaconConstruct:
		c.ProcessBeaconConstruct(round, sender, m)
	case wire.BeaconValue:
		// gossip of a coin this node may not have reconstructed itself;
		// accepting a single peer's value into the local cache would
		// let one Byzantine sender poison a late joiner's answer, so
		// this is left unconsumed here. A node that ran the round
		// itself always has the value from its own emitBeacon cache
		// write; see coinCache.
	default:
		common.Logger.Warnf("beacon: unrecognized message type from %s", sender)
	}
}

// emitBeacon delivers a reconstructed coin to the output channel (if a
// request is already waiting on this slot), gossips it for late
// joiners, and caches it so a request that arrives after this round
// clears is answered instantly instead of blocking forever (spec.md §8
// "late joiner requests past round").
func (c *Context) emitBeacon(round uint32, coinNumber int, value *big.Int) {
	c.broadcast(round, wire.BeaconValue{CoinNumber: coinNumber, Round: round, Value: value.Bytes()})

	low := lowBytes(value)
	byRound, ok := c.coinCache[round]
	if !ok {
		byRound = make(map[int][16]byte)
		c.coinCache[round] = byRound
	}
	byRound[coinNumber] = low

	byCoin, ok := c.slots[round]
	if !ok {
		return
	}
	requestID, ok := byCoin[coinNumber]
	if !ok {
		return
	}
	delete(byCoin, coinNumber)
	c.output <- BeaconOutput{RequestID: requestID, Value: low}
}

func lowBytes(value *big.Int) [16]byte {
	full := value.Bytes()
	var low [16]byte
	if len(full) >= 16 {
		copy(low[:], full[len(full)-16:])
	} else {
		copy(low[16-len(full):], full)
	}
	return low
}

// clearRound tears down round's entire state once every coin has been
// emitted (spec.md §5 "Resource policy", ctrbc/state.rs _clear).
func (c *Context) clearRound(round uint32) {
	delete(c.rounds, round)
	delete(c.slots, round)
	c.cancels.Drop(round)
}
