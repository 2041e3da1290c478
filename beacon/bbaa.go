package beacon

import (
	"math/big"
	"sort"

	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

// startNextAARound seeds Bundled Binary Approximate Agreement's first
// round for coinRound: every instance index i (one per committee
// member) starts at 2^rounds_aa if i's secret sharing terminated
// locally, else 0 (spec.md §4.6, grounded on bun_appxcon.rs's initial
// seeding when round%frequency==0).
func (c *Context) startNextAARound(coinRound uint32) {
	rb := c.roundBundle(coinRound)
	seed := make([]wire.AAValue, 0, len(rb.Committee))
	ceiling := new(big.Int).Lsh(big.NewInt(1), uint(c.params.RoundsAA))
	for _, idx := range rb.Committee {
		v := big.NewInt(0)
		if rb.Terminated(idx) {
			v = ceiling
		}
		seed = append(seed, wire.AAValue{Index: idx, Value: v.Bytes()})
	}
	c.seedAARound(coinRound, 0, seed)
}

// seedAARound records this node's own ECHO for aaRound's instances and
// broadcasts it.
func (c *Context) seedAARound(coinRound, aaRound uint32, vals []wire.AAValue) {
	rb := c.roundBundle(coinRound)
	rs := rb.aaRoundState(aaRound)
	indices, values := unpackAAValues(vals)
	rs.AddEcho(indices, values, c.params.MyID, c.params.N, c.params.F)
	c.broadcast(coinRound, wire.BinaryAAEcho{Rounds: []wire.AAPiggyback{{Round: aaRound, Vals: vals}}})
}

func (rb *RoundBundle) aaRoundState(aaRound uint32) *RoundState {
	rs, ok := rb.RoundState[aaRound]
	if !ok {
		rs = NewRoundState()
		rb.RoundState[aaRound] = rs
	}
	return rs
}

// ProcessBinaryAAEcho handles an incoming ECHO, which may piggyback
// several in-flight AA rounds for the same coin round (spec.md §4.6,
// §6).
func (c *Context) ProcessBinaryAAEcho(coinRound uint32, sender replica.ID, rounds []wire.AAPiggyback) {
	rb := c.roundBundle(coinRound)
	for _, pb := range rounds {
		rs := rb.aaRoundState(pb.Round)
		indices, values := unpackAAValues(pb.Vals)
		echo1Idx, echo2Idx, echo1Vals, echo2Vals := rs.AddEcho(indices, values, sender, c.params.N, c.params.F)
		if len(echo1Idx) > 0 {
			vals := packAAValues(echo1Idx, echo1Vals)
			c.broadcast(coinRound, wire.BinaryAAEcho{Rounds: []wire.AAPiggyback{{Round: pb.Round, Vals: vals}}})
			c.ProcessBinaryAAEcho(coinRound, c.params.MyID, []wire.AAPiggyback{{Round: pb.Round, Vals: vals}})
		}
		if len(echo2Idx) > 0 {
			vals := packAAValues(echo2Idx, echo2Vals)
			c.broadcast(coinRound, wire.BinaryAAEcho2{Rounds: []wire.AAPiggyback{{Round: pb.Round, Vals: vals}}})
			c.ProcessBinaryAAEcho2(coinRound, c.params.MyID, []wire.AAPiggyback{{Round: pb.Round, Vals: vals}})
		}
		c.checkAARoundTermination(coinRound, pb.Round)
	}
}

// ProcessBinaryAAEcho2 handles an incoming ECHO2.
func (c *Context) ProcessBinaryAAEcho2(coinRound uint32, sender replica.ID, rounds []wire.AAPiggyback) {
	rb := c.roundBundle(coinRound)
	for _, pb := range rounds {
		rs := rb.aaRoundState(pb.Round)
		indices, values := unpackAAValues(pb.Vals)
		rs.AddEcho2(indices, values, sender, c.params.N, c.params.F)
		c.checkAARoundTermination(coinRound, pb.Round)
	}
}

// checkAARoundTermination fires once every instance in aaRound has a
// term_vals entry: this node's own vector is recorded as its
// contribution to the next round's cross-peer aggregation, and (once
// the sweep has run rounds_aa times) the heavy set is finalized and
// reconstruction begins (spec.md §4.6-4.7).
func (c *Context) checkAARoundTermination(coinRound, aaRound uint32) {
	rb := c.roundBundle(coinRound)
	rs := rb.RoundState[aaRound]
	if rs == nil || len(rs.TermVals) < c.params.N {
		return
	}
	ownVals := make([]wire.AAValue, 0, len(rs.TermVals))
	for idx, v := range rs.TermVals {
		ownVals = append(ownVals, wire.AAValue{Index: idx, Value: v.Bytes()})
	}
	c.recordAAContribution(coinRound, aaRound, c.params.MyID, ownVals)

	if aaRound+1 >= c.params.RoundsAA {
		c.finalizeHeavySet(coinRound, rs)
		return
	}
	c.tryAdvanceAARound(coinRound, aaRound)
}

// recordAAContribution records origin's observed term_vals vector for
// (coinRound, aaRound) in AllRoundVals, the same table Transform fills
// from a terminated peer's BeaconMsg piggyback; checkAARoundTermination
// calls it with this node's own vector.
func (c *Context) recordAAContribution(coinRound, aaRound uint32, origin replica.ID, vals []wire.AAValue) {
	rb := c.roundBundle(coinRound)
	byRound, ok := rb.AllRoundVals[origin]
	if !ok {
		byRound = make(map[uint32][]wire.AAValue)
		rb.AllRoundVals[origin] = byRound
	}
	byRound[aaRound] = vals
	c.tryAdvanceAARound(coinRound, aaRound)
}

// tryAdvanceAARound seeds aaRound+1 once n-f peers (including this
// node) have reported their aaRound vector, computing each instance's
// next estimate as the trimmed-range midpoint of the reported values
// (spec.md §4.6 "(sorted[t]+sorted[n-t-1])/2 over the collected
// per-index values from all peers").
func (c *Context) tryAdvanceAARound(coinRound, aaRound uint32) {
	rb := c.roundBundle(coinRound)
	if _, already := rb.RoundState[aaRound+1]; already {
		return
	}
	reporters := 0
	perIndex := make(map[replica.ID][]*big.Int)
	for _, byRound := range rb.AllRoundVals {
		vals, ok := byRound[aaRound]
		if !ok {
			continue
		}
		reporters++
		for _, av := range vals {
			perIndex[av.Index] = append(perIndex[av.Index], new(big.Int).SetBytes(av.Value))
		}
	}
	if reporters < c.params.QuorumNF() {
		return
	}
	t := c.params.F
	n := c.params.N
	seed := make([]wire.AAValue, 0, len(rb.Committee))
	for _, idx := range rb.Committee {
		vals := perIndex[idx]
		if len(vals) == 0 {
			continue
		}
		sort.Slice(vals, func(i, j int) bool { return vals[i].Cmp(vals[j]) < 0 })
		lo := t
		if lo >= len(vals) {
			lo = len(vals) - 1
		}
		hi := n - t - 1
		if hi >= len(vals) {
			hi = len(vals) - 1
		}
		seed = append(seed, wire.AAValue{Index: idx, Value: midpoint(vals[lo], vals[hi]).Bytes()})
	}
	c.seedAARound(coinRound, aaRound+1, seed)
}

// finalizeHeavySet records which committee members' BAwVSS terminated
// according to the converged BBAA sweep (non-zero term value) and
// starts reconstruction for coin 0 (reserved for committee election).
func (c *Context) finalizeHeavySet(coinRound uint32, rs *RoundState) {
	rb := c.roundBundle(coinRound)
	if rb.TermVals == nil {
		rb.TermVals = make(map[replica.ID]*big.Int)
	}
	for idx, v := range rs.TermVals {
		if v.Sign() > 0 {
			rb.TermVals[idx] = v
		}
	}
	c.ReconstructBeacon(coinRound, 0)
}

func unpackAAValues(vals []wire.AAValue) ([]replica.ID, []*big.Int) {
	idx := make([]replica.ID, len(vals))
	v := make([]*big.Int, len(vals))
	for i, av := range vals {
		idx[i] = av.Index
		v[i] = new(big.Int).SetBytes(av.Value)
	}
	return idx, v
}

func packAAValues(idx []replica.ID, vals []*big.Int) []wire.AAValue {
	out := make([]wire.AAValue, len(idx))
	for i := range idx {
		out[i] = wire.AAValue{Index: idx[i], Value: vals[i].Bytes()}
	}
	return out
}
