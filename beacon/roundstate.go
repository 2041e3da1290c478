package beacon

import (
	"math/big"

	"github.com/hashrand/beacon/replica"
)

// aaCandidate is one bivalent value a single Binary Approximate
// Agreement instance is currently tracking: the value itself and the
// sets of replicas that have echoed/echoed2 it, plus one-shot flags
// recording whether this node has already relayed an ECHO/ECHO2 for it
// (roundvals.rs RoundState.state tuple).
type aaCandidate struct {
	value      *big.Int
	echoed     map[replica.ID]struct{}
	echoed2    map[replica.ID]struct{}
	sentEcho1  bool
	sentEcho2  bool
}

// aaInstance is the per-instance state of one replica's Binary
// Approximate Agreement run within a round: up to two candidate values
// (the protocol only ever needs to track a bivalent choice) and the set
// of distinct values that reached n-f ECHOs. The instance's termination
// value is kept in RoundState.TermVals.
type aaInstance struct {
	candidates []*aaCandidate
	matured    []*big.Int // values that reached n-f ECHOs, in arrival order
}

// RoundState tracks every parallel Binary Approximate Agreement
// instance (one per replica index) running within a single Bundled AA
// round (spec.md §4.6; grounded on roundvals.rs RoundState).
type RoundState struct {
	instances map[replica.ID]*aaInstance
	TermVals  map[replica.ID]*big.Int
}

// NewRoundState returns an empty RoundState; instances are created
// lazily as their first ECHO/ECHO2 arrives (matching
// RoundState::new_with_echo/new_with_echo2's lazy map population).
func NewRoundState() *RoundState {
	return &RoundState{
		instances: make(map[replica.ID]*aaInstance),
		TermVals:  make(map[replica.ID]*big.Int),
	}
}

func (rs *RoundState) instance(idx replica.ID) *aaInstance {
	inst, ok := rs.instances[idx]
	if !ok {
		inst = &aaInstance{}
		rs.instances[idx] = inst
	}
	return inst
}

func newCandidate(v *big.Int) *aaCandidate {
	return &aaCandidate{
		value:   v,
		echoed:  map[replica.ID]struct{}{},
		echoed2: map[replica.ID]struct{}{},
	}
}

// AddEcho processes one ECHO message's (instance index, value) pairs,
// returning the (instance, value) pairs that newly crossed t+1 (to
// relay as this node's own ECHO) and n-f (to relay as ECHO2) for each.
// msgs whose instance already has a termination value are ignored.
func (rs *RoundState) AddEcho(msgs []replica.ID, vals []*big.Int, sender replica.ID, numNodes, numFaults int) (echo1, echo2 []replica.ID, echo1Vals, echo2Vals []*big.Int) {
	for i, idx := range msgs {
		if _, done := rs.TermVals[idx]; done {
			continue
		}
		v := vals[i]
		inst := rs.instance(idx)
		c := inst.find(v)
		if c == nil {
			continue
		}
		c.echoed[sender] = struct{}{}
		if len(c.echoed) >= numFaults+1 && !c.sentEcho1 {
			c.sentEcho1 = true
			echo1 = append(echo1, idx)
			echo1Vals = append(echo1Vals, v)
		} else if len(c.echoed) >= numNodes-numFaults && !c.sentEcho2 {
			c.sentEcho2 = true
			echo2 = append(echo2, idx)
			echo2Vals = append(echo2Vals, v)
			inst.matureIfNew(v)
			if len(inst.matured) == 2 {
				rs.TermVals[idx] = midpoint(inst.matured[0], inst.matured[1])
			}
		}
	}
	return
}

// AddEcho2 processes one ECHO2 message; an instance terminates outright
// once a single value collects n-f ECHO2s (roundvals.rs add_echo2).
func (rs *RoundState) AddEcho2(msgs []replica.ID, vals []*big.Int, sender replica.ID, numNodes, numFaults int) {
	for i, idx := range msgs {
		if _, done := rs.TermVals[idx]; done {
			continue
		}
		v := vals[i]
		inst := rs.instance(idx)
		c := inst.find(v)
		if c == nil {
			continue
		}
		c.echoed2[sender] = struct{}{}
		if len(c.echoed2) >= numNodes-numFaults {
			rs.TermVals[idx] = new(big.Int).Set(v)
		}
	}
}

// find returns the candidate tracking value v, creating it as a new
// bivalent slot if not already present. A correct run never needs a
// third distinct value per instance; once two slots exist, find
// returns nil for any other value and the caller drops that message.
func (inst *aaInstance) find(v *big.Int) *aaCandidate {
	for _, c := range inst.candidates {
		if c.value.Cmp(v) == 0 {
			return c
		}
	}
	if len(inst.candidates) >= 2 {
		return nil
	}
	c := newCandidate(v)
	inst.candidates = append(inst.candidates, c)
	return c
}

func (inst *aaInstance) matureIfNew(v *big.Int) {
	for _, m := range inst.matured {
		if m.Cmp(v) == 0 {
			return
		}
	}
	inst.matured = append(inst.matured, v)
}

func midpoint(a, b *big.Int) *big.Int {
	sum := new(big.Int).Add(a, b)
	return sum.Rsh(sum, 1)
}
