package beacon

import (
	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

// checkTerminatedQuorum fires GatherEcho the moment terminated_secrets
// first reaches n-f, starting this round's Gather phase (spec.md §4.5
// "When |terminated_secrets| first reaches n-f").
func (c *Context) checkTerminatedQuorum(round uint32) {
	rb := c.roundBundle(round)
	if rb.SendW1 || len(rb.terminated) < c.params.QuorumNF() {
		return
	}
	rb.SendW1 = true
	witness := rb.TerminatedSet()
	c.broadcast(round, wire.GatherEcho{Round: round, Witness: witness})
	c.ProcessGatherEcho(round, c.params.MyID, witness)
}

// ProcessGatherEcho records echoSender's witness1 set (the set of
// origins whose CT-RBC it has seen terminate) for round, then
// re-evaluates whether this node can move forward (gather/gather.rs
// process_gatherecho).
func (c *Context) ProcessGatherEcho(round uint32, echoSender replica.ID, witness []replica.ID) {
	rb := c.roundBundle(round)
	if rb.SendW2 {
		return // protocol already moved on to ECHO2, ignore stale echo1
	}
	rb.witness1[echoSender] = witness
	c.witnessCheck(round)
}

// ProcessGatherEcho2 records echoSender's witness2 set.
func (c *Context) ProcessGatherEcho2(round uint32, echoSender replica.ID, witness []replica.ID) {
	rb := c.roundBundle(round)
	rb.witness2[echoSender] = witness
	c.witnessCheck(round)
}

// witnessCheck is the Gather decision point: once n-f replicas have
// echoed a witness set every one of whose members has itself
// terminated locally, this node advances — either to ECHO2 (in a
// sharing round, round % frequency == 0) or straight into Bundled
// Binary Approximate Agreement (gather/gather.rs witness_check).
func (c *Context) witnessCheck(round uint32) {
	rb, ok := c.rounds[round]
	if !ok {
		return
	}
	accepted := 0
	var source map[replica.ID][]replica.ID
	if !rb.SendW2 {
		source = rb.witness1
	} else {
		source = rb.witness2
	}
	for _, indices := range source {
		if c.allTerminated(rb, indices) {
			accepted++
		}
	}
	if accepted < c.params.QuorumNF() {
		return
	}
	if !rb.SendW2 {
		if round%c.params.Frequency == 0 {
			rb.SendW2 = true
			witness := rb.TerminatedSet()
			c.broadcast(round, gatherEcho2Msg(round, witness))
			c.ProcessGatherEcho2(round, c.params.MyID, witness)
		} else if !rb.StartedBAA {
			rb.StartedBAA = true
			c.startNextAARound(round)
		}
		return
	}
	if !rb.StartedBAA {
		rb.StartedBAA = true
		c.startNextAARound(round)
	}
}

func (c *Context) allTerminated(rb *RoundBundle, indices []replica.ID) bool {
	for _, idx := range indices {
		if !rb.Terminated(idx) {
			return false
		}
	}
	return true
}
