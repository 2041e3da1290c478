package e2e_test

import (
	"github.com/hashrand/beacon/beacon"
	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

// network wires a small set of in-process beacon.Context replicas
// together with a fully synchronous transport: every SendTo/Broadcast
// call delivers its envelope by calling the recipient's
// ProcessEnvelope directly, so a single RequestCoin call cascades
// through CT-RBC, Gather, BBAA and reconstruction before returning.
type network struct {
	nodes   []*beacon.Context
	outputs []chan beacon.BeaconOutput
	key     []byte
}

func newNetwork(n, f, batchSize int, frequency, roundsAA uint32, committeeSize int) *network {
	net := &network{
		nodes:   make([]*beacon.Context, n),
		outputs: make([]chan beacon.BeaconOutput, n),
		key:     []byte("shared preshared key for testing"),
	}
	for i := 0; i < n; i++ {
		macKeys := make(map[replica.ID][]byte, n)
		for j := 0; j < n; j++ {
			macKeys[replica.ID(j)] = net.key
		}
		params := &replica.Parameters{
			N:             n,
			F:             f,
			MyID:          replica.ID(i),
			Frequency:     frequency,
			BatchSize:     batchSize,
			CommitteeSize: committeeSize,
			RoundsAA:      roundsAA,
			SecretPrime:   replica.DefaultSecretPrime,
			NoncePrime:    replica.DefaultNoncePrime,
			MACKeys:       macKeys,
		}
		out := make(chan beacon.BeaconOutput, 32)
		net.outputs[i] = out
		net.nodes[i] = beacon.NewContext(params, &nodeTransport{net: net, self: replica.ID(i)}, out)
	}
	return net
}

func (net *network) deliver(sender, recipient replica.ID, round uint32, msg wire.CoinMsg) {
	env, err := wire.Seal(sender, round, msg, net.key)
	if err != nil {
		panic(err)
	}
	if err := net.nodes[recipient].ProcessEnvelope(env); err != nil {
		panic(err)
	}
}

// requestAll calls RequestCoin(id) on the given subset of replicas, in
// order; a dealer absent from replicas never starts its own round but
// still participates passively in everyone else's.
func (net *network) requestAll(id uint32, replicas ...int) {
	for _, i := range replicas {
		net.nodes[i].RequestCoin(id)
	}
}

func (net *network) allReplicas() []int {
	out := make([]int, len(net.nodes))
	for i := range out {
		out[i] = i
	}
	return out
}

type nodeTransport struct {
	net  *network
	self replica.ID
}

func (t *nodeTransport) SendTo(recipient replica.ID, round uint32, msg wire.CoinMsg) replica.CancelFunc {
	t.net.deliver(t.self, recipient, round, msg)
	return nil
}

func (t *nodeTransport) Broadcast(round uint32, msg wire.CoinMsg) replica.CancelFunc {
	for i := range t.net.nodes {
		if replica.ID(i) == t.self {
			continue
		}
		t.net.deliver(t.self, replica.ID(i), round, msg)
	}
	return nil
}
