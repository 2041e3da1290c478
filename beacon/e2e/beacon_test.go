package e2e_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hashrand/beacon/beacon"
)

var _ = Describe("a full beacon round", func() {
	const n, f, batchSize = 4, 1, 2

	It("delivers the same coin to every honest replica when all four dealers are honest", func() {
		net := newNetwork(n, f, batchSize, 1, 3, n)
		all := net.allReplicas()
		net.requestAll(100, all...)

		var first beacon.BeaconOutput
		for k, i := range all {
			var out beacon.BeaconOutput
			Expect(net.outputs[i]).To(Receive(&out))
			Expect(out.RequestID).To(Equal(uint32(100)))
			if k == 0 {
				first = out
			} else {
				Expect(out.Value).To(Equal(first.Value), "every honest replica must recover the same coin")
			}
		}
	})

	It("still reaches agreement when one dealer never broadcasts", func() {
		net := newNetwork(n, f, batchSize, 1, 3, n)
		honest := []int{0, 1, 2}
		net.requestAll(200, honest...)

		var first beacon.BeaconOutput
		for k, i := range honest {
			var out beacon.BeaconOutput
			Expect(net.outputs[i]).To(Receive(&out))
			Expect(out.RequestID).To(Equal(uint32(200)))
			if k == 0 {
				first = out
			} else {
				Expect(out.Value).To(Equal(first.Value), "every honest replica must recover the same coin")
			}
		}
	})

	It("answers a request that arrives after its round already finished from cache", func() {
		net := newNetwork(n, f, batchSize, 1, 3, n)
		all := net.allReplicas()

		// batchSize=2 reserves coin 0 for committee election, leaving
		// exactly one usable coin slot per round. By the time every
		// replica has processed request 10, round 0 and its rollover
		// into round 1 may already have fully reconstructed on some
		// replicas before request 11 is ever registered there.
		net.requestAll(10, all...)
		net.requestAll(11, all...)

		for _, i := range all {
			var firstOut, secondOut beacon.BeaconOutput
			Expect(net.outputs[i]).To(Receive(&firstOut))
			Expect(net.outputs[i]).To(Receive(&secondOut))
			Expect([]uint32{firstOut.RequestID, secondOut.RequestID}).To(ConsistOf(uint32(10), uint32(11)))
		}
	})
})
