// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

// Package replica describes the fixed set of participants in a round
// of the beacon protocol: their integer identities, the network
// addresses used to reach them, and the preshared MAC keys used to
// authenticate messages between any two of them.
package replica

import "fmt"

// ID is a replica's identity: a small integer in [0, n). Unlike a
// public-key-derived party identity, replicas here are preconfigured
// and carry no cryptographic material of their own; authenticity
// between any pair of replicas comes from a preshared symmetric key
// (see Parameters.MACKeys), not from this ID.
type ID uint32

func (r ID) String() string { return fmt.Sprintf("replica[%d]", r) }

// Set is the ordered collection of every replica known to the local
// process, exactly the PeerContext role the teacher's tss package
// plays for EC-keyed parties, generalized to plain integer ids.
type Set struct {
	ids []ID
}

// NewSet builds a Set containing replicas 0..n-1.
func NewSet(n int) *Set {
	ids := make([]ID, n)
	for i := range ids {
		ids[i] = ID(i)
	}
	return &Set{ids: ids}
}

func (s *Set) IDs() []ID { return s.ids }
func (s *Set) Len() int  { return len(s.ids) }

func (s *Set) Contains(id ID) bool {
	return uint32(id) < uint32(len(s.ids))
}

// Exclude returns every id in the set other than self.
func (s *Set) Exclude(self ID) []ID {
	out := make([]ID, 0, len(s.ids)-1)
	for _, id := range s.ids {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}
