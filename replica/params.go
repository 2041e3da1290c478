// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package replica

import (
	"encoding/hex"
	"math"
	"math/big"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultSecretPrime is the default modulus for BAwVSS secrets: chosen
// so a brute-force coin-guessing attack succeeds with probability
// under 5*10^-9 (spec.md §3).
var DefaultSecretPrime, _ = new(big.Int).SetString("685373784908497", 10)

// DefaultNoncePrime is the (much larger) modulus used for the nonce
// shares accompanying every secret share.
var DefaultNoncePrime, _ = new(big.Int).SetString(
	"7540413808418633958282852050178074861680062438274790246382209349819426274715021974571290841231123616713073551439231076214330138511767072438590219824049681", 10)

// defaultCommitteeSizes is the table of AnyTrust committee sizes this
// system uses when Parameters.CommitteeSize is left at 0.
var defaultCommitteeSizes = map[int]int{
	4:   3,
	16:  11,
	40:  27,
	64:  43,
	112: 49,
	136: 51,
	160: 54,
}

// DefaultCommitteeSize looks up the hardcoded committee size for n
// replicas, falling back to 2f+1 (the protocol's own floor, spec.md §2
// step 6) when n isn't in the table.
func DefaultCommitteeSize(n, f int) int {
	if size, ok := defaultCommitteeSizes[n]; ok {
		return size
	}
	return 2*f + 1
}

// DefaultRoundsAA derives the number of Bundled Binary Approximate
// Agreement sweep rounds needed to converge within epsilon = (1024*1024)/(n*f),
// matching the original's rounds_aa = ceil(65.0 - log2(epsilon)) (spec.md
// glossary "L (rounds_aa)").
func DefaultRoundsAA(n, f int) uint32 {
	epsilon := float64(1024*1024) / float64(n*f)
	rounds := math.Ceil(65.0 - math.Log2(epsilon))
	if rounds < 1 {
		rounds = 1
	}
	return uint32(rounds)
}

// Parameters is the full configuration of one replica's view of a
// running beacon instance (spec.md §6 "Config inputs").
type Parameters struct {
	N             int      `yaml:"n"`
	F             int      `yaml:"f"`
	MyID          ID       `yaml:"my_id"`
	Frequency     uint32   `yaml:"frequency"`
	BatchSize     int      `yaml:"batch_size"`
	MaxRounds     uint32   `yaml:"max_rounds"`
	CommitteeSize int      `yaml:"committee_size"`
	RoundsAA      uint32   `yaml:"rounds_aa"`
	SecretPrime   *big.Int `yaml:"-"`
	NoncePrime    *big.Int `yaml:"-"`

	SecretPrimeStr string        `yaml:"secret_prime"`
	NoncePrimeStr  string        `yaml:"nonce_prime"`
	PeerAddrs      map[ID]string `yaml:"peers"`
	MACKeysHex     map[ID]string `yaml:"mac_keys"`
	MACKeys        map[ID][]byte `yaml:"-"`

	// ControlAddr is the local address cmd/beacon-node listens on for
	// the line-based request protocol (replica/../netio); empty
	// disables the control listener.
	ControlAddr string `yaml:"control_addr"`
}

// Threshold returns t+1, the minimum number of shares/echoes/readies
// needed to act (t=f in this system, spec.md glossary).
func (p *Parameters) Threshold() int { return p.F + 1 }

// ShareAmount returns 3t+1, the Shamir share count per secret.
func (p *Parameters) ShareAmount() int { return 3*p.F + 1 }

// QuorumNF returns n-f, the broadcast/witness threshold used
// throughout CT-RBC, Gather and BBAA.
func (p *Parameters) QuorumNF() int { return p.N - p.F }

// LoadParameters reads a YAML configuration file and resolves its
// derived fields (primes, committee size defaults).
func LoadParameters(path string) (*Parameters, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "replica: reading config file")
	}
	var p Parameters
	if err := yaml.Unmarshal(bz, &p); err != nil {
		return nil, errors.Wrap(err, "replica: parsing config file")
	}
	if err := p.resolve(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Parameters) resolve() error {
	if p.N < 3*p.F+1 {
		return errors.Errorf("replica: n=%d must be >= 3f+1 (f=%d)", p.N, p.F)
	}
	if p.SecretPrimeStr != "" {
		prime, ok := new(big.Int).SetString(p.SecretPrimeStr, 10)
		if !ok {
			return errors.New("replica: secret_prime is not a valid decimal integer")
		}
		p.SecretPrime = prime
	} else {
		p.SecretPrime = DefaultSecretPrime
	}
	if p.NoncePrimeStr != "" {
		prime, ok := new(big.Int).SetString(p.NoncePrimeStr, 10)
		if !ok {
			return errors.New("replica: nonce_prime is not a valid decimal integer")
		}
		p.NoncePrime = prime
	} else {
		p.NoncePrime = DefaultNoncePrime
	}
	if p.CommitteeSize == 0 {
		p.CommitteeSize = DefaultCommitteeSize(p.N, p.F)
	}
	if p.RoundsAA == 0 {
		p.RoundsAA = DefaultRoundsAA(p.N, p.F)
	}
	if p.MaxRounds == 0 {
		p.MaxRounds = 20000
	}
	p.MACKeys = make(map[ID][]byte, len(p.MACKeysHex))
	for id, hexKey := range p.MACKeysHex {
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return errors.Wrapf(err, "replica: mac key for %s", id)
		}
		p.MACKeys[id] = key
	}
	return nil
}
