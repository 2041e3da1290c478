// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package shamir

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/hashrand/beacon/common"
)

// Share is one point (x, f(x)) of a Shamir-split polynomial.
type Share struct {
	X int
	Y *big.Int
}

// Scheme holds the parameters of a (threshold, share_amount) Shamir
// secret sharing instance over Z/primeZ. threshold is the minimum
// number of shares required to recover the secret (t+1 in spec terms);
// shareAmount is the total number of shares produced (3t+1 in spec terms).
type Scheme struct {
	Threshold   int
	ShareAmount int
	Prime       *big.Int
}

func NewScheme(threshold, shareAmount int, prime *big.Int) *Scheme {
	return &Scheme{Threshold: threshold, ShareAmount: shareAmount, Prime: prime}
}

// Split samples a degree-(threshold-1) polynomial with constant term
// secret and evaluates it at x = 1..shareAmount.
func (s *Scheme) Split(secret *big.Int) ([]Share, error) {
	if s.Threshold <= 0 || s.Threshold > s.ShareAmount {
		return nil, errors.New("shamir: threshold must be in (0, shareAmount]")
	}
	poly := make([]*big.Int, s.Threshold)
	poly[0] = new(big.Int).Mod(secret, s.Prime)
	for i := 1; i < s.Threshold; i++ {
		poly[i] = common.GetRandomFieldElement(s.Prime)
	}
	shares := make([]Share, s.ShareAmount)
	for x := 1; x <= s.ShareAmount; x++ {
		shares[x-1] = Share{X: x, Y: s.evaluate(poly, x)}
	}
	return shares, nil
}

// evaluate computes poly(x) mod prime via Horner's rule.
func (s *Scheme) evaluate(poly []*big.Int, x int) *big.Int {
	xBig := big.NewInt(int64(x))
	mod := common.ModInt(s.Prime)
	sum := big.NewInt(0)
	for i := len(poly) - 1; i >= 0; i-- {
		sum = mod.Add(mod.Mul(xBig, sum), poly[i])
	}
	return sum
}

// Recover Lagrange-interpolates the polynomial at x=0 from exactly
// Threshold shares with distinct X values.
func (s *Scheme) Recover(shares []Share) (*big.Int, error) {
	if len(shares) != s.Threshold {
		return nil, errors.Errorf("shamir: recover requires exactly %d shares, got %d", s.Threshold, len(shares))
	}
	mod := common.ModInt(s.Prime)
	result := big.NewInt(0)
	for i, share := range shares {
		num := big.NewInt(1)
		den := big.NewInt(1)
		xi := big.NewInt(int64(share.X))
		for j, other := range shares {
			if i == j {
				continue
			}
			xj := big.NewInt(int64(other.X))
			num = mod.Mul(num, new(big.Int).Neg(xj))
			diff := new(big.Int).Sub(xi, xj)
			den = mod.Mul(den, diff)
		}
		invDen := mod.ModInverse(den)
		if invDen == nil {
			return nil, errors.New("shamir: duplicate x coordinate in share set")
		}
		term := mod.Mul(mod.Mul(num, invDen), share.Y)
		result = mod.Add(result, term)
	}
	return result, nil
}
