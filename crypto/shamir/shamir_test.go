// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package shamir_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hashrand/beacon/crypto/shamir"
)

var testPrime = big.NewInt(685373784908497)

func TestSplitRecoverThresholdSubset(t *testing.T) {
	s := shamir.NewScheme(3, 10, testPrime) // t+1=3, n=10
	secret := big.NewInt(424242)
	shares, err := s.Split(secret)
	assert.NoError(t, err)
	assert.Len(t, shares, 10)

	recovered, err := s.Recover(shares[2:5])
	assert.NoError(t, err)
	assert.Zero(t, secret.Cmp(recovered))

	recovered2, err := s.Recover([]shamir.Share{shares[0], shares[5], shares[9]})
	assert.NoError(t, err)
	assert.Zero(t, secret.Cmp(recovered2))
}

func TestRecoverWrongCountFails(t *testing.T) {
	s := shamir.NewScheme(3, 10, testPrime)
	shares, _ := s.Split(big.NewInt(7))
	_, err := s.Recover(shares[:2])
	assert.Error(t, err)
}

func TestSplitRecoverZeroSecret(t *testing.T) {
	s := shamir.NewScheme(2, 4, testPrime)
	shares, err := s.Split(big.NewInt(0))
	assert.NoError(t, err)
	recovered, err := s.Recover(shares[:2])
	assert.NoError(t, err)
	assert.Zero(t, big.NewInt(0).Cmp(recovered))
}
