// Package aeshash implements the fixed-key, three-round AES-128
// two-to-one compression function used to build Merkle commitments
// over 32-byte hashes. It is an ideal-cipher construction, not a
// general-purpose hash: do not use it anywhere a collision-resistant
// hash over arbitrary-length input is required (use common.SHA512_256
// for that).
package aeshash

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/pkg/errors"
)

const Size = 32

type Hash = [Size]byte

// Hasher holds three independently keyed AES-128 block ciphers used as
// the three rounds of hash_two/hash_batch.
type Hasher struct {
	aes0, aes1, aes2 cipher.Block
}

// New builds a Hasher from three fixed 16-byte AES-128 keys. The keys
// are a public system parameter, not a secret: the construction's
// security comes from the ideal-cipher model, not from hiding the key.
func New(key0, key1, key2 [16]byte) (*Hasher, error) {
	b0, err := aes.NewCipher(key0[:])
	if err != nil {
		return nil, errors.Wrap(err, "aeshash: key0")
	}
	b1, err := aes.NewCipher(key1[:])
	if err != nil {
		return nil, errors.Wrap(err, "aeshash: key1")
	}
	b2, err := aes.NewCipher(key2[:])
	if err != nil {
		return nil, errors.Wrap(err, "aeshash: key2")
	}
	return &Hasher{aes0: b0, aes1: b1, aes2: b2}, nil
}

// combine computes one 16-byte AES round: encrypt(cipher, a*ca + b*cb)
// where the addition and scaling are mod 2^8, byte-wise.
func combine(blk cipher.Block, a, b *[16]byte, ca, cb byte) [16]byte {
	var in, out [16]byte
	for i := 0; i < 16; i++ {
		in[i] = a[i]*ca + b[i]*cb
	}
	blk.Encrypt(out[:], in[:])
	return out
}

func combine3(blk cipher.Block, a, b, c *[16]byte, ca, cb, cc byte) [16]byte {
	var in, out [16]byte
	for i := 0; i < 16; i++ {
		in[i] = a[i]*ca + b[i]*cb + c[i]*cc
	}
	blk.Encrypt(out[:], in[:])
	return out
}

func half(h *Hasher, a, b [16]byte) (out [16]byte) {
	r1 := combine(h.aes0, &a, &b, 1, 2)
	r2 := combine3(h.aes1, &a, &b, &r1, 2, 2, 1)
	r3 := combine3(h.aes2, &a, &b, &r2, 2, 1, 1)
	for i := 0; i < 16; i++ {
		out[i] = a[i] + r1[i] + r2[i] + 2*r3[i]
	}
	return out
}

// HashTwo compresses two 32-byte hashes into one.
func (h *Hasher) HashTwo(one, two Hash) Hash {
	var out Hash
	var a0, b0, a1, b1 [16]byte
	copy(a0[:], one[:16])
	copy(a1[:], one[16:])
	copy(b0[:], two[:16])
	copy(b1[:], two[16:])
	r0 := half(h, a0, b0)
	r1 := half(h, a1, b1)
	copy(out[:16], r0[:])
	copy(out[16:], r1[:])
	return out
}

// HashBatch compresses a slice of (one[i], two[i]) pairs, reusing the
// keyed ciphers across the whole batch instead of per pair. Result at
// index i is identical to HashTwo(one[i], two[i]).
func (h *Hasher) HashBatch(one, two []Hash) []Hash {
	out := make([]Hash, len(one))
	for i := range one {
		out[i] = h.HashTwo(one[i], two[i])
	}
	return out
}
