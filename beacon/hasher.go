package beacon

import (
	"sync"

	"github.com/hashrand/beacon/common"
	"github.com/hashrand/beacon/crypto/aeshash"
)

// The AES-128 keys behind every Merkle commitment in this system are a
// public, fixed system parameter (aeshash.New's ideal-cipher
// construction derives its security from the keys being unknown random
// permutations, not from secrecy of the key itself): every replica must
// derive the identical three keys with no coordination, so they are
// fixed labels hashed down to size rather than configuration.
var (
	hasherOnce sync.Once
	hasherVal  *aeshash.Hasher
	hasherErr  error
)

func defaultHasher() (*aeshash.Hasher, error) {
	hasherOnce.Do(func() {
		var k0, k1, k2 [16]byte
		copy(k0[:], common.SHA512_256([]byte("hashrand-beacon/aeshash/key0")))
		copy(k1[:], common.SHA512_256([]byte("hashrand-beacon/aeshash/key1")))
		copy(k2[:], common.SHA512_256([]byte("hashrand-beacon/aeshash/key2")))
		hasherVal, hasherErr = aeshash.New(k0, k1, k2)
	})
	return hasherVal, hasherErr
}
