package wire

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/gob"

	"github.com/pkg/errors"

	"github.com/hashrand/beacon/replica"
)

// IgnoreRound is the in-band "ignore round" marker (spec.md §6).
// beacon.Context.ProcessEnvelope drops any envelope carrying it; no
// message this module sends uses it.
const IgnoreRound uint32 = 25000

// Envelope is the authenticated transport frame every CoinMsg travels
// in: sender identity, destination round, and a MAC over the
// gob-serialized message computed with the sender/receiver pairwise
// preshared key (spec.md §6 "Wire message envelope").
type Envelope struct {
	Sender  replica.ID
	Round   uint32
	Payload []byte // gob-encoded CoinMsg
	MAC     [32]byte
}

// Seal gob-encodes msg and computes its envelope, authenticated with
// key (the preshared key for the Sender/recipient pair).
func Seal(sender replica.ID, round uint32, msg CoinMsg, key []byte) (*Envelope, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&msg); err != nil {
		return nil, errors.Wrap(err, "wire: encoding coin message")
	}
	payload := buf.Bytes()
	env := &Envelope{Sender: sender, Round: round, Payload: payload}
	env.MAC = computeMAC(key, env.Sender, env.Round, payload)
	return env, nil
}

// Open verifies the envelope's MAC against key and, if it matches,
// gob-decodes the enclosed CoinMsg. Callers must reject (with a log
// warning, never a fatal error) any envelope that fails verification,
// since a bad MAC is evidence of a Byzantine or off-protocol sender,
// not an internal invariant violation (spec.md §6, §7).
func Open(env *Envelope, key []byte) (CoinMsg, error) {
	want := computeMAC(key, env.Sender, env.Round, env.Payload)
	if !hmac.Equal(want[:], env.MAC[:]) {
		return nil, errors.New("wire: MAC verification failed")
	}
	var msg CoinMsg
	if err := gob.NewDecoder(bytes.NewReader(env.Payload)).Decode(&msg); err != nil {
		return nil, errors.Wrap(err, "wire: decoding coin message")
	}
	return msg, nil
}

func computeMAC(key []byte, sender replica.ID, round uint32, payload []byte) [32]byte {
	mac := hmac.New(sha256.New, key)
	var hdr [8]byte
	hdr[0] = byte(sender)
	hdr[1] = byte(sender >> 8)
	hdr[2] = byte(sender >> 16)
	hdr[3] = byte(sender >> 24)
	hdr[4] = byte(round)
	hdr[5] = byte(round >> 8)
	hdr[6] = byte(round >> 16)
	hdr[7] = byte(round >> 24)
	mac.Write(hdr[:])
	mac.Write(payload)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}
