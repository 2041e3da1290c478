// Package netio wires beacon.Context and its control-channel request
// protocol onto real TCP sockets, the networked counterpart to the
// in-process Transport used by beacon/e2e's synchronous harness.
package netio

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"

	"github.com/pkg/errors"

	"github.com/hashrand/beacon/wire"
)

// maxFrameSize bounds a single envelope frame; a shard plus its Merkle
// proof and MAC never approaches this, so anything larger is treated
// as a corrupt stream rather than waited out.
const maxFrameSize = 16 << 20

// writeFrame writes env as [4-byte big-endian length][gob-encoded Envelope].
func writeFrame(w io.Writer, env *wire.Envelope) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return errors.Wrap(err, "netio: encoding envelope")
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(buf.Len()))
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "netio: writing frame header")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "netio: writing frame body")
	}
	return nil
}

// readFrame blocks until one full envelope frame has arrived.
func readFrame(r io.Reader) (*wire.Envelope, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if size > maxFrameSize {
		return nil, errors.Errorf("netio: frame of %d bytes exceeds limit", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "netio: reading frame body")
	}
	var env wire.Envelope
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "netio: decoding envelope")
	}
	return &env, nil
}
