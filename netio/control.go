package netio

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/hashrand/beacon/beacon"
	"github.com/hashrand/beacon/common"
)

// ControlServer exposes a running beacon.Context to local clients over
// a line-based TCP protocol: a client writes "REQUEST <id>\n" and every
// connected client receives "COIN <id> <32-hex-chars>\n" once that
// request is answered. This is the control channel spec.md §6
// describes in the abstract (a request-id input, a (request_id, value)
// output) made concrete enough for cmd/beacon-node's `request`
// subcommand to talk to.
type ControlServer struct {
	ctx      *beacon.Context
	listener net.Listener

	mu      sync.Mutex
	clients map[net.Conn]struct{}
}

// NewControlServer starts listening on addr and begins draining ctx's
// output channel to every connected client.
func NewControlServer(addr string, ctx *beacon.Context, output <-chan beacon.BeaconOutput) (*ControlServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "netio: control listener on %s", addr)
	}
	s := &ControlServer{ctx: ctx, listener: ln, clients: make(map[net.Conn]struct{})}
	go s.acceptLoop()
	go s.fanOut(output)
	return s, nil
}

func (s *ControlServer) Close() error { return s.listener.Close() }

func (s *ControlServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			common.Logger.Debugf("netio: control listener stopped: %v", err)
			return
		}
		s.mu.Lock()
		s.clients[conn] = struct{}{}
		s.mu.Unlock()
		go s.readLoop(conn)
	}
}

func (s *ControlServer) readLoop(conn net.Conn) {
	defer s.forget(conn)
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var id uint32
		if _, err := fmt.Sscanf(scanner.Text(), "REQUEST %d", &id); err != nil {
			common.Logger.Warnf("netio: control: malformed line %q", scanner.Text())
			continue
		}
		s.ctx.RequestCoin(id)
	}
}

func (s *ControlServer) forget(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
}

func (s *ControlServer) fanOut(output <-chan beacon.BeaconOutput) {
	for out := range output {
		line := fmt.Sprintf("COIN %d %x\n", out.RequestID, out.Value)
		s.mu.Lock()
		for conn := range s.clients {
			if _, err := conn.Write([]byte(line)); err != nil {
				common.Logger.Debugf("netio: control: writing to client: %v", err)
			}
		}
		s.mu.Unlock()
	}
}

// RequestCoin dials addr, submits requestID and blocks until that
// exact request's coin value is announced, returning its 16 bytes.
func RequestCoin(addr string, requestID uint32) ([16]byte, error) {
	var value [16]byte
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return value, errors.Wrapf(err, "netio: dialing control address %s", addr)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "REQUEST %d\n", requestID); err != nil {
		return value, errors.Wrap(err, "netio: submitting request")
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var id uint32
		var hexValue string
		if _, err := fmt.Sscanf(scanner.Text(), "COIN %d %s", &id, &hexValue); err != nil {
			continue
		}
		if id != requestID {
			continue
		}
		bz, err := decodeHex16(hexValue)
		if err != nil {
			return value, err
		}
		return bz, nil
	}
	if err := scanner.Err(); err != nil {
		return value, errors.Wrap(err, "netio: reading control connection")
	}
	return value, errors.New("netio: control connection closed before an answer arrived")
}

func decodeHex16(s string) ([16]byte, error) {
	var out [16]byte
	if len(s) != 32 {
		return out, errors.Errorf("netio: malformed coin value %q", s)
	}
	for i := range out {
		b, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return out, errors.Wrapf(err, "netio: parsing coin value %q", s)
		}
		out[i] = byte(b)
	}
	return out, nil
}
