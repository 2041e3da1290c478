package netio

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hashrand/beacon/common"
	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

// Mesh is a beacon.Transport backed by one persistent TCP connection
// per peer, dialed lazily on first send and redialed on failure. It is
// the networked counterpart of beacon/e2e's in-process harness
// transport: same Envelope framing (wire.Seal/Open), real sockets.
type Mesh struct {
	self    replica.ID
	addrs   map[replica.ID]string
	macKeys map[replica.ID][]byte
	handle  func(*wire.Envelope) error

	mu    sync.Mutex
	conns map[replica.ID]net.Conn

	listener net.Listener
}

// NewMesh builds a Mesh for params.MyID. handle is called with every
// envelope received on an inbound or outbound connection; it should be
// (*beacon.Context).ProcessEnvelope.
func NewMesh(params *replica.Parameters, handle func(*wire.Envelope) error) *Mesh {
	return &Mesh{
		self:    params.MyID,
		addrs:   params.PeerAddrs,
		macKeys: params.MACKeys,
		handle:  handle,
		conns:   make(map[replica.ID]net.Conn),
	}
}

// Listen starts accepting inbound peer connections on this replica's
// own address (params.PeerAddrs[self]). It returns once the listener
// is up; Accept loops run in the background until Close.
func (m *Mesh) Listen() error {
	addr, ok := m.addrs[m.self]
	if !ok {
		return errors.Errorf("netio: no peer address configured for %s", m.self)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "netio: listening on %s", addr)
	}
	m.listener = ln
	go m.acceptLoop(ln)
	return nil
}

func (m *Mesh) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			common.Logger.Warnf("netio: accept loop for %s stopped: %v", m.self, err)
			return
		}
		go m.readLoop(conn)
	}
}

// Close stops the listener and every outbound connection this replica
// opened.
func (m *Mesh) Close() error {
	if m.listener != nil {
		_ = m.listener.Close()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, conn := range m.conns {
		_ = conn.Close()
		delete(m.conns, id)
	}
	return nil
}

func (m *Mesh) readLoop(conn net.Conn) {
	defer conn.Close()
	for {
		env, err := readFrame(conn)
		if err != nil {
			common.Logger.Debugf("netio: connection from %s closed: %v", conn.RemoteAddr(), err)
			return
		}
		if err := m.handle(env); err != nil {
			common.Logger.Warnf("netio: handling envelope from %s: %v", env.Sender, err)
		}
	}
}

// connTo returns the cached connection to recipient, dialing a fresh
// one if none exists yet or the cached one is dead.
func (m *Mesh) connTo(recipient replica.ID) (net.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.conns[recipient]; ok {
		return conn, nil
	}
	addr, ok := m.addrs[recipient]
	if !ok {
		return nil, errors.Errorf("netio: no address configured for %s", recipient)
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "netio: dialing %s at %s", recipient, addr)
	}
	m.conns[recipient] = conn
	go m.readLoop(conn)
	return conn, nil
}

func (m *Mesh) dropConn(recipient replica.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.conns[recipient]; ok {
		_ = conn.Close()
		delete(m.conns, recipient)
	}
}

// SendTo implements beacon.Transport. A single send attempt is made;
// on failure the cached connection is dropped so the next send redials,
// and the error is logged rather than retried (spec.md §7 "Recoverable
// transport"). There is no background retry loop, so the returned
// CancelFunc is nil.
func (m *Mesh) SendTo(recipient replica.ID, round uint32, msg wire.CoinMsg) replica.CancelFunc {
	key := m.macKeys[recipient]
	env, err := wire.Seal(m.self, round, msg, key)
	if err != nil {
		common.Logger.Errorf("netio: sealing message to %s: %v", recipient, err)
		return nil
	}
	conn, err := m.connTo(recipient)
	if err != nil {
		common.Logger.Warnf("netio: %v", err)
		return nil
	}
	if err := writeFrame(conn, env); err != nil {
		common.Logger.Warnf("netio: sending to %s: %v", recipient, err)
		m.dropConn(recipient)
	}
	return nil
}

// Broadcast implements beacon.Transport, fanning SendTo out to every
// other known replica concurrently via errgroup so one slow or dead
// peer never delays the rest.
func (m *Mesh) Broadcast(round uint32, msg wire.CoinMsg) replica.CancelFunc {
	var g errgroup.Group
	for id := range m.addrs {
		if id == m.self {
			continue
		}
		id := id
		g.Go(func() error {
			m.SendTo(id, round, msg)
			return nil
		})
	}
	go g.Wait()
	return nil
}
