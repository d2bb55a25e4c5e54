package relay

import (
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/relay/core/auth"
)

// State is the lifecycle stage of a Connection.
type State int32

const (
	StateConnecting State = iota
	StateAdmitted
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAdmitted:
		return "admitted"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection is one live client session inside exactly one namespace.
//
// Inbound events are queued on a per-connection channel and consumed by a
// single dispatch loop, which keeps one client's actions in arrival order.
// Outbound frames go through a bounded queue; a full queue drops the frame.
type Connection struct {
	id        string
	namespace string
	principal auth.Principal

	// mu serializes event handling with disconnect so no action lands
	// after the connection has left its rooms.
	mu    sync.Mutex
	state atomic.Int32

	inbound  chan Event
	outbound chan []byte
	done     chan struct{}
	once     sync.Once

	dropped atomic.Int64
}

func newConnection(id, namespace string, principal auth.Principal, buffer int) *Connection {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Connection{
		id:        id,
		namespace: namespace,
		principal: principal,
		inbound:   make(chan Event, buffer),
		outbound:  make(chan []byte, buffer),
		done:      make(chan struct{}),
	}
}

// ID returns the session identity.
func (c *Connection) ID() string { return c.id }

// Namespace returns the label of the owning namespace.
func (c *Connection) Namespace() string { return c.namespace }

// Principal returns the decoded token payload, nil when auth is disabled.
func (c *Connection) Principal() auth.Principal { return c.principal }

// State returns the current lifecycle stage.
func (c *Connection) State() State { return State(c.state.Load()) }

// Outbound yields frames queued for the client.
func (c *Connection) Outbound() <-chan []byte { return c.outbound }

// Done is closed once the connection is disconnected.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Dropped returns how many outbound frames were discarded on a full queue.
func (c *Connection) Dropped() int64 { return c.dropped.Load() }

// Send queues a frame for the client without blocking.
// It reports false when the connection is closed or its queue is full.
func (c *Connection) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.outbound <- frame:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Enqueue hands an inbound event to the dispatch loop, blocking while the
// queue is full. It returns ErrConnectionClosed once the connection is gone.
func (c *Connection) Enqueue(ev Event) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.inbound <- ev:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	}
}

func (c *Connection) transition(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

func (c *Connection) close() {
	c.once.Do(func() { close(c.done) })
}
