package relay

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/relay/core/auth"
	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/room"
)

// DefaultSendBuffer is the per-connection queue length in both directions.
const DefaultSendBuffer = 256

// RootNamespace labels the namespace used when a client names none.
const RootNamespace = "root"

// Limiter gates mutating actions per connection.
type Limiter interface {
	Check(ctx context.Context, key string) bool
	Forget(ctx context.Context, key string)
}

// Recorder receives relay metric updates.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	MessageIn()
	MessageOut()
	RateLimited()
	SetRooms(n int)
}

type nopRecorder struct{}

func (nopRecorder) ConnectionOpened() {}
func (nopRecorder) ConnectionClosed() {}
func (nopRecorder) MessageIn()        {}
func (nopRecorder) MessageOut()       {}
func (nopRecorder) RateLimited()      {}
func (nopRecorder) SetRooms(int)      {}

// Namespace is an isolated relay domain with its own rooms.
// Frames never cross namespaces; equal room names in two namespaces are distinct rooms.
type Namespace struct {
	label string

	rooms *room.Directory[*Connection]

	mu    sync.RWMutex
	conns map[string]*Connection

	limiter      Limiter
	recorder     Recorder
	roomsMu      sync.Mutex
	roomsChanged func()
	sendBuffer   int
	logger       *slog.Logger
}

// NamespaceOption configures a Namespace.
type NamespaceOption func(*Namespace)

// WithLimiter sets the rate limiter consulted before join, leave and message.
func WithLimiter(l Limiter) NamespaceOption {
	return func(n *Namespace) {
		n.limiter = l
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) NamespaceOption {
	return func(n *Namespace) {
		if r != nil {
			n.recorder = r
		}
	}
}

// WithRoomsChanged replaces the room gauge refresh. By default the namespace
// reports its own room count to the recorder.
func WithRoomsChanged(fn func()) NamespaceOption {
	return func(n *Namespace) {
		n.roomsChanged = fn
	}
}

// WithSendBuffer sets the per-connection queue length.
func WithSendBuffer(size int) NamespaceOption {
	return func(n *Namespace) {
		if size > 0 {
			n.sendBuffer = size
		}
	}
}

// WithNamespaceLogger sets the logger.
func WithNamespaceLogger(l *slog.Logger) NamespaceOption {
	return func(n *Namespace) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNamespace creates an empty namespace.
func NewNamespace(label string, opts ...NamespaceOption) *Namespace {
	n := &Namespace{
		label:      label,
		rooms:      room.NewDirectory[*Connection](),
		conns:      make(map[string]*Connection),
		recorder:   nopRecorder{},
		sendBuffer: DefaultSendBuffer,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.roomsChanged == nil {
		n.roomsChanged = n.publishRooms
	}
	return n
}

func (n *Namespace) publishRooms() {
	n.roomsMu.Lock()
	defer n.roomsMu.Unlock()
	n.recorder.SetRooms(n.rooms.Len())
}

// Label returns the namespace name.
func (n *Namespace) Label() string { return n.label }

// Admit registers a new connection and makes it active.
func (n *Namespace) Admit(id string, principal auth.Principal) *Connection {
	c := newConnection(id, n.label, principal, n.sendBuffer)
	c.transition(StateConnecting, StateAdmitted)

	n.mu.Lock()
	n.conns[c.id] = c
	n.mu.Unlock()

	n.recorder.ConnectionOpened()
	n.roomsChanged()
	c.transition(StateAdmitted, StateActive)

	n.logger.Debug("connection admitted",
		logger.ConnectionID(c.id), logger.Namespace(n.label))
	return c
}

// Disconnect tears the connection down: it leaves every room, is unregistered
// and stops processing events. Only the first call has any effect.
// An event being handled for c finishes first.
func (n *Namespace) Disconnect(c *Connection) bool {
	c.mu.Lock()
	if !c.transition(StateActive, StateDisconnected) {
		c.mu.Unlock()
		return false
	}
	c.close()
	left := n.rooms.LeaveAll(c)
	c.mu.Unlock()

	n.mu.Lock()
	delete(n.conns, c.id)
	n.mu.Unlock()

	n.recorder.ConnectionClosed()
	n.roomsChanged()
	if n.limiter != nil {
		n.limiter.Forget(context.Background(), c.id)
	}

	n.logger.Debug("connection disconnected",
		logger.ConnectionID(c.id), logger.Namespace(n.label), logger.Rooms(left))
	return true
}

// Serve runs the dispatch loop of c until it is disconnected.
func (n *Namespace) Serve(ctx context.Context, c *Connection) {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.inbound:
			n.Handle(ctx, c, ev)
		}
	}
}

// Handle processes one event for c. Events for a connection that is not
// active are discarded, including those racing a disconnect.
func (n *Namespace) Handle(ctx context.Context, c *Connection, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != StateActive {
		return
	}

	if n.limiter != nil && !n.limiter.Check(ctx, c.id) {
		n.recorder.RateLimited()
		n.reply(c, EventRateLimited, nil)
		n.logger.DebugContext(ctx, "action rate limited",
			logger.ConnectionID(c.id), logger.Namespace(n.label), logger.Event(ev.Name()))
		return
	}

	switch e := ev.(type) {
	case Join:
		n.rooms.Join(c, e.Room)
		n.roomsChanged()
		n.reply(c, EventJoined, membership{Room: e.Room, Namespace: n.label})
	case Leave:
		n.rooms.Leave(c, e.Room)
		n.roomsChanged()
		n.reply(c, EventLeft, membership{Room: e.Room, Namespace: n.label})
	case RoutedMessage:
		n.recorder.MessageIn()
		if out, ok := n.encode(EventMessage, delivery{Namespace: n.label, Room: e.Room, Data: e.Data}); ok {
			n.rooms.Broadcast(e.Room, c.id, func(m *Connection) { m.Send(out) })
		}
		n.recorder.MessageOut()
	case BroadcastMessage:
		n.recorder.MessageIn()
		if out, ok := n.encode(EventMessage, delivery{Namespace: n.label, Data: e.Data}); ok {
			n.broadcast(c.id, out)
		}
		n.recorder.MessageOut()
	}
}

// broadcast sends frame to every connection of the namespace except exceptID.
func (n *Namespace) broadcast(exceptID string, frame []byte) int {
	n.mu.RLock()
	recipients := make([]*Connection, 0, len(n.conns))
	for id, c := range n.conns {
		if id != exceptID {
			recipients = append(recipients, c)
		}
	}
	n.mu.RUnlock()

	for _, c := range recipients {
		c.Send(frame)
	}
	return len(recipients)
}

func (n *Namespace) reply(c *Connection, event string, payload any) {
	if out, ok := n.encode(event, payload); ok {
		c.Send(out)
	}
}

func (n *Namespace) encode(event string, payload any) ([]byte, bool) {
	out, err := encodeFrame(event, payload)
	if err != nil {
		n.logger.Error("failed to encode frame", logger.Event(event), logger.Error(err))
		return nil, false
	}
	return out, true
}

// RoomCount returns the number of non-empty rooms.
func (n *Namespace) RoomCount() int { return n.rooms.Len() }

// RoomSize returns the member count of a room.
func (n *Namespace) RoomSize(name string) int { return n.rooms.Size(name) }

// HasRoom reports whether a room currently exists.
func (n *Namespace) HasRoom(name string) bool { return n.rooms.Has(name) }

// RoomsOf returns the rooms c belongs to.
func (n *Namespace) RoomsOf(c *Connection) []string { return n.rooms.Rooms(c) }

// Len returns the number of active connections.
func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.conns)
}

// Connections returns a snapshot of the active connections.
func (n *Namespace) Connections() []*Connection {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]*Connection, 0, len(n.conns))
	for _, c := range n.conns {
		out = append(out, c)
	}
	return out
}
