package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire event names.
const (
	EventJoin        = "join"
	EventLeave       = "leave"
	EventMessage     = "message"
	EventJoined      = "joined"
	EventLeft        = "left"
	EventRateLimited = "rate_limited"
)

// Event is an inbound client action, decided once when the frame is parsed.
// It is one of Join, Leave, RoutedMessage or BroadcastMessage.
type Event interface {
	Name() string
}

// Join asks to enter a room.
type Join struct {
	Room string
}

// Leave asks to exit a room.
type Leave struct {
	Room string
}

// RoutedMessage is delivered to the other members of Room.
type RoutedMessage struct {
	Room string
	Data json.RawMessage
}

// BroadcastMessage is delivered to every other connection of the namespace.
type BroadcastMessage struct {
	Data json.RawMessage
}

func (Join) Name() string             { return EventJoin }
func (Leave) Name() string            { return EventLeave }
func (RoutedMessage) Name() string    { return EventMessage }
func (BroadcastMessage) Name() string { return EventMessage }

// frame is the JSON envelope of every websocket text message, both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ParseEvent decodes one inbound frame.
//
// A message payload that is an object with a non-empty string "room" field
// becomes a RoutedMessage carrying the payload's "data" field; any other
// payload, including malformed ones, becomes a BroadcastMessage of the whole
// payload.
func ParseEvent(raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	switch f.Event {
	case EventJoin, EventLeave:
		var name string
		if err := json.Unmarshal(f.Data, &name); err != nil {
			return nil, fmt.Errorf("%w: %s needs a room name", ErrMalformedFrame, f.Event)
		}
		if f.Event == EventJoin {
			return Join{Room: name}, nil
		}
		return Leave{Room: name}, nil
	case EventMessage:
		return parseMessage(f.Data), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
}

func parseMessage(data json.RawMessage) Event {
	if len(bytes.TrimSpace(data)) == 0 {
		return BroadcastMessage{}
	}

	var hint struct {
		Room any             `json:"room"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &hint); err == nil {
		if room, ok := hint.Room.(string); ok && room != "" {
			return RoutedMessage{Room: room, Data: hint.Data}
		}
	}
	return BroadcastMessage{Data: data}
}

// membership is the payload of joined and left.
type membership struct {
	Room      string `json:"room"`
	Namespace string `json:"namespace"`
}

// delivery is the payload of an outbound message.
type delivery struct {
	Namespace string          `json:"namespace"`
	Room      string          `json:"room,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// encodeFrame builds an outbound frame. A nil payload omits "data".
func encodeFrame(event string, payload any) ([]byte, error) {
	f := frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		f.Data = data
	}
	return json.Marshal(f)
}
