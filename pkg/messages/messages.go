package messages

import (
	"encoding/json"
	"fmt"

	"github.com/cbodonnell/arcade/pkg/game"
)

const (
	// MessageBufferSize represents the maximum size of a message
	MessageBufferSize = 64 * 1024
)

type MessageType byte

// Message types
const (
	MessageTypeClientPing MessageType = iota + 1
	MessageTypeClientCreate
	MessageTypeClientAction
	MessageTypeClientSubscribe
	MessageTypeClientClose

	MessageTypeServerPong MessageType = iota + 100
	MessageTypeServerSession
	MessageTypeServerCreated
	MessageTypeServerUpdate
	MessageTypeServerClosed
	MessageTypeServerError
)

var messageTypeNames = map[MessageType]string{
	MessageTypeClientPing:      "ping",
	MessageTypeClientCreate:    "create",
	MessageTypeClientAction:    "action",
	MessageTypeClientSubscribe: "subscribe",
	MessageTypeClientClose:     "close",
	MessageTypeServerPong:      "pong",
	MessageTypeServerSession:   "session",
	MessageTypeServerCreated:   "created",
	MessageTypeServerUpdate:    "update",
	MessageTypeServerClosed:    "closed",
	MessageTypeServerError:     "error",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

// Message represents a generic message for serialization/deserialization.
// Instance is the id of the game instance the message refers to, if any.
type Message struct {
	Type     MessageType
	Instance string
	Payload  json.RawMessage
}

// ClientCreate asks the server for a new game instance.
type ClientCreate struct {
	Kind game.Kind `json:"kind"`
}

// ClientAction is a user input for an instance.
type ClientAction struct {
	Action game.Action `json:"action"`
}

// ServerSession is sent once a connection has been accepted.
type ServerSession struct {
	SessionID string `json:"sessionID"`
	UserID    string `json:"userID"`
}

// ServerCreated acknowledges a ClientCreate.
type ServerCreated struct {
	Kind   game.Kind   `json:"kind"`
	Update game.Update `json:"update"`
}

// ServerUpdate carries a state projection. State is left raw so that clients
// can decode it into the view of the matching game.
type ServerUpdate struct {
	Kind    game.Kind       `json:"kind"`
	Event   game.EventType  `json:"event"`
	State   json.RawMessage `json:"state"`
	Summary *game.Summary   `json:"summary,omitempty"`
}

// ServerError reports a failed request.
type ServerError struct {
	Message string `json:"message"`
}

// NewMessage builds a message with a JSON encoded payload. A nil payload
// leaves the payload empty.
func NewMessage(t MessageType, instance string, payload interface{}) (*Message, error) {
	m := &Message{
		Type:     t,
		Instance: instance,
	}
	if payload == nil {
		return m, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", t, err)
	}
	m.Payload = b
	return m, nil
}

// DecodePayload unmarshals the payload of m into v.
func DecodePayload(m *Message, v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("empty %s payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %v", m.Type, err)
	}
	return nil
}
