package protocol

import (
	"encoding/json"
	"errors"
)

// Message type tags, client → hub.
const (
	TypeAuth   = "auth"
	TypePing   = "ping"
	TypeTyping = "typing"
)

// Message type tags, hub → client.
const (
	TypeAuthOK = "auth:ok"
	TypePong   = "pong"
	TypeInfo   = "info"
	TypeError  = "error"
)

// Error codes carried in Error frames.
const (
	CodeMalformed    = "malformed"
	CodeMissingField = "missing_field"
	CodeUnauthorized = "unauthorized"
	CodeIdleTimeout  = "idle_timeout"
	CodeUnknownType  = "unknown_type"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

// CloseReason tells the transport layer which close status to put on the wire.
type CloseReason int

const (
	// CloseNormal is used for orderly teardown, including idle timeouts.
	CloseNormal CloseReason = iota
	// CloseAdmissionFailed is used when a connection never passed (or failed)
	// the admission handshake.
	CloseAdmissionFailed
)

// ClientMessage is the closed set of frames a client may send.
type ClientMessage interface{ clientMessage() }

type AuthRequest struct {
	Token  string `json:"token"`
	RoomID string `json:"roomId,omitempty"`
	UserID string `json:"userId,omitempty"`
}

type Ping struct {
	T *int64 `json:"t,omitempty"`
}

type Typing struct {
	IsTyping bool `json:"isTyping"`
}

func (AuthRequest) clientMessage() {}
func (Ping) clientMessage()        {}
func (Typing) clientMessage()      {}

// ParseClient decodes one inbound frame into its tagged variant.
// Frames without a recognised "type" tag are rejected rather than
// best-effort field-accessed.
func ParseClient(data []byte) (ClientMessage, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrMalformed
	}

	switch env.Type {
	case TypeAuth:
		var m AuthRequest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, ErrMalformed
		}
		return m, nil
	case TypePing:
		var m Ping
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, ErrMalformed
		}
		return m, nil
	case TypeTyping:
		var m Typing
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, ErrMalformed
		}
		return m, nil
	case "":
		return nil, ErrMalformed
	default:
		return nil, ErrUnknownType
	}
}

// ──────────────────────────── hub → client frames ────────────────────────────

type AuthOK struct {
	Type string `json:"type"`
}

type Pong struct {
	Type string `json:"type"`
	T    int64  `json:"t"`
}

type Info struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TypingEvent is the fanned-out form of a Typing frame. Before carries the
// room's last-broadcast snapshot as of the moment the event was built.
type TypingEvent struct {
	Type      string          `json:"type"`
	UserID    string          `json:"userId"`
	IsTyping  bool            `json:"isTyping"`
	RoomID    string          `json:"roomId"`
	Timestamp int64           `json:"timestamp"`
	Before    json.RawMessage `json:"before"`
}

func NewAuthOK() AuthOK { return AuthOK{Type: TypeAuthOK} }

func NewPong(t int64) Pong { return Pong{Type: TypePong, T: t} }

func NewInfo(message string) Info { return Info{Type: TypeInfo, Message: message} }

func NewError(code, message string) Error {
	return Error{Type: TypeError, Code: code, Message: message}
}
