package websocket

import (
	"io"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeUnknownMsg = "ws_unknown_msg"
	ErrTypeInvalidMsg = "ws_invalid_msg"
)

const (
	// Client messages.
	MsgTypeObserverMove = "observer_move"
	MsgTypePing         = "ping"

	// Server messages.
	MsgTypePong         = "pong"
	MsgTypeObjectLoad   = "object_load"
	MsgTypeObjectUnload = "object_unload"
	MsgTypeStatus       = "status"
	MsgTypeError        = "error"
)

// Msg is a message exchanged with an observer.
type Msg struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id,omitempty"`

	Position *mgl64.Vec3 `json:"position,omitempty"`
	Object   *ObjectInfo `json:"object,omitempty"`
	ObjectID string      `json:"object_id,omitempty"`
	Status   *StatusInfo `json:"status,omitempty"`
	Code     string      `json:"code,omitempty"`
}

type ObjectInfo struct {
	ID       string     `json:"id"`
	Asset    string     `json:"asset"`
	Position mgl64.Vec3 `json:"position"`
	Rotation mgl64.Vec3 `json:"rotation"`
	Scale    mgl64.Vec3 `json:"scale"`
}

type StatusInfo struct {
	World    string     `json:"world"`
	Position mgl64.Vec3 `json:"position"`
	Objects  int        `json:"objects"`
	Visible  int        `json:"visible"`
	Evicting int        `json:"evicting"`
	Pending  int        `json:"pending"`
	Resident int        `json:"resident"`
	Scans    uint64     `json:"scans"`
}

// Receiver receives a message and returns the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender sends a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to be sent to the connected observer.
type ResponseSender interface {
	Send(Msg)
}

// JSONCodec encodes messages as JSON text frames.
var JSONCodec = websocket.Codec{
	Marshal: func(v any) ([]byte, byte, error) {
		data, err := json.Marshal(v)
		return data, websocket.TextFrame, err
	},
	Unmarshal: func(data []byte, payloadType byte, v any) error {
		return json.Unmarshal(data, v)
	},
}

// NewReceiver returns a receiver that reads messages from the given
// connection.
func NewReceiver(conn *websocket.Conn) Receiver {
	return func() (Msg, int, error) {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if errors.Is(err, io.EOF) {
				return Msg{}, 0, err
			}
			return Msg{}, 0, errors.New("reading message failed").Wrap(err)
		}

		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			return Msg{}, len(data), errors.New("decoding message failed").
				WithType(ErrTypeInvalidMsg).
				Wrap(err)
		}
		return msg, len(data), nil
	}
}

// NewSender returns a sender that writes messages to the given connection.
func NewSender(conn *websocket.Conn) Sender {
	return func(msg Msg) (int, error) {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}

		data, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}

		if err := websocket.Message.Send(conn, string(data)); err != nil {
			return 0, errors.New("writing message failed").
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}
		return len(data), nil
	}
}
