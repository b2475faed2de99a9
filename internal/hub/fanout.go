package hub

import (
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"roomhub/internal/protocol"
)

// ErrInvalidMessage is returned when an externally triggered body is not a
// JSON object and therefore cannot be decorated.
var ErrInvalidMessage = errors.New("broadcast message must be a JSON object")

// lastMessageCache is the single-slot "previous message" reference for the
// room. Only externally triggered broadcasts write it; every fanout reads it.
type lastMessageCache struct {
	msg json.RawMessage
}

// snapshot returns the current slot value, nil when nothing was broadcast yet.
func (c *lastMessageCache) snapshot() json.RawMessage { return c.msg }

func (c *lastMessageCache) put(msg json.RawMessage) {
	c.msg = append(json.RawMessage(nil), msg...)
}

// decorate produces the delivery payload for an external broadcast: the body
// itself with a "before" field carrying the previous cache value. The cached
// value stays undecorated.
func decorate(body, before json.RawMessage) (json.RawMessage, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, ErrInvalidMessage
	}
	if before == nil {
		raw["before"] = nil
	} else {
		raw["before"] = before
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil, ErrInvalidMessage
	}
	return out, nil
}

// deliver writes payload to every connection not excluded, best effort.
// Write failures are swallowed; the failing connection's own transport close
// will reach the hub as a disconnect.
func (h *Hub) deliver(exclude map[string]struct{}, payload any, authenticatedOnly bool) int {
	n := 0
	h.reg.forEachExcept(exclude, func(c *connection) {
		if authenticatedOnly && c.state != StateAuthenticated {
			return
		}
		if err := c.sender.Send(payload); err != nil {
			zap.L().Debug("hub.deliver", zap.String("conn_id", c.id), zap.Error(err))
			return
		}
		n++
	})
	return n
}

// fanoutTyping broadcasts a room event from one authenticated connection to
// every other authenticated connection, sender excluded.
func (h *Hub) fanoutTyping(c *connection, isTyping bool) {
	evt := protocol.TypingEvent{
		Type:      protocol.TypeTyping,
		UserID:    c.userID,
		IsTyping:  isTyping,
		RoomID:    h.roomID,
		Timestamp: time.Now().UnixMilli(),
		Before:    h.cache.snapshot(),
	}
	h.deliver(map[string]struct{}{c.id: {}}, evt, true)
}
