// Package store persists the small amount of hub state that must survive a
// suspension: the bound room identifier, the last-broadcast message and the
// pending connection deadlines as absolute timestamps.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Deadline is one pending one-shot wake-up, keyed by connection and kind.
type Deadline struct {
	ConnID string
	Kind   string
	At     time.Time
}

// Snapshot is everything needed to resume a room.
type Snapshot struct {
	RoomID      string
	LastMessage json.RawMessage
	Deadlines   []Deadline
}

type Store interface {
	SaveRoom(ctx context.Context, roomID string) error
	SaveLastMessage(ctx context.Context, roomID string, msg json.RawMessage) error
	SaveDeadline(ctx context.Context, roomID string, d Deadline) error
	ClearDeadline(ctx context.Context, roomID, connID, kind string) error
	Load(ctx context.Context, roomID string) (*Snapshot, error)
}
