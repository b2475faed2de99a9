package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Memory is a Store backed by process memory. It keeps the same contract as
// the Redis store and is what the hub tests (and single-process runs without
// Redis) use.
type Memory struct {
	mu    sync.Mutex
	rooms map[string]*memRoom
}

type memRoom struct {
	roomID      string
	lastMessage json.RawMessage
	deadlines   map[string]time.Time // "<connID>/<kind>"
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]*memRoom)}
}

func (s *Memory) room(roomID string) *memRoom {
	r := s.rooms[roomID]
	if r == nil {
		r = &memRoom{deadlines: make(map[string]time.Time)}
		s.rooms[roomID] = r
	}
	return r
}

func (s *Memory) SaveRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room(roomID).roomID = roomID
	return nil
}

func (s *Memory) SaveLastMessage(_ context.Context, roomID string, msg json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room(roomID).lastMessage = append(json.RawMessage(nil), msg...)
	return nil
}

func (s *Memory) SaveDeadline(_ context.Context, roomID string, d Deadline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room(roomID).deadlines[d.ConnID+deadlineFieldJoint+d.Kind] = d.At
	return nil
}

func (s *Memory) ClearDeadline(_ context.Context, roomID, connID, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.room(roomID).deadlines, connID+deadlineFieldJoint+kind)
	return nil
}

func (s *Memory) Load(_ context.Context, roomID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(roomID)
	snap := &Snapshot{RoomID: r.roomID, LastMessage: r.lastMessage}
	for field, at := range r.deadlines {
		connID, kind, ok := strings.Cut(field, deadlineFieldJoint)
		if !ok {
			continue
		}
		snap.Deadlines = append(snap.Deadlines, Deadline{ConnID: connID, Kind: kind, At: at})
	}
	return snap, nil
}
