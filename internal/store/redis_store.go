package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	roomKeyPrefix      = "room:"
	deadlineKeySuffix  = ":deadlines"
	fieldRoomID        = "id"
	fieldLastMessage   = "last_message"
	deadlineFieldJoint = "/"
)

// Redis keeps each room in two hashes: "room:<id>" for identity and the
// last-message slot, "room:<id>:deadlines" for pending wake-ups with
// unix-milli values, so a resumed hub can re-derive every timer.
type Redis struct {
	rdc *redis.Client
}

var _ Store = (*Redis)(nil)

func NewRedis(rdc *redis.Client) *Redis { return &Redis{rdc: rdc} }

func roomKey(roomID string) string     { return roomKeyPrefix + roomID }
func deadlineKey(roomID string) string { return roomKeyPrefix + roomID + deadlineKeySuffix }

func (s *Redis) SaveRoom(ctx context.Context, roomID string) error {
	return s.rdc.HSet(ctx, roomKey(roomID), fieldRoomID, roomID).Err()
}

func (s *Redis) SaveLastMessage(ctx context.Context, roomID string, msg json.RawMessage) error {
	return s.rdc.HSet(ctx, roomKey(roomID), fieldLastMessage, string(msg)).Err()
}

func (s *Redis) SaveDeadline(ctx context.Context, roomID string, d Deadline) error {
	field := d.ConnID + deadlineFieldJoint + d.Kind
	return s.rdc.HSet(ctx, deadlineKey(roomID), field,
		strconv.FormatInt(d.At.UnixMilli(), 10)).Err()
}

func (s *Redis) ClearDeadline(ctx context.Context, roomID, connID, kind string) error {
	return s.rdc.HDel(ctx, deadlineKey(roomID), connID+deadlineFieldJoint+kind).Err()
}

func (s *Redis) Load(ctx context.Context, roomID string) (*Snapshot, error) {
	snap := &Snapshot{}

	room, err := s.rdc.HGetAll(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	snap.RoomID = room[fieldRoomID]
	if raw, ok := room[fieldLastMessage]; ok && raw != "" {
		snap.LastMessage = json.RawMessage(raw)
	}

	deadlines, err := s.rdc.HGetAll(ctx, deadlineKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	for field, val := range deadlines {
		connID, kind, ok := strings.Cut(field, deadlineFieldJoint)
		if !ok {
			continue
		}
		millis, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}
		snap.Deadlines = append(snap.Deadlines, Deadline{
			ConnID: connID,
			Kind:   kind,
			At:     time.UnixMilli(millis),
		})
	}
	return snap, nil
}
