package store

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSaveRoom(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	s := NewRedis(rdc)

	mock.ExpectHSet("room:r1", "id", "r1").SetVal(1)
	require.NoError(t, s.SaveRoom(context.Background(), "r1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSaveLastMessage(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	s := NewRedis(rdc)

	mock.ExpectHSet("room:r1", "last_message", `{"id":"m1"}`).SetVal(1)
	require.NoError(t, s.SaveLastMessage(context.Background(), "r1", json.RawMessage(`{"id":"m1"}`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisDeadlineRoundTrip(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	s := NewRedis(rdc)

	at := time.UnixMilli(1712345678901)
	mock.ExpectHSet("room:r1:deadlines", "c1/admission",
		strconv.FormatInt(at.UnixMilli(), 10)).SetVal(1)
	require.NoError(t, s.SaveDeadline(context.Background(), "r1",
		Deadline{ConnID: "c1", Kind: "admission", At: at}))

	mock.ExpectHDel("room:r1:deadlines", "c1/admission").SetVal(1)
	require.NoError(t, s.ClearDeadline(context.Background(), "r1", "c1", "admission"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLoad(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	s := NewRedis(rdc)

	mock.ExpectHGetAll("room:r1").SetVal(map[string]string{
		"id":           "r1",
		"last_message": `{"id":"m1"}`,
	})
	mock.ExpectHGetAll("room:r1:deadlines").SetVal(map[string]string{
		"c1/idle":   "1712345678901",
		"malformed": "zzz",
	})

	snap, err := s.Load(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", snap.RoomID)
	assert.JSONEq(t, `{"id":"m1"}`, string(snap.LastMessage))
	require.Len(t, snap.Deadlines, 1)
	assert.Equal(t, "c1", snap.Deadlines[0].ConnID)
	assert.Equal(t, "idle", snap.Deadlines[0].Kind)
	assert.Equal(t, int64(1712345678901), snap.Deadlines[0].At.UnixMilli())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.SaveRoom(ctx, "r1"))
	require.NoError(t, s.SaveLastMessage(ctx, "r1", json.RawMessage(`{"id":"m1"}`)))
	at := time.Now().Add(time.Minute)
	require.NoError(t, s.SaveDeadline(ctx, "r1", Deadline{ConnID: "c1", Kind: "idle", At: at}))

	snap, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", snap.RoomID)
	assert.JSONEq(t, `{"id":"m1"}`, string(snap.LastMessage))
	require.Len(t, snap.Deadlines, 1)

	require.NoError(t, s.ClearDeadline(ctx, "r1", "c1", "idle"))
	snap, err = s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, snap.Deadlines)
}

func TestRedisLoadUnknownRoom(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	s := NewRedis(rdc)

	mock.ExpectHGetAll("room:nope").SetVal(map[string]string{})
	mock.ExpectHGetAll("room:nope:deadlines").SetVal(map[string]string{})

	snap, err := s.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, snap.RoomID)
	assert.Nil(t, snap.LastMessage)
}
