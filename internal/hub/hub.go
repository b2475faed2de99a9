// Package hub implements the per-room connection hub: admission handshake,
// deadline timers, and broadcast fanout. One Hub owns exactly one room.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"roomhub/internal/protocol"
	"roomhub/internal/store"
	"roomhub/internal/verify"
)

const persistTimeout = 1500 * time.Millisecond

var (
	// ErrRoomMismatch signals an external trigger for a different room than
	// the one this hub is bound to.
	ErrRoomMismatch = errors.New("room id does not match bound room")
	// ErrRoomConflict signals a rehydration attempt against persisted state
	// that belongs to a different room.
	ErrRoomConflict = errors.New("persisted state belongs to a different room")
)

type Options struct {
	// RoomID is optional routing metadata. When set, the hub binds the room
	// up front and Rehydrate restores its persisted state.
	RoomID string

	AdmissionTimeout time.Duration
	IdleTimeout      time.Duration
}

// Hub serialises every inbound operation (connect, disconnect, client
// message, external trigger, alarm fire) through one mutex: exactly one
// operation runs at a time, which is what makes the cache update and fanout
// atomic without further locking.
type Hub struct {
	mu sync.Mutex

	roomID string
	reg    *registry
	timers *timerManager
	cache  lastMessageCache

	authority verify.Authority
	st        store.Store

	admissionTimeout time.Duration
	idleTimeout      time.Duration
}

func New(authority verify.Authority, st store.Store, opts Options) *Hub {
	h := &Hub{
		roomID:           opts.RoomID,
		reg:              newRegistry(),
		authority:        authority,
		st:               st,
		admissionTimeout: opts.AdmissionTimeout,
		idleTimeout:      opts.IdleTimeout,
	}
	h.timers = newTimerManager(h.onAlarm)
	return h
}

// Rehydrate restores the last-message cache and the pending deadlines from
// the store. It only applies when the room was bound from routing metadata;
// an unbound hub has nothing to resume.
func (h *Hub) Rehydrate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.roomID == "" {
		return nil
	}

	snap, err := h.st.Load(ctx, h.roomID)
	if err != nil {
		return fmt.Errorf("load room %s: %w", h.roomID, err)
	}
	if snap.RoomID != "" && snap.RoomID != h.roomID {
		return ErrRoomConflict
	}

	if snap.LastMessage != nil {
		h.cache.put(snap.LastMessage)
	}

	entries := make([]firedDeadline, 0, len(snap.Deadlines))
	for _, d := range snap.Deadlines {
		entries = append(entries, firedDeadline{
			connID: d.ConnID,
			kind:   deadlineKind(d.Kind),
			at:     d.At,
		})
	}
	// Re-arm from absolute timestamps; anything already past fires straight
	// away and is cleaned up against the (empty) connection set.
	h.timers.load(entries)

	if err := h.st.SaveRoom(ctx, h.roomID); err != nil {
		zap.L().Warn("hub.persist_room", zap.Error(err))
	}
	zap.L().Info("hub.rehydrate",
		zap.String("room_id", h.roomID),
		zap.Int("deadlines", len(entries)),
		zap.Bool("cached_message", snap.LastMessage != nil),
	)
	return nil
}

// Connect registers a new connection, arms its admission deadline and
// greets it. routedRoom is optional routing metadata from the transport.
// The returned handle identifies the connection in every later call.
func (h *Hub) Connect(sender Sender, routedRoom string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &connection{
		id:         uuid.NewString(),
		sender:     sender,
		state:      StateAwaitingAuth,
		routedRoom: routedRoom,
	}
	h.reg.register(c)
	h.armDeadline(c.id, kindAdmission, time.Now().Add(h.admissionTimeout))

	// Best-effort hint, sent exactly once.
	_ = sender.Send(protocol.NewInfo(
		fmt.Sprintf("authenticate within %s", h.admissionTimeout)))

	return c.id
}

// Disconnect tears a connection down after its transport closed. Calling it
// for an unknown or already-closed handle is a no-op.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.reg.unregister(connID)
	if c == nil || c.state == StateClosed {
		return
	}
	c.state = StateClosed
	h.dropDeadlines(connID)
}

// HandleMessage dispatches one inbound client frame. Protocol violations
// produce an explicit error frame; only the admission handshake is acted on
// before authentication.
func (h *Hub) HandleMessage(ctx context.Context, connID string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.reg.get(connID)
	if c == nil || c.state == StateClosed {
		return
	}

	msg, err := protocol.ParseClient(data)
	if err != nil {
		code := protocol.CodeMalformed
		if errors.Is(err, protocol.ErrUnknownType) {
			code = protocol.CodeUnknownType
		}
		_ = c.sender.Send(protocol.NewError(code, err.Error()))
		return
	}

	switch m := msg.(type) {
	case protocol.AuthRequest:
		h.handleAuth(ctx, c, m)
	case protocol.Ping:
		if c.state != StateAuthenticated {
			_ = c.sender.Send(protocol.NewError(protocol.CodeUnauthorized, "authenticate first"))
			return
		}
		// Liveness: cancel-and-rearm the idle deadline, echo the timestamp.
		h.armDeadline(c.id, kindIdle, time.Now().Add(h.idleTimeout))
		t := time.Now().UnixMilli()
		if m.T != nil {
			t = *m.T
		}
		_ = c.sender.Send(protocol.NewPong(t))
	case protocol.Typing:
		if c.state != StateAuthenticated {
			_ = c.sender.Send(protocol.NewError(protocol.CodeUnauthorized, "authenticate first"))
			return
		}
		h.fanoutTyping(c, m.IsTyping)
	}
}

// Broadcast is the external trigger entry point: decorate the body with the
// previous cache value, deliver to every connection not excluded, then
// overwrite the cache with the undecorated body. Returns the delivery count.
func (h *Hub) Broadcast(ctx context.Context, roomID string, message json.RawMessage, exclude []string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.roomID != "" && h.roomID != roomID {
		return 0, ErrRoomMismatch
	}

	payload, err := decorate(message, h.cache.snapshot())
	if err != nil {
		return 0, err
	}

	// First reference to a never-seen room binds it; a rejected trigger
	// never gets this far.
	h.bindRoom(ctx, roomID)

	ex := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		ex[id] = struct{}{}
	}
	delivered := h.deliver(ex, payload, false)

	h.cache.put(message)
	h.persistLastMessage(message)

	return delivered, nil
}

// State reports the bound room id and the cached last message.
func (h *Hub) State() (string, json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.roomID, h.cache.snapshot()
}

// ──────────────────────────── admission handshake ────────────────────────────

func (h *Hub) handleAuth(ctx context.Context, c *connection, m protocol.AuthRequest) {
	// Repeated handshake on an authenticated connection: acknowledge and do
	// nothing else. Timers and identity never regress.
	if c.state == StateAuthenticated {
		_ = c.sender.Send(protocol.NewAuthOK())
		return
	}

	if m.Token == "" {
		h.failAdmission(c, protocol.CodeMissingField, "token is required")
		return
	}

	roomID, err := resolveRoomID(c.routedRoom, m.RoomID)
	if err != nil {
		code := protocol.CodeUnauthorized
		if errors.Is(err, errRoomRequired) {
			code = protocol.CodeMissingField
		}
		h.failAdmission(c, code, err.Error())
		return
	}
	if h.roomID != "" && h.roomID != roomID {
		h.failAdmission(c, protocol.CodeUnauthorized, "room mismatch")
		return
	}

	// The admission deadline keeps running while this call is in flight; a
	// fire that loses the race is discarded once the deadline is cancelled.
	res, err := h.authority.Check(ctx, roomID, m.Token)
	if err != nil || !res.OK {
		if err != nil {
			// Collaborator failures stay server-side; the client only sees
			// a generic rejection.
			zap.L().Warn("hub.verify", zap.String("room_id", roomID), zap.Error(err))
		}
		h.failAdmission(c, protocol.CodeUnauthorized, "authentication failed")
		return
	}

	userID := res.UserID
	if userID == "" {
		userID = m.UserID
	}

	h.bindRoom(ctx, roomID)
	h.reg.markAuthenticated(c.id, userID)
	h.cancelDeadline(c.id, kindAdmission)
	h.armDeadline(c.id, kindIdle, time.Now().Add(h.idleTimeout))
	_ = c.sender.Send(protocol.NewAuthOK())

	zap.L().Info("hub.authenticated",
		zap.String("room_id", roomID),
		zap.String("conn_id", c.id),
		zap.String("user_id", userID),
	)
}

var (
	errRoomRequired = errors.New("room id is required")
	errRoomRouting  = errors.New("room id conflicts with connection routing")
)

// resolveRoomID picks the room identifier for an admission request. Routing
// metadata wins; a payload id may only confirm it, never contradict it.
func resolveRoomID(routed, payload string) (string, error) {
	switch {
	case routed != "" && payload != "" && routed != payload:
		return "", errRoomRouting
	case routed != "":
		return routed, nil
	case payload != "":
		return payload, nil
	default:
		return "", errRoomRequired
	}
}

// failAdmission rejects the handshake: explicit error frame first, then the
// connection is closed with the admission-failure status.
func (h *Hub) failAdmission(c *connection, code, message string) {
	_ = c.sender.Send(protocol.NewError(code, message))
	h.closeConn(c, protocol.CloseAdmissionFailed, message)
}

// closeConn finishes a connection from inside the hub: terminal state, all
// timers dropped exactly once, registry entry removed, transport closed.
func (h *Hub) closeConn(c *connection, reason protocol.CloseReason, message string) {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	h.dropDeadlines(c.id)
	h.reg.unregister(c.id)
	c.sender.Close(reason, message)
}

// ─────────────────────────────── deadlines ───────────────────────────────────

// onAlarm runs when the earliest deadline passes. It re-enters the hub,
// handles everything that is due and lets the manager re-arm for the next
// earliest. Entries replaced or cancelled between scheduling and firing are
// simply no longer in the table.
func (h *Hub) onAlarm() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, d := range h.timers.due(time.Now()) {
		h.clearPersistedDeadline(d.connID, d.kind)

		c := h.reg.get(d.connID)
		if c == nil || c.state == StateClosed {
			continue
		}
		switch d.kind {
		case kindAdmission:
			if c.state != StateAwaitingAuth {
				continue
			}
			_ = c.sender.Send(protocol.NewError(protocol.CodeUnauthorized,
				"authentication deadline exceeded"))
			h.closeConn(c, protocol.CloseAdmissionFailed, "authentication timeout")
		case kindIdle:
			if c.state != StateAuthenticated {
				continue
			}
			_ = c.sender.Send(protocol.NewError(protocol.CodeIdleTimeout,
				"no liveness signal received"))
			h.closeConn(c, protocol.CloseNormal, "idle timeout")
		}
	}
	h.timers.reschedule()
}

func (h *Hub) armDeadline(connID string, kind deadlineKind, at time.Time) {
	h.timers.arm(connID, kind, at)
	h.persistDeadline(connID, kind, at)
}

func (h *Hub) cancelDeadline(connID string, kind deadlineKind) {
	h.timers.cancel(connID, kind)
	h.clearPersistedDeadline(connID, kind)
}

func (h *Hub) dropDeadlines(connID string) {
	for _, kind := range h.timers.cancelAll(connID) {
		h.clearPersistedDeadline(connID, kind)
	}
}

// ─────────────────────────────── persistence ─────────────────────────────────

// bindRoom fixes the room identity on first resolution and persists it,
// together with any deadlines armed before the room was known. Re-binding
// the same id is a no-op; conflicting ids never reach this point.
func (h *Hub) bindRoom(ctx context.Context, roomID string) {
	if h.roomID == roomID {
		return
	}
	h.roomID = roomID
	if err := h.st.SaveRoom(ctx, roomID); err != nil {
		zap.L().Warn("hub.persist_room", zap.Error(err))
	}
	for connID, byKind := range h.timers.deadlines {
		for kind, at := range byKind {
			h.persistDeadline(connID, kind, at)
		}
	}
	zap.L().Info("hub.bound", zap.String("room_id", roomID))
}

func (h *Hub) persistDeadline(connID string, kind deadlineKind, at time.Time) {
	if h.roomID == "" {
		// Nothing to resume to before the room identity is known; the table
		// is flushed on binding.
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	err := h.st.SaveDeadline(ctx, h.roomID, store.Deadline{
		ConnID: connID,
		Kind:   string(kind),
		At:     at,
	})
	if err != nil {
		zap.L().Warn("hub.persist_deadline", zap.Error(err))
	}
}

func (h *Hub) clearPersistedDeadline(connID string, kind deadlineKind) {
	if h.roomID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := h.st.ClearDeadline(ctx, h.roomID, connID, string(kind)); err != nil {
		zap.L().Warn("hub.clear_deadline", zap.Error(err))
	}
}

func (h *Hub) persistLastMessage(msg json.RawMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := h.st.SaveLastMessage(ctx, h.roomID, msg); err != nil {
		zap.L().Warn("hub.persist_last_message", zap.Error(err))
	}
}
