package hub

import (
	"time"
)

type deadlineKind string

const (
	kindAdmission deadlineKind = "admission"
	kindIdle      deadlineKind = "idle"
)

type firedDeadline struct {
	connID string
	kind   deadlineKind
	at     time.Time
}

// timerManager keeps every pending deadline as an absolute timestamp and
// arms a single in-memory alarm for the earliest one only. The alarm handle
// is disposable: correctness comes from the table, which the owner mirrors
// to durable storage, so the whole schedule can be rebuilt after the process
// was suspended between events.
//
// All methods must be called with the owning hub's mutex held. The wake
// callback runs on its own goroutine and must re-enter through that mutex.
type timerManager struct {
	deadlines map[string]map[deadlineKind]time.Time // connID -> kind -> wake-up time
	alarm     *time.Timer
	wake      func()
}

func newTimerManager(wake func()) *timerManager {
	return &timerManager{
		deadlines: make(map[string]map[deadlineKind]time.Time),
		wake:      wake,
	}
}

// arm schedules a deadline, replacing any pending one of the same kind for
// the same connection. The old entry is gone the moment the new one exists,
// so a racing fire can only ever observe the new timestamp.
func (tm *timerManager) arm(connID string, kind deadlineKind, at time.Time) {
	byKind := tm.deadlines[connID]
	if byKind == nil {
		byKind = make(map[deadlineKind]time.Time)
		tm.deadlines[connID] = byKind
	}
	byKind[kind] = at
	tm.reschedule()
}

// cancel drops a pending deadline. Cancelling one that already fired (or
// never existed) is a silent no-op.
func (tm *timerManager) cancel(connID string, kind deadlineKind) bool {
	byKind, ok := tm.deadlines[connID]
	if !ok {
		return false
	}
	if _, ok := byKind[kind]; !ok {
		return false
	}
	delete(byKind, kind)
	if len(byKind) == 0 {
		delete(tm.deadlines, connID)
	}
	tm.reschedule()
	return true
}

// cancelAll drops every deadline owned by a connection.
func (tm *timerManager) cancelAll(connID string) []deadlineKind {
	byKind, ok := tm.deadlines[connID]
	if !ok {
		return nil
	}
	kinds := make([]deadlineKind, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	delete(tm.deadlines, connID)
	tm.reschedule()
	return kinds
}

func (tm *timerManager) pending(connID string, kind deadlineKind) (time.Time, bool) {
	at, ok := tm.deadlines[connID][kind]
	return at, ok
}

// due pops every entry whose deadline has passed. An alarm that fires after
// its entry was replaced finds only the new (not yet due) timestamp and
// pops nothing, which is what makes superseded fires harmless.
func (tm *timerManager) due(now time.Time) []firedDeadline {
	var fired []firedDeadline
	for connID, byKind := range tm.deadlines {
		for kind, at := range byKind {
			if at.After(now) {
				continue
			}
			fired = append(fired, firedDeadline{connID: connID, kind: kind, at: at})
			delete(byKind, kind)
		}
		if len(byKind) == 0 {
			delete(tm.deadlines, connID)
		}
	}
	return fired
}

// load replaces the table wholesale from persisted state, keeping only the
// latest entry per (connection, kind).
func (tm *timerManager) load(entries []firedDeadline) {
	tm.deadlines = make(map[string]map[deadlineKind]time.Time)
	for _, e := range entries {
		byKind := tm.deadlines[e.connID]
		if byKind == nil {
			byKind = make(map[deadlineKind]time.Time)
			tm.deadlines[e.connID] = byKind
		}
		byKind[e.kind] = e.at
	}
	tm.reschedule()
}

// reschedule re-arms the single alarm for the earliest pending deadline, or
// disarms it when the table is empty. A deadline already in the past fires
// immediately.
func (tm *timerManager) reschedule() {
	if tm.alarm != nil {
		tm.alarm.Stop()
		tm.alarm = nil
	}
	earliest, ok := tm.earliest()
	if !ok {
		return
	}
	d := time.Until(earliest)
	if d < 0 {
		d = 0
	}
	tm.alarm = time.AfterFunc(d, tm.wake)
}

func (tm *timerManager) earliest() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, byKind := range tm.deadlines {
		for _, at := range byKind {
			if !found || at.Before(earliest) {
				earliest = at
				found = true
			}
		}
	}
	return earliest, found
}
