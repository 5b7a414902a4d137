// Package schedule is the view-model behind the interview schedule screen:
// it owns the reference month, the current event snapshot, and the
// cancellation action, and derives the month grid through internal/calendar.
package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"hiredesk/internal/calendar"
	appLog "hiredesk/internal/log"
	"hiredesk/internal/model"
)

// ErrUnknownMeeting is returned by Cancel when no held event carries the
// given meeting identifier.
var ErrUnknownMeeting = errors.New("schedule: unknown meeting id")

// Backend is the slice of the API client the view-model needs.
type Backend interface {
	ListSchedules(ctx context.Context) ([]model.ScheduleEvent, error)
	CancelSchedule(ctx context.Context, meetingID string) error
}

// ViewModel holds one screen instance's schedule state. All methods are
// safe for concurrent use; responses from superseded loads are discarded
// so the last user intent always wins.
type ViewModel struct {
	backend Backend
	loc     *time.Location

	mu     sync.Mutex
	ref    time.Time
	events []model.ScheduleEvent
	gen    uint64
}

// New creates a view-model positioned on the month containing now.
func New(backend Backend, loc *time.Location) *ViewModel {
	if loc == nil {
		loc = time.Local
	}
	return &ViewModel{
		backend: backend,
		loc:     loc,
		ref:     time.Now().In(loc),
	}
}

// Load fetches the event snapshot. Each call bumps a generation token; if
// another load has started by the time this one's response arrives, the
// stale response is dropped instead of overwriting newer state.
func (vm *ViewModel) Load(ctx context.Context) error {
	vm.mu.Lock()
	vm.gen++
	token := vm.gen
	vm.mu.Unlock()

	events, err := vm.backend.ListSchedules(ctx)
	if err != nil {
		return err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if token != vm.gen {
		appLog.Debug("dropping superseded schedule response", "token", token, "current", vm.gen)
		return nil
	}
	vm.events = events
	return nil
}

// Month returns the current reference month.
func (vm *ViewModel) Month() time.Time {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.ref
}

// SetMonth positions the view on the month containing ref.
func (vm *ViewModel) SetMonth(ref time.Time) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.ref = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, vm.loc)
}

// Forward moves the view one month ahead and returns the new reference.
func (vm *ViewModel) Forward() time.Time {
	return vm.advance(calendar.Forward)
}

// Back moves the view one month back and returns the new reference.
func (vm *ViewModel) Back() time.Time {
	return vm.advance(calendar.Back)
}

func (vm *ViewModel) advance(dir calendar.Direction) time.Time {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.ref = calendar.AdvanceMonth(vm.ref, dir)
	return vm.ref
}

// Grid derives the month grid for the current reference month from the
// held snapshot.
func (vm *ViewModel) Grid() []calendar.Day {
	vm.mu.Lock()
	ref, events := vm.ref, vm.events
	vm.mu.Unlock()
	return calendar.Build(ref, vm.loc, events)
}

// Events returns a copy of the current snapshot.
func (vm *ViewModel) Events() []model.ScheduleEvent {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make([]model.ScheduleEvent, len(vm.events))
	copy(out, vm.events)
	return out
}

// Cancel cancels the interview with the given meeting identifier. The
// local status is patched to Cancelled only after the backend
// acknowledges; on failure the snapshot is left untouched.
func (vm *ViewModel) Cancel(ctx context.Context, meetingID string) error {
	vm.mu.Lock()
	found := false
	for i := range vm.events {
		if vm.events[i].MeetingID == meetingID {
			found = true
			break
		}
	}
	vm.mu.Unlock()
	if !found {
		return ErrUnknownMeeting
	}

	if err := vm.backend.CancelSchedule(ctx, meetingID); err != nil {
		return err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	for i := range vm.events {
		if vm.events[i].MeetingID == meetingID {
			vm.events[i].Status = model.StatusCancelled
		}
	}
	appLog.Info("interview cancelled", "meeting_id", meetingID)
	return nil
}

// Upcoming returns held events whose calendar date falls within the next
// horizon days (inclusive of today), in snapshot order. Used by the
// single-shot CLI dump.
func (vm *ViewModel) Upcoming(now time.Time, horizonDays int) []model.ScheduleEvent {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, vm.loc)
	end := start.AddDate(0, 0, horizonDays)

	var out []model.ScheduleEvent
	for _, ev := range vm.Events() {
		t, ok := calendar.EventDate(ev.StartDate, vm.loc)
		if !ok {
			continue
		}
		if !t.Before(start) && t.Before(end) {
			out = append(out, ev)
		}
	}
	return out
}
