package importer

import "sync"

type ProgressStatus string

const (
	ProgressIdle      ProgressStatus = "idle"
	ProgressRunning   ProgressStatus = "running"
	ProgressCompleted ProgressStatus = "completed"
	ProgressFailed    ProgressStatus = "failed"
)

// ProgressState is the snapshot exposed to the UI layer, which polls it for
// progress and error reporting. It is never persisted.
type ProgressState struct {
	Open           bool           `json:"open"`
	Current        int            `json:"current"`
	Total          int            `json:"total"`
	Status         ProgressStatus `json:"status"`
	Label          string         `json:"label,omitempty"`
	Errors         []RowError     `json:"errors,omitempty"`
	SuccessMessage string         `json:"success_message,omitempty"`
}

// Tracker serializes progress updates from in-flight row operations onto a
// single counter. Lifecycle: Idle -> Running -> Completed or Failed -> Idle
// on Close.
type Tracker struct {
	mu    sync.Mutex
	state ProgressState
}

func NewTracker() *Tracker {
	return &Tracker{state: ProgressState{Status: ProgressIdle}}
}

// Start opens the dialog state and resets counters for a run of total rows.
func (t *Tracker) Start(total int, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = ProgressState{
		Open:   true,
		Total:  total,
		Status: ProgressRunning,
		Label:  label,
	}
}

// Increment advances the counter by one processed row, clamped at the total.
func (t *Tracker) Increment() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Status != ProgressRunning {
		return
	}
	if t.state.Current < t.state.Total {
		t.state.Current++
	}
}

// Complete finalizes a successful run with the aggregate message.
func (t *Tracker) Complete(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Status = ProgressCompleted
	t.state.SuccessMessage = message
}

// Fail finalizes the run with the collected error list.
func (t *Tracker) Fail(errs []RowError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Status = ProgressFailed
	t.state.Errors = append([]RowError(nil), errs...)
}

// Close dismisses the dialog and returns to the idle state.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = ProgressState{Status: ProgressIdle}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.state
	snap.Errors = append([]RowError(nil), t.state.Errors...)
	return snap
}
