// Package rainstate turns the station's cumulative rain counter into
// incremental rainfall, using a baseline persisted between runs.
package rainstate

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wh2900-relay/internal/statefile"
)

// MaxPlausibleDelta is the largest rain increment (mm) accepted between two
// observations. Anything larger is treated as a read error.
const MaxPlausibleDelta = 100.0

// State is the persisted baseline.
type State struct {
	LastRainMM float64 `json:"last_rain_mm"`
	LastUpdate string  `json:"last_update"`
}

// Tracker owns the rain baseline for the duration of one run. Open takes an
// exclusive lock that Close releases, so overlapping runs serialize their
// read-correct-write sequence.
type Tracker struct {
	path  string
	clock clockwork.Clock
	lock  *statefile.Lock
	state *State
}

// Open locks the state file's sidecar and loads the baseline, if any.
func Open(ctx context.Context, path string, clock clockwork.Clock) (*Tracker, error) {
	lock, err := statefile.Acquire(ctx, path+".lock")
	if err != nil {
		return nil, fmt.Errorf("acquire rain state: %w", err)
	}

	var st State
	found, err := statefile.ReadJSON(path, &st)
	if err != nil {
		// An unreadable baseline is replaced on the next write rather than
		// blocking every future run.
		found = false
	}

	t := &Tracker{path: path, clock: clock, lock: lock}
	if found {
		t.state = &st
	}
	return t, nil
}

// Baseline returns the last stored accumulator value.
func (t *Tracker) Baseline() (float64, bool) {
	if t.state == nil {
		return 0, false
	}
	return t.state.LastRainMM, true
}

// Correct computes the rain that fell since the stored baseline. The candidate
// always becomes the new baseline, even when the delta is rejected.
//
// The first observation only records a baseline and returns (0, false). A
// negative delta (counter reset) or one above MaxPlausibleDelta returns
// (0, false). The returned error reports a failed write; delta and valid
// are still meaningful.
func (t *Tracker) Correct(candidate float64) (float64, bool, error) {
	prev := t.state
	next := &State{
		LastRainMM: candidate,
		LastUpdate: t.clock.Now().UTC().Format(time.RFC3339),
	}

	err := statefile.WriteJSON(t.path, next)
	if err != nil {
		err = fmt.Errorf("persist rain state: %w", err)
	}
	t.state = next

	if prev == nil {
		return 0, false, err
	}

	delta := candidate - prev.LastRainMM
	if delta < 0 || delta > MaxPlausibleDelta {
		return 0, false, err
	}
	return delta, true, err
}

// Close releases the lock.
func (t *Tracker) Close() error {
	return t.lock.Release()
}
