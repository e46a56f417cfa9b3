package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/wh2900-relay/internal/statefile"
)

// pushState maps sink name to the last successful push.
type pushState map[string]time.Time

// LoadPushState restores last-push times saved by a previous process. It is a
// no-op unless WithPushStateFile was given.
func (d *Dispatcher) LoadPushState(ctx context.Context) error {
	if d.pushState == "" {
		return nil
	}

	lock, err := statefile.Acquire(ctx, d.pushState+".lock")
	if err != nil {
		return fmt.Errorf("load push state: %w", err)
	}
	defer lock.Release()

	st := pushState{}
	if _, err := statefile.ReadJSON(d.pushState, &st); err != nil {
		return fmt.Errorf("load push state: %w", err)
	}

	for _, t := range d.targets {
		if last, ok := st[t.Sink.Name()]; ok && last.After(t.lastPush) {
			t.lastPush = last
		}
	}
	return nil
}

// SavePushState merges this process's push times into the state file. Entries
// for sinks this process does not know are kept.
func (d *Dispatcher) SavePushState(ctx context.Context) error {
	if d.pushState == "" {
		return nil
	}

	lock, err := statefile.Acquire(ctx, d.pushState+".lock")
	if err != nil {
		return fmt.Errorf("save push state: %w", err)
	}
	defer lock.Release()

	st := pushState{}
	if _, err := statefile.ReadJSON(d.pushState, &st); err != nil {
		d.logger.Warn("discarding unreadable push state", "file", d.pushState, "error", err)
		st = pushState{}
	}

	for _, t := range d.targets {
		if t.lastPush.IsZero() {
			continue
		}
		if prev, ok := st[t.Sink.Name()]; !ok || t.lastPush.After(prev) {
			st[t.Sink.Name()] = t.lastPush.UTC()
		}
	}

	if err := statefile.WriteJSON(d.pushState, st); err != nil {
		return fmt.Errorf("save push state: %w", err)
	}
	return nil
}
