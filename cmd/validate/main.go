// Command validate checks a relay deployment without sending anything:
// the config file, the configured targets, the capture backlog and the
// persisted state files. It exits non-zero when any phase fails.
//
// Usage:
//
//	go run ./cmd/validate [config.toml]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wh2900-relay/internal/config"
	"github.com/couchcryptid/wh2900-relay/internal/ingest"
	"github.com/couchcryptid/wh2900-relay/internal/rainstate"
	"github.com/couchcryptid/wh2900-relay/internal/statefile"
	"github.com/couchcryptid/wh2900-relay/internal/targets"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	notes  []string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	os.Exit(run(context.Background(), os.Stdout, os.Args[1:]))
}

func run(ctx context.Context, w io.Writer, args []string) int {
	path := config.ResolvePath(args)
	fmt.Fprintf(w, "=== WH2900 Relay Validation: %s ===\n\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load config: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateTargets(ctx, cfg),
		validateCaptures(cfg),
		validateState(cfg),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.name, status)
	}

	for _, p := range phases {
		if len(p.notes) == 0 && p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for _, n := range p.notes {
			fmt.Fprintf(w, "  %s\n", n)
		}
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// ── Phase 1: Targets ──
// Every target must build, and at least one must be active.

func validateTargets(ctx context.Context, cfg *config.Config) *phase {
	p := &phase{name: "Targets"}

	set, err := targets.Build(ctx, cfg.Targets, targets.Deps{
		Timeout: cfg.General.RequestTimeout.Duration,
		Clock:   clockwork.NewRealClock(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	defer set.Close()

	active := 0
	for _, t := range set.Targets {
		if t.Active {
			active++
			p.notef("%-16s %-6s active", t.Sink.Name(), t.Sink.Mode())
			continue
		}
		p.notef("%-16s %-6s inactive: %s", t.Sink.Name(), t.Sink.Mode(), t.InactiveReason)
	}
	if active == 0 {
		p.errorf("no active targets among %d configured", len(set.Targets))
	}
	return p
}

// ── Phase 2: Captures ──
// Every pending capture must decode; unknown variants are reported but pass.

func validateCaptures(cfg *config.Config) *phase {
	p := &phase{name: "Capture backlog"}

	files, err := ingest.Discover(cfg.General.CaptureDir, cfg.General.CapturePattern)
	if err != nil {
		p.errorf("list %s: %v", cfg.General.CaptureDir, err)
		return p
	}

	variants := map[string]int{}
	for _, f := range files {
		r, err := ingest.Read(f)
		if err != nil {
			p.errorf("%s: %v", f, err)
			continue
		}
		switch {
		case r.Variant == nil:
			variants["pre-decoded"]++
		case r.UnknownVariant:
			variants["unknown "+r.Variant.String()]++
		default:
			variants[r.Variant.String()]++
		}
	}

	p.notef("%d pending in %s", len(files), cfg.General.CaptureDir)
	keys := make([]string, 0, len(variants))
	for k := range variants {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.notef("%-16s %d", k, variants[k])
	}
	return p
}

// ── Phase 3: State files ──
// State files may be missing but must parse when present.

func validateState(cfg *config.Config) *phase {
	p := &phase{name: "State files"}

	var rain rainstate.State
	switch found, err := statefile.ReadJSON(cfg.General.RainStateFile, &rain); {
	case err != nil:
		p.errorf("rain state: %v", err)
	case !found:
		p.notef("rain state: none yet, first accumulator reading sets the baseline")
	case rain.LastRainMM < 0:
		p.errorf("rain state: negative baseline %.1f mm", rain.LastRainMM)
	default:
		p.notef("rain state: baseline %.1f mm at %s", rain.LastRainMM, rain.LastUpdate)
	}

	if cfg.General.PushStateFile != "" {
		var pushes map[string]any
		if _, err := statefile.ReadJSON(cfg.General.PushStateFile, &pushes); err != nil {
			p.errorf("push state: %v", err)
		}
	}
	return p
}
