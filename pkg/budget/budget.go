// Package budget enforces the per-run request budget shared by every
// concurrently running agent.
//
// Two independent ceilings apply: requests per minute and requests per
// run. The tracker's check-and-increment is atomic under one lock, so
// concurrent consumers can never jointly overshoot a ceiling. On top of
// the hard ceilings a golang.org/x/time/rate limiter paces granted
// requests so a full minute's allowance is not burned in the first
// second of the window.
package budget

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/bountyswarm/bountyswarm/pkg/defaults"
	"github.com/bountyswarm/bountyswarm/pkg/duration"
)

// Denial errors. Per-minute exhaustion is retryable: the caller may
// wait for the window boundary. Per-run exhaustion is terminal for the
// caller's remaining work.
var (
	ErrMinuteExhausted = errors.New("budget: per-minute ceiling reached")
	ErrRunExhausted    = errors.New("budget: per-run ceiling reached")
)

// Config is the budget file. Externally owned, loaded once per run.
type Config struct {
	Requests struct {
		MaxPerMinute int `yaml:"max_per_minute"`
		MaxPerRun    int `yaml:"max_per_run"`
	} `yaml:"requests"`

	// EvidenceLevel selects how much response data the evidence store
	// captures: "lite", "standard", or "full".
	EvidenceLevel string `yaml:"evidence_level"`
}

// LoadConfig reads the budget file at path, applying defaults for
// missing values. A missing or malformed file yields the defaults.
func LoadConfig(path string) Config {
	cfg := Config{EvidenceLevel: defaults.EvidenceLevelDefault}
	cfg.Requests.MaxPerMinute = defaults.BudgetPerMinute
	cfg.Requests.MaxPerRun = defaults.BudgetPerRun

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		cfg = Config{EvidenceLevel: defaults.EvidenceLevelDefault}
		cfg.Requests.MaxPerMinute = defaults.BudgetPerMinute
		cfg.Requests.MaxPerRun = defaults.BudgetPerRun
		return cfg
	}
	if cfg.Requests.MaxPerMinute <= 0 {
		cfg.Requests.MaxPerMinute = defaults.BudgetPerMinute
	}
	if cfg.Requests.MaxPerRun <= 0 {
		cfg.Requests.MaxPerRun = defaults.BudgetPerRun
	}
	if cfg.EvidenceLevel == "" {
		cfg.EvidenceLevel = defaults.EvidenceLevelDefault
	}
	return cfg
}

// Tracker is the shared, run-scoped request budget. It is safe for
// concurrent use and is destroyed with the run; nothing is persisted.
type Tracker struct {
	maxPerMinute int
	maxPerRun    int

	mu          sync.Mutex
	usedMinute  int
	usedRun     int
	windowStart time.Time

	// pace smooths granted requests across the minute window.
	pace *rate.Limiter

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewTracker creates a tracker with the given ceilings. Non-positive
// ceilings fall back to the package defaults.
func NewTracker(maxPerMinute, maxPerRun int) *Tracker {
	if maxPerMinute <= 0 {
		maxPerMinute = defaults.BudgetPerMinute
	}
	if maxPerRun <= 0 {
		maxPerRun = defaults.BudgetPerRun
	}
	burst := maxPerMinute / 6
	if burst < 1 {
		burst = 1
	}
	t := &Tracker{
		maxPerMinute: maxPerMinute,
		maxPerRun:    maxPerRun,
		pace:         rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), burst),
		now:          time.Now,
	}
	t.windowStart = t.now().Truncate(duration.BudgetWindow)
	return t
}

// FromConfig creates a tracker from a loaded budget file.
func FromConfig(cfg Config) *Tracker {
	return NewTracker(cfg.Requests.MaxPerMinute, cfg.Requests.MaxPerRun)
}

// SetClock replaces the tracker's clock. Tests use this to drive window
// rollover deterministically.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	t.windowStart = now().Truncate(duration.BudgetWindow)
}

// TryConsume atomically attempts to consume n requests. It returns nil
// on grant. On denial nothing is consumed (no partial consumption) and
// the error is ErrMinuteExhausted or ErrRunExhausted.
func (t *Tracker) TryConsume(n int) error {
	if n <= 0 {
		n = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rolloverLocked()

	if t.usedRun+n > t.maxPerRun {
		return ErrRunExhausted
	}
	if t.usedMinute+n > t.maxPerMinute {
		return ErrMinuteExhausted
	}
	t.usedMinute += n
	t.usedRun += n
	return nil
}

// rolloverLocked resets the per-minute counter when the clock has
// crossed into a new minute window. The window start advances to the
// start of the current window, not to now, so windows stay aligned.
// The reset never happens early.
func (t *Tracker) rolloverLocked() {
	now := t.now()
	if elapsed := now.Sub(t.windowStart); elapsed >= duration.BudgetWindow {
		windows := elapsed / duration.BudgetWindow
		t.windowStart = t.windowStart.Add(windows * duration.BudgetWindow)
		t.usedMinute = 0
	}
}

// Wait consumes n requests, blocking across minute-window boundaries
// when the per-minute ceiling is reached. It fails fast with
// ErrRunExhausted (terminal: the caller must skip its remaining work)
// and with ctx.Err() on cancellation. Granted requests are additionally
// paced by the smoothing limiter.
func (t *Tracker) Wait(ctx context.Context, n int) error {
	if n <= 0 {
		n = 1
	}
	for {
		err := t.TryConsume(n)
		switch {
		case err == nil:
			// The pace charge is capped at the limiter's burst so a
			// single high-cost grant under the ceilings never trips
			// rate.Limiter's n > burst error.
			charge := n
			if b := t.pace.Burst(); charge > b {
				charge = b
			}
			if perr := t.pace.WaitN(ctx, charge); perr != nil {
				t.refund(n)
				return perr
			}
			return nil
		case errors.Is(err, ErrRunExhausted):
			return err
		}

		// Per-minute exhaustion: wait for the window boundary.
		timer := time.NewTimer(t.untilRollover())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refund returns n requests consumed by TryConsume. Used when pacing
// fails after the grant so the counters never leak.
func (t *Tracker) refund(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	t.usedMinute -= n
	if t.usedMinute < 0 {
		t.usedMinute = 0
	}
	t.usedRun -= n
	if t.usedRun < 0 {
		t.usedRun = 0
	}
}

// untilRollover returns the wait until the next minute-window boundary,
// floored at the poll interval so a fake clock cannot spin the loop.
func (t *Tracker) untilRollover() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.windowStart.Add(duration.BudgetWindow).Sub(t.now())
	if d < duration.BudgetPoll {
		d = duration.BudgetPoll
	}
	return d
}

// Snapshot is a point-in-time view of the budget counters, embedded in
// the run manifest.
type Snapshot struct {
	MaxPerMinute   int       `json:"max_per_minute"`
	MaxPerRun      int       `json:"max_per_run"`
	UsedThisMinute int       `json:"used_this_minute"`
	UsedThisRun    int       `json:"used_this_run"`
	WindowStart    time.Time `json:"window_start"`
}

// Snapshot returns the current counter state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return Snapshot{
		MaxPerMinute:   t.maxPerMinute,
		MaxPerRun:      t.maxPerRun,
		UsedThisMinute: t.usedMinute,
		UsedThisRun:    t.usedRun,
		WindowStart:    t.windowStart,
	}
}

// String renders the snapshot for log lines.
func (s Snapshot) String() string {
	return fmt.Sprintf("minute %d/%d run %d/%d", s.UsedThisMinute, s.MaxPerMinute, s.UsedThisRun, s.MaxPerRun)
}
