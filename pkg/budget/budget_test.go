package budget

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTryConsume(t *testing.T) {
	t.Run("grants up to the minute ceiling", func(t *testing.T) {
		tr := NewTracker(5, 100)
		for i := 0; i < 5; i++ {
			if err := tr.TryConsume(1); err != nil {
				t.Fatalf("grant %d: unexpected error %v", i, err)
			}
		}
		if err := tr.TryConsume(1); !errors.Is(err, ErrMinuteExhausted) {
			t.Fatalf("expected ErrMinuteExhausted, got %v", err)
		}
	})

	t.Run("run ceiling wins over minute ceiling", func(t *testing.T) {
		tr := NewTracker(10, 3)
		for i := 0; i < 3; i++ {
			if err := tr.TryConsume(1); err != nil {
				t.Fatalf("grant %d: unexpected error %v", i, err)
			}
		}
		if err := tr.TryConsume(1); !errors.Is(err, ErrRunExhausted) {
			t.Fatalf("expected ErrRunExhausted, got %v", err)
		}
	})

	t.Run("denial consumes nothing", func(t *testing.T) {
		tr := NewTracker(5, 100)
		if err := tr.TryConsume(3); err != nil {
			t.Fatal(err)
		}
		if err := tr.TryConsume(3); !errors.Is(err, ErrMinuteExhausted) {
			t.Fatalf("expected denial, got %v", err)
		}
		// The failed request of 3 must not have consumed the remaining 2.
		if err := tr.TryConsume(2); err != nil {
			t.Fatalf("remaining allowance gone after denial: %v", err)
		}
	})

	t.Run("zero and negative count as one", func(t *testing.T) {
		tr := NewTracker(2, 100)
		if err := tr.TryConsume(0); err != nil {
			t.Fatal(err)
		}
		if err := tr.TryConsume(-5); err != nil {
			t.Fatal(err)
		}
		if err := tr.TryConsume(1); !errors.Is(err, ErrMinuteExhausted) {
			t.Fatalf("expected exhaustion after two implicit singles, got %v", err)
		}
	})
}

func TestWindowRollover(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	current := base
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		current = current.Add(d)
		mu.Unlock()
	}

	tr := NewTracker(2, 100)
	tr.SetClock(clock)

	if err := tr.TryConsume(2); err != nil {
		t.Fatal(err)
	}
	if err := tr.TryConsume(1); !errors.Is(err, ErrMinuteExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}

	// 29s later we are still inside the same aligned window (12:00:00).
	advance(29 * time.Second)
	if err := tr.TryConsume(1); !errors.Is(err, ErrMinuteExhausted) {
		t.Fatalf("window reset early: %v", err)
	}

	// Crossing 12:01:00 resets the minute counter.
	advance(2 * time.Second)
	if err := tr.TryConsume(1); err != nil {
		t.Fatalf("expected fresh window, got %v", err)
	}

	snap := tr.Snapshot()
	if got, want := snap.WindowStart, base.Truncate(time.Minute).Add(time.Minute); !got.Equal(want) {
		t.Errorf("window start = %v, want %v (aligned, not now)", got, want)
	}
	if snap.UsedThisRun != 3 {
		t.Errorf("run counter = %d, want 3 (rollover must not reset it)", snap.UsedThisRun)
	}
}

func TestWindowStartStaysAligned(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	current := base
	tr := NewTracker(10, 100)
	tr.SetClock(func() time.Time { return current })

	// Jump several windows at once: the start advances by whole
	// windows from the old start, never to the current instant.
	current = base.Add(3*time.Minute + 17*time.Second)
	if err := tr.TryConsume(1); err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 1, 12, 3, 0, 0, time.UTC)
	if got := tr.Snapshot().WindowStart; !got.Equal(want) {
		t.Errorf("window start = %v, want %v", got, want)
	}
}

func TestConcurrentConsumersNeverOvershoot(t *testing.T) {
	const (
		workers  = 50
		attempts = 40
		ceiling  = 100
	)
	tr := NewTracker(ceiling, ceiling)

	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < attempts; j++ {
				if err := tr.TryConsume(1); err == nil {
					atomic.AddInt64(&granted, 1)
				}
			}
		}()
	}
	wg.Wait()

	if granted != ceiling {
		t.Errorf("granted %d requests, ceiling is %d", granted, ceiling)
	}
	if used := tr.Snapshot().UsedThisRun; used != ceiling {
		t.Errorf("used %d, want exactly %d", used, ceiling)
	}
}

func TestWaitTerminalOnRunExhaustion(t *testing.T) {
	tr := NewTracker(10, 1)
	if err := tr.TryConsume(1); err != nil {
		t.Fatal(err)
	}
	err := tr.Wait(t.Context(), 1)
	if !errors.Is(err, ErrRunExhausted) {
		t.Fatalf("expected terminal ErrRunExhausted, got %v", err)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	tr := NewTracker(1, 100)
	if err := tr.TryConsume(1); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	err := tr.Wait(ctx, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}

func TestWaitGrantsAbovePaceBurst(t *testing.T) {
	// A single grant larger than the smoothing limiter's burst must
	// still succeed when both ceilings allow it.
	tr := NewTracker(120, 1000)
	if err := tr.Wait(t.Context(), 30); err != nil {
		t.Fatalf("high-cost grant failed: %v", err)
	}
	snap := tr.Snapshot()
	if snap.UsedThisRun != 30 || snap.UsedThisMinute != 30 {
		t.Errorf("counters = %s, want 30 consumed", snap)
	}
}

func TestWaitRefundsOnPaceFailure(t *testing.T) {
	tr := NewTracker(6, 100)
	if err := tr.Wait(t.Context(), 1); err != nil {
		t.Fatal(err)
	}

	// The pace token is spent, so the next wait cannot finish inside
	// the deadline; the consumed requests must be returned.
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	if err := tr.Wait(ctx, 1); err == nil {
		t.Fatal("expected a pacing failure")
	}
	snap := tr.Snapshot()
	if snap.UsedThisRun != 1 || snap.UsedThisMinute != 1 {
		t.Errorf("counters = %s, want the failed grant refunded", snap)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		if cfg.Requests.MaxPerMinute != 120 || cfg.Requests.MaxPerRun != 1000 {
			t.Errorf("unexpected defaults: %+v", cfg.Requests)
		}
		if cfg.EvidenceLevel != "standard" {
			t.Errorf("evidence level = %q, want standard", cfg.EvidenceLevel)
		}
	})

	t.Run("file overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "budget.yaml")
		doc := "requests:\n  max_per_minute: 30\n  max_per_run: 200\nevidence_level: full\n"
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := LoadConfig(path)
		if cfg.Requests.MaxPerMinute != 30 || cfg.Requests.MaxPerRun != 200 {
			t.Errorf("unexpected override: %+v", cfg.Requests)
		}
		if cfg.EvidenceLevel != "full" {
			t.Errorf("evidence level = %q, want full", cfg.EvidenceLevel)
		}
	})

	t.Run("malformed file yields defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "budget.yaml")
		if err := os.WriteFile(path, []byte("requests: ["), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := LoadConfig(path)
		if cfg.Requests.MaxPerMinute != 120 {
			t.Errorf("malformed file must fall back to defaults, got %+v", cfg.Requests)
		}
	})
}
