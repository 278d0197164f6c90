package focus

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func TestResolveDisabled(t *testing.T) {
	got, warn := Resolve("example.com", Config{}, testNow)
	if got != "example.com" || warn != nil {
		t.Errorf("disabled focus must pass the request through, got %q %v", got, warn)
	}
}

func TestResolveSingle(t *testing.T) {
	cfg := Config{Enabled: true, Mode: "single", Target: "focus.example.com"}

	t.Run("matching request", func(t *testing.T) {
		got, warn := Resolve("focus.example.com", cfg, testNow)
		if got != "focus.example.com" || warn != nil {
			t.Errorf("got %q %v", got, warn)
		}
	})

	t.Run("match is case-insensitive", func(t *testing.T) {
		got, warn := Resolve("Focus.Example.COM", cfg, testNow)
		if got != "focus.example.com" || warn != nil {
			t.Errorf("got %q %v", got, warn)
		}
	})

	t.Run("mismatch warns and focus wins", func(t *testing.T) {
		got, warn := Resolve("other.com", cfg, testNow)
		if got != "focus.example.com" {
			t.Errorf("focus must win, got %q", got)
		}
		if warn == nil {
			t.Fatal("expected a mismatch warning")
		}
		if warn.Requested != "other.com" || warn.Focus != "focus.example.com" {
			t.Errorf("warning fields: %+v", warn)
		}
	})

	t.Run("enabled but empty target passes through", func(t *testing.T) {
		got, warn := Resolve("other.com", Config{Enabled: true, Mode: "single"}, testNow)
		if got != "other.com" || warn != nil {
			t.Errorf("got %q %v", got, warn)
		}
	})
}

func TestActiveRotation(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	cfg := Config{
		Enabled:       true,
		Mode:          "rotate",
		Days:          7,
		RotateTargets: []string{"a.example.com", "b.example.com", "c.example.com"},
		RotateStart:   start.Format(time.RFC3339),
	}

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"first window", start.Add(24 * time.Hour), "a.example.com"},
		{"last instant of first window", start.Add(7*24*time.Hour - time.Second), "a.example.com"},
		{"second window", start.Add(8 * 24 * time.Hour), "b.example.com"},
		{"third window", start.Add(15 * 24 * time.Hour), "c.example.com"},
		{"wraps around", start.Add(22 * 24 * time.Hour), "a.example.com"},
		{"before start clamps to first", start.Add(-48 * time.Hour), "a.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Active(cfg, tt.now); got != tt.want {
				t.Errorf("Active at %v = %q, want %q", tt.now, got, tt.want)
			}
		})
	}

	t.Run("pure function of now", func(t *testing.T) {
		at := start.Add(10 * 24 * time.Hour)
		first := Active(cfg, at)
		for i := 0; i < 5; i++ {
			if got := Active(cfg, at); got != first {
				t.Fatalf("Active changed between identical calls: %q then %q", first, got)
			}
		}
	})
}

func TestActiveRotationDegenerate(t *testing.T) {
	t.Run("no rotate targets falls back to single target", func(t *testing.T) {
		cfg := Config{Enabled: true, Mode: "rotate", Target: "solo.example.com", Days: 7}
		if got := Active(cfg, testNow); got != "solo.example.com" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("bad rotate_start pins the first target", func(t *testing.T) {
		cfg := Config{
			Enabled:       true,
			Mode:          "rotate",
			Days:          7,
			RotateTargets: []string{"a.example.com", "b.example.com"},
			RotateStart:   "not-a-time",
		}
		if got := Active(cfg, testNow); got != "a.example.com" {
			t.Errorf("got %q", got)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing file disables focus", func(t *testing.T) {
		cfg := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if cfg.Enabled {
			t.Error("missing file must disable focus")
		}
		if cfg.Days != 56 {
			t.Errorf("default days = %d, want 56", cfg.Days)
		}
	})

	t.Run("file values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "focus.yaml")
		doc := "enabled: true\nmode: rotate\ndays: 14\nrotate_targets: [x.com, y.com]\nrotate_start: \"2026-01-05T00:00:00Z\"\n"
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := Load(path)
		if !cfg.Enabled || cfg.Mode != "rotate" || cfg.Days != 14 || len(cfg.RotateTargets) != 2 {
			t.Errorf("unexpected config: %+v", cfg)
		}
	})
}
