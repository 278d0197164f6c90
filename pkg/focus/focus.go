// Package focus implements the optional single/rotating target lock.
//
// Target resolution is a pure function of the clock and the config so
// the same instant always selects the same target; there is no hidden
// rotation state to drift between the cron runner and the CLI.
package focus

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bountyswarm/bountyswarm/pkg/defaults"
)

// Config is the focus file, externally owned and read-only for the run.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Target  string `yaml:"target"`
	Days    int    `yaml:"days"`
	Mode    string `yaml:"mode"` // "single" or "rotate"

	RotateTargets []string `yaml:"rotate_targets"`

	// RotateStart is an ISO-8601 timestamp; rotation windows are
	// measured from it.
	RotateStart string `yaml:"rotate_start"`
}

// MismatchWarning is raised when focus overrides the requested target.
// It is non-fatal: focus wins and the run proceeds against the focus
// target.
type MismatchWarning struct {
	Requested string
	Focus     string
}

func (w MismatchWarning) String() string {
	return fmt.Sprintf("focus mismatch: requested %q but focus locks %q; focus wins", w.Requested, w.Focus)
}

// Load reads the focus file at path. A missing or malformed file
// disables focus.
func Load(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{Days: defaults.FocusRotationDays, Mode: "single"}
	}
	cfg := Config{Days: defaults.FocusRotationDays, Mode: "single"}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{Days: defaults.FocusRotationDays, Mode: "single"}
	}
	if cfg.Days <= 0 {
		cfg.Days = defaults.FocusRotationDays
	}
	if cfg.Mode == "" {
		cfg.Mode = "single"
	}
	return cfg
}

// Resolve returns the target the run must use at instant now. When
// focus is disabled it returns requested unchanged. When focus is
// enabled and overrides a differing request, the returned warning is
// non-nil.
func Resolve(requested string, cfg Config, now time.Time) (string, *MismatchWarning) {
	if !cfg.Enabled {
		return requested, nil
	}
	locked := Active(cfg, now)
	if locked == "" {
		return requested, nil
	}
	if !strings.EqualFold(strings.TrimSpace(requested), locked) {
		return locked, &MismatchWarning{Requested: requested, Focus: locked}
	}
	return locked, nil
}

// Active computes the focus target for instant now. In rotate mode the
// active index is
//
//	floor((now - rotate_start) / (days * 24h)) mod len(rotate_targets)
//
// with negative elapsed time clamped to index 0. Single mode returns
// the configured target.
func Active(cfg Config, now time.Time) string {
	if !cfg.Enabled {
		return ""
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Mode), "rotate") {
		targets := make([]string, 0, len(cfg.RotateTargets))
		for _, t := range cfg.RotateTargets {
			if s := strings.ToLower(strings.TrimSpace(t)); s != "" {
				targets = append(targets, s)
			}
		}
		if len(targets) == 0 {
			return strings.ToLower(strings.TrimSpace(cfg.Target))
		}
		start, err := time.Parse(time.RFC3339, strings.TrimSpace(cfg.RotateStart))
		if err != nil {
			return targets[0]
		}
		return targets[rotationIndex(now, start, cfg.Days, len(targets))]
	}
	return strings.ToLower(strings.TrimSpace(cfg.Target))
}

// rotationIndex implements the documented rotation formula.
func rotationIndex(now, start time.Time, days, n int) int {
	if days <= 0 {
		days = 1
	}
	elapsed := now.Sub(start)
	if elapsed < 0 {
		return 0
	}
	window := time.Duration(days) * 24 * time.Hour
	return int(elapsed/window) % n
}
