// Package evidence stores raw agent artifacts for a run and packages
// them into a manifested bundle.
//
// Every filename the store emits is derived through target.Slug, so
// URLs and host:port strings (colons included) can never leak into a
// path segment.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bountyswarm/bountyswarm/pkg/defaults"
	"github.com/bountyswarm/bountyswarm/pkg/jsonutil"
	"github.com/bountyswarm/bountyswarm/pkg/target"
)

// Capture levels.
const (
	LevelLite     = "lite"
	LevelStandard = "standard"
	LevelFull     = "full"
)

// Store writes evidence artifacts under <outputDir>/evidence.
type Store struct {
	base  string
	level string

	// now is the clock, swappable in tests for stable filenames.
	now func() time.Time
}

// HTTPRecord is one captured request/response exchange.
type HTTPRecord struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Request   map[string]string `json:"request,omitempty"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// NewStore creates the evidence directory under outputDir. level is
// one of the capture levels; anything unrecognized falls back to
// standard.
func NewStore(outputDir, level string) (*Store, error) {
	base := filepath.Join(outputDir, "evidence")
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("evidence: create store: %w", err)
	}
	switch level {
	case LevelLite, LevelStandard, LevelFull:
	default:
		level = LevelStandard
	}
	return &Store{base: base, level: level, now: time.Now}, nil
}

// SetClock replaces the store's clock for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Dir returns the evidence directory path.
func (s *Store) Dir() string { return s.base }

// Level returns the capture level in effect.
func (s *Store) Level() string { return s.level }

// SaveHTTP persists one HTTP exchange, truncated per the capture
// level, and returns the artifact path.
func (s *Store) SaveHTTP(rec HTTPRecord) (string, error) {
	stamp := s.now().UTC().Format("20060102_150405")
	rec.Timestamp = stamp
	rec = s.applyLevel(rec)

	name := fmt.Sprintf("http_%s_%s.json", stamp, target.Slug(rec.URL))
	path := filepath.Join(s.base, name)
	if err := jsonutil.WriteFile(path, rec); err != nil {
		return "", fmt.Errorf("evidence: save http record: %w", err)
	}
	return path, nil
}

// SavePayload persists an agent's raw payload as an evidence artifact
// and returns its path. Category is sanitized before becoming a
// filename.
func (s *Store) SavePayload(category string, payload any) (string, error) {
	stamp := s.now().UTC().Format("20060102_150405")
	name := fmt.Sprintf("payload_%s_%s.json", target.Slug(category), stamp)
	path := filepath.Join(s.base, name)
	if err := jsonutil.WriteFile(path, payload); err != nil {
		return "", fmt.Errorf("evidence: save payload: %w", err)
	}
	return path, nil
}

// applyLevel trims the record to the configured capture level: lite
// keeps status and headers only, standard truncates bodies to
// defaults.EvidenceBodyStandard bytes, full to defaults.EvidenceBodyFull.
func (s *Store) applyLevel(rec HTTPRecord) HTTPRecord {
	switch s.level {
	case LevelLite:
		rec.Request = nil
		rec.Body = ""
	case LevelFull:
		if len(rec.Body) > defaults.EvidenceBodyFull {
			rec.Body = rec.Body[:defaults.EvidenceBodyFull]
		}
	default:
		if len(rec.Body) > defaults.EvidenceBodyStandard {
			rec.Body = rec.Body[:defaults.EvidenceBodyStandard]
		}
	}
	return rec
}
