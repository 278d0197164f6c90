package evidence

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/bountyswarm/bountyswarm/pkg/jsonutil"
)

// Artifact is one packaged file: its path relative to the output
// directory, its byte size, and a content fingerprint for cheap
// duplicate detection across runs.
type Artifact struct {
	Path        string `json:"path"`
	Bytes       int64  `json:"bytes"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Index enumerates every artifact of a run. Expected artifacts that do
// not exist are recorded as gaps instead of failing the packaging step:
// the bundle must be buildable even when agents were skipped or
// errored.
type Index struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Artifacts   []Artifact `json:"artifacts"`
	Missing     []string   `json:"missing,omitempty"`
	EvidenceZip string     `json:"evidence_zip,omitempty"`
}

// Package bundles a run's artifacts. It walks outputDir, fingerprints
// every file, zips the evidence directory when one exists, and writes
// artifact_index.json into outputDir. expected lists artifact paths the
// caller believes should exist; absent ones are recorded under Missing.
func Package(outputDir string, expected []string) (Index, error) {
	idx := Index{GeneratedAt: time.Now().UTC()}

	for _, p := range expected {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			idx.Missing = append(idx.Missing, filepath.Base(p))
		}
	}
	sort.Strings(idx.Missing)

	if zipPath, err := zipEvidence(outputDir); err == nil && zipPath != "" {
		idx.EvidenceZip = filepath.Base(zipPath)
	}

	err := filepath.Walk(outputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if filepath.Base(path) == "artifact_index.json" {
			return nil
		}
		rel, relErr := filepath.Rel(outputDir, path)
		if relErr != nil {
			rel = info.Name()
		}
		idx.Artifacts = append(idx.Artifacts, Artifact{
			Path:        filepath.ToSlash(rel),
			Bytes:       info.Size(),
			Fingerprint: fingerprint(path),
		})
		return nil
	})
	if err != nil {
		return idx, fmt.Errorf("evidence: walk %s: %w", outputDir, err)
	}
	sort.Slice(idx.Artifacts, func(i, j int) bool { return idx.Artifacts[i].Path < idx.Artifacts[j].Path })

	if err := jsonutil.WriteFile(filepath.Join(outputDir, "artifact_index.json"), idx); err != nil {
		return idx, fmt.Errorf("evidence: write index: %w", err)
	}
	return idx, nil
}

// zipEvidence zips <outputDir>/evidence into a timestamped bundle next
// to it. Returns "" when no evidence directory exists.
func zipEvidence(outputDir string) (string, error) {
	evidenceDir := filepath.Join(outputDir, "evidence")
	info, err := os.Stat(evidenceDir)
	if err != nil || !info.IsDir() {
		return "", nil
	}

	stamp := time.Now().UTC().Format("20060102_150405")
	zipPath := filepath.Join(outputDir, fmt.Sprintf("evidence_bundle_%s.zip", stamp))
	f, err := os.Create(zipPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	err = filepath.Walk(evidenceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(outputDir, path)
		if relErr != nil {
			return relErr
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		return "", err
	}
	return zipPath, nil
}

// fingerprint returns a 64-bit murmur3 content hash, hex-encoded.
// Empty on read failure; the index records the artifact either way.
func fingerprint(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := murmur3.New64()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
