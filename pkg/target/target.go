// Package target resolves raw target strings into scan targets and
// derives filesystem-safe names from them.
package target

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bountyswarm/bountyswarm/pkg/defaults"
)

// localHosts are hosts that default to plain HTTP. Everything else
// defaults to HTTPS unless the caller forces a scheme.
var localHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
	"0.0.0.0":   true,
}

// Target is a resolved scan target. It is immutable once resolved for
// a run.
type Target struct {
	// Raw is the operator-supplied target string, unmodified.
	Raw string `json:"raw"`

	// Host is the bare hostname or IP literal.
	Host string `json:"host"`

	// Port is the explicit port, empty when none was given.
	Port string `json:"port,omitempty"`

	// Scheme is "http" or "https".
	Scheme string `json:"scheme"`

	// URL is the normalized base URL agents receive.
	URL string `json:"url"`
}

// Resolve normalizes raw into a Target. forceScheme may be "http",
// "https", or empty; when empty, loopback hosts resolve to http and
// everything else to https. A raw value that already carries a scheme
// keeps it regardless of forceScheme.
func Resolve(raw, forceScheme string) (Target, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Target{}, fmt.Errorf("target: empty target")
	}

	var base string
	switch {
	case strings.HasPrefix(trimmed, "http://"), strings.HasPrefix(trimmed, "https://"):
		base = trimmed
	default:
		host := Host(trimmed)
		scheme := forceScheme
		if scheme == "" {
			scheme = "https"
			if localHosts[host] {
				scheme = "http"
			}
		}
		base = scheme + "://" + trimmed
	}

	u, err := url.Parse(base)
	if err != nil {
		return Target{}, fmt.Errorf("target: parse %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return Target{}, fmt.Errorf("target: no host in %q", raw)
	}

	return Target{
		Raw:    trimmed,
		Host:   strings.ToLower(u.Hostname()),
		Port:   u.Port(),
		Scheme: u.Scheme,
		URL:    base,
	}, nil
}

// Host extracts the bare lowercase host from a target string that may
// carry a scheme, port, or path.
func Host(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Hostname() != "" {
			return strings.ToLower(u.Hostname())
		}
	}
	s = strings.SplitN(s, "/", 2)[0]
	// A bracketed IPv6 literal sheds its brackets and port.
	if strings.HasPrefix(s, "[") {
		if end := strings.Index(s, "]"); end > 1 {
			return strings.ToLower(s[1:end])
		}
	}
	// Bare IPv6 literals keep their colons; everything else drops the port.
	if strings.Count(s, ":") <= 1 {
		s = strings.SplitN(s, ":", 2)[0]
	}
	return strings.ToLower(strings.TrimSuffix(s, "."))
}

// Slug converts a target- or URL-derived string into a filesystem-safe
// path segment. Every byte outside [A-Za-z0-9._-] becomes an
// underscore, so scheme separators and the colon in host:port can never
// reach a path. The result is capped at defaults.SlugMaxLen and never
// empty.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > defaults.SlugMaxLen {
		out = out[:defaults.SlugMaxLen]
	}
	if out == "" {
		out = "target"
	}
	return out
}
