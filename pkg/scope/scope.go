// Package scope enforces the operator-maintained authorization list.
// Every run passes through Authorize before any network-capable agent
// is invoked, including dry runs. The check is read-only: nothing in
// this package mutates scope state.
package scope

import (
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/bountyswarm/bountyswarm/pkg/jsonutil"
	"github.com/bountyswarm/bountyswarm/pkg/target"
)

// Config is the authorization set loaded from the scope file. It is
// externally owned configuration, loaded once per run and read-only
// afterwards.
type Config struct {
	// Domains are authorized domain names, matched exactly by default.
	Domains []string `json:"domains"`

	// IPs are authorized IP literals, always matched exactly.
	IPs []string `json:"ips"`

	// AllowSubdomains opts in to suffix matching: api.example.com
	// matches a scope entry of example.com. Exact match stays the
	// default because subdomain inclusion widens the blast radius.
	AllowSubdomains bool `json:"allow_subdomains,omitempty"`

	// Notes is operator free text, ignored by the engine.
	Notes string `json:"notes,omitempty"`
}

// ViolationError is returned when a target is not covered by the scope
// set. It aborts the run before any artifact beyond the rejection
// record is produced.
type ViolationError struct {
	Target string
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("scope violation: target %q %s", e.Target, e.Reason)
}

// Load reads the scope file at path. A missing or unreadable file
// yields an empty (deny-all) scope set rather than an error: the guard
// fails closed.
func Load(path string) Config {
	var cfg Config
	if err := jsonutil.ReadFile(path, &cfg); err != nil {
		return Config{}
	}
	for i, d := range cfg.Domains {
		cfg.Domains[i] = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(d), "."))
	}
	for i, ip := range cfg.IPs {
		cfg.IPs[i] = strings.TrimSpace(ip)
	}
	return cfg
}

// LoadFile is like Load but surfaces read errors, for callers that want
// to distinguish an absent file from an empty one.
func LoadFile(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Config{}, err
	}
	return Load(path), nil
}

// Empty reports whether the scope set authorizes nothing.
func (c Config) Empty() bool {
	return len(c.Domains) == 0 && len(c.IPs) == 0
}

// Contains reports whether the host extracted from raw is covered by
// the scope set.
func (c Config) Contains(raw string) bool {
	host := target.Host(raw)
	if host == "" {
		return false
	}
	if net.ParseIP(host) != nil {
		for _, ip := range c.IPs {
			if host == ip {
				return true
			}
		}
		return false
	}
	for _, d := range c.Domains {
		if host == d {
			return true
		}
		if c.AllowSubdomains && suffixMatch(host, d) {
			return true
		}
	}
	return false
}

// suffixMatch reports whether host is a subdomain of entry. The entry
// must itself be a registrable domain or deeper: an entry of "com" can
// never authorize "evil.com".
func suffixMatch(host, entry string) bool {
	if !strings.HasSuffix(host, "."+entry) {
		return false
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(entry)
	if err != nil {
		return false
	}
	return strings.HasSuffix(entry, etld1)
}

// Authorize is the terminal scope gate. It returns nil when raw is
// covered by the scope set and a *ViolationError otherwise, including
// when the scope set is empty.
func Authorize(c Config, raw string) error {
	if c.Empty() {
		return &ViolationError{Target: raw, Reason: "rejected: scope set is empty"}
	}
	if !c.Contains(raw) {
		return &ViolationError{Target: raw, Reason: "is not in the authorized scope set"}
	}
	return nil
}
