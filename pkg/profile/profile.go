// Package profile maps named safety profiles onto enabled agent
// categories and risk tiers.
//
// Profiles are loosely-typed YAML documents parsed once at run start
// into immutable structs. Unknown profile names and unrecognized keys
// produce warnings and fall back to the documented safe default,
// never a hard failure.
package profile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bountyswarm/bountyswarm/pkg/defaults"
)

// Tier is a profile risk tier. Tiers are ordered:
// passive < cautious < active.
type Tier string

const (
	TierPassive  Tier = "passive"
	TierCautious Tier = "cautious"
	TierActive   Tier = "active"
)

// Rank returns the tier's position in the ordering (passive=0).
func (t Tier) Rank() int {
	switch t {
	case TierPassive:
		return 0
	case TierCautious:
		return 1
	case TierActive:
		return 2
	}
	return -1
}

// Exceeds reports whether t is riskier than other.
func (t Tier) Exceeds(other Tier) bool {
	return t.Rank() > other.Rank()
}

// Agent categories. Declaration order here is the canonical ordering
// used for dispatch and for result ordering in the manifest.
const (
	CategoryRecon      = "recon"
	CategoryCrawl      = "crawl"
	CategoryEnrichment = "enrichment"
	CategoryXSS        = "xss"
	CategorySQLi       = "sqli"
	CategoryIDOR       = "idor"
	CategorySSRF       = "ssrf"
	CategoryAuth       = "auth"
)

// categoryTiers classifies every known category by the risk tier it
// requires. Vulnerability probing is active-tier and therefore gated on
// explicit authorization.
var categoryTiers = map[string]Tier{
	CategoryRecon:      TierPassive,
	CategoryEnrichment: TierPassive,
	CategoryCrawl:      TierCautious,
	CategoryXSS:        TierActive,
	CategorySQLi:       TierActive,
	CategoryIDOR:       TierActive,
	CategorySSRF:       TierActive,
	CategoryAuth:       TierActive,
}

// CategoryTier returns the risk tier a category requires. Unknown
// categories are treated as active so they never run ungated.
func CategoryTier(category string) Tier {
	if t, ok := categoryTiers[category]; ok {
		return t
	}
	return TierActive
}

// Profile is a resolved safety profile.
type Profile struct {
	Name string

	// Categories is the ordered list of enabled agent categories.
	Categories []string

	// Tier is the profile's risk tier.
	Tier Tier

	// MaxPages bounds the crawl agent when it runs.
	MaxPages int
}

// Warning is a non-fatal configuration warning raised during resolution.
type Warning struct {
	Message string
}

func (w Warning) String() string { return w.Message }

// fileEntry is the on-disk shape of one profile.
type fileEntry struct {
	Categories []string `yaml:"categories"`
	Tier       string   `yaml:"tier"`
	MaxPages   int      `yaml:"max_pages"`
}

type fileDoc struct {
	Profiles map[string]fileEntry `yaml:"profiles"`
}

// Set holds all known profiles for a run.
type Set struct {
	profiles map[string]Profile
}

// Builtin returns the built-in profile set used when no profiles file
// exists. These mirror the documented defaults.
func Builtin() Set {
	return Set{profiles: map[string]Profile{
		"passive": {
			Name:       "passive",
			Categories: []string{CategoryRecon, CategoryEnrichment},
			Tier:       TierPassive,
			MaxPages:   10,
		},
		"cautious": {
			Name:       "cautious",
			Categories: []string{CategoryRecon, CategoryCrawl, CategoryEnrichment},
			Tier:       TierCautious,
			MaxPages:   20,
		},
		"active": {
			Name: "active",
			Categories: []string{
				CategoryRecon, CategoryCrawl, CategoryEnrichment,
				CategoryXSS, CategorySQLi, CategoryIDOR, CategorySSRF, CategoryAuth,
			},
			Tier:     TierActive,
			MaxPages: 50,
		},
	}}
}

// Load reads a profiles YAML file, overlaying the built-in set. A
// missing file returns the built-ins with no warning; a malformed file
// returns the built-ins plus a warning.
func Load(path string) (Set, []Warning) {
	set := Builtin()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return set, []Warning{{Message: fmt.Sprintf("profiles file %s unreadable: %v; using built-ins", path, err)}}
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return set, []Warning{{Message: fmt.Sprintf("profiles file %s invalid: %v; using built-ins", path, err)}}
	}

	var warnings []Warning
	for name, entry := range doc.Profiles {
		p := Profile{
			Name:       name,
			Categories: entry.Categories,
			Tier:       Tier(strings.ToLower(entry.Tier)),
			MaxPages:   entry.MaxPages,
		}
		if base, ok := set.profiles[name]; ok {
			if len(p.Categories) == 0 {
				p.Categories = base.Categories
			}
			if p.Tier.Rank() < 0 {
				p.Tier = base.Tier
			}
			if p.MaxPages == 0 {
				p.MaxPages = base.MaxPages
			}
		}
		if p.Tier.Rank() < 0 {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("profile %q: unknown tier %q, treating as %s", name, entry.Tier, TierCautious)})
			p.Tier = TierCautious
		}
		for _, c := range p.Categories {
			if _, known := categoryTiers[c]; !known {
				warnings = append(warnings, Warning{Message: fmt.Sprintf("profile %q: unrecognized category %q", name, c)})
			}
		}
		set.profiles[name] = p
	}
	return set, warnings
}

// Resolve returns the named profile. An unknown name falls back to the
// safe default (cautious) and raises a warning; the run continues.
func (s Set) Resolve(name string) (Profile, []Warning) {
	if p, ok := s.profiles[name]; ok {
		return p, nil
	}
	fallback := s.profiles[defaults.ProfileDefault]
	return fallback, []Warning{{
		Message: fmt.Sprintf("unknown profile %q, falling back to %q", name, defaults.ProfileDefault),
	}}
}

// Names returns all profile names, sorted for stable output.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for n := range s.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CategoryPlan is the gating decision for one enabled category.
type CategoryPlan struct {
	Category string

	// Enabled is false when the category is downgraded to skipped
	// before dispatch.
	Enabled bool

	// SkipReason explains a disabled plan, e.g. "requires --authorized".
	SkipReason string
}

// Plan applies the profile's gating rules. Active-tier categories
// require both the vuln opt-in and the explicit authorization flag;
// without them they are silently downgraded to skipped rather than
// failing the run.
func (p Profile) Plan(runVuln, authorized bool) []CategoryPlan {
	plans := make([]CategoryPlan, 0, len(p.Categories))
	for _, c := range p.Categories {
		plan := CategoryPlan{Category: c, Enabled: true}
		if CategoryTier(c) == TierActive {
			switch {
			case p.Tier != TierActive && CategoryTier(c).Exceeds(p.Tier):
				plan.Enabled = false
				plan.SkipReason = fmt.Sprintf("category exceeds %s profile tier", p.Tier)
			case !runVuln:
				plan.Enabled = false
				plan.SkipReason = "vulnerability probing not requested"
			case !authorized:
				plan.Enabled = false
				plan.SkipReason = "requires --authorized"
			}
		}
		plans = append(plans, plan)
	}
	return plans
}
