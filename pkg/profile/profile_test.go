package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTierRanking(t *testing.T) {
	if !TierActive.Exceeds(TierCautious) {
		t.Error("active should exceed cautious")
	}
	if !TierCautious.Exceeds(TierPassive) {
		t.Error("cautious should exceed passive")
	}
	if TierPassive.Exceeds(TierPassive) {
		t.Error("a tier does not exceed itself")
	}
}

func TestCategoryTier(t *testing.T) {
	if CategoryTier(CategoryRecon) != TierPassive {
		t.Error("recon should be passive")
	}
	if CategoryTier(CategoryCrawl) != TierCautious {
		t.Error("crawl should be cautious")
	}
	if CategoryTier(CategoryXSS) != TierActive {
		t.Error("xss should be active")
	}
	// Unknown categories must never run ungated.
	if CategoryTier("mystery") != TierActive {
		t.Error("unknown categories default to active")
	}
}

func TestResolve(t *testing.T) {
	set := Builtin()

	t.Run("known profile", func(t *testing.T) {
		p, warns := set.Resolve("passive")
		if p.Name != "passive" {
			t.Errorf("name = %q", p.Name)
		}
		if len(warns) != 0 {
			t.Errorf("unexpected warnings: %v", warns)
		}
	})

	t.Run("unknown falls back to cautious with a warning", func(t *testing.T) {
		p, warns := set.Resolve("yolo")
		if p.Name != "cautious" {
			t.Errorf("fallback profile = %q, want cautious", p.Name)
		}
		if len(warns) != 1 {
			t.Fatalf("want exactly one warning, got %v", warns)
		}
		if !strings.Contains(warns[0].String(), "yolo") {
			t.Errorf("warning should name the unknown profile: %q", warns[0])
		}
	})
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	doc := `profiles:
  cautious:
    tier: cautious
    categories: [recon, enrichment]
    max_pages: 5
  custom:
    tier: passive
    categories: [recon]
    max_pages: 3
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	set, warns := Load(path)
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}

	cautious, _ := set.Resolve("cautious")
	if cautious.MaxPages != 5 {
		t.Errorf("overlay max_pages = %d, want 5", cautious.MaxPages)
	}
	if len(cautious.Categories) != 2 {
		t.Errorf("overlay categories = %v", cautious.Categories)
	}

	custom, _ := set.Resolve("custom")
	if custom.Name != "custom" || custom.Tier != TierPassive {
		t.Errorf("custom profile not loaded: %+v", custom)
	}

	// Built-ins not mentioned in the file survive.
	active, _ := set.Resolve("active")
	if active.Name != "active" {
		t.Error("builtin active lost after overlay")
	}
}

func TestLoadMissingFile(t *testing.T) {
	set, warns := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if len(warns) != 0 {
		t.Errorf("missing file should be silent, got %v", warns)
	}
	if _, w := set.Resolve("cautious"); len(w) != 0 {
		t.Error("builtins should resolve after missing file")
	}
}

func TestPlanGating(t *testing.T) {
	active, _ := Builtin().Resolve("active")

	find := func(plans []CategoryPlan, cat string) CategoryPlan {
		for _, p := range plans {
			if p.Category == cat {
				return p
			}
		}
		t.Fatalf("category %s missing from plan", cat)
		return CategoryPlan{}
	}

	t.Run("vuln skipped without opt-in", func(t *testing.T) {
		plans := active.Plan(false, true)
		p := find(plans, CategoryXSS)
		if p.Enabled {
			t.Error("xss should be disabled without -run-vuln")
		}
		if p.SkipReason != "vulnerability probing not requested" {
			t.Errorf("reason = %q", p.SkipReason)
		}
	})

	t.Run("vuln skipped without authorization", func(t *testing.T) {
		plans := active.Plan(true, false)
		p := find(plans, CategorySQLi)
		if p.Enabled {
			t.Error("sqli should be disabled without -authorized")
		}
		if p.SkipReason != "requires --authorized" {
			t.Errorf("reason = %q", p.SkipReason)
		}
	})

	t.Run("vuln enabled with both flags", func(t *testing.T) {
		plans := active.Plan(true, true)
		if p := find(plans, CategoryXSS); !p.Enabled {
			t.Errorf("xss should run: %+v", p)
		}
	})

	t.Run("survey categories always enabled", func(t *testing.T) {
		plans := active.Plan(false, false)
		for _, cat := range []string{CategoryRecon, CategoryCrawl, CategoryEnrichment} {
			if p := find(plans, cat); !p.Enabled {
				t.Errorf("%s should be enabled: %+v", cat, p)
			}
		}
	})

	t.Run("cautious profile never reaches active categories", func(t *testing.T) {
		cautious, _ := Builtin().Resolve("cautious")
		for _, p := range cautious.Plan(true, true) {
			if CategoryTier(p.Category) == TierActive {
				t.Errorf("cautious plan contains active category %s", p.Category)
			}
		}
	})

	t.Run("plan preserves category order", func(t *testing.T) {
		plans := active.Plan(true, true)
		for i, p := range plans {
			if p.Category != active.Categories[i] {
				t.Errorf("plan[%d] = %s, want %s", i, p.Category, active.Categories[i])
			}
		}
	})
}
