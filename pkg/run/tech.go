package run

import (
	"encoding/json"
	"strings"

	"github.com/bountyswarm/bountyswarm/pkg/profile"
)

// techPlaybooks routes detected technologies to the vulnerability
// categories worth running against that stack.
var techPlaybooks = map[string][]string{
	"next.js":   {profile.CategoryAuth, profile.CategorySSRF, profile.CategoryIDOR, profile.CategoryXSS},
	"react":     {profile.CategoryXSS, profile.CategoryAuth},
	"angular":   {profile.CategoryXSS, profile.CategoryAuth},
	"vue":       {profile.CategoryXSS, profile.CategoryAuth},
	"django":    {profile.CategorySQLi, profile.CategoryAuth, profile.CategoryIDOR},
	"flask":     {profile.CategorySQLi, profile.CategoryAuth, profile.CategoryIDOR},
	"express":   {profile.CategoryAuth, profile.CategorySSRF, profile.CategoryIDOR},
	"laravel":   {profile.CategorySQLi, profile.CategoryAuth, profile.CategoryIDOR},
	"wordpress": {profile.CategoryAuth, profile.CategoryIDOR, profile.CategoryXSS},
}

// techOrder fixes the match order so routing is deterministic.
var techOrder = []string{
	"next.js", "react", "angular", "vue",
	"django", "flask", "express", "laravel", "wordpress",
}

// defaultPlaybooks is the broad sweep used when no technology matched.
var defaultPlaybooks = []string{
	profile.CategoryXSS, profile.CategorySQLi, profile.CategoryAuth, profile.CategoryIDOR,
}

// RoutePlaybooks selects vulnerability categories for the detected
// stack, preserving first-seen order and deduplicating. Substring
// matching is intentional: "React 18" routes like "react".
func RoutePlaybooks(tech []string) []string {
	var selected []string
	seen := make(map[string]bool)
	for _, t := range tech {
		key := strings.ToLower(t)
		for _, techKey := range techOrder {
			if !strings.Contains(key, techKey) {
				continue
			}
			for _, pb := range techPlaybooks[techKey] {
				if !seen[pb] {
					seen[pb] = true
					selected = append(selected, pb)
				}
			}
		}
	}
	if len(selected) == 0 {
		return append([]string(nil), defaultPlaybooks...)
	}
	return selected
}

// techPayload is the slice of an enrichment payload the router needs.
type techPayload struct {
	TechDetection []struct {
		Tech []string `json:"tech"`
	} `json:"tech_detection"`
}

// ExtractTech pulls detected technologies out of an enrichment
// payload. Unknown or malformed payloads yield nothing.
func ExtractTech(payload json.RawMessage) []string {
	if len(payload) == 0 {
		return nil
	}
	var doc techPayload
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil
	}
	var out []string
	for _, td := range doc.TechDetection {
		out = append(out, td.Tech...)
	}
	return out
}
