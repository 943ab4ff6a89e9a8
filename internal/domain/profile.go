package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Need tags a profile may declare.
const (
	NeedHealthProtection   = "health-protection"
	NeedRetirementPlanning = "retirement-planning"
	NeedAccidentProtection = "accident-protection"
	NeedInvestment         = "investment"
)

// Health statuses.
const (
	HealthExcellent = "excellent"
	HealthGood      = "good"
	HealthFair      = "fair"
	HealthPoor      = "poor"
)

// Family statuses.
const (
	FamilySingle      = "single"
	FamilyMarried     = "married"
	FamilyMarriedKids = "married_with_kids"
)

// Defaults applied to absent profile fields.
const (
	DefaultAge    = 30
	DefaultBudget = 5000.0
	DefaultIncome = 50000.0
)

// Profile is the per-request user profile. It is never persisted on its
// own; request handlers call Normalize once at the boundary so scoring
// code always sees a fully populated value.
type Profile struct {
	Age          int      `json:"age"`
	Budget       float64  `json:"budget"`
	Needs        []string `json:"needs"`
	Income       float64  `json:"income"`
	HealthStatus string   `json:"health_status"`
	FamilyStatus string   `json:"family_status"`
}

// Normalize fills absent fields with their documented defaults and
// returns the fully populated profile. Unknown enum values are left as
// is; the scoring tables handle them with their own fallbacks.
func (p Profile) Normalize() Profile {
	if p.Age == 0 {
		p.Age = DefaultAge
	}
	if p.Budget == 0 {
		p.Budget = DefaultBudget
	}
	if p.Income == 0 {
		p.Income = DefaultIncome
	}
	if p.HealthStatus == "" {
		p.HealthStatus = HealthGood
	}
	if p.FamilyStatus == "" {
		p.FamilyStatus = FamilySingle
	}
	if p.Needs == nil {
		p.Needs = []string{}
	}
	return p
}

// HasNeed reports whether the profile declared the given need tag.
func (p Profile) HasNeed(tag string) bool {
	for _, n := range p.Needs {
		if n == tag {
			return true
		}
	}
	return false
}

// Fingerprint returns a deterministic cache key for the profile.
// Needs are sorted so equivalent profiles share one key.
func (p Profile) Fingerprint() string {
	needs := append([]string(nil), p.Needs...)
	sort.Strings(needs)
	return fmt.Sprintf("age=%d|budget=%.2f|income=%.2f|health=%s|family=%s|needs=%s",
		p.Age, p.Budget, p.Income, p.HealthStatus, p.FamilyStatus, strings.Join(needs, ","))
}
