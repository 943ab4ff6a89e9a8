// Package recommend implements catalog filtering and match scoring.
package recommend

import (
	"context"
	"math"
	"sort"

	"github.com/smartcover/heron/internal/domain"
)

// Scoring weights. The base score is what every eligible product
// starts from; the bonuses are additive on top of it.
const (
	baseScore    = 0.5
	needBonus    = 0.3
	ageFitWeight = 0.2
	ratingWeight = 0.1

	// MaxResults caps the ranked list returned to callers.
	MaxResults = 5

	// BudgetBracket is the premium bracket compared against the budget
	// for every requester regardless of their actual age. This is the
	// documented product behavior; do not silently "fix" it to the
	// requester's bracket without product-owner sign-off.
	BudgetBracket = "age_30"
)

// needTypeBonus maps each declared need tag to the product type it
// rewards. A product has exactly one type, so at most one bonus fires
// per product even when several needs are declared.
var needTypeBonus = map[string]string{
	domain.NeedHealthProtection:   domain.TypeHealth,
	domain.NeedRetirementPlanning: domain.TypeLife,
	domain.NeedAccidentProtection: domain.TypeAccident,
	domain.NeedInvestment:         domain.TypeInvestment,
}

// Booster supplies operator-defined score adjustments applied after
// base scoring and before clamping. A nil Booster means base scoring
// only.
type Booster interface {
	Adjust(ctx context.Context, profile domain.Profile, product domain.Product, base float64) float64
}

// Engine ranks catalog products against a user profile.
type Engine struct {
	catalog domain.Catalog
	booster Booster
}

// New creates a recommendation engine over the given catalog.
// booster may be nil.
func New(catalog domain.Catalog, booster Booster) *Engine {
	return &Engine{catalog: catalog, booster: booster}
}

// Recommend filters the catalog by eligibility and ranks survivors by
// match score, descending, ties broken by catalog order. At most
// MaxResults items are returned; an empty eligible set yields an empty
// list, never an error. The profile must already be normalized.
func (e *Engine) Recommend(ctx context.Context, profile domain.Profile) []domain.Recommendation {
	var matches []domain.Recommendation

	for _, product := range e.catalog.All() {
		if !product.AgeRange.Contains(profile.Age) {
			continue
		}

		// Absent reference premium means the product can never pass the
		// budget check.
		premium, ok := product.Premium.MonthlyAt(BudgetBracket)
		if !ok || float64(premium) > profile.Budget {
			continue
		}

		score := e.score(ctx, profile, product)
		matches = append(matches, domain.Recommendation{
			Product:             product,
			RecommendationScore: score,
		})
	}

	// Stable sort keeps catalog order for equal scores, so repeated
	// requests are reproducible.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].RecommendationScore > matches[j].RecommendationScore
	})

	if len(matches) > MaxResults {
		matches = matches[:MaxResults]
	}
	return matches
}

// score computes the match score for a single eligible product.
func (e *Engine) score(ctx context.Context, profile domain.Profile, product domain.Product) float64 {
	score := baseScore

	for need, productType := range needTypeBonus {
		if productType == product.Type && profile.HasNeed(need) {
			score += needBonus
		}
	}

	// Age-fit bonus: full credit at the midpoint of the product's age
	// range, fading to zero 30 years out.
	optimalAge := float64(product.AgeRange.Min+product.AgeRange.Max) / 2
	ageMatch := math.Max(0, 1-math.Abs(float64(profile.Age)-optimalAge)/30)
	score += ageMatch * ageFitWeight

	score += product.Rating / 5.0 * ratingWeight

	if e.booster != nil {
		score = e.booster.Adjust(ctx, profile, product, score)
	}

	score = math.Min(score, 1.0)
	score = math.Max(score, 0)
	return math.Round(score*100) / 100
}
