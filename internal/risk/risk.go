// Package risk implements the three-dimension risk scoring.
//
// Each dimension is a pure total function: unknown enum values fall
// back to documented defaults, and no input can make scoring fail.
// Band boundaries are business rules carried over from the original
// advisory product, not actuarial computations.
package risk

import (
	"math"

	"github.com/smartcover/heron/internal/domain"
)

// healthMultipliers scales the age factor by declared health status.
// Unknown statuses score as "good".
var healthMultipliers = map[string]float64{
	domain.HealthExcellent: 0.4,
	domain.HealthGood:      0.6,
	domain.HealthFair:      0.8,
	domain.HealthPoor:      1.2,
}

// healthBands maps a computed health score to a level and advisory
// text. Bands are evaluated in order, first match wins; the last band
// is open-ended.
var healthBands = []struct {
	below   int // exclusive upper bound, MaxInt for the last band
	level   string
	message string
}{
	{25, domain.RiskLow, "健康狀況良好，維持現有生活方式，定期健檢即可"},
	{55, domain.RiskMedium, "建議購買基本醫療保險，加強健康管理和運動"},
	{math.MaxInt, domain.RiskHigh, "強烈建議購買完整醫療保險，密切關注健康狀況"},
}

// Health scores the health dimension from age and declared health
// status. The age factor is capped at 60 and the final score truncated
// toward zero.
func Health(age int, status string) domain.RiskDimension {
	ageFactor := math.Min(float64(age)*0.8, 60)

	multiplier, ok := healthMultipliers[status]
	if !ok {
		multiplier = healthMultipliers[domain.HealthGood]
	}

	score := int(ageFactor * multiplier)

	for _, band := range healthBands {
		if score < band.below {
			return domain.RiskDimension{
				Score:          score,
				Level:          band.level,
				Recommendation: band.message,
			}
		}
	}

	// Unreachable: the last band has no upper bound.
	return domain.RiskDimension{Score: score, Level: domain.RiskHigh}
}

// financialBands maps income thresholds to fixed scores. Evaluated in
// order, first matching threshold wins; the last band catches all
// remaining incomes.
var financialBands = []struct {
	atLeast float64
	score   int
	level   string
	message string
}{
	{100000, 15, domain.RiskLow, "財務狀況優秀，可考慮高保額或投資型保險"},
	{60000, 35, domain.RiskLow, "財務狀況良好，建議保險支出控制在收入12-15%"},
	{40000, 55, domain.RiskMedium, "建議保險支出控制在收入10-12%，優先基本保障"},
	{math.Inf(-1), 80, domain.RiskHigh, "優先購買最基本保障，保費控制在收入8%以內"},
}

// Financial scores the financial dimension strictly by income.
func Financial(income float64) domain.RiskDimension {
	for _, band := range financialBands {
		if income >= band.atLeast {
			return domain.RiskDimension{
				Score:          band.score,
				Level:          band.level,
				Recommendation: band.message,
			}
		}
	}

	// Unreachable: the last band's threshold is -Inf.
	return domain.RiskDimension{}
}

// familyEntries is the fixed lookup table for the family dimension.
var familyEntries = map[string]domain.RiskDimension{
	domain.FamilySingle: {
		Score:          25,
		Level:          domain.RiskLow,
		Recommendation: "單身族群風險相對較低，重點關注個人醫療和意外保障",
	},
	domain.FamilyMarried: {
		Score:          45,
		Level:          domain.RiskMedium,
		Recommendation: "已婚夫妻需要雙方保障，建議增加壽險保額",
	},
	domain.FamilyMarriedKids: {
		Score:          75,
		Level:          domain.RiskHigh,
		Recommendation: "家庭責任重大，需要充足的壽險保障，確保子女教育資金",
	},
}

// Family scores the family dimension from family status. Unknown
// statuses score as "single".
func Family(status string) domain.RiskDimension {
	if entry, ok := familyEntries[status]; ok {
		return entry
	}
	return familyEntries[domain.FamilySingle]
}

// Assess computes all three dimensions for a normalized profile.
func Assess(profile domain.Profile) domain.RiskAssessment {
	return domain.RiskAssessment{
		Health:    Health(profile.Age, profile.HealthStatus),
		Financial: Financial(profile.Income),
		Family:    Family(profile.FamilyStatus),
	}
}
