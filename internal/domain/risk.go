package domain

// Risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// RiskDimension is the scored result of one risk dimension.
type RiskDimension struct {
	Score          int    `json:"score"`
	Level          string `json:"level"`
	Recommendation string `json:"recommendation"`
}

// RiskAssessment bundles the three independently scored dimensions.
type RiskAssessment struct {
	Health    RiskDimension `json:"health"`
	Financial RiskDimension `json:"financial"`
	Family    RiskDimension `json:"family"`
}

// AnyHigh reports whether any dimension scored at the high level.
// Used to decide whether an assessment is published to the alert topic.
func (a RiskAssessment) AnyHigh() bool {
	return a.Health.Level == RiskHigh ||
		a.Financial.Level == RiskHigh ||
		a.Family.Level == RiskHigh
}
