package domain

import "time"

// Recommendation is a catalog product together with its computed match
// score. The catalog entry itself is never mutated; a scored copy is
// produced per request.
type Recommendation struct {
	Product
	RecommendationScore float64 `json:"recommendation_score"`
}

// RecommendationRecord is a persisted recommendation response,
// kept for audit and later retrieval.
type RecommendationRecord struct {
	ID        string           `json:"id"`
	Profile   Profile          `json:"profile"`
	Results   []Recommendation `json:"results"`
	CreatedAt time.Time        `json:"createdAt"`
}

// AssessmentRecord is a persisted risk assessment response.
type AssessmentRecord struct {
	ID         string         `json:"id"`
	Profile    Profile        `json:"profile"`
	Assessment RiskAssessment `json:"assessment"`
	CreatedAt  time.Time      `json:"createdAt"`
}
