// Package domain defines the core types and interfaces for Heron.
package domain

// Product represents a single insurance product in the catalog.
// Products are produced offline by the converter and are immutable for
// the lifetime of the serving process.
type Product struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Code        string        `json:"code,omitempty"`
	Company     string        `json:"company"`
	Type        string        `json:"type"`
	Category    string        `json:"category"`
	Description string        `json:"description,omitempty"`
	Premium     Premium       `json:"premium"`
	AgeRange    AgeRange      `json:"age_range"`
	Rating      float64       `json:"rating"`
	SuitableFor []string      `json:"suitable_for,omitempty"`
	Features    []string      `json:"features,omitempty"`
	Stats       *ProductStats `json:"stats,omitempty"`
}

// Product types used for need matching.
const (
	TypeHealth     = "health"
	TypeLife       = "life"
	TypeAccident   = "accident"
	TypeInvestment = "investment"
)

// Premium holds monthly premium amounts keyed by age bracket
// ("age_20" .. "age_60").
type Premium struct {
	Monthly  map[string]int `json:"monthly"`
	Currency string         `json:"currency,omitempty"`
}

// MonthlyAt returns the monthly premium for an age bracket key.
// ok is false when the bracket is absent from the product.
func (p Premium) MonthlyAt(bracket string) (int, bool) {
	v, ok := p.Monthly[bracket]
	return v, ok
}

// AgeRange is an inclusive age interval.
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether age falls inside the range, bounds inclusive.
func (r AgeRange) Contains(age int) bool {
	return age >= r.Min && age <= r.Max
}

// ProductStats carries ledger statistics attached by the converter.
type ProductStats struct {
	TotalPolicies int     `json:"total_policies"`
	AvgAge        float64 `json:"avg_age"`
	AvgPremium    float64 `json:"avg_premium"`
}

// Catalog is the read-only product store. Implementations must be fully
// populated before any request is served and never mutated afterward,
// so concurrent readers need no locking.
type Catalog interface {
	// All returns the full catalog in load order.
	All() []Product

	// Get returns a product by ID.
	Get(id string) (Product, bool)

	// Count returns the number of loaded products.
	Count() int
}
