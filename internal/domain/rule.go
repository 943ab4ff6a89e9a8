package domain

// BoostRule is an operator-defined scoring adjustment. The CEL
// expression is evaluated against the user profile and the candidate
// product after base scoring; its numeric result, multiplied by Weight,
// is added to the score before clamping and rounding. With no rules
// loaded the engine produces the base score unchanged.
type BoostRule struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Version     string  `json:"version"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"`
	Enabled     bool    `json:"enabled"`
}
