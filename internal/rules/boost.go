// Package rules provides the CEL-Go based boost rule engine.
//
// Boost rules let operators tune recommendation scores without a
// deploy: each rule is a CEL expression over the user profile and the
// candidate product whose numeric result, multiplied by the rule's
// weight, is added to the base match score. Rules are stored in the
// repository and hot-reloaded via the API.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/smartcover/heron/internal/domain"
	"github.com/smartcover/heron/internal/recommend"
)

// Engine is the CEL-based boost rule engine. It implements
// recommend.Booster.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledRule
}

type compiledRule struct {
	config  *domain.BoostRule
	program cel.Program
}

// NewEngine creates a boost rule engine with the profile and product
// variables bound into the CEL environment.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("age", cel.IntType),
		cel.Variable("budget", cel.DoubleType),
		cel.Variable("income", cel.DoubleType),
		cel.Variable("needs", cel.ListType(cel.StringType)),
		cel.Variable("health_status", cel.StringType),
		cel.Variable("family_status", cel.StringType),
		cel.Variable("product_id", cel.StringType),
		cel.Variable("product_type", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("rating", cel.DoubleType),
		cel.Variable("premium", cel.DoubleType),
		cel.Variable("base_score", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*compiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.BoostRule) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.BoostRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiled[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads all enabled rules.
func (e *Engine) LoadRules(configs []*domain.BoostRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading from the repository.
func (e *Engine) ReloadRules(configs []*domain.BoostRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*compiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiled = newRules
	return nil
}

// LoadedRules returns the currently loaded rule configurations.
func (e *Engine) LoadedRules() []*domain.BoostRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.BoostRule, 0, len(e.compiled))
	for _, compiled := range e.compiled {
		rules = append(rules, compiled.config)
	}
	return rules
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Adjust evaluates every loaded rule against the profile and product
// and returns the adjusted score. A rule that fails to evaluate is
// skipped; scoring must stay total.
func (e *Engine) Adjust(ctx context.Context, profile domain.Profile, product domain.Product, base float64) float64 {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiled))
	for _, rule := range e.compiled {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return base
	}

	premium := 0.0
	if v, ok := product.Premium.MonthlyAt(recommend.BudgetBracket); ok {
		premium = float64(v)
	}

	activation := map[string]any{
		"age":           profile.Age,
		"budget":        profile.Budget,
		"income":        profile.Income,
		"needs":         profile.Needs,
		"health_status": profile.HealthStatus,
		"family_status": profile.FamilyStatus,
		"product_id":    product.ID,
		"product_type":  product.Type,
		"category":      product.Category,
		"rating":        product.Rating,
		"premium":       premium,
		"base_score":    base,
	}

	score := base
	for _, rule := range rules {
		out, _, err := rule.program.Eval(activation)
		if err != nil {
			slog.Warn("boost rule evaluation failed",
				"rule_id", rule.config.ID,
				"error", err,
			)
			continue
		}
		score += toDelta(out) * rule.config.Weight
	}

	return score
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*compiledRule)
	return nil
}

// toDelta converts a CEL value to a numeric adjustment.
func toDelta(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

func (e *Engine) compileRule(cfg *domain.BoostRule) (*compiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &compiledRule{
		config:  cfg,
		program: program,
	}, nil
}
