package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/smartcover/heron/internal/domain"
)

func newSQLiteRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "heron-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetRecommendation", func(t *testing.T) {
		record := &domain.RecommendationRecord{
			ID: "rec-001",
			Profile: domain.Profile{
				Age:    30,
				Budget: 5000,
				Needs:  []string{domain.NeedHealthProtection},
			}.Normalize(),
			Results: []domain.Recommendation{
				{
					Product:             domain.Product{ID: "p1", Name: "安心醫療險", Type: domain.TypeHealth},
					RecommendationScore: 0.92,
				},
			},
			CreatedAt: time.Now().UTC(),
		}

		if err := repo.SaveRecommendation(ctx, record); err != nil {
			t.Fatalf("SaveRecommendation failed: %v", err)
		}

		retrieved, err := repo.GetRecommendation(ctx, record.ID)
		if err != nil {
			t.Fatalf("GetRecommendation failed: %v", err)
		}

		if retrieved.ID != record.ID {
			t.Errorf("expected ID %s, got %s", record.ID, retrieved.ID)
		}
		if retrieved.Profile.Age != 30 {
			t.Errorf("expected profile age 30, got %d", retrieved.Profile.Age)
		}
		if len(retrieved.Results) != 1 || retrieved.Results[0].RecommendationScore != 0.92 {
			t.Errorf("unexpected results: %+v", retrieved.Results)
		}
	})

	t.Run("GetRecommendationNotFound", func(t *testing.T) {
		if _, err := repo.GetRecommendation(ctx, "nope"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("SaveAndGetAssessment", func(t *testing.T) {
		record := &domain.AssessmentRecord{
			ID:      "assess-001",
			Profile: domain.Profile{Age: 45, Income: 55000}.Normalize(),
			Assessment: domain.RiskAssessment{
				Health:    domain.RiskDimension{Score: 28, Level: domain.RiskMedium, Recommendation: "建議購買基本醫療保險"},
				Financial: domain.RiskDimension{Score: 55, Level: domain.RiskMedium},
				Family:    domain.RiskDimension{Score: 25, Level: domain.RiskLow},
			},
			CreatedAt: time.Now().UTC(),
		}

		if err := repo.SaveAssessment(ctx, record); err != nil {
			t.Fatalf("SaveAssessment failed: %v", err)
		}

		retrieved, err := repo.GetAssessment(ctx, record.ID)
		if err != nil {
			t.Fatalf("GetAssessment failed: %v", err)
		}

		if retrieved.Assessment.Financial.Score != 55 {
			t.Errorf("expected financial score 55, got %d", retrieved.Assessment.Financial.Score)
		}
		if retrieved.Assessment.Health.Level != domain.RiskMedium {
			t.Errorf("expected health level medium, got %s", retrieved.Assessment.Health.Level)
		}
	})

	t.Run("RequiresID", func(t *testing.T) {
		if err := repo.SaveRecommendation(ctx, &domain.RecommendationRecord{}); err == nil {
			t.Error("expected error for empty record ID")
		}
		if _, err := repo.GetAssessment(ctx, ""); err == nil {
			t.Error("expected error for empty ID")
		}
	})
}

func TestBoostRuleStorage(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	rule := &domain.BoostRule{
		ID:          "boost-young",
		Name:        "Young customer boost",
		Description: "Nudge accident cover for young profiles",
		Version:     "1.0.0",
		Expression:  `age < 30 && product_type == "accident"`,
		Weight:      0.05,
		Enabled:     true,
	}

	t.Run("SaveAndGet", func(t *testing.T) {
		if err := repo.SaveBoostRule(ctx, rule); err != nil {
			t.Fatalf("SaveBoostRule failed: %v", err)
		}

		retrieved, err := repo.GetBoostRule(ctx, rule.ID)
		if err != nil {
			t.Fatalf("GetBoostRule failed: %v", err)
		}
		if retrieved.Expression != rule.Expression {
			t.Errorf("expected expression %q, got %q", rule.Expression, retrieved.Expression)
		}
		if retrieved.Weight != 0.05 {
			t.Errorf("expected weight 0.05, got %v", retrieved.Weight)
		}
	})

	t.Run("UpsertSameVersion", func(t *testing.T) {
		updated := *rule
		updated.Weight = 0.1

		if err := repo.SaveBoostRule(ctx, &updated); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		retrieved, err := repo.GetBoostRule(ctx, rule.ID)
		if err != nil {
			t.Fatalf("GetBoostRule failed: %v", err)
		}
		if retrieved.Weight != 0.1 {
			t.Errorf("expected weight updated to 0.1, got %v", retrieved.Weight)
		}
	})

	t.Run("List", func(t *testing.T) {
		second := &domain.BoostRule{
			ID:         "boost-family",
			Name:       "Family boost",
			Version:    "1.0.0",
			Expression: `family_status == "married_with_kids"`,
			Weight:     0.03,
			Enabled:    true,
		}
		if err := repo.SaveBoostRule(ctx, second); err != nil {
			t.Fatalf("SaveBoostRule failed: %v", err)
		}

		rules, err := repo.ListBoostRules(ctx)
		if err != nil {
			t.Fatalf("ListBoostRules failed: %v", err)
		}
		if len(rules) != 2 {
			t.Errorf("expected 2 enabled rules, got %d", len(rules))
		}
	})

	t.Run("DisabledExcluded", func(t *testing.T) {
		disabled := &domain.BoostRule{
			ID:         "boost-off",
			Name:       "Disabled",
			Version:    "1.0.0",
			Expression: "true",
			Enabled:    false,
		}
		if err := repo.SaveBoostRule(ctx, disabled); err != nil {
			t.Fatalf("SaveBoostRule failed: %v", err)
		}

		if _, err := repo.GetBoostRule(ctx, "boost-off"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound for disabled rule, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := New(domain.RepositoryConfig{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
