package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartcover/heron/internal/bus"
	"github.com/smartcover/heron/internal/catalog"
	"github.com/smartcover/heron/internal/domain"
	"github.com/smartcover/heron/internal/recommend"
	"github.com/smartcover/heron/internal/repository"
)

func testCatalog() *catalog.Store {
	return catalog.New([]domain.Product{
		{
			ID:       "health-1",
			Name:     "安心醫療險",
			Company:  "保誠人壽",
			Type:     domain.TypeHealth,
			Premium:  domain.Premium{Monthly: map[string]int{"age_30": 3000}},
			AgeRange: domain.AgeRange{Min: 20, Max: 60},
			Rating:   4.5,
		},
		{
			ID:       "life-1",
			Name:     "富御終身壽險",
			Company:  "保誠人壽",
			Type:     domain.TypeLife,
			Premium:  domain.Premium{Monthly: map[string]int{"age_30": 4000}},
			AgeRange: domain.AgeRange{Min: 25, Max: 65},
			Rating:   4.0,
		},
	})
}

func newTestWorker(t *testing.T) (*Worker, *bus.ChannelBus, domain.Repository) {
	t.Helper()

	tmpDir := t.TempDir()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpDir + "/worker-test.db",
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	engine := recommend.New(testCatalog(), nil)
	w := NewWorker(eventBus, repo, engine)

	return w, eventBus, repo
}

func TestWorker(t *testing.T) {
	w, eventBus, repo := newTestWorker(t)
	ctx := context.Background()

	if err := w.Start(); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	recCh := make(chan *domain.RecommendationRecord, 1)
	eventBus.Subscribe(ctx, domain.TopicRecommendationCreated, func(ctx context.Context, msg *domain.Message) error {
		var rec domain.RecommendationRecord
		if err := json.Unmarshal(msg.Payload, &rec); err == nil {
			select {
			case recCh <- &rec:
			default:
			}
		}
		return nil
	})

	assessCh := make(chan *domain.AssessmentRecord, 1)
	eventBus.Subscribe(ctx, domain.TopicRiskAssessed, func(ctx context.Context, msg *domain.Message) error {
		var rec domain.AssessmentRecord
		if err := json.Unmarshal(msg.Payload, &rec); err == nil {
			select {
			case assessCh <- &rec:
			default:
			}
		}
		return nil
	})

	var alerts atomic.Int32
	eventBus.Subscribe(ctx, domain.TopicRiskAlert, func(ctx context.Context, msg *domain.Message) error {
		alerts.Add(1)
		return nil
	})

	time.Sleep(10 * time.Millisecond)

	payload, _ := json.Marshal(ProfileMessage{
		RequestID: "req-1",
		Profile: domain.Profile{
			Age:          35,
			Budget:       5000,
			Needs:        []string{domain.NeedHealthProtection},
			Income:       120000,
			HealthStatus: "excellent",
			FamilyStatus: "single",
		},
	})
	if err := eventBus.Publish(ctx, domain.TopicProfileSubmitted, payload); err != nil {
		t.Fatalf("failed to publish profile: %v", err)
	}

	var recRecord *domain.RecommendationRecord
	select {
	case recRecord = <-recCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for recommendation event")
	}

	var assessRecord *domain.AssessmentRecord
	select {
	case assessRecord = <-assessCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for assessment event")
	}

	if len(recRecord.Results) == 0 {
		t.Error("expected recommendations in published record")
	}
	if recRecord.Results[0].Product.ID != "health-1" {
		t.Errorf("expected health-1 ranked first, got %s", recRecord.Results[0].Product.ID)
	}

	if assessRecord.Assessment.Health.Level != domain.RiskLow {
		t.Errorf("expected low health risk, got %s", assessRecord.Assessment.Health.Level)
	}
	if assessRecord.Assessment.AnyHigh() {
		t.Error("low-risk profile should not flag high risk")
	}

	// Both records must be retrievable from storage.
	saved, err := repo.GetRecommendation(ctx, recRecord.ID)
	if err != nil {
		t.Fatalf("failed to load saved recommendation: %v", err)
	}
	if saved.Profile.Age != 35 {
		t.Errorf("expected profile age 35 in saved record, got %d", saved.Profile.Age)
	}

	if _, err := repo.GetAssessment(ctx, assessRecord.ID); err != nil {
		t.Fatalf("failed to load saved assessment: %v", err)
	}

	// Low-risk profile must not raise an alert.
	time.Sleep(50 * time.Millisecond)
	if alerts.Load() != 0 {
		t.Errorf("expected no risk alerts, got %d", alerts.Load())
	}
}

func TestWorkerHighRiskAlert(t *testing.T) {
	w, eventBus, _ := newTestWorker(t)
	ctx := context.Background()

	if err := w.Start(); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	alertCh := make(chan *domain.AssessmentRecord, 1)
	eventBus.Subscribe(ctx, domain.TopicRiskAlert, func(ctx context.Context, msg *domain.Message) error {
		var rec domain.AssessmentRecord
		if err := json.Unmarshal(msg.Payload, &rec); err == nil {
			select {
			case alertCh <- &rec:
			default:
			}
		}
		return nil
	})

	time.Sleep(10 * time.Millisecond)

	// Poor health at 60 lands in the high band.
	payload, _ := json.Marshal(ProfileMessage{
		Profile: domain.Profile{
			Age:          60,
			Budget:       3000,
			Income:       30000,
			HealthStatus: "poor",
			FamilyStatus: "married_with_kids",
		},
	})
	if err := eventBus.Publish(ctx, domain.TopicProfileSubmitted, payload); err != nil {
		t.Fatalf("failed to publish profile: %v", err)
	}

	select {
	case rec := <-alertCh:
		if !rec.Assessment.AnyHigh() {
			t.Error("alert record should carry a high risk dimension")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for risk alert")
	}
}

func TestWorkerBadPayload(t *testing.T) {
	w, _, _ := newTestWorker(t)

	msg := &domain.Message{
		ID:      "bad-1",
		Topic:   domain.TopicProfileSubmitted,
		Payload: []byte("not json"),
	}
	if err := w.processProfile(context.Background(), msg); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestWorkerStats(t *testing.T) {
	w, _, _ := newTestWorker(t)

	if got := w.GetStats().SubscriptionCount; got != 0 {
		t.Errorf("expected 0 subscriptions before start, got %d", got)
	}

	if err := w.Start(); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}

	stats := w.GetStats()
	if stats.SubscriptionCount != 1 {
		t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
	}
	if len(stats.Topics) != 1 || stats.Topics[0] != domain.TopicProfileSubmitted {
		t.Errorf("unexpected topics: %v", stats.Topics)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("failed to stop worker: %v", err)
	}
	if got := w.GetStats().SubscriptionCount; got != 0 {
		t.Errorf("expected 0 subscriptions after stop, got %d", got)
	}
}
