// Package worker provides async profile processing off the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smartcover/heron/internal/domain"
	"github.com/smartcover/heron/internal/recommend"
	"github.com/smartcover/heron/internal/risk"
)

// Worker consumes submitted profiles from the EventBus and runs the
// full advisory pipeline for them: recommendation scoring, risk
// assessment, persistence, and result publication. Batch submitters
// (e.g. campaign imports) publish profiles instead of calling the
// HTTP API.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	engine *recommend.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, engine *recommend.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		engine: engine,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the profile submission topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicProfileSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicProfileSubmitted,
	)

	return nil
}

// ProfileMessage is the payload published to the profile submission
// topic.
type ProfileMessage struct {
	RequestID string         `json:"requestId"`
	Profile   domain.Profile `json:"profile"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processProfile(ctx, msg)
}

// processProfile runs the advisory pipeline for one submitted profile.
func (w *Worker) processProfile(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var pm ProfileMessage
	if err := json.Unmarshal(msg.Payload, &pm); err != nil {
		slog.Error("failed to parse profile message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	requestID := pm.RequestID
	if requestID == "" {
		requestID = msg.ID
	}

	profile := pm.Profile.Normalize()

	slog.Debug("processing profile",
		"request_id", requestID,
	)

	// 1. Score recommendations
	results := w.engine.Recommend(ctx, profile)

	// 2. Assess risk
	assessment := risk.Assess(profile)

	// 3. Persist both records
	now := time.Now().UTC()
	recRecord := &domain.RecommendationRecord{
		ID:        uuid.New().String(),
		Profile:   profile,
		Results:   results,
		CreatedAt: now,
	}
	if w.repo != nil {
		if err := w.repo.SaveRecommendation(ctx, recRecord); err != nil {
			slog.Error("failed to save recommendation record",
				"request_id", requestID,
				"error", err,
			)
		}
	}

	assessRecord := &domain.AssessmentRecord{
		ID:         uuid.New().String(),
		Profile:    profile,
		Assessment: assessment,
		CreatedAt:  now,
	}
	if w.repo != nil {
		if err := w.repo.SaveAssessment(ctx, assessRecord); err != nil {
			slog.Error("failed to save assessment record",
				"request_id", requestID,
				"error", err,
			)
		}
	}

	// 4. Publish results
	recPayload, _ := json.Marshal(recRecord)
	if err := w.bus.Publish(ctx, domain.TopicRecommendationCreated, recPayload); err != nil {
		slog.Error("failed to publish recommendation",
			"request_id", requestID,
			"error", err,
		)
	}

	assessPayload, _ := json.Marshal(assessRecord)
	if err := w.bus.Publish(ctx, domain.TopicRiskAssessed, assessPayload); err != nil {
		slog.Error("failed to publish assessment",
			"request_id", requestID,
			"error", err,
		)
	}

	// 5. High risk in any dimension raises an alert
	if assessment.AnyHigh() {
		if err := w.bus.Publish(ctx, domain.TopicRiskAlert, assessPayload); err != nil {
			slog.Error("failed to publish risk alert",
				"request_id", requestID,
				"error", err,
			)
		}
	}

	slog.Info("profile processed",
		"request_id", requestID,
		"recommendations", len(results),
		"high_risk", assessment.AnyHigh(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
