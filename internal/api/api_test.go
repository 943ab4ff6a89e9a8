package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartcover/heron/internal/bus"
	"github.com/smartcover/heron/internal/cache"
	"github.com/smartcover/heron/internal/catalog"
	"github.com/smartcover/heron/internal/chat"
	"github.com/smartcover/heron/internal/domain"
	"github.com/smartcover/heron/internal/recommend"
	"github.com/smartcover/heron/internal/repository"
	"github.com/smartcover/heron/internal/rules"
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
		{
			ID:       "accident-1",
			Name:     "平安意外險",
			Company:  "保誠人壽",
			Type:     domain.TypeAccident,
			Premium:  domain.Premium{Monthly: map[string]int{"age_30": 1500}},
			AgeRange: domain.AgeRange{Min: 18, Max: 70},
			Rating:   4.2,
		},
	})
}

type serverOptions struct {
	rateLimit int
	artifacts domain.ArtifactConfig
}

func newTestServer(t *testing.T, opts serverOptions) *Server {
	t.Helper()

	tmpDir := t.TempDir()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(tmpDir, "api-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(100)
	t.Cleanup(func() { c.Close() })

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	ruleEngine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("failed to create rule engine: %v", err)
	}

	store := testCatalog()
	engine := recommend.New(store, ruleEngine)
	responder := chat.New(nil)

	cfg := domain.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		RateLimit:       opts.rateLimit,
		RateLimitWindow: 60,
	}

	return NewServer(cfg, store, engine, ruleEngine, responder, repo, c, eventBus, opts.artifacts, "test")
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response body %q: %v", rr.Body.String(), err)
	}
	return rr, resp
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	rr, resp := doJSON(t, srv, http.MethodGet, "/api/health", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp["success"] != true {
		t.Error("expected success=true")
	}
	if resp["products_count"].(float64) != 3 {
		t.Errorf("expected products_count 3, got %v", resp["products_count"])
	}
	if resp["version"] != "test" {
		t.Errorf("expected version 'test', got %v", resp["version"])
	}
}

func TestProductsEndpoint(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	rr, resp := doJSON(t, srv, http.MethodGet, "/api/products", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp["count"].(float64) != 3 {
		t.Errorf("expected count 3, got %v", resp["count"])
	}
	data := resp["data"].([]interface{})
	if len(data) != 3 {
		t.Errorf("expected 3 products, got %d", len(data))
	}
}

func TestRecommendEndpoint(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	profile := map[string]interface{}{
		"age":           30,
		"budget":        5000,
		"needs":         []string{domain.NeedHealthProtection},
		"income":        80000,
		"health_status": "good",
		"family_status": "single",
	}

	rr, resp := doJSON(t, srv, http.MethodPost, "/api/recommend", profile)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp["success"] != true {
		t.Fatal("expected success=true")
	}
	if resp["recommendation_id"] == nil || resp["recommendation_id"] == "" {
		t.Error("expected recommendation_id in response")
	}
	if _, ok := resp["cached"]; ok {
		t.Error("first request should not be served from cache")
	}

	data := resp["data"].([]interface{})
	if len(data) == 0 {
		t.Fatal("expected at least one recommendation")
	}
	first := data[0].(map[string]interface{})
	if first["id"] != "health-1" {
		t.Errorf("expected health-1 ranked first, got %v", first["id"])
	}
	if first["recommendation_score"].(float64) <= 0 {
		t.Error("expected positive recommendation score")
	}

	// Stored record is retrievable by ID
	recID := resp["recommendation_id"].(string)
	rr2, resp2 := doJSON(t, srv, http.MethodGet, "/api/recommendations/"+recID, nil)
	if rr2.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching stored recommendation, got %d", rr2.Code)
	}
	record := resp2["data"].(map[string]interface{})
	if record["id"] != recID {
		t.Errorf("expected stored record id %s, got %v", recID, record["id"])
	}

	// An identical profile hits the cache
	rr3, resp3 := doJSON(t, srv, http.MethodPost, "/api/recommend", profile)
	if rr3.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr3.Code)
	}
	if resp3["cached"] != true {
		t.Error("expected cached=true on repeat request")
	}
}

func TestRecommendEndpointValidation(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/recommend", bytes.NewBufferString("{not json"))
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("NegativeAge", func(t *testing.T) {
		rr, resp := doJSON(t, srv, http.MethodPost, "/api/recommend", map[string]interface{}{"age": -5})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
		if resp["success"] != false {
			t.Error("expected success=false")
		}
	})

	t.Run("EmptyProfileUsesDefaults", func(t *testing.T) {
		rr, resp := doJSON(t, srv, http.MethodPost, "/api/recommend", map[string]interface{}{})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		profile := resp["user_profile"].(map[string]interface{})
		if profile["age"].(float64) != 30 {
			t.Errorf("expected default age 30, got %v", profile["age"])
		}
	})
}

func TestRiskAssessmentEndpoint(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	rr, resp := doJSON(t, srv, http.MethodPost, "/api/risk-assessment", map[string]interface{}{
		"age":           40,
		"income":        45000,
		"health_status": "fair",
		"family_status": "married_with_kids",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp["assessment_id"] == nil || resp["assessment_id"] == "" {
		t.Error("expected assessment_id in response")
	}

	data := resp["data"].(map[string]interface{})
	family := data["family"].(map[string]interface{})
	if family["level"] != "high" {
		t.Errorf("expected high family risk for married_with_kids, got %v", family["level"])
	}
	financial := data["financial"].(map[string]interface{})
	if financial["level"] != "medium" {
		t.Errorf("expected medium financial risk at income 45000, got %v", financial["level"])
	}

	// Stored record is retrievable
	id := resp["assessment_id"].(string)
	rr2, _ := doJSON(t, srv, http.MethodGet, "/api/assessments/"+id, nil)
	if rr2.Code != http.StatusOK {
		t.Errorf("expected 200 fetching stored assessment, got %d", rr2.Code)
	}

	// Unknown ID is a 404
	rr3, resp3 := doJSON(t, srv, http.MethodGet, "/api/assessments/nope", nil)
	if rr3.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown assessment, got %d", rr3.Code)
	}
	if resp3["success"] != false {
		t.Error("expected success=false for unknown assessment")
	}
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	t.Run("KeywordReply", func(t *testing.T) {
		rr, resp := doJSON(t, srv, http.MethodPost, "/api/chat", map[string]interface{}{
			"message": "我想了解醫療保險",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if resp["response"] == nil || resp["response"] == "" {
			t.Error("expected a non-empty chat response")
		}
	})

	t.Run("EmptyMessage", func(t *testing.T) {
		rr, _ := doJSON(t, srv, http.MethodPost, "/api/chat", map[string]interface{}{"message": ""})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for empty message, got %d", rr.Code)
		}
	})
}

func TestArtifactEndpoints(t *testing.T) {
	tmpDir := t.TempDir()
	analysisPath := filepath.Join(tmpDir, "customer_analysis.json")
	summaryPath := filepath.Join(tmpDir, "data_summary.json")

	if err := os.WriteFile(analysisPath, []byte(`{"personas":[{"group":"18-30歲","count":2}]}`), 0644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	srv := newTestServer(t, serverOptions{
		artifacts: domain.ArtifactConfig{
			CustomerAnalysisPath: analysisPath,
			DataSummaryPath:      summaryPath,
		},
	})

	t.Run("ServesExisting", func(t *testing.T) {
		rr, resp := doJSON(t, srv, http.MethodGet, "/api/customer-analysis", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		data := resp["data"].(map[string]interface{})
		if data["personas"] == nil {
			t.Error("expected personas in artifact payload")
		}
	})

	t.Run("MissingIs404", func(t *testing.T) {
		rr, resp := doJSON(t, srv, http.MethodGet, "/api/data-summary", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404 for missing artifact, got %d", rr.Code)
		}
		if resp["success"] != false {
			t.Error("expected success=false for missing artifact")
		}
	})

	t.Run("CorruptIs500", func(t *testing.T) {
		if err := os.WriteFile(summaryPath, []byte("{broken"), 0644); err != nil {
			t.Fatalf("failed to write artifact: %v", err)
		}
		rr, _ := doJSON(t, srv, http.MethodGet, "/api/data-summary", nil)
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected 500 for corrupt artifact, got %d", rr.Code)
		}
	})
}

func TestRulesEndpoints(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	t.Run("EmptyList", func(t *testing.T) {
		rr, resp := doJSON(t, srv, http.MethodGet, "/api/rules", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if resp["count"].(float64) != 0 {
			t.Errorf("expected 0 rules, got %v", resp["count"])
		}
	})

	t.Run("CreateAndReload", func(t *testing.T) {
		rr, resp := doJSON(t, srv, http.MethodPost, "/api/rules", map[string]interface{}{
			"id":         "boost-high-rating",
			"name":       "High rating boost",
			"expression": `rating >= 4.5`,
			"weight":     0.05,
			"enabled":    true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
		if resp["success"] != true {
			t.Fatal("expected success=true")
		}

		rr2, resp2 := doJSON(t, srv, http.MethodPost, "/api/rules/reload", nil)
		if rr2.Code != http.StatusOK {
			t.Fatalf("expected 200 on reload, got %d: %s", rr2.Code, rr2.Body.String())
		}
		if resp2["count"].(float64) != 1 {
			t.Errorf("expected 1 rule after reload, got %v", resp2["count"])
		}

		rr3, resp3 := doJSON(t, srv, http.MethodGet, "/api/rules", nil)
		if rr3.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr3.Code)
		}
		if resp3["count"].(float64) != 1 {
			t.Errorf("expected 1 loaded rule, got %v", resp3["count"])
		}
	})

	t.Run("InvalidExpression", func(t *testing.T) {
		rr, _ := doJSON(t, srv, http.MethodPost, "/api/rules", map[string]interface{}{
			"id":         "broken",
			"name":       "Broken rule",
			"expression": `age >`,
			"weight":     0.1,
			"enabled":    true,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for invalid expression, got %d", rr.Code)
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		rr, _ := doJSON(t, srv, http.MethodPost, "/api/rules", map[string]interface{}{
			"name": "No ID",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for missing fields, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	t.Run("RequestIDHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)

		if rr.Header().Get("Access-Control-Allow-Origin") == "" {
			t.Error("expected CORS headers on preflight")
		}
	})
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, serverOptions{rateLimit: 2})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// A different client is not throttled
	req2 := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req2.RemoteAddr = "10.0.0.2:12345"
	rr2 := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr2, req2)
	if rr2.Code != http.StatusOK {
		t.Errorf("expected 200 for distinct client, got %d", rr2.Code)
	}
}
