package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harrierhq/harrier/internal/cache"
	"github.com/harrierhq/harrier/internal/domain"
	"github.com/harrierhq/harrier/internal/fraud"
	"github.com/harrierhq/harrier/internal/rules"
	"github.com/harrierhq/harrier/internal/thresholds"
)

// createTestServer creates a server with a detector over empty history.
func createTestServer() *Server {
	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	provider := thresholds.NewProvider()
	detector := fraud.New(domain.DefaultFraudConfig(), provider, nil)

	return NewServer(cfg, nil, nil, nil, detector, provider, nil, "test-v1")
}

func checkRequest(t *testing.T, server *Server, body []byte, orgID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/check", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if orgID != "" {
		req.Header.Set(OrgIDHeader, orgID)
	}
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestCheckEndpoint(t *testing.T) {
	server := createTestServer()

	t.Run("SuccessfulCheck", func(t *testing.T) {
		reqBody := domain.TransactionRequest{
			Amount:       4537,
			Currency:     "EUR",
			Date:         time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			Description:  "Taxi to airport",
			CategoryCode: "TRAVEL",
		}

		body, _ := json.Marshal(reqBody)
		rr := checkRequest(t, server, body, "org-001")

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp CheckResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.Result.TransactionID == "" {
			t.Error("expected transactionId in result")
		}
		if resp.Result.OrgID != "org-001" {
			t.Errorf("expected orgId 'org-001', got '%s'", resp.Result.OrgID)
		}
		if resp.Result.RecommendedAction != domain.ActionAllow {
			t.Errorf("expected ALLOW for clean transaction, got %s", resp.Result.RecommendedAction)
		}
		if resp.Result.BlockedBySystem {
			t.Error("clean transaction must not be blocked")
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("MissingOrgID", func(t *testing.T) {
		rr := checkRequest(t, server, []byte("{}"), "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rr := checkRequest(t, server, []byte("not-json"), "org-001")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		reqBody := domain.TransactionRequest{
			Amount:   -100,
			Currency: "EUR",
			Date:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		}
		body, _ := json.Marshal(reqBody)
		rr := checkRequest(t, server, body, "org-001")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingDate", func(t *testing.T) {
		reqBody := domain.TransactionRequest{
			Amount:   100,
			Currency: "EUR",
		}
		body, _ := json.Marshal(reqBody)
		rr := checkRequest(t, server, body, "org-001")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		reqBody := domain.TransactionRequest{
			Amount:   4537,
			Currency: "EUR",
			Date:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		}
		body, _ := json.Marshal(reqBody)
		rr := checkRequest(t, server, body, "org-001")

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header")
		}
	})
}

func TestBatchCheckEndpoint(t *testing.T) {
	server := createTestServer()

	t.Run("RollingHistoryDuplicates", func(t *testing.T) {
		// Three identical transactions: the first is clean relative to an
		// empty history, the later two are exact duplicates of it.
		tx := domain.TransactionRequest{
			Amount:      4537,
			Currency:    "EUR",
			Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			Description: "Team lunch",
		}
		reqBody := BatchCheckRequest{
			Transactions: []domain.TransactionRequest{tx, tx, tx},
		}

		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/check/batch", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(OrgIDHeader, "org-batch")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp BatchCheckResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if len(resp.Results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(resp.Results))
		}

		if resp.Results[0].DuplicateCheck.IsDuplicate {
			t.Error("first transaction must not be a duplicate")
		}
		for i := 1; i < 3; i++ {
			if !resp.Results[i].DuplicateCheck.IsDuplicate {
				t.Errorf("transaction %d should be a duplicate", i)
			}
			if resp.Results[i].RecommendedAction != domain.ActionBlock {
				t.Errorf("transaction %d: expected BLOCK, got %s", i, resp.Results[i].RecommendedAction)
			}
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		body, _ := json.Marshal(BatchCheckRequest{})
		req := httptest.NewRequest(http.MethodPost, "/check/batch", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(OrgIDHeader, "org-batch")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer()

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy, got %s", resp["status"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestThresholdEndpoints(t *testing.T) {
	server := createTestServer()

	t.Run("ListDefaults", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/thresholds/DEFAULT", nil)
		req.Header.Set(OrgIDHeader, "org-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count == 0 {
			t.Error("expected builtin thresholds for DEFAULT country")
		}
	})

	t.Run("PutAndList", func(t *testing.T) {
		configs := []domain.ThresholdConfig{
			{
				CategoryCode:        "ENTERTAINMENT",
				PerTransactionLimit: domain.Limit(30_000),
				WarningThreshold:    0.8,
			},
		}
		body, _ := json.Marshal(configs)

		req := httptest.NewRequest(http.MethodPut, "/thresholds/AT", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(OrgIDHeader, "org-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		req = httptest.NewRequest(http.MethodGet, "/thresholds/AT", nil)
		req.Header.Set(OrgIDHeader, "org-001")
		rr = httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 threshold for AT, got %d", resp.Count)
		}
	})
}

func TestCustomRuleEndpoints(t *testing.T) {
	cfg := domain.ServerConfig{Host: "localhost", Port: 8080, ReadTimeout: 30, WriteTimeout: 30}
	provider := thresholds.NewProvider()
	custom, err := rules.NewCustomEngine()
	if err != nil {
		t.Fatalf("NewCustomEngine failed: %v", err)
	}
	detector := fraud.New(domain.DefaultFraudConfig(), provider, custom)

	server := NewServer(cfg, nil, nil, nil, detector, provider, custom, "test-v1")

	t.Run("CreateRule", func(t *testing.T) {
		reqBody := CreateRuleRequest{
			ID:         "big-cash-001",
			Name:       "Big cash expense",
			Expression: "amount > 200000",
			Severity:   domain.SeverityHigh,
			Enabled:    true,
		}
		body, _ := json.Marshal(reqBody)

		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(OrgIDHeader, "org-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateRuleBadExpression", func(t *testing.T) {
		reqBody := CreateRuleRequest{
			ID:         "broken-001",
			Name:       "Broken rule",
			Expression: "amount >>>", // not valid CEL
			Enabled:    true,
		}
		body, _ := json.Marshal(reqBody)

		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(OrgIDHeader, "org-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ListRules", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules", nil)
		req.Header.Set(OrgIDHeader, "org-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 loaded rule, got %d", resp.Count)
		}
	})
}

func TestRateLimit(t *testing.T) {
	cfg := domain.ServerConfig{
		Host:               "localhost",
		Port:               8080,
		ReadTimeout:        30,
		WriteTimeout:       30,
		RateLimitPerMinute: 2,
	}

	provider := thresholds.NewProvider()
	detector := fraud.New(domain.DefaultFraudConfig(), provider, nil)
	limiter := cache.NewLRUCache(100)

	server := NewServer(cfg, nil, limiter, nil, detector, provider, nil, "test-v1")

	reqBody := domain.TransactionRequest{
		Amount:   4537,
		Currency: "EUR",
		Date:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}
	body, _ := json.Marshal(reqBody)

	for i := 0; i < 2; i++ {
		rr := checkRequest(t, server, body, "org-limited")
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, rr.Code)
		}
	}

	rr := checkRequest(t, server, body, "org-limited")
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429 after limit, got %d", rr.Code)
	}

	// A different org is not affected
	rr = checkRequest(t, server, body, "org-other")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200 for other org, got %d", rr.Code)
	}
}
