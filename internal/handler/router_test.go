package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shaylevin89/follow-the-money/internal/domain"
	"github.com/shaylevin89/follow-the-money/internal/infra/observability"
	"github.com/shaylevin89/follow-the-money/internal/service"
)

// --- Mocks ---

type stubStore struct {
	doc      *domain.Document
	revision string
}

func (s *stubStore) Fetch(ctx context.Context) (*domain.Document, string, error) {
	return s.doc, s.revision, nil
}

func (s *stubStore) Replace(ctx context.Context, doc *domain.Document, revision string) (string, error) {
	s.doc = doc
	return "new-" + revision, nil
}

type stubRates struct{ rate float64 }

func (s *stubRates) Rate(ctx context.Context, base, quote string) (float64, error) {
	return s.rate, nil
}

type stubCache struct{ values map[string]float64 }

func (s *stubCache) Get(key string) (float64, bool) {
	v, ok := s.values[key]
	return v, ok
}
func (s *stubCache) Set(key string, value float64) { s.values[key] = value }
func (s *stubCache) Delete(key string)             { delete(s.values, key) }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := &stubStore{doc: domain.NewDocument(time.Now()), revision: "rev-1"}

	portfolio := service.NewPortfolio(
		store,
		&stubRates{rate: 3.5},
		&stubCache{values: map[string]float64{}},
		metrics,
		logger,
		"ILS",
		"USD",
		3.65,
	)

	authSvc, err := service.NewAuthService("hunter2", "", "test-secret", time.Hour, logger)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	srv := httptest.NewServer(NewRouter(portfolio, authSvc, metrics, logger, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	body := bytes.NewBufferString(`{"password": "hunter2"}`)
	resp, err := http.Post(srv.URL+"/v1/auth/login", "application/json", body)
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}

	var out domain.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if out.AccessToken == "" {
		t.Fatal("empty access token")
	}
	return out.AccessToken
}

func doAuthed(t *testing.T, srv *httptest.Server, token, method, path string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// --- Tests ---

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/ping", "/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/investments")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error != "missing authentication token" {
		t.Errorf("error = %q", out.Error)
	}
}

func TestProtectedRoutesRejectBadToken(t *testing.T) {
	srv := newTestServer(t)

	resp := doAuthed(t, srv, "garbage", http.MethodGet, "/v1/investments", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLoginWrongPasswordRejected(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/auth/login", "application/json",
		bytes.NewBufferString(`{"password": "wrong"}`))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestInvestmentLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	// Create.
	createBody := []byte(`{
		"name": "Index Fund",
		"investment_type": "stocks",
		"initial_amount": 1000,
		"start_date": "2024-01-01",
		"is_active": true
	}`)
	resp := doAuthed(t, srv, token, http.MethodPost, "/v1/investments", createBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created domain.Investment
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	resp.Body.Close()
	if created.ID == "" {
		t.Fatal("created investment has no id")
	}

	// List.
	resp = doAuthed(t, srv, token, http.MethodGet, "/v1/investments", nil)
	var list struct {
		Investments []domain.InvestmentView `json:"investments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	resp.Body.Close()
	if len(list.Investments) != 1 {
		t.Fatalf("list has %d investments, want 1", len(list.Investments))
	}

	// Update the balance.
	updateBody := []byte(`{"name": "Index Fund", "current_amount": 1200, "is_active": true}`)
	resp = doAuthed(t, srv, token, http.MethodPut, "/v1/investments/"+created.ID, updateBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}
	var updated domain.Investment
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	resp.Body.Close()
	if updated.CurrentAmount != 1200 || len(updated.Updates) != 2 {
		t.Errorf("unexpected updated investment: %+v", updated)
	}

	// Get.
	resp = doAuthed(t, srv, token, http.MethodGet, "/v1/investments/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	// Delete.
	resp = doAuthed(t, srv, token, http.MethodDelete, "/v1/investments/"+created.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	// Gone.
	resp = doAuthed(t, srv, token, http.MethodGet, "/v1/investments/"+created.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get-after-delete status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateInvestmentRejectsInvalidInput(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing name", `{"investment_type": "stocks"}`},
		{"loan without rate", `{"name": "Loan", "investment_type": "real_estate_loan"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doAuthed(t, srv, token, http.MethodPost, "/v1/investments", []byte(tt.body))
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestDashboard(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	resp := doAuthed(t, srv, token, http.MethodGet, "/v1/dashboard", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var dash domain.Dashboard
	if err := json.NewDecoder(resp.Body).Decode(&dash); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dash.Currency != "ILS" {
		t.Errorf("currency = %q, want ILS", dash.Currency)
	}
	if dash.ExchangeRate != 3.5 {
		t.Errorf("exchange rate = %v, want 3.5", dash.ExchangeRate)
	}
}

func TestGetPortfolioIncludesRevision(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	resp := doAuthed(t, srv, token, http.MethodGet, "/v1/portfolio", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out struct {
		Document *domain.Document `json:"document"`
		Revision string           `json:"revision"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Document == nil {
		t.Fatal("missing document")
	}
	if out.Revision != "rev-1" {
		t.Errorf("revision = %q, want rev-1", out.Revision)
	}
}

func TestTypesEndpoints(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	resp := doAuthed(t, srv, token, http.MethodPost, "/v1/types",
		[]byte(`{"name": "art", "exclude_periodical_profit": true}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create type status = %d, want 201", resp.StatusCode)
	}

	resp = doAuthed(t, srv, token, http.MethodGet, "/v1/types", nil)
	var list struct {
		Types []domain.InvestmentType `json:"investment_types"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()

	found := false
	for _, entry := range list.Types {
		if entry.Name == "art" {
			found = true
		}
	}
	if !found {
		t.Errorf("created type missing from list: %+v", list.Types)
	}

	resp = doAuthed(t, srv, token, http.MethodDelete, "/v1/types/art", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete type status = %d, want 204", resp.StatusCode)
	}

	resp = doAuthed(t, srv, token, http.MethodDelete, "/v1/types/art", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete missing type status = %d, want 404", resp.StatusCode)
	}
}

func TestSnapshotsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	resp := doAuthed(t, srv, token, http.MethodPost, "/v1/snapshots", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("take snapshot status = %d, want 201", resp.StatusCode)
	}
	var snapshot domain.PortfolioSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if snapshot.Date != time.Now().Format(domain.DateLayout) {
		t.Errorf("snapshot date = %q", snapshot.Date)
	}

	resp = doAuthed(t, srv, token, http.MethodGet, "/v1/snapshots", nil)
	var list struct {
		Snapshots []domain.PortfolioSnapshot `json:"snapshots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if len(list.Snapshots) != 1 {
		t.Errorf("list has %d snapshots, want 1", len(list.Snapshots))
	}
}

func TestMetricsSummary(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	// Generate some traffic first.
	resp := doAuthed(t, srv, token, http.MethodGet, "/v1/dashboard", nil)
	resp.Body.Close()

	resp = doAuthed(t, srv, token, http.MethodGet, "/v1/metrics/summary", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var summary domain.MetricsSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Period != "all_time" {
		t.Errorf("period = %q, want all_time", summary.Period)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(fmt.Sprintf("%s/v1/nope", srv.URL))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
