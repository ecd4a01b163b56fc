package github_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shaylevin89/follow-the-money/internal/domain"
	"github.com/shaylevin89/follow-the-money/internal/infra/github"
	"github.com/shaylevin89/follow-the-money/internal/infra/resilience"
)

func newTestClient(t *testing.T, handler http.Handler) (*github.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := github.NewClient(
		srv.Client(),
		srv.URL,
		"shaylevin89", "money-data", "main", "data.json", "test-token",
		resilience.NewCircuitBreaker("test"),
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)
	return client, srv
}

func encodeDocument(t *testing.T, doc *domain.Document) string {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestFetch_DecodesDocumentAndRevision(t *testing.T) {
	doc := domain.NewDocument(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	doc.Investments = []domain.Investment{{
		ID:             "inv-1",
		Name:           "Index fund",
		InvestmentType: "stocks",
		Currency:       "ILS",
		InitialAmount:  1000,
		CurrentAmount:  1100,
		StartDate:      "2025-01-01",
		IsActive:       true,
	}}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		if got := r.URL.Query().Get("ref"); got != "main" {
			t.Errorf("expected ref=main, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"content":  encodeDocument(t, doc),
			"encoding": "base64",
			"sha":      "abc123",
		})
	}))

	got, revision, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revision != "abc123" {
		t.Errorf("expected revision abc123, got %q", revision)
	}
	if len(got.Investments) != 1 || got.Investments[0].ID != "inv-1" {
		t.Errorf("unexpected investments: %+v", got.Investments)
	}
}

func TestFetch_HandlesWrappedBase64(t *testing.T) {
	doc := domain.NewDocument(time.Now())
	encoded := encodeDocument(t, doc)
	// The Contents API wraps base64 at 60 columns with literal newlines.
	wrapped := ""
	for i := 0; i < len(encoded); i += 60 {
		end := i + 60
		if end > len(encoded) {
			end = len(encoded)
		}
		wrapped += encoded[i:end] + "\n"
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"content":  wrapped,
			"encoding": "base64",
			"sha":      "def456",
		})
	}))

	if _, _, err := client.Fetch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetch_MissingFileIsNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, _, err := client.Fetch(context.Background())
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if notFound.ID != "data.json" {
		t.Errorf("expected ID data.json, got %q", notFound.ID)
	}
}

func TestFetch_ServerErrorIsExternalService(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, _, err := client.Fetch(context.Background())
	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if external.Service != "github/contents" {
		t.Errorf("unexpected service: %q", external.Service)
	}
}

func TestReplace_SendsShaAndReturnsNewRevision(t *testing.T) {
	doc := domain.NewDocument(time.Now())

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		var body struct {
			Message string `json:"message"`
			Content string `json:"content"`
			SHA     string `json:"sha"`
			Branch  string `json:"branch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Message != "Update investment data" {
			t.Errorf("unexpected commit message: %q", body.Message)
		}
		if body.SHA != "old-sha" {
			t.Errorf("expected sha old-sha, got %q", body.SHA)
		}
		if body.Branch != "main" {
			t.Errorf("expected branch main, got %q", body.Branch)
		}
		if _, err := base64.StdEncoding.DecodeString(body.Content); err != nil {
			t.Errorf("content is not valid base64: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]string{"sha": "new-sha"},
		})
	}))

	revision, err := client.Replace(context.Background(), doc, "old-sha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revision != "new-sha" {
		t.Errorf("expected new-sha, got %q", revision)
	}
}

func TestReplace_OmitsShaWhenCreating(t *testing.T) {
	doc := domain.NewDocument(time.Now())

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if _, ok := body["sha"]; ok {
			t.Error("sha must be omitted when creating the file")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]string{"sha": "first-sha"},
		})
	}))

	revision, err := client.Replace(context.Background(), doc, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revision != "first-sha" {
		t.Errorf("expected first-sha, got %q", revision)
	}
}

func TestReplace_StaleRevisionIsConflict(t *testing.T) {
	doc := domain.NewDocument(time.Now())
	calls := 0

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
	}))

	_, err := client.Replace(context.Background(), doc, "stale-sha")
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if conflict.Revision != "stale-sha" {
		t.Errorf("unexpected revision: %q", conflict.Revision)
	}
	if calls != 1 {
		t.Errorf("conflict must not be retried: got %d calls", calls)
	}
}
