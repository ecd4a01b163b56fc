package rates_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shaylevin89/follow-the-money/internal/domain"
	"github.com/shaylevin89/follow-the-money/internal/infra/rates"
	"github.com/shaylevin89/follow-the-money/internal/infra/resilience"
)

func newTestClient(t *testing.T, handler http.Handler) *rates.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return rates.NewClient(
		srv.Client(),
		srv.URL,
		resilience.NewCircuitBreaker("test"),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)
}

func TestRate_ReturnsQuoteRate(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/latest/USD" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"base":"USD","rates":{"ILS":3.42,"EUR":0.92}}`))
	}))

	rate, err := client.Rate(context.Background(), "USD", "ILS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rate != 3.42 {
		t.Errorf("expected 3.42, got %v", rate)
	}
}

func TestRate_MissingQuoteIsNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base":"USD","rates":{"EUR":0.92}}`))
	}))

	_, err := client.Rate(context.Background(), "USD", "ILS")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRate_ServerErrorIsExternalService(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.Rate(context.Background(), "USD", "ILS")
	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if external.Service != "exchange-rates" {
		t.Errorf("unexpected service: %q", external.Service)
	}
}

func TestRate_RetriesTransientFailures(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"base":"USD","rates":{"ILS":3.5}}`))
	}))

	rate, err := client.Rate(context.Background(), "USD", "ILS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rate != 3.5 {
		t.Errorf("expected 3.5, got %v", rate)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}
