// Package rates fetches foreign-exchange rates from a public rates API.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shaylevin89/follow-the-money/internal/domain"
	"github.com/shaylevin89/follow-the-money/internal/infra/resilience"
)

var tracer = otel.Tracer("rates")

// Client implements port.RateProvider against an exchangerate-api style
// endpoint: GET {base}/v4/latest/{CUR} returns a rates table.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates an exchange-rate client.
func NewClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

type latestResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Rate returns the conversion rate from base to quote currency.
func (c *Client) Rate(ctx context.Context, base, quote string) (float64, error) {
	ctx, span := tracer.Start(ctx, "Rates.Rate")
	defer span.End()
	span.SetAttributes(
		attribute.String("fx.base", base),
		attribute.String("fx.quote", quote),
	)

	var rate float64

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/v4/latest/%s", c.baseURL, base)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return &domain.ErrExternalService{Service: "exchange-rates", Err: err}
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				c.logger.Error("rates: request failed",
					zap.String("base", base),
					zap.Error(err),
				)
				return &domain.ErrExternalService{Service: "exchange-rates", Err: err}
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return &domain.ErrExternalService{Service: "exchange-rates", Err: err}
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				c.logger.Warn("rates: non-2xx response",
					zap.String("base", base),
					zap.Int("status", resp.StatusCode),
				)
				return &domain.ErrExternalService{
					Service: "exchange-rates",
					Err:     fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
				}
			}

			var latest latestResponse
			if err := json.Unmarshal(body, &latest); err != nil {
				return &domain.ErrExternalService{
					Service: "exchange-rates",
					Err:     fmt.Errorf("failed to decode rates: %w", err),
				}
			}

			r, ok := latest.Rates[quote]
			if !ok {
				return &domain.ErrNotFound{Resource: "exchange rate", ID: fmt.Sprintf("%s/%s", base, quote)}
			}

			rate = r
			return nil
		})
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return 0, &domain.ErrCircuitOpen{Service: "exchange-rates"}
		}
		return 0, err
	}

	return rate, nil
}
