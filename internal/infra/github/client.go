// Package github provides a document store backed by the GitHub Contents
// API. The whole portfolio lives in a single JSON file inside a repository;
// the blob SHA of the file doubles as the optimistic-concurrency revision.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
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

var tracer = otel.Tracer("github")

const commitMessage = "Update investment data"

// Client stores the portfolio document in a GitHub repository file.
type Client struct {
	httpClient *http.Client
	baseURL    string
	owner      string
	repo       string
	branch     string
	filePath   string
	token      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates a GitHub Contents API client.
func NewClient(httpClient *http.Client, baseURL, owner, repo, branch, filePath, token string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		owner:      owner,
		repo:       repo,
		branch:     branch,
		filePath:   filePath,
		token:      token,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

// contentsResponse is the GET/PUT payload shape of the Contents API.
type contentsResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// doRequest executes an authenticated request against the Contents API and
// returns the raw status and body so callers can map 404/409 themselves.
func (c *Client) doRequest(ctx context.Context, method string, payload []byte) (int, []byte, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, c.owner, c.repo, c.filePath)
	if method == http.MethodGet && c.branch != "" {
		url = fmt.Sprintf("%s?ref=%s", url, c.branch)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		c.logger.Error("github: failed to create request",
			zap.String("method", method),
			zap.Error(err),
		)
		return 0, nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("Accept", "application/vnd.github+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("github: request failed",
			zap.String("method", method),
			zap.Error(err),
		)
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("github: failed to read response body",
			zap.String("method", method),
			zap.Error(err),
		)
		return resp.StatusCode, nil, err
	}

	c.logger.Debug("github: request done",
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
	)

	return resp.StatusCode, respBody, nil
}

// Fetch implements port.DocumentStore. It returns the decoded portfolio
// document and the blob SHA serving as the revision tag.
func (c *Client) Fetch(ctx context.Context) (*domain.Document, string, error) {
	ctx, span := tracer.Start(ctx, "GitHub.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("github.path", c.filePath))

	var doc *domain.Document
	var revision string

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			status, body, err := c.doRequest(ctx, http.MethodGet, nil)
			if err != nil {
				return &domain.ErrExternalService{Service: "github/contents", Err: err}
			}

			switch {
			case status == http.StatusNotFound:
				return &domain.ErrNotFound{Resource: "document", ID: c.filePath}
			case status < 200 || status >= 300:
				return &domain.ErrExternalService{
					Service: "github/contents",
					Err:     fmt.Errorf("status %d: %s", status, string(body)),
				}
			}

			var contents contentsResponse
			if err := json.Unmarshal(body, &contents); err != nil {
				return &domain.ErrExternalService{
					Service: "github/contents",
					Err:     fmt.Errorf("failed to decode contents response: %w", err),
				}
			}

			raw, err := decodeContent(contents)
			if err != nil {
				return &domain.ErrExternalService{Service: "github/contents", Err: err}
			}

			var d domain.Document
			if err := json.Unmarshal(raw, &d); err != nil {
				return &domain.ErrExternalService{
					Service: "github/contents",
					Err:     fmt.Errorf("failed to decode document: %w", err),
				}
			}
			d.Normalize()

			doc = &d
			revision = contents.SHA
			return nil
		})
	})
	if err != nil {
		return nil, "", translateBreakerErr("github/contents", err)
	}

	return doc, revision, nil
}

// Replace implements port.DocumentStore. An empty revision creates the file;
// a stale revision yields *domain.ErrConflict without retrying.
func (c *Client) Replace(ctx context.Context, doc *domain.Document, revision string) (string, error) {
	ctx, span := tracer.Start(ctx, "GitHub.Replace")
	defer span.End()
	span.SetAttributes(
		attribute.String("github.path", c.filePath),
		attribute.String("github.revision", revision),
	)

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	payload, err := json.Marshal(putRequest{
		Message: commitMessage,
		Content: base64.StdEncoding.EncodeToString(raw),
		SHA:     revision,
		Branch:  c.branch,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode put request: %w", err)
	}

	var newRevision string

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			status, body, err := c.doRequest(ctx, http.MethodPut, payload)
			if err != nil {
				return &domain.ErrExternalService{Service: "github/contents", Err: err}
			}

			switch {
			case status == http.StatusConflict:
				return &domain.ErrConflict{Resource: "document", Revision: revision}
			case status < 200 || status >= 300:
				return &domain.ErrExternalService{
					Service: "github/contents",
					Err:     fmt.Errorf("status %d: %s", status, string(body)),
				}
			}

			var put putResponse
			if err := json.Unmarshal(body, &put); err != nil {
				return &domain.ErrExternalService{
					Service: "github/contents",
					Err:     fmt.Errorf("failed to decode put response: %w", err),
				}
			}

			newRevision = put.Content.SHA
			return nil
		})
	})
	if err != nil {
		return "", translateBreakerErr("github/contents", err)
	}

	return newRevision, nil
}

// decodeContent decodes the base64 file body. The API wraps base64 at 60
// columns with literal newlines, which the std decoder rejects.
func decodeContent(contents contentsResponse) ([]byte, error) {
	if contents.Encoding != "" && contents.Encoding != "base64" {
		return nil, fmt.Errorf("unexpected content encoding %q", contents.Encoding)
	}
	cleaned := strings.ReplaceAll(contents.Content, "\n", "")
	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to decode file content: %w", err)
	}
	return raw, nil
}

// translateBreakerErr maps gobreaker sentinels onto domain errors.
func translateBreakerErr(service string, err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return &domain.ErrCircuitOpen{Service: service}
	}
	return err
}
