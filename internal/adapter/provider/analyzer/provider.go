// Package analyzer implements the content-analysis capability against an
// HTTP analysis service. Responses are returned raw; caching is the caller's
// concern (see internal/service/analysis).
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/krzemienski/awesome-site-sub002/internal/config"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/internal/provider"
)

// Provider calls an external analysis API over HTTP.
type Provider struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a Provider from AnalyzerConfig.
func New(cfg config.AnalyzerConfig, logger *slog.Logger) *Provider {
	return &Provider{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.With("adapter", "analyzer"),
	}
}

type analyzeRequest struct {
	Model   string `json:"model"`
	Content string `json:"content"`
}

type analyzeResponse struct {
	Analysis   string `json:"analysis"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

// Analyze sends content to the analysis service and returns the structured result.
// 5xx responses and network errors are retried with backoff up to the configured
// maximum; failures are wrapped as domain.ExternalError.
func (p *Provider) Analyze(ctx context.Context, content string) (*provider.AnalysisResult, error) {
	body, err := json.Marshal(analyzeRequest{Model: p.model, Content: content})
	if err != nil {
		return nil, fmt.Errorf("analyzer: marshal request: %w", err)
	}

	resp, err := p.doWithRetry(ctx, body)
	if err != nil {
		p.log.ErrorContext(ctx, "analyze request failed", slog.String("error", err.Error()))
		return nil, &domain.ExternalError{Capability: "analyzer", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ExternalError{
			Capability: "analyzer",
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ExternalError{Capability: "analyzer", Err: fmt.Errorf("read body: %w", err)}
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &domain.ExternalError{Capability: "analyzer", Err: fmt.Errorf("decode json: %w", err)}
	}

	model := parsed.Model
	if model == "" {
		model = p.model
	}

	p.log.DebugContext(ctx, "analysis complete",
		slog.String("model", model),
		slog.Int("tokens", parsed.TokensUsed),
	)

	return &provider.AnalysisResult{
		Analysis:   parsed.Analysis,
		Model:      model,
		TokensUsed: parsed.TokensUsed,
	}, nil
}

// doWithRetry executes the request, retrying on 5xx or network errors with
// linear backoff. The request body is rebuilt per attempt.
func (p *Provider) doWithRetry(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
			p.log.WarnContext(ctx, "analyzer retry", slog.Int("attempt", attempt))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/analyze", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp.Body.Close()
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", p.maxRetries+1, lastErr)
}
