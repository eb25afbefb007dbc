// Package httpprobe implements the URL liveness probe for the link health
// checker. Redirects are not followed: a 3xx answer means the host is alive,
// and is reported as-is.
package httpprobe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/krzemienski/awesome-site-sub002/internal/provider"
)

const userAgent = "awesome-site-linkcheck/1.0"

// Prober issues GET requests with a per-request timeout.
type Prober struct {
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a Prober.
func New(logger *slog.Logger) *Prober {
	return &Prober{
		httpClient: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: logger.With("adapter", "httpprobe"),
	}
}

// Fetch probes url and reports the status code, a timeout, or an error.
// The timeout applies per request on top of any deadline already in ctx.
func (p *Prober) Fetch(ctx context.Context, url string, timeout time.Duration) provider.ProbeResult {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return provider.ProbeResult{Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded)
		p.log.DebugContext(ctx, "probe failed",
			slog.String("url", url),
			slog.Bool("timeout", timedOut),
			slog.String("error", err.Error()),
		)
		return provider.ProbeResult{TimedOut: timedOut, Err: err}
	}
	defer resp.Body.Close()

	return provider.ProbeResult{StatusCode: resp.StatusCode}
}
