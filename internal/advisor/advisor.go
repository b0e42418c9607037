// Package advisor implements the optional language-model advisor
// client that renders structured reports as prose.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// maxResponseBytes bounds how much of an advisor reply is read.
const maxResponseBytes = 64 << 10

// HTTPAdvisor posts the structured report to an external endpoint and
// reads back a prose explanation.
type HTTPAdvisor struct {
	endpoint string
	client   *http.Client
}

// NewHTTP creates an advisor client for the configured endpoint.
func NewHTTP(cfg domain.AdvisorConfig) *HTTPAdvisor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPAdvisor{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type explainResponse struct {
	Explanation string `json:"explanation"`
}

// Explain sends the report and returns the rendered prose.
func (a *HTTPAdvisor) Explain(ctx context.Context, report *domain.Report) (string, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build advisor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("advisor call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("advisor returned status %d", resp.StatusCode)
	}

	var out explainResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode advisor response: %w", err)
	}
	return out.Explanation, nil
}

// Noop is an advisor that always declines, forcing the structured
// fallback. Used when no endpoint is configured.
type Noop struct{}

func (Noop) Explain(context.Context, *domain.Report) (string, error) {
	return "", nil
}
