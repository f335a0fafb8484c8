// Package provider implements adapters for external job-search APIs.
// Each adapter owns its provider's auth, query construction and retry
// policy, and maps responses into the normalised model.ExternalJob shape.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"crewlink/ingestion-service/internal/model"
)

const (
	httpTimeout      = 15 * time.Second // per attempt, independent of backoff
	maxResponseBytes = 4 << 20
)

// Provider is an external job board adapter. Fetch returns normalised
// records or a provider-level error; it never panics. A provider with no
// credentials configured returns (nil, nil).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, query model.SearchQuery) ([]model.ExternalJob, error)
}

// getJSON performs one GET attempt and decodes the 2xx response into out.
// Transport errors, 429 and 5xx come back as plain (retryable) errors; any
// other non-2xx status and malformed payloads are marked permanent so the
// retry policy fails fast on them.
func getJSON(ctx context.Context, client *http.Client, reqURL string, auth func(*http.Request), out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if auth != nil {
		auth(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("json unmarshal: %w", err))
	}
	return nil
}

// orPlaceholder substitutes placeholder for blank provider fields.
func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

// formatSalary renders a provider salary range as display text. Both
// supported providers report UK listings, so amounts are shown in sterling.
func formatSalary(min, max float64) string {
	switch {
	case min > 0 && max > 0 && min != max:
		return fmt.Sprintf("£%s - £%s", formatAmount(min), formatAmount(max))
	case max > 0:
		return "£" + formatAmount(max)
	case min > 0:
		return "£" + formatAmount(min)
	default:
		return model.PlaceholderNotSpecified
	}
}

func formatAmount(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
