package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"crewlink/ingestion-service/internal/model"
)

const reedBaseURL = "https://www.reed.co.uk/api/1.0/search"

// ReedFetcher fetches job offers from the Reed jobseeker API. Reed
// authenticates with the API key as the Basic-auth username and an empty
// password. An empty key disables the provider without error.
type ReedFetcher struct {
	apiKey  string
	baseURL string
	client  *http.Client
	retry   RetryPolicy
	log     *zap.SugaredLogger
}

// NewReedFetcher constructs a fetcher with its own HTTP client and
// per-attempt timeout.
func NewReedFetcher(apiKey string, retry RetryPolicy, log *zap.SugaredLogger) *ReedFetcher {
	return &ReedFetcher{
		apiKey:  apiKey,
		baseURL: reedBaseURL,
		client:  &http.Client{Timeout: httpTimeout},
		retry:   retry,
		log:     log,
	}
}

// reedResponse mirrors the top-level Reed JSON response.
type reedResponse struct {
	Results      []reedResult `json:"results"`
	TotalResults int          `json:"totalResults"`
}

// reedResult mirrors a single Reed job listing.
type reedResult struct {
	JobID          int64   `json:"jobId"`
	EmployerName   string  `json:"employerName"`
	JobTitle       string  `json:"jobTitle"`
	LocationName   string  `json:"locationName"`
	MinimumSalary  float64 `json:"minimumSalary"`
	MaximumSalary  float64 `json:"maximumSalary"`
	Date           string  `json:"date"`
	JobDescription string  `json:"jobDescription"`
	JobURL         string  `json:"jobUrl"`
}

// Name identifies the provider in logs, SyncResult counts and ID prefixes.
func (f *ReedFetcher) Name() string { return model.SourceReed }

// Fetch retrieves and normalises offers matching query under the fetcher's
// retry policy. Returns (nil, nil) when no API key is configured.
func (f *ReedFetcher) Fetch(ctx context.Context, query model.SearchQuery) ([]model.ExternalJob, error) {
	if f.apiKey == "" {
		f.log.Warnw("credentials not set, skipping provider", "provider", f.Name())
		return nil, nil
	}

	reqURL := f.buildSearchURL(query)
	auth := func(req *http.Request) { req.SetBasicAuth(f.apiKey, "") }

	var payload reedResponse
	attempt := 0
	err := f.retry.Do(ctx, func() error {
		attempt++
		if err := getJSON(ctx, f.client, reqURL, auth, &payload); err != nil {
			f.log.Warnw("fetch attempt failed", "provider", f.Name(), "attempt", attempt, "err", err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reed search: %w", err)
	}

	results := make([]model.ExternalJob, 0, len(payload.Results))
	for _, r := range payload.Results {
		results = append(results, f.normalise(r))
	}

	f.log.Infow("provider fetch complete", "provider", f.Name(), "count", len(results), "attempts", attempt)
	return results, nil
}

func (f *ReedFetcher) buildSearchURL(query model.SearchQuery) string {
	params := url.Values{}
	params.Set("keywords", query.Keywords)
	params.Set("locationName", query.Location)
	params.Set("resultsToTake", strconv.Itoa(query.MaxResults))
	if query.MinSalary > 0 {
		params.Set("minimumSalary", strconv.Itoa(query.MinSalary))
	}

	// Reed filters contract types with boolean flags rather than a value.
	switch strings.ToLower(query.ContractType) {
	case "permanent":
		params.Set("permanent", "true")
	case "contract":
		params.Set("contract", "true")
	case "temp", "temporary":
		params.Set("temp", "true")
	}

	return f.baseURL + "?" + params.Encode()
}

func (f *ReedFetcher) normalise(r reedResult) model.ExternalJob {
	return model.ExternalJob{
		ProviderID:    fmt.Sprintf("%s_%d", model.SourceReed, r.JobID),
		Title:         orPlaceholder(r.JobTitle, model.PlaceholderNotSpecified),
		Company:       orPlaceholder(r.EmployerName, model.PlaceholderNotSpecified),
		Location:      orPlaceholder(r.LocationName, model.PlaceholderLocationTBC),
		Description:   orPlaceholder(r.JobDescription, model.PlaceholderNotSpecified),
		SalaryDisplay: formatSalary(r.MinimumSalary, r.MaximumSalary),
		URL:           r.JobURL,
		PostedAt:      r.Date,
		Source:        model.SourceReed,
	}
}

var (
	_ Provider = (*ReedFetcher)(nil)
	_ Provider = (*AdzunaFetcher)(nil)
)
