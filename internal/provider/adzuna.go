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

const adzunaBaseURL = "https://api.adzuna.com/v1/api/jobs"

// AdzunaFetcher fetches job offers from the Adzuna public API. Credentials
// travel in the query string. If AppID or AppKey is empty, Fetch returns
// (nil, nil) — a provider is optional infrastructure, not a hard dependency.
type AdzunaFetcher struct {
	appID   string
	appKey  string
	country string // "gb", "fr", "us", …
	baseURL string
	client  *http.Client
	retry   RetryPolicy
	log     *zap.SugaredLogger
}

// NewAdzunaFetcher constructs a fetcher with its own HTTP client and
// per-attempt timeout.
func NewAdzunaFetcher(appID, appKey, country string, retry RetryPolicy, log *zap.SugaredLogger) *AdzunaFetcher {
	return &AdzunaFetcher{
		appID:   appID,
		appKey:  appKey,
		country: country,
		baseURL: adzunaBaseURL,
		client:  &http.Client{Timeout: httpTimeout},
		retry:   retry,
		log:     log,
	}
}

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

// adzunaResult mirrors a single Adzuna job listing.
type adzunaResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      adzunaCompany  `json:"company"`
	Location     adzunaLocation `json:"location"`
	SalaryMin    float64        `json:"salary_min"`
	SalaryMax    float64        `json:"salary_max"`
	RedirectURL  string         `json:"redirect_url"`
	Created      string         `json:"created"`
	ContractTime string         `json:"contract_time"`
	ContractType string         `json:"contract_type"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
}

// Name identifies the provider in logs, SyncResult counts and ID prefixes.
func (f *AdzunaFetcher) Name() string { return model.SourceAdzuna }

// Fetch retrieves and normalises offers matching query. Transient upstream
// failures (429, 5xx, network) are retried under the fetcher's policy;
// other 4xx responses fail fast.
func (f *AdzunaFetcher) Fetch(ctx context.Context, query model.SearchQuery) ([]model.ExternalJob, error) {
	if f.appID == "" || f.appKey == "" {
		f.log.Warnw("credentials not set, skipping provider", "provider", f.Name())
		return nil, nil
	}

	reqURL := f.buildSearchURL(query)

	var payload adzunaResponse
	attempt := 0
	err := f.retry.Do(ctx, func() error {
		attempt++
		if err := getJSON(ctx, f.client, reqURL, nil, &payload); err != nil {
			f.log.Warnw("fetch attempt failed", "provider", f.Name(), "attempt", attempt, "err", err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adzuna search: %w", err)
	}

	results := make([]model.ExternalJob, 0, len(payload.Results))
	for _, r := range payload.Results {
		results = append(results, f.normalise(r))
	}

	f.log.Infow("provider fetch complete", "provider", f.Name(), "count", len(results), "attempts", attempt)
	return results, nil
}

func (f *AdzunaFetcher) buildSearchURL(query model.SearchQuery) string {
	endpoint := fmt.Sprintf("%s/%s/search/1", f.baseURL, f.country)

	params := url.Values{}
	params.Set("app_id", f.appID)
	params.Set("app_key", f.appKey)
	params.Set("results_per_page", strconv.Itoa(query.MaxResults))
	params.Set("what", query.Keywords)
	params.Set("where", query.Location)
	params.Set("content-type", "application/json")
	params.Set("sort_by", "date")
	if query.MinSalary > 0 {
		params.Set("salary_min", strconv.Itoa(query.MinSalary))
	}

	return endpoint + "?" + params.Encode()
}

func (f *AdzunaFetcher) normalise(r adzunaResult) model.ExternalJob {
	return model.ExternalJob{
		ProviderID:     fmt.Sprintf("%s_%s", model.SourceAdzuna, r.ID),
		Title:          orPlaceholder(r.Title, model.PlaceholderNotSpecified),
		Company:        orPlaceholder(r.Company.DisplayName, model.PlaceholderNotSpecified),
		Location:       orPlaceholder(r.Location.DisplayName, model.PlaceholderLocationTBC),
		Description:    orPlaceholder(r.Description, model.PlaceholderNotSpecified),
		SalaryDisplay:  formatSalary(r.SalaryMin, r.SalaryMax),
		URL:            r.RedirectURL,
		PostedAt:       r.Created,
		Source:         model.SourceAdzuna,
		EmploymentType: adzunaEmploymentType(r.ContractTime, r.ContractType),
	}
}

// adzunaEmploymentType joins contract_time ("full_time") and contract_type
// ("permanent") into one readable label.
func adzunaEmploymentType(contractTime, contractType string) string {
	parts := make([]string, 0, 2)
	if contractTime != "" {
		parts = append(parts, strings.ReplaceAll(contractTime, "_", " "))
	}
	if contractType != "" {
		parts = append(parts, contractType)
	}
	return strings.Join(parts, ", ")
}
