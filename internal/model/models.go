// Package model defines shared data structures for the ingestion service.
package model

import "time"

// Provider source identifiers. Used as the prefix of every ExternalJob ID.
const (
	SourceReed   = "reed"
	SourceAdzuna = "adzuna"
)

// Placeholder values used when a provider omits a field, so downstream
// consumers never have to branch on empty strings.
const (
	PlaceholderNotSpecified = "Not specified"
	PlaceholderLocationTBC  = "Location TBC"
)

// ExternalJob is a job posting normalised from a provider-specific shape.
// ProviderID is "<source>_<nativeId>" and is the idempotency key for
// persistence: stable and unique per source, globally unique by prefixing.
type ExternalJob struct {
	ProviderID     string `json:"providerId"`
	Title          string `json:"title"`
	Company        string `json:"company"`
	Location       string `json:"location"`
	Description    string `json:"description"`
	SalaryDisplay  string `json:"salaryDisplay"` // human-readable; providers report ranges inconsistently
	URL            string `json:"postingUrl"`
	PostedAt       string `json:"postedAt"` // raw provider timestamp string, not always parseable
	Source         string `json:"source"`
	EmploymentType string `json:"employmentType,omitempty"`
}

// SearchQuery holds the per-provider request parameters for one sync cycle.
// Immutable for the duration of a run.
type SearchQuery struct {
	Keywords     string
	Location     string
	MaxResults   int
	MinSalary    int    // 0 = no filter
	ContractType string // optional, provider-specific free text
}

// SyncResult is the ephemeral report of one orchestration run.
type SyncResult struct {
	TotalFetched    int            `json:"totalFetched"`
	NewJobsAdded    int            `json:"newJobsAdded"`
	PerSourceCounts map[string]int `json:"perSourceCounts"`
	Errors          []string       `json:"errors"`
	Skipped         bool           `json:"skipped"` // another sync was already in flight
	StartedAt       time.Time      `json:"startedAt"`
	FinishedAt      time.Time      `json:"finishedAt"`
}
