package ingest

import (
	"strings"

	"crewlink/ingestion-service/internal/model"
)

// Dedupe collapses near-identical postings listed by more than one
// provider. The key is the exact lowercased title/company/location triple —
// no fuzzy matching, so a surviving duplicate is preferred over collapsing
// two distinct roles. First occurrence wins; fetch order controls which
// source's version survives.
func Dedupe(jobs []model.ExternalJob) []model.ExternalJob {
	seen := make(map[string]struct{}, len(jobs))
	out := make([]model.ExternalJob, 0, len(jobs))
	for _, job := range jobs {
		key := dedupeKey(job)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, job)
	}
	return out
}

func dedupeKey(job model.ExternalJob) string {
	return strings.ToLower(job.Title) + "_" + strings.ToLower(job.Company) + "_" + strings.ToLower(job.Location)
}
