// Package ingest coordinates a full ingestion cycle: classification,
// deduplication, caching and idempotent persistence of postings fetched
// from external providers.
package ingest

import (
	"strings"

	"crewlink/ingestion-service/internal/model"
)

// Classifier decides whether a normalised posting belongs to the target
// domain. Pure and stateless: keyword sets are configuration data fixed at
// construction.
//
// Decision rule over lowercase(title + " " + description):
// any exclude match drops the posting regardless of include matches, then
// any include match keeps it, and anything matching neither set is dropped.
type Classifier struct {
	include []string
	exclude []string
}

// NewClassifier builds a classifier from include/exclude keyword lists.
// Keywords are matched as lowercase substrings.
func NewClassifier(include, exclude []string) *Classifier {
	return &Classifier{
		include: lowerAll(include),
		exclude: lowerAll(exclude),
	}
}

// Include reports whether job should be surfaced.
func (c *Classifier) Include(job model.ExternalJob) bool {
	text := strings.ToLower(job.Title + " " + job.Description)

	for _, kw := range c.exclude {
		if kw != "" && strings.Contains(text, kw) {
			return false
		}
	}
	for _, kw := range c.include {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Filter returns the postings Include accepts, preserving order.
func (c *Classifier) Filter(jobs []model.ExternalJob) []model.ExternalJob {
	kept := make([]model.ExternalJob, 0, len(jobs))
	for _, job := range jobs {
		if c.Include(job) {
			kept = append(kept, job)
		}
	}
	return kept
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(strings.ToLower(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
