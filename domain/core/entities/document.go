package entities

import "regexp"

// ReconcilePolicy decides how an ingested document is applied to the graph.
type ReconcilePolicy int

const (
	// PolicyCreateOrUpdate upserts the node by (category, id, namespace).
	PolicyCreateOrUpdate ReconcilePolicy = iota
	// PolicyMatchOnly enriches an existing node but never creates one; the
	// owning subsystem is the only writer allowed to create these nodes.
	PolicyMatchOnly
)

// Document represents one externally authored document in an ingest batch.
type Document struct {
	ID          string                 `json:"id" validate:"required"`
	Category    string                 `json:"category" validate:"required"`
	Title       string                 `json:"title"`
	Content     string                 `json:"content"`
	SourcePath  string                 `json:"sourcePath,omitempty"`
	ContentHash string                 `json:"contentHash,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// CategoryPolicies is the static category→policy dispatch table. Adding a
// category is a data change here, not a code change in the pipeline. Epics and
// Sprints are created by the planning subsystem, so documents may only enrich
// them.
var CategoryPolicies = map[string]ReconcilePolicy{
	"Epic":    PolicyMatchOnly,
	"Sprint":  PolicyMatchOnly,
	"ADR":     PolicyCreateOrUpdate,
	"Pattern": PolicyCreateOrUpdate,
	"Doc":     PolicyCreateOrUpdate,
}

// PolicyFor returns the reconcile policy for a category. Unknown categories
// default to create-or-update.
func PolicyFor(category string) ReconcilePolicy {
	if p, ok := CategoryPolicies[category]; ok {
		return p
	}
	return PolicyCreateOrUpdate
}

// canonicalIDPatterns holds the advisory id-format patterns for hierarchical
// planning categories. Non-conforming ids are processed anyway; the check only
// produces a warning.
var canonicalIDPatterns = map[string]*regexp.Regexp{
	"Epic":   regexp.MustCompile(`^EPIC-[0-9]+$`),
	"Sprint": regexp.MustCompile(`^SPRINT-[0-9]+$`),
}

// CheckCanonicalID reports whether the document id conforms to its category's
// canonical format. Categories without a pattern always conform.
func CheckCanonicalID(category, id string) bool {
	pattern, ok := canonicalIDPatterns[category]
	if !ok {
		return true
	}
	return pattern.MatchString(id)
}

// IngestResult summarizes one document-reconciliation job.
type IngestResult struct {
	Uploaded int      `json:"uploaded"`
	Parsed   int      `json:"parsed"`
	Embedded int      `json:"embedded"`
	Total    int      `json:"total"`
	Warnings []string `json:"warnings"`
}
