package server

import (
	"time"

	"github.com/samber/lo"

	"thoreinstein.com/repodash/pkg/discovery"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RepositoryResponse is one repository in the snapshot.
type RepositoryResponse struct {
	Path         string           `json:"path"`
	DisplayName  string           `json:"display_name"`
	Status       discovery.Status `json:"status"`
	StatusLabel  string           `json:"status_label"`
	Changes      int              `json:"changes"`
	Ahead        int              `json:"ahead"`
	ProbeError   string           `json:"probe_error,omitempty"`
	LastProbedAt *time.Time       `json:"last_probed_at,omitempty"`
}

// SummaryResponse counts repositories per status.
type SummaryResponse struct {
	Total  int            `json:"total"`
	Counts map[string]int `json:"counts"`
}

// ProbeRequest asks for one repository to be re-probed.
type ProbeRequest struct {
	Path string `json:"path" validate:"required"`
}

// ScanRequest starts a scan. Empty Roots scans the configured roots.
type ScanRequest struct {
	Roots []string `json:"roots" validate:"omitempty,dive,required"`
}

// ScanResponse acknowledges a started scan.
type ScanResponse struct {
	Roots []string `json:"roots"`
}

// ScanStatusResponse describes the active or most recent run.
type ScanStatusResponse struct {
	Running   bool       `json:"running"`
	RunID     string     `json:"run_id,omitempty"`
	Root      string     `json:"root,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Percent   int        `json:"percent"`
	Total     int        `json:"total"`
	Completed int        `json:"completed"`
}

func toResponse(rec discovery.Record) RepositoryResponse {
	resp := RepositoryResponse{
		Path:        rec.Path,
		DisplayName: rec.DisplayName,
		Status:      rec.Status(),
		StatusLabel: rec.Status().Label(),
		Changes:     rec.Changes,
		Ahead:       rec.Ahead,
		ProbeError:  rec.ProbeError,
	}
	if !rec.LastProbedAt.IsZero() {
		resp.LastProbedAt = lo.ToPtr(rec.LastProbedAt)
	}
	return resp
}

func toResponses(records []discovery.Record) []RepositoryResponse {
	return lo.Map(records, func(rec discovery.Record, _ int) RepositoryResponse {
		return toResponse(rec)
	})
}

func toSummary(counts map[discovery.Status]int) SummaryResponse {
	return SummaryResponse{
		Total: lo.Sum(lo.Values(counts)),
		Counts: lo.MapKeys(counts, func(_ int, status discovery.Status) string {
			return status.String()
		}),
	}
}
