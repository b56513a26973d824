package apply

import (
	"time"

	"github.com/google/uuid"

	"github.com/opensase/upo/pkg/apply/target"
)

// Status of one target's apply attempt.
type Status string

const (
	// StatusApplied means every planned operation landed on the target.
	StatusApplied Status = "applied"

	// StatusDryRun means the plan was computed but nothing was sent.
	StatusDryRun Status = "dry-run-only"

	// StatusFailed means at least one operation failed; later operations on
	// the same target were not attempted.
	StatusFailed Status = "failed"
)

// OperationResult records the outcome of a single operation.
type OperationResult struct {
	Operation target.Operation `json:"operation"`
	Error     string           `json:"error,omitempty"`
}

// TargetResult is one target's section of the report. Skipped counts
// operations that were planned but never attempted because an earlier
// operation on the same target failed, or the run was cancelled.
type TargetResult struct {
	Target      string            `json:"target"`
	Status      Status            `json:"status"`
	Fingerprint string            `json:"fingerprint"`
	Applied     int               `json:"applied"`
	Failed      int               `json:"failed"`
	Skipped     int               `json:"skipped"`
	Operations  []OperationResult `json:"operations,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Report is the outcome of one apply run across all targets.
type Report struct {
	ID         string         `json:"id"`
	PolicyName string         `json:"policyName"`
	DryRun     bool           `json:"dryRun"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Results    []TargetResult `json:"results"`
}

// NewReport creates a report with a fresh run ID.
func NewReport(policyName string, dryRun bool) *Report {
	return &Report{
		ID:         uuid.NewString(),
		PolicyName: policyName,
		DryRun:     dryRun,
		StartedAt:  time.Now().UTC(),
	}
}

// Success reports whether every target either applied fully or was a dry run.
func (r *Report) Success() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Result returns the section for a target, or nil if absent.
func (r *Report) Result(targetName string) *TargetResult {
	for i := range r.Results {
		if r.Results[i].Target == targetName {
			return &r.Results[i]
		}
	}
	return nil
}
