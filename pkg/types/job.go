package types

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of an analysis job. Transitions move
// strictly forward: queued -> analyzing -> completed|failed.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusAnalyzing JobStatus = "analyzing"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

var jobStatusRank = map[JobStatus]int{
	JobStatusQueued:    0,
	JobStatusAnalyzing: 1,
	JobStatusCompleted: 2,
	JobStatusFailed:    2,
}

// ValidateJobTransition rejects backward or unknown status moves. A
// same-status update is allowed so a terminal job's result can be refreshed.
func ValidateJobTransition(from, to JobStatus) error {
	fromRank, ok := jobStatusRank[from]
	if !ok {
		return fmt.Errorf("unknown job status %q", from)
	}
	toRank, ok := jobStatusRank[to]
	if !ok {
		return fmt.Errorf("unknown job status %q", to)
	}
	if from == to {
		return nil
	}
	if toRank <= fromRank {
		return fmt.Errorf("job status cannot move from %q to %q", from, to)
	}
	return nil
}

// Job is one unit of asynchronous orchestration work. Result, when present,
// holds the full orchestration envelope (or a failure payload).
type Job struct {
	ID        string                 `json:"job_id"`
	Entity    string                 `json:"entity"`
	Status    JobStatus              `json:"status"`
	Result    map[string]interface{} `json:"result,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// OrchestrationEnvelope is the aggregate response of one orchestration run.
// AggregatedSummary is reserved for future cross-agent synthesis and is
// always empty today.
type OrchestrationEnvelope struct {
	OrchestrationID   string                 `json:"orchestration_id"`
	Entity            string                 `json:"entity"`
	Timestamp         time.Time              `json:"timestamp"`
	Context           *ContextSnapshot       `json:"context,omitempty"`
	Results           map[string]interface{} `json:"results"`
	AggregatedSummary map[string]interface{} `json:"aggregated_summary"`
	Errors            map[string]string      `json:"errors"`
	SuccessCount      int                    `json:"success_count"`
	ErrorCount        int                    `json:"error_count"`
}
