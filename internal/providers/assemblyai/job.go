package assemblyai

import "fmt"

// JobStatus is the lifecycle of a remote transcript job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "error"
)

// Terminal reports whether polling must stop.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

func (s JobStatus) rank() int {
	switch s {
	case JobQueued:
		return 0
	case JobProcessing:
		return 1
	case JobCompleted, JobFailed:
		return 2
	default:
		return -1
	}
}

// Job is the client-side view of a remote transcript job.
type Job struct {
	ID      string    `json:"id"`
	Status  JobStatus `json:"status"`
	Text    string    `json:"text,omitempty"`
	Summary string    `json:"summary,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// advance moves the job forward. Status never moves backwards and never
// leaves a terminal state.
func (j *Job) advance(next JobStatus) error {
	if next.rank() < 0 {
		return fmt.Errorf("transcript %s: unknown status %q", j.ID, next)
	}
	if j.Status.Terminal() && next != j.Status {
		return fmt.Errorf("transcript %s: status changed after %s to %s", j.ID, j.Status, next)
	}
	if next.rank() < j.Status.rank() {
		return fmt.Errorf("transcript %s: status regressed from %s to %s", j.ID, j.Status, next)
	}
	j.Status = next
	return nil
}

func toJob(resp transcriptResponse) (Job, error) {
	status := JobStatus(resp.Status)
	if status.rank() < 0 {
		return Job{}, fmt.Errorf("transcript %s: unknown status %q", resp.ID, resp.Status)
	}
	return Job{
		ID:      resp.ID,
		Status:  status,
		Text:    resp.Text,
		Summary: resp.Summary,
		Error:   resp.Error,
	}, nil
}
