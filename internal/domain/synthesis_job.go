package domain

import "time"

// SynthesisJobStatus represents the state of a synthesis job.
type SynthesisJobStatus string

const (
	SynthesisJobPending   SynthesisJobStatus = "pending"
	SynthesisJobRunning   SynthesisJobStatus = "running"
	SynthesisJobCompleted SynthesisJobStatus = "completed"
	SynthesisJobFailed    SynthesisJobStatus = "failed"
)

// SynthesisJob is the background unit of work that voices one manuscript.
// Exactly one job exists per synthesized book.
type SynthesisJob struct {
	ID     string `json:"id"`
	BookID string `json:"book_id"`
	Voice  string `json:"voice"`

	// Progress in chapters; ChaptersTotal is known once the job is running.
	ChaptersDone  int `json:"chapters_done"`
	ChaptersTotal int `json:"chapters_total"`

	Status SynthesisJobStatus `json:"status"`
	Error  string             `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsFinished reports whether the job reached a terminal state.
func (j *SynthesisJob) IsFinished() bool {
	return j.Status == SynthesisJobCompleted || j.Status == SynthesisJobFailed
}

// MarkRunning transitions the job to running state.
func (j *SynthesisJob) MarkRunning(chapters int) {
	j.Status = SynthesisJobRunning
	now := time.Now()
	j.StartedAt = &now
	j.ChaptersDone = 0
	j.ChaptersTotal = chapters
}

// MarkCompleted transitions the job to completed state.
func (j *SynthesisJob) MarkCompleted() {
	j.Status = SynthesisJobCompleted
	j.ChaptersDone = j.ChaptersTotal
	now := time.Now()
	j.CompletedAt = &now
}

// MarkFailed transitions the job to failed state with an error message.
func (j *SynthesisJob) MarkFailed(err string) {
	j.Status = SynthesisJobFailed
	j.Error = err
	now := time.Now()
	j.CompletedAt = &now
}

// SetProgress records completed chapters, clamped to [0, total].
func (j *SynthesisJob) SetProgress(done, total int) {
	if total > 0 {
		j.ChaptersTotal = total
	}
	if done < 0 {
		done = 0
	}
	if done > j.ChaptersTotal {
		done = j.ChaptersTotal
	}
	j.ChaptersDone = done
}

// Percent returns progress as 0-100.
func (j *SynthesisJob) Percent() int {
	if j.Status == SynthesisJobCompleted {
		return 100
	}
	if j.ChaptersTotal == 0 {
		return 0
	}
	return j.ChaptersDone * 100 / j.ChaptersTotal
}
