package domain

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// JobState is the lifecycle state of a scheduled send.
type JobState string

const (
	JobPending   JobState = "pending"
	JobFired     JobState = "fired"
	JobSent      JobState = "sent"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// IsTerminal reports whether no further transition can happen.
func (s JobState) IsTerminal() bool {
	return s == JobSent || s == JobFailed || s == JobCancelled
}

var jobStates = [...]JobState{JobPending, JobFired, JobSent, JobFailed, JobCancelled}

func (s JobState) code() int32 {
	for i, v := range jobStates {
		if v == s {
			return int32(i)
		}
	}
	return 0
}

// ScheduledJob is one delayed send. Payload and FireAt never change after
// creation; state moves through atomic compare-and-set so a fire and a
// cancel cannot both win.
type ScheduledJob struct {
	ID        int64
	Seq       uint64
	Payload   SendRequest
	FireAt    time.Time
	CreatedAt time.Time

	state atomic.Int32

	mu         sync.RWMutex
	firedAt    time.Time
	finishedAt time.Time
	errMsg     string
	messageID  string
}

// NewScheduledJob creates a pending job.
func NewScheduledJob(id int64, payload SendRequest, fireAt, now time.Time) *ScheduledJob {
	return &ScheduledJob{
		ID:        id,
		Payload:   payload,
		FireAt:    fireAt,
		CreatedAt: now,
	}
}

func (j *ScheduledJob) State() JobState {
	return jobStates[j.state.Load()]
}

func (j *ScheduledJob) transition(from, to JobState) bool {
	return j.state.CompareAndSwap(from.code(), to.code())
}

// Fire moves pending to fired. It fails if the job was cancelled or already fired.
func (j *ScheduledJob) Fire(now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.transition(JobPending, JobFired) {
		return false
	}
	j.firedAt = now
	return true
}

// Cancel moves pending to cancelled.
func (j *ScheduledJob) Cancel(now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.transition(JobPending, JobCancelled) {
		return false
	}
	j.finishedAt = now
	return true
}

// MarkSent records a successful send of a fired job.
func (j *ScheduledJob) MarkSent(messageID string, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.transition(JobFired, JobSent) {
		return false
	}
	j.messageID = messageID
	j.finishedAt = now
	return true
}

// MarkFailed records a failed send of a fired job.
func (j *ScheduledJob) MarkFailed(err error, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.transition(JobFired, JobFailed) {
		return false
	}
	if err != nil {
		j.errMsg = err.Error()
	}
	j.finishedAt = now
	return true
}

// FinishedAt is zero until the job reaches a terminal state.
func (j *ScheduledJob) FinishedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.finishedAt
}

// JobView is a point-in-time copy of a job, safe to serialize.
type JobView struct {
	ID         int64       `json:"-"`
	JobID      string      `json:"job_id"`
	State      JobState    `json:"state"`
	To         string      `json:"to"`
	Subject    string      `json:"subject"`
	FireAt     time.Time   `json:"fire_at"`
	CreatedAt  time.Time   `json:"created_at"`
	FiredAt    *time.Time  `json:"fired_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	MessageID  string      `json:"message_id,omitempty"`
	Error      string      `json:"error,omitempty"`
	Payload    SendRequest `json:"-"`
}

// Snapshot copies the job's current fields.
func (j *ScheduledJob) Snapshot() JobView {
	j.mu.RLock()
	defer j.mu.RUnlock()

	v := JobView{
		ID:        j.ID,
		JobID:     strconv.FormatInt(j.ID, 10),
		State:     j.State(),
		To:        j.Payload.To,
		Subject:   j.Payload.Subject,
		FireAt:    j.FireAt,
		CreatedAt: j.CreatedAt,
		MessageID: j.messageID,
		Error:     j.errMsg,
		Payload:   j.Payload,
	}
	if !j.firedAt.IsZero() {
		t := j.firedAt
		v.FiredAt = &t
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		v.FinishedAt = &t
	}
	return v
}
