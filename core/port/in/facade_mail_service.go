package in

import (
	"context"

	"facade_server/core/domain"
)

// MailService is what the HTTP facade calls.
type MailService interface {
	Search(ctx context.Context, query string, maxResults int64) ([]domain.EmailSummary, error)
	Reply(ctx context.Context, req *ReplyRequest) (*domain.SendResult, error)
	Star(ctx context.Context, emailID string) (*domain.ModifyResult, error)
	Snooze(ctx context.Context, emailID string) (*domain.ModifyResult, error)
	Mark(ctx context.Context, emailID string, asRead, asImportant bool) (*domain.ModifyResult, error)
	Schedule(ctx context.Context, req *ScheduleRequest) (*ScheduleResult, error)
}

// ScheduleService exposes the delayed-send timeline.
type ScheduleService interface {
	GetJob(ctx context.Context, jobID string) (*domain.JobView, error)
	ListJobs(ctx context.Context) ([]domain.JobView, error)
	CancelJob(ctx context.Context, jobID string) (*domain.JobView, error)
}

type ReplyRequest struct {
	EmailID     string `json:"email_id"`
	MessageBody string `json:"message_body"`
	Cc          string `json:"cc,omitempty"`
	Bcc         string `json:"bcc,omitempty"`
}

type ScheduleRequest struct {
	To       string `json:"to_email"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	SendTime string `json:"send_time"` // YYYY-MM-DD HH:MM:SS
	Cc       string `json:"cc,omitempty"`
	Bcc      string `json:"bcc,omitempty"`
}

type ScheduleResult struct {
	Message string         `json:"message"`
	Job     domain.JobView `json:"-"`
}
