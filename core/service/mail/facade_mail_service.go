// Package mail implements the facade's mailbox operations on top of the
// mail client, the label reconciler and the delayed-send scheduler.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"facade_server/core/domain"
	"facade_server/core/port/in"
	"facade_server/core/port/out"
	"facade_server/core/service/schedule"
	"facade_server/pkg/apperr"
	"facade_server/pkg/logger"
	"facade_server/pkg/snowflake"
)

// LabelEnsurer resolves a label name to an id, creating it if needed.
type LabelEnsurer interface {
	EnsureLabel(ctx context.Context, name string) (string, error)
}

// JobScheduler is the delayed-send timeline.
type JobScheduler interface {
	Schedule(ctx context.Context, payload domain.SendRequest, fireAt time.Time) (*domain.ScheduledJob, error)
	Get(id int64) (*domain.ScheduledJob, error)
	List() []*domain.ScheduledJob
	Cancel(ctx context.Context, id int64) (*domain.ScheduledJob, error)
}

// ServiceConfig holds mail service configuration.
type ServiceConfig struct {
	SnoozeLabel  string
	SendLocation *time.Location // zone send_time is read in
	SearchMax    int64
}

// Service implements in.MailService and in.ScheduleService.
type Service struct {
	client    out.MailClient
	outbox    *Outbox
	labels    LabelEnsurer
	scheduler JobScheduler
	cfg       ServiceConfig
}

var (
	_ in.MailService     = (*Service)(nil)
	_ in.ScheduleService = (*Service)(nil)
)

func NewService(client out.MailClient, outbox *Outbox, labels LabelEnsurer, scheduler JobScheduler, cfg ServiceConfig) *Service {
	if cfg.SnoozeLabel == "" {
		cfg.SnoozeLabel = "Snoozed"
	}
	if cfg.SendLocation == nil {
		cfg.SendLocation = time.Local
	}
	if cfg.SearchMax <= 0 {
		cfg.SearchMax = domain.DefaultSearchMax
	}
	return &Service{
		client:    client,
		outbox:    outbox,
		labels:    labels,
		scheduler: scheduler,
		cfg:       cfg,
	}
}

// =============================================================================
// Search
// =============================================================================

// Search lists one page of matching messages and fetches each in full.
func (s *Service) Search(ctx context.Context, query string, maxResults int64) ([]domain.EmailSummary, error) {
	if maxResults <= 0 {
		maxResults = s.cfg.SearchMax
	}

	refs, err := s.client.ListMessages(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	emails := make([]domain.EmailSummary, 0, len(refs))
	for _, ref := range refs {
		msg, err := s.client.GetMessage(ctx, ref.ID, domain.FormatFull)
		if err != nil {
			return nil, err
		}
		emails = append(emails, summarize(ref.ID, msg))
	}
	return emails, nil
}

func summarize(id string, msg *domain.Message) domain.EmailSummary {
	body, ok := msg.Payload.PlainText()
	if !ok {
		body = domain.NoContent
	}
	return domain.EmailSummary{
		ID:      id,
		From:    msg.Header("From"),
		To:      msg.Header("To"),
		Subject: msg.Header("Subject"),
		Body:    body,
	}
}

// =============================================================================
// Reply
// =============================================================================

// Reply answers the sender of an existing message on the same thread.
func (s *Service) Reply(ctx context.Context, req *in.ReplyRequest) (*domain.SendResult, error) {
	if req == nil || req.EmailID == "" {
		return nil, apperr.ProviderRequest("messages.get", errors.New("email_id is required"))
	}

	orig, err := s.client.GetMessage(ctx, req.EmailID, domain.FormatMetadata)
	if err != nil {
		return nil, err
	}

	to := orig.Header("From")
	if to == "" {
		return nil, apperr.ProviderRequest("messages.send", fmt.Errorf("message %s has no From header to reply to", req.EmailID))
	}
	subject := orig.Header("Subject")
	if subject == "" {
		subject = domain.NoSubject
	}
	ref := orig.Header("Message-ID")
	if ref == "" {
		ref = req.EmailID
	}

	return s.outbox.Send(ctx, domain.SendRequest{
		To:         to,
		Subject:    "Re: " + subject,
		Body:       req.MessageBody,
		Cc:         req.Cc,
		Bcc:        req.Bcc,
		ThreadID:   orig.ThreadID,
		InReplyTo:  ref,
		References: ref,
	})
}

// =============================================================================
// Label mutations
// =============================================================================

func (s *Service) Star(ctx context.Context, emailID string) (*domain.ModifyResult, error) {
	return s.client.ModifyLabels(ctx, emailID, []string{domain.LabelStarred}, nil)
}

// Snooze tags the message with the snooze label, creating the label first
// if the mailbox has none. The two steps are not atomic.
func (s *Service) Snooze(ctx context.Context, emailID string) (*domain.ModifyResult, error) {
	labelID, err := s.labels.EnsureLabel(ctx, s.cfg.SnoozeLabel)
	if err != nil {
		return nil, err
	}
	return s.client.ModifyLabels(ctx, emailID, []string{labelID}, nil)
}

// Mark sets read state and optionally flags the message important.
// asRead=false marks the message unread.
func (s *Service) Mark(ctx context.Context, emailID string, asRead, asImportant bool) (*domain.ModifyResult, error) {
	var add, remove []string
	if asRead {
		remove = append(remove, domain.LabelUnread)
	} else {
		add = append(add, domain.LabelUnread)
	}
	if asImportant {
		add = append(add, domain.LabelImportant)
	}
	return s.client.ModifyLabels(ctx, emailID, add, remove)
}

// =============================================================================
// Delayed send
// =============================================================================

// ParseSendTime reads YYYY-MM-DD HH:MM:SS in loc.
func ParseSendTime(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(domain.SendTimeLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, apperr.InvalidSchedule(value, err)
	}
	return t, nil
}

// Schedule registers a delayed send. Success means the job is on the
// timeline; the send itself may still fail later.
func (s *Service) Schedule(ctx context.Context, req *in.ScheduleRequest) (*in.ScheduleResult, error) {
	fireAt, err := ParseSendTime(req.SendTime, s.cfg.SendLocation)
	if err != nil {
		return nil, err
	}

	job, err := s.scheduler.Schedule(ctx, domain.SendRequest{
		To:      req.To,
		Subject: req.Subject,
		Body:    req.Body,
		Cc:      req.Cc,
		Bcc:     req.Bcc,
	}, fireAt)
	if err != nil {
		return nil, apperr.InternalWithError(err)
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"job_id":  job.ID,
		"fire_at": fireAt,
	}).Info("email to %s scheduled", req.To)

	return &in.ScheduleResult{
		Message: fmt.Sprintf("Email scheduled to %s at %s", req.To, fireAt.Format(domain.SendTimeLayout)),
		Job:     job.Snapshot(),
	}, nil
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*domain.JobView, error) {
	id, err := snowflake.Parse(jobID)
	if err != nil {
		return nil, apperr.NotFound("scheduled job " + jobID)
	}
	job, err := s.scheduler.Get(id)
	if err != nil {
		return nil, jobError(jobID, err)
	}
	v := job.Snapshot()
	return &v, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]domain.JobView, error) {
	jobs := s.scheduler.List()
	views := make([]domain.JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, job.Snapshot())
	}
	return views, nil
}

func (s *Service) CancelJob(ctx context.Context, jobID string) (*domain.JobView, error) {
	id, err := snowflake.Parse(jobID)
	if err != nil {
		return nil, apperr.NotFound("scheduled job " + jobID)
	}
	job, err := s.scheduler.Cancel(ctx, id)
	if err != nil {
		return nil, jobError(jobID, err)
	}
	v := job.Snapshot()
	return &v, nil
}

func jobError(jobID string, err error) error {
	switch {
	case errors.Is(err, schedule.ErrJobNotFound):
		return apperr.NotFound("scheduled job " + jobID)
	case errors.Is(err, schedule.ErrJobNotPending):
		return apperr.Conflict("scheduled job "+jobID+" cannot be cancelled", err)
	default:
		return apperr.InternalWithError(err)
	}
}
