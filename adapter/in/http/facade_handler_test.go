package http

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"facade_server/core/domain"
	"facade_server/core/port/in"
	"facade_server/infra/middleware"
	"facade_server/pkg/apperr"
	"facade_server/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/nalgeon/be"
	"github.com/redis/go-redis/v9"
)

type fakeMail struct {
	emails   []domain.EmailSummary
	err      error
	query    string
	max      int64
	reply    *in.ReplyRequest
	marked   [2]bool
	schedule *in.ScheduleRequest
}

func (f *fakeMail) Search(ctx context.Context, query string, maxResults int64) ([]domain.EmailSummary, error) {
	f.query, f.max = query, maxResults
	return f.emails, f.err
}

func (f *fakeMail) Reply(ctx context.Context, req *in.ReplyRequest) (*domain.SendResult, error) {
	f.reply = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.SendResult{ID: "sent-1", ThreadID: "t1"}, nil
}

func (f *fakeMail) Star(ctx context.Context, emailID string) (*domain.ModifyResult, error) {
	return f.modify(emailID)
}

func (f *fakeMail) Snooze(ctx context.Context, emailID string) (*domain.ModifyResult, error) {
	return f.modify(emailID)
}

func (f *fakeMail) Mark(ctx context.Context, emailID string, asRead, asImportant bool) (*domain.ModifyResult, error) {
	f.marked = [2]bool{asRead, asImportant}
	return f.modify(emailID)
}

func (f *fakeMail) modify(emailID string) (*domain.ModifyResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ModifyResult{ID: emailID, ThreadID: "t1"}, nil
}

func (f *fakeMail) Schedule(ctx context.Context, req *in.ScheduleRequest) (*in.ScheduleResult, error) {
	f.schedule = req
	if f.err != nil {
		return nil, f.err
	}
	return &in.ScheduleResult{
		Message: "Email scheduled to " + req.To + " at " + req.SendTime,
		Job:     domain.JobView{JobID: "42", State: domain.JobPending},
	}, nil
}

type fakeJobs struct {
	jobs []domain.JobView
	err  error
}

func (f *fakeJobs) GetJob(ctx context.Context, jobID string) (*domain.JobView, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, j := range f.jobs {
		if j.JobID == jobID {
			return &j, nil
		}
	}
	return nil, apperr.NotFound("scheduled job " + jobID)
}

func (f *fakeJobs) ListJobs(ctx context.Context) ([]domain.JobView, error) {
	return f.jobs, f.err
}

func (f *fakeJobs) CancelJob(ctx context.Context, jobID string) (*domain.JobView, error) {
	j, err := f.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	j.State = domain.JobCancelled
	return j, nil
}

func newTestApp(mail in.MailService, jobs in.ScheduleService) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(middleware.RequestID())
	NewMailHandler(mail).Register(app)
	NewScheduleHandler(jobs).Register(app)
	return app
}

func do(t *testing.T, app *fiber.App, method, target string, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	be.Err(t, err, nil)
	defer resp.Body.Close()

	out := map[string]any{}
	be.Err(t, json.NewDecoder(resp.Body).Decode(&out), nil)
	return resp.StatusCode, out
}

func TestHome(t *testing.T) {
	app := newTestApp(&fakeMail{}, &fakeJobs{})
	status, body := do(t, app, "GET", "/", "")
	be.Equal(t, status, 200)
	be.Equal[any](t, body["message"], "Welcome to Gmail Search GPT Backend")
}

func TestSearch(t *testing.T) {
	mail := &fakeMail{emails: []domain.EmailSummary{
		{ID: "m1", From: "a@x.com", Subject: "Hi", Body: "hello"},
	}}
	app := newTestApp(mail, &fakeJobs{})

	status, body := do(t, app, "GET", "/search?query=is%3Aunread&max_results=3", "")
	be.Equal(t, status, 200)
	be.Equal(t, mail.query, "is:unread")
	be.Equal(t, mail.max, int64(3))
	emails := body["emails"].([]any)
	be.Equal(t, len(emails), 1)
	be.Equal[any](t, emails[0].(map[string]any)["subject"], "Hi")

	// camelCase alias and trailing slash
	_, _ = do(t, app, "GET", "/search/?query=x&maxResults=7", "")
	be.Equal(t, mail.max, int64(7))
}

func TestSearch_Empty(t *testing.T) {
	app := newTestApp(&fakeMail{}, &fakeJobs{})
	status, body := do(t, app, "GET", "/search?query=nothing", "")
	be.Equal(t, status, 200)
	be.Equal[any](t, body["message"], "No emails found.")
	_, has := body["emails"]
	be.Equal(t, has, false)
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mail   *fakeMail
		target string
		detail string
	}{
		{"provider", &fakeMail{err: errors.New("quota exceeded")}, "/search?query=x", "Failed to search emails: quota exceeded"},
		{"bad max", &fakeMail{}, "/search?query=x&max_results=ten", `Failed to search emails: query parameter max_results must be an integer, got "ten"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, newTestApp(tt.mail, &fakeJobs{}), "GET", tt.target, "")
			be.Equal(t, status, 500)
			be.Equal[any](t, body["detail"], tt.detail)
		})
	}
}

func TestReply(t *testing.T) {
	mail := &fakeMail{}
	app := newTestApp(mail, &fakeJobs{})

	status, body := do(t, app, "POST", "/reply", `{"email_id":"m1","message_body":"thanks","cc":"c@x.com"}`)
	be.Equal(t, status, 200)
	be.Equal[any](t, body["message"], "Reply sent successfully")
	be.Equal[any](t, body["response"].(map[string]any)["id"], "sent-1")
	be.Equal(t, *mail.reply, in.ReplyRequest{EmailID: "m1", MessageBody: "thanks", Cc: "c@x.com"})
}

func TestReply_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mail   *fakeMail
		body   string
		detail string
	}{
		{"missing id", &fakeMail{}, `{"message_body":"x"}`, "Failed to send email reply: email_id is required"},
		{"provider", &fakeMail{err: apperr.ProviderRequest("messages.get", errors.New("not found"))}, `{"email_id":"m1"}`, "Failed to send email reply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, newTestApp(tt.mail, &fakeJobs{}), "POST", "/reply", tt.body)
			be.Equal(t, status, 500)
			be.True(t, strings.HasPrefix(body["detail"].(string), tt.detail))
		})
	}
}

func TestLabelEndpoints(t *testing.T) {
	tests := []struct {
		path    string
		message string
		failure string
	}{
		{"/star", "Email starred successfully", "Error starring email: "},
		{"/snooze", "Email snoozed successfully", "Error snoozing email: "},
		{"/mark", "Email updated successfully", "Error marking email: "},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := do(t, newTestApp(&fakeMail{}, &fakeJobs{}), "POST", tt.path+"?email_id=m1", "")
			be.Equal(t, status, 200)
			be.Equal[any](t, body["message"], tt.message)
			be.Equal[any](t, body["response"].(map[string]any)["id"], "m1")

			status, body = do(t, newTestApp(&fakeMail{err: errors.New("boom")}, &fakeJobs{}), "POST", tt.path+"?email_id=m1", "")
			be.Equal(t, status, 500)
			be.Equal[any](t, body["detail"], tt.failure+"boom")

			status, body = do(t, newTestApp(&fakeMail{}, &fakeJobs{}), "POST", tt.path, "")
			be.Equal(t, status, 500)
			be.Equal[any](t, body["detail"], tt.failure+"query parameter email_id is required")
		})
	}
}

func TestMark_Flags(t *testing.T) {
	tests := []struct {
		query string
		want  [2]bool
	}{
		{"", [2]bool{false, false}},
		{"&as_read=true", [2]bool{true, false}},
		{"&as_read=1&as_important=yes", [2]bool{true, true}},
		{"&as_read=False&as_important=on", [2]bool{false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			mail := &fakeMail{}
			status, _ := do(t, newTestApp(mail, &fakeJobs{}), "POST", "/mark?email_id=m1"+tt.query, "")
			be.Equal(t, status, 200)
			be.Equal(t, mail.marked, tt.want)
		})
	}

	status, body := do(t, newTestApp(&fakeMail{}, &fakeJobs{}), "POST", "/mark?email_id=m1&as_read=maybe", "")
	be.Equal(t, status, 500)
	be.Equal[any](t, body["detail"], `Error marking email: query parameter as_read must be a boolean, got "maybe"`)
}

func TestSchedule(t *testing.T) {
	mail := &fakeMail{}
	app := newTestApp(mail, &fakeJobs{})

	q := url.Values{}
	q.Set("to_email", "bob@x.com")
	q.Set("subject", "Later")
	q.Set("body", "see you")
	q.Set("send_time", "2030-01-02 09:30:00")
	q.Set("cc", "c@x.com")

	status, body := do(t, app, "POST", "/schedule?"+q.Encode(), "")
	be.Equal(t, status, 200)
	be.Equal[any](t, body["message"], "Email scheduled to bob@x.com at 2030-01-02 09:30:00")
	be.Equal[any](t, body["job_id"], "42")
	job := body["response"].(map[string]any)
	be.Equal[any](t, job["job_id"], "42")
	be.Equal[any](t, job["state"], "pending")
	be.Equal(t, *mail.schedule, in.ScheduleRequest{
		To: "bob@x.com", Subject: "Later", Body: "see you", SendTime: "2030-01-02 09:30:00", Cc: "c@x.com",
	})
}

func TestSchedule_Errors(t *testing.T) {
	invalid := apperr.InvalidSchedule("tomorrow", errors.New("bad layout"))
	tests := []struct {
		name   string
		mail   *fakeMail
		query  string
		detail string
	}{
		{"no recipient", &fakeMail{}, "send_time=2030-01-02+09%3A30%3A00", "Error scheduling email: query parameter to_email is required"},
		{"no time", &fakeMail{}, "to_email=b%40x.com", "Error scheduling email: query parameter send_time is required"},
		{"invalid time", &fakeMail{err: invalid}, "to_email=b%40x.com&send_time=tomorrow", "Error scheduling email: " + invalid.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, newTestApp(tt.mail, &fakeJobs{}), "POST", "/schedule?"+tt.query, "")
			be.Equal(t, status, 500)
			be.Equal[any](t, body["detail"], tt.detail)
		})
	}
}

func TestScheduleJobs(t *testing.T) {
	jobs := &fakeJobs{jobs: []domain.JobView{
		{JobID: "1", State: domain.JobPending, To: "a@x.com"},
		{JobID: "2", State: domain.JobSent, To: "b@x.com", MessageID: "sent-2"},
	}}
	app := newTestApp(&fakeMail{}, jobs)

	status, body := do(t, app, "GET", "/schedule", "")
	be.Equal(t, status, 200)
	be.Equal(t, len(body["jobs"].([]any)), 2)

	status, body = do(t, app, "GET", "/schedule/2", "")
	be.Equal(t, status, 200)
	be.Equal[any](t, body["state"], "sent")
	be.Equal[any](t, body["message_id"], "sent-2")

	status, body = do(t, app, "DELETE", "/schedule/1", "")
	be.Equal(t, status, 200)
	be.Equal[any](t, body["message"], "Scheduled email cancelled")
	be.Equal[any](t, body["response"].(map[string]any)["state"], "cancelled")

	status, body = do(t, app, "GET", "/schedule/9", "")
	be.Equal(t, status, 500)
	be.True(t, strings.HasPrefix(body["detail"].(string), "Error reading scheduled email: "))
}

type stubBreaker string

func (s stubBreaker) State() string { return string(s) }

type stubCounter map[domain.JobState]int

func (s stubCounter) Counts() map[domain.JobState]int { return s }

func TestHealth(t *testing.T) {
	app := fiber.New()
	NewHealthHandler(nil, nil, nil, nil).Register(app)

	status, body := do(t, app, "GET", "/health", "")
	be.Equal(t, status, 200)
	be.Equal[any](t, body["status"], "ok")
}

func TestReady(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := metrics.NewRegistry(16)
	reg.Observe("messages.send", 0, nil)
	jobs := stubCounter{domain.JobPending: 2, domain.JobSent: 1}

	app := fiber.New()
	NewHealthHandler(stubBreaker("closed"), reg, jobs, rdb).Register(app)

	status, body := do(t, app, "GET", "/ready", "")
	be.Equal(t, status, 200)
	be.Equal[any](t, body["status"], "ready")
	checks := body["checks"].(map[string]any)
	be.Equal[any](t, checks["redis"], "healthy")
	be.Equal[any](t, checks["gmail"], "healthy (closed)")
	be.Equal[any](t, body["scheduled_jobs"].(map[string]any)["pending"], float64(2))
	_, seen := body["latency"].(map[string]any)["messages.send"]
	be.True(t, seen)
	be.True(t, body["redis_pool"].(map[string]any)["total_conns"].(float64) >= 1)
}

func TestReady_Unhealthy(t *testing.T) {
	app := fiber.New()
	NewHealthHandler(stubBreaker("open"), nil, nil, nil).Register(app)

	status, body := do(t, app, "GET", "/ready", "")
	be.Equal(t, status, 503)
	be.Equal[any](t, body["status"], "not ready")
	be.Equal[any](t, body["checks"].(map[string]any)["gmail"], "unhealthy: circuit open")
}
