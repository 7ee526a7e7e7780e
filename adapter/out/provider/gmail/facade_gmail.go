// Package gmail provides the Gmail API mail client.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"facade_server/core/domain"
	"facade_server/core/port/out"
	"facade_server/pkg/apperr"
	"facade_server/pkg/resilience"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Config holds Gmail client configuration.
type Config struct {
	TokenFile string
	User      string // "me" for the token's own mailbox
	Scopes    []string
	HTTP      *http.Client // transport under the oauth2 layer
}

// Client implements out.MailClient over the Gmail API. Every call runs
// under the guard's timeout and circuit breaker.
type Client struct {
	svc   *gmailapi.Service
	user  string
	guard *resilience.Guard
}

var _ out.MailClient = (*Client)(nil)

// New authenticates from the token file and builds one long-lived client.
func New(ctx context.Context, cfg Config, guard *resilience.Guard) (*Client, error) {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	base := cfg.HTTP
	if base == nil {
		base = http.DefaultClient
	}

	ts, err := LoadTokenSource(cfg.TokenFile, cfg.Scopes, base)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base.Transport},
		Timeout:   base.Timeout,
	}
	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, apperr.Authentication(fmt.Errorf("failed to create gmail service: %w", err))
	}
	return NewWithService(svc, cfg.User, guard), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gmailapi.Service, user string, guard *resilience.Guard) *Client {
	if user == "" {
		user = "me"
	}
	if guard == nil {
		guard = resilience.NewGuard(GuardConfig(resilience.DefaultGuardConfig("gmail-api").Timeout), nil)
	}
	return &Client{svc: svc, user: user, guard: guard}
}

// Profile returns the mailbox address, which also proves the credentials work.
func (c *Client) Profile(ctx context.Context) (string, error) {
	return resilience.Call(ctx, c.guard, "users.getProfile", func(ctx context.Context) (string, error) {
		p, err := c.svc.Users.GetProfile(c.user).Context(ctx).Do()
		if err != nil {
			return "", classify(err)
		}
		return p.EmailAddress, nil
	})
}

func (c *Client) ListMessages(ctx context.Context, query string, maxResults int64) ([]domain.MessageRef, error) {
	return resilience.Call(ctx, c.guard, "messages.list", func(ctx context.Context) ([]domain.MessageRef, error) {
		req := c.svc.Users.Messages.List(c.user)
		if query != "" {
			req = req.Q(query)
		}
		if maxResults > 0 {
			req = req.MaxResults(maxResults)
		}
		resp, err := req.Context(ctx).Do()
		if err != nil {
			return nil, classify(err)
		}

		refs := make([]domain.MessageRef, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			refs = append(refs, domain.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
		}
		return refs, nil
	})
}

func (c *Client) GetMessage(ctx context.Context, id, format string) (*domain.Message, error) {
	return resilience.Call(ctx, c.guard, "messages.get", func(ctx context.Context) (*domain.Message, error) {
		req := c.svc.Users.Messages.Get(c.user, id)
		if format != "" {
			req = req.Format(format)
		}
		msg, err := req.Context(ctx).Do()
		if err != nil {
			return nil, classify(err)
		}
		return convertMessage(msg), nil
	})
}

func (c *Client) SendMessage(ctx context.Context, raw []byte, threadID string) (*domain.SendResult, error) {
	return resilience.Call(ctx, c.guard, "messages.send", func(ctx context.Context) (*domain.SendResult, error) {
		msg := &gmailapi.Message{
			Raw:      base64.URLEncoding.EncodeToString(raw),
			ThreadId: threadID,
		}
		sent, err := c.svc.Users.Messages.Send(c.user, msg).Context(ctx).Do()
		if err != nil {
			return nil, classify(err)
		}
		return &domain.SendResult{ID: sent.Id, ThreadID: sent.ThreadId, LabelIDs: sent.LabelIds}, nil
	})
}

func (c *Client) ModifyLabels(ctx context.Context, id string, add, remove []string) (*domain.ModifyResult, error) {
	return resilience.Call(ctx, c.guard, "messages.modify", func(ctx context.Context) (*domain.ModifyResult, error) {
		msg, err := c.svc.Users.Messages.Modify(c.user, id, &gmailapi.ModifyMessageRequest{
			AddLabelIds:    add,
			RemoveLabelIds: remove,
		}).Context(ctx).Do()
		if err != nil {
			return nil, classify(err)
		}
		return &domain.ModifyResult{ID: msg.Id, ThreadID: msg.ThreadId, LabelIDs: msg.LabelIds}, nil
	})
}

func (c *Client) ListLabels(ctx context.Context) ([]domain.Label, error) {
	return resilience.Call(ctx, c.guard, "labels.list", func(ctx context.Context) ([]domain.Label, error) {
		resp, err := c.svc.Users.Labels.List(c.user).Context(ctx).Do()
		if err != nil {
			return nil, classify(err)
		}
		labels := make([]domain.Label, 0, len(resp.Labels))
		for _, l := range resp.Labels {
			labels = append(labels, domain.Label{ID: l.Id, Name: l.Name})
		}
		return labels, nil
	})
}

func (c *Client) CreateLabel(ctx context.Context, name, listVisibility, messageVisibility string) (*domain.Label, error) {
	return resilience.Call(ctx, c.guard, "labels.create", func(ctx context.Context) (*domain.Label, error) {
		l, err := c.svc.Users.Labels.Create(c.user, &gmailapi.Label{
			Name:                  name,
			LabelListVisibility:   listVisibility,
			MessageListVisibility: messageVisibility,
		}).Context(ctx).Do()
		if err != nil {
			return nil, classify(err)
		}
		return &domain.Label{ID: l.Id, Name: l.Name}, nil
	})
}

// GuardConfig returns the guard settings for Gmail calls with the given
// per-call timeout.
func GuardConfig(timeout time.Duration) resilience.GuardConfig {
	cfg := resilience.DefaultGuardConfig("gmail-api")
	cfg.Timeout = timeout
	cfg.Benign = IsRequestError
	return cfg
}

// IsRequestError reports a Gmail rejection of the request itself, such as
// an unknown message id or a malformed query, as opposed to a failure of
// the service.
func IsRequestError(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusNotFound
}

// classify turns credential failures into authentication errors. Everything
// else is left for the guard to wrap.
func classify(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return apperr.Authentication(err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return apperr.Authentication(err)
	}
	return err
}

func convertMessage(msg *gmailapi.Message) *domain.Message {
	m := &domain.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		LabelIDs: msg.LabelIds,
		Snippet:  msg.Snippet,
		Headers:  make(map[string]string),
	}
	if msg.Payload == nil {
		return m
	}
	for _, h := range msg.Payload.Headers {
		if _, seen := m.Headers[h.Name]; !seen {
			m.Headers[h.Name] = h.Value
		}
	}
	m.Payload = convertPart(msg.Payload)
	return m
}

func convertPart(p *gmailapi.MessagePart) *domain.MimePart {
	part := &domain.MimePart{MimeType: p.MimeType}
	if p.Body != nil && p.Body.Data != "" {
		part.Data = decodeBody(p.Body.Data)
	}
	for _, child := range p.Parts {
		if child != nil {
			part.Parts = append(part.Parts, convertPart(child))
		}
	}
	return part
}

// decodeBody decodes base64url body data, with or without padding.
// Undecodable data yields nil.
func decodeBody(data string) []byte {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return b
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return b
	}
	return nil
}
