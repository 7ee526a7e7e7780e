// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"

	"facade_server/core/domain"
)

// MailClient is the authenticated mailbox the facade forwards to.
// Implementation: Gmail adapter.
type MailClient interface {
	ListMessages(ctx context.Context, query string, maxResults int64) ([]domain.MessageRef, error)
	GetMessage(ctx context.Context, id, format string) (*domain.Message, error)
	SendMessage(ctx context.Context, raw []byte, threadID string) (*domain.SendResult, error)
	ModifyLabels(ctx context.Context, id string, add, remove []string) (*domain.ModifyResult, error)

	LabelClient
}

// LabelClient is the part of the mailbox the label reconciler needs.
type LabelClient interface {
	ListLabels(ctx context.Context) ([]domain.Label, error)
	CreateLabel(ctx context.Context, name, listVisibility, messageVisibility string) (*domain.Label, error)
}

// MessageSender is the part of the mailbox the scheduler needs.
type MessageSender interface {
	SendMessage(ctx context.Context, raw []byte, threadID string) (*domain.SendResult, error)
}
