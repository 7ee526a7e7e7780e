package mail

import (
	"context"
	"time"

	"facade_server/core/domain"
	"facade_server/core/port/out"
	"facade_server/pkg/apperr"
)

// Outbox composes and sends messages. The scheduler and replies share it.
type Outbox struct {
	client out.MessageSender
	clock  func() time.Time
}

func NewOutbox(client out.MessageSender) *Outbox {
	return &Outbox{client: client, clock: time.Now}
}

// Send builds req and sends it, on req.ThreadID when set.
func (o *Outbox) Send(ctx context.Context, req domain.SendRequest) (*domain.SendResult, error) {
	raw, err := BuildMessage(req, o.clock())
	if err != nil {
		return nil, apperr.InternalWithError(err)
	}
	return o.client.SendMessage(ctx, raw, req.ThreadID)
}
