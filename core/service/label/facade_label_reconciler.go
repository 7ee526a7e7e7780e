// Package label finds or creates mailbox labels by name.
package label

import (
	"context"
	"errors"

	"facade_server/core/domain"
	"facade_server/core/port/out"
	"facade_server/pkg/apperr"
	"facade_server/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// Reconciler resolves a label name to the provider's label id, creating
// the label on first miss.
type Reconciler struct {
	client out.LabelClient

	// one list-and-create per name in flight
	flight singleflight.Group
}

func NewReconciler(client out.LabelClient) *Reconciler {
	return &Reconciler{client: client}
}

// EnsureLabel returns the id of the label named exactly name. The match is
// case-sensitive with no normalization. When no such label exists it is
// created with list and message visibility set to show.
//
// Concurrent calls for the same name in this process share one lookup.
// Labels created by other processes between our list and create are left
// to the provider.
func (r *Reconciler) EnsureLabel(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", apperr.LabelOperation(name, errors.New("label name is empty"))
	}

	// the shared lookup outlives any single caller; each provider call is
	// still bounded by the client's own timeout
	ch := r.flight.DoChan(name, func() (interface{}, error) {
		return r.ensure(context.WithoutCancel(ctx), name)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			logger.WithField("label", name).Debug("label lookup shared with a concurrent caller")
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", apperr.LabelOperation(name, ctx.Err())
	}
}

func (r *Reconciler) ensure(ctx context.Context, name string) (string, error) {
	labels, err := r.client.ListLabels(ctx)
	if err != nil {
		return "", apperr.LabelOperation(name, err)
	}
	if id, ok := findByName(labels, name); ok {
		return id, nil
	}

	created, err := r.client.CreateLabel(ctx, name, domain.LabelListShow, domain.MessageListShow)
	if err != nil {
		return "", apperr.LabelOperation(name, err)
	}
	if created == nil || created.ID == "" {
		return "", apperr.LabelOperation(name, errors.New("provider returned a label without an id"))
	}

	logger.WithFields(map[string]any{
		"label":    name,
		"label_id": created.ID,
	}).Info("created label")
	return created.ID, nil
}

func findByName(labels []domain.Label, name string) (string, bool) {
	for _, l := range labels {
		if l.Name == name {
			return l.ID, true
		}
	}
	return "", false
}
