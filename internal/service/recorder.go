package service

import (
	"context"
	"fmt"
	"time"

	"history-service/internal/domain"
	"history-service/internal/repository"

	log "github.com/sirupsen/logrus"
)

// EventPublisher fans recorded events out to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

// Recorder appends change events on behalf of sibling services. The
// publisher and registrar are optional: without a publisher events only
// land in the store, without a registrar actor names stay unresolved.
type Recorder struct {
	store     repository.ChangeEventStore
	registry  *domain.TypeRegistry
	users     repository.UserRegistrar
	publisher EventPublisher
}

func NewRecorder(store repository.ChangeEventStore, registry *domain.TypeRegistry, users repository.UserRegistrar, publisher EventPublisher) *Recorder {
	return &Recorder{store: store, registry: registry, users: users, publisher: publisher}
}

// Record validates and appends one event on behalf of actor. Publishing is
// best-effort: the stored row is the source of truth, a broker outage only
// logs a warning. The same goes for the actor's directory row.
func (r *Recorder) Record(ctx context.Context, actor *domain.Actor, event *domain.ChangeEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if !r.registry.IsKnownType(event.EntityType) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownEntityType, event.EntityType)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if r.users != nil && actor != nil && actor.UserID > 0 {
		if err := r.users.EnsureUser(ctx, actor); err != nil {
			log.WithError(err).WithField("user_id", actor.UserID).Warn("Could not ensure actor directory row")
		}
	}

	if err := r.store.Append(ctx, event); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"itemtype": event.EntityType,
			"items_id": event.EntityID,
		}).Error("Failed to record change event")
		return fmt.Errorf("failed to record change event: %w", err)
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, *event); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"itemtype": event.EntityType,
				"items_id": event.EntityID,
				"event_id": event.ID,
			}).Warn("Failed to publish recorded change event")
		}
	}

	log.WithFields(log.Fields{
		"itemtype": event.EntityType,
		"items_id": event.EntityID,
		"event_id": event.ID,
	}).Info("Change event recorded")

	return nil
}
