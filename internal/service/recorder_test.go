package service

import (
	"context"
	"errors"
	"testing"

	"history-service/internal/domain"
	"history-service/internal/filter"
	"history-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	events []domain.ChangeEvent
	err    error
}

func (p *capturingPublisher) Publish(ctx context.Context, event domain.ChangeEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func newRecorderFixture(pub EventPublisher) (*Recorder, *repository.MemoryEventStore, *repository.MemoryUserDirectory) {
	store := repository.NewMemoryEventStore()
	users := repository.NewMemoryUserDirectory()
	registry := domain.NewTypeRegistry()
	assets := repository.NewMemoryAssetRepository()
	registry.Register("Computer", assets.Loader("Computer"))
	return NewRecorder(store, registry, users, pub), store, users
}

func TestRecordRejectsInvalidEvents(t *testing.T) {
	recorder, _, _ := newRecorderFixture(nil)
	ctx := context.Background()

	err := recorder.Record(ctx, nil, &domain.ChangeEvent{EntityType: "", EntityID: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	err = recorder.Record(ctx, nil, &domain.ChangeEvent{EntityType: "Computer", EntityID: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	err = recorder.Record(ctx, nil, &domain.ChangeEvent{EntityType: "Spaceship", EntityID: 1})
	assert.ErrorIs(t, err, domain.ErrUnknownEntityType)
}

func TestRecordAppendsAndPublishes(t *testing.T) {
	pub := &capturingPublisher{}
	recorder, store, _ := newRecorderFixture(pub)
	ctx := context.Background()

	event := domain.ChangeEvent{
		EntityType: "Computer",
		EntityID:   42,
		FieldKey:   "status",
		OldValue:   "new",
		NewValue:   "used",
	}
	require.NoError(t, recorder.Record(ctx, nil, &event))

	assert.Positive(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())

	total, err := store.Count(ctx, "Computer", 42, filter.Predicate{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	require.Len(t, pub.events, 1)
	assert.Equal(t, event.ID, pub.events[0].ID)
}

func TestRecordSurvivesPublisherFailure(t *testing.T) {
	pub := &capturingPublisher{err: errors.New("broker down")}
	recorder, store, _ := newRecorderFixture(pub)
	ctx := context.Background()

	event := domain.ChangeEvent{EntityType: "Computer", EntityID: 42, FieldKey: "status"}
	require.NoError(t, recorder.Record(ctx, nil, &event), "publish failure must not fail the record")

	total, err := store.Count(ctx, "Computer", 42, filter.Predicate{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestRecordWithoutPublisher(t *testing.T) {
	recorder, store, _ := newRecorderFixture(nil)
	ctx := context.Background()

	event := domain.ChangeEvent{EntityType: "Computer", EntityID: 42, FieldKey: "status"}
	require.NoError(t, recorder.Record(ctx, nil, &event))

	total, err := store.Count(ctx, "Computer", 42, filter.Predicate{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

// Recording on behalf of an actor seeds their directory row, so the feed
// can resolve the name later. Known actors keep their existing row.
func TestRecordEnsuresActorDirectoryRow(t *testing.T) {
	recorder, _, users := newRecorderFixture(nil)
	ctx := context.Background()

	actorID := int64(5)
	actor := &domain.Actor{UserID: actorID, Name: "inventory-sync"}
	event := domain.ChangeEvent{EntityType: "Computer", EntityID: 42, ActorUserID: &actorID, FieldKey: "status"}
	require.NoError(t, recorder.Record(ctx, actor, &event))

	name, err := users.DisplayName(ctx, actorID)
	require.NoError(t, err)
	assert.Equal(t, "inventory-sync", name)

	renamed := &domain.Actor{UserID: actorID, Name: "something-else"}
	require.NoError(t, recorder.Record(ctx, renamed, &event))
	name, err = users.DisplayName(ctx, actorID)
	require.NoError(t, err)
	assert.Equal(t, "inventory-sync", name, "ensure never overwrites an existing row")
}
