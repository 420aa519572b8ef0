package repository

import (
	"context"
	"testing"
	"time"

	"history-service/internal/domain"
	"history-service/internal/filter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvents(t *testing.T, store *MemoryEventStore, entityType string, entityID int64, n int) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		event := domain.ChangeEvent{
			EntityType: entityType,
			EntityID:   entityID,
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
			FieldKey:   "status",
			OldValue:   "old",
			NewValue:   "new",
		}
		require.NoError(t, store.Append(context.Background(), &event))
	}
}

func TestMemoryStoreAppendAssignsMonotonicIDs(t *testing.T) {
	store := NewMemoryEventStore()
	ctx := context.Background()

	first := domain.ChangeEvent{EntityType: "Computer", EntityID: 1}
	second := domain.ChangeEvent{EntityType: "Computer", EntityID: 1}
	require.NoError(t, store.Append(ctx, &first))
	require.NoError(t, store.Append(ctx, &second))

	assert.Greater(t, second.ID, first.ID)
	assert.False(t, first.Timestamp.IsZero(), "missing timestamp defaults to now")
}

func TestMemoryStoreAppendRejectsInvalidTarget(t *testing.T) {
	store := NewMemoryEventStore()
	ctx := context.Background()

	err := store.Append(ctx, &domain.ChangeEvent{EntityType: "", EntityID: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	err = store.Append(ctx, &domain.ChangeEvent{EntityType: "Computer", EntityID: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestMemoryStoreCountScopesToEntity(t *testing.T) {
	store := NewMemoryEventStore()
	seedEvents(t, store, "Computer", 7, 4)
	seedEvents(t, store, "Computer", 8, 2)
	seedEvents(t, store, "Ticket", 7, 3)

	total, err := store.Count(context.Background(), "Computer", 7, filter.Predicate{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
}

// Paging through a fixed predicate and sort must yield exactly count
// events, each once, in order.
func TestMemoryStorePaginationCoverage(t *testing.T) {
	store := NewMemoryEventStore()
	seedEvents(t, store, "Computer", 7, 23)
	seedEvents(t, store, "Ticket", 9, 5)
	ctx := context.Background()

	total, err := store.Count(ctx, "Computer", 7, filter.Predicate{})
	require.NoError(t, err)
	require.EqualValues(t, 23, total)

	const pageSize = 5
	seen := make(map[int64]bool)
	var lastID int64
	for offset := 0; ; offset += pageSize {
		page, err := store.Fetch(ctx, "Computer", 7, filter.Predicate{}, domain.DefaultSort(), offset, pageSize)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, event := range page {
			assert.False(t, seen[event.ID], "event %d appeared twice", event.ID)
			seen[event.ID] = true
			assert.Greater(t, event.ID, lastID, "default order is ascending id")
			lastID = event.ID
		}
	}

	assert.Len(t, seen, 23)
}

func TestMemoryStoreFetchSortsByDateDesc(t *testing.T) {
	store := NewMemoryEventStore()
	seedEvents(t, store, "Computer", 7, 5)

	page, err := store.Fetch(context.Background(), "Computer", 7, filter.Predicate{},
		domain.NormalizeSort("date_mod", "desc"), 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 5)

	for i := 1; i < len(page); i++ {
		assert.False(t, page[i].Timestamp.After(page[i-1].Timestamp))
	}
}

func TestMemoryStoreFetchBeyondEndIsEmpty(t *testing.T) {
	store := NewMemoryEventStore()
	seedEvents(t, store, "Computer", 7, 3)

	page, err := store.Fetch(context.Background(), "Computer", 7, filter.Predicate{}, domain.DefaultSort(), 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryStoreFetchAppliesPredicate(t *testing.T) {
	store := NewMemoryEventStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, &domain.ChangeEvent{
		EntityType: "Computer", EntityID: 7, FieldKey: "status", OldValue: "new", NewValue: "broken",
	}))
	require.NoError(t, store.Append(ctx, &domain.ChangeEvent{
		EntityType: "Computer", EntityID: 7, FieldKey: "location", OldValue: "A", NewValue: "B",
	}))

	pred, dropped := filter.Compile([]filter.Criterion{{Field: "field", Op: "equals", Value: "status"}})
	require.Zero(t, dropped)

	total, err := store.Count(ctx, "Computer", 7, pred)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	page, err := store.Fetch(ctx, "Computer", 7, pred, domain.DefaultSort(), 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "status", page[0].FieldKey)
}

func TestMemoryStoreFiltersByUserName(t *testing.T) {
	store := NewMemoryEventStore()
	users := NewMemoryUserDirectory()
	store.UseNameResolver(users.NameOf)
	ctx := context.Background()

	users.Add(1, "Glenda Runciter")
	users.Add(2, "Joe Chip")

	for _, actorID := range []int64{1, 2} {
		id := actorID
		require.NoError(t, store.Append(ctx, &domain.ChangeEvent{
			EntityType: "Computer", EntityID: 7, ActorUserID: &id, FieldKey: "status",
		}))
	}
	// System change with no actor, invisible to user_name filters.
	require.NoError(t, store.Append(ctx, &domain.ChangeEvent{
		EntityType: "Computer", EntityID: 7, FieldKey: "status",
	}))

	pred, dropped := filter.Compile([]filter.Criterion{{Field: "user_name", Op: "contains", Value: "glenda"}})
	require.Zero(t, dropped)

	total, err := store.Count(ctx, "Computer", 7, pred)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	page, err := store.Fetch(ctx, "Computer", 7, pred, domain.DefaultSort(), 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.NotNil(t, page[0].ActorUserID)
	assert.EqualValues(t, 1, *page[0].ActorUserID)
}
