package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"history-service/internal/domain"
	"history-service/internal/filter"
)

// MemoryEventStore keeps events in process memory. It mirrors the Postgres
// store's contract (ordering, pagination, predicate semantics) and backs
// unit tests and local development.
type MemoryEventStore struct {
	mu     sync.RWMutex
	nextID int64
	events []domain.ChangeEvent
	nameOf filter.NameResolver
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{nextID: 1}
}

// UseNameResolver wires a directory lookup for user_name conditions.
// Without one those conditions never match, like an absent directory row.
func (s *MemoryEventStore) UseNameResolver(nameOf filter.NameResolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nameOf = nameOf
}

func (s *MemoryEventStore) Append(ctx context.Context, event *domain.ChangeEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.ID = s.nextID
	s.nextID++
	s.events = append(s.events, *event)
	return nil
}

func (s *MemoryEventStore) Count(ctx context.Context, entityType string, entityID int64, pred filter.Predicate) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for i := range s.events {
		if s.matches(&s.events[i], entityType, entityID, pred) {
			total++
		}
	}
	return total, nil
}

func (s *MemoryEventStore) Fetch(ctx context.Context, entityType string, entityID int64, pred filter.Predicate, sortSpec domain.Sort, offset, limit int) ([]domain.ChangeEvent, error) {
	s.mu.RLock()
	var matched []domain.ChangeEvent
	for i := range s.events {
		if s.matches(&s.events[i], entityType, entityID, pred) {
			matched = append(matched, s.events[i])
		}
	}
	s.mu.RUnlock()

	sortEvents(matched, sortSpec)

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryEventStore) matches(e *domain.ChangeEvent, entityType string, entityID int64, pred filter.Predicate) bool {
	return e.EntityType == entityType && e.EntityID == entityID && pred.Matches(e, s.nameOf)
}

func sortEvents(events []domain.ChangeEvent, spec domain.Sort) {
	desc := spec.Direction == domain.SortDesc
	sort.SliceStable(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		var less bool
		switch spec.Field {
		case domain.SortFieldDate:
			if a.Timestamp.Equal(b.Timestamp) {
				less = a.ID < b.ID
			} else {
				less = a.Timestamp.Before(b.Timestamp)
			}
		case domain.SortFieldField:
			if a.FieldKey == b.FieldKey {
				less = a.ID < b.ID
			} else {
				less = a.FieldKey < b.FieldKey
			}
		default:
			less = a.ID < b.ID
		}
		if desc {
			return !less
		}
		return less
	})
}

// MemoryUserDirectory resolves display names from a fixed map.
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	names map[int64]string
}

func NewMemoryUserDirectory() *MemoryUserDirectory {
	return &MemoryUserDirectory{names: make(map[int64]string)}
}

func (d *MemoryUserDirectory) Add(userID int64, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[userID] = name
}

func (d *MemoryUserDirectory) DisplayName(ctx context.Context, userID int64) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.names[userID], nil
}

// NameOf adapts the directory to a filter.NameResolver.
func (d *MemoryUserDirectory) NameOf(userID int64) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.names[userID]
}

// EnsureUser mirrors the Postgres directory's insert-if-absent contract:
// an existing row is never overwritten.
func (d *MemoryUserDirectory) EnsureUser(ctx context.Context, user *domain.Actor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.names[user.UserID]; !ok {
		d.names[user.UserID] = user.Name
	}
	return nil
}

// MemoryAssetRepository backs registry loaders in tests.
type MemoryAssetRepository struct {
	mu     sync.RWMutex
	assets map[string]map[int64]string
}

func NewMemoryAssetRepository() *MemoryAssetRepository {
	return &MemoryAssetRepository{assets: make(map[string]map[int64]string)}
}

func (r *MemoryAssetRepository) Add(entityType string, entityID int64, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assets[entityType] == nil {
		r.assets[entityType] = make(map[int64]string)
	}
	r.assets[entityType][entityID] = name
}

func (r *MemoryAssetRepository) Loader(entityType string) domain.EntityLoader {
	return func(ctx context.Context, id int64) (*domain.Entity, error) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		name, ok := r.assets[entityType][id]
		if !ok {
			return nil, nil
		}
		return &domain.Entity{Type: entityType, ID: id, Name: name}, nil
	}
}
