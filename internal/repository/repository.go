package repository

import (
	"context"

	"history-service/internal/domain"
	"history-service/internal/filter"
)

// ChangeEventStore is the append-only log of recorded mutations.
//
// Count and Fetch operate over the same logical set: for a fixed predicate
// and sort, paging through Fetch yields exactly Count events, each once,
// as long as the underlying set is unchanged. Callers normalize bounds:
// offset >= 0, limit >= 1.
type ChangeEventStore interface {
	Append(ctx context.Context, event *domain.ChangeEvent) error
	Count(ctx context.Context, entityType string, entityID int64, pred filter.Predicate) (int64, error)
	Fetch(ctx context.Context, entityType string, entityID int64, pred filter.Predicate, sort domain.Sort, offset, limit int) ([]domain.ChangeEvent, error)
}

// UserDirectory resolves actor ids to display names at read time.
// An unknown id resolves to an empty name, not an error.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID int64) (string, error)
}

// UserRegistrar records directory rows for actors seen on the write path,
// so their names resolve in the feed later. Existing rows are left alone.
type UserRegistrar interface {
	EnsureUser(ctx context.Context, user *domain.Actor) error
}
