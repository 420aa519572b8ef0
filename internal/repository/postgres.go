package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"history-service/internal/domain"
	"history-service/internal/filter"

	log "github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
)

type postgresEventStore struct {
	db *sql.DB
}

func NewPostgresEventStore(db *sql.DB) *postgresEventStore {
	return &postgresEventStore{db: db}
}

// unavailable wraps a driver failure so callers can match the storage
// sentinel with errors.Is while keeping the underlying message.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStorageUnavailable, err)
}

func (s *postgresEventStore) Append(ctx context.Context, event *domain.ChangeEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := event.Validate(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO change_events (itemtype, items_id, date_mod, user_id, kind, field, old_value, new_value, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var userID sql.NullInt64
	if event.ActorUserID != nil {
		userID = sql.NullInt64{Int64: *event.ActorUserID, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, query,
		event.EntityType,
		event.EntityID,
		event.Timestamp,
		userID,
		event.Kind,
		event.FieldKey,
		event.OldValue,
		event.NewValue,
		event.Summary,
	).Scan(&event.ID)

	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"itemtype": event.EntityType,
			"items_id": event.EntityID,
		}).Error("Failed to append change event")
		return unavailable("append change event", err)
	}

	return nil
}

func (s *postgresEventStore) Count(ctx context.Context, entityType string, entityID int64, pred filter.Predicate) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	where, args := buildPredicate(entityType, entityID, pred)
	query := "SELECT COUNT(*) FROM change_events WHERE " + where

	var total int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"itemtype": entityType,
			"items_id": entityID,
		}).Error("Failed to count change events")
		return 0, unavailable("count change events", err)
	}

	return total, nil
}

func (s *postgresEventStore) Fetch(ctx context.Context, entityType string, entityID int64, pred filter.Predicate, sort domain.Sort, offset, limit int) ([]domain.ChangeEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	where, args := buildPredicate(entityType, entityID, pred)

	var query strings.Builder
	query.WriteString(`SELECT id, itemtype, items_id, date_mod, user_id, kind, field, old_value, new_value, summary
	                   FROM change_events
	                   WHERE `)
	query.WriteString(where)
	query.WriteString(" ORDER BY ")
	query.WriteString(orderClause(sort))
	query.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2))
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"itemtype": entityType,
			"items_id": entityID,
		}).Error("Failed to fetch change events")
		return nil, unavailable("fetch change events", err)
	}
	defer rows.Close()

	var events []domain.ChangeEvent
	for rows.Next() {
		var event domain.ChangeEvent
		var userID sql.NullInt64

		err := rows.Scan(
			&event.ID,
			&event.EntityType,
			&event.EntityID,
			&event.Timestamp,
			&userID,
			&event.Kind,
			&event.FieldKey,
			&event.OldValue,
			&event.NewValue,
			&event.Summary,
		)
		if err != nil {
			log.WithError(err).Error("Failed to scan change event row")
			return nil, unavailable("scan change event", err)
		}

		if userID.Valid {
			event.ActorUserID = &userID.Int64
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		log.WithError(err).Error("Error iterating over change event rows")
		return nil, unavailable("iterate change events", err)
	}

	return events, nil
}

// buildPredicate renders the WHERE clause for a target entity plus compiled
// conditions. Every value is bound through a placeholder; condition values
// never reach the query text.
func buildPredicate(entityType string, entityID int64, pred filter.Predicate) (string, []interface{}) {
	conds := []string{"itemtype = $1", "items_id = $2"}
	args := []interface{}{entityType, entityID}
	argPos := 3

	for _, c := range pred.Conditions {
		switch c.Field {
		case filter.FieldID:
			conds = append(conds, fmt.Sprintf("id = $%d", argPos))
			args = append(args, c.ID)
			argPos++
		case filter.FieldDate:
			cmp := ">"
			if c.Op == filter.OpBefore {
				cmp = "<"
			}
			conds = append(conds, fmt.Sprintf("date_mod %s $%d", cmp, argPos))
			args = append(args, c.Time)
			argPos++
		case filter.FieldUserName:
			// Names live in the directory, not on the event row. NULL
			// user_id never matches, same as the in-memory evaluation.
			if c.Op == filter.OpEquals {
				conds = append(conds, fmt.Sprintf("user_id IN (SELECT id FROM users WHERE name = $%d)", argPos))
				args = append(args, c.Text)
			} else {
				conds = append(conds, fmt.Sprintf("user_id IN (SELECT id FROM users WHERE name ILIKE $%d)", argPos))
				args = append(args, likePattern(c.Text))
			}
			argPos++
		case filter.FieldField:
			if c.Op == filter.OpEquals {
				conds = append(conds, fmt.Sprintf("field = $%d", argPos))
				args = append(args, c.Text)
			} else {
				conds = append(conds, fmt.Sprintf("field ILIKE $%d", argPos))
				args = append(args, likePattern(c.Text))
			}
			argPos++
		case filter.FieldChange:
			conds = append(conds, fmt.Sprintf("(old_value ILIKE $%d OR new_value ILIKE $%d OR summary ILIKE $%d)", argPos, argPos+1, argPos+2))
			pattern := likePattern(c.Text)
			args = append(args, pattern, pattern, pattern)
			argPos += 3
		}
	}

	return strings.Join(conds, " AND "), args
}

// likePattern escapes LIKE metacharacters so the value matches literally.
func likePattern(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `%`, `\%`)
	value = strings.ReplaceAll(value, `_`, `\_`)
	return "%" + value + "%"
}

// orderClause maps the sort spec onto whitelisted columns. Sort fields are
// an enum, not client input, so the clause is safe by construction.
func orderClause(sort domain.Sort) string {
	column := "id"
	switch sort.Field {
	case domain.SortFieldDate:
		column = "date_mod"
	case domain.SortFieldField:
		column = "field"
	}
	direction := "ASC"
	if sort.Direction == domain.SortDesc {
		direction = "DESC"
	}
	if column == "id" {
		return "id " + direction
	}
	// Secondary id ordering keeps pagination stable on ties.
	return fmt.Sprintf("%s %s, id %s", column, direction, direction)
}
