package repository

import (
	"context"
	"database/sql"
	"time"

	"history-service/internal/domain"

	log "github.com/sirupsen/logrus"
)

type postgresUserDirectory struct {
	db *sql.DB
}

func NewPostgresUserDirectory(db *sql.DB) *postgresUserDirectory {
	return &postgresUserDirectory{db: db}
}

// DisplayName resolves a user id to its display name. A missing row is not
// an error: legacy events may reference purged users, the feed just shows
// an empty name for them.
func (d *postgresUserDirectory) DisplayName(ctx context.Context, userID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var name string
	err := d.db.QueryRowContext(ctx, `SELECT name FROM users WHERE id = $1`, userID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Failed to resolve user display name")
		return "", unavailable("resolve user name", err)
	}

	return name, nil
}

// EnsureUser inserts a directory row if it is not present yet. Sibling
// services call this before recording events on behalf of a new user.
func (d *postgresUserDirectory) EnsureUser(ctx context.Context, user *domain.Actor) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO users (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := d.db.ExecContext(ctx, query, user.UserID, user.Name); err != nil {
		log.WithError(err).WithField("user_id", user.UserID).Error("Failed to ensure user directory row")
		return unavailable("ensure user", err)
	}

	return nil
}
