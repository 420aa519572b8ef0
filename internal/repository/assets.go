package repository

import (
	"context"
	"database/sql"
	"time"

	"history-service/internal/domain"

	log "github.com/sirupsen/logrus"
)

// postgresAssetRepository backs the type registry: trackable business
// objects live in a shared assets table keyed by (itemtype, items_id).
type postgresAssetRepository struct {
	db *sql.DB
}

func NewPostgresAssetRepository(db *sql.DB) *postgresAssetRepository {
	return &postgresAssetRepository{db: db}
}

func (r *postgresAssetRepository) Get(ctx context.Context, entityType string, entityID int64) (*domain.Entity, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var entity domain.Entity
	query := `SELECT itemtype, items_id, name FROM assets WHERE itemtype = $1 AND items_id = $2`

	err := r.db.QueryRowContext(ctx, query, entityType, entityID).Scan(
		&entity.Type,
		&entity.ID,
		&entity.Name,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"itemtype": entityType,
			"items_id": entityID,
		}).Error("Failed to load asset")
		return nil, unavailable("load asset", err)
	}

	return &entity, nil
}

// Loader adapts the repository into a registry loader for one type tag.
func (r *postgresAssetRepository) Loader(entityType string) domain.EntityLoader {
	return func(ctx context.Context, id int64) (*domain.Entity, error) {
		return r.Get(ctx, entityType, id)
	}
}
