package service

import (
	"context"
	"html"
	"time"

	"history-service/internal/domain"
	"history-service/internal/filter"
	"history-service/internal/repository"

	log "github.com/sirupsen/logrus"
)

// AccessControl decides whether an actor may read one specific entity
// instance. Implementations must not distinguish "missing" from "denied";
// the engine folds both into the same empty result.
type AccessControl interface {
	CanRead(ctx context.Context, actor *domain.Actor, entityType string, entityID int64) bool
}

// HistoryRequest is one page request against an entity's change history.
type HistoryRequest struct {
	EntityType string
	EntityID   int64
	Criteria   []filter.Criterion
	Sort       string
	Order      string
	Offset     int
	Limit      int
}

// DisplayRow is one surfaced history entry, ready for the transport layer.
// Change is already HTML-escaped: stored values may carry raw markup from
// legacy data and must never render live.
type DisplayRow struct {
	ID       int64
	DateMod  time.Time
	UserName string
	Field    string
	Change   string
}

type HistoryService struct {
	store    repository.ChangeEventStore
	users    repository.UserDirectory
	registry *domain.TypeRegistry
	access   AccessControl
	labels   map[string]string
}

func NewHistoryService(store repository.ChangeEventStore, users repository.UserDirectory, registry *domain.TypeRegistry, access AccessControl) *HistoryService {
	return &HistoryService{
		store:    store,
		users:    users,
		registry: registry,
		access:   access,
		labels:   DefaultFieldLabels(),
	}
}

// DefaultFieldLabels maps stable field keys onto display labels. Events
// keep the machine key; localization happens only here, at the render
// boundary.
func DefaultFieldLabels() map[string]string {
	return map[string]string{
		"name":     "Name",
		"serial":   "Serial number",
		"status":   "Status",
		"location": "Location",
		"comment":  "Comments",
		"contact":  "Contact",
	}
}

// GetHistory returns one page of an entity's change history.
//
// Validation, authorization and not-found failures all resolve to an empty
// but successful result: callers cannot probe for entity existence through
// this path. Only a storage fault returns an error, and even then the
// transport still answers the empty envelope.
func (s *HistoryService) GetHistory(ctx context.Context, actor *domain.Actor, req HistoryRequest) (int64, []DisplayRow, error) {
	if !s.registry.IsKnownType(req.EntityType) || req.EntityID <= 0 {
		return 0, nil, nil
	}

	entity, err := s.registry.Load(ctx, req.EntityType, req.EntityID)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"itemtype": req.EntityType,
			"items_id": req.EntityID,
		}).Error("Failed to resolve entity for history request")
		return 0, nil, err
	}
	if entity == nil || !s.access.CanRead(ctx, actor, req.EntityType, req.EntityID) {
		return 0, nil, nil
	}

	pred, dropped := filter.Compile(req.Criteria)
	if dropped > 0 {
		log.WithFields(log.Fields{
			"itemtype": req.EntityType,
			"items_id": req.EntityID,
			"dropped":  dropped,
		}).Debug("Dropped malformed filter criteria")
	}

	total, err := s.store.Count(ctx, req.EntityType, req.EntityID, pred)
	if err != nil {
		s.logStorageFault(req, pred, err)
		return 0, nil, err
	}
	if total == 0 {
		return 0, nil, nil
	}

	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	limit := req.Limit
	if limit < 1 {
		limit = 1
	}

	events, err := s.store.Fetch(ctx, req.EntityType, req.EntityID, pred, domain.NormalizeSort(req.Sort, req.Order), offset, limit)
	if err != nil {
		s.logStorageFault(req, pred, err)
		return 0, nil, err
	}

	// Hidden events stay in total: the count query ignores visibility, so a
	// page can legitimately hold fewer rows than total-offset suggests.
	rows := make([]DisplayRow, 0, len(events))
	for i := range events {
		event := &events[i]
		if !event.Kind.Visible() {
			continue
		}
		rows = append(rows, DisplayRow{
			ID:       event.ID,
			DateMod:  event.Timestamp,
			UserName: s.resolveUserName(ctx, event.ActorUserID),
			Field:    s.labelFor(event.FieldKey),
			Change:   html.EscapeString(event.ChangeText()),
		})
	}

	return total, rows, nil
}

func (s *HistoryService) labelFor(fieldKey string) string {
	if label, ok := s.labels[fieldKey]; ok {
		return label
	}
	return fieldKey
}

// resolveUserName degrades to an empty name when the directory cannot be
// reached: a missing actor name must not take the whole feed down.
func (s *HistoryService) resolveUserName(ctx context.Context, userID *int64) string {
	if userID == nil {
		return ""
	}
	name, err := s.users.DisplayName(ctx, *userID)
	if err != nil {
		log.WithError(err).WithField("user_id", *userID).Warn("Could not resolve actor display name")
		return ""
	}
	return name
}

func (s *HistoryService) logStorageFault(req HistoryRequest, pred filter.Predicate, err error) {
	log.WithError(err).WithFields(log.Fields{
		"itemtype": req.EntityType,
		"items_id": req.EntityID,
		"filters":  pred.Summary(),
	}).Error("Change event storage unavailable")
}
