package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"history-service/internal/access"
	"history-service/internal/domain"
	"history-service/internal/filter"
	"history-service/internal/service"
	"history-service/internal/session"

	log "github.com/sirupsen/logrus"

	"github.com/labstack/echo/v4"
)

// sessionTokenHeader carries the caller's opaque session token.
const sessionTokenHeader = "Session-Token"

type Server struct {
	history      *service.HistoryService
	recorder     *service.Recorder
	sessions     *session.Store
	db           *sql.DB
	defaultLimit int
}

func NewServer(history *service.HistoryService, recorder *service.Recorder, sessions *session.Store, db *sql.DB, defaultLimit int) *Server {
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	return &Server{
		history:      history,
		recorder:     recorder,
		sessions:     sessions,
		db:           db,
		defaultLimit: defaultLimit,
	}
}

func (s *Server) HealthCheck(c echo.Context) error {
	if err := s.db.Ping(); err != nil {
		log.WithField("error", err).Error("Health check failed: database is down")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database connection error",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) actorFromRequest(c echo.Context) *domain.Actor {
	token := c.Request().Header.Get(sessionTokenHeader)
	if token == "" {
		return nil
	}
	actor, ok := s.sessions.Resolve(token)
	if !ok {
		return nil
	}
	return actor
}

// GetLog serves one page of an entity's change history.
//
// The response is always HTTP 200 with a well-formed envelope. A missing
// session, a missing right, an unknown itemtype, a bad id and a storage
// fault all answer the same empty envelope: callers cannot distinguish
// "no history" from "not allowed" from "bad request".
func (s *Server) GetLog(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/json; charset=UTF-8")

	actor := s.actorFromRequest(c)
	if !actor.HasRight(access.RightReadLog) {
		return c.JSON(http.StatusOK, emptyEnvelope())
	}

	entityType := c.QueryParam("itemtype")
	entityID, _ := strconv.ParseInt(c.QueryParam("items_id"), 10, 64)

	limit := s.defaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil {
			limit = l
		}
	}
	if limit < 1 {
		limit = 1
	}

	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		if o, err := strconv.Atoi(raw); err == nil {
			offset = o
		}
	}
	if offset < 0 {
		offset = 0
	}

	req := service.HistoryRequest{
		EntityType: entityType,
		EntityID:   entityID,
		Criteria:   filter.DecodeCriteria(c.QueryParam("filters")),
		Sort:       c.QueryParam("sort"),
		Order:      c.QueryParam("order"),
		Offset:     offset,
		Limit:      limit,
	}

	ctx := c.Request().Context()
	total, rows, err := s.history.GetHistory(ctx, actor, req)
	if err != nil {
		// Already logged with context by the engine; the wire contract
		// still degrades to the empty envelope.
		return c.JSON(http.StatusOK, emptyEnvelope())
	}

	return c.JSON(http.StatusOK, newEnvelope(total, rows))
}

// CreateLogRequest is the body sibling services post to record a change.
type CreateLogRequest struct {
	EntityType string `json:"itemtype"`
	EntityID   int64  `json:"items_id"`
	UserID     *int64 `json:"user_id"`
	Kind       int16  `json:"kind"`
	Field      string `json:"field"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
	Summary    string `json:"summary"`
}

// CreateLog records one change event. Unlike the feed, writes follow the
// usual REST error semantics: the silent-empty contract binds reads only.
func (s *Server) CreateLog(c echo.Context) error {
	actor := s.actorFromRequest(c)
	if actor == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "session token required",
		})
	}
	if !actor.HasRight(access.RightWriteLog) {
		return c.JSON(http.StatusForbidden, map[string]string{
			"error": "missing log write right",
		})
	}

	var req CreateLogRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	event := domain.ChangeEvent{
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		ActorUserID: req.UserID,
		Kind:        domain.Kind(req.Kind),
		FieldKey:    req.Field,
		OldValue:    req.OldValue,
		NewValue:    req.NewValue,
		Summary:     req.Summary,
	}

	ctx := c.Request().Context()
	if err := s.recorder.Record(ctx, actor, &event); err != nil {
		if errors.Is(err, domain.ErrInvalidEvent) || errors.Is(err, domain.ErrUnknownEntityType) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
		log.WithError(err).WithFields(log.Fields{
			"itemtype": req.EntityType,
			"items_id": req.EntityID,
		}).Error("Failed to record change event")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}

	return c.JSON(http.StatusCreated, event)
}
