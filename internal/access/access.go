package access

import (
	"context"
	"strings"

	"history-service/internal/domain"
)

// Right tokens consumed by the history endpoints.
const (
	RightReadLog  = "log:read"
	RightWriteLog = "log:write"
	RightReadAll  = "read:*"
)

// ReadRight names the per-type read right, e.g. read:computer.
func ReadRight(entityType string) string {
	return "read:" + strings.ToLower(entityType)
}

// Policy grants entity reads from the actor's right set. It deliberately
// answers only yes or no: the query engine folds a denial into the same
// empty result as a missing entity.
type Policy struct{}

func NewPolicy() *Policy {
	return &Policy{}
}

func (p *Policy) CanRead(ctx context.Context, actor *domain.Actor, entityType string, entityID int64) bool {
	if actor == nil {
		return false
	}
	return actor.HasRight(RightReadAll) || actor.HasRight(ReadRight(entityType))
}
