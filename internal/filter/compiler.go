package filter

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"history-service/internal/domain"

	log "github.com/sirupsen/logrus"
)

// Criterion is one decoded client filter fragment. The client sends these
// as a JSON array in the `filters` query parameter.
type Criterion struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

// Field names a filterable column of the history feed.
type Field string

const (
	FieldID       Field = "id"
	FieldDate     Field = "date_mod"
	FieldUserName Field = "user_name"
	FieldField    Field = "field"
	FieldChange   Field = "change"
)

// Op is a filter operator. Valid pairings are checked at compile time,
// an unsupported pairing drops the criterion.
type Op string

const (
	OpEquals   Op = "equals"
	OpContains Op = "contains"
	OpAfter    Op = "after"
	OpBefore   Op = "before"
)

// Condition is one compiled, typed predicate clause. Values are typed here
// so stores bind them as data, never as query text.
type Condition struct {
	Field Field
	Op    Op
	Text  string
	Time  time.Time
	ID    int64
}

// Predicate is the conjunction of compiled conditions. The zero value
// matches every event.
type Predicate struct {
	Conditions []Condition
}

// MatchAll reports whether the predicate is the identity element.
func (p Predicate) MatchAll() bool {
	return len(p.Conditions) == 0
}

// NameResolver maps an actor id to a display name for user_name
// conditions. Events store the actor id only; the name lives in the
// user directory.
type NameResolver func(userID int64) string

// Matches evaluates the predicate against a single event. Used by the
// in-memory store; the Postgres store translates conditions to SQL.
// A nil resolver makes every user_name condition a miss, matching the
// SQL translation when the directory row is absent.
func (p Predicate) Matches(e *domain.ChangeEvent, nameOf NameResolver) bool {
	for _, c := range p.Conditions {
		if !c.matches(e, nameOf) {
			return false
		}
	}
	return true
}

func (c Condition) matches(e *domain.ChangeEvent, nameOf NameResolver) bool {
	switch c.Field {
	case FieldID:
		return e.ID == c.ID
	case FieldDate:
		if c.Op == OpAfter {
			return e.Timestamp.After(c.Time)
		}
		return e.Timestamp.Before(c.Time)
	case FieldUserName:
		if e.ActorUserID == nil || nameOf == nil {
			return false
		}
		name := nameOf(*e.ActorUserID)
		if c.Op == OpEquals {
			return name == c.Text
		}
		return name != "" && containsFold(name, c.Text)
	case FieldField:
		if c.Op == OpEquals {
			return e.FieldKey == c.Text
		}
		return containsFold(e.FieldKey, c.Text)
	case FieldChange:
		return containsFold(e.ChangeText(), c.Text)
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Summary renders a compact predicate description for operator logs.
func (p Predicate) Summary() string {
	if p.MatchAll() {
		return "none"
	}
	parts := make([]string, 0, len(p.Conditions))
	for _, c := range p.Conditions {
		parts = append(parts, string(c.Field)+" "+string(c.Op))
	}
	return strings.Join(parts, ",")
}

// Timestamp layouts accepted in date criteria, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Compile turns client criteria into a predicate. Compiling an empty or nil
// slice yields the match-all predicate, equivalent to omitting filtering.
// Malformed criteria are dropped rather than failing the whole request;
// the dropped count is returned for observability.
func Compile(criteria []Criterion) (Predicate, int) {
	var pred Predicate
	dropped := 0
	for _, crit := range criteria {
		cond, ok := compileOne(crit)
		if !ok {
			dropped++
			log.WithFields(log.Fields{
				"field": crit.Field,
				"op":    crit.Op,
			}).Debug("Dropping malformed filter criterion")
			continue
		}
		pred.Conditions = append(pred.Conditions, cond)
	}
	return pred, dropped
}

func compileOne(crit Criterion) (Condition, bool) {
	field := Field(strings.ToLower(strings.TrimSpace(crit.Field)))
	op := Op(strings.ToLower(strings.TrimSpace(crit.Op)))
	value := crit.Value

	switch field {
	case FieldID:
		if op != OpEquals {
			return Condition{}, false
		}
		id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || id <= 0 {
			return Condition{}, false
		}
		return Condition{Field: field, Op: op, ID: id}, true

	case FieldDate:
		if op != OpAfter && op != OpBefore {
			return Condition{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
				return Condition{Field: field, Op: op, Time: t}, true
			}
		}
		return Condition{}, false

	case FieldUserName, FieldField:
		if op != OpEquals && op != OpContains {
			return Condition{}, false
		}
		if value == "" {
			return Condition{}, false
		}
		return Condition{Field: field, Op: op, Text: value}, true

	case FieldChange:
		if op != OpContains || value == "" {
			return Condition{}, false
		}
		return Condition{Field: field, Op: op, Text: value}, true
	}

	return Condition{}, false
}

// DecodeCriteria parses the raw `filters` query parameter. Anything that is
// not a JSON array of criteria degrades to no filters.
func DecodeCriteria(raw string) []Criterion {
	if raw == "" {
		return nil
	}
	var criteria []Criterion
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
		log.WithError(err).Debug("Ignoring undecodable filters parameter")
		return nil
	}
	return criteria
}
