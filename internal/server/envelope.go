package server

import (
	"history-service/internal/service"
)

// dateModLayout is the wire format of the date_mod row field.
const dateModLayout = "2006-01-02 15:04:05"

// Row is one serialized history entry. Every key is always present.
type Row struct {
	ID       int64  `json:"id"`
	DateMod  string `json:"date_mod"`
	UserName string `json:"user_name"`
	Field    string `json:"field"`
	Change   string `json:"change"`
}

// Envelope is the stable response shape of the history feed. Total is
// always numeric and rows always serializes as an array, never null, so
// every degraded path answers the byte-identical empty envelope.
type Envelope struct {
	Total int64 `json:"total"`
	Rows  []Row `json:"rows"`
}

func emptyEnvelope() Envelope {
	return Envelope{Total: 0, Rows: []Row{}}
}

func newEnvelope(total int64, rows []service.DisplayRow) Envelope {
	out := Envelope{Total: total, Rows: make([]Row, 0, len(rows))}
	for _, r := range rows {
		out.Rows = append(out.Rows, Row{
			ID:       r.ID,
			DateMod:  r.DateMod.UTC().Format(dateModLayout),
			UserName: r.UserName,
			Field:    r.Field,
			Change:   r.Change,
		})
	}
	return out
}
