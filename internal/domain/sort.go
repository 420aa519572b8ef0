package domain

import "strings"

// SortDirection represents ordering direction for sortable columns.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortField enumerates the columns a history listing can be sorted by.
type SortField string

const (
	SortFieldID    SortField = "id"
	SortFieldDate  SortField = "date_mod"
	SortFieldField SortField = "field"
)

// Sort captures ordering preferences for history listings.
type Sort struct {
	Field     SortField
	Direction SortDirection
}

// DefaultSort orders by insertion: id ascending is a monotonic proxy for
// mutation time.
func DefaultSort() Sort {
	return Sort{Field: SortFieldID, Direction: SortAsc}
}

// NormalizeSort maps raw sort/order tokens onto a supported Sort.
// Unrecognized or empty tokens fall back to the default ordering rather
// than failing the request.
func NormalizeSort(field, order string) Sort {
	s := DefaultSort()
	switch SortField(strings.ToLower(strings.TrimSpace(field))) {
	case SortFieldID:
		s.Field = SortFieldID
	case SortFieldDate:
		s.Field = SortFieldDate
	case SortFieldField:
		s.Field = SortFieldField
	default:
		return s
	}
	if strings.EqualFold(strings.TrimSpace(order), string(SortDesc)) {
		s.Direction = SortDesc
	}
	return s
}
