package domain

// Actor is the authenticated caller of a history request, carried through
// the query engine instead of ambient session state.
type Actor struct {
	UserID int64
	Name   string
	Rights []string
}

// HasRight reports whether the actor holds the given right token.
func (a *Actor) HasRight(right string) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Rights {
		if r == right {
			return true
		}
	}
	return false
}
