package filter

// Projection names the single field a window fetch returns. Field may be a
// one-level relation path such as "user.firstName".
type Projection struct {
	Field string
}

// Order is the sort order of a window fetch.
type Order int

const (
	// OrderRecentFirst sorts by last update, then creation, newest first.
	OrderRecentFirst Order = iota
)
