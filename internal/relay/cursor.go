package relay

// Cursor is an opaque position in a paged iteration over the pending entries.
// The zero value is the start of an iteration. The exhausted state is a separate
// flag, so a backend whose wire protocol reuses one token for both "start" and
// "end" (Redis uses 0) cannot make a finished scan look like a fresh one.
type Cursor struct {
	token     string
	exhausted bool
}

// StartCursor begins a new iteration.
var StartCursor = Cursor{}

// ExhaustedCursor is returned with the last page of an iteration.
var ExhaustedCursor = Cursor{exhausted: true}

// CursorAt wraps a backend specific position. Backends must return ExhaustedCursor
// rather than their own representation of "done".
func CursorAt(token string) Cursor {
	return Cursor{token: token}
}

// Token returns the backend specific position, empty for StartCursor.
func (c Cursor) Token() string {
	return c.token
}

// IsStart reports whether the cursor begins an iteration.
func (c Cursor) IsStart() bool {
	return !c.exhausted && c.token == ""
}

// Exhausted reports whether the iteration has no more pages.
func (c Cursor) Exhausted() bool {
	return c.exhausted
}

// Page is a single batch returned by QueueStore.ScanPage.
type Page struct {
	Entries []PendingEntry
	Next    Cursor
}
