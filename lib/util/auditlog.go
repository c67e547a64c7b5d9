package util

// AuditLog is a bounded append log with a cursor.
//
// The cursor points to the entry that reflects the current state. Back and Forward
// move the cursor (undo/redo). Push after a Back truncates every entry beyond the
// cursor before appending, so a fresh write always discards the redo history.
// When the log grows beyond its limit the oldest entries are dropped.
type AuditLog[T any] struct {
	entries []T
	cursor  int
	limit   int
}

// NewAuditLog creates a log holding at most limit entries (limit <= 0 means unbounded)
func NewAuditLog[T any](limit int) *AuditLog[T] {
	return &AuditLog[T]{cursor: -1, limit: limit}
}

// Push truncates the entries beyond the cursor and appends v
func (l *AuditLog[T]) Push(v T) {
	// drop redo history
	var zero T
	for i := l.cursor + 1; i < len(l.entries); i++ {
		l.entries[i] = zero
	}
	l.entries = append(l.entries[:l.cursor+1], v)

	// enforce limit
	if l.limit > 0 && len(l.entries) > l.limit {
		drop := len(l.entries) - l.limit
		copy(l.entries, l.entries[drop:])
		for i := len(l.entries) - drop; i < len(l.entries); i++ {
			l.entries[i] = zero
		}
		l.entries = l.entries[:l.limit]
	}
	l.cursor = len(l.entries) - 1
}

// Back returns the entry at the cursor and moves the cursor one entry back
func (l *AuditLog[T]) Back() (T, bool) {
	var zero T
	if l.cursor < 0 {
		return zero, false
	}
	e := l.entries[l.cursor]
	l.cursor--
	return e, true
}

// Forward moves the cursor one entry forward and returns the entry at the new cursor
func (l *AuditLog[T]) Forward() (T, bool) {
	var zero T
	if l.cursor+1 >= len(l.entries) {
		return zero, false
	}
	l.cursor++
	return l.entries[l.cursor], true
}

// Current returns the entry at the cursor
func (l *AuditLog[T]) Current() (T, bool) {
	var zero T
	if l.cursor < 0 {
		return zero, false
	}
	return l.entries[l.cursor], true
}

// Cursor returns the position of the cursor (-1 if it is before the first entry)
func (l *AuditLog[T]) Cursor() int { return l.cursor }

// Len returns the number of entries, including the ones beyond the cursor
func (l *AuditLog[T]) Len() int { return len(l.entries) }

// Entries returns a copy of all entries
func (l *AuditLog[T]) Entries() []T {
	out := make([]T, len(l.entries))
	copy(out, l.entries)
	return out
}

// Clear removes all entries
func (l *AuditLog[T]) Clear() {
	l.entries = nil
	l.cursor = -1
}
