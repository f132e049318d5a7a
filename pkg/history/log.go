package history

// Log is a bounded, newest-first list. Push prepends; once the cap is reached
// the oldest entry is evicted from the tail. Not safe for concurrent use on
// its own; Tracker serializes access.
type Log[T any] struct {
	cap   int
	items []T
}

func NewLog[T any](capacity int) *Log[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Log[T]{cap: capacity, items: make([]T, 0, capacity)}
}

func (l *Log[T]) Push(item T) {
	if len(l.items) == l.cap {
		l.items = l.items[:l.cap-1]
	}
	l.items = append([]T{item}, l.items...)
}

// Items returns a copy of the list, newest first.
func (l *Log[T]) Items() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Log[T]) Len() int {
	return len(l.items)
}
