package matcher

// List is a capture container collecting every captured value.
// Not synchronized: concurrent capture into one List is the caller's
// responsibility.
type List[T any] struct {
	Values []T
}

// Capture appends v. Values of another type are stored as the zero T.
func (l *List[T]) Capture(v any) {
	t, _ := v.(T)
	l.Values = append(l.Values, t)
}

// Last returns the most recently captured value.
func (l *List[T]) Last() (T, bool) {
	if len(l.Values) == 0 {
		var zero T
		return zero, false
	}
	return l.Values[len(l.Values)-1], true
}

// Slot is a capture container keeping only the last captured value.
type Slot[T any] struct {
	Value    T
	Captured bool
}

// Capture stores v. Values of another type are stored as the zero T.
func (s *Slot[T]) Capture(v any) {
	s.Value, _ = v.(T)
	s.Captured = true
}

// Clear forgets the captured value.
func (s *Slot[T]) Clear() {
	var zero T
	s.Value = zero
	s.Captured = false
}
