package autopilot

// MaxListLen bounds the waypoint and trajectory lists.
const MaxListLen = 50

// List is a fixed-capacity sequence with a validated active index. It never
// allocates after construction.
type List[T any] struct {
	items [MaxListLen]T
	n     int
	cur   int
}

func (l *List[T]) Len() int   { return l.n }
func (l *List[T]) Index() int { return l.cur }

func (l *List[T]) Add(v T) error {
	if l.n >= MaxListLen {
		return ErrListFull
	}
	l.items[l.n] = v
	l.n++
	return nil
}

func (l *List[T]) At(i int) (T, bool) {
	if i < 0 || i >= l.n {
		var zero T
		return zero, false
	}
	return l.items[i], true
}

// Current returns the entry at the active index.
func (l *List[T]) Current() (T, bool) { return l.At(l.cur) }

// SetIndex moves the active index. Indices outside [0, Len) are rejected.
func (l *List[T]) SetIndex(i int) bool {
	if i < 0 || i >= l.n {
		return false
	}
	l.cur = i
	return true
}

// Advance moves to the next entry. At the last entry it returns false and
// leaves the index unchanged.
func (l *List[T]) Advance() bool {
	return l.SetIndex(l.cur + 1)
}

func (l *List[T]) Clear() {
	var zero T
	for i := 0; i < l.n; i++ {
		l.items[i] = zero
	}
	l.n = 0
	l.cur = 0
}

// Snapshot copies the valid entries.
func (l *List[T]) Snapshot() []T {
	out := make([]T, l.n)
	copy(out, l.items[:l.n])
	return out
}
