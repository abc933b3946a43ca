package scene

// Bounded is a front-packed, append-only array with a fixed capacity.
// The zero value is unusable; create with NewBounded.
type Bounded[T any] struct {
	items []T
}

// NewBounded returns an empty array that holds at most capacity elements.
func NewBounded[T any](capacity int) Bounded[T] {
	return Bounded[T]{items: make([]T, 0, capacity)}
}

// Append adds v and returns its index. It returns ErrCapacityExceeded and
// leaves the array unchanged when the array is full.
func (b *Bounded[T]) Append(v T) (int, error) {
	if len(b.items) == cap(b.items) {
		return -1, ErrCapacityExceeded
	}
	b.items = append(b.items, v)
	return len(b.items) - 1, nil
}

// Len returns the number of elements.
func (b *Bounded[T]) Len() int { return len(b.items) }

// Cap returns the maximum number of elements.
func (b *Bounded[T]) Cap() int { return cap(b.items) }

// Full reports whether another Append would fail.
func (b *Bounded[T]) Full() bool { return len(b.items) == cap(b.items) }

// At returns the element at index i. It panics if i is out of range.
func (b *Bounded[T]) At(i int) T { return b.items[i] }

// Items returns a copy of the elements.
func (b *Bounded[T]) Items() []T {
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}
