package cache

// Result is the outcome of a cache read: a hit carrying a value, or a miss. Backend
// failures are folded into Miss before a Result leaves this package.
type Result[T any] struct {
	value T
	hit   bool
}

// Hit wraps a cached value.
func Hit[T any](value T) Result[T] {
	return Result[T]{value: value, hit: true}
}

// Miss reports that no usable value was cached.
func Miss[T any]() Result[T] {
	return Result[T]{}
}

// Value returns the cached value and whether the read was a hit.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.hit
}

// IsHit reports whether the read produced a value.
func (r Result[T]) IsHit() bool {
	return r.hit
}
