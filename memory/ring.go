package memory

// ring is a bounded FIFO buffer. Pushing into a full ring overwrites the
// oldest element. Storage grows lazily up to the capacity.
type ring[T any] struct {
	buf      []T
	start    int
	capacity int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{capacity: capacity}
}

// push appends v and reports whether the oldest element was evicted.
func (r *ring[T]) push(v T) bool {
	if len(r.buf) < r.capacity {
		r.buf = append(r.buf, v)
		return false
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % r.capacity
	return true
}

func (r *ring[T]) len() int { return len(r.buf) }

// at returns the i-th element counting from the oldest.
func (r *ring[T]) at(i int) T {
	return r.buf[(r.start+i)%len(r.buf)]
}

// items returns all elements, oldest first.
func (r *ring[T]) items() []T {
	out := make([]T, 0, len(r.buf))
	for i := 0; i < len(r.buf); i++ {
		out = append(out, r.at(i))
	}
	return out
}

// tail returns up to n of the newest elements accepted by keep, oldest first.
// A nil keep accepts everything.
func (r *ring[T]) tail(n int, keep func(T) bool) []T {
	if n <= 0 {
		return nil
	}
	picked := make([]T, 0, n)
	for i := len(r.buf) - 1; i >= 0 && len(picked) < n; i-- {
		v := r.at(i)
		if keep == nil || keep(v) {
			picked = append(picked, v)
		}
	}
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}
