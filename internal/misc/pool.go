package misc

import "sync"

// Resetter is implemented by values that can be cleared before reuse.
type Resetter interface {
	Reset()
}

// Pool is a typed sync.Pool. Values are reset on Put.
type Pool[T Resetter] struct {
	p     sync.Pool
	newFn func() T
}

// NewPool returns a pool that builds fresh values with newFn.
func NewPool[T Resetter](newFn func() T) *Pool[T] {
	pl := &Pool[T]{newFn: newFn}
	pl.p.New = func() any { return pl.fresh() }
	return pl
}

func (pl *Pool[T]) fresh() T {
	if pl.newFn != nil {
		return pl.newFn()
	}
	var zero T
	return zero
}

// Get returns a pooled value or a fresh one.
func (pl *Pool[T]) Get() T {
	if v, ok := pl.p.Get().(T); ok {
		return v
	}
	return pl.fresh()
}

// Put resets v and hands it back to the pool.
func (pl *Pool[T]) Put(v T) {
	v.Reset()
	pl.p.Put(v)
}
