// Package memory provides the object pooling that backs epoch-based
// reclamation: values replaced behind an epoch pointer return here once
// no reader can still see them, and the writer draws the next
// allocation from the same pool.
package memory

import "sync"

// Pool is a typed object pool. Put is the natural reclaim hook for
// epoch.NewPtrReclaim.
type Pool[T any] struct {
	p sync.Pool
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	pl := &Pool[T]{}
	pl.p.New = func() any { return ctor() }
	return pl
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	p.p.Put(v)
}
