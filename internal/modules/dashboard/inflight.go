package dashboard

import "golang.org/x/sync/singleflight"

// Deduper collapses concurrent identical computations: callers sharing a key
// wait for one underlying execution instead of issuing duplicate upstream
// calls. Best-effort and process-local.
type Deduper interface {
	Do(key string, fn func() (any, error)) (any, error)
}

type inflightGroup struct {
	group singleflight.Group
}

// NewDeduper returns an in-memory Deduper backed by singleflight. Entries
// are removed as soon as the underlying call completes or errors, so a
// failed fetch never poisons its key.
func NewDeduper() Deduper {
	return &inflightGroup{}
}

func (g *inflightGroup) Do(key string, fn func() (any, error)) (any, error) {
	val, err, _ := g.group.Do(key, fn)
	return val, err
}
