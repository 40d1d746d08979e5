// Package dedup collapses concurrent compare requests for the same
// signature into one shared fetch, using golang.org/x/sync/singleflight —
// promoted here from an indirect transitive dependency of the teacher repo
// to a direct one, same rationale as internal/ratelimit.
//
// spec.md §4.K describes a hand-rolled map of futures with a 5-minute
// sweep for entries older than 10 minutes. singleflight.Group already
// deletes an in-flight call's entry the instant it completes (success or
// error), so there is nothing left to go stale — the sweep requirement is
// satisfied structurally rather than with an extra goroutine.
package dedup

import (
	"golang.org/x/sync/singleflight"
)

// Deduper is a thin, typed wrapper over singleflight.Group.
type Deduper struct {
	group singleflight.Group
}

// New builds an empty Deduper.
func New() *Deduper {
	return &Deduper{}
}

// Do runs fn for key, or waits for and returns the result of an
// already-in-flight call for the same key. shared reports whether this
// caller received a result computed for someone else's call.
func (d *Deduper) Do(key string, fn func() (interface{}, error)) (result interface{}, shared bool, err error) {
	return d.group.Do(key, fn)
}
