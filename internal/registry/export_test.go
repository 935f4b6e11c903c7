package registry

import "time"

// SetNow swaps the clock, tests use it to age cache entries.
func SetNow(r *Registry, now func() time.Time) {
	r.now = now
}
