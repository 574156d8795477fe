package resultstorage

import "time"

// Expired reports whether an object last modified at updated is stale at now.
// A window of zero (or less) disables expiration. The elapsed time is
// truncated to whole seconds before the strict comparison, so an object is
// still fresh for the whole second that ends the window.
func Expired(updated, now time.Time, windowSeconds int) bool {
	if windowSeconds <= 0 {
		return false
	}
	elapsed := now.UTC().Sub(updated.UTC())
	return int64(elapsed/time.Second) > int64(windowSeconds)
}
