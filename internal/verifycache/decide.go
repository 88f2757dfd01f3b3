package verifycache

import (
	"time"

	"bundleid/internal/identifier"
)

// DefaultStaleness is how long an entry stays authoritative for a record that
// has no usable identifier of its own.
const DefaultStaleness = 90 * 24 * time.Hour

// Decision reasons.
const (
	ReasonForce           = "force"
	ReasonAlreadyVerified = "already_verified"
	ReasonSyncCache       = "sync_cache"
	ReasonNotInCache      = "not_in_cache"
	ReasonStaleCache      = "stale_cache"
	ReasonCached          = "cached"
)

// Decision tells the orchestrator what to do with one record.
type Decision struct {
	NeedsAPI  bool
	NeedsSync bool
	Reason    string
}

// Decide applies the staleness policy to a record's current identifier and its
// cache entry (nil when absent). Rules are evaluated in order; the first match
// wins. Age is compared strictly: an entry exactly staleness old is still fresh.
func Decide(entry *Entry, current string, force bool, now time.Time, staleness time.Duration) Decision {
	if force {
		return Decision{NeedsAPI: true, Reason: ReasonForce}
	}
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	if identifier.Valid(current) {
		if entry != nil && entry.Identifier != nil && *entry.Identifier == current && entry.Status != StatusUnknown {
			return Decision{Reason: ReasonAlreadyVerified}
		}
		return Decision{NeedsSync: true, Reason: ReasonSyncCache}
	}
	if entry == nil {
		return Decision{NeedsAPI: true, Reason: ReasonNotInCache}
	}
	if now.Sub(entry.LastCheckedAt) > staleness {
		return Decision{NeedsAPI: true, Reason: ReasonStaleCache}
	}
	return Decision{Reason: ReasonCached}
}
