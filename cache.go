package eventive

import "time"

// ProfileCacheTTL is the validity window of a cache entry. Entries are
// advisory only: staleness causes a re-fetch, never a correctness
// violation, since the store is the source of truth.
const ProfileCacheTTL = 5 * time.Minute

// CacheEntry is a profile stamped with the time it was resolved.
type CacheEntry struct {
	Profile   Profile
	Timestamp time.Time
}

func (e CacheEntry) Valid(now time.Time) bool {
	return now.Sub(e.Timestamp) < ProfileCacheTTL
}

// ProfileCache is a single cache tier keyed by user id. Tiers store entries
// verbatim; TTL checks are the reader's job. Mutations are atomic per key.
type ProfileCache interface {
	Get(userId UserId) (CacheEntry, bool)
	Set(userId UserId, entry CacheEntry) error
	Invalidate(userId UserId) error
}
