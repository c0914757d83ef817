package domain

import "time"

// AbuseLogRecord tracks one accepted registration request for a hashed
// identifier. Records are only ever used in aggregate (counted over the
// rolling abuse window) and are evicted after 24 hours.
type AbuseLogRecord struct {
	PayloadHash string
	RequestedAt time.Time
}
