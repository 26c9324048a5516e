package store

import (
	"context"
	"time"

	"github.com/castlens/castlens/internal/profile"
)

// Entry is one persisted score record keyed by Farcaster id. CreatedAt
// is set on first insert and survives every later refresh; LastRefreshed
// moves forward on each successful upstream fetch.
type Entry struct {
	FID           string          `json:"fid"`
	Profile       profile.Profile `json:"profile"`
	LastRefreshed time.Time       `json:"lastRefreshed"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Store is the keyed record store the score cache coordinates against.
// Upsert fully replaces the profile and LastRefreshed for a fid while
// preserving the original CreatedAt; rows are never deleted, freshness
// is decided by readers.
type Store interface {
	Get(ctx context.Context, fid string) (Entry, bool, error)
	Upsert(ctx context.Context, fid string, p profile.Profile, refreshedAt time.Time) (Entry, error)
	Close(ctx context.Context) error
}
