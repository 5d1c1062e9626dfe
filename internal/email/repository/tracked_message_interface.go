package repository

import "context"

// TrackedMessageRepository stores the per-user set of processed message ids
type TrackedMessageRepository interface {
	// Get returns the stored ids for owner, or an empty slice when none exist
	Get(ctx context.Context, owner string) ([]string, error)
	// Set replaces the stored ids for owner
	Set(ctx context.Context, owner string, ids []string) error
}
