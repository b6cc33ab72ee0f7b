package drivers

import (
	"context"
)

// StateKey names one remembered value.  Device ids are only unique per
// user, so the owner is part of the key.
type StateKey struct {
	UserID   string
	DeviceID string
	Instance string
}

// StateStore remembers the last requested value of each device instance for
// drivers whose transport is write only
type StateStore interface {
	SaveState(ctx context.Context, key StateKey, value interface{}) error

	// LoadState reports false when nothing was stored for the key
	LoadState(ctx context.Context, key StateKey) (interface{}, bool, error)
}
