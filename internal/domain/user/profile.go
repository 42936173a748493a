// Package user holds the profile value type consumed by the messaging core.
// Profile storage itself is owned by another service; only the displayed
// identity is snapshotted into chats and messages.
package user

import "context"

// Profile is the displayed identity of a user at a point in time.
type Profile struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// ProfileLookup resolves a user id to their current profile.
// Declared on the consumer side; implementations live in infrastructure.
type ProfileLookup interface {
	// GetProfile returns the profile for userID, or errs.ErrNotFound.
	GetProfile(ctx context.Context, userID string) (Profile, error)
}
