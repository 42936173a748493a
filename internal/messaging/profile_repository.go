package messaging

import (
	"context"
	"fmt"

	"github.com/mixgram/mixgram/internal/domain/errs"
	"github.com/mixgram/mixgram/internal/domain/user"
	"github.com/mixgram/mixgram/internal/store"
)

// ProfileRepository resolves user ids to display profiles from the
// store's user collection. Profile storage is owned elsewhere; this is a
// read-mostly lookup for denormalization snapshots.
type ProfileRepository struct {
	users store.Collection
}

// NewProfileRepository creates a lookup over the store's user collection.
func NewProfileRepository(s store.Store) *ProfileRepository {
	return &ProfileRepository{users: s.Collection(usersCollection)}
}

var _ user.ProfileLookup = (*ProfileRepository)(nil)

// GetProfile returns the profile for userID, or errs.ErrNotFound.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (user.Profile, error) {
	docs, err := r.users.Find(ctx, store.Filter{"user_id": userID}, store.Limit(1))
	if err != nil {
		return user.Profile{}, fmt.Errorf("failed to look up profile: %w", err)
	}
	if len(docs) == 0 {
		return user.Profile{}, errs.ErrNotFound
	}
	return user.Profile{
		DisplayName: docs[0].String("display_name"),
		AvatarURL:   docs[0].String("avatar_url"),
	}, nil
}

// SaveProfile upserts a user's display profile, keyed by user id.
func (r *ProfileRepository) SaveProfile(ctx context.Context, userID string, profile user.Profile) error {
	if userID == "" {
		return errs.ErrInvalidInput
	}

	fields := store.Fields{
		"user_id":      userID,
		"display_name": profile.DisplayName,
		"avatar_url":   profile.AvatarURL,
		"updated_at":   store.ServerTimestamp,
	}

	docs, err := r.users.Find(ctx, store.Filter{"user_id": userID}, store.Limit(1))
	if err != nil {
		return fmt.Errorf("failed to look up profile: %w", err)
	}
	if len(docs) > 0 {
		return r.users.Update(ctx, docs[0].ID, fields)
	}

	fields["created_at"] = store.ServerTimestamp
	if _, err = r.users.Create(ctx, fields); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}
