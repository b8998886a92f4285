package actor

import "context"

// Profile captures the subset of actor data exposed via the public API layer.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
	Role        Role
}

// Directory exposes read-only actor lookups for display layers: vendor
// listings, reviewer pickers, and the denormalized names shown next to
// history entries.
type Directory struct {
	repo Repository
}

// NewDirectory builds a Directory using the provided repository.
func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

// GetProfile returns the public profile for the given actor.
func (d *Directory) GetProfile(ctx context.Context, id string) (Profile, error) {
	user, err := d.repo.GetUserByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return toProfile(user), nil
}

// ListByRole returns up to limit profiles with the given role.
func (d *Directory) ListByRole(ctx context.Context, role Role, limit int) ([]Profile, error) {
	users, err := d.repo.ListByRole(ctx, role, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(users))
	for _, u := range users {
		out = append(out, toProfile(u))
	}
	return out, nil
}

func toProfile(u User) Profile {
	return Profile{
		ID:          u.ID,
		DisplayName: u.FullName,
		Email:       u.Email,
		Role:        u.Role,
	}
}
