package memory

import (
	"context"
	"time"

	"github.com/samber/oops"

	"go-identity/internal/model"
)

type UserRepository struct {
	s *Store
}

func (r *UserRepository) FindByID(_ context.Context, id string) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(model.ErrUserNotFound)
	}
	return r.s.resolveOrgNames(u), nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.emails[model.NormalizeEmail(email)]
	if !ok {
		return model.User{}, oops.Code("USER_NOT_FOUND").Wrap(model.ErrUserNotFound)
	}
	return r.s.resolveOrgNames(r.s.users[id]), nil
}

func (r *UserRepository) Create(_ context.Context, u model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u.Email = model.NormalizeEmail(u.Email)
	if _, exists := r.s.emails[u.Email]; exists {
		return oops.Code("USER_ALREADY_EXISTS").With("email", u.Email).Wrap(model.ErrUserAlreadyExists)
	}
	if _, exists := r.s.users[u.ID]; exists {
		return oops.Code("USER_ALREADY_EXISTS").With("id", u.ID).Wrap(model.ErrUserAlreadyExists)
	}

	u.Org = placementIDs(u.Org)
	r.s.users[u.ID] = u
	r.s.emails[u.Email] = u.ID
	return nil
}

func (r *UserRepository) Save(_ context.Context, u model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[u.ID]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", u.ID).Wrap(model.ErrUserNotFound)
	}

	stored.Name = u.Name
	stored.NationalID = u.NationalID
	stored.Phone = u.Phone
	stored.AvatarURL = u.AvatarURL
	stored.IsActive = u.IsActive
	stored.IsStaff = u.IsStaff
	stored.IsSuperuser = u.IsSuperuser
	stored.Org = placementIDs(u.Org)
	stored.UpdatedAt = u.UpdatedAt
	r.s.users[u.ID] = stored
	return nil
}

func (r *UserRepository) UpdatePassword(_ context.Context, userID string, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", userID).Wrap(model.ErrUserNotFound)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.s.users[userID] = u
	return nil
}

func (r *UserRepository) RecordLoginFailure(_ context.Context, userID string, maxAttempts int, lockedUntil time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil
	}

	u.FailedLoginAttempts++
	if maxAttempts > 0 && u.FailedLoginAttempts >= maxAttempts {
		u.FailedLoginAttempts = 0
		until := lockedUntil
		u.LockedUntil = &until
	}
	r.s.users[userID] = u
	return nil
}

func (r *UserRepository) RecordLoginSuccess(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	r.s.users[userID] = u
	return nil
}

// placementIDs drops names; they are resolved on read.
func placementIDs(p model.OrgPlacement) model.OrgPlacement {
	return model.OrgPlacement{
		DirectionID:    p.DirectionID,
		ManagementID:   p.ManagementID,
		CoordinationID: p.CoordinationID,
	}
}
