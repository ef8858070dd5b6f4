package store

import (
	"context"
	"strings"

	"peakshare/internal/models"
	"peakshare/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// CreateUserInput is the registration payload.
type CreateUserInput struct {
	Email           string
	Username        string
	Password        string
	FullName        string
	Bio             string
	ProfileImageURL string
	Website         string
	Location        string
}

// UpdateUserInput carries a partial profile edit. Nil fields are left
// untouched; an empty string clears an optional field.
type UpdateUserInput struct {
	Email           *string
	Username        *string
	FullName        *string
	Bio             *string
	ProfileImageURL *string
	Website         *string
	Location        *string
}

// CreateUser registers a new user. Email and username must be unique
// (case-insensitive) and the credential is stored as a bcrypt hash.
func (s *Store) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	email := normalizeKey(in.Email)
	username := strings.TrimSpace(in.Username)

	if err := validateRegistration(email, username, in.Password, in.Bio); err != nil {
		return nil, s.reject(ctx, "create_user", s.userLog, err)
	}

	// Hash outside the writer lock.
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	var created *models.User
	err = s.write(ctx, "create_user", s.userLog, func() (*ChangeEvent, error) {
		if _, taken := s.emails[email]; taken {
			return nil, models.NewConflictError("Email is already registered")
		}
		if _, taken := s.usernames[normalizeKey(username)]; taken {
			return nil, models.NewConflictError("Username is already taken")
		}

		now := s.now()
		u := &models.User{
			ID:              s.newID(),
			Email:           email,
			Username:        username,
			FullName:        strings.TrimSpace(in.FullName),
			Bio:             models.StringPtr(strings.TrimSpace(in.Bio)),
			ProfileImageURL: models.StringPtr(strings.TrimSpace(in.ProfileImageURL)),
			Website:         models.StringPtr(strings.TrimSpace(in.Website)),
			Location:        models.StringPtr(strings.TrimSpace(in.Location)),
			PasswordHash:    string(hash),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		s.insertUserLocked(u)

		created = u.Clone()
		return &ChangeEvent{Entity: EntityUser, Op: OpUpsert, ID: u.ID, User: u.Clone(), At: now}, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func validateRegistration(email, username, password, bio string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidateUsername(username); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidateBio(bio); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

func (s *Store) insertUserLocked(u *models.User) {
	s.users[u.ID] = u
	s.userOrder = append(s.userOrder, u.ID)
	s.usernames[normalizeKey(u.Username)] = u.ID
	s.emails[normalizeKey(u.Email)] = u.ID
}

// UpdateUser applies a partial profile edit.
func (s *Store) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (*models.User, error) {
	var updated *models.User
	err := s.write(ctx, "update_user", s.userLog, func() (*ChangeEvent, error) {
		u, ok := s.users[id]
		if !ok {
			return nil, models.NewNotFoundError("User", id)
		}

		next := u.Clone()
		if in.Email != nil {
			email := normalizeKey(*in.Email)
			if err := validation.ValidateEmail(email); err != nil {
				return nil, models.NewValidationError(err.Error())
			}
			if owner, taken := s.emails[email]; taken && owner != id {
				return nil, models.NewConflictError("Email is already registered")
			}
			next.Email = email
		}
		if in.Username != nil {
			username := strings.TrimSpace(*in.Username)
			if err := validation.ValidateUsername(username); err != nil {
				return nil, models.NewValidationError(err.Error())
			}
			if owner, taken := s.usernames[normalizeKey(username)]; taken && owner != id {
				return nil, models.NewConflictError("Username is already taken")
			}
			next.Username = username
		}
		if in.FullName != nil {
			next.FullName = strings.TrimSpace(*in.FullName)
		}
		if in.Bio != nil {
			if err := validation.ValidateBio(*in.Bio); err != nil {
				return nil, models.NewValidationError(err.Error())
			}
			next.Bio = models.StringPtr(strings.TrimSpace(*in.Bio))
		}
		if in.ProfileImageURL != nil {
			next.ProfileImageURL = models.StringPtr(strings.TrimSpace(*in.ProfileImageURL))
		}
		if in.Website != nil {
			next.Website = models.StringPtr(strings.TrimSpace(*in.Website))
		}
		if in.Location != nil {
			next.Location = models.StringPtr(strings.TrimSpace(*in.Location))
		}
		next.UpdatedAt = s.now()

		delete(s.emails, normalizeKey(u.Email))
		delete(s.usernames, normalizeKey(u.Username))
		s.emails[normalizeKey(next.Email)] = id
		s.usernames[normalizeKey(next.Username)] = id
		s.users[id] = next

		updated = next.Clone()
		return &ChangeEvent{Entity: EntityUser, Op: OpUpsert, ID: id, User: next.Clone(), At: next.UpdatedAt}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetUser returns a copy of the user with the given id.
func (s *Store) GetUser(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.NewNotFoundError("User", id)
	}
	return u.Clone(), nil
}

// GetUserByUsername looks a user up case-insensitively.
func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[normalizeKey(username)]
	if !ok {
		return nil, models.NewNotFoundError("User", username)
	}
	return s.users[id].Clone(), nil
}

// ListUsers returns all users in registration order.
func (s *Store) ListUsers() []*models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id].Clone())
	}
	return out
}
