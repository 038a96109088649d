package services

import (
	"context"
	"errors"
	"strings"

	"github.com/citizone/authserver/internal/store"
	"github.com/citizone/authserver/types"
)

// UserService encapsulates profile use-cases for authenticated users.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, id int64) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, authenticationError("invalid session")
		}
		return types.User{}, &Error{Kind: KindInternal, Message: "internal server error"}
	}
	return user, nil
}

// ProfileInput carries the mutable profile fields. Empty fields are left
// unchanged; role, credentials, and registration time are not settable here.
type ProfileInput struct {
	FirstName string
	LastName  string
	Age       int
	Gender    string
}

func (s *UserService) UpdateProfile(ctx context.Context, id int64, in ProfileInput) (types.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if name := strings.TrimSpace(in.FirstName); name != "" {
		user.FirstName = name
	}
	if name := strings.TrimSpace(in.LastName); name != "" {
		user.LastName = name
	}
	if in.Age != 0 {
		if in.Age < minAge {
			return types.User{}, validationError("age must be at least 18")
		}
		user.Age = in.Age
	}
	if gender := strings.TrimSpace(in.Gender); gender != "" {
		if !validGender(gender) {
			return types.User{}, validationError("gender must be male, female, or other")
		}
		user.Gender = gender
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, &Error{Kind: KindInternal, Message: "internal server error"}
	}
	return updated, nil
}
