package identity

import (
	"context"
	stdErrors "errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/pkg/db"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
)

// UserType classifies how an identity was resolved.
type UserType string

const (
	UserTypeNew     UserType = "new"
	UserTypeGuest   UserType = "guest"
	UserTypeRegular UserType = "regular"
)

// loginPrompt is surfaced as advisory metadata when a guest checkout matches
// a registered account. It is never an error.
const loginPrompt = "an account already exists for this email; log in to see this order in your history"

// GuestInfo is the contact payload for unauthenticated checkouts.
type GuestInfo struct {
	Name  string
	Email string
	Phone string
}

// Resolution is the outcome of resolving a checkout identity.
type Resolution struct {
	User     *models.User
	UserType UserType
	// Message is set when the email belongs to a registered account and the
	// caller should prompt the end user to log in.
	Message string
}

// ServiceParams groups dependencies for the identity resolver.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service resolves a checkout request to exactly one user record.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds an identity resolver.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, stdErrors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// WithTx returns a copy of the service whose repository runs inside tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	if tx == nil {
		return s
	}
	return &Service{repo: s.repo.WithTx(tx), logg: s.logg}
}

// Resolve maps either an authenticated user id or guest contact info onto a
// single user record, creating a guest account only when no user owns the
// email. Concurrent guest checkouts with the same email are collapsed by the
// unique email index plus a retry lookup on conflict.
func (s *Service) Resolve(ctx context.Context, userID *uuid.UUID, guest *GuestInfo) (*Resolution, error) {
	if userID != nil && *userID != uuid.Nil {
		user, err := s.repo.FindByID(ctx, *userID)
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "looking up user")
		}
		if user == nil {
			return nil, errors.New(errors.CodeNotFound, "user not found")
		}
		return &Resolution{User: user, UserType: UserTypeRegular}, nil
	}

	if guest == nil {
		return nil, errors.New(errors.CodeValidation, "either a user id or guest contact info is required")
	}
	email := strings.ToLower(strings.TrimSpace(guest.Email))
	if email == "" {
		return nil, errors.New(errors.CodeValidation, "guest email is required")
	}
	if strings.TrimSpace(guest.Name) == "" {
		return nil, errors.New(errors.CodeValidation, "guest name is required")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up user by email")
	}
	if existing != nil {
		return resolutionFor(existing), nil
	}

	user := &models.User{
		Name:  strings.TrimSpace(guest.Name),
		Email: email,
		Role:  enums.UserRoleGuest,
	}
	if phone := strings.TrimSpace(guest.Phone); phone != "" {
		user.Phone = &phone
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if !db.IsUniqueViolation(err, "idx_users_email") {
			return nil, errors.Wrap(errors.CodeInternal, err, "creating guest user")
		}
		// Lost the race to a concurrent checkout with the same email.
		s.logg.Info(s.logg.WithField(ctx, "email", email), "guest create conflicted, reusing existing user")
		existing, lookupErr := s.repo.FindByEmail(ctx, email)
		if lookupErr != nil {
			return nil, errors.Wrap(errors.CodeInternal, lookupErr, "looking up user after conflict")
		}
		if existing == nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "creating guest user")
		}
		return resolutionFor(existing), nil
	}

	return &Resolution{User: user, UserType: UserTypeNew}, nil
}

// ClaimGuestAccount upgrades a guest user to a registered customer with the
// provided password hash.
func (s *Service) ClaimGuestAccount(ctx context.Context, userID uuid.UUID, passwordHash string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up user")
	}
	if user == nil {
		return nil, errors.New(errors.CodeNotFound, "user not found")
	}
	if !user.IsGuest() {
		return nil, errors.New(errors.CodeConflict, "account has already been claimed")
	}
	if passwordHash == "" {
		return nil, errors.New(errors.CodeValidation, "password hash is required")
	}

	user.Role = enums.UserRoleCustomer
	user.PasswordHash = &passwordHash
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "claiming guest account")
	}
	return user, nil
}

func resolutionFor(user *models.User) *Resolution {
	if user.IsGuest() {
		return &Resolution{User: user, UserType: UserTypeGuest}
	}
	return &Resolution{User: user, UserType: UserTypeRegular, Message: loginPrompt}
}
