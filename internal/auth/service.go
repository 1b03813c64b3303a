package auth

import (
	"context"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/internal/identity"
	"github.com/inkforge/studio-backend/internal/orders"
	pkgAuth "github.com/inkforge/studio-backend/pkg/auth"
	"github.com/inkforge/studio-backend/pkg/config"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
	"github.com/inkforge/studio-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service handles account registration, login, and guest account claims.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	ClaimAccount(ctx context.Context, req ClaimAccountRequest) (*AuthResponse, error)
}

type service struct {
	users       identity.Repository
	resolver    *identity.Service
	orders      *orders.Service
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Users          identity.Repository
	Resolver       *identity.Service
	Orders         *orders.Service
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

// NewService constructs the auth service.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, stdErrors.New("users repo is required")
	}
	if params.Resolver == nil {
		return nil, stdErrors.New("identity resolver is required")
	}
	if params.Orders == nil {
		return nil, stdErrors.New("orders service is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	return &service{
		users:       params.Users,
		resolver:    params.Resolver,
		orders:      params.Orders,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
	}, nil
}

// Register creates a customer account. When the email already belongs to a
// guest account from a past express checkout, registration claims that
// account instead of failing, keeping the guest's order history.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, errors.New(errors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.New(errors.CodeValidation, "name is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "hashing password")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up email")
	}
	if existing != nil {
		if !existing.IsGuest() {
			return nil, errors.New(errors.CodeConflict, "email is already registered")
		}
		user, err := s.resolver.ClaimGuestAccount(ctx, existing.ID, passwordHash)
		if err != nil {
			return nil, err
		}
		s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "guest account claimed via registration")
		return s.issueToken(user)
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Phone:        req.Phone,
		Role:         enums.UserRoleCustomer,
		PasswordHash: &passwordHash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, errors.Wrap(errors.CodeConflict, err, "creating account")
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "account registered")
	return s.issueToken(user)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, errors.New(errors.CodeUnauthorized, invalidCredentialsMessage)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up user")
	}
	// Guest accounts have no password until claimed.
	if user == nil || user.PasswordHash == nil {
		return nil, errors.New(errors.CodeUnauthorized, invalidCredentialsMessage)
	}

	valid, err := security.VerifyPassword(req.Password, *user.PasswordHash)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "verifying password")
	}
	if !valid {
		return nil, errors.New(errors.CodeUnauthorized, invalidCredentialsMessage)
	}

	return s.issueToken(user)
}

// ClaimAccount turns the guest account behind an express checkout into a
// customer account, keyed by the guest session token handed out at checkout.
func (s *service) ClaimAccount(ctx context.Context, req ClaimAccountRequest) (*AuthResponse, error) {
	order, err := s.orders.FindByGuestSessionToken(ctx, req.GuestSessionToken)
	if err != nil {
		return nil, err
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "hashing password")
	}

	user, err := s.resolver.ClaimGuestAccount(ctx, order.UserID, passwordHash)
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "guest account claimed")
	return s.issueToken(user)
}

func (s *service) issueToken(user *models.User) (*AuthResponse, error) {
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "minting access token")
	}
	return &AuthResponse{AccessToken: token, User: identity.FromModel(user)}, nil
}
