package service

import (
	userserrors "bookshelf/internal/users/errors"
	"bookshelf/internal/users/repository"
	"bookshelf/internal/users/validator"
	"bookshelf/pkg/config"
	apperrors "bookshelf/pkg/errors"
	"bookshelf/pkg/model"
	"bookshelf/pkg/sanitizer"
	"bookshelf/pkg/validation"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "Invalid credentials"

type AuthService interface {
	Register(ctx context.Context, input *model.RegisterInput) (*model.User, error)
	CreateUser(ctx context.Context, input *model.RegisterInput, role model.Role) (*model.User, error)
	Login(ctx context.Context, input *model.LoginInput) (*model.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (model.Identity, error)
}

type authService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	validator *validator.UserValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	validator *validator.UserValidator,
	cfg *config.Config,
) AuthService {
	return &authService{
		users:     users,
		sessions:  sessions,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Register creates a member account. Self-registration never grants staff
// roles.
func (s *authService) Register(ctx context.Context, input *model.RegisterInput) (*model.User, error) {
	return s.create(ctx, input, model.RoleNormalUser)
}

// CreateUser creates an account with an explicit role. It backs operator
// tooling, not the public API.
func (s *authService) CreateUser(ctx context.Context, input *model.RegisterInput, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, apperrors.Validation("Invalid role", map[string]any{"role": role})
	}
	return s.create(ctx, input, role)
}

func (s *authService) create(ctx context.Context, input *model.RegisterInput, role model.Role) (*model.User, error) {
	if input == nil {
		return nil, apperrors.InvalidInput("Registration input is required")
	}

	input.Username = sanitizer.SanitizeUsername(input.Username)
	input.Email = sanitizer.SanitizeEmail(input.Email)
	input.FullName = sanitizer.SanitizeFullName(input.FullName)

	if err := s.validator.ValidateRegister(input); err != nil {
		s.cfg.Log.Warn("Registration validation failed", "email", input.Email, "error", err)
		return nil, validationError("Registration validation failed", err)
	}

	_, err := s.users.FindByEmail(ctx, input.Email)
	if err == nil {
		return nil, apperrors.Validation("Email already exists", nil)
	}
	if !errors.Is(err, userserrors.ErrNotFound) {
		s.cfg.Log.Error("Failed to check email", "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperrors.Validation("Registration validation failed", map[string]any{
				"password": "password must be at most 72 bytes",
			})
		}
		s.cfg.Log.Error("Failed to hash password", "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	user := &model.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hash),
		FullName:     input.FullName,
		Role:         role,
	}
	if role.Staff() {
		user.EmploymentStatus = model.Employed
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userserrors.ErrDuplicateEmail) {
			return nil, apperrors.Validation("Email already exists", nil)
		}
		s.cfg.Log.Error("Failed to create user", "email", input.Email, "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	s.cfg.Log.Info("User registered", "id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

func (s *authService) Login(ctx context.Context, input *model.LoginInput) (*model.LoginResult, error) {
	if input == nil {
		return nil, apperrors.InvalidInput("Login input is required")
	}

	input.Email = sanitizer.SanitizeEmail(input.Email)
	if err := s.validator.ValidateLogin(input); err != nil {
		return nil, validationError("Login validation failed", err)
	}

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			s.cfg.Log.Warn("Login failed: unknown email", "email", input.Email)
			return nil, apperrors.Unauthorized(invalidCredentials)
		}
		s.cfg.Log.Error("Failed to look up user", "error", err)
		return nil, apperrors.Internal("Failed to login", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		s.cfg.Log.Warn("Login failed: bad password", "user_id", user.ID)
		return nil, apperrors.Unauthorized(invalidCredentials)
	}

	session := &model.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: s.now().UTC().Add(s.cfg.SessionTTL).Truncate(time.Millisecond),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		s.cfg.Log.Error("Failed to create session", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to login", err)
	}

	s.cfg.Log.Info("User logged in", "user_id", user.ID, "role", user.Role)

	return &model.LoginResult{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      user,
	}, nil
}

// Logout revokes token. Revoking an unknown or expired token succeeds.
func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return apperrors.Unauthorized("Authentication required")
	}

	if err := s.sessions.Delete(ctx, token); err != nil && !errors.Is(err, userserrors.ErrSessionNotFound) {
		s.cfg.Log.Error("Failed to delete session", "error", err)
		return apperrors.Internal("Failed to logout", err)
	}
	return nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (model.Identity, error) {
	session, err := s.sessions.FindValid(ctx, token, s.now().UTC())
	if err != nil {
		if errors.Is(err, userserrors.ErrSessionNotFound) {
			return model.Identity{}, apperrors.Unauthorized("Invalid or expired token")
		}
		return model.Identity{}, apperrors.Internal("Failed to authenticate", err)
	}

	return model.Identity{UserID: session.UserID, Role: session.Role}, nil
}

func validationError(message string, err error) error {
	if ve, ok := validation.AsValidationErrors(err); ok {
		return apperrors.Validation(message, ve.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
