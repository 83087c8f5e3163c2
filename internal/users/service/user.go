package service

import (
	userserrors "bookshelf/internal/users/errors"
	"bookshelf/internal/users/repository"
	"bookshelf/internal/users/validator"
	"bookshelf/pkg/config"
	apperrors "bookshelf/pkg/errors"
	"bookshelf/pkg/model"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

type UserService interface {
	List(ctx context.Context, filter model.UserFilter) ([]*model.User, error)
	UpdateRole(ctx context.Context, id string, update *model.RoleUpdate, actorID string) (*model.User, error)
	UpdateEmploymentStatus(ctx context.Context, id string, update *model.EmploymentStatusUpdate, actorID string) (*model.User, error)
}

type userService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	validator *validator.UserValidator
	cfg       *config.Config
}

func NewUserService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	validator *validator.UserValidator,
	cfg *config.Config,
) UserService {
	return &userService{
		users:     users,
		sessions:  sessions,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *userService) List(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid role filter: %s", filter.Role))
	}
	if filter.EmploymentStatus != "" && !filter.EmploymentStatus.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid employment_status filter: %s", filter.EmploymentStatus))
	}

	users, err := s.users.Find(ctx, filter)
	if err != nil {
		s.cfg.Log.Error("Failed to list users", "error", err)
		return nil, apperrors.Internal("Failed to fetch users", err)
	}
	return users, nil
}

// UpdateRole changes a user's role and revokes their sessions so the new
// role applies from the next login. Staff roles start as employed; members
// carry no employment status.
func (s *userService) UpdateRole(ctx context.Context, id string, update *model.RoleUpdate, actorID string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}
	if err := s.validator.ValidateRole(update); err != nil {
		return nil, validationError("Role validation failed", err)
	}

	var employment model.EmploymentStatus
	if update.Role.Staff() {
		employment = model.Employed
	}

	var user *model.User
	var revoked int64
	err := s.users.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		user, err = s.users.UpdateRole(sessCtx, id, update.Role, employment)
		if err != nil {
			return mapUserError(err, id, "Failed to update user role")
		}

		revoked, err = s.sessions.DeleteByUser(sessCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to revoke user sessions", err)
		}
		return nil
	})
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			s.cfg.Log.Error("Failed to update user role", "id", id, "error", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("User role updated",
		"id", id,
		"role", user.Role,
		"sessions_revoked", revoked,
		"actor_id", actorID,
	)
	return user, nil
}

func (s *userService) UpdateEmploymentStatus(ctx context.Context, id string, update *model.EmploymentStatusUpdate, actorID string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}
	if err := s.validator.ValidateEmploymentStatus(update); err != nil {
		return nil, validationError("Employment status validation failed", err)
	}

	current, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, mapUserError(err, id, "Failed to retrieve user")
	}
	if !current.Role.Staff() {
		s.cfg.Log.Warn("Employment status rejected for non-staff user", "id", id, "role", current.Role)
		return nil, apperrors.Validation("Employment status only applies to librarian and admin roles", nil)
	}

	user, err := s.users.UpdateEmploymentStatus(ctx, id, update.EmploymentStatus)
	if err != nil {
		s.cfg.Log.Error("Failed to update employment status", "id", id, "error", err)
		return nil, mapUserError(err, id, "Failed to update employment status")
	}

	s.cfg.Log.Info("Employment status updated",
		"id", id,
		"employment_status", user.EmploymentStatus,
		"actor_id", actorID,
	)
	return user, nil
}

func mapUserError(err error, id string, internalMsg string) error {
	if errors.Is(err, userserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("User", id)
	}
	if errors.Is(err, userserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid user ID format")
	}
	return apperrors.Internal(internalMsg, err)
}
