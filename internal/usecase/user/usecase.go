package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "sqlite-user-service/internal/domain/user"
	pkgerrors "sqlite-user-service/pkg/errors"
	"sqlite-user-service/pkg/logger"
)

// Repository defines the interface for user data access operations.
// Email uniqueness is enforced by the store; Create reports a violation
// as *pkgerrors.AlreadyExistsError and GetByID a miss as *pkgerrors.NotFoundError.
type Repository interface {
	Create(ctx context.Context, u *domain.User) (int64, error)   // Create a new user
	GetByID(ctx context.Context, id int64) (*domain.User, error) // Retrieve user by ID
	List(ctx context.Context) ([]domain.User, error)             // List all users in storage order
}

// Usecase implements the business logic for user management operations.
// It provides a clean separation between the transport layer and data layer.
type Usecase struct {
	repo     Repository          // Repository for data access
	log      *zap.Logger         // Logger for structured logging
	validate *validator.Validate // Validator for request validation
}

// New creates a new instance of Usecase with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Usecase {
	return &Usecase{repo: r, log: log, validate: validator.New()}
}

// formatValidationError converts the first failed rule into a client-facing error.
// Fields are reported one at a time, in declaration order.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}

	e := validationErrors[0]
	switch e.Tag() {
	case "required":
		return pkgerrors.NewValidationError(e.Field(), fmt.Sprintf("%s is required", e.Field()))
	default:
		return pkgerrors.NewValidationError(e.Field(), fmt.Sprintf("%s is invalid", e.Field()))
	}
}

// CreateUser trims and validates the request, then inserts the user.
// A duplicate email is detected by the store, never by a prior lookup.
func (uc *Usecase) CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	log.Debug("creating user", zap.String("name", in.Name))

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	u := &domain.User{
		Name:  in.Name,
		Email: in.Email,
	}
	id, err := uc.repo.Create(ctx, u)
	if err != nil {
		var exists *pkgerrors.AlreadyExistsError
		if errors.As(err, &exists) {
			log.Warn("email already exists")
			return nil, err
		}
		log.Error("failed to create user", zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to create user", err)
	}

	return &CreateUserResponse{
		ID:    id,
		Name:  u.Name,
		Email: u.Email,
	}, nil
}

// GetUser retrieves a user by ID.
func (uc *Usecase) GetUser(ctx context.Context, in GetUserRequest) (*GetUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	// IDs are assigned from 1 upwards, so nothing can match.
	if in.ID <= 0 {
		log.Debug("get user with non-positive id", zap.Int64("id", in.ID))
		return nil, pkgerrors.NewNotFoundError("user", "User not found")
	}

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		var notFound *pkgerrors.NotFoundError
		if errors.As(err, &notFound) {
			log.Debug("user not found", zap.Int64("id", in.ID))
			return nil, err
		}
		log.Error("failed to get user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to get user", err)
	}

	return &GetUserResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}, nil
}

// ListUsers retrieves every user. The result is never nil.
func (uc *Usecase) ListUsers(ctx context.Context, _ ListUsersRequest) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	domainUsers, err := uc.repo.List(ctx)
	if err != nil {
		log.Error("failed to list users", zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to list users", err)
	}

	users := make([]User, len(domainUsers))
	for i, du := range domainUsers {
		users[i] = User{
			ID:    du.ID,
			Name:  du.Name,
			Email: du.Email,
		}
	}

	log.Debug("listed users", zap.Int("count", len(users)))

	return &ListUsersResponse{
		Users: users,
	}, nil
}
