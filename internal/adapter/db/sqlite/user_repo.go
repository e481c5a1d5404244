package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sqlite-user-service/internal/domain/user"
	pkgerrors "sqlite-user-service/pkg/errors"
	"sqlite-user-service/pkg/database"
	"sqlite-user-service/pkg/logger"
)

// SQLite extended result codes for constraint failures
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// UserRepoSQLite implements the Repository interface on SQLite through GORM.
// Every method runs on the request's scoped connection when one is present.
type UserRepoSQLite struct {
	db  *gorm.DB    // Pool-level handle, used outside a request scope
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepoSQLite creates a new instance of UserRepoSQLite.
func NewUserRepoSQLite(db *gorm.DB, log *zap.Logger) *UserRepoSQLite {
	return &UserRepoSQLite{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement"` // Unique identifier with auto-increment
	Name  string `gorm:"column:name;not null"`               // User's full name (required)
	Email string `gorm:"column:email;not null;unique"`       // User's unique email address (required, unique)
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

func (m UserSchema) toDomain() user.User {
	return user.User{
		ID:    m.ID,
		Name:  m.Name,
		Email: m.Email,
	}
}

// Create inserts a new user and returns the id assigned by the store.
func (r *UserRepoSQLite) Create(ctx context.Context, u *user.User) (int64, error) {
	if u == nil {
		return 0, errors.New("user cannot be nil")
	}

	tx, err := database.FromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	model := UserSchema{
		Name:  u.Name,
		Email: u.Email,
	}

	if err := tx.Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			logger.WithContext(ctx, r.log).Warn("unique constraint violated", zap.String("email", u.Email))
			return 0, pkgerrors.NewAlreadyExistsError("user", "User with this email already exists")
		}
		logger.WithContext(ctx, r.log).Error("failed to create user in db", zap.Error(err), zap.String("email", u.Email))
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	u.ID = model.ID
	logger.WithContext(ctx, r.log).Info("user created in db", zap.Int64("id", model.ID))
	return model.ID, nil
}

// GetByID retrieves a user by exact id match.
func (r *UserRepoSQLite) GetByID(ctx context.Context, id int64) (*user.User, error) {
	tx, err := database.FromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var model UserSchema
	res := tx.Raw("SELECT id, name, email FROM users WHERE id = ?", id).Scan(&model)
	if res.Error != nil {
		logger.WithContext(ctx, r.log).Error("failed to get user from db", zap.Error(res.Error), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.NewNotFoundError("user", "User not found")
	}

	u := model.toDomain()
	return &u, nil
}

// List retrieves all users in the store's default order.
func (r *UserRepoSQLite) List(ctx context.Context) ([]user.User, error) {
	tx, err := database.FromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var models []UserSchema
	if err := tx.Raw("SELECT id, name, email FROM users").Scan(&models).Error; err != nil {
		logger.WithContext(ctx, r.log).Error("failed to list users from db", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i, model := range models {
		users[i] = model.toDomain()
	}

	return users, nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure raised by SQLite.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() {
		case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
			return true
		}
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
