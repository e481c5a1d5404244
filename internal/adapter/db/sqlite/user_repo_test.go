package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"sqlite-user-service/internal/domain/user"
	"sqlite-user-service/pkg/database"
	pkgerrors "sqlite-user-service/pkg/errors"
)

func TestUserRepoSQLite_List_Seeds(t *testing.T) {
	repo := NewUserRepoSQLite(setupTestDB(t), zaptest.NewLogger(t))

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, len(user.Seeds))

	for i, s := range user.Seeds {
		assert.Equal(t, s.Name, users[i].Name)
		assert.Equal(t, s.Email, users[i].Email)
	}
}

func TestUserRepoSQLite_List_Empty(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Exec(createUsersTable).Error)
	repo := NewUserRepoSQLite(db, zaptest.NewLogger(t))

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestUserRepoSQLite_CreateAndGet(t *testing.T) {
	repo := NewUserRepoSQLite(setupTestDB(t), zaptest.NewLogger(t))
	ctx := context.Background()

	u := &user.User{Name: "Test User", Email: "test@example.com"}
	id, err := repo.Create(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
	assert.Equal(t, id, u.ID)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &user.User{ID: id, Name: "Test User", Email: "test@example.com"}, got)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 4)
	assert.Equal(t, "test@example.com", users[3].Email)
}

func TestUserRepoSQLite_Create_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoSQLite(db, zaptest.NewLogger(t))

	id, err := repo.Create(context.Background(), &user.User{Name: "Another Ivan", Email: "ivan@example.com"})

	assert.Zero(t, id)
	var exists *pkgerrors.AlreadyExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "User with this email already exists", exists.Error())

	var count int64
	require.NoError(t, db.Raw("SELECT COUNT(*) FROM users").Scan(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestUserRepoSQLite_Create_Nil(t *testing.T) {
	repo := NewUserRepoSQLite(setupTestDB(t), zaptest.NewLogger(t))

	_, err := repo.Create(context.Background(), nil)
	assert.EqualError(t, err, "user cannot be nil")
}

func TestUserRepoSQLite_GetByID_NotFound(t *testing.T) {
	repo := NewUserRepoSQLite(setupTestDB(t), zaptest.NewLogger(t))

	got, err := repo.GetByID(context.Background(), 9999)

	assert.Nil(t, got)
	var notFound *pkgerrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "User not found", notFound.Error())
}

func TestUserRepoSQLite_MissingTable(t *testing.T) {
	repo := NewUserRepoSQLite(openTestDB(t), zaptest.NewLogger(t))

	_, err := repo.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list users")
	assert.Equal(t, 500, pkgerrors.HTTPStatus(err))
}

func TestUserRepoSQLite_UsesRequestScope(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepoSQLite(db, zaptest.NewLogger(t))

	scope := database.NewScope(context.Background(), db, zaptest.NewLogger(t))
	ctx := database.WithScope(context.Background(), scope)

	_, err := repo.List(ctx)
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, scope.Acquired())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().InUse)

	require.NoError(t, scope.Close())
	assert.Equal(t, 0, sqlDB.Stats().InUse)

	// A closed scope must not fall back to another connection.
	_, err = repo.List(ctx)
	assert.Error(t, err)
}

type codedError struct{ code int }

func (e codedError) Error() string { return fmt.Sprintf("sqlite error %d", e.code) }
func (e codedError) Code() int     { return e.code }

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, isUniqueViolation(codedError{code: sqliteConstraintUnique}))
	assert.True(t, isUniqueViolation(codedError{code: sqliteConstraintPrimaryKey}))
	assert.True(t, isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")))
	assert.False(t, isUniqueViolation(codedError{code: 1299})) // NOT NULL
	assert.False(t, isUniqueViolation(errors.New("database is locked")))
}
