package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sqlite-user-service/internal/domain/user"
)

const createUsersTable = `CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE
)`

// InitSchema creates the users table if absent and inserts the seed users
// when the table is empty. It returns the number of rows seeded.
//
// The count-then-insert sequence is meant to run once, from a single
// process, before the server starts accepting requests.
func InitSchema(ctx context.Context, db *gorm.DB, log *zap.Logger) (int, error) {
	seeded := 0

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(createUsersTable).Error; err != nil {
			return fmt.Errorf("failed to create users table: %w", err)
		}

		var count int64
		if err := tx.Raw("SELECT COUNT(*) FROM users").Scan(&count).Error; err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}
		if count > 0 {
			log.Debug("users table already populated", zap.Int64("count", count))
			return nil
		}

		for _, s := range user.Seeds {
			model := UserSchema{Name: s.Name, Email: s.Email}
			if err := tx.Create(&model).Error; err != nil {
				return fmt.Errorf("failed to seed user %q: %w", s.Email, err)
			}
			seeded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if seeded > 0 {
		log.Info("seeded users table", zap.Int("count", seeded))
	}
	return seeded, nil
}
