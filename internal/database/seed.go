package database

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/utils"
)

// SeedAdmin creates the bootstrap admin account when it does not exist yet.
// It reports whether a row was inserted.
func SeedAdmin(ctx context.Context, db *gorm.DB, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}

	admin := models.User{
		Email:        email,
		FullName:     "Administrator",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}

	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&admin)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
