package repositories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bakery/internal/database"
	"github.com/example/bakery/internal/models"
)

// UserRepository persists accounts.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := database.Conn(ctx, r.db).First(&user, "email = ?", strings.ToLower(email)).Error
	return user, mapError(err, "user not found", "")
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user models.User
	err := database.Conn(ctx, r.db).First(&user, "id = ?", id).Error
	return user, mapError(err, "user not found", "")
}

// Create inserts user. A taken email surfaces as a duplicate error.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	err := database.Conn(ctx, r.db).Create(user).Error
	return mapError(err, "", "an account with this email already exists")
}
