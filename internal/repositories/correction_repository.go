package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/database"
	"github.com/example/bakery/internal/models"
)

// CorrectionRepository stores the audit trail of repaired order totals.
type CorrectionRepository struct {
	db *gorm.DB
}

func NewCorrectionRepository(db *gorm.DB) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

func (r *CorrectionRepository) Record(ctx context.Context, correction *models.TotalCorrection) error {
	if err := database.Conn(ctx, r.db).Create(correction).Error; err != nil {
		return apperrors.Storage(err)
	}
	return nil
}
