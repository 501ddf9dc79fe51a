package repositories

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/example/bakery/internal/apperrors"
)

// mapError translates gorm failures into application errors. Anything that is
// not a missing row or a unique violation is a storage error.
func mapError(err error, notFound, duplicate string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound("%s", notFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.Wrap(apperrors.CodeDuplicateCode, err, duplicate)
	default:
		return apperrors.Storage(err)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
