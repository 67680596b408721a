package repository

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cryptoguard/cryptoguard/internal/domain"
)

// writeError turns a unique constraint violation into domain.ErrConflict.
// Other errors are returned as is.
func writeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.Wrap(domain.ErrConflict, op)
	}
	return err
}
