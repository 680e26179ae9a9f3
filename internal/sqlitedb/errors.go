package sqlitedb

import (
	"errors"
	"fmt"

	gosqlite "github.com/mattn/go-sqlite3"

	"github.com/starford/daybook/internal/apperr"
)

// Classify maps driver errors onto apperr sentinels: a busy or locked
// database is transient, a unique constraint violation is a duplicate.
// Other errors are returned unchanged.
func Classify(err error) error {
	var se gosqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.Code == gosqlite.ErrBusy, se.Code == gosqlite.ErrLocked:
		return fmt.Errorf("%w: %w", apperr.ErrUnavailable, err)
	case se.ExtendedCode == gosqlite.ErrConstraintUnique, se.ExtendedCode == gosqlite.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %w", apperr.ErrAlreadyExists, err)
	}
	return err
}
