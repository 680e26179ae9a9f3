package sqlitedb

import (
	"errors"
	"path/filepath"
	"testing"

	gosqlite "github.com/mattn/go-sqlite3"

	"github.com/starford/daybook/internal/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"busy", gosqlite.Error{Code: gosqlite.ErrBusy}, apperr.ErrUnavailable},
		{"locked", gosqlite.Error{Code: gosqlite.ErrLocked}, apperr.ErrUnavailable},
		{"unique", gosqlite.Error{Code: gosqlite.ErrConstraint, ExtendedCode: gosqlite.ErrConstraintUnique}, apperr.ErrAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	plain := errors.New("plain")
	if got := Classify(plain); got != plain {
		t.Errorf("Classify(plain) = %v", got)
	}
}

func TestClassify_RealUniqueViolation(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "c.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	const q = `INSERT INTO accounts (id, email, password_hash, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`
	if _, err := db.Conn().Exec(q, "a", "x@example.com", "h"); err != nil {
		t.Fatal(err)
	}
	_, err = db.Conn().Exec(q, "b", "x@example.com", "h")
	if !errors.Is(Classify(err), apperr.ErrAlreadyExists) {
		t.Errorf("duplicate email err = %v, want ErrAlreadyExists", Classify(err))
	}
}
