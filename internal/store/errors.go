package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/relcat/internal/catalog"
)

// Classify maps SQLite constraint failures to the catalog error taxonomy.
// Unique and foreign-key violations become IntegrityError; check and
// not-null violations become ValidationError. Other errors are returned
// unchanged.
func Classify(err error, row catalog.RowRef, field string) error {
	var serr sqlite3.Error
	if !errors.As(err, &serr) || serr.Code != sqlite3.ErrConstraint {
		return err
	}

	switch serr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return &catalog.IntegrityError{Row: row, Field: field, Message: "uniqueness violated", Err: err}
	case sqlite3.ErrConstraintForeignKey:
		return &catalog.IntegrityError{Row: row, Field: field, Message: "foreign key violated", Err: err}
	case sqlite3.ErrConstraintCheck:
		return &catalog.ValidationError{Row: row, Field: field, Message: serr.Error()}
	case sqlite3.ErrConstraintNotNull:
		return &catalog.ValidationError{Row: row, Field: field, Message: serr.Error()}
	default:
		return &catalog.IntegrityError{Row: row, Field: field, Message: "constraint violated", Err: err}
	}
}
