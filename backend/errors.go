package backend

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ProvisioningError indicates that a backend could not be started or torn
// down.
type ProvisioningError struct {
	Kind  Kind
	Cause error
}

func (e ProvisioningError) Error() string {
	return fmt.Sprintf("cannot provision %s backend: %s", e.Kind, e.Cause)
}

func (e ProvisioningError) Unwrap() error {
	return e.Cause
}

// ConnectionError indicates that a client could not connect to a backend, or
// was disconnected unexpectedly.
type ConnectionError struct {
	Kind  Kind
	Cause error
}

func (e ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s backend: %s", e.Kind, e.Cause)
}

func (e ConnectionError) Unwrap() error {
	return e.Cause
}

// QueryError indicates that a SQL statement failed to execute.
type QueryError struct {
	Cause error
}

func (e QueryError) Error() string {
	return fmt.Sprintf("cannot execute query: %s", e.Cause)
}

func (e QueryError) Unwrap() error {
	return e.Cause
}

// schemaAbsencePattern matches the error text produced by PostgreSQL (and
// PostgreSQL-compatible engines) when a query refers to a relation that has
// never been created.
var schemaAbsencePattern = regexp.MustCompile(`(?i)relation .+ does not exist`)

// IsSchemaAbsence reports whether err was caused by querying a relation that
// does not exist.
//
// It recognizes the UNDEFINED TABLE error code when the server reports one,
// and falls back to a case-insensitive match on the message text.
func IsSchemaAbsence(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UndefinedTable
	}

	return schemaAbsencePattern.MatchString(err.Error())
}

// IgnoreSchemaAbsence returns nil if err was caused by querying a relation
// that does not exist. Otherwise it returns err unchanged.
func IgnoreSchemaAbsence(err error) error {
	if IsSchemaAbsence(err) {
		return nil
	}
	return err
}
