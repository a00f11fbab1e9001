// Package repository defines the data access layer.  Repositories speak in
// plain model records and return the sentinel errors below so higher layers
// never have to inspect driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrUserNotFound is returned when no user matches a lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser is returned when a username or email is already
	// registered.
	ErrDuplicateUser = errors.New("username or email already exists")

	// ErrCalculationNotFound is returned when a calculation does not exist
	// or belongs to another user.  The two cases are
	// indistinguishable.
	ErrCalculationNotFound = errors.New("calculation not found")
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
