// Package repository persists events, seat locks, invitations and waitlist
// entries.  Two implementations of Store exist: MySQLStore backed by
// database/sql and MemoryStore for tests and single-process deployments.
// Both return the sentinel values below so that the reservation layer can
// tell failure scenarios apart without knowing which store it talks to.
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed event or record does not
// exist.  Handlers translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness rule, such as
// two active occupants for one seat or a second waitlist record for the
// same user.  Handlers translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is the server error number for a UNIQUE violation.
const mysqlDuplicateEntry = 1062

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
    if err == nil {
        return nil
    }
    var me *mysql.MySQLError
    if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
        return ErrConflict
    }
    return err
}
