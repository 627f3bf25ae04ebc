package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// IsTransient reports database errors worth retrying as a whole
// transaction: serialization failures, deadlocks and lost connections.
func IsTransient(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "40", "08":
		return true
	}
	return pqErr.Code == "57P01" // admin_shutdown
}

// IsUniqueViolation reports a duplicate key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}
