package postgres

import (
	"database/sql"
	"time"
)

const dateLayout = "2006-01-02"

// scanner is satisfied by *sql.Rows and *Row.
type scanner interface {
	Scan(dest ...any) error
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

func intPtr(n sql.NullInt32) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int32)
	return &v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	return &nt.Time
}

// datePtr renders a DATE column as YYYY-MM-DD.
func datePtr(nt sql.NullTime) *string {
	if !nt.Valid {
		return nil
	}
	s := nt.Time.Format(dateLayout)
	return &s
}
