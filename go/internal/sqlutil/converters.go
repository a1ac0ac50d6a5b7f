package sqlutil

import (
	"database/sql"
)

// Helpers for converting between optional program fields and sql.Null* types.
// Empty strings and nil pointers are stored as NULL.

// ToNullString converts an optional string to sql.NullString
func ToNullString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}

// FromNullString converts sql.NullString to a string, empty when NULL
func FromNullString(val sql.NullString) string {
	if !val.Valid {
		return ""
	}
	return val.String
}

// ToNullInt32 converts a Go int pointer to sql.NullInt32
func ToNullInt32(val *int) sql.NullInt32 {
	if val == nil {
		return sql.NullInt32{Valid: false}
	}
	return sql.NullInt32{Int32: int32(*val), Valid: true}
}

// FromNullInt32 converts sql.NullInt32 to a Go int pointer
func FromNullInt32(val sql.NullInt32) *int {
	if !val.Valid {
		return nil
	}
	i := int(val.Int32)
	return &i
}
