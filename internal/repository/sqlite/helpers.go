package sqlite

import "database/sql"

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func optionalString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func emptyToNull(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 500
	}
	return limit
}
