package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// marshalJSON serializes a map column, mapping nil to SQL NULL.
func marshalJSON(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	buf, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal json column: %w", err)
	}
	return sql.NullString{String: string(buf), Valid: true}, nil
}

// unmarshalJSON deserializes a nullable JSON column into a map.
func unmarshalJSON(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json column: %w", err)
	}
	return m, nil
}

// marshalStrings serializes a string slice column, mapping nil to NULL.
func marshalStrings(list []string) (sql.NullString, error) {
	if list == nil {
		return sql.NullString{}, nil
	}
	buf, err := json.Marshal(list)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal string list column: %w", err)
	}
	return sql.NullString{String: string(buf), Valid: true}, nil
}

// unmarshalStrings deserializes a nullable JSON array column.
func unmarshalStrings(s sql.NullString) ([]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s.String), &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal string list column: %w", err)
	}
	return list, nil
}
