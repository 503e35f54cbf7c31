package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/StrungPattern-coder/context/store"
)

func (d *DB) ListContextVersions(ctx context.Context, find *store.FindContextVersion) ([]*store.ContextVersion, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ContextID != nil {
		where, args = append(where, "context_id = "+placeholder(len(args)+1)), append(args, *find.ContextID)
	}
	if find.Version != nil {
		where, args = append(where, "version = "+placeholder(len(args)+1)), append(args, *find.Version)
	}

	query := `SELECT id, context_id, version, value, interpretation, confidence, previous_value, changed_by, change_reason, created_ts
		FROM context_version WHERE ` + strings.Join(where, " AND ") + ` ORDER BY version DESC`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list context versions: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ContextVersion, 0)
	for rows.Next() {
		v := &store.ContextVersion{}
		var value, interpretation, previousValue sql.NullString
		var changeReason sql.NullString
		if err := rows.Scan(
			&v.ID, &v.ContextID, &v.Version, &value, &interpretation,
			&v.Confidence, &previousValue, &v.ChangedBy, &changeReason, &v.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan context version: %w", err)
		}
		if v.Value, err = unmarshalJSON(value); err != nil {
			return nil, err
		}
		if v.Interpretation, err = unmarshalJSON(interpretation); err != nil {
			return nil, err
		}
		if v.PreviousValue, err = unmarshalJSON(previousValue); err != nil {
			return nil, err
		}
		if changeReason.Valid {
			v.ChangeReason = &changeReason.String
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate context versions: %w", err)
	}

	return list, nil
}
