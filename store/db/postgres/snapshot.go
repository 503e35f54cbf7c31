package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/StrungPattern-coder/context/store"
)

const snapshotFields = `id, user_id, major, minor, patch, trigger_reason, parent_id, context_maps, checksum, description, tags, created_ts`

func (d *DB) CreateContextSnapshot(ctx context.Context, create *store.ContextSnapshot) (*store.ContextSnapshot, error) {
	if create.ID == "" {
		create.ID = uuid.NewString()
	}
	maps, err := marshalJSON(create.ContextMaps)
	if err != nil {
		return nil, err
	}
	tags, err := marshalStrings(create.Tags)
	if err != nil {
		return nil, err
	}

	stmt := `INSERT INTO context_snapshot (` + snapshotFields + `) VALUES (` + placeholders(12) + `)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID, create.UserID, create.Major, create.Minor, create.Patch,
		create.Trigger, create.ParentID, maps.String, create.Checksum,
		create.Description, tags, create.CreatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create context snapshot: %w", err)
	}
	return create, nil
}

func (d *DB) ListContextSnapshots(ctx context.Context, find *store.FindContextSnapshot) ([]*store.ContextSnapshot, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.Major != nil {
		where, args = append(where, "major = "+placeholder(len(args)+1)), append(args, *find.Major)
	}
	if find.Minor != nil {
		where, args = append(where, "minor = "+placeholder(len(args)+1)), append(args, *find.Minor)
	}
	if find.Patch != nil {
		where, args = append(where, "patch = "+placeholder(len(args)+1)), append(args, *find.Patch)
	}

	query := `SELECT ` + snapshotFields + ` FROM context_snapshot WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC, major DESC, minor DESC, patch DESC`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list context snapshots: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ContextSnapshot, 0)
	for rows.Next() {
		snapshot := &store.ContextSnapshot{}
		var parentID, maps, description, tags sql.NullString
		if err := rows.Scan(
			&snapshot.ID, &snapshot.UserID, &snapshot.Major, &snapshot.Minor, &snapshot.Patch,
			&snapshot.Trigger, &parentID, &maps, &snapshot.Checksum, &description, &tags, &snapshot.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan context snapshot: %w", err)
		}
		if parentID.Valid {
			snapshot.ParentID = &parentID.String
		}
		if snapshot.ContextMaps, err = unmarshalJSON(maps); err != nil {
			return nil, err
		}
		if description.Valid {
			snapshot.Description = &description.String
		}
		if snapshot.Tags, err = unmarshalStrings(tags); err != nil {
			return nil, err
		}
		list = append(list, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate context snapshots: %w", err)
	}

	return list, nil
}

func (d *DB) PruneContextSnapshots(ctx context.Context, userID string, keep int) (int, error) {
	result, err := d.db.ExecContext(ctx, `
		DELETE FROM context_snapshot WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM context_snapshot WHERE user_id = $1 ORDER BY created_ts DESC, major DESC, minor DESC, patch DESC LIMIT $2
		)`, userID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune context snapshots: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned context snapshots: %w", err)
	}
	return int(affected), nil
}
