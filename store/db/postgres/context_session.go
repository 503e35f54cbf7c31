package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/StrungPattern-coder/context/store"
)

func (d *DB) CreateContextSession(ctx context.Context, create *store.ContextSession) (*store.ContextSession, error) {
	if create.ID == "" {
		create.ID = uuid.NewString()
	}
	clientInfo, err := marshalJSON(create.ClientInfo)
	if err != nil {
		return nil, err
	}
	snapshot, err := marshalJSON(create.ContextSnapshot)
	if err != nil {
		return nil, err
	}

	stmt := `INSERT INTO context_session (id, user_id, session_id, started_ts, last_activity_ts, ended_ts, client_info, context_snapshot)
		VALUES (` + placeholders(8) + `)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID, create.UserID, create.SessionID, create.StartedTs, create.LastActivityTs,
		create.EndedTs, clientInfo, snapshot,
	); err != nil {
		return nil, fmt.Errorf("failed to create context session: %w", err)
	}
	return create, nil
}

func (d *DB) ListContextSessions(ctx context.Context, find *store.FindContextSession) ([]*store.ContextSession, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.SessionID != nil {
		where, args = append(where, "session_id = "+placeholder(len(args)+1)), append(args, *find.SessionID)
	}
	if find.OnlyActive {
		where = append(where, "ended_ts IS NULL")
	}

	query := `SELECT id, user_id, session_id, started_ts, last_activity_ts, ended_ts, client_info, context_snapshot
		FROM context_session WHERE ` + strings.Join(where, " AND ") + ` ORDER BY started_ts DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list context sessions: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ContextSession, 0)
	for rows.Next() {
		session := &store.ContextSession{}
		var endedTs sql.NullInt64
		var clientInfo, snapshot sql.NullString
		if err := rows.Scan(
			&session.ID, &session.UserID, &session.SessionID, &session.StartedTs,
			&session.LastActivityTs, &endedTs, &clientInfo, &snapshot,
		); err != nil {
			return nil, fmt.Errorf("failed to scan context session: %w", err)
		}
		if endedTs.Valid {
			session.EndedTs = &endedTs.Int64
		}
		if session.ClientInfo, err = unmarshalJSON(clientInfo); err != nil {
			return nil, err
		}
		if session.ContextSnapshot, err = unmarshalJSON(snapshot); err != nil {
			return nil, err
		}
		list = append(list, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate context sessions: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateContextSession(ctx context.Context, update *store.UpdateContextSession) (*store.ContextSession, error) {
	set, args := []string{}, []any{}

	if update.LastActivityTs != nil {
		set, args = append(set, "last_activity_ts = "+placeholder(len(args)+1)), append(args, *update.LastActivityTs)
	}
	if update.EndedTs != nil {
		set, args = append(set, "ended_ts = "+placeholder(len(args)+1)), append(args, *update.EndedTs)
	}
	if update.ContextSnapshot != nil {
		snapshot, err := marshalJSON(update.ContextSnapshot)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "context_snapshot = "+placeholder(len(args)+1)), append(args, snapshot)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update for session %s", update.SessionID)
	}

	args = append(args, update.SessionID)
	stmt := `UPDATE context_session SET ` + strings.Join(set, ", ") + ` WHERE session_id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to update context session: %w", err)
	}

	list, err := d.ListContextSessions(ctx, &store.FindContextSession{SessionID: &update.SessionID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, sql.ErrNoRows
	}
	return list[0], nil
}
