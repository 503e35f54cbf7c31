package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/StrungPattern-coder/context/store"
)

const contextRecordFields = `id, user_id, type, tier, key, value, interpretation, confidence, source, source_details, drift_status, expires_ts, last_confirmed_ts, correction_count, session_id, is_active, deleted_ts, created_ts, updated_ts`

func (d *DB) CreateContextRecord(ctx context.Context, create *store.ContextRecord) (*store.ContextRecord, error) {
	if create.ID == "" {
		create.ID = uuid.NewString()
	}

	value, err := marshalJSON(create.Value)
	if err != nil {
		return nil, err
	}
	interpretation, err := marshalJSON(create.Interpretation)
	if err != nil {
		return nil, err
	}
	sourceDetails, err := marshalJSON(create.SourceDetails)
	if err != nil {
		return nil, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt := `INSERT INTO context (` + contextRecordFields + `)
		VALUES (` + placeholders(19) + `)`
	if _, err := tx.ExecContext(ctx, stmt,
		create.ID, create.UserID, create.Type, create.Tier, create.Key,
		value.String, interpretation, create.Confidence, create.Source, sourceDetails,
		create.DriftStatus, create.ExpiresTs, create.LastConfirmedTs, create.CorrectionCount,
		create.SessionID, create.IsActive, create.DeletedTs, create.CreatedTs, create.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create context record: %w", err)
	}

	// Initial version row.
	versionStmt := `INSERT INTO context_version (id, context_id, version, value, interpretation, confidence, previous_value, changed_by, change_reason, created_ts)
		VALUES (` + placeholders(10) + `)`
	if _, err := tx.ExecContext(ctx, versionStmt,
		uuid.NewString(), create.ID, 1, value.String, interpretation, create.Confidence,
		nil, create.Source, nil, create.CreatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create initial context version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit context record: %w", err)
	}

	return create, nil
}

func (d *DB) ListContextRecords(ctx context.Context, find *store.FindContextRecord) ([]*store.ContextRecord, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.Type != nil {
		where, args = append(where, "type = "+placeholder(len(args)+1)), append(args, *find.Type)
	}
	if find.Tier != nil {
		where, args = append(where, "tier = "+placeholder(len(args)+1)), append(args, *find.Tier)
	}
	if find.Key != nil {
		where, args = append(where, "key = "+placeholder(len(args)+1)), append(args, *find.Key)
	}
	if find.SessionID != nil {
		where, args = append(where, "session_id = "+placeholder(len(args)+1)), append(args, *find.SessionID)
	}
	if find.OnlyActive {
		where = append(where, "is_active = TRUE")
	}
	if !find.IncludeExpired {
		where, args = append(where, "(expires_ts IS NULL OR expires_ts >= "+placeholder(len(args)+1)+")"), append(args, find.NowTs)
	}

	query := `SELECT ` + contextRecordFields + ` FROM context WHERE ` + strings.Join(where, " AND ") + ` ORDER BY updated_ts DESC`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list context records: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ContextRecord, 0)
	for rows.Next() {
		record, err := scanContextRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate context records: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateContextRecord(ctx context.Context, update *store.UpdateContextRecord) (*store.ContextRecord, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	// The driver holds a single connection, so this transaction runs
	// alone: concurrent updates serialise and version numbers stay
	// gap-free.
	row := tx.QueryRowContext(ctx, `SELECT `+contextRecordFields+` FROM context WHERE id = ?`, update.ID)
	current, err := scanContextRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("context record %s not found: %w", update.ID, err)
		}
		return nil, err
	}

	previousValue := current.Value

	set, args := []string{}, []any{}
	if update.HasValue {
		value, err := marshalJSON(update.Value)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "value = "+placeholder(len(args)+1)), append(args, value.String)
		current.Value = update.Value
	}
	if update.HasInterp {
		interpretation, err := marshalJSON(update.Interpretation)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "interpretation = "+placeholder(len(args)+1)), append(args, interpretation)
		current.Interpretation = update.Interpretation
	}
	if update.Confidence != nil {
		set, args = append(set, "confidence = "+placeholder(len(args)+1)), append(args, *update.Confidence)
		current.Confidence = *update.Confidence
	}
	if update.Source != nil {
		set, args = append(set, "source = "+placeholder(len(args)+1)), append(args, *update.Source)
		current.Source = *update.Source
	}
	if update.DriftStatus != nil {
		set, args = append(set, "drift_status = "+placeholder(len(args)+1)), append(args, *update.DriftStatus)
		current.DriftStatus = *update.DriftStatus
	}
	if update.ExpiresTs != nil {
		set, args = append(set, "expires_ts = "+placeholder(len(args)+1)), append(args, *update.ExpiresTs)
		current.ExpiresTs = update.ExpiresTs
	}
	if update.LastConfirmedTs != nil {
		set, args = append(set, "last_confirmed_ts = "+placeholder(len(args)+1)), append(args, *update.LastConfirmedTs)
		current.LastConfirmedTs = update.LastConfirmedTs
	}
	if update.CorrectionCount != nil {
		set, args = append(set, "correction_count = "+placeholder(len(args)+1)), append(args, *update.CorrectionCount)
		current.CorrectionCount = *update.CorrectionCount
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, update.UpdatedTs)
	current.UpdatedTs = update.UpdatedTs

	args = append(args, update.ID)
	stmt := `UPDATE context SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to update context record: %w", err)
	}

	// Append the next version in the same transaction so a partial write
	// is never observable.
	var maxVersion int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM context_version WHERE context_id = ?`, update.ID).Scan(&maxVersion); err != nil {
		return nil, fmt.Errorf("failed to read max version: %w", err)
	}

	newValue, err := marshalJSON(current.Value)
	if err != nil {
		return nil, err
	}
	newInterp, err := marshalJSON(current.Interpretation)
	if err != nil {
		return nil, err
	}
	prevValue, err := marshalJSON(previousValue)
	if err != nil {
		return nil, err
	}

	versionStmt := `INSERT INTO context_version (id, context_id, version, value, interpretation, confidence, previous_value, changed_by, change_reason, created_ts)
		VALUES (` + placeholders(10) + `)`
	if _, err := tx.ExecContext(ctx, versionStmt,
		uuid.NewString(), update.ID, maxVersion+1, newValue.String, newInterp, current.Confidence,
		prevValue, update.ChangedBy, update.ChangeReason, update.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to append context version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit context record update: %w", err)
	}

	return current, nil
}

func (d *DB) DeleteContextRecord(ctx context.Context, delete *store.DeleteContextRecord) error {
	if delete.Soft {
		stmt := `UPDATE context SET is_active = FALSE, deleted_ts = ?1, updated_ts = ?1 WHERE id = ?2`
		if _, err := d.db.ExecContext(ctx, stmt, delete.DeletedTs, delete.ID); err != nil {
			return fmt.Errorf("failed to soft delete context record: %w", err)
		}
		return nil
	}

	if _, err := d.db.ExecContext(ctx, `DELETE FROM context WHERE id = ?`, delete.ID); err != nil {
		return fmt.Errorf("failed to delete context record: %w", err)
	}
	return nil
}

func (d *DB) DeleteExpiredContextRecords(ctx context.Context, nowTs int64) (int, error) {
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM context WHERE tier = ? AND expires_ts IS NOT NULL AND expires_ts < ?`,
		store.TierEphemeral, nowTs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired context records: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted context records: %w", err)
	}
	return int(affected), nil
}

func (d *DB) DecayContextRecords(ctx context.Context, cutoffTs int64, factor, floor float64) (int, error) {
	result, err := d.db.ExecContext(ctx, `
		UPDATE context SET confidence = MAX(?, confidence * ?), drift_status = ?
		WHERE tier = ? AND is_active = TRUE AND updated_ts < ?`,
		floor, factor, store.DriftStale, store.TierShortTerm, cutoffTs)
	if err != nil {
		return 0, fmt.Errorf("failed to decay context records: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count decayed context records: %w", err)
	}
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContextRecord(row rowScanner) (*store.ContextRecord, error) {
	record := &store.ContextRecord{}
	var value, interpretation, sourceDetails sql.NullString
	var expiresTs, lastConfirmedTs, deletedTs sql.NullInt64
	var sessionID sql.NullString

	if err := row.Scan(
		&record.ID, &record.UserID, &record.Type, &record.Tier, &record.Key,
		&value, &interpretation, &record.Confidence, &record.Source, &sourceDetails,
		&record.DriftStatus, &expiresTs, &lastConfirmedTs, &record.CorrectionCount,
		&sessionID, &record.IsActive, &deletedTs, &record.CreatedTs, &record.UpdatedTs,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan context record: %w", err)
	}

	var err error
	if record.Value, err = unmarshalJSON(value); err != nil {
		return nil, err
	}
	if record.Interpretation, err = unmarshalJSON(interpretation); err != nil {
		return nil, err
	}
	if record.SourceDetails, err = unmarshalJSON(sourceDetails); err != nil {
		return nil, err
	}
	if expiresTs.Valid {
		record.ExpiresTs = &expiresTs.Int64
	}
	if lastConfirmedTs.Valid {
		record.LastConfirmedTs = &lastConfirmedTs.Int64
	}
	if sessionID.Valid {
		record.SessionID = &sessionID.String
	}
	if deletedTs.Valid {
		record.DeletedTs = &deletedTs.Int64
	}

	return record, nil
}

// SetContextDriftStatus leaves updated_ts untouched: bumping it would
// reset the record's staleness age and make detection non-idempotent.
func (d *DB) SetContextDriftStatus(ctx context.Context, id string, status store.DriftStatus, _ int64) error {
	if _, err := d.db.ExecContext(ctx,
		`UPDATE context SET drift_status = ? WHERE id = ?`,
		status, id); err != nil {
		return fmt.Errorf("failed to set drift status: %w", err)
	}
	return nil
}
