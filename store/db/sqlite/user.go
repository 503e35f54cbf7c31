package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/StrungPattern-coder/context/store"
)

const userFields = `id, tenant_id, external_id, email, password_hash, display_name, default_timezone, default_locale, default_country, allow_location, allow_situational, preferences, created_ts, updated_ts`

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	if create.ID == "" {
		create.ID = uuid.NewString()
	}
	preferences, err := marshalJSON(create.Preferences)
	if err != nil {
		return nil, err
	}

	stmt := `INSERT INTO "user" (` + userFields + `) VALUES (` + placeholders(14) + `)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID, create.TenantID, create.ExternalID, create.Email, create.PasswordHash,
		create.DisplayName, create.DefaultTimezone, create.DefaultLocale, create.DefaultCountry,
		create.AllowLocation, create.AllowSituational, preferences, create.CreatedTs, create.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return create, nil
}

func (d *DB) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.TenantID != nil {
		where, args = append(where, "tenant_id = "+placeholder(len(args)+1)), append(args, *find.TenantID)
	}
	if find.ExternalID != nil {
		where, args = append(where, "external_id = "+placeholder(len(args)+1)), append(args, *find.ExternalID)
	}

	query := `SELECT ` + userFields + ` FROM "user" WHERE ` + strings.Join(where, " AND ")
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	list := make([]*store.User, 0)
	for rows.Next() {
		user := &store.User{}
		var email, passwordHash, displayName, preferences sql.NullString
		if err := rows.Scan(
			&user.ID, &user.TenantID, &user.ExternalID, &email, &passwordHash,
			&displayName, &user.DefaultTimezone, &user.DefaultLocale, &user.DefaultCountry,
			&user.AllowLocation, &user.AllowSituational, &preferences, &user.CreatedTs, &user.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if email.Valid {
			user.Email = &email.String
		}
		if passwordHash.Valid {
			user.PasswordHash = &passwordHash.String
		}
		if displayName.Valid {
			user.DisplayName = &displayName.String
		}
		if user.Preferences, err = unmarshalJSON(preferences); err != nil {
			return nil, err
		}
		list = append(list, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateUser(ctx context.Context, update *store.UpdateUser) (*store.User, error) {
	set, args := []string{}, []any{}

	if update.Email != nil {
		set, args = append(set, "email = "+placeholder(len(args)+1)), append(args, *update.Email)
	}
	if update.DisplayName != nil {
		set, args = append(set, "display_name = "+placeholder(len(args)+1)), append(args, *update.DisplayName)
	}
	if update.DefaultTimezone != nil {
		set, args = append(set, "default_timezone = "+placeholder(len(args)+1)), append(args, *update.DefaultTimezone)
	}
	if update.DefaultLocale != nil {
		set, args = append(set, "default_locale = "+placeholder(len(args)+1)), append(args, *update.DefaultLocale)
	}
	if update.DefaultCountry != nil {
		set, args = append(set, "default_country = "+placeholder(len(args)+1)), append(args, *update.DefaultCountry)
	}
	if update.AllowLocation != nil {
		set, args = append(set, "allow_location = "+placeholder(len(args)+1)), append(args, *update.AllowLocation)
	}
	if update.AllowSituational != nil {
		set, args = append(set, "allow_situational = "+placeholder(len(args)+1)), append(args, *update.AllowSituational)
	}
	if update.Preferences != nil {
		preferences, err := marshalJSON(update.Preferences)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "preferences = "+placeholder(len(args)+1)), append(args, preferences)
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, update.UpdatedTs)

	args = append(args, update.ID)
	stmt := `UPDATE "user" SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	list, err := d.ListUsers(ctx, &store.FindUser{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, sql.ErrNoRows
	}
	return list[0], nil
}

func (d *DB) DeleteUser(ctx context.Context, id string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
