package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/StrungPattern-coder/context/store"
)

func (d *DB) CreateTenant(ctx context.Context, create *store.Tenant) (*store.Tenant, error) {
	if create.ID == "" {
		create.ID = uuid.NewString()
	}
	settings, err := marshalJSON(create.Settings)
	if err != nil {
		return nil, err
	}

	stmt := `INSERT INTO tenant (id, slug, api_key, secondary_api_key, is_active, settings, requests_per_minute, created_ts, updated_ts)
		VALUES (` + placeholders(9) + `)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID, create.Slug, create.APIKey, create.SecondaryAPIKey, create.IsActive,
		settings, create.RequestsPerMinute, create.CreatedTs, create.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return create, nil
}

func (d *DB) ListTenants(ctx context.Context, find *store.FindTenant) ([]*store.Tenant, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Slug != nil {
		where, args = append(where, "slug = "+placeholder(len(args)+1)), append(args, *find.Slug)
	}
	if find.APIKey != nil {
		// Two markers, so the key binds twice.
		where, args = append(where, "(api_key = "+placeholder(len(args)+1)+" OR secondary_api_key = "+placeholder(len(args)+2)+")"), append(args, *find.APIKey, *find.APIKey)
	}

	query := `SELECT id, slug, api_key, secondary_api_key, is_active, settings, requests_per_minute, created_ts, updated_ts
		FROM tenant WHERE ` + strings.Join(where, " AND ")
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Tenant, 0)
	for rows.Next() {
		tenant := &store.Tenant{}
		var secondaryAPIKey, settings sql.NullString
		if err := rows.Scan(
			&tenant.ID, &tenant.Slug, &tenant.APIKey, &secondaryAPIKey, &tenant.IsActive,
			&settings, &tenant.RequestsPerMinute, &tenant.CreatedTs, &tenant.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		if secondaryAPIKey.Valid {
			tenant.SecondaryAPIKey = &secondaryAPIKey.String
		}
		if tenant.Settings, err = unmarshalJSON(settings); err != nil {
			return nil, err
		}
		list = append(list, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateTenant(ctx context.Context, update *store.UpdateTenant) (*store.Tenant, error) {
	set, args := []string{}, []any{}

	if update.Slug != nil {
		set, args = append(set, "slug = "+placeholder(len(args)+1)), append(args, *update.Slug)
	}
	if update.SecondaryAPIKey != nil {
		set, args = append(set, "secondary_api_key = "+placeholder(len(args)+1)), append(args, *update.SecondaryAPIKey)
	}
	if update.IsActive != nil {
		set, args = append(set, "is_active = "+placeholder(len(args)+1)), append(args, *update.IsActive)
	}
	if update.Settings != nil {
		settings, err := marshalJSON(update.Settings)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "settings = "+placeholder(len(args)+1)), append(args, settings)
	}
	if update.RequestsPerMinute != nil {
		set, args = append(set, "requests_per_minute = "+placeholder(len(args)+1)), append(args, *update.RequestsPerMinute)
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, update.UpdatedTs)

	args = append(args, update.ID)
	stmt := `UPDATE tenant SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}

	list, err := d.ListTenants(ctx, &store.FindTenant{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, sql.ErrNoRows
	}
	return list[0], nil
}

func (d *DB) DeleteTenant(ctx context.Context, id string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM tenant WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	return nil
}
