package store

// User is a tenant-scoped end user whose context the core manages.
type User struct {
	ID           string
	TenantID     string
	ExternalID   string
	Email        *string
	PasswordHash *string
	DisplayName  *string

	// Defaults used when a request carries no explicit signals.
	DefaultTimezone string
	DefaultLocale   string
	DefaultCountry  string

	// Privacy switches. Location resolution is consent-gated.
	AllowLocation    bool
	AllowSituational bool

	Preferences map[string]any
	CreatedTs   int64
	UpdatedTs   int64
}

// FindUser specifies the conditions for finding users.
type FindUser struct {
	ID         *string
	TenantID   *string
	ExternalID *string
}

// UpdateUser specifies the data for updating a user.
type UpdateUser struct {
	ID               string
	Email            *string
	DisplayName      *string
	DefaultTimezone  *string
	DefaultLocale    *string
	DefaultCountry   *string
	AllowLocation    *bool
	AllowSituational *bool
	Preferences      map[string]any
	UpdatedTs        int64
}
