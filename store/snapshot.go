package store

// ContextSnapshot is an immutable point-in-time capture of a user's
// context, identified by a semantic version.
type ContextSnapshot struct {
	ID          string
	UserID      string
	Major       int
	Minor       int
	Patch       int
	Trigger     string
	ParentID    *string
	ContextMaps map[string]any
	Checksum    string
	Description *string
	Tags        []string
	CreatedTs   int64
}

// FindContextSnapshot specifies the conditions for finding snapshots.
type FindContextSnapshot struct {
	ID     *string
	UserID *string
	Major  *int
	Minor  *int
	Patch  *int
	Limit  *int
}
