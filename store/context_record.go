package store

// ContextType categorizes a context record.
type ContextType string

const (
	ContextTypeTemporal    ContextType = "temporal"
	ContextTypeSpatial     ContextType = "spatial"
	ContextTypeSituational ContextType = "situational"
	ContextTypeMeta        ContextType = "meta"
)

// MemoryTier determines persistence, decay, and retrieval characteristics.
type MemoryTier string

const (
	TierLongTerm  MemoryTier = "long_term"
	TierShortTerm MemoryTier = "short_term"
	TierEphemeral MemoryTier = "ephemeral"
)

// DriftStatus indicates the health and reliability of a record.
type DriftStatus string

const (
	DriftStable      DriftStatus = "stable"
	DriftDrifting    DriftStatus = "drifting"
	DriftConflicting DriftStatus = "conflicting"
	DriftStale       DriftStatus = "stale"
)

// ContextRecord is the primary working entity: one confidence-scored
// context value owned by a user. At most one active record exists per
// (user, type, key); further values become versions.
type ContextRecord struct {
	ID              string
	UserID          string
	Type            ContextType
	Tier            MemoryTier
	Key             string
	Value           map[string]any
	Interpretation  map[string]any
	Confidence      float64
	Source          string
	SourceDetails   map[string]any
	DriftStatus     DriftStatus
	ExpiresTs       *int64
	LastConfirmedTs *int64
	CorrectionCount int
	SessionID       *string
	IsActive        bool
	DeletedTs       *int64
	CreatedTs       int64
	UpdatedTs       int64
}

// IsExpired reports whether the record has passed its expiry, relative
// to the given unix timestamp.
func (c *ContextRecord) IsExpired(nowTs int64) bool {
	return c.ExpiresTs != nil && nowTs > *c.ExpiresTs
}

// FindContextRecord specifies the conditions for finding context records.
type FindContextRecord struct {
	ID             *string
	UserID         *string
	Type           *ContextType
	Tier           *MemoryTier
	Key            *string
	SessionID      *string
	OnlyActive     bool
	IncludeExpired bool
	// NowTs is the expiry reference time, required unless IncludeExpired.
	NowTs int64
	Limit *int
}

// UpdateContextRecord specifies an atomic record update. The driver
// applies the changed fields and appends the next version row in the
// same transaction.
type UpdateContextRecord struct {
	ID              string
	Value           map[string]any
	HasValue        bool
	Interpretation  map[string]any
	HasInterp       bool
	Confidence      *float64
	Source          *string
	DriftStatus     *DriftStatus
	ExpiresTs       *int64
	LastConfirmedTs *int64
	CorrectionCount *int
	UpdatedTs       int64

	// Version metadata recorded alongside the update.
	ChangedBy    string
	ChangeReason *string
}

// DeleteContextRecord specifies a delete. Soft deletes deactivate the
// record; hard deletes remove it and its versions.
type DeleteContextRecord struct {
	ID        string
	Soft      bool
	DeletedTs int64
}
