// Package memory is the tiered per-user context store service. All
// record mutation flows through it so the version invariant holds.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/StrungPattern-coder/context/store"
)

// Config carries the memory service tuning knobs with documented
// defaults.
type Config struct {
	// DecayThreshold is the age after which short-term confidence decays.
	DecayThreshold time.Duration
	// DecayFactor multiplies confidence during a decay sweep.
	DecayFactor float64
	// ConfidenceFloor is the hard lower bound after decay.
	ConfidenceFloor float64
	// EphemeralTTL is the default lifetime of ephemeral records.
	EphemeralTTL time.Duration
	// ConflictStrategy resolves same-key collisions between sources.
	ConflictStrategy Strategy
	// CacheSize and CacheTTL bound the per-user active-set cache.
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		DecayThreshold:   24 * time.Hour,
		DecayFactor:      0.95,
		ConfidenceFloor:  0.1,
		EphemeralTTL:     time.Hour,
		ConflictStrategy: UserWins,
		CacheSize:        2048,
		CacheTTL:         5 * time.Minute,
	}
}

// Service implements the tiered context memory over the store.
type Service struct {
	store  *store.Store
	config Config

	// userCache holds per-user active sets and recordCache single
	// records, both with a short TTL; every mutation invalidates the
	// touched entries. Correctness never depends on either.
	userCache   *lru.LRU[string, []*store.ContextRecord]
	recordCache *lru.LRU[string, *store.ContextRecord]

	now func() time.Time
}

// NewService creates a memory service.
func NewService(st *store.Store, config Config) *Service {
	if config.DecayThreshold <= 0 {
		config.DecayThreshold = 24 * time.Hour
	}
	if config.DecayFactor <= 0 || config.DecayFactor >= 1 {
		config.DecayFactor = 0.95
	}
	if config.ConfidenceFloor <= 0 {
		config.ConfidenceFloor = 0.1
	}
	if config.EphemeralTTL <= 0 {
		config.EphemeralTTL = time.Hour
	}
	if config.ConflictStrategy == "" {
		config.ConflictStrategy = UserWins
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 2048
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}

	return &Service{
		store:       st,
		config:      config,
		userCache:   lru.NewLRU[string, []*store.ContextRecord](config.CacheSize, nil, config.CacheTTL),
		recordCache: lru.NewLRU[string, *store.ContextRecord](config.CacheSize, nil, config.CacheTTL),
		now:         time.Now,
	}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// StoreParams describes a context write.
type StoreParams struct {
	UserID         string
	Type           store.ContextType
	Key            string
	Value          map[string]any
	Tier           store.MemoryTier
	Confidence     float64
	Source         string
	SourceDetails  map[string]any
	Interpretation map[string]any
	SessionID      *string
	// TTL overrides the default ephemeral lifetime; ignored for other
	// tiers.
	TTL time.Duration
}

// Store writes a context value. If an active record already exists for
// (user, type, key) the collision is resolved against the configured
// strategy and the result is applied through Update; otherwise a new
// record is inserted with version 1.
func (s *Service) Store(ctx context.Context, p StoreParams) (*store.ContextRecord, error) {
	if p.UserID == "" || p.Key == "" {
		return nil, fmt.Errorf("userId and key are required")
	}
	if p.Tier == "" {
		p.Tier = store.TierShortTerm
	}
	if p.Source == "" {
		p.Source = "inference"
	}
	p.Confidence = clampConfidence(p.Confidence)

	now := s.now()
	nowTs := now.Unix()

	existing, err := s.activeRecord(ctx, p.UserID, p.Type, p.Key, nowTs)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsExpired(nowTs) {
		// An expired row still holds the active slot until cleanup runs;
		// clear it so the insert below does not collide.
		if err := s.store.DeleteContextRecord(ctx, &store.DeleteContextRecord{
			ID: existing.ID, DeletedTs: nowTs,
		}); err != nil {
			return nil, fmt.Errorf("failed to clear expired context: %w", err)
		}
		existing = nil
	}
	if existing != nil {
		resolution := ResolveConflict(existing, Incoming{
			Value:      p.Value,
			Source:     p.Source,
			Confidence: p.Confidence,
			CreatedTs:  nowTs,
		}, s.config.ConflictStrategy)

		slog.Debug("context conflict resolved",
			"key", p.Key,
			"strategy", resolution.Strategy,
			"explanation", resolution.Explanation)

		winningSource := resolution.Source
		reason := resolution.Explanation
		confidence := clampConfidence(maxFloat(existing.Confidence, p.Confidence))
		return s.Update(ctx, existing.ID, UpdateParams{
			Value:          resolution.Value,
			HasValue:       true,
			Interpretation: p.Interpretation,
			HasInterp:      p.Interpretation != nil,
			Confidence:     &confidence,
			Source:         winningSource,
			ChangeReason:   &reason,
		})
	}

	record := &store.ContextRecord{
		UserID:          p.UserID,
		Type:            p.Type,
		Tier:            p.Tier,
		Key:             p.Key,
		Value:           p.Value,
		Interpretation:  p.Interpretation,
		Confidence:      p.Confidence,
		Source:          p.Source,
		SourceDetails:   p.SourceDetails,
		DriftStatus:     store.DriftStable,
		SessionID:       p.SessionID,
		IsActive:        true,
		CorrectionCount: 0,
		CreatedTs:       nowTs,
		UpdatedTs:       nowTs,
	}

	// Ephemeral records always carry an expiry, set at creation.
	if p.Tier == store.TierEphemeral {
		ttl := p.TTL
		if ttl <= 0 {
			ttl = s.config.EphemeralTTL
		}
		expires := now.Add(ttl).Unix()
		record.ExpiresTs = &expires
	}

	created, err := s.store.CreateContextRecord(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to store context: %w", err)
	}
	s.invalidate(p.UserID)
	return created, nil
}

// UpdateParams describes a record update.
type UpdateParams struct {
	Value          map[string]any
	HasValue       bool
	Interpretation map[string]any
	HasInterp      bool
	Confidence     *float64
	Source         string
	ChangeReason   *string
}

// Update applies changes to a record and appends the next version
// atomically. A partial write is never observable.
func (s *Service) Update(ctx context.Context, contextID string, p UpdateParams) (*store.ContextRecord, error) {
	record, err := s.GetByID(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("context %s: %w", contextID, ErrNotFound)
	}

	changedBy := p.Source
	if changedBy == "" {
		changedBy = record.Source
	}

	update := &store.UpdateContextRecord{
		ID:           contextID,
		Value:        p.Value,
		HasValue:     p.HasValue,
		Interpretation: p.Interpretation,
		HasInterp:    p.HasInterp,
		UpdatedTs:    s.now().Unix(),
		ChangedBy:    changedBy,
		ChangeReason: p.ChangeReason,
	}
	if p.Confidence != nil {
		clamped := clampConfidence(*p.Confidence)
		update.Confidence = &clamped
	}
	if p.Source != "" {
		update.Source = &p.Source
	}

	updated, err := s.store.UpdateContextRecord(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update context: %w", err)
	}
	s.invalidateRecord(updated.UserID, updated.ID)
	return updated, nil
}

// GetByID returns the record if it is active and unexpired.
func (s *Service) GetByID(ctx context.Context, contextID string) (*store.ContextRecord, error) {
	if cached, ok := s.recordCache.Get(contextID); ok {
		// Expiry is re-checked so a cached ephemeral record still
		// disappears from reads on time.
		if !cached.IsExpired(s.now().Unix()) {
			return cached, nil
		}
		s.recordCache.Remove(contextID)
	}

	list, err := s.store.ListContextRecords(ctx, &store.FindContextRecord{
		ID:         &contextID,
		OnlyActive: true,
		NowTs:      s.now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get context: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	s.recordCache.Add(contextID, list[0])
	return list[0], nil
}

// GetByUserAndType returns the active records of one type for a user.
func (s *Service) GetByUserAndType(ctx context.Context, userID string, contextType store.ContextType) ([]*store.ContextRecord, error) {
	return s.ListForUser(ctx, userID, ListFilters{Type: &contextType})
}

// ListFilters narrow a per-user listing.
type ListFilters struct {
	Type           *store.ContextType
	Tier           *store.MemoryTier
	IncludeExpired bool
}

// ListForUser returns a user's active records, expired ephemeral
// records lazily filtered unless requested.
func (s *Service) ListForUser(ctx context.Context, userID string, filters ListFilters) ([]*store.ContextRecord, error) {
	// The unfiltered active set is cache-backed.
	if filters.Type == nil && filters.Tier == nil && !filters.IncludeExpired {
		if cached, ok := s.userCache.Get(userID); ok {
			// Expiry is re-checked so a cached ephemeral record still
			// disappears from reads on time.
			nowTs := s.now().Unix()
			fresh := true
			for _, record := range cached {
				if record.IsExpired(nowTs) {
					fresh = false
					break
				}
			}
			if fresh {
				return cached, nil
			}
			s.userCache.Remove(userID)
		}
	}

	list, err := s.store.ListContextRecords(ctx, &store.FindContextRecord{
		UserID:         &userID,
		Type:           filters.Type,
		Tier:           filters.Tier,
		OnlyActive:     true,
		IncludeExpired: filters.IncludeExpired,
		NowTs:          s.now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}

	if filters.Type == nil && filters.Tier == nil && !filters.IncludeExpired {
		s.userCache.Add(userID, list)
	}
	return list, nil
}

// Delete removes a record. Soft deletion deactivates it.
func (s *Service) Delete(ctx context.Context, contextID string, soft bool) error {
	record, err := s.GetByID(ctx, contextID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("context %s: %w", contextID, ErrNotFound)
	}

	if err := s.store.DeleteContextRecord(ctx, &store.DeleteContextRecord{
		ID:        contextID,
		Soft:      soft,
		DeletedTs: s.now().Unix(),
	}); err != nil {
		return fmt.Errorf("failed to delete context: %w", err)
	}
	s.invalidateRecord(record.UserID, contextID)
	return nil
}

// Confirm marks a record as user-confirmed: confidence rises by 0.2
// (clamped before write) and drift resets to stable.
func (s *Service) Confirm(ctx context.Context, contextID string) (*store.ContextRecord, error) {
	record, err := s.GetByID(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("context %s: %w", contextID, ErrNotFound)
	}

	nowTs := s.now().Unix()
	confidence := clampConfidence(record.Confidence + 0.2)
	status := store.DriftStable
	source := "user_confirmation"
	reason := "confirmed by user"

	updated, err := s.store.UpdateContextRecord(ctx, &store.UpdateContextRecord{
		ID:              contextID,
		Confidence:      &confidence,
		DriftStatus:     &status,
		LastConfirmedTs: &nowTs,
		UpdatedTs:       nowTs,
		ChangedBy:       source,
		ChangeReason:    &reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to confirm context: %w", err)
	}
	s.invalidateRecord(updated.UserID, updated.ID)
	return updated, nil
}

// RecordCorrection applies a user correction: the new value is written
// through Update with source "user_correction", confidence drops by
// 0.2, and the third correction forces the conflicting status.
func (s *Service) RecordCorrection(ctx context.Context, contextID string, newValue map[string]any) (*store.ContextRecord, error) {
	record, err := s.GetByID(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("context %s: %w", contextID, ErrNotFound)
	}

	corrections := record.CorrectionCount + 1
	confidence := clampConfidence(record.Confidence - 0.2)
	source := "user_correction"
	reason := fmt.Sprintf("user correction #%d", corrections)

	update := &store.UpdateContextRecord{
		ID:              contextID,
		Value:           newValue,
		HasValue:        true,
		Confidence:      &confidence,
		Source:          &source,
		CorrectionCount: &corrections,
		UpdatedTs:       s.now().Unix(),
		ChangedBy:       source,
		ChangeReason:    &reason,
	}
	if corrections >= 3 {
		status := store.DriftConflicting
		update.DriftStatus = &status
	}

	updated, err := s.store.UpdateContextRecord(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("failed to record correction: %w", err)
	}
	s.invalidateRecord(updated.UserID, updated.ID)
	return updated, nil
}

// SetDriftStatus writes a drift transition for a record. Status is
// derived state; no version row is appended.
func (s *Service) SetDriftStatus(ctx context.Context, contextID string, status store.DriftStatus) error {
	record, err := s.GetByID(ctx, contextID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("context %s: %w", contextID, ErrNotFound)
	}
	if err := s.store.SetContextDriftStatus(ctx, contextID, status, s.now().Unix()); err != nil {
		return fmt.Errorf("failed to set drift status: %w", err)
	}
	s.invalidateRecord(record.UserID, contextID)
	return nil
}

// ApplyDecay sweeps short-term records older than the threshold,
// multiplying confidence with a hard floor and marking them stale.
func (s *Service) ApplyDecay(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.config.DecayThreshold).Unix()
	count, err := s.store.DecayContextRecords(ctx, cutoff, s.config.DecayFactor, s.config.ConfidenceFloor)
	if err != nil {
		return 0, fmt.Errorf("failed to apply decay: %w", err)
	}
	if count > 0 {
		s.userCache.Purge()
		s.recordCache.Purge()
		slog.Info("confidence decay applied", "records", count)
	}
	return count, nil
}

// CleanupExpired removes ephemeral records past their expiry.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	count, err := s.store.DeleteExpiredContextRecords(ctx, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired contexts: %w", err)
	}
	if count > 0 {
		s.userCache.Purge()
		s.recordCache.Purge()
		slog.Info("expired contexts cleaned up", "records", count)
	}
	return count, nil
}

// GetHistory returns the most recent versions of a record.
func (s *Service) GetHistory(ctx context.Context, contextID string, limit int) ([]*store.ContextVersion, error) {
	find := &store.FindContextVersion{ContextID: &contextID}
	if limit > 0 {
		find.Limit = &limit
	}
	versions, err := s.store.ListContextVersions(ctx, find)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return versions, nil
}

// Rollback restores a prior version's value through Update, appending
// a new version rather than rewinding history.
func (s *Service) Rollback(ctx context.Context, contextID string, toVersion int) (*store.ContextRecord, error) {
	versions, err := s.store.ListContextVersions(ctx, &store.FindContextVersion{
		ContextID: &contextID,
		Version:   &toVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load version %d: %w", toVersion, err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("version %d of context %s: %w", toVersion, contextID, ErrNotFound)
	}
	target := versions[0]

	reason := fmt.Sprintf("rollback to version %d", toVersion)
	confidence := target.Confidence
	return s.Update(ctx, contextID, UpdateParams{
		Value:          target.Value,
		HasValue:       true,
		Interpretation: target.Interpretation,
		HasInterp:      true,
		Confidence:     &confidence,
		Source:         "rollback",
		ChangeReason:   &reason,
	})
}

func (s *Service) activeRecord(ctx context.Context, userID string, contextType store.ContextType, key string, nowTs int64) (*store.ContextRecord, error) {
	list, err := s.store.ListContextRecords(ctx, &store.FindContextRecord{
		UserID:         &userID,
		Type:           &contextType,
		Key:            &key,
		OnlyActive:     true,
		IncludeExpired: true,
		NowTs:          nowTs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find active context: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Service) invalidate(userID string) {
	s.userCache.Remove(userID)
}

func (s *Service) invalidateRecord(userID, contextID string) {
	s.userCache.Remove(userID)
	s.recordCache.Remove(contextID)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
