// Package snapshot manages immutable context snapshots with semantic
// versions: shift detection, checksums, capped history, restoration,
// and diffs.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/StrungPattern-coder/context/store"
)

// VersionType is the semver bump size for a detected shift.
type VersionType string

const (
	Major VersionType = "major"
	Minor VersionType = "minor"
	Patch VersionType = "patch"
)

// Trigger names why a snapshot was taken.
type Trigger string

const (
	TriggerLocationChange Trigger = "location_change"
	TriggerTimeTransition Trigger = "time_transition"
	TriggerActivityChange Trigger = "activity_change"
	TriggerManual         Trigger = "manual"
	TriggerPeriodic       Trigger = "periodic"
	TriggerRestoration    Trigger = "restoration"
)

// Version is a semantic version triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Bump returns the next version for a bump size.
func (v Version) Bump(t VersionType) Version {
	switch t {
	case Major:
		return Version{v.Major + 1, 0, 0}
	case Minor:
		return Version{v.Major, v.Minor + 1, 0}
	default:
		return Version{v.Major, v.Minor, v.Patch + 1}
	}
}

// Config tunes the manager.
type Config struct {
	// MaxHistory caps per-user snapshots. Default 100.
	MaxHistory int
}

// Manager persists snapshots through the store.
type Manager struct {
	store      *store.Store
	maxHistory int
	now        func() time.Time
}

// NewManager creates a snapshot manager.
func NewManager(st *store.Store, config Config) *Manager {
	maxHistory := config.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 100
	}
	return &Manager{store: st, maxHistory: maxHistory, now: time.Now}
}

// Checksum computes the stable hash over per-type maps. Serialization
// is canonical (sorted keys), so the checksum is deterministic under
// input permutation.
func Checksum(contextMaps map[string]any) string {
	canonical := canonicalize(contextMaps)
	buf, err := json.Marshal(canonical)
	if err != nil {
		// Maps of JSON-compatible values cannot fail to marshal; an
		// unexpected value still yields a stable (empty-input) hash.
		buf = nil
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// canonicalize converts nested maps to a representation whose JSON
// encoding is order-stable.
func canonicalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, []any{k, canonicalize(v[k])})
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, canonicalize(item))
		}
		return out
	default:
		return v
	}
}

// CreateSnapshot detects the shift against the latest snapshot, bumps
// the version accordingly, and stores the new immutable snapshot.
// History beyond the cap is pruned.
func (m *Manager) CreateSnapshot(ctx context.Context, userID string, contextMaps map[string]any, description string, tags []string) (*store.ContextSnapshot, error) {
	latest, err := m.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}

	version := Version{1, 0, 0}
	trigger := TriggerManual
	var parentID *string
	if latest != nil {
		bump, detectedTrigger := DetectShift(latest.ContextMaps, contextMaps)
		version = Version{latest.Major, latest.Minor, latest.Patch}.Bump(bump)
		trigger = detectedTrigger
		parentID = &latest.ID
	}

	var desc *string
	if description != "" {
		desc = &description
	}

	created, err := m.store.CreateContextSnapshot(ctx, &store.ContextSnapshot{
		UserID:      userID,
		Major:       version.Major,
		Minor:       version.Minor,
		Patch:       version.Patch,
		Trigger:     string(trigger),
		ParentID:    parentID,
		ContextMaps: contextMaps,
		Checksum:    Checksum(contextMaps),
		Description: desc,
		Tags:        tags,
		CreatedTs:   m.now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}

	if _, err := m.store.PruneContextSnapshots(ctx, userID, m.maxHistory); err != nil {
		return nil, fmt.Errorf("failed to prune snapshot history: %w", err)
	}

	return created, nil
}

// Latest returns the newest snapshot for a user, or nil.
func (m *Manager) Latest(ctx context.Context, userID string) (*store.ContextSnapshot, error) {
	one := 1
	list, err := m.store.ListContextSnapshots(ctx, &store.FindContextSnapshot{UserID: &userID, Limit: &one})
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// History returns the most recent snapshots, newest first.
func (m *Manager) History(ctx context.Context, userID string, limit int) ([]*store.ContextSnapshot, error) {
	find := &store.FindContextSnapshot{UserID: &userID}
	if limit > 0 {
		find.Limit = &limit
	}
	list, err := m.store.ListContextSnapshots(ctx, find)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot history: %w", err)
	}
	return list, nil
}

// RestoreToVersion restores a prior version by creating a NEW major
// snapshot whose parent is the restored one. Snapshots are never
// mutated.
func (m *Manager) RestoreToVersion(ctx context.Context, userID string, target Version) (*store.ContextSnapshot, error) {
	list, err := m.store.ListContextSnapshots(ctx, &store.FindContextSnapshot{
		UserID: &userID,
		Major:  &target.Major,
		Minor:  &target.Minor,
		Patch:  &target.Patch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find snapshot %s: %w", target, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("snapshot %s not found", target)
	}
	source := list[0]

	latest, err := m.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	version := Version{1, 0, 0}
	if latest != nil {
		version = Version{latest.Major, latest.Minor, latest.Patch}.Bump(Major)
	}

	description := fmt.Sprintf("restored from %d.%d.%d", source.Major, source.Minor, source.Patch)
	created, err := m.store.CreateContextSnapshot(ctx, &store.ContextSnapshot{
		UserID:      userID,
		Major:       version.Major,
		Minor:       version.Minor,
		Patch:       version.Patch,
		Trigger:     string(TriggerRestoration),
		ParentID:    &source.ID,
		ContextMaps: source.ContextMaps,
		Checksum:    source.Checksum,
		Description: &description,
		CreatedTs:   m.now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create restoration snapshot: %w", err)
	}
	return created, nil
}
