package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StrungPattern-coder/context/internal/profile"
	"github.com/StrungPattern-coder/context/store"
	"github.com/StrungPattern-coder/context/store/db/sqlite"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "memory_test.db"),
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })

	st := store.New(driver, p)
	require.NoError(t, st.Migrate(context.Background()))

	// Seed a tenant and a user for FK integrity.
	ctx := context.Background()
	tenant, err := st.CreateTenant(ctx, &store.Tenant{
		Slug:      "test-tenant",
		APIKey:    "rk_test_0123456789abcdef",
		IsActive:  true,
		CreatedTs: time.Now().Unix(),
		UpdatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)
	_, err = st.CreateUser(ctx, &store.User{
		ID:               "user-1",
		TenantID:         tenant.ID,
		ExternalID:       "ext-1",
		DefaultTimezone:  "UTC",
		DefaultLocale:    "en-US",
		AllowSituational: true,
		CreatedTs:        time.Now().Unix(),
		UpdatedTs:        time.Now().Unix(),
	})
	require.NoError(t, err)

	return NewService(st, DefaultConfig()), st
}

func TestStoreAndGetRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Store(ctx, StoreParams{
		UserID:     "user-1",
		Type:       store.ContextTypeSpatial,
		Key:        "location",
		Value:      map[string]any{"city": "San Francisco"},
		Tier:       store.TierShortTerm,
		Confidence: 0.7,
		Source:     "inference",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "San Francisco", got.Value["city"])
	require.Equal(t, store.DriftStable, got.DriftStatus)

	history, err := svc.GetHistory(ctx, created.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 1, history[0].Version)
}

func TestStoreExistingDelegatesToUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Store(ctx, StoreParams{
		UserID: "user-1", Type: store.ContextTypeSpatial, Key: "location",
		Value: map[string]any{"city": "Austin"}, Confidence: 0.6, Source: "inference",
	})
	require.NoError(t, err)

	second, err := svc.Store(ctx, StoreParams{
		UserID: "user-1", Type: store.ContextTypeSpatial, Key: "location",
		Value: map[string]any{"city": "Boston"}, Confidence: 0.8, Source: "user_explicit",
	})
	require.NoError(t, err)

	// Same active record, new version; user input wins the conflict.
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Boston", second.Value["city"])

	list, err := svc.ListForUser(ctx, "user-1", ListFilters{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	history, err := svc.GetHistory(ctx, first.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 2, history[0].Version)
	require.Equal(t, "Austin", history[0].PreviousValue["city"])
}

func TestRecordCorrectionScenario(t *testing.T) {
	// Stored inference gets corrected by the user once.
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Store(ctx, StoreParams{
		UserID: "user-1", Type: store.ContextTypeSpatial, Key: "location",
		Value: map[string]any{"city": "San Francisco"}, Confidence: 0.7, Source: "inference",
	})
	require.NoError(t, err)

	corrected, err := svc.RecordCorrection(ctx, created.ID, map[string]any{"city": "New York"})
	require.NoError(t, err)
	require.Equal(t, "New York", corrected.Value["city"])
	require.Equal(t, 1, corrected.CorrectionCount)
	require.Less(t, corrected.Confidence, 0.7)
	require.Equal(t, "user_correction", corrected.Source)

	history, err := svc.GetHistory(ctx, created.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "San Francisco", history[0].PreviousValue["city"])
}

func TestThreeCorrectionsForceConflicting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Store(ctx, StoreParams{
		UserID: "user-1", Type: store.ContextTypeTemporal, Key: "timezone",
		Value: map[string]any{"timezone": "UTC"}, Confidence: 0.9, Source: "inference",
	})
	require.NoError(t, err)

	var record *store.ContextRecord
	for i, tz := range []string{"America/New_York", "Europe/Paris", "Asia/Tokyo"} {
		record, err = svc.RecordCorrection(ctx, created.ID, map[string]any{"timezone": tz})
		require.NoError(t, err)
		if i < 2 {
			require.NotEqual(t, store.DriftConflicting, record.DriftStatus, "correction %d", i+1)
		}
	}

	require.Equal(t, 3, record.CorrectionCount)
	require.Equal(t, store.DriftConflicting, record.DriftStatus)
	require.Less(t, record.Confidence, 0.3)
}

func TestConfirmRaisesAndClamps(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Store(ctx, StoreParams{
		UserID: "user-1", Type: store.ContextTypeSituational, Key: "activity",
		Value: map[string]any{"activity": "writing"}, Confidence: 0.95, Source: "inference",
	})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1.0, confirmed.Confidence)
	require.Equal(t, store.DriftStable, confirmed.DriftStatus)
	require.NotNil(t, confirmed.LastConfirmedTs)
}

func TestEphemeralExpiryAndCleanup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Store(ctx, StoreParams{
		UserID: "user-1", Type: store.ContextTypeSituational, Key: "draft",
		Value: map[string]any{"text": "hello"}, Tier: store.TierEphemeral,
		Confidence: 0.9, Source: "api", TTL: time.Second,
	})
	require.NoError(t, err)
	require.NotNil(t, created.ExpiresTs)

	// Shift the service clock past the expiry.
	svc.now = func() time.Time { return time.Now().Add(time.Minute) }

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, got, "expired record must be absent from reads")

	removed, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}

func TestRestoreAfterEphemeralExpiry(t *testing.T) {
	// An expired row still holds the active slot until cleanup; a new
	// write for the same key must replace it, not collide.
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Store(ctx, StoreParams{
		UserID: "user-1", Type: store.ContextTypeSituational, Key: "draft",
		Value: map[string]any{"text": "old"}, Tier: store.TierEphemeral,
		Confidence: 0.9, Source: "api", TTL: time.Second,
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(time.Minute) }

	second, err := svc.Store(ctx, StoreParams{
		UserID: "user-1", Type: store.ContextTypeSituational, Key: "draft",
		Value: map[string]any{"text": "new"}, Tier: store.TierEphemeral,
		Confidence: 0.9, Source: "api", TTL: time.Hour,
	})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, "new", second.Value["text"])
}

func TestApplyDecayFloorsAndMarksStale(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	created, err := svc.Store(ctx, StoreParams{
		UserID: "user-1", Type: store.ContextTypeSpatial, Key: "location",
		Value: map[string]any{"city": "Lisbon"}, Confidence: 0.5, Source: "sensor",
	})
	require.NoError(t, err)

	// Age the record past the decay threshold.
	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	count, err := svc.ApplyDecay(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	list, err := st.ListContextRecords(ctx, &store.FindContextRecord{
		ID: &created.ID, OnlyActive: true, IncludeExpired: true,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.InDelta(t, 0.475, list[0].Confidence, 0.001)
	require.Equal(t, store.DriftStale, list[0].DriftStatus)

	// Repeated decay never crosses the floor.
	for i := 0; i < 100; i++ {
		_, err = svc.ApplyDecay(ctx)
		require.NoError(t, err)
	}
	list, err = st.ListContextRecords(ctx, &store.FindContextRecord{
		ID: &created.ID, OnlyActive: true, IncludeExpired: true,
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, list[0].Confidence, 0.1)
}

func TestRollbackAppendsVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Store(ctx, StoreParams{
		UserID: "user-1", Type: store.ContextTypeSituational, Key: "project",
		Value: map[string]any{"name": "alpha"}, Confidence: 0.8, Source: "user_explicit",
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, UpdateParams{
		Value: map[string]any{"name": "beta"}, HasValue: true, Source: "user_explicit",
	})
	require.NoError(t, err)

	rolled, err := svc.Rollback(ctx, created.ID, 1)
	require.NoError(t, err)
	require.Equal(t, "alpha", rolled.Value["name"])
	require.Equal(t, "rollback", rolled.Source)

	history, err := svc.GetHistory(ctx, created.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3, "rollback appends, never rewinds")
	for i, v := range history {
		require.Equal(t, len(history)-i, v.Version, "versions are gap-free and descending")
	}
}

func TestSoftDeleteHidesRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Store(ctx, StoreParams{
		UserID: "user-1", Type: store.ContextTypeMeta, Key: "note",
		Value: map[string]any{"v": 1.0}, Confidence: 0.5, Source: "api",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID, true))

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestReapStaleSessions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	stale, err := svc.StartSession(ctx, "user-1", "stale-session", nil)
	require.NoError(t, err)
	fresh, err := svc.StartSession(ctx, "user-1", "fresh-session", nil)
	require.NoError(t, err)

	// A day later the untouched session is stale; the touched one lives.
	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	require.NoError(t, svc.TouchSession(ctx, fresh.SessionID))

	reaped, err := svc.ReapStaleSessions(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, reaped)

	got, err := svc.GetSession(ctx, stale.SessionID)
	require.NoError(t, err)
	require.False(t, got.IsActive())

	got, err = svc.GetSession(ctx, fresh.SessionID)
	require.NoError(t, err)
	require.True(t, got.IsActive())
}

func TestSessionLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.StartSession(ctx, "user-1", "", map[string]any{"client": "sdk-go"})
	require.NoError(t, err)
	require.NotEmpty(t, session.SessionID)
	require.True(t, session.IsActive())

	require.NoError(t, svc.TouchSession(ctx, session.SessionID))
	require.NoError(t, svc.EndSession(ctx, session.SessionID, map[string]any{"final": true}))

	got, err := svc.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.False(t, got.IsActive())
}
