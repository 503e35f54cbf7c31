package snapshot

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

func newTestManager(t *testing.T, maxHistory int) *Manager {
	t.Helper()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "snapshot_test.db"),
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })

	st := store.New(driver, p)
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	tenant, err := st.CreateTenant(ctx, &store.Tenant{
		Slug: "t", APIKey: "rk_snapshot_test", IsActive: true,
		CreatedTs: time.Now().Unix(), UpdatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)
	_, err = st.CreateUser(ctx, &store.User{
		ID: "user-1", TenantID: tenant.ID, ExternalID: "e1",
		DefaultTimezone: "UTC", DefaultLocale: "en-US",
		CreatedTs: time.Now().Unix(), UpdatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	return NewManager(st, Config{MaxHistory: maxHistory})
}

func mapsAt(city, timeOfDay, activity string) map[string]any {
	return map[string]any{
		"spatial":     map[string]any{"city": city},
		"temporal":    map[string]any{"time_of_day": timeOfDay},
		"situational": map[string]any{"activity": activity},
	}
}

func TestChecksumDeterministicUnderPermutation(t *testing.T) {
	a := map[string]any{
		"temporal": map[string]any{"hour": 14.0, "minute": 30.0},
		"spatial":  map[string]any{"city": "Berlin", "country": "DE"},
	}
	b := map[string]any{
		"spatial":  map[string]any{"country": "DE", "city": "Berlin"},
		"temporal": map[string]any{"minute": 30.0, "hour": 14.0},
	}
	require.Equal(t, Checksum(a), Checksum(b))

	c := map[string]any{
		"spatial":  map[string]any{"country": "DE", "city": "Munich"},
		"temporal": map[string]any{"minute": 30.0, "hour": 14.0},
	}
	require.NotEqual(t, Checksum(a), Checksum(c))
}

func TestVersionBump(t *testing.T) {
	v := Version{1, 2, 3}
	require.Equal(t, Version{2, 0, 0}, v.Bump(Major))
	require.Equal(t, Version{1, 3, 0}, v.Bump(Minor))
	require.Equal(t, Version{1, 2, 4}, v.Bump(Patch))
	require.Equal(t, "1.2.3", v.String())
}

func TestDetectShiftClassification(t *testing.T) {
	base := mapsAt("Berlin", "morning", "working")

	bump, trigger := DetectShift(base, mapsAt("Munich", "morning", "working"))
	require.Equal(t, Major, bump)
	require.Equal(t, TriggerLocationChange, trigger)

	bump, trigger = DetectShift(base, mapsAt("Berlin", "evening", "working"))
	require.Equal(t, Minor, bump)
	require.Equal(t, TriggerTimeTransition, trigger)

	bump, trigger = DetectShift(base, mapsAt("Berlin", "morning", "cooking"))
	require.Equal(t, Minor, bump)
	require.Equal(t, TriggerActivityChange, trigger)

	bump, trigger = DetectShift(base, mapsAt("Berlin", "morning", "working"))
	require.Equal(t, Patch, bump)
	require.Equal(t, TriggerPeriodic, trigger)
}

func TestDetectShiftHaversine(t *testing.T) {
	previous := map[string]any{"spatial": map[string]any{"latitude": 52.52, "longitude": 13.405}}

	// ~1km away: not a major shift.
	near := map[string]any{"spatial": map[string]any{"latitude": 52.529, "longitude": 13.405}}
	bump, _ := DetectShift(previous, near)
	require.NotEqual(t, Major, bump)

	// Berlin to Hamburg: well past 5km.
	far := map[string]any{"spatial": map[string]any{"latitude": 53.55, "longitude": 9.99}}
	bump, trigger := DetectShift(previous, far)
	require.Equal(t, Major, bump)
	require.Equal(t, TriggerLocationChange, trigger)
}

func TestCreateSnapshotVersioning(t *testing.T) {
	m := newTestManager(t, 100)
	ctx := context.Background()

	first, err := m.CreateSnapshot(ctx, "user-1", mapsAt("Berlin", "morning", "working"), "", nil)
	require.NoError(t, err)
	require.Equal(t, 1, first.Major)
	require.Equal(t, 0, first.Minor)
	require.Nil(t, first.ParentID)
	require.NotEmpty(t, first.Checksum)

	second, err := m.CreateSnapshot(ctx, "user-1", mapsAt("Berlin", "evening", "working"), "", nil)
	require.NoError(t, err)
	require.Equal(t, 1, second.Major)
	require.Equal(t, 1, second.Minor)
	require.Equal(t, first.ID, *second.ParentID)

	third, err := m.CreateSnapshot(ctx, "user-1", mapsAt("Munich", "evening", "working"), "", nil)
	require.NoError(t, err)
	require.Equal(t, 2, third.Major)
	require.Equal(t, 0, third.Minor)
}

func TestHistoryCap(t *testing.T) {
	m := newTestManager(t, 3)
	ctx := context.Background()

	cities := []string{"Berlin", "Munich", "Hamburg", "Cologne", "Frankfurt"}
	for _, city := range cities {
		_, err := m.CreateSnapshot(ctx, "user-1", mapsAt(city, "morning", "working"), "", nil)
		require.NoError(t, err)
	}

	history, err := m.History(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
}

func TestRestoreCreatesNewMajorSnapshot(t *testing.T) {
	m := newTestManager(t, 100)
	ctx := context.Background()

	first, err := m.CreateSnapshot(ctx, "user-1", mapsAt("Berlin", "morning", "working"), "", nil)
	require.NoError(t, err)
	_, err = m.CreateSnapshot(ctx, "user-1", mapsAt("Munich", "morning", "working"), "", nil)
	require.NoError(t, err)

	restored, err := m.RestoreToVersion(ctx, "user-1", Version{1, 0, 0})
	require.NoError(t, err)
	require.Equal(t, 3, restored.Major)
	require.Equal(t, string(TriggerRestoration), restored.Trigger)
	require.Equal(t, first.ID, *restored.ParentID)
	require.Equal(t, first.Checksum, restored.Checksum)
	require.Equal(t, "Berlin", restored.ContextMaps["spatial"].(map[string]any)["city"])

	// The restored snapshot is the new latest.
	latest, err := m.Latest(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, restored.ID, latest.ID)
}

func TestDiffSnapshots(t *testing.T) {
	previous := map[string]any{
		"spatial":  map[string]any{"city": "Berlin", "country": "DE"},
		"temporal": map[string]any{"hour": 9.0},
	}
	current := map[string]any{
		"spatial":     map[string]any{"city": "Munich", "country": "DE"},
		"situational": map[string]any{"activity": "cooking"},
	}

	diff := DiffSnapshots(previous, current)
	require.Equal(t, "cooking", diff.Added["situational.activity"])
	require.Equal(t, 9.0, diff.Removed["temporal.hour"])
	require.Equal(t, [2]any{"Berlin", "Munich"}, diff.Modified["spatial.city"])
	require.Equal(t, 3, diff.ChangeCount())

	require.True(t, DiffSnapshots(previous, previous).IsEmpty())
}
