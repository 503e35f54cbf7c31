package drift

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StrungPattern-coder/context/store"
)

func fixedDetector() (*Detector, time.Time) {
	d := NewDetector(DefaultConfig(), nil)
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	return d, now
}

func record(id string, age time.Duration, confidence float64, now time.Time) *store.ContextRecord {
	return &store.ContextRecord{
		ID:          id,
		UserID:      "user-1",
		Type:        store.ContextTypeSituational,
		Tier:        store.TierShortTerm,
		Key:         id,
		Value:       map[string]any{"v": 1.0},
		Confidence:  confidence,
		DriftStatus: store.DriftStable,
		IsActive:    true,
		UpdatedTs:   now.Add(-age).Unix(),
	}
}

func TestStalenessBoundary(t *testing.T) {
	d, now := fixedDetector()

	// Just under the window: no signal.
	fresh := record("fresh", 24*time.Hour-time.Minute, 0.8, now)
	require.Empty(t, d.CheckSingle(fresh))

	// Just past the window: a STALENESS signal with severity > 0.
	stale := record("stale", 24*time.Hour+time.Minute, 0.8, now)
	signals := d.CheckSingle(stale)
	require.Len(t, signals, 1)
	require.Equal(t, Staleness, signals[0].Type)
	require.Greater(t, signals[0].Severity, 0.0)
}

func TestLongTermUsesExtendedWindow(t *testing.T) {
	d, now := fixedDetector()

	longTerm := record("tz", 48*time.Hour, 0.8, now)
	longTerm.Tier = store.TierLongTerm
	require.Empty(t, d.CheckSingle(longTerm), "48h is fresh for long-term")

	longTerm.UpdatedTs = now.Add(-169 * time.Hour).Unix()
	signals := d.CheckSingle(longTerm)
	require.Len(t, signals, 1)
	require.Equal(t, Staleness, signals[0].Type)
}

func TestCorrectionPatternSignal(t *testing.T) {
	d, now := fixedDetector()

	r := record("location", time.Hour, 0.8, now)
	r.CorrectionCount = 2
	require.Empty(t, d.CheckSingle(r))

	r.CorrectionCount = 3
	signals := d.CheckSingle(r)
	require.Len(t, signals, 1)
	require.Equal(t, CorrectionPattern, signals[0].Type)
	require.InDelta(t, 0.5, signals[0].Severity, 0.001)
}

func TestLowConfidenceSignal(t *testing.T) {
	d, now := fixedDetector()

	r := record("task", time.Hour, 0.3, now)
	signals := d.CheckSingle(r)
	require.Len(t, signals, 1)
	require.Equal(t, BehavioralMismatch, signals[0].Type)
	require.Equal(t, "monitor", signals[0].RecommendedAction)

	r.Confidence = 0.1
	signals = d.CheckSingle(r)
	require.Equal(t, "refresh", signals[0].RecommendedAction)
}

func TestTimezoneConflictAcrossRecords(t *testing.T) {
	d, now := fixedDetector()

	a := record("timezone", time.Hour, 0.9, now)
	a.Type = store.ContextTypeTemporal
	a.Key = "timezone"
	a.Value = map[string]any{"timezone": "America/New_York"}
	b := record("timezone-2", time.Hour, 0.9, now)
	b.Type = store.ContextTypeTemporal
	b.Key = "timezone"
	b.Value = map[string]any{"timezone": "Asia/Tokyo"}

	report := d.Detect([]*store.ContextRecord{a, b})
	var conflict *Signal
	for i := range report.Signals {
		if report.Signals[i].Type == Conflict {
			conflict = &report.Signals[i]
		}
	}
	require.NotNil(t, conflict)
	require.Equal(t, "timezone", conflict.ContextKey)
	require.InDelta(t, 0.8, conflict.Severity, 0.001)
}

func TestDetectIsIdempotent(t *testing.T) {
	d, now := fixedDetector()
	records := []*store.ContextRecord{
		record("a", 48*time.Hour, 0.5, now),
		record("b", time.Hour, 0.9, now),
	}

	first := d.Detect(records)
	second := d.Detect(records)
	require.Equal(t, first.OverallHealth, second.OverallHealth)
	require.Equal(t, len(first.Signals), len(second.Signals))
	// Detection must not have mutated the records.
	require.Equal(t, store.DriftStable, records[0].DriftStatus)
}

func TestTTLDriftScenario(t *testing.T) {
	// Short-term record 48h old with confidence 0.5.
	d, now := fixedDetector()
	r := record("location", 48*time.Hour, 0.5, now)

	report := d.Detect([]*store.ContextRecord{r})
	require.NotEmpty(t, report.Signals)
	require.Equal(t, Staleness, report.Signals[0].Type)
	require.Greater(t, report.Signals[0].Severity, 0.0)
	require.Less(t, report.OverallHealth, 0.7)

	status := StatusFor(report.Signals)
	require.Equal(t, store.DriftStale, status)
}

func TestStatusPrecedence(t *testing.T) {
	require.Equal(t, store.DriftStable, StatusFor(nil))
	require.Equal(t, store.DriftConflicting, StatusFor([]Signal{{Type: Conflict, Severity: 0.2}}))
	require.Equal(t, store.DriftConflicting, StatusFor([]Signal{{Type: CorrectionPattern, Severity: 0.5}, {Type: Staleness, Severity: 0.9}}))
	require.Equal(t, store.DriftStale, StatusFor([]Signal{{Type: Staleness, Severity: 0.8}}))
	require.Equal(t, store.DriftDrifting, StatusFor([]Signal{{Type: Staleness, Severity: 0.3}}))
	require.Equal(t, store.DriftDrifting, StatusFor([]Signal{{Type: BehavioralMismatch, Severity: 0.5}}))
}

func TestHealthWeightsAndRescale(t *testing.T) {
	d, now := fixedDetector()
	healthy := record("ok", time.Hour, 1.0, now)

	report := d.Detect([]*store.ContextRecord{healthy})
	require.Equal(t, 1.0, report.OverallHealth)
	require.False(t, report.NeedsAttention)
	require.Equal(t, []string{"No issues detected - context is healthy"}, report.Recommendations)
}

func TestShouldRefresh(t *testing.T) {
	d, now := fixedDetector()

	expired := record("e", time.Hour, 0.9, now)
	past := now.Add(-time.Minute).Unix()
	expired.ExpiresTs = &past
	ok, reason := d.ShouldRefresh(expired)
	require.True(t, ok)
	require.Contains(t, reason, "expired")

	conflicting := record("c", time.Hour, 0.9, now)
	conflicting.DriftStatus = store.DriftConflicting
	ok, _ = d.ShouldRefresh(conflicting)
	require.True(t, ok)

	staleModerate := record("s", 30*time.Hour, 0.5, now)
	ok, _ = d.ShouldRefresh(staleModerate)
	require.True(t, ok)

	healthy := record("h", time.Hour, 0.9, now)
	ok, reason = d.ShouldRefresh(healthy)
	require.False(t, ok)
	require.Equal(t, "Context is healthy", reason)
}

func TestSuggestResolution(t *testing.T) {
	got := SuggestResolution(Signal{Type: Staleness, ContextKey: "location", Severity: 0.4})
	require.Equal(t, "refresh", got.Action)
	require.True(t, got.Automatic)

	got = SuggestResolution(Signal{Type: Conflict, ContextKey: "timezone"})
	require.Equal(t, "resolve_conflict", got.Action)
	require.False(t, got.Automatic)
}
