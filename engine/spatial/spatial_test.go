package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLocale(t *testing.T) {
	tests := []struct {
		locale   string
		language string
		script   string
		country  string
	}{
		{"en-US", "en", "", "US"},
		{"en_GB", "en", "", "GB"},
		{"zh-Hans-CN", "zh", "Hans", "CN"},
		{"de", "de", "", ""},
		{"pt-BR", "pt", "", "BR"},
	}
	for _, tc := range tests {
		language, script, country := ParseLocale(tc.locale)
		require.Equal(t, tc.language, language, tc.locale)
		require.Equal(t, tc.script, script, tc.locale)
		require.Equal(t, tc.country, country, tc.locale)
	}
}

func TestInterpretDerivesDefaults(t *testing.T) {
	r := NewReasoner("en-US")

	ctx := r.Interpret("en-US", "", "", "", false)
	require.Equal(t, "US", ctx.CountryCode)
	require.Equal(t, "USD", ctx.Currency)
	require.Equal(t, Imperial, ctx.MeasurementSystem)
	require.Equal(t, MDY, ctx.DateFormat)
	require.Equal(t, TwelveHour, ctx.TimeFormat)
	require.Equal(t, "America/New_York", ctx.Timezone)
	require.Equal(t, "country", ctx.PrecisionLevel)

	ctx = r.Interpret("de-DE", "", "", "", false)
	require.Equal(t, Metric, ctx.MeasurementSystem)
	require.Equal(t, DMY, ctx.DateFormat)
	require.Equal(t, TwentyFourHour, ctx.TimeFormat)
	require.Equal(t, "EUR", ctx.Currency)
}

func TestInterpretExplicitCountryWins(t *testing.T) {
	r := NewReasoner("en-US")
	ctx := r.Interpret("en-US", "GB", "", "", false)
	require.Equal(t, "GB", ctx.CountryCode)
	require.Equal(t, "GBP", ctx.Currency)
}

func TestInterpretKeepsSuppliedTimezone(t *testing.T) {
	r := NewReasoner("en-US")
	ctx := r.Interpret("en-US", "", "", "America/Denver", false)
	require.Equal(t, "America/Denver", ctx.Timezone)
}

func TestGetInterpretationCulturalDefaults(t *testing.T) {
	r := NewReasoner("en-US")

	ctx := r.Interpret("ja-JP", "", "", "", false)
	interp := r.GetInterpretation(ctx)
	require.Equal(t, "East Asia", interp.CulturalRegion)
	require.Equal(t, "formal", interp.FormalityDefault)
	require.Equal(t, "indirect", interp.DirectnessPreference)
	require.Equal(t, []string{"Saturday", "Sunday"}, interp.WeekendDays)

	ctx = r.Interpret("ar-SA", "", "", "", false)
	interp = r.GetInterpretation(ctx)
	require.Equal(t, []string{"Friday", "Saturday"}, interp.WeekendDays)
}

func TestResolveHereRequiresConsent(t *testing.T) {
	r := NewReasoner("en-US")

	withConsent := r.Interpret("en-US", "US", "California", "", true)
	got := r.ResolveLocationReference("here", withConsent)
	require.InDelta(t, 0.9, got.Confidence, 0.001)
	require.Equal(t, "US", got.Location["country"])
	require.False(t, got.FellBack)

	withoutConsent := r.Interpret("en-US", "US", "", "", false)
	got = r.ResolveLocationReference("here", withoutConsent)
	require.InDelta(t, 0.2, got.Confidence, 0.001)
	require.True(t, got.FellBack)
	require.NotEmpty(t, got.DefaultReason)
}

func TestResolveNamedLocationUnresolved(t *testing.T) {
	r := NewReasoner("en-US")
	ctx := r.Interpret("en-US", "US", "", "", true)

	got := r.ResolveLocationReference("home", ctx)
	require.True(t, got.FellBack)
	require.InDelta(t, 0.1, got.Confidence, 0.001)
}

func TestFormatForPromptConsentGating(t *testing.T) {
	r := NewReasoner("en-US")

	ctx := r.Interpret("en-US", "US", "", "", false)
	interp := r.GetInterpretation(ctx)
	out := r.FormatForPrompt(ctx, interp, false)
	require.NotContains(t, out, "United States")

	ctx = r.Interpret("en-US", "US", "", "", true)
	out = r.FormatForPrompt(ctx, interp, false)
	require.Contains(t, out, "United States")
}
