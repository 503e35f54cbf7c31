package bus

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// AtomicContext is the fast-path context derivable from inputs alone,
// with no external lookups.
type AtomicContext struct {
	Timestamp       time.Time
	TimestampISO    string
	DayOfWeek       string
	DayOfWeekNumber int // Monday = 0
	TimeOfDay       string
	Hour            int
	Minute          int
	Timezone        string
	UTCOffset       string
	Locale          string
	Language        string
	Currency        string
	DateFormat      string

	// Warnings records non-fatal input problems such as a timezone
	// fallback.
	Warnings []string
}

// fastPathTarget is the latency budget for atomic resolution.
const fastPathTarget = 10 * time.Millisecond

// ResolveAtomicContext computes the atomic context synchronously. If
// the fast-path target is exceeded a warning is logged but the result
// is still returned.
func (b *Bus) ResolveAtomicContext(timezone, locale, language, currency string) *AtomicContext {
	start := time.Now()

	warnings := []string{}
	if timezone == "" {
		timezone = "UTC"
		warnings = append(warnings, "No timezone provided, using UTC")
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("Unknown timezone %q, using UTC", timezone))
		loc, timezone = time.UTC, "UTC"
	}

	if locale == "" {
		locale = "en-US"
	}
	if language == "" {
		language = strings.ToLower(strings.SplitN(strings.ReplaceAll(locale, "_", "-"), "-", 2)[0])
	}
	if currency == "" {
		currency = "USD"
	}

	now := b.now().In(loc)
	_, offsetSeconds := now.Zone()

	ctx := &AtomicContext{
		Timestamp:       now,
		TimestampISO:    now.Format(time.RFC3339),
		DayOfWeek:       now.Weekday().String(),
		DayOfWeekNumber: (int(now.Weekday()) + 6) % 7,
		TimeOfDay:       coarseTimeOfDay(now.Hour()),
		Hour:            now.Hour(),
		Minute:          now.Minute(),
		Timezone:        timezone,
		UTCOffset:       formatOffset(offsetSeconds),
		Locale:          locale,
		Language:        language,
		Currency:        currency,
		DateFormat:      dateFormatForLocale(locale),
		Warnings:        warnings,
	}

	elapsed := time.Since(start)
	if b.metrics != nil {
		b.metrics.RecordFastPath(elapsed.Seconds())
	}
	if elapsed > fastPathTarget {
		slog.Warn("fast path exceeded target time",
			"elapsed_ms", float64(elapsed.Microseconds())/1000,
			"target_ms", fastPathTarget.Milliseconds())
	}

	return ctx
}

// coarseTimeOfDay uses the four-bucket split the atomic snapshot
// exposes (the temporal reasoner keeps the fine-grained six).
func coarseTimeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}

func formatOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}

func dateFormatForLocale(locale string) string {
	normalized := strings.ReplaceAll(locale, "_", "-")
	switch {
	case strings.HasPrefix(normalized, "en-GB"), strings.HasPrefix(normalized, "en-AU"):
		return "DD/MM/YYYY"
	case strings.HasPrefix(normalized, "zh"), strings.HasPrefix(normalized, "ja"), strings.HasPrefix(normalized, "ko"):
		return "YYYY/MM/DD"
	default:
		return "MM/DD/YYYY"
	}
}

// ToMap renders the atomic context for prompt injection and the
// snapshot endpoint.
func (a *AtomicContext) ToMap() map[string]any {
	return map[string]any{
		"timestamp":       a.TimestampISO,
		"day_of_week":     a.DayOfWeek,
		"time_of_day":     a.TimeOfDay,
		"hour":            a.Hour,
		"minute":          a.Minute,
		"timezone":        a.Timezone,
		"timezone_offset": a.UTCOffset,
		"locale":          a.Locale,
		"language":        a.Language,
		"currency":        a.Currency,
		"date_format":     a.DateFormat,
	}
}
