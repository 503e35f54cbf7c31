// Package temporal interprets timestamps into semantic meaning and
// resolves relative time references against an anchor context.
package temporal

import (
	"fmt"
	"log/slog"
	"time"
)

// TimeOfDay is an hour-bucket classification.
type TimeOfDay string

const (
	LateNight    TimeOfDay = "late_night"    // 00:00 - 04:59
	EarlyMorning TimeOfDay = "early_morning" // 05:00 - 07:59
	Morning      TimeOfDay = "morning"       // 08:00 - 11:59
	Afternoon    TimeOfDay = "afternoon"     // 12:00 - 16:59
	Evening      TimeOfDay = "evening"       // 17:00 - 20:59
	Night        TimeOfDay = "night"         // 21:00 - 23:59
)

// DayType distinguishes weekdays from weekends.
type DayType string

const (
	Weekday DayType = "weekday"
	Weekend DayType = "weekend"
)

// Season of the year, Northern Hemisphere by default.
type Season string

const (
	Winter Season = "winter"
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
)

// Urgency is the default urgency inferred from time alone.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyModerate Urgency = "moderate"
	UrgencyHigh     Urgency = "high"
)

// timeOfDayDescriptions maps buckets to human phrasing.
var timeOfDayDescriptions = map[TimeOfDay]string{
	LateNight:    "late at night",
	EarlyMorning: "early in the morning",
	Morning:      "in the morning",
	Afternoon:    "in the afternoon",
	Evening:      "in the evening",
	Night:        "at night",
}

// Context is the full temporal interpretation of one instant in one
// timezone. It is the anchor against which references are resolved.
type Context struct {
	Timestamp      time.Time
	Timezone       string
	Year           int
	Month          int
	Day            int
	Hour           int
	Minute         int
	Weekday        int // Monday = 0
	WeekdayName    string
	UTCOffsetHours float64
	UTCTimestamp   time.Time
	TimeOfDay      TimeOfDay
	DayType        DayType
	Season         Season

	SessionStart           *time.Time
	SessionDurationMinutes *float64

	// Warnings carries non-fatal interpretation notes, e.g. a timezone
	// fallback. Never fail silently.
	Warnings []string
}

// Reasoner interprets raw timestamps into semantic meaning. It is not a
// datetime library wrapper: it provides human-meaningful interpretation
// of time.
type Reasoner struct {
	defaultTimezone    string
	southernHemisphere bool
}

// Option configures a Reasoner.
type Option func(*Reasoner)

// WithDefaultTimezone sets the fallback timezone when none is provided.
func WithDefaultTimezone(tz string) Option {
	return func(r *Reasoner) { r.defaultTimezone = tz }
}

// WithSouthernHemisphere flips the season table.
func WithSouthernHemisphere() Option {
	return func(r *Reasoner) { r.southernHemisphere = true }
}

// NewReasoner creates a temporal reasoner.
func NewReasoner(opts ...Option) *Reasoner {
	r := &Reasoner{defaultTimezone: "UTC"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// loadLocation resolves an IANA timezone, falling back to UTC with a
// warning string instead of an error.
func (r *Reasoner) loadLocation(timezone string) (*time.Location, string, string) {
	tz := timezone
	if tz == "" {
		tz = r.defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		slog.Warn("unknown timezone, falling back to UTC", "timezone", tz)
		return time.UTC, "UTC", fmt.Sprintf("Unknown timezone %q, using UTC", tz)
	}
	return loc, tz, ""
}

// Interpret produces the full temporal context for a timestamp.
// Naive timestamps (zero location assumptions are the caller's
// concern) are converted into the given zone; an unknown zone falls
// back to UTC and is recorded in Warnings.
func (r *Reasoner) Interpret(timestamp time.Time, timezone string, sessionStart *time.Time) *Context {
	loc, tzName, warning := r.loadLocation(timezone)
	local := timestamp.In(loc)

	_, offsetSeconds := local.Zone()

	ctx := &Context{
		Timestamp:      local,
		Timezone:       tzName,
		Year:           local.Year(),
		Month:          int(local.Month()),
		Day:            local.Day(),
		Hour:           local.Hour(),
		Minute:         local.Minute(),
		Weekday:        mondayIndexed(local.Weekday()),
		WeekdayName:    local.Weekday().String(),
		UTCOffsetHours: float64(offsetSeconds) / 3600,
		UTCTimestamp:   local.UTC(),
		TimeOfDay:      timeOfDayForHour(local.Hour()),
		DayType:        dayTypeFor(local),
		Season:         r.seasonForMonth(int(local.Month())),
		SessionStart:   sessionStart,
	}
	if warning != "" {
		ctx.Warnings = append(ctx.Warnings, warning)
	}

	if sessionStart != nil {
		minutes := local.Sub(*sessionStart).Minutes()
		ctx.SessionDurationMinutes = &minutes
	}

	return ctx
}

// mondayIndexed converts Go's Sunday=0 weekday to Monday=0.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func timeOfDayForHour(hour int) TimeOfDay {
	switch {
	case hour < 5:
		return LateNight
	case hour < 8:
		return EarlyMorning
	case hour < 12:
		return Morning
	case hour < 17:
		return Afternoon
	case hour < 21:
		return Evening
	default:
		return Night
	}
}

func dayTypeFor(t time.Time) DayType {
	if mondayIndexed(t.Weekday()) >= 5 {
		return Weekend
	}
	return Weekday
}

func (r *Reasoner) seasonForMonth(month int) Season {
	var season Season
	switch month {
	case 12, 1, 2:
		season = Winter
	case 3, 4, 5:
		season = Spring
	case 6, 7, 8:
		season = Summer
	default:
		season = Autumn
	}
	if r.southernHemisphere {
		flip := map[Season]Season{Winter: Summer, Summer: Winter, Spring: Autumn, Autumn: Spring}
		return flip[season]
	}
	return season
}
