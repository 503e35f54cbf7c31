package temporal

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ReferenceType classifies how a time reference was expressed.
type ReferenceType string

const (
	ReferenceRelativeDay  ReferenceType = "relative_day"
	ReferenceRelativeTime ReferenceType = "relative_time"
	ReferenceAbsolute     ReferenceType = "absolute"
	ReferenceImplicit     ReferenceType = "implicit"
)

// Alternative is a lower-ranked candidate resolution.
type Alternative struct {
	Window     string
	Confidence float64
}

// ResolvedReference is the concrete resolution of a time reference.
type ResolvedReference struct {
	Original      string
	Type          ReferenceType
	Start         time.Time
	End           *time.Time
	Method        string
	Confidence    float64
	Ambiguous     bool
	Alternatives  []Alternative
	HumanReadable string
}

// dayPattern resolves a relative day to an offset in days. Longer
// patterns are registered first so "day before yesterday" is not
// consumed by "yesterday".
type dayPattern struct {
	re     *regexp.Regexp
	offset int
}

var relativeDayPatterns = []dayPattern{
	{regexp.MustCompile(`(?i)\bday before yesterday\b`), -2},
	{regexp.MustCompile(`(?i)\bday after tomorrow\b`), 2},
	{regexp.MustCompile(`(?i)\btoday\b`), 0},
	{regexp.MustCompile(`(?i)\byesterday\b`), -1},
	{regexp.MustCompile(`(?i)\btomorrow\b`), 1},
}

type timePattern struct {
	re   *regexp.Regexp
	kind string
}

var relativeTimePatterns = []timePattern{
	{regexp.MustCompile(`(?i)\bright now\b`), "current"},
	{regexp.MustCompile(`(?i)\bjust now\b`), "recent"},
	{regexp.MustCompile(`(?i)\ba moment ago\b`), "recent"},
	{regexp.MustCompile(`(?i)\brecently\b`), "recent"},
	{regexp.MustCompile(`(?i)\bnow\b`), "current"},
	{regexp.MustCompile(`(?i)\bearlier\b`), "past_session"},
	{regexp.MustCompile(`(?i)\bshortly\b`), "near_future"},
	{regexp.MustCompile(`(?i)\bsoon\b`), "near_future"},
	{regexp.MustCompile(`(?i)\blater\b`), "future_session"},
}

// absoluteFormats are the strict layouts tried in order. Ambiguous
// MM/DD vs DD/MM inputs resolve to the first layout that parses.
var absoluteFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"January 2, 2006",
	"January 2",
	"Jan 2, 2006",
	"Jan 2",
}

// ResolveReference converts a human time reference like "today" or
// "earlier" into concrete bounds against the anchor context.
func (r *Reasoner) ResolveReference(text string, anchor *Context) *ResolvedReference {
	normalized := strings.ToLower(strings.TrimSpace(text))

	for _, p := range relativeDayPatterns {
		if p.re.MatchString(normalized) {
			return r.resolveRelativeDay(normalized, p.offset, anchor)
		}
	}

	for _, p := range relativeTimePatterns {
		if p.re.MatchString(normalized) {
			return r.resolveRelativeTime(normalized, p.kind, anchor)
		}
	}

	if resolved := r.tryParseAbsolute(normalized, anchor); resolved != nil {
		return resolved
	}

	return &ResolvedReference{
		Original:      text,
		Type:          ReferenceImplicit,
		Start:         anchor.Timestamp,
		Method:        "fallback_to_current",
		Confidence:    0.2,
		Ambiguous:     true,
		HumanReadable: fmt.Sprintf("(unable to resolve %q, using current time)", text),
	}
}

func (r *Reasoner) resolveRelativeDay(text string, offset int, anchor *Context) *ResolvedReference {
	loc := anchor.Timestamp.Location()
	day := time.Date(anchor.Year, time.Month(anchor.Month), anchor.Day, 0, 0, 0, 0, loc).AddDate(0, 0, offset)
	end := day.Add(24*time.Hour - time.Second)

	return &ResolvedReference{
		Original:      text,
		Type:          ReferenceRelativeDay,
		Start:         day,
		End:           &end,
		Method:        fmt.Sprintf("relative_day_offset_%d", offset),
		Confidence:    0.95,
		HumanReadable: day.Format("Monday, January 2, 2006"),
	}
}

func (r *Reasoner) resolveRelativeTime(text, kind string, anchor *Context) *ResolvedReference {
	now := anchor.Timestamp

	switch kind {
	case "current":
		return &ResolvedReference{
			Original:      text,
			Type:          ReferenceRelativeTime,
			Start:         now,
			Method:        "current_moment",
			Confidence:    0.99,
			HumanReadable: now.Format("3:04 PM"),
		}

	case "recent":
		start := now.Add(-15 * time.Minute)
		return &ResolvedReference{
			Original:   text,
			Type:       ReferenceRelativeTime,
			Start:      start,
			End:        &now,
			Method:     "recent_window",
			Confidence: 0.75,
			Ambiguous:  true,
			Alternatives: []Alternative{
				{Window: "5_minutes", Confidence: 0.5},
				{Window: "30_minutes", Confidence: 0.6},
			},
			HumanReadable: "within the last few minutes",
		}

	case "past_session":
		if anchor.SessionStart != nil {
			end := now.Add(-5 * time.Minute)
			return &ResolvedReference{
				Original:      text,
				Type:          ReferenceRelativeTime,
				Start:         *anchor.SessionStart,
				End:           &end,
				Method:        "session_earlier",
				Confidence:    0.7,
				Ambiguous:     true,
				HumanReadable: "earlier in this session",
			}
		}
		startOfDay := time.Date(anchor.Year, time.Month(anchor.Month), anchor.Day, 0, 0, 0, 0, now.Location())
		return &ResolvedReference{
			Original:      text,
			Type:          ReferenceRelativeTime,
			Start:         startOfDay,
			End:           &now,
			Method:        "earlier_today",
			Confidence:    0.5,
			Ambiguous:     true,
			HumanReadable: "earlier today",
		}

	case "near_future", "future_session":
		minutes := 30
		if kind == "future_session" {
			minutes = 60
		}
		end := now.Add(time.Duration(minutes) * time.Minute)
		return &ResolvedReference{
			Original:      text,
			Type:          ReferenceRelativeTime,
			Start:         now,
			End:           &end,
			Method:        fmt.Sprintf("future_%dm", minutes),
			Confidence:    0.6,
			Ambiguous:     true,
			HumanReadable: fmt.Sprintf("within the next %d minutes", minutes),
		}
	}

	return &ResolvedReference{
		Original:      text,
		Type:          ReferenceImplicit,
		Start:         now,
		Method:        "fallback",
		Confidence:    0.3,
		Ambiguous:     true,
		HumanReadable: "(time reference unclear)",
	}
}

func (r *Reasoner) tryParseAbsolute(text string, anchor *Context) *ResolvedReference {
	loc := anchor.Timestamp.Location()

	for _, layout := range absoluteFormats {
		parsed, err := time.ParseInLocation(layout, titleWords(text), loc)
		if err != nil {
			continue
		}
		// Layouts without a year parse to year 0; use the anchor's year.
		if parsed.Year() == 0 {
			parsed = parsed.AddDate(anchor.Year, 0, 0)
		}
		return &ResolvedReference{
			Original:      text,
			Type:          ReferenceAbsolute,
			Start:         parsed,
			Method:        "parsed_format_" + layout,
			Confidence:    0.9,
			HumanReadable: parsed.Format("Monday, January 2, 2006"),
		}
	}

	return nil
}

// titleWords uppercases the first letter of each word so lowercased
// input still matches Go's month-name layouts.
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 && w[0] >= 'a' && w[0] <= 'z' {
			words[i] = string(w[0]-'a'+'A') + w[1:]
		}
	}
	return strings.Join(words, " ")
}
