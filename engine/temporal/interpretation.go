package temporal

import "fmt"

// Interpretation is the semantic layer over a Context: what the time
// means for the user rather than what it is.
type Interpretation struct {
	TimeOfDay            TimeOfDay
	TimeOfDayDescription string
	DayType              DayType
	IsWeekend            bool
	IsBusinessHours      bool
	DefaultUrgency       Urgency
	UrgencyReasoning     string
	DaysUntilWeekend     int
	IsEndOfDay           bool
	IsStartOfDay         bool
	LikelyAvailability   string
}

// GetInterpretation generates the semantic interpretation for a context.
func (r *Reasoner) GetInterpretation(ctx *Context) *Interpretation {
	urgency, reasoning := inferUrgency(ctx)

	return &Interpretation{
		TimeOfDay:            ctx.TimeOfDay,
		TimeOfDayDescription: timeOfDayDescriptions[ctx.TimeOfDay],
		DayType:              ctx.DayType,
		IsWeekend:            ctx.DayType == Weekend,
		IsBusinessHours:      ctx.DayType == Weekday && ctx.Hour >= 9 && ctx.Hour < 17,
		DefaultUrgency:       urgency,
		UrgencyReasoning:     reasoning,
		DaysUntilWeekend:     daysUntilWeekend(ctx.Weekday),
		IsEndOfDay:           ctx.Hour >= 17,
		IsStartOfDay:         ctx.Hour < 10,
		LikelyAvailability:   inferAvailability(ctx),
	}
}

func inferUrgency(ctx *Context) (Urgency, string) {
	switch {
	case ctx.TimeOfDay == LateNight || ctx.TimeOfDay == EarlyMorning:
		return UrgencyLow, "Late night/early morning suggests non-urgent context"
	case ctx.DayType == Weekend:
		return UrgencyLow, "Weekend suggests leisure time, lower default urgency"
	case ctx.DayType == Weekday && ctx.Hour >= 16:
		return UrgencyModerate, "End of business day, moderate urgency"
	case ctx.DayType == Weekday && ctx.Hour >= 9 && ctx.Hour < 17:
		return UrgencyModerate, "Business hours, standard working urgency"
	default:
		return UrgencyLow, "Outside typical work hours"
	}
}

// daysUntilWeekend counts days until Saturday (weekday index 5).
func daysUntilWeekend(weekday int) int {
	if weekday >= 5 {
		return 0
	}
	return 5 - weekday
}

func inferAvailability(ctx *Context) string {
	switch {
	case ctx.TimeOfDay == LateNight:
		return "likely sleeping or winding down"
	case ctx.TimeOfDay == EarlyMorning:
		return "likely waking up or preparing for day"
	case ctx.DayType == Weekend:
		if ctx.TimeOfDay == Morning || ctx.TimeOfDay == Afternoon {
			return "likely free (weekend daytime)"
		}
		return "likely relaxing"
	case ctx.Hour >= 9 && ctx.Hour < 17:
		return "likely working"
	case ctx.Hour >= 17:
		return "likely finished work, personal time"
	default:
		return "availability uncertain"
	}
}

// FormatForPrompt renders the context as a single prompt-ready line.
func (r *Reasoner) FormatForPrompt(ctx *Context, interp *Interpretation, verbose bool) string {
	out := "Current time: " + ctx.Timestamp.Format("Monday, January 2, 2006 at 3:04 PM MST")
	if !verbose {
		return out
	}
	out += "; Time of day: " + interp.TimeOfDayDescription
	out += "; Day type: " + string(interp.DayType)
	if interp.IsBusinessHours {
		out += "; Currently within typical business hours"
	}
	out += fmt.Sprintf("; Default urgency: %s", interp.DefaultUrgency)
	return out
}
