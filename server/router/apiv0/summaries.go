package apiv0

import (
	"time"

	"github.com/StrungPattern-coder/context/engine/spatial"
	"github.com/StrungPattern-coder/context/engine/temporal"
)

// temporalSummary renders a temporal interpretation for responses.
func temporalSummary(ctx *temporal.Context, interp *temporal.Interpretation) map[string]any {
	return map[string]any{
		"timestamp":          ctx.Timestamp.Format(time.RFC3339),
		"timezone":           ctx.Timezone,
		"timeOfDay":          string(ctx.TimeOfDay),
		"dayType":            string(ctx.DayType),
		"season":             string(ctx.Season),
		"weekday":            ctx.WeekdayName,
		"isBusinessHours":    interp.IsBusinessHours,
		"defaultUrgency":     string(interp.DefaultUrgency),
		"likelyAvailability": interp.LikelyAvailability,
	}
}

// spatialSummary renders a spatial interpretation for responses.
// Location fields appear only under explicit consent.
func spatialSummary(ctx *spatial.Context) map[string]any {
	out := map[string]any{
		"locale":            ctx.Locale,
		"language":          ctx.Language,
		"currency":          ctx.Currency,
		"measurementSystem": string(ctx.MeasurementSystem),
		"dateFormat":        string(ctx.DateFormat),
		"timeFormat":        string(ctx.TimeFormat),
	}
	if ctx.ExplicitConsent {
		out["country"] = ctx.CountryCode
		out["countryName"] = ctx.CountryName
		if ctx.Region != "" {
			out["region"] = ctx.Region
		}
	}
	return out
}
