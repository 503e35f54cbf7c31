// Package spatial interprets locale and regional signals into cultural
// defaults and resolves location references under explicit consent.
package spatial

import (
	"log/slog"
	"strings"
)

// MeasurementSystem is metric or imperial.
type MeasurementSystem string

const (
	Metric   MeasurementSystem = "metric"
	Imperial MeasurementSystem = "imperial"
)

// DateFormat is the preferred calendar-date ordering.
type DateFormat string

const (
	MDY DateFormat = "MDY"
	DMY DateFormat = "DMY"
	YMD DateFormat = "YMD"
)

// TimeFormat is 12-hour or 24-hour clock preference.
type TimeFormat string

const (
	TwelveHour     TimeFormat = "12h"
	TwentyFourHour TimeFormat = "24h"
)

// Context is the interpreted spatial situation of a user.
type Context struct {
	CountryCode       string
	CountryName       string
	Region            string
	Locale            string
	Language          string
	Script            string
	Timezone          string
	Currency          string
	MeasurementSystem MeasurementSystem
	DateFormat        DateFormat
	TimeFormat        TimeFormat
	ExplicitConsent   bool
	PrecisionLevel    string // region, country, unknown
}

// Interpretation carries advisory cultural defaults derived from the
// context. These seed defaults only; the composer never asserts them
// as facts.
type Interpretation struct {
	CulturalRegion        string
	PrimaryLanguage       string
	FormalityDefault      string
	DirectnessPreference  string
	ContextDependency     string
	TimeOrientation       string
	PunctualityExpectation string
	BusinessHoursTypical  string
	WeekendDays           []string
	Confidence            float64
	InferenceMethod       string
}

// LocaleDefaults are the format defaults derivable from a locale alone.
type LocaleDefaults struct {
	Locale            string
	Language          string
	Country           string
	TimezoneGuess     string
	DateFormat        DateFormat
	TimeFormat        TimeFormat
	MeasurementSystem MeasurementSystem
	Currency          string
	Confidence        float64
}

// Reasoner derives regional preferences and cultural context. It
// emphasizes explicit consent for location and inference for cultural
// defaults.
type Reasoner struct {
	defaultLocale string
}

// NewReasoner creates a spatial reasoner.
func NewReasoner(defaultLocale string) *Reasoner {
	if defaultLocale == "" {
		defaultLocale = "en-US"
	}
	return &Reasoner{defaultLocale: defaultLocale}
}

// Interpret derives the full spatial context from available signals.
// Country precedence: explicit country, then locale-derived country.
// A timezone guess is only made when the caller supplied none.
func (r *Reasoner) Interpret(locale, country, region, timezone string, explicitConsent bool) *Context {
	effectiveLocale := locale
	if effectiveLocale == "" {
		effectiveLocale = r.defaultLocale
	}
	language, script, localeCountry := ParseLocale(effectiveLocale)

	effectiveCountry := country
	if effectiveCountry == "" {
		effectiveCountry = localeCountry
	}

	effectiveTimezone := timezone
	if effectiveTimezone == "" && effectiveCountry != "" {
		effectiveTimezone = countryTimezones[effectiveCountry]
	}

	precision := "unknown"
	if region != "" {
		precision = "region"
	} else if effectiveCountry != "" {
		precision = "country"
	}

	ctx := &Context{
		CountryCode:       effectiveCountry,
		CountryName:       countryNames[effectiveCountry],
		Region:            region,
		Locale:            effectiveLocale,
		Language:          language,
		Script:            script,
		Timezone:          effectiveTimezone,
		Currency:          countryCurrencies[effectiveCountry],
		MeasurementSystem: measurementFor(effectiveCountry),
		DateFormat:        dateFormatFor(effectiveCountry, language),
		TimeFormat:        timeFormatFor(effectiveCountry),
		ExplicitConsent:   explicitConsent,
		PrecisionLevel:    precision,
	}

	slog.Debug("spatial context interpreted",
		"locale", effectiveLocale,
		"country", effectiveCountry,
		"precision", precision)

	return ctx
}

// GetInterpretation derives advisory cultural defaults for a context.
func (r *Reasoner) GetInterpretation(ctx *Context) *Interpretation {
	culturalRegion := "unknown"
	for region, countries := range culturalRegions {
		for _, c := range countries {
			if ctx.CountryCode == c {
				culturalRegion = region
				break
			}
		}
	}

	directness, contextDependency := communicationStyle(culturalRegion)
	timeOrientation, punctuality := timeCulture(culturalRegion)

	confidence := 0.6
	if ctx.ExplicitConsent {
		confidence = 0.9
	}
	if ctx.PrecisionLevel == "unknown" {
		confidence = 0.3
	}

	inferenceMethod := "language_based"
	if ctx.CountryCode != "" {
		inferenceMethod = "locale_and_country_based"
	}

	return &Interpretation{
		CulturalRegion:         titleRegion(culturalRegion),
		PrimaryLanguage:        ctx.Language,
		FormalityDefault:       formalityFor(culturalRegion, ctx.Language),
		DirectnessPreference:   directness,
		ContextDependency:      contextDependency,
		TimeOrientation:        timeOrientation,
		PunctualityExpectation: punctuality,
		BusinessHoursTypical:   businessHoursFor(culturalRegion),
		WeekendDays:            weekendDaysFor(ctx.CountryCode),
		Confidence:             confidence,
		InferenceMethod:        inferenceMethod,
	}
}

// GetLocaleDefaults returns format defaults for a bare locale.
func (r *Reasoner) GetLocaleDefaults(locale string) *LocaleDefaults {
	language, _, country := ParseLocale(locale)

	confidence := 0.5
	if country != "" {
		confidence = 0.9
	}

	return &LocaleDefaults{
		Locale:            locale,
		Language:          language,
		Country:           country,
		TimezoneGuess:     countryTimezones[country],
		DateFormat:        dateFormatFor(country, language),
		TimeFormat:        timeFormatFor(country),
		MeasurementSystem: measurementFor(country),
		Currency:          countryCurrencies[country],
		Confidence:        confidence,
	}
}

// ParseLocale splits a BCP 47 locale into (language, script, country).
// Sub-tags are classified longest-first: a 4-letter title-case tag is a
// script, a 2-letter tag a country.
func ParseLocale(locale string) (language, script, country string) {
	parts := strings.Split(strings.ReplaceAll(locale, "_", "-"), "-")

	language = "en"
	if len(parts) > 0 && parts[0] != "" {
		language = strings.ToLower(parts[0])
	}

	if len(parts) >= 2 {
		second := parts[1]
		switch {
		case len(second) == 4:
			script = strings.ToUpper(second[:1]) + strings.ToLower(second[1:])
			if len(parts) >= 3 && len(parts[2]) == 2 {
				country = strings.ToUpper(parts[2])
			}
		case len(second) == 2:
			country = strings.ToUpper(second)
		}
	}

	return language, script, country
}

// FormatForPrompt renders the spatial context as a prompt-ready line.
// Location is only stated under explicit consent.
func (r *Reasoner) FormatForPrompt(ctx *Context, interp *Interpretation, verbose bool) string {
	parts := []string{}

	if ctx.CountryName != "" && ctx.ExplicitConsent {
		location := ctx.CountryName
		if ctx.Region != "" {
			location = ctx.Region + ", " + location
		}
		parts = append(parts, "User location: "+location)
	}

	parts = append(parts, "Language preference: "+strings.ToUpper(ctx.Language))

	if verbose {
		parts = append(parts, "Cultural context: "+interp.CulturalRegion)
		parts = append(parts, "Communication style: "+interp.DirectnessPreference)
		if ctx.MeasurementSystem == Imperial {
			parts = append(parts, "Uses imperial measurements (miles, °F)")
		} else {
			parts = append(parts, "Uses metric measurements (km, °C)")
		}
	}

	return strings.Join(parts, "; ")
}

func titleRegion(region string) string {
	words := strings.Split(region, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
