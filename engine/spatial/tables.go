package spatial

// Fixed regional tables. These are advisory seeds, not authoritative
// geographic data.

var countryTimezones = map[string]string{
	"US": "America/New_York",
	"GB": "Europe/London",
	"AU": "Australia/Sydney",
	"CA": "America/Toronto",
	"IN": "Asia/Kolkata",
	"DE": "Europe/Berlin",
	"FR": "Europe/Paris",
	"ES": "Europe/Madrid",
	"JP": "Asia/Tokyo",
	"CN": "Asia/Shanghai",
	"BR": "America/Sao_Paulo",
	"RU": "Europe/Moscow",
}

var countryCurrencies = map[string]string{
	"US": "USD",
	"GB": "GBP",
	"AU": "AUD",
	"CA": "CAD",
	"IN": "INR",
	"DE": "EUR",
	"FR": "EUR",
	"ES": "EUR",
	"JP": "JPY",
	"CN": "CNY",
	"BR": "BRL",
	"RU": "RUB",
}

var countryNames = map[string]string{
	"US": "United States",
	"GB": "United Kingdom",
	"AU": "Australia",
	"CA": "Canada",
	"IN": "India",
	"DE": "Germany",
	"FR": "France",
	"ES": "Spain",
	"JP": "Japan",
	"CN": "China",
	"BR": "Brazil",
	"RU": "Russia",
	"MX": "Mexico",
	"IT": "Italy",
	"NL": "Netherlands",
	"KR": "South Korea",
	"SA": "Saudi Arabia",
	"AE": "United Arab Emirates",
}

// imperialCountries is the small closed set still on imperial units.
var imperialCountries = map[string]bool{"US": true, "LR": true, "MM": true}

var twelveHourCountries = map[string]bool{
	"US": true, "CA": true, "AU": true, "IN": true, "PH": true, "MY": true, "EG": true,
}

var mdyCountries = map[string]bool{"US": true, "PH": true, "CA": true}

// ymdLanguages prefer year-first dates.
var ymdLanguages = map[string]bool{"zh": true, "ja": true, "ko": true}

var culturalRegions = map[string][]string{
	"western_europe": {"GB", "DE", "FR", "ES", "IT", "NL", "BE", "AT", "CH", "IE"},
	"eastern_europe": {"RU", "PL", "UA", "CZ", "HU", "RO", "BG"},
	"north_america":  {"US", "CA", "MX"},
	"south_america":  {"BR", "AR", "CO", "PE", "CL"},
	"east_asia":      {"JP", "KR", "CN", "TW", "HK"},
	"south_asia":     {"IN", "PK", "BD", "LK"},
	"southeast_asia": {"TH", "VN", "SG", "MY", "ID", "PH"},
	"middle_east":    {"SA", "AE", "IL", "EG", "TR"},
	"oceania":        {"AU", "NZ"},
	"africa":         {"ZA", "NG", "KE", "EG"},
}

var fridaySaturdayWeekend = map[string]bool{
	"SA": true, "AE": true, "KW": true, "BH": true, "QA": true,
	"OM": true, "YE": true, "AF": true, "IL": true,
}

var formalLanguages = map[string]bool{"ja": true, "ko": true, "de": true, "fr": true}

func measurementFor(country string) MeasurementSystem {
	if imperialCountries[country] {
		return Imperial
	}
	return Metric
}

func dateFormatFor(country, language string) DateFormat {
	if mdyCountries[country] {
		return MDY
	}
	if ymdLanguages[language] {
		return YMD
	}
	return DMY
}

func timeFormatFor(country string) TimeFormat {
	if twelveHourCountries[country] {
		return TwelveHour
	}
	return TwentyFourHour
}

func communicationStyle(culturalRegion string) (directness, contextDependency string) {
	switch culturalRegion {
	case "east_asia", "southeast_asia", "middle_east":
		return "indirect", "high-context"
	case "north_america", "western_europe":
		return "direct", "low-context"
	default:
		return "moderate", "medium-context"
	}
}

func formalityFor(culturalRegion, language string) string {
	if formalLanguages[language] {
		return "formal"
	}
	switch culturalRegion {
	case "east_asia", "middle_east":
		return "formal"
	case "north_america":
		return "informal"
	default:
		return "neutral"
	}
}

func timeCulture(culturalRegion string) (orientation, punctuality string) {
	switch culturalRegion {
	case "western_europe", "north_america", "east_asia":
		return "monochronic", "strict"
	case "south_america", "middle_east", "south_asia":
		return "polychronic", "relaxed"
	default:
		return "mixed", "moderate"
	}
}

func businessHoursFor(culturalRegion string) string {
	switch culturalRegion {
	case "east_asia":
		return "9:00 - 18:00 (often longer)"
	case "middle_east":
		return "8:00 - 16:00 (Sunday-Thursday typical)"
	default:
		return "9:00 - 17:00"
	}
}

func weekendDaysFor(country string) []string {
	if fridaySaturdayWeekend[country] {
		return []string{"Friday", "Saturday"}
	}
	return []string{"Saturday", "Sunday"}
}
