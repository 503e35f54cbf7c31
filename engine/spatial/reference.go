package spatial

import (
	"fmt"
	"strings"
)

// ResolvedLocation is the outcome of resolving a location reference.
type ResolvedLocation struct {
	Original      string
	Location      map[string]any
	Confidence    float64
	Method        string
	FellBack      bool
	DefaultReason string
}

// ResolveLocationReference resolves references like "here" against the
// user's spatial context. "here" resolves only under explicit consent;
// named locations ("home", "office") are left to downstream profile
// systems.
func (r *Reasoner) ResolveLocationReference(reference string, userContext *Context) *ResolvedLocation {
	text := strings.ToLower(strings.TrimSpace(reference))

	switch text {
	case "here", "this location", "current location", "around here":
		if userContext != nil && userContext.ExplicitConsent {
			return &ResolvedLocation{
				Original: reference,
				Location: map[string]any{
					"country":      userContext.CountryCode,
					"country_name": userContext.CountryName,
					"region":       userContext.Region,
				},
				Confidence: 0.9,
				Method:     "user_context",
			}
		}
		return &ResolvedLocation{
			Original:      reference,
			Confidence:    0.2,
			Method:        "no_location_consent",
			FellBack:      true,
			DefaultReason: "Location not available - user has not provided location consent",
		}

	case "home", "my place", "office", "work":
		return &ResolvedLocation{
			Original:      reference,
			Confidence:    0.1,
			Method:        "named_location_not_stored",
			FellBack:      true,
			DefaultReason: fmt.Sprintf("Named location %q not configured for user", text),
		}
	}

	return &ResolvedLocation{
		Original:      reference,
		Confidence:    0.1,
		Method:        "unrecognized",
		FellBack:      true,
		DefaultReason: fmt.Sprintf("Unable to resolve location reference: %s", text),
	}
}
