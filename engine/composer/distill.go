package composer

import "fmt"

// SituationBrief is the fixed two-sentence distillation used when the
// selected elements exceed the token budget. It is bounded by
// construction and is the only synthetic element outside the budget.
type SituationBrief struct {
	Activity        string
	Location        string
	TimeDescription string
	Constraint      string
	FullBrief       string
	TokenCount      int
}

// Distill collapses elements into a Situation Brief, extracting the
// strongest element of each domain or fixed defaults.
func Distill(elements []Element) *SituationBrief {
	brief := &SituationBrief{
		Activity:        "working",
		Location:        "an unspecified location",
		TimeDescription: "the current time",
		Constraint:      "no specific constraints",
	}

	for _, e := range elements {
		switch e.Type {
		case "situational":
			if brief.Activity == "working" {
				if activity := extractActivity(e); activity != "" {
					brief.Activity = activity
				}
			}
		case "spatial":
			if brief.Location == "an unspecified location" {
				if location := extractLocation(e); location != "" {
					brief.Location = location
				}
			}
		case "temporal":
			if brief.TimeDescription == "the current time" {
				if timeDesc := extractTime(e); timeDesc != "" {
					brief.TimeDescription = timeDesc
				}
			}
		}
		if brief.Constraint == "no specific constraints" {
			if constraint := extractConstraint(e); constraint != "" {
				brief.Constraint = constraint
			}
		}
	}

	brief.FullBrief = fmt.Sprintf(
		"User is currently %s in %s at %s. Previous context indicates %s.",
		brief.Activity, brief.Location, brief.TimeDescription, brief.Constraint)
	brief.TokenCount = CountTokens(brief.FullBrief)
	return brief
}

func extractActivity(e Element) string {
	for _, key := range []string{"activity", "description", "task"} {
		if v, ok := e.Value[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func extractLocation(e Element) string {
	parts := []string{}
	for _, key := range []string{"city", "region", "country"} {
		if v, ok := e.Value[key].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

func extractTime(e Element) string {
	tod, _ := e.Value["time_of_day"].(string)
	day, _ := e.Value["day"].(string)
	switch {
	case tod != "" && day != "":
		return tod + " on " + day
	case tod != "":
		return tod
	case day != "":
		return day
	}
	return ""
}

func extractConstraint(e Element) string {
	if v, ok := e.Value["deadline"].(string); ok && v != "" {
		return "deadline: " + v
	}
	if v, ok := e.Value["preference"].(string); ok && v != "" {
		return "prefers " + v
	}
	return ""
}
