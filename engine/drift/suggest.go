package drift

import "fmt"

// ResolutionSuggestion describes how a signal could be resolved.
type ResolutionSuggestion struct {
	Action      string
	Description string
	Automatic   bool
	UserPrompt  string
}

// SuggestResolution advises how to resolve a drift signal.
func SuggestResolution(signal Signal) ResolutionSuggestion {
	switch signal.Type {
	case Staleness:
		return ResolutionSuggestion{
			Action:      "refresh",
			Description: "Request updated context from user or re-infer from recent activity",
			Automatic:   signal.Severity < 0.7,
			UserPrompt:  fmt.Sprintf("Your %s information might be outdated. Would you like to update it?", signal.ContextKey),
		}
	case CorrectionPattern:
		return ResolutionSuggestion{
			Action:      "confirm",
			Description: "Ask user to confirm the correct value",
			UserPrompt:  fmt.Sprintf("I've noticed some uncertainty about your %s. Can you confirm the current value?", signal.ContextKey),
		}
	case Conflict:
		return ResolutionSuggestion{
			Action:      "resolve_conflict",
			Description: "Present conflicting values to user for resolution",
			UserPrompt:  fmt.Sprintf("I found conflicting information about your %s. Which is correct?", signal.ContextKey),
		}
	case BehavioralMismatch:
		return ResolutionSuggestion{
			Action:      "investigate",
			Description: "Analyze recent interactions to understand mismatch",
			Automatic:   true,
		}
	}
	return ResolutionSuggestion{
		Action:      "monitor",
		Description: "Continue monitoring for further signals",
		Automatic:   true,
	}
}
