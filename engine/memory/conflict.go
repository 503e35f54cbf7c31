package memory

import (
	"errors"
	"fmt"

	"github.com/StrungPattern-coder/context/store"
)

// ErrNotFound marks a missing context, user, or version.
var ErrNotFound = errors.New("not found")

// Strategy selects how same-key collisions between sources resolve.
type Strategy string

const (
	UserWins       Strategy = "user_wins"
	SensorWins     Strategy = "sensor_wins"
	NewerWins      Strategy = "newer_wins"
	ConfidenceWins Strategy = "confidence_wins"
	Merge          Strategy = "merge"
)

// sourcePriority is the fixed tiebreaker table applied when no
// strategy resolves the collision.
var sourcePriority = map[string]int{
	"user_explicit": 100,
	"user_implicit": 80,
	"api":           60,
	"sensor":        50,
	"inference":     40,
	"historical":    20,
}

// Incoming is the colliding write under resolution.
type Incoming struct {
	Value      map[string]any
	Source     string
	Confidence float64
	CreatedTs  int64
}

// Resolution records which value won and why.
type Resolution struct {
	Value       map[string]any
	Source      string
	Strategy    Strategy
	Merged      bool
	Explanation string
}

// ResolveConflict resolves a collision between an existing record and
// an incoming write.
func ResolveConflict(existing *store.ContextRecord, incoming Incoming, strategy Strategy) *Resolution {
	switch strategy {
	case UserWins:
		if incoming.Source == "user_explicit" {
			return &Resolution{
				Value:       incoming.Value,
				Source:      incoming.Source,
				Strategy:    strategy,
				Explanation: "User explicit input takes priority",
			}
		}
		if existing.Source == "user_explicit" {
			return &Resolution{
				Value:       existing.Value,
				Source:      existing.Source,
				Strategy:    strategy,
				Explanation: "Existing user explicit input preserved",
			}
		}
		// Neither side is explicit user input; fall through to the
		// priority table.

	case SensorWins:
		if incoming.Source == "sensor" {
			return &Resolution{
				Value:       incoming.Value,
				Source:      incoming.Source,
				Strategy:    strategy,
				Explanation: "Sensor data takes priority",
			}
		}

	case NewerWins:
		if incoming.CreatedTs > existing.UpdatedTs {
			return &Resolution{
				Value:       incoming.Value,
				Source:      incoming.Source,
				Strategy:    strategy,
				Explanation: "Newer entry wins",
			}
		}
		return &Resolution{
			Value:       existing.Value,
			Source:      existing.Source,
			Strategy:    strategy,
			Explanation: "Existing entry is newer",
		}

	case ConfidenceWins:
		if incoming.Confidence > existing.Confidence {
			return &Resolution{
				Value:       incoming.Value,
				Source:      incoming.Source,
				Strategy:    strategy,
				Explanation: fmt.Sprintf("Higher confidence (%.2f > %.2f)", incoming.Confidence, existing.Confidence),
			}
		}
		return &Resolution{
			Value:       existing.Value,
			Source:      existing.Source,
			Strategy:    strategy,
			Explanation: fmt.Sprintf("Existing has higher confidence (%.2f)", existing.Confidence),
		}

	case Merge:
		return &Resolution{
			Value:       mergeMaps(existing.Value, incoming.Value),
			Source:      incoming.Source,
			Strategy:    strategy,
			Merged:      true,
			Explanation: "Values merged",
		}
	}

	// Tiebreaker: fixed source-priority table.
	if sourcePriority[incoming.Source] > sourcePriority[existing.Source] {
		return &Resolution{
			Value:       incoming.Value,
			Source:      incoming.Source,
			Strategy:    strategy,
			Explanation: fmt.Sprintf("Higher priority source (%s)", incoming.Source),
		}
	}
	return &Resolution{
		Value:       existing.Value,
		Source:      existing.Source,
		Strategy:    strategy,
		Explanation: fmt.Sprintf("Existing source has priority (%s)", existing.Source),
	}
}

// mergeMaps deep-merges maps, unions lists, and lets incoming scalars
// win.
func mergeMaps(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, incomingValue := range incoming {
		existingValue, ok := merged[k]
		if !ok {
			merged[k] = incomingValue
			continue
		}
		merged[k] = mergeValues(existingValue, incomingValue)
	}
	return merged
}

func mergeValues(existing, incoming any) any {
	if em, ok := existing.(map[string]any); ok {
		if im, ok := incoming.(map[string]any); ok {
			return mergeMaps(em, im)
		}
	}
	if el, ok := existing.([]any); ok {
		if il, ok := incoming.([]any); ok {
			return unionLists(el, il)
		}
	}
	// Incoming wins for scalars.
	return incoming
}

func unionLists(existing, incoming []any) []any {
	combined := make([]any, len(existing), len(existing)+len(incoming))
	copy(combined, existing)
	for _, item := range incoming {
		found := false
		for _, have := range combined {
			if fmt.Sprint(have) == fmt.Sprint(item) {
				found = true
				break
			}
		}
		if !found {
			combined = append(combined, item)
		}
	}
	return combined
}
