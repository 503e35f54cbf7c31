package composer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Relevance grades how much an element matters to the current message.
type Relevance string

const (
	Critical   Relevance = "critical"
	High       Relevance = "high"
	Medium     Relevance = "medium"
	Low        Relevance = "low"
	Irrelevant Relevance = "irrelevant"
)

var relevanceWeights = map[Relevance]float64{
	Critical:   1.0,
	High:       0.8,
	Medium:     0.5,
	Low:        0.2,
	Irrelevant: 0.0,
}

// Element is a candidate for context injection.
type Element struct {
	Key            string
	Value          map[string]any
	Type           string // temporal, spatial, situational, device
	Relevance      Relevance
	Confidence     float64
	TokenEstimate  int
	Interpretation string
	// IrrelevantReason overrides the generic exclusion reason when the
	// element is graded irrelevant at build time.
	IrrelevantReason string
}

// InclusionScore is the ranking key: relevance weight times confidence.
func (e Element) InclusionScore() float64 {
	return relevanceWeights[e.Relevance] * e.Confidence
}

// Fixed keyword lexicons for message analysis.
var temporalKeywords = []string{
	"today", "tomorrow", "yesterday", "now", "later", "soon",
	"morning", "afternoon", "evening", "night", "week", "month",
	"schedule", "meeting", "deadline", "when", "time", "date",
	"remind", "appointment", "calendar", "o'clock", "am", "pm",
}

var spatialKeywords = []string{
	"here", "there", "near", "nearby", "local", "location",
	"weather", "timezone", "country", "city", "region",
	"restaurant", "store", "place", "address", "directions",
}

var situationalKeywords = []string{
	"this", "that", "it", "they", "continue", "again",
	"same", "previous", "earlier", "before", "last time",
	"as i said", "mentioned", "working on", "project",
}

// signalNormalizer bounds keyword-count normalization.
const signalNormalizer = 5.0

// Signals are the [0,1] per-domain relevance scores of a message.
type Signals struct {
	Temporal    float64
	Spatial     float64
	Situational float64
}

// AnalyzeMessage counts lexicon hits per domain and normalizes them.
func AnalyzeMessage(message string) Signals {
	lower := strings.ToLower(message)

	count := func(keywords []string) float64 {
		matches := 0
		for _, kw := range keywords {
			if containsWord(lower, kw) {
				matches++
			}
		}
		score := float64(matches) / signalNormalizer
		if score > 1 {
			return 1
		}
		return score
	}

	return Signals{
		Temporal:    count(temporalKeywords),
		Spatial:     count(spatialKeywords),
		Situational: count(situationalKeywords),
	}
}

func containsWord(haystack, word string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(haystack[start-1])
		afterOK := end == len(haystack) || !isWordByte(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '\''
}

// forbiddenKeys matches keys that suggest credentials or identifiers.
// Such fields never become elements, regardless of relevance.
var forbiddenKeys = regexp.MustCompile(`(?i)(password|api_key|apikey|token|credential|ssn|card_number|cardnumber|password_hash|secret)`)

// IsForbiddenKey reports whether a field may never enter composition.
func IsForbiddenKey(key string) bool {
	return forbiddenKeys.MatchString(key)
}

// scoreToRelevance converts a numeric score to a relevance grade.
func scoreToRelevance(score float64) Relevance {
	switch {
	case score >= 0.8:
		return Critical
	case score >= 0.6:
		return High
	case score >= 0.4:
		return Medium
	case score >= 0.2:
		return Low
	default:
		return Irrelevant
	}
}

// valueToString renders an element value as compact readable text.
func valueToString(value map[string]any) string {
	keys := make([]string, 0, len(value))
	for k := range value {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := value[k]
		if v == nil || v == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ", ")
}

// elementTokens estimates an element's injection cost from its
// rendered form.
func elementTokens(e Element) int {
	text := e.Interpretation
	if text == "" {
		text = e.Key + ": " + valueToString(e.Value)
	}
	return CountTokens(text)
}
