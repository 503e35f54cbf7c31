// Package composer selects and frames the minimal context injection
// for one utterance: relevance scoring, token-budgeted selection,
// distillation, and provider-specific framing.
package composer

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/StrungPattern-coder/context/engine/spatial"
	"github.com/StrungPattern-coder/context/engine/temporal"
)

// Decision records why one candidate was included or excluded.
type Decision struct {
	Key        string
	Included   bool
	Reason     string
	Relevance  Relevance
	Confidence float64
}

// ComposedPrompt is the final composition. The user message is never
// rewritten.
type ComposedPrompt struct {
	SystemContext    string
	UserMessage      string
	IncludedElements []Element
	ExcludedElements []Element
	Decisions        []Decision
	TotalTokens      int
	Budget           TokenBudget
	SituationBrief   *SituationBrief
	Metadata         map[string]any
}

// Inputs are the interpretations available for composition.
type Inputs struct {
	Temporal        *temporal.Context
	TemporalInterp  *temporal.Interpretation
	Spatial         *spatial.Context
	SpatialInterp   *spatial.Interpretation
	Situational     map[string]any
	// Assumptions is the resolver's formatted reference summary; as the
	// distillation of already-admitted inputs it competes for budget
	// like any other element.
	Assumptions string
	// DeviceHints are the hardware-aware composition directives. A
	// critical or high device priority makes them a contract the
	// response must honor.
	DeviceHints    []string
	DevicePriority string
}

// Config tunes the composer with documented defaults.
type Config struct {
	// MaxContextTokens bounds the context injection.
	MaxContextTokens int
	// MinRelevance is the confidence floor for inclusion.
	MinRelevance float64
	// MaxTotalTokens bounds prompt plus context plus response.
	MaxTotalTokens int
}

// DefaultConfig returns the documented composer defaults.
func DefaultConfig() Config {
	return Config{MaxContextTokens: 500, MinRelevance: 0.3, MaxTotalTokens: 4096}
}

// Composer decides what context to inject.
type Composer struct {
	config Config
}

// NewComposer creates a prompt composer.
func NewComposer(config Config) *Composer {
	if config.MaxContextTokens <= 0 {
		config.MaxContextTokens = 500
	}
	if config.MinRelevance <= 0 {
		config.MinRelevance = 0.3
	}
	if config.MaxTotalTokens <= 0 {
		config.MaxTotalTokens = 4096
	}
	return &Composer{config: config}
}

// Compose runs the full pipeline: analyze, build candidates, score,
// select within the sliding budget, distill if needed, and frame for
// the provider.
func (c *Composer) Compose(userMessage string, in Inputs, provider string) *ComposedPrompt {
	signals := AnalyzeMessage(userMessage)
	elements := c.buildElements(in, signals)

	sort.SliceStable(elements, func(i, j int) bool {
		return elements[i].InclusionScore() > elements[j].InclusionScore()
	})

	budget := NewTokenBudget(CountTokens(userMessage), c.config.MaxTotalTokens, c.config.MaxContextTokens)

	// When even ranked selection cannot fit, collapse to the Situation
	// Brief instead of injecting a truncated fragment soup.
	candidateTokens := 0
	for _, e := range elements {
		if e.Relevance != Irrelevant && e.Confidence >= c.config.MinRelevance {
			candidateTokens += e.TokenEstimate
		}
	}

	composed := &ComposedPrompt{
		UserMessage: userMessage,
		Budget:      budget,
	}

	if candidateTokens > budget.AllocatedContextTokens*2 {
		brief := Distill(elements)
		composed.SituationBrief = brief
		composed.SystemContext = frameForProvider([]string{brief.FullBrief}, provider)
		composed.TotalTokens = brief.TokenCount
		composed.ExcludedElements = elements
		for _, e := range elements {
			composed.Decisions = append(composed.Decisions, Decision{
				Key: e.Key, Included: false, Reason: "distilled into situation brief",
				Relevance: e.Relevance, Confidence: e.Confidence,
			})
		}
		slog.Debug("context distilled into situation brief",
			"candidate_tokens", candidateTokens,
			"allocated", budget.AllocatedContextTokens)
		return composed
	}

	included, excluded, decisions := c.selectElements(elements, budget)
	composed.IncludedElements = included
	composed.ExcludedElements = excluded
	composed.Decisions = decisions

	lines := make([]string, 0, len(included))
	total := 0
	for _, e := range included {
		if e.Interpretation != "" {
			lines = append(lines, e.Interpretation)
		} else {
			lines = append(lines, e.Key+": "+valueToString(e.Value))
		}
		total += e.TokenEstimate
	}
	composed.SystemContext = frameForProvider(lines, provider)
	composed.TotalTokens = total
	composed.Metadata = map[string]any{
		"elements_included": len(included),
		"context_types":     elementTypes(included),
		"mean_confidence":   meanConfidence(included),
	}

	slog.Debug("prompt composed",
		"included", len(included),
		"excluded", len(excluded),
		"total_tokens", total,
		"allocated", budget.AllocatedContextTokens)

	return composed
}

func (c *Composer) buildElements(in Inputs, signals Signals) []Element {
	elements := []Element{}

	if in.Temporal != nil {
		value := map[string]any{
			"time":     in.Temporal.Timestamp.Format("3:04 PM"),
			"date":     in.Temporal.Timestamp.Format("2006-01-02"),
			"day":      in.Temporal.WeekdayName,
			"timezone": in.Temporal.Timezone,
		}
		interpretation := ""
		if in.TemporalInterp != nil {
			interpretation = fmt.Sprintf("It is currently %s on %s", in.TemporalInterp.TimeOfDayDescription, in.Temporal.WeekdayName)
		}
		e := Element{
			Key:            "current_time",
			Value:          value,
			Type:           "temporal",
			Relevance:      scoreToRelevance(0.3 + signals.Temporal*0.7),
			Confidence:     0.9,
			Interpretation: interpretation,
		}
		e.TokenEstimate = elementTokens(e)
		elements = append(elements, e)

		if in.TemporalInterp != nil {
			e := Element{
				Key: "time_semantics",
				Value: map[string]any{
					"time_of_day":       string(in.TemporalInterp.TimeOfDay),
					"is_weekend":        in.TemporalInterp.IsWeekend,
					"is_business_hours": in.TemporalInterp.IsBusinessHours,
				},
				Type:       "temporal",
				Relevance:  scoreToRelevance(signals.Temporal * 0.8),
				Confidence: 0.8,
			}
			e.TokenEstimate = elementTokens(e)
			elements = append(elements, e)
		}
	}

	if in.Spatial != nil {
		// Location is consent-gated; locale-derived defaults are not.
		if in.Spatial.ExplicitConsent && in.Spatial.CountryCode != "" {
			value := map[string]any{"country": in.Spatial.CountryName}
			if in.Spatial.Region != "" {
				value["region"] = in.Spatial.Region
			}
			e := Element{
				Key:        "location",
				Value:      value,
				Type:       "spatial",
				Relevance:  scoreToRelevance(0.2 + signals.Spatial*0.6),
				Confidence: 0.9,
			}
			// Location rides on an explicit reference; without one the
			// utterance does not need it.
			if signals.Spatial == 0 {
				e.Relevance = Irrelevant
				e.IrrelevantReason = "no location reference"
			}
			e.TokenEstimate = elementTokens(e)
			elements = append(elements, e)
		}

		e := Element{
			Key: "locale",
			Value: map[string]any{
				"locale":   in.Spatial.Locale,
				"language": in.Spatial.Language,
				"currency": in.Spatial.Currency,
				"units":    string(in.Spatial.MeasurementSystem),
			},
			Type:       "spatial",
			Relevance:  scoreToRelevance(signals.Spatial * 0.5),
			Confidence: 0.7,
		}
		e.TokenEstimate = elementTokens(e)
		elements = append(elements, e)
	}

	elements = append(elements, c.buildSituationalElements(in.Situational, signals)...)

	if len(in.DeviceHints) > 0 {
		relevance := Medium
		if in.DevicePriority == "critical" || in.DevicePriority == "high" {
			relevance = Critical
		}
		e := Element{
			Key:            "device_state",
			Value:          map[string]any{"priority": in.DevicePriority},
			Type:           "device",
			Relevance:      relevance,
			Confidence:     0.9,
			Interpretation: strings.Join(in.DeviceHints, " "),
		}
		e.TokenEstimate = elementTokens(e)
		elements = append(elements, e)
	}

	if in.Assumptions != "" {
		e := Element{
			Key:            "assumptions",
			Value:          map[string]any{"summary": in.Assumptions},
			Type:           "situational",
			Relevance:      scoreToRelevance(0.3 + signals.Situational*0.5),
			Confidence:     0.7,
			Interpretation: in.Assumptions,
		}
		e.TokenEstimate = elementTokens(e)
		elements = append(elements, e)
	}

	return elements
}

func (c *Composer) buildSituationalElements(situational map[string]any, signals Signals) []Element {
	if len(situational) == 0 {
		return nil
	}

	keys := make([]string, 0, len(situational))
	for k := range situational {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	elements := []Element{}
	for _, key := range keys {
		// Credential-shaped fields never become elements.
		if IsForbiddenKey(key) {
			slog.Debug("situational field excluded from composition", "key", key)
			continue
		}

		base := signals.Situational * 0.6
		if key == "current_task" || key == "activity" {
			base += 0.4
		}

		e := Element{
			Key:        key,
			Value:      map[string]any{key: situational[key]},
			Type:       "situational",
			Relevance:  scoreToRelevance(base),
			Confidence: 0.6,
		}
		if m, ok := situational[key].(map[string]any); ok {
			e.Value = m
		}
		e.TokenEstimate = elementTokens(e)
		elements = append(elements, e)
	}
	return elements
}

// selectElements walks the ranked candidates and admits them within
// the allocation. A critical element may exceed the budget; the
// overrun is logged.
func (c *Composer) selectElements(elements []Element, budget TokenBudget) (included, excluded []Element, decisions []Decision) {
	current := 0

	for _, e := range elements {
		switch {
		case e.Relevance == Irrelevant:
			reason := e.IrrelevantReason
			if reason == "" {
				reason = "not relevant"
			}
			excluded = append(excluded, e)
			decisions = append(decisions, Decision{
				Key: e.Key, Included: false, Reason: reason,
				Relevance: e.Relevance, Confidence: e.Confidence,
			})

		case e.Confidence < c.config.MinRelevance:
			excluded = append(excluded, e)
			decisions = append(decisions, Decision{
				Key: e.Key, Included: false,
				Reason:    fmt.Sprintf("confidence too low (%.2f < %.2f)", e.Confidence, c.config.MinRelevance),
				Relevance: e.Relevance, Confidence: e.Confidence,
			})

		case current+e.TokenEstimate <= budget.AllocatedContextTokens:
			included = append(included, e)
			current += e.TokenEstimate
			decisions = append(decisions, Decision{
				Key: e.Key, Included: true, Reason: "high relevance",
				Relevance: e.Relevance, Confidence: e.Confidence,
			})

		case e.Relevance == Critical:
			// A critical element is a contract that the utterance requires
			// it; admit over budget and log the overrun.
			included = append(included, e)
			current += e.TokenEstimate
			decisions = append(decisions, Decision{
				Key: e.Key, Included: true, Reason: "high relevance",
				Relevance: e.Relevance, Confidence: e.Confidence,
			})
			slog.Warn("critical element exceeds context budget",
				"key", e.Key,
				"tokens", current,
				"allocated", budget.AllocatedContextTokens)

		default:
			excluded = append(excluded, e)
			decisions = append(decisions, Decision{
				Key: e.Key, Included: false, Reason: "token budget exceeded",
				Relevance: e.Relevance, Confidence: e.Confidence,
			})
		}
	}

	return included, excluded, decisions
}

func elementTypes(elements []Element) []string {
	seen := map[string]bool{}
	types := []string{}
	for _, e := range elements {
		if !seen[e.Type] {
			seen[e.Type] = true
			types = append(types, e.Type)
		}
	}
	sort.Strings(types)
	return types
}

func meanConfidence(elements []Element) float64 {
	if len(elements) == 0 {
		return 0
	}
	total := 0.0
	for _, e := range elements {
		total += e.Confidence
	}
	return total / float64(len(elements))
}

// ExplainDecisions renders the decision audit as text lines.
func ExplainDecisions(composed *ComposedPrompt) []string {
	lines := make([]string, 0, len(composed.Decisions))
	for _, d := range composed.Decisions {
		verdict := "excluded"
		if d.Included {
			verdict = "included"
		}
		lines = append(lines, fmt.Sprintf("%s: %s (%s, relevance=%s, confidence=%.2f)", d.Key, verdict, d.Reason, d.Relevance, d.Confidence))
	}
	return lines
}
