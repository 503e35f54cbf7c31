// Package resolver detects ambiguous references in an utterance and
// dispatches them to temporal, spatial, or entity resolution with
// per-reference confidence. It never silently assumes when confidence
// is low.
package resolver

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/StrungPattern-coder/context/engine/spatial"
	"github.com/StrungPattern-coder/context/engine/temporal"
)

// ReferenceKind classifies a detected reference.
type ReferenceKind string

const (
	KindTemporal ReferenceKind = "temporal"
	KindSpatial  ReferenceKind = "spatial"
	KindEntity   ReferenceKind = "entity"
	KindUnknown  ReferenceKind = "unknown"
)

// Reference is a detected span in the utterance.
type Reference struct {
	Text  string
	Kind  ReferenceKind
	Start int
	End   int
}

// Candidate is a possible resolution for an ambiguous reference.
type Candidate struct {
	Value      any
	Confidence float64
	Method     string
	Reasoning  string
}

// Result is the resolution of one reference.
type Result struct {
	Original            string
	Kind                ReferenceKind
	ResolvedValue       any
	Confidence          float64
	Method              string
	Reasoning           string
	NeedsClarification  bool
	ClarificationPrompt string
	Alternatives        []Candidate
}

// Message is one turn of conversation history for entity resolution.
type Message struct {
	Role    string
	Content string
}

// Reference patterns, longer first within each list so partial matches
// never shadow the full phrase.
var temporalPatterns = compile(
	`\bday before yesterday\b`,
	`\bday after tomorrow\b`,
	`\bthis morning\b`,
	`\bthis afternoon\b`,
	`\bthis evening\b`,
	`\blast night\b`,
	`\bthis week\b`,
	`\blast week\b`,
	`\bnext week\b`,
	`\byesterday\b`,
	`\btomorrow\b`,
	`\btonight\b`,
	`\bearlier\b`,
	`\btoday\b`,
	`\blater\b`,
	`\bnow\b`,
)

var spatialPatterns = compile(
	`\baround here\b`,
	`\bthis place\b`,
	`\bnearby\b`,
	`\blocal\b`,
	`\bhere\b`,
)

var pronounPatterns = compile(
	`\bthe same\b`,
	`\bthese\b`,
	`\bthose\b`,
	`\bthis\b`,
	`\bthat\b`,
	`\bit\b`,
)

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// Resolver dispatches detected references to the reasoners.
type Resolver struct {
	temporal *temporal.Reasoner
	spatial  *spatial.Reasoner

	// confidenceThreshold marks resolutions needing clarification.
	confidenceThreshold float64
	// highConfidenceThreshold marks resolutions stated as facts.
	highConfidenceThreshold float64
	// historyDepth is how many trailing messages entity search reads.
	historyDepth int
}

// NewResolver creates an assumption resolver around the two reasoners.
func NewResolver(temporalReasoner *temporal.Reasoner, spatialReasoner *spatial.Reasoner, confidenceThreshold, highConfidenceThreshold float64) *Resolver {
	if confidenceThreshold <= 0 {
		confidenceThreshold = 0.5
	}
	if highConfidenceThreshold <= 0 {
		highConfidenceThreshold = 0.8
	}
	return &Resolver{
		temporal:                temporalReasoner,
		spatial:                 spatialReasoner,
		confidenceThreshold:     confidenceThreshold,
		highConfidenceThreshold: highConfidenceThreshold,
		historyDepth:            5,
	}
}

// DetectReferences scans the text and returns spans ordered by
// position. Overlapping matches keep the earliest-registered (longest)
// pattern.
func (r *Resolver) DetectReferences(text string) []Reference {
	references := []Reference{}
	claimed := make([]bool, len(text))

	scan := func(patterns []*regexp.Regexp, kind ReferenceKind, filter func(start int) bool) {
		for _, pattern := range patterns {
			for _, loc := range pattern.FindAllStringIndex(text, -1) {
				if overlaps(claimed, loc[0], loc[1]) {
					continue
				}
				if filter != nil && !filter(loc[0]) {
					continue
				}
				references = append(references, Reference{
					Text:  text[loc[0]:loc[1]],
					Kind:  kind,
					Start: loc[0],
					End:   loc[1],
				})
				claim(claimed, loc[0], loc[1])
			}
		}
	}

	scan(temporalPatterns, KindTemporal, nil)
	scan(spatialPatterns, KindSpatial, nil)
	// Pronouns at a sentence start usually introduce rather than refer.
	scan(pronounPatterns, KindEntity, func(start int) bool {
		return start > 0 && !strings.ContainsRune(".!?", rune(text[start-1])) &&
			(start < 2 || !strings.ContainsAny(text[start-2:start], ".!?"))
	})

	sort.Slice(references, func(i, j int) bool { return references[i].Start < references[j].Start })
	return references
}

func overlaps(claimed []bool, start, end int) bool {
	for i := start; i < end && i < len(claimed); i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}

func claim(claimed []bool, start, end int) {
	for i := start; i < end && i < len(claimed); i++ {
		claimed[i] = true
	}
}

// Resolve resolves a single reference against the available context.
func (r *Resolver) Resolve(reference Reference, temporalCtx *temporal.Context, spatialCtx *spatial.Context, history []Message) Result {
	switch reference.Kind {
	case KindTemporal:
		return r.resolveTemporal(reference.Text, temporalCtx)
	case KindSpatial:
		return r.resolveSpatial(reference.Text, spatialCtx)
	case KindEntity:
		return r.resolveEntity(reference.Text, history)
	}

	return Result{
		Original:            reference.Text,
		Kind:                KindUnknown,
		Confidence:          0.1,
		Method:              "unknown_type",
		Reasoning:           "Reference type not recognized",
		NeedsClarification:  true,
		ClarificationPrompt: fmt.Sprintf("I'm not sure what %q refers to. Can you clarify?", reference.Text),
	}
}

// ResolveAll detects and resolves every reference in the text.
func (r *Resolver) ResolveAll(text string, temporalCtx *temporal.Context, spatialCtx *spatial.Context, history []Message) []Result {
	references := r.DetectReferences(text)
	results := make([]Result, 0, len(references))
	for _, reference := range references {
		results = append(results, r.Resolve(reference, temporalCtx, spatialCtx, history))
	}
	return results
}

// OverallConfidence is the weakest-link confidence across results.
func OverallConfidence(results []Result) float64 {
	if len(results) == 0 {
		return 1.0
	}
	min := results[0].Confidence
	for _, result := range results[1:] {
		if result.Confidence < min {
			min = result.Confidence
		}
	}
	return min
}

// ClarificationsNeeded collects the prompts for low-confidence results.
func ClarificationsNeeded(results []Result) []string {
	prompts := []string{}
	for _, result := range results {
		if result.NeedsClarification && result.ClarificationPrompt != "" {
			prompts = append(prompts, result.ClarificationPrompt)
		}
	}
	return prompts
}

func (r *Resolver) resolveTemporal(reference string, ctx *temporal.Context) Result {
	if ctx == nil {
		return Result{
			Original:            reference,
			Kind:                KindTemporal,
			Confidence:          0.2,
			Method:              "no_context",
			Reasoning:           "No temporal context available",
			NeedsClarification:  true,
			ClarificationPrompt: fmt.Sprintf("What time or date does %q refer to?", reference),
		}
	}

	resolved := r.temporal.ResolveReference(reference, ctx)

	needsClarification := resolved.Confidence < r.confidenceThreshold
	prompt := ""
	if needsClarification {
		if resolved.Ambiguous && len(resolved.Alternatives) > 0 {
			windows := make([]string, 0, len(resolved.Alternatives))
			for _, alt := range resolved.Alternatives {
				windows = append(windows, alt.Window)
			}
			prompt = fmt.Sprintf("%q could mean: %s. Which did you mean?", reference, strings.Join(windows, ", "))
		} else {
			prompt = fmt.Sprintf("I interpreted %q as %s. Is that correct?", reference, resolved.HumanReadable)
		}
	}

	alternatives := make([]Candidate, 0, len(resolved.Alternatives))
	for _, alt := range resolved.Alternatives {
		alternatives = append(alternatives, Candidate{
			Value:      alt.Window,
			Confidence: alt.Confidence,
			Method:     "alternative",
			Reasoning:  fmt.Sprintf("Alternative interpretation: %s", alt.Window),
		})
	}

	value := map[string]any{
		"start":          resolved.Start,
		"human_readable": resolved.HumanReadable,
	}
	if resolved.End != nil {
		value["end"] = *resolved.End
	}

	return Result{
		Original:            reference,
		Kind:                KindTemporal,
		ResolvedValue:       value,
		Confidence:          resolved.Confidence,
		Method:              resolved.Method,
		Reasoning:           fmt.Sprintf("Resolved %q to %s", reference, resolved.HumanReadable),
		NeedsClarification:  needsClarification,
		ClarificationPrompt: prompt,
		Alternatives:        alternatives,
	}
}

func (r *Resolver) resolveSpatial(reference string, ctx *spatial.Context) Result {
	if ctx == nil {
		return Result{
			Original:            reference,
			Kind:                KindSpatial,
			Confidence:          0.2,
			Method:              "no_context",
			Reasoning:           "No spatial context available",
			NeedsClarification:  true,
			ClarificationPrompt: fmt.Sprintf("What location does %q refer to?", reference),
		}
	}

	resolved := r.spatial.ResolveLocationReference(reference, ctx)

	needsClarification := resolved.Confidence < r.confidenceThreshold
	prompt := ""
	if needsClarification {
		if resolved.FellBack {
			prompt = fmt.Sprintf("I couldn't determine %q. %s", reference, resolved.DefaultReason)
		} else {
			prompt = fmt.Sprintf("Did you mean %v?", resolved.Location)
		}
	}

	var value any
	if resolved.Location != nil {
		value = resolved.Location
	}

	return Result{
		Original:            reference,
		Kind:                KindSpatial,
		ResolvedValue:       value,
		Confidence:          resolved.Confidence,
		Method:              resolved.Method,
		Reasoning:           fmt.Sprintf("Resolved %q using %s", reference, resolved.Method),
		NeedsClarification:  needsClarification,
		ClarificationPrompt: prompt,
	}
}

// FormatForPrompt renders resolutions for injection: high-confidence
// ones as statements, medium-confidence ones hedged.
func (r *Resolver) FormatForPrompt(results []Result) string {
	parts := []string{}

	for _, result := range results {
		if result.Kind != KindTemporal && result.Kind != KindSpatial {
			continue
		}
		readable := readableValue(result)
		switch {
		case result.Confidence >= r.highConfidenceThreshold:
			parts = append(parts, fmt.Sprintf("'%s' = %s", result.Original, readable))
		case result.Confidence >= r.confidenceThreshold:
			parts = append(parts, fmt.Sprintf("'%s' likely refers to %s", result.Original, readable))
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return "Reference resolutions: " + strings.Join(parts, "; ")
}

func readableValue(result Result) string {
	if m, ok := result.ResolvedValue.(map[string]any); ok {
		if hr, ok := m["human_readable"].(string); ok && hr != "" {
			return hr
		}
	}
	return fmt.Sprint(result.ResolvedValue)
}
