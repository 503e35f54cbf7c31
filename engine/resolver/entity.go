package resolver

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	quotedPattern     = regexp.MustCompile(`"([^"]+)"`)
	properNounPattern = regexp.MustCompile(`\b([A-Z][a-z]+(?: [A-Z][a-z]+)+)\b`)
)

// resolveEntity resolves a pronoun or demonstrative against recent
// conversation history. The most recent candidate wins; multiple
// candidates lower confidence and trigger clarification.
func (r *Resolver) resolveEntity(reference string, history []Message) Result {
	if len(history) == 0 {
		return Result{
			Original:            reference,
			Kind:                KindEntity,
			Confidence:          0.3,
			Method:              "no_history",
			Reasoning:           "No conversation history to resolve reference",
			NeedsClarification:  true,
			ClarificationPrompt: fmt.Sprintf("What does %q refer to?", reference),
		}
	}

	candidates := r.extractEntityCandidates(history)
	if len(candidates) == 0 {
		return Result{
			Original:            reference,
			Kind:                KindEntity,
			Confidence:          0.3,
			Method:              "no_candidates",
			Reasoning:           "Could not find entity candidates in history",
			NeedsClarification:  true,
			ClarificationPrompt: fmt.Sprintf("I'm not sure what %q refers to. Can you be more specific?", reference),
		}
	}

	primary := candidates[0]
	confidence := 0.6
	if len(candidates) > 1 {
		confidence = 0.4
	}

	alternatives := []Candidate{}
	for _, candidate := range candidates[1:min(len(candidates), 3)] {
		alternatives = append(alternatives, Candidate{
			Value:      candidate,
			Confidence: 0.4,
			Method:     "history_search",
			Reasoning:  fmt.Sprintf("Found %q in recent conversation", candidate),
		})
	}

	needsClarification := confidence < r.confidenceThreshold || len(candidates) > 1
	prompt := ""
	if needsClarification && len(candidates) > 1 {
		prompt = fmt.Sprintf("Does %q refer to: %s?", reference, strings.Join(candidates[:min(len(candidates), 3)], ", "))
	}

	return Result{
		Original:            reference,
		Kind:                KindEntity,
		ResolvedValue:       primary,
		Confidence:          confidence,
		Method:              "history_most_recent",
		Reasoning:           fmt.Sprintf("Assuming %q refers to %q from recent context", reference, primary),
		NeedsClarification:  needsClarification,
		ClarificationPrompt: prompt,
		Alternatives:        alternatives,
	}
}

// extractEntityCandidates pulls quoted strings and capitalized noun
// phrases from the last few messages, most recent first.
func (r *Resolver) extractEntityCandidates(history []Message) []string {
	recent := history
	if len(recent) > r.historyDepth {
		recent = recent[len(recent)-r.historyDepth:]
	}

	candidates := []string{}
	for i := len(recent) - 1; i >= 0; i-- {
		content := recent[i].Content
		for _, match := range quotedPattern.FindAllStringSubmatch(content, -1) {
			candidates = append(candidates, match[1])
		}
		for _, match := range properNounPattern.FindAllStringSubmatch(content, -1) {
			candidates = append(candidates, match[1])
		}
	}

	// Deduplicate preserving order.
	seen := map[string]bool{}
	unique := []string{}
	for _, candidate := range candidates {
		key := strings.ToLower(candidate)
		if !seen[key] {
			seen[key] = true
			unique = append(unique, candidate)
		}
	}
	if len(unique) > 5 {
		unique = unique[:5]
	}
	return unique
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
