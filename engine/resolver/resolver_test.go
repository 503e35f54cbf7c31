package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StrungPattern-coder/context/engine/spatial"
	"github.com/StrungPattern-coder/context/engine/temporal"
)

func newTestResolver() (*Resolver, *temporal.Reasoner, *spatial.Reasoner) {
	tr := temporal.NewReasoner()
	sr := spatial.NewReasoner("en-US")
	return NewResolver(tr, sr, 0.5, 0.8), tr, sr
}

func anchorAt(t *testing.T, tr *temporal.Reasoner, hour int) *temporal.Context {
	t.Helper()
	return tr.Interpret(time.Date(2026, 1, 7, hour, 0, 0, 0, time.UTC), "UTC", nil)
}

func TestDetectReferencesKindsAndOrder(t *testing.T) {
	r, _, _ := newTestResolver()

	refs := r.DetectReferences("I had a meeting here yesterday about it")
	require.Len(t, refs, 3)
	require.Equal(t, KindSpatial, refs[0].Kind)
	require.Equal(t, "here", refs[0].Text)
	require.Equal(t, KindTemporal, refs[1].Kind)
	require.Equal(t, "yesterday", refs[1].Text)
	require.Equal(t, KindEntity, refs[2].Kind)
	require.Equal(t, "it", refs[2].Text)

	for i := 1; i < len(refs); i++ {
		require.Greater(t, refs[i].Start, refs[i-1].Start)
	}
}

func TestDetectLongestPatternWins(t *testing.T) {
	r, _, _ := newTestResolver()

	refs := r.DetectReferences("we spoke the day before yesterday")
	require.Len(t, refs, 1)
	require.Equal(t, "day before yesterday", refs[0].Text)
}

func TestDetectSentenceStartPronounSkipped(t *testing.T) {
	r, _, _ := newTestResolver()

	refs := r.DetectReferences("This is fine")
	require.Empty(t, refs, "sentence-leading pronoun introduces, not refers")

	refs = r.DetectReferences("I like this")
	require.Len(t, refs, 1)
	require.Equal(t, KindEntity, refs[0].Kind)
}

func TestResolveTemporalDispatch(t *testing.T) {
	r, tr, _ := newTestResolver()
	anchor := anchorAt(t, tr, 14)

	results := r.ResolveAll("schedule it for tomorrow", anchor, nil, []Message{{Role: "user", Content: `the "launch review"`}})
	require.Len(t, results, 2)

	var temporalResult *Result
	for i := range results {
		if results[i].Kind == KindTemporal {
			temporalResult = &results[i]
		}
	}
	require.NotNil(t, temporalResult)
	require.InDelta(t, 0.95, temporalResult.Confidence, 0.001)
	require.False(t, temporalResult.NeedsClarification)
}

func TestResolveTemporalWithoutContext(t *testing.T) {
	r, _, _ := newTestResolver()

	result := r.Resolve(Reference{Text: "today", Kind: KindTemporal}, nil, nil, nil)
	require.InDelta(t, 0.2, result.Confidence, 0.001)
	require.True(t, result.NeedsClarification)
	require.NotEmpty(t, result.ClarificationPrompt)
}

func TestResolveSpatialConsentGate(t *testing.T) {
	r, _, sr := newTestResolver()

	withConsent := sr.Interpret("en-US", "US", "", "", true)
	result := r.Resolve(Reference{Text: "here", Kind: KindSpatial}, nil, withConsent, nil)
	require.InDelta(t, 0.9, result.Confidence, 0.001)
	require.False(t, result.NeedsClarification)

	withoutConsent := sr.Interpret("en-US", "US", "", "", false)
	result = r.Resolve(Reference{Text: "here", Kind: KindSpatial}, nil, withoutConsent, nil)
	require.InDelta(t, 0.2, result.Confidence, 0.001)
	require.True(t, result.NeedsClarification)
	require.Contains(t, result.ClarificationPrompt, "consent")
}

func TestResolveEntityFromHistory(t *testing.T) {
	r, _, _ := newTestResolver()

	history := []Message{
		{Role: "user", Content: "I started the Phoenix Project last month"},
		{Role: "assistant", Content: "How is it going?"},
	}
	result := r.resolveEntity("it", history)
	require.Equal(t, "Phoenix Project", result.ResolvedValue)
	require.InDelta(t, 0.6, result.Confidence, 0.001)
	require.False(t, result.NeedsClarification)
}

func TestResolveEntityMultipleCandidates(t *testing.T) {
	r, _, _ := newTestResolver()

	history := []Message{
		{Role: "user", Content: `We compared "plan a" against the Budget Review today`},
	}
	result := r.resolveEntity("that", history)
	require.InDelta(t, 0.4, result.Confidence, 0.001)
	require.True(t, result.NeedsClarification)
	require.NotEmpty(t, result.Alternatives)
	require.Contains(t, result.ClarificationPrompt, "refer to")
}

func TestResolveEntityWithoutHistory(t *testing.T) {
	r, _, _ := newTestResolver()

	result := r.resolveEntity("it", nil)
	require.InDelta(t, 0.3, result.Confidence, 0.001)
	require.True(t, result.NeedsClarification)
}

func TestOverallConfidenceIsWeakestLink(t *testing.T) {
	results := []Result{
		{Confidence: 0.95},
		{Confidence: 0.4},
		{Confidence: 0.8},
	}
	require.InDelta(t, 0.4, OverallConfidence(results), 0.001)
	require.Equal(t, 1.0, OverallConfidence(nil))
}

func TestFormatForPromptHedging(t *testing.T) {
	r, tr, _ := newTestResolver()
	anchor := anchorAt(t, tr, 14)

	high := r.resolveTemporal("today", anchor)
	medium := r.resolveTemporal("earlier", anchor) // 0.5 without session

	out := r.FormatForPrompt([]Result{high, medium})
	require.Contains(t, out, "'today' =")
	require.Contains(t, out, "'earlier' likely refers to")
}

func TestClarificationsNeeded(t *testing.T) {
	results := []Result{
		{NeedsClarification: true, ClarificationPrompt: "which day?"},
		{NeedsClarification: false},
		{NeedsClarification: true},
	}
	require.Equal(t, []string{"which day?"}, ClarificationsNeeded(results))
}
