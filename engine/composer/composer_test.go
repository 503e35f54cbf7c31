package composer

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StrungPattern-coder/context/engine/spatial"
	"github.com/StrungPattern-coder/context/engine/temporal"
)

func temporalInputs(t *testing.T) (*temporal.Context, *temporal.Interpretation) {
	t.Helper()
	r := temporal.NewReasoner()
	ctx := r.Interpret(time.Date(2026, 1, 7, 14, 0, 0, 0, time.UTC), "UTC", nil)
	return ctx, r.GetInterpretation(ctx)
}

func spatialInputs(consent bool) (*spatial.Context, *spatial.Interpretation) {
	r := spatial.NewReasoner("en-US")
	ctx := r.Interpret("en-US", "US", "", "", consent)
	return ctx, r.GetInterpretation(ctx)
}

func TestAnalyzeMessageSignals(t *testing.T) {
	signals := AnalyzeMessage("Schedule a meeting for tomorrow")
	require.Greater(t, signals.Temporal, 0.0)
	require.Equal(t, 0.0, signals.Spatial)

	signals = AnalyzeMessage("any good restaurant nearby?")
	require.Greater(t, signals.Spatial, 0.0)

	// Keyword matching is word-bounded: "timely" is not "time".
	signals = AnalyzeMessage("a timely reply")
	require.Equal(t, 0.0, signals.Temporal)
}

func TestMinimalInjectionScenario(t *testing.T) {
	// "Schedule a meeting for tomorrow" with all domains available:
	// temporal included, spatial location excluded with no location
	// signal in the utterance.
	tc, ti := temporalInputs(t)
	sc, si := spatialInputs(true)

	c := NewComposer(DefaultConfig())
	composed := c.Compose("Schedule a meeting for tomorrow", Inputs{
		Temporal: tc, TemporalInterp: ti,
		Spatial: sc, SpatialInterp: si,
		Situational: map[string]any{"current_task": "quarterly planning"},
	}, "generic")

	includedKeys := map[string]bool{}
	for _, e := range composed.IncludedElements {
		includedKeys[e.Key] = true
	}
	require.True(t, includedKeys["current_time"], "temporal element must be included")

	foundTemporal := false
	for _, e := range composed.IncludedElements {
		if e.Key == "current_time" {
			foundTemporal = true
			require.Contains(t, []Relevance{Critical, High}, e.Relevance)
		}
	}
	require.True(t, foundTemporal)

	// No spatial keywords: location stays out, with the reason recorded.
	for _, d := range composed.Decisions {
		if d.Key == "location" {
			require.False(t, d.Included)
			require.Equal(t, "no location reference", d.Reason)
		}
	}

	require.LessOrEqual(t, composed.TotalTokens, composed.Budget.AllocatedContextTokens)
	require.Equal(t, "Schedule a meeting for tomorrow", composed.UserMessage)
}

func TestPIIExclusionScenario(t *testing.T) {
	tc, ti := temporalInputs(t)

	c := NewComposer(DefaultConfig())
	composed := c.Compose("what's my account status? continue with the project", Inputs{
		Temporal: tc, TemporalInterp: ti,
		Situational: map[string]any{
			"account_status": "active",
			"user_ssn":       "123-45-6789",
			"card_number":    "4111111111111111",
			"api_key":        "sk-" + strings.Repeat("a1B2", 8),
		},
	}, "generic")

	require.NotRegexp(t, regexp.MustCompile(`\d{3}-\d{2}-\d{4}`), composed.SystemContext)
	require.NotRegexp(t, regexp.MustCompile(`\b\d{16}\b`), composed.SystemContext)
	require.NotRegexp(t, regexp.MustCompile(`sk-[A-Za-z0-9]{32,}`), composed.SystemContext)

	// Credential-shaped fields are dropped before any decision is made.
	for _, d := range composed.Decisions {
		require.NotContains(t, []string{"user_ssn", "card_number", "api_key"}, d.Key,
			"credential-shaped fields must never reach the decision log")
	}
}

func TestDeviceHintsBecomeContractUnderConstraint(t *testing.T) {
	tc, ti := temporalInputs(t)
	c := NewComposer(DefaultConfig())

	composed := c.Compose("quick, what's next on my list?", Inputs{
		Temporal: tc, TemporalInterp: ti,
		DeviceHints:    []string{"User's device battery is critical (<10%). Prioritize essential information only.", "Keep response under 250 tokens."},
		DevicePriority: "critical",
	}, "generic")

	found := false
	for _, e := range composed.IncludedElements {
		if e.Key == "device_state" {
			found = true
			require.Equal(t, Critical, e.Relevance)
		}
	}
	require.True(t, found, "critical device hints must be included")
	require.Contains(t, composed.SystemContext, "battery is critical")
}

func TestInclusionScoreOrdering(t *testing.T) {
	a := Element{Relevance: Critical, Confidence: 0.5}
	b := Element{Relevance: High, Confidence: 1.0}
	require.Greater(t, b.InclusionScore(), a.InclusionScore())

	c := Element{Relevance: Irrelevant, Confidence: 1.0}
	require.Equal(t, 0.0, c.InclusionScore())
}

func TestBudgetSlidingScale(t *testing.T) {
	short := NewTokenBudget(10, 4096, 1000)
	require.Equal(t, 1000, short.AllocatedContextTokens)

	long := NewTokenBudget(600, 4096, 1000)
	require.Equal(t, 190, long.AllocatedContextTokens)

	mid := NewTokenBudget(275, 4096, 1000)
	require.Greater(t, mid.AllocatedContextTokens, long.AllocatedContextTokens)
	require.Less(t, mid.AllocatedContextTokens, short.AllocatedContextTokens)

	// Total budget minus the reserve caps the allocation.
	tight := NewTokenBudget(40, 700, 1000)
	require.Equal(t, 160, tight.AllocatedContextTokens)
}

func TestSelectionRespectsBudgetExceptCritical(t *testing.T) {
	c := NewComposer(Config{MaxContextTokens: 30, MinRelevance: 0.3, MaxTotalTokens: 4096})
	budget := NewTokenBudget(10, 4096, 30)

	elements := []Element{
		{Key: "a", Relevance: High, Confidence: 0.9, TokenEstimate: 20},
		{Key: "b", Relevance: Medium, Confidence: 0.9, TokenEstimate: 20},
		{Key: "c", Relevance: Critical, Confidence: 0.9, TokenEstimate: 20},
	}

	included, excluded, decisions := c.selectElements(elements, budget)
	keys := func(list []Element) []string {
		out := []string{}
		for _, e := range list {
			out = append(out, e.Key)
		}
		return out
	}
	require.Equal(t, []string{"a", "c"}, keys(included), "critical may overrun, medium may not")
	require.Equal(t, []string{"b"}, keys(excluded))

	for _, d := range decisions {
		if d.Key == "b" {
			require.Equal(t, "token budget exceeded", d.Reason)
		}
	}
}

func TestDistillationFallback(t *testing.T) {
	c := NewComposer(Config{MaxContextTokens: 10, MinRelevance: 0.3, MaxTotalTokens: 4096})
	tc, ti := temporalInputs(t)
	sc, si := spatialInputs(true)

	composed := c.Compose("schedule a meeting here tomorrow about the project we discussed earlier", Inputs{
		Temporal: tc, TemporalInterp: ti,
		Spatial: sc, SpatialInterp: si,
		Situational: map[string]any{
			"current_task": "writing the launch plan",
			"notes":        "long running discussion about deadlines and logistics",
		},
	}, "generic")

	require.NotNil(t, composed.SituationBrief)
	require.Contains(t, composed.SystemContext, "User is currently")
	require.Contains(t, composed.SystemContext, "Previous context indicates")
	require.Empty(t, composed.IncludedElements)
}

func TestSituationBriefShape(t *testing.T) {
	brief := Distill([]Element{
		{Type: "situational", Value: map[string]any{"activity": "debugging"}},
		{Type: "spatial", Value: map[string]any{"city": "Berlin", "country": "Germany"}},
		{Type: "temporal", Value: map[string]any{"time_of_day": "evening", "day": "Friday"}},
	})
	require.Equal(t, "User is currently debugging in Berlin, Germany at evening on Friday. Previous context indicates no specific constraints.", brief.FullBrief)
	require.Greater(t, brief.TokenCount, 0)
}

func TestProviderFraming(t *testing.T) {
	lines := []string{"It is evening", "User prefers metric"}

	generic := frameForProvider(lines, "generic")
	require.True(t, strings.HasPrefix(generic, "Current context for this user:"))
	require.Contains(t, generic, "- It is evening")

	anthropic := frameForProvider(lines, "anthropic")
	require.True(t, strings.HasPrefix(anthropic, "<context>"))
	require.True(t, strings.HasSuffix(anthropic, "</context>"))

	google := frameForProvider(lines, "google")
	require.True(t, strings.HasPrefix(google, "[User Context]"))
	require.True(t, strings.HasSuffix(google, "[End Context]"))

	unknown := frameForProvider(lines, "acme")
	require.Equal(t, generic, unknown)

	require.Empty(t, frameForProvider(nil, "generic"))
}

func TestToChatMessages(t *testing.T) {
	composed := &ComposedPrompt{SystemContext: "ctx", UserMessage: "hi"}

	system := ToChatMessages(composed, InjectSystem)
	require.Len(t, system, 2)
	require.Equal(t, "system", system[0].Role)
	require.Equal(t, "ctx", system[0].Content)
	require.Equal(t, "hi", system[1].Content)

	prefix := ToChatMessages(composed, InjectPrefix)
	require.Len(t, prefix, 1)
	require.True(t, strings.HasPrefix(prefix[0].Content, "ctx"))

	suffix := ToChatMessages(composed, InjectSuffix)
	require.True(t, strings.HasSuffix(suffix[0].Content, "ctx"))
}

func TestCountTokensFallbackBounds(t *testing.T) {
	require.Equal(t, 0, CountTokens(""))
	require.Greater(t, CountTokens("hello world"), 0)
	require.Equal(t, 0, estimateTokens(""))
	require.Equal(t, 1, estimateTokens("abc"))
	require.Equal(t, 3, estimateTokens("abcdefghij"))
}
