package situational

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedEngine() (*Engine, time.Time) {
	e := NewEngine()
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	return e, now
}

func TestInterpretDetectsTask(t *testing.T) {
	e, _ := fixedEngine()

	got := e.Interpret("user-1", "I'm working on the quarterly report. Can it wait?", "sess-1")
	require.Len(t, got.ActiveTasks, 1)
	task := got.ActiveTasks[0]
	require.Equal(t, TaskActive, task.Status)
	require.Contains(t, task.Description, "working on the quarterly report")
	require.InDelta(t, 0.7, task.Confidence, 0.001)

	work := got.Assumptions["current_work"].(map[string]any)
	require.Contains(t, work["task"], "quarterly report")
}

func TestRepeatedTaskReinforces(t *testing.T) {
	e, _ := fixedEngine()

	first := e.Interpret("user-1", "working on the launch plan", "s")
	second := e.Interpret("user-1", "still working on the launch plan", "s")

	require.Len(t, second.ActiveTasks, 1)
	require.Equal(t, first.ActiveTasks[0].TaskID, second.ActiveTasks[0].TaskID)
	require.Equal(t, 2, second.ActiveTasks[0].Mentions)
	require.Greater(t, second.ActiveTasks[0].Confidence, 0.7)
}

func TestQuotedArtifactHighConfidence(t *testing.T) {
	e, _ := fixedEngine()

	got := e.Interpret("user-1", `open "deploy.sh" and check it`, "s")

	var artifact *TrackedReference
	for _, ref := range got.References {
		if ref.Kind == RefArtifact {
			artifact = ref
		}
	}
	require.NotNil(t, artifact)
	require.Equal(t, "deploy.sh", artifact.Value)
	require.InDelta(t, 0.8, artifact.Confidence, 0.001)

	// High-confidence references surface as in-scope assumptions.
	inScope := got.Assumptions["in_scope_references"].([]map[string]any)
	require.Equal(t, "deploy.sh", inScope[0]["value"])
}

func TestPronounsTrackedAtLowConfidence(t *testing.T) {
	e, _ := fixedEngine()

	got := e.Interpret("user-1", "move it over there", "s")
	require.Len(t, got.References, 1)
	require.Equal(t, RefEntity, got.References[0].Kind)
	require.InDelta(t, 0.4, got.References[0].Confidence, 0.001)
	require.NotContains(t, got.Assumptions, "in_scope_references")
}

func TestThreadContinuityRaisesConfidence(t *testing.T) {
	e, _ := fixedEngine()

	first := e.Interpret("user-1", "hello", "sess-1")
	require.Equal(t, 1, first.Thread.MessageCount)
	require.InDelta(t, 0.3, first.Confidence, 0.001, "no signals yet")

	var last *Interpretation
	for i := 0; i < 4; i++ {
		last = e.Interpret("user-1", "and another thing", "sess-1")
	}
	require.Equal(t, 5, last.Thread.MessageCount)
	require.Greater(t, last.Confidence, first.Confidence)
}

func TestCompleteAndAbandonTask(t *testing.T) {
	e, _ := fixedEngine()

	got := e.Interpret("user-1", "working on invoices", "s")
	taskID := got.ActiveTasks[0].TaskID

	require.True(t, e.CompleteTask(taskID))
	require.Empty(t, e.ActiveTasks("user-1"))
	require.False(t, e.AbandonTask("user-1:missing"))
}

func TestStaleTaskDecays(t *testing.T) {
	e, now := fixedEngine()

	e.Interpret("user-1", "working on the migration", "s")

	// Two days later with no mention the task loses confidence.
	e.now = func() time.Time { return now.Add(48 * time.Hour) }
	got := e.Interpret("user-1", "unrelated message", "s")
	require.Len(t, got.ActiveTasks, 1)
	require.Less(t, got.ActiveTasks[0].Confidence, 0.7)
}

func TestUserIsolationAndClear(t *testing.T) {
	e, _ := fixedEngine()

	e.Interpret("user-1", "working on thing one", "s")
	e.Interpret("user-2", "working on thing two", "s")

	require.Len(t, e.ActiveTasks("user-1"), 1)
	e.ClearUser("user-1")
	require.Empty(t, e.ActiveTasks("user-1"))
	require.Len(t, e.ActiveTasks("user-2"), 1)
}
