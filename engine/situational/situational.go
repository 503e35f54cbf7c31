// Package situational tracks ongoing tasks, conversation continuity,
// and the implicit assumptions built over a user's recent activity.
package situational

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// TaskStatus is the lifecycle state of a tracked task.
type TaskStatus string

const (
	TaskActive    TaskStatus = "active"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
	TaskAbandoned TaskStatus = "abandoned"
)

// ReferenceKind classifies a tracked reference.
type ReferenceKind string

const (
	RefEntity   ReferenceKind = "entity"
	RefArtifact ReferenceKind = "artifact"
	RefTopic    ReferenceKind = "topic"
)

// TrackedTask is an ongoing task inferred from the conversation.
type TrackedTask struct {
	TaskID           string
	Description      string
	Status           TaskStatus
	StartedAt        time.Time
	LastReferencedAt time.Time
	Confidence       float64
	Mentions         int
	Indicator        string
}

// Reference records another mention: recency refreshes and confidence
// creeps up.
func (t *TrackedTask) Reference(now time.Time) {
	t.LastReferencedAt = now
	t.Mentions++
	t.Confidence = minFloat(1.0, t.Confidence+0.05)
}

// Decay lowers confidence for inactivity; the multiplier is floored at
// one half per call.
func (t *TrackedTask) Decay(hoursInactive float64) {
	factor := 1.0 - hoursInactive*0.02
	if factor < 0.5 {
		factor = 0.5
	}
	t.Confidence *= factor
}

// IsStale reports no reference within the last day.
func (t *TrackedTask) IsStale(now time.Time) bool {
	return now.Sub(t.LastReferencedAt) > 24*time.Hour
}

// TrackedReference is an entity or artifact mentioned in conversation.
type TrackedReference struct {
	ReferenceID     string
	Kind            ReferenceKind
	Value           string
	NormalizedValue string
	FirstMentioned  time.Time
	LastMentioned   time.Time
	MentionCount    int
	Confidence      float64
}

// Mention records another occurrence.
func (r *TrackedReference) Mention(now time.Time) {
	r.LastMentioned = now
	r.MentionCount++
	r.Confidence = minFloat(1.0, r.Confidence+0.1)
}

// ConversationThread tracks continuity within a session.
type ConversationThread struct {
	ThreadID      string
	MessageCount  int
	StartedAt     time.Time
	LastMessageAt time.Time
}

// DurationMinutes is the thread's elapsed span.
func (c *ConversationThread) DurationMinutes() float64 {
	return c.LastMessageAt.Sub(c.StartedAt).Minutes()
}

// Interpretation is the situational view produced for one message.
type Interpretation struct {
	ActiveTasks []*TrackedTask
	References  []*TrackedReference
	Thread      *ConversationThread
	Assumptions map[string]any
	Confidence  float64
}

// PrimaryTask is the highest-confidence active task, or nil.
func (i *Interpretation) PrimaryTask() *TrackedTask {
	var primary *TrackedTask
	for _, task := range i.ActiveTasks {
		if primary == nil || task.Confidence > primary.Confidence {
			primary = task
		}
	}
	return primary
}

// taskIndicators mark phrases that introduce or continue a task.
var taskIndicators = []string{
	"working on", "doing", "creating", "building", "writing",
	"fixing", "debugging", "implementing", "designing", "planning",
	"researching", "reviewing", "testing", "deploying", "setting up",
	"help me", "i need to", "i want to", "let's", "can you",
}

// trackedPronouns are the low-confidence entity markers.
var trackedPronouns = map[string]bool{
	"it": true, "this": true, "that": true, "they": true, "them": true,
}

// Engine tracks per-user situational state in memory. Persistence of
// the distilled state goes through the context memory service at the
// caller's discretion; the engine itself is an inference cache.
type Engine struct {
	mu      sync.Mutex
	tasks   map[string]*TrackedTask      // keyed userID:hash
	refs    map[string]*TrackedReference // keyed userID:pronoun:word or userID:artifact:hash
	threads map[string]*ConversationThread

	now func() time.Time
}

// NewEngine creates a situational engine.
func NewEngine() *Engine {
	return &Engine{
		tasks:   map[string]*TrackedTask{},
		refs:    map[string]*TrackedReference{},
		threads: map[string]*ConversationThread{},
		now:     time.Now,
	}
}

// Interpret processes one message: detects tasks and references,
// advances the conversation thread, and rebuilds the assumptions.
func (e *Engine) Interpret(userID, message, sessionID string) *Interpretation {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	detectedTasks := e.detectTasks(userID, message, now)
	detectedRefs := e.detectReferences(userID, message, now)
	thread := e.updateThread(userID, sessionID, now)

	activeTasks := []*TrackedTask{}
	for id, task := range e.tasks {
		if strings.HasPrefix(id, userID+":") && task.Status == TaskActive {
			if task.IsStale(now) {
				task.Decay(now.Sub(task.LastReferencedAt).Hours())
			}
			activeTasks = append(activeTasks, task)
		}
	}

	references := []*TrackedReference{}
	for id, ref := range e.refs {
		if strings.HasPrefix(id, userID+":") {
			references = append(references, ref)
		}
	}

	interpretation := &Interpretation{
		ActiveTasks: activeTasks,
		References:  references,
		Thread:      thread,
		Assumptions: buildAssumptions(activeTasks, references),
		Confidence:  calculateConfidence(detectedTasks, detectedRefs, thread),
	}

	return interpretation
}

// detectTasks finds at most one task per message, keyed by a stable
// hash of its description so repeats reinforce instead of duplicate.
func (e *Engine) detectTasks(userID, message string, now time.Time) []*TrackedTask {
	lower := strings.ToLower(message)

	for _, indicator := range taskIndicators {
		idx := strings.Index(lower, indicator)
		if idx < 0 {
			continue
		}

		description := message[idx:]
		if cut := strings.IndexAny(description, ".?!"); cut >= 0 {
			description = description[:cut]
		}
		if len(description) > 100 {
			description = description[:100]
		}
		description = strings.TrimSpace(description)

		taskID := userID + ":" + shortHash(strings.ToLower(description))
		if task, ok := e.tasks[taskID]; ok {
			task.Reference(now)
			return []*TrackedTask{task}
		}

		task := &TrackedTask{
			TaskID:           taskID,
			Description:      description,
			Status:           TaskActive,
			StartedAt:        now,
			LastReferencedAt: now,
			Confidence:       0.7,
			Mentions:         1,
			Indicator:        indicator,
		}
		e.tasks[taskID] = task
		return []*TrackedTask{task}
	}

	return nil
}

// detectReferences tracks pronouns at low confidence and quoted
// artifacts at high confidence.
func (e *Engine) detectReferences(userID, message string, now time.Time) []*TrackedReference {
	detected := []*TrackedReference{}

	for _, word := range strings.Fields(message) {
		normalized := strings.ToLower(strings.Trim(word, ".,!?"))
		if !trackedPronouns[normalized] {
			continue
		}
		refID := userID + ":pronoun:" + normalized
		if ref, ok := e.refs[refID]; ok {
			ref.Mention(now)
			continue
		}
		ref := &TrackedReference{
			ReferenceID:     refID,
			Kind:            RefEntity,
			Value:           normalized,
			NormalizedValue: normalized,
			FirstMentioned:  now,
			LastMentioned:   now,
			MentionCount:    1,
			Confidence:      0.4, // unresolved pronoun
		}
		e.refs[refID] = ref
		detected = append(detected, ref)
	}

	for _, quoted := range extractQuoted(message) {
		refID := userID + ":artifact:" + shortHash(strings.ToLower(quoted))
		if ref, ok := e.refs[refID]; ok {
			ref.Mention(now)
			continue
		}
		ref := &TrackedReference{
			ReferenceID:     refID,
			Kind:            RefArtifact,
			Value:           quoted,
			NormalizedValue: strings.ToLower(quoted),
			FirstMentioned:  now,
			LastMentioned:   now,
			MentionCount:    1,
			Confidence:      0.8,
		}
		e.refs[refID] = ref
		detected = append(detected, ref)
	}

	return detected
}

func (e *Engine) updateThread(userID, sessionID string, now time.Time) *ConversationThread {
	if sessionID == "" {
		sessionID = "default"
	}
	threadID := userID + ":" + sessionID

	thread, ok := e.threads[threadID]
	if !ok {
		thread = &ConversationThread{ThreadID: threadID, StartedAt: now}
		e.threads[threadID] = thread
	}
	thread.MessageCount++
	thread.LastMessageAt = now
	return thread
}

func buildAssumptions(tasks []*TrackedTask, refs []*TrackedReference) map[string]any {
	assumptions := map[string]any{}

	var primary *TrackedTask
	for _, task := range tasks {
		if primary == nil || task.Confidence > primary.Confidence {
			primary = task
		}
	}
	if primary != nil {
		assumptions["current_work"] = map[string]any{
			"task":       primary.Description,
			"confidence": primary.Confidence,
		}
	}

	inScope := []map[string]any{}
	for _, ref := range refs {
		if ref.Confidence >= 0.7 {
			inScope = append(inScope, map[string]any{
				"type":  string(ref.Kind),
				"value": ref.Value,
			})
			if len(inScope) == 5 {
				break
			}
		}
	}
	if len(inScope) > 0 {
		assumptions["in_scope_references"] = inScope
	}

	return assumptions
}

func calculateConfidence(tasks []*TrackedTask, refs []*TrackedReference, thread *ConversationThread) float64 {
	scores := []float64{}

	if len(tasks) > 0 {
		total := 0.0
		for _, task := range tasks {
			total += task.Confidence
		}
		scores = append(scores, total/float64(len(tasks)))
	}
	if len(refs) > 0 {
		total := 0.0
		for _, ref := range refs {
			total += ref.Confidence
		}
		scores = append(scores, total/float64(len(refs)))
	}
	if thread != nil && thread.MessageCount > 1 {
		scores = append(scores, minFloat(1.0, float64(thread.MessageCount)*0.1))
	}

	if len(scores) == 0 {
		return 0.3
	}
	total := 0.0
	for _, score := range scores {
		total += score
	}
	return total / float64(len(scores))
}

// CompleteTask marks a task done. Returns false when unknown.
func (e *Engine) CompleteTask(taskID string) bool {
	return e.setTaskStatus(taskID, TaskCompleted)
}

// AbandonTask marks a task abandoned. Returns false when unknown.
func (e *Engine) AbandonTask(taskID string) bool {
	return e.setTaskStatus(taskID, TaskAbandoned)
}

func (e *Engine) setTaskStatus(taskID string, status TaskStatus) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[taskID]
	if !ok {
		return false
	}
	task.Status = status
	return true
}

// ActiveTasks lists a user's active tasks.
func (e *Engine) ActiveTasks(userID string) []*TrackedTask {
	e.mu.Lock()
	defer e.mu.Unlock()
	tasks := []*TrackedTask{}
	for id, task := range e.tasks {
		if strings.HasPrefix(id, userID+":") && task.Status == TaskActive {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// ClearUser drops all tracked state for a user.
func (e *Engine) ClearUser(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.tasks {
		if strings.HasPrefix(id, userID+":") {
			delete(e.tasks, id)
		}
	}
	for id := range e.refs {
		if strings.HasPrefix(id, userID+":") {
			delete(e.refs, id)
		}
	}
	for id := range e.threads {
		if strings.HasPrefix(id, userID+":") {
			delete(e.threads, id)
		}
	}
}

// extractQuoted pulls double-quoted substrings from a message.
func extractQuoted(message string) []string {
	parts := strings.Split(message, `"`)
	quoted := []string{}
	for i := 1; i < len(parts); i += 2 {
		if trimmed := strings.TrimSpace(parts[i]); trimmed != "" {
			quoted = append(quoted, trimmed)
		}
	}
	return quoted
}

func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
