package device

import (
	"fmt"
	"time"
)

// Instructions are the composition directives derived from one
// telemetry sample: what to tell the model about device constraints
// and how hard to cap the response.
type Instructions struct {
	ConstraintInstructions []string
	ResponseFormatHints    []string
	PriorityLevel          string
	MaxResponseTokens      int
}

// Lines renders the instructions as prompt-ready context lines.
func (i *Instructions) Lines() []string {
	lines := append([]string{}, i.ConstraintInstructions...)
	lines = append(lines, i.ResponseFormatHints...)
	if i.MaxResponseTokens > 0 {
		lines = append(lines, fmt.Sprintf("Keep response under %d tokens.", i.MaxResponseTokens))
	}
	return lines
}

// Adjustments are the resolution-side knobs a constrained device
// turns: shallower context, no slow-path enrichment, tighter
// deadlines.
type Adjustments struct {
	ReduceContextDepth bool
	SkipEnrichment     bool
	PreferCached       bool
	MaxContextElements int
	SlowPathTimeout    time.Duration
}

// responseTokenLimits caps the response by constraint level.
var responseTokenLimits = map[Constraint]int{
	ConstraintNone:     2000,
	ConstraintLow:      1500,
	ConstraintMedium:   1000,
	ConstraintHigh:     500,
	ConstraintCritical: 250,
}

// Ingress adapts prompt composition to device state.
type Ingress struct{}

// NewIngress creates a hardware-aware ingress processor.
func NewIngress() *Ingress {
	return &Ingress{}
}

// ProcessTelemetry derives composition instructions from a sample.
func (in *Ingress) ProcessTelemetry(t *Telemetry) *Instructions {
	constraintInstructions := []string{}
	responseHints := []string{}

	switch {
	case t.Battery.IsCritical():
		constraintInstructions = append(constraintInstructions,
			"User's device battery is critical (<10%). Prioritize essential information only.")
		responseHints = append(responseHints,
			"Use extremely concise responses",
			"Avoid code blocks or long lists")
	case t.Battery.IsLow() && !t.Battery.IsCharging:
		constraintInstructions = append(constraintInstructions,
			"User's device battery is low. Optimize for efficiency.")
		responseHints = append(responseHints, "Keep responses concise")
	}

	switch {
	case t.Network.IsOffline():
		constraintInstructions = append(constraintInstructions,
			"User is offline. Any external resources or links should be noted as unavailable.")
	case t.Network.IsMetered:
		constraintInstructions = append(constraintInstructions,
			"User is on metered connection. Minimize data-heavy responses.")
		responseHints = append(responseHints, "Avoid embedding large images or files")
	case t.Network.ConnectionType == Conn3G:
		constraintInstructions = append(constraintInstructions,
			"User has slow network connection. Keep responses lightweight.")
	}

	switch t.Kinetic.State {
	case KineticDriving:
		constraintInstructions = append(constraintInstructions,
			"User appears to be driving. Keep responses very brief and avoid anything requiring visual attention.")
		responseHints = append(responseHints,
			"Audio-friendly format preferred",
			"No code blocks or complex formatting")
	case KineticWalking, KineticCycling:
		constraintInstructions = append(constraintInstructions,
			"User is on the move. Prefer quick, scannable responses.")
		responseHints = append(responseHints, "Use bullet points for easy scanning")
	case KineticInTransit:
		constraintInstructions = append(constraintInstructions,
			"User is in transit. Responses may be read in brief intervals.")
	}

	if t.Device.DeviceType == DeviceWearable {
		constraintInstructions = append(constraintInstructions,
			"User is on a wearable device with limited screen. Extreme brevity required.")
		responseHints = append(responseHints, "Ultra-short responses only")
	} else if t.Device.DeviceType == DeviceSmartphone && t.Device.ScreenWidth != nil && *t.Device.ScreenWidth < 400 {
		responseHints = append(responseHints, "Optimize for small screen width")
	}

	constraint := t.OverallConstraint()
	priority := "normal"
	switch constraint {
	case ConstraintCritical:
		priority = "critical"
	case ConstraintHigh:
		priority = "high"
	}

	return &Instructions{
		ConstraintInstructions: constraintInstructions,
		ResponseFormatHints:    responseHints,
		PriorityLevel:          priority,
		MaxResponseTokens:      responseTokenLimits[constraint],
	}
}

// ContextAdjustments derives the resolution-side knobs for a sample.
func (in *Ingress) ContextAdjustments(t *Telemetry) Adjustments {
	adjustments := Adjustments{
		MaxContextElements: 10,
		SlowPathTimeout:    150 * time.Millisecond,
	}

	switch t.OverallConstraint() {
	case ConstraintCritical:
		adjustments = Adjustments{
			ReduceContextDepth: true,
			SkipEnrichment:     true,
			PreferCached:       true,
			MaxContextElements: 3,
			SlowPathTimeout:    50 * time.Millisecond,
		}
	case ConstraintHigh:
		adjustments = Adjustments{
			ReduceContextDepth: true,
			SkipEnrichment:     true,
			PreferCached:       true,
			MaxContextElements: 5,
			SlowPathTimeout:    75 * time.Millisecond,
		}
	case ConstraintMedium:
		adjustments = Adjustments{
			SkipEnrichment:     true,
			PreferCached:       true,
			MaxContextElements: 7,
			SlowPathTimeout:    100 * time.Millisecond,
		}
	}

	return adjustments
}
