package apiv0

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/StrungPattern-coder/context/engine/bus"
	"github.com/StrungPattern-coder/context/engine/composer"
	"github.com/StrungPattern-coder/context/engine/device"
	"github.com/StrungPattern-coder/context/engine/resolver"
	"github.com/StrungPattern-coder/context/internal/errs"
)

type universalAugmentRequest struct {
	Prompt       string   `json:"prompt"`
	UserID       string   `json:"userId"`
	Provider     string   `json:"provider"`
	Signals      signals  `json:"signals"`
	IncludeTypes []string `json:"includeTypes"`
	MaxTokens    int      `json:"maxTokens"`
	Format       string   `json:"format"`
	Enrich       bool     `json:"enrich"`
}

type universalAugmentResponse struct {
	SystemContext   string         `json:"systemContext"`
	UserPrompt      string         `json:"userPrompt"`
	AugmentedPrompt string         `json:"augmentedPrompt,omitempty"`
	RequestID       string         `json:"requestId"`
	Timestamp       string         `json:"timestamp"`
	Provider        string         `json:"provider"`
	ContextTokens   int            `json:"contextTokens"`
	Context         map[string]any `json:"context"`
	Warnings        []string       `json:"warnings,omitempty"`
	Metadata        map[string]any `json:"metadata"`
}

// universalAugment is the single integration endpoint: dual-path
// resolution, reference resolution, and provider-framed composition.
func (s *Service) universalAugment(c echo.Context) error {
	start := time.Now()

	var req universalAugmentRequest
	if err := c.Bind(&req); err != nil {
		return echoError(c, errs.Wrap(errs.InvalidInput, "invalid request body", err))
	}
	if req.Provider == "" {
		req.Provider = "generic"
	}
	if req.Prompt == "" {
		s.Metrics.RecordAugment("universal", "invalid", time.Since(start).Seconds())
		return echoError(c, errs.New(errs.InvalidInput, "prompt is required"))
	}

	rc, err := s.buildRequestContext(c, req.UserID, req.Signals)
	if err != nil {
		s.Metrics.RecordAugment("universal", "invalid", time.Since(start).Seconds())
		return echoError(c, err)
	}

	// Device telemetry steers composition and resolution depth.
	telemetry := device.FromMap(req.Signals.Device)
	var deviceInstructions *device.Instructions
	enrich := req.Enrich
	if telemetry != nil {
		deviceInstructions = s.Device.ProcessTelemetry(telemetry)
		if adjustments := s.Device.ContextAdjustments(telemetry); adjustments.SkipEnrichment && enrich {
			enrich = false
		}
	}

	// Dual-path resolution: atomic context now, enrichment if asked.
	busResult, err := s.Bus.Resolve(c.Request().Context(), busParams(rc, req.Prompt, enrich))
	if err != nil {
		s.Metrics.RecordAugment("universal", "error", time.Since(start).Seconds())
		return echoError(c, errs.Wrap(errs.Internal, "resolution failed", err))
	}

	include := includeSet(req.IncludeTypes)

	// Anchor interpretations.
	temporalCtx := s.Temporal.Interpret(rc.timestamp, rc.timezone, rc.sessionStart)
	temporalInterp := s.Temporal.GetInterpretation(temporalCtx)
	spatialCtx := s.Spatial.Interpret(rc.locale, rc.country, rc.region, rc.timezone, rc.consent)
	spatialInterp := s.Spatial.GetInterpretation(spatialCtx)

	warnings := append([]string{}, rc.warnings...)
	warnings = append(warnings, temporalCtx.Warnings...)
	if !rc.consent {
		warnings = append(warnings, "Location unavailable without consent")
	}

	// Reference resolution feeds the composer as the assumptions line.
	results := s.Resolver.ResolveAll(req.Prompt, temporalCtx, spatialCtx, nil)
	assumptions := s.Resolver.FormatForPrompt(results)

	inputs := composer.Inputs{Assumptions: assumptions}
	if include["temporal"] {
		inputs.Temporal = temporalCtx
		inputs.TemporalInterp = temporalInterp
	}
	if include["spatial"] {
		inputs.Spatial = spatialCtx
		inputs.SpatialInterp = spatialInterp
	}
	if include["situational"] {
		inputs.Situational = s.situationalContext(c, rc)

		// Task tracking and conversation continuity from the utterance
		// itself, gated like the stored situational context.
		if rc.userID != "" && (rc.user == nil || rc.user.AllowSituational) {
			interp := s.Situational.Interpret(rc.userID, req.Prompt, rc.sessionID)
			set := func(key string, value any) {
				if inputs.Situational == nil {
					inputs.Situational = map[string]any{}
				}
				inputs.Situational[key] = value
			}
			if work, ok := interp.Assumptions["current_work"].(map[string]any); ok {
				set("current_task", work["task"])
			}
			if interp.Thread != nil && interp.Thread.MessageCount > 1 {
				set("conversation_context", map[string]any{
					"message_count":    interp.Thread.MessageCount,
					"duration_minutes": interp.Thread.DurationMinutes(),
				})
			}
		}
	}
	if deviceInstructions != nil {
		inputs.DeviceHints = deviceInstructions.Lines()
		inputs.DevicePriority = deviceInstructions.PriorityLevel
	}

	promptComposer := s.Composer
	if req.MaxTokens > 0 {
		promptComposer = composer.NewComposer(composer.Config{
			MaxContextTokens: req.MaxTokens,
			MinRelevance:     s.Profile.MinRelevanceScore,
		})
	}
	composed := promptComposer.Compose(req.Prompt, inputs, req.Provider)

	var crossover map[string]any
	if rc.sessionStart != nil {
		mc := s.Temporal.HandleMidnightCrossover(*rc.sessionStart, rc.timestamp, rc.timezone)
		if mc.HasCrossedMidnight {
			crossover = map[string]any{
				"hasCrossedMidnight": true,
				"sessionStartedDate": mc.SessionStartedDate.Format("2006-01-02"),
				"todayDate":          mc.TodayDate.Format("2006-01-02"),
				"confidence":         mc.Confidence,
				"reasoning":          mc.Reasoning,
			}
		}
	}

	response := universalAugmentResponse{
		SystemContext: composed.SystemContext,
		UserPrompt:    req.Prompt,
		RequestID:     busResult.RequestID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Provider:      req.Provider,
		ContextTokens: composed.TotalTokens,
		Context: map[string]any{
			"atomic":   busResult.Atomic.ToMap(),
			"temporal": temporalSummary(temporalCtx, temporalInterp),
			"spatial":  spatialSummary(spatialCtx),
		},
		Warnings: warnings,
		Metadata: map[string]any{
			"slowPathTimeout":   busResult.SlowPathTimeout,
			"slowPathCompleted": busResult.SlowPathCompleted,
			"fastPathMillis":    busResult.FastPathMillis,
			"overallConfidence": resolver.OverallConfidence(results),
			"includedElements":  len(composed.IncludedElements),
			"excludedElements":  len(composed.ExcludedElements),
		},
	}
	if crossover != nil {
		response.Context["midnightCrossover"] = crossover
	}
	if telemetry != nil {
		response.Context["device"] = telemetry.ToMap()
		response.Metadata["devicePriority"] = deviceInstructions.PriorityLevel
		response.Metadata["maxResponseTokens"] = deviceInstructions.MaxResponseTokens
	}
	if busResult.HighEntropy != nil {
		response.Context["highEntropy"] = map[string]any{
			"vectorMemories":       busResult.HighEntropy.VectorMemories,
			"crossSessionInsights": busResult.HighEntropy.CrossSessionInsights,
		}
	}
	if req.Format == "combined" {
		response.AugmentedPrompt = composed.SystemContext + "\n\n" + req.Prompt
	}

	s.Metrics.RecordAugment("universal", "ok", time.Since(start).Seconds())
	return c.JSON(http.StatusOK, response)
}

func busParams(rc *requestContext, query string, enrich bool) bus.ResolveParams {
	return bus.ResolveParams{
		UserID:         rc.userID,
		Query:          query,
		Timezone:       rc.timezone,
		Locale:         rc.locale,
		EnableSlowPath: enrich,
	}
}

// includeSet defaults to all domains when none are named.
func includeSet(includeTypes []string) map[string]bool {
	if len(includeTypes) == 0 {
		return map[string]bool{"temporal": true, "spatial": true, "situational": true}
	}
	out := map[string]bool{}
	for _, t := range includeTypes {
		out[t] = true
	}
	return out
}
