package apiv0

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/StrungPattern-coder/context/engine/composer"
	"github.com/StrungPattern-coder/context/engine/device"
	"github.com/StrungPattern-coder/context/internal/errs"
)

type promptAugmentRequest struct {
	UserID           string   `json:"userId"`
	Prompt           string   `json:"prompt"`
	Provider         string   `json:"provider"`
	Signals          signals  `json:"signals"`
	IncludeTypes     []string `json:"includeTypes"`
	MaxContextTokens int      `json:"maxContextTokens"`
	InjectionStyle   string   `json:"injectionStyle"`
}

// promptAugment composes a provider-framed context injection with an
// inclusion audit.
func (s *Service) promptAugment(c echo.Context) error {
	start := time.Now()

	var req promptAugmentRequest
	if err := c.Bind(&req); err != nil {
		return echoError(c, errs.Wrap(errs.InvalidInput, "invalid request body", err))
	}
	if req.Prompt == "" {
		return echoError(c, errs.New(errs.InvalidInput, "prompt is required"))
	}
	if req.Provider == "" {
		req.Provider = "generic"
	}
	style := composer.InjectionStyle(req.InjectionStyle)
	switch style {
	case composer.InjectSystem, composer.InjectPrefix, composer.InjectSuffix:
	case "":
		style = composer.InjectSystem
	default:
		return echoError(c, errs.Newf(errs.InvalidInput, "unknown injection style %q", req.InjectionStyle))
	}

	rc, err := s.buildRequestContext(c, req.UserID, req.Signals)
	if err != nil {
		return echoError(c, err)
	}

	temporalCtx := s.Temporal.Interpret(rc.timestamp, rc.timezone, rc.sessionStart)
	temporalInterp := s.Temporal.GetInterpretation(temporalCtx)
	spatialCtx := s.Spatial.Interpret(rc.locale, rc.country, rc.region, rc.timezone, rc.consent)
	spatialInterp := s.Spatial.GetInterpretation(spatialCtx)

	include := includeSet(req.IncludeTypes)
	inputs := composer.Inputs{}
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
	}
	if telemetry := device.FromMap(req.Signals.Device); telemetry != nil {
		instructions := s.Device.ProcessTelemetry(telemetry)
		inputs.DeviceHints = instructions.Lines()
		inputs.DevicePriority = instructions.PriorityLevel
	}

	promptComposer := s.Composer
	if req.MaxContextTokens > 0 {
		promptComposer = composer.NewComposer(composer.Config{
			MaxContextTokens: req.MaxContextTokens,
			MinRelevance:     s.Profile.MinRelevanceScore,
		})
	}
	composed := promptComposer.Compose(req.Prompt, inputs, req.Provider)

	included := make([]map[string]any, 0, len(composed.IncludedElements))
	for _, e := range composed.IncludedElements {
		included = append(included, map[string]any{
			"key":        e.Key,
			"type":       e.Type,
			"relevance":  string(e.Relevance),
			"confidence": e.Confidence,
			"tokens":     e.TokenEstimate,
		})
	}
	excluded := make([]map[string]any, 0, len(composed.Decisions))
	for _, d := range composed.Decisions {
		if d.Included {
			continue
		}
		excluded = append(excluded, map[string]any{
			"key":       d.Key,
			"reason":    d.Reason,
			"relevance": string(d.Relevance),
		})
	}

	messages := composer.ToChatMessages(composed, style)

	s.Metrics.RecordAugment("prompt", "ok", time.Since(start).Seconds())
	return c.JSON(http.StatusOK, map[string]any{
		"systemContext":    composed.SystemContext,
		"userPrompt":       composed.UserMessage,
		"messages":         messages,
		"injectionStyle":   string(style),
		"provider":         req.Provider,
		"totalTokens":      composed.TotalTokens,
		"allocatedTokens":  composed.Budget.AllocatedContextTokens,
		"includedElements": included,
		"excludedElements": excluded,
		"warnings":         append(rc.warnings, temporalCtx.Warnings...),
	})
}
