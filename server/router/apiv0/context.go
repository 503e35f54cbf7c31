package apiv0

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/StrungPattern-coder/context/engine/memory"
	"github.com/StrungPattern-coder/context/engine/resolver"
	"github.com/StrungPattern-coder/context/internal/errs"
	"github.com/StrungPattern-coder/context/store"
)

type contextResolveRequest struct {
	UserID  string  `json:"userId"`
	Message string  `json:"message"`
	Signals signals `json:"signals"`
	History []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"history"`
}

type resolvedToken struct {
	Value      any     `json:"value"`
	Display    string  `json:"display"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// contextResolve resolves every ambiguous reference in a message to
// concrete values.
func (s *Service) contextResolve(c echo.Context) error {
	var req contextResolveRequest
	if err := c.Bind(&req); err != nil {
		return echoError(c, errs.Wrap(errs.InvalidInput, "invalid request body", err))
	}
	if req.Message == "" {
		return echoError(c, errs.New(errs.InvalidInput, "message is required"))
	}

	rc, err := s.buildRequestContext(c, req.UserID, req.Signals)
	if err != nil {
		return echoError(c, err)
	}

	temporalCtx := s.Temporal.Interpret(rc.timestamp, rc.timezone, rc.sessionStart)
	spatialCtx := s.Spatial.Interpret(rc.locale, rc.country, rc.region, rc.timezone, rc.consent)

	history := make([]resolver.Message, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, resolver.Message{Role: m.Role, Content: m.Content})
	}

	results := s.Resolver.ResolveAll(req.Message, temporalCtx, spatialCtx, history)

	resolved := map[string]resolvedToken{}
	warnings := append([]string{}, rc.warnings...)
	warnings = append(warnings, temporalCtx.Warnings...)
	for _, result := range results {
		resolved[result.Original] = resolvedToken{
			Value:      result.ResolvedValue,
			Display:    result.Reasoning,
			Confidence: result.Confidence,
			Source:     result.Method,
		}
	}
	for _, prompt := range resolver.ClarificationsNeeded(results) {
		warnings = append(warnings, prompt)
	}

	atomic := s.Bus.ResolveAtomicContext(rc.timezone, rc.locale, "", "")

	return c.JSON(http.StatusOK, map[string]any{
		"resolveId":       shortuuid.New(),
		"resolved":        resolved,
		"contextSnapshot": atomic.ToMap(),
		"confidence":      resolver.OverallConfidence(results),
		"warnings":        warnings,
	})
}

// contextSnapshot returns the current atomic context for a user.
func (s *Service) contextSnapshot(c echo.Context) error {
	userID := c.QueryParam("userId")
	timezone := c.QueryParam("timezone")

	rc, err := s.buildRequestContext(c, userID, signals{Timezone: timezone})
	if err != nil {
		return echoError(c, err)
	}

	atomic := s.Bus.ResolveAtomicContext(rc.timezone, rc.locale, "", "")
	return c.JSON(http.StatusOK, map[string]any{
		"snapshot": atomic.ToMap(),
		"warnings": append(rc.warnings, atomic.Warnings...),
	})
}

type contextUpdateRequest struct {
	UserID  string `json:"userId"`
	Updates []struct {
		Type   string         `json:"type"`
		Tier   string         `json:"tier"`
		Key    string         `json:"key"`
		Value  map[string]any `json:"value"`
		Source string         `json:"source"`
	} `json:"updates"`
}

// contextUpdate applies explicit user-initiated context writes.
func (s *Service) contextUpdate(c echo.Context) error {
	var req contextUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echoError(c, errs.Wrap(errs.InvalidInput, "invalid request body", err))
	}
	if header := c.Request().Header.Get(userHeader); header != "" {
		req.UserID = header
	}
	if req.UserID == "" {
		return echoError(c, errs.New(errs.InvalidInput, "userId is required"))
	}
	if len(req.Updates) == 0 {
		return echoError(c, errs.New(errs.InvalidInput, "updates are required"))
	}

	ctx := c.Request().Context()
	user, err := s.Store.GetUser(ctx, &store.FindUser{ID: &req.UserID})
	if err != nil {
		return echoError(c, errs.Wrap(errs.Transient, "user lookup failed", err))
	}
	if user == nil {
		return echoError(c, errs.Newf(errs.NotFound, "user %s not found", req.UserID))
	}

	stored := make([]map[string]any, 0, len(req.Updates))
	for _, update := range req.Updates {
		contextType := store.ContextType(update.Type)
		switch contextType {
		case store.ContextTypeTemporal, store.ContextTypeSpatial, store.ContextTypeSituational, store.ContextTypeMeta:
		default:
			return echoError(c, errs.Newf(errs.InvalidInput, "unknown context type %q", update.Type))
		}

		tier := store.MemoryTier(update.Tier)
		if update.Tier == "" {
			tier = store.TierShortTerm
		}
		source := update.Source
		if source == "" {
			source = "user_explicit"
		}

		record, err := s.Memory.Store(ctx, memory.StoreParams{
			UserID:     user.ID,
			Type:       contextType,
			Key:        update.Key,
			Value:      update.Value,
			Tier:       tier,
			Confidence: 0.95,
			Source:     source,
		})
		if err != nil {
			return echoError(c, errs.Wrap(errs.Internal, "failed to store context", err))
		}
		stored = append(stored, map[string]any{
			"contextId":  record.ID,
			"key":        record.Key,
			"type":       string(record.Type),
			"confidence": record.Confidence,
		})
	}

	response := map[string]any{
		"updated":   len(stored),
		"contexts":  stored,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	// Capture the post-update state as a versioned snapshot. Snapshot
	// failure never fails the write.
	if maps := s.perTypeContextMaps(ctx, user.ID); maps != nil {
		if snap, err := s.Snapshot.CreateSnapshot(ctx, user.ID, maps, "context update", nil); err != nil {
			slog.Warn("failed to snapshot context update", "user_id", user.ID, "error", err)
		} else {
			response["contextVersion"] = fmt.Sprintf("%d.%d.%d", snap.Major, snap.Minor, snap.Patch)
		}
	}

	return c.JSON(http.StatusOK, response)
}

// perTypeContextMaps collects a user's active records into the
// per-type maps a snapshot stores.
func (s *Service) perTypeContextMaps(ctx context.Context, userID string) map[string]any {
	records, err := s.Memory.ListForUser(ctx, userID, memory.ListFilters{})
	if err != nil || len(records) == 0 {
		return nil
	}
	maps := map[string]any{}
	for _, record := range records {
		typeMap, ok := maps[string(record.Type)].(map[string]any)
		if !ok {
			typeMap = map[string]any{}
			maps[string(record.Type)] = typeMap
		}
		typeMap[record.Key] = record.Value
	}
	return maps
}
