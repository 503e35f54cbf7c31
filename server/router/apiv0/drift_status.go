package apiv0

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/StrungPattern-coder/context/engine/drift"
	"github.com/StrungPattern-coder/context/engine/memory"
	"github.com/StrungPattern-coder/context/internal/errs"
	"github.com/StrungPattern-coder/context/store"
)

// driftStatus reports overall drift health plus per-type statuses. The
// detection itself never mutates records; passing apply=true persists
// the derived statuses through the single mutating entry point.
func (s *Service) driftStatus(c echo.Context) error {
	userID := c.QueryParam("userId")
	if header := c.Request().Header.Get(userHeader); header != "" {
		userID = header
	}
	if userID == "" {
		return echoError(c, errs.New(errs.InvalidInput, "userId is required"))
	}
	apply := c.QueryParam("apply") == "true"

	ctx := c.Request().Context()
	user, err := s.Store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return echoError(c, errs.Wrap(errs.Transient, "user lookup failed", err))
	}
	if user == nil {
		return echoError(c, errs.Newf(errs.NotFound, "user %s not found", userID))
	}

	records, err := s.Memory.ListForUser(ctx, userID, memory.ListFilters{})
	if err != nil {
		return echoError(c, errs.Wrap(errs.Internal, "failed to list contexts", err))
	}

	report := s.Drift.Detect(records)
	for _, signal := range report.Signals {
		s.Metrics.RecordDriftSignal(string(signal.Type))
	}

	// Per-record signal index for per-type status derivation.
	signalsByRecord := map[string][]drift.Signal{}
	for _, signal := range report.Signals {
		signalsByRecord[signal.ContextID] = append(signalsByRecord[signal.ContextID], signal)
	}

	statusRank := map[store.DriftStatus]int{
		store.DriftStable:      0,
		store.DriftDrifting:    1,
		store.DriftStale:       2,
		store.DriftConflicting: 3,
	}
	perType := map[string]map[string]any{}
	for _, record := range records {
		status := drift.StatusFor(signalsByRecord[record.ID])
		if apply {
			if _, err := s.Drift.UpdateDriftStatus(ctx, record, signalsByRecord[record.ID]); err != nil {
				return echoError(c, errs.Wrap(errs.Internal, "failed to update drift status", err))
			}
		}

		entry, ok := perType[string(record.Type)]
		if !ok {
			entry = map[string]any{"status": string(store.DriftStable), "records": 0}
			perType[string(record.Type)] = entry
		}
		entry["records"] = entry["records"].(int) + 1
		current := store.DriftStatus(entry["status"].(string))
		if statusRank[status] > statusRank[current] {
			entry["status"] = string(status)
		}
	}

	signals := make([]map[string]any, 0, len(report.Signals))
	for _, signal := range report.Signals {
		signals = append(signals, map[string]any{
			"type":              string(signal.Type),
			"contextId":         signal.ContextID,
			"key":               signal.ContextKey,
			"severity":          signal.Severity,
			"description":       signal.Description,
			"recommendedAction": signal.RecommendedAction,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"userId":          userID,
		"health":          report.OverallHealth,
		"contextsChecked": report.ContextsChecked,
		"staleCount":      report.StaleCount,
		"conflictCount":   report.ConflictingCount,
		"needsAttention":  report.NeedsAttention,
		"statusApplied":   apply,
		"byType":          perType,
		"signals":         signals,
		"recommendations": report.Recommendations,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
