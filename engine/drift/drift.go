// Package drift scores context records for staleness, correction
// patterns, and conflicts. Detection never mutates records on its own:
// UpdateDriftStatus is the single mutating entry point.
package drift

import (
	"context"
	"fmt"
	"time"

	"github.com/StrungPattern-coder/context/engine/memory"
	"github.com/StrungPattern-coder/context/store"
)

// SignalType classifies a drift observation.
type SignalType string

const (
	Staleness          SignalType = "staleness"
	Conflict           SignalType = "conflict"
	CorrectionPattern  SignalType = "correction_pattern"
	BehavioralMismatch SignalType = "behavioral_mismatch"
)

// Signal is a typed observation about a record's health.
type Signal struct {
	Type              SignalType
	ContextID         string
	ContextKey        string
	Severity          float64 // 0.0 - 1.0
	Description       string
	DetectedAt        time.Time
	RecommendedAction string
}

// Report summarizes drift detection for one user.
type Report struct {
	UserID           string
	Signals          []Signal
	OverallHealth    float64 // 1.0 = healthy
	ContextsChecked  int
	StaleCount       int
	ConflictingCount int
	NeedsAttention   bool
	Recommendations  []string
}

// Config tunes the detector thresholds with documented defaults.
type Config struct {
	// StalenessWindow is the age after which context is potentially
	// stale. Long-term records use exactly seven times this window.
	StalenessWindow time.Duration
	// CriticalStalenessWindow marks definitely-stale context.
	CriticalStalenessWindow time.Duration
	// CorrectionThreshold is the correction count that flags a pattern.
	CorrectionThreshold int
	// LowConfidenceThreshold flags weak records.
	LowConfidenceThreshold float64
	// CriticalConfidenceThreshold escalates the recommended action.
	CriticalConfidenceThreshold float64
}

// DefaultConfig returns the documented detector defaults.
func DefaultConfig() Config {
	return Config{
		StalenessWindow:             24 * time.Hour,
		CriticalStalenessWindow:     72 * time.Hour,
		CorrectionThreshold:         3,
		LowConfidenceThreshold:      0.4,
		CriticalConfidenceThreshold: 0.2,
	}
}

// Detector inspects record sets and emits drift signals. It writes
// nothing except through UpdateDriftStatus.
type Detector struct {
	config Config
	memory *memory.Service
	now    func() time.Time
}

// NewDetector creates a drift detector. The memory service may be nil
// for pure detection use.
func NewDetector(config Config, mem *memory.Service) *Detector {
	if config.StalenessWindow <= 0 {
		config.StalenessWindow = 24 * time.Hour
	}
	if config.CriticalStalenessWindow <= 0 {
		config.CriticalStalenessWindow = 72 * time.Hour
	}
	if config.CorrectionThreshold <= 0 {
		config.CorrectionThreshold = 3
	}
	if config.LowConfidenceThreshold <= 0 {
		config.LowConfidenceThreshold = 0.4
	}
	if config.CriticalConfidenceThreshold <= 0 {
		config.CriticalConfidenceThreshold = 0.2
	}
	return &Detector{config: config, memory: mem, now: time.Now}
}

// Detect scans a user's records and builds the full report. Detection
// is idempotent: running it twice over the same set yields the same
// signals.
func (d *Detector) Detect(records []*store.ContextRecord) *Report {
	if len(records) == 0 {
		return &Report{OverallHealth: 1.0, Recommendations: []string{}}
	}

	signals := []Signal{}
	for _, record := range records {
		signals = append(signals, d.CheckSingle(record)...)
	}
	signals = append(signals, d.checkConflicts(records)...)

	staleCount := 0
	conflictCount := 0
	for _, s := range signals {
		switch s.Type {
		case Staleness:
			staleCount++
		case Conflict, CorrectionPattern:
			conflictCount++
		}
	}

	health := d.calculateHealth(records, signals)

	return &Report{
		UserID:           records[0].UserID,
		Signals:          signals,
		OverallHealth:    health,
		ContextsChecked:  len(records),
		StaleCount:       staleCount,
		ConflictingCount: conflictCount,
		NeedsAttention:   health < 0.7 || len(signals) > 0,
		Recommendations:  d.recommendations(signals, records),
	}
}

// CheckSingle returns the signals for one record.
func (d *Detector) CheckSingle(record *store.ContextRecord) []Signal {
	signals := []Signal{}
	if s := d.checkStaleness(record); s != nil {
		signals = append(signals, *s)
	}
	if s := d.checkCorrections(record); s != nil {
		signals = append(signals, *s)
	}
	if s := d.checkConfidence(record); s != nil {
		signals = append(signals, *s)
	}
	return signals
}

func (d *Detector) stalenessWindowFor(record *store.ContextRecord) time.Duration {
	if record.Tier == store.TierLongTerm {
		return d.config.StalenessWindow * 7
	}
	return d.config.StalenessWindow
}

func (d *Detector) checkStaleness(record *store.ContextRecord) *Signal {
	window := d.stalenessWindowFor(record)
	age := d.now().Sub(time.Unix(record.UpdatedTs, 0))
	if age <= window {
		return nil
	}

	// Severity scales with overshoot, capped at 1.
	severity := (age - window).Hours() / window.Hours()
	if severity > 1 {
		severity = 1
	}

	action := "monitor"
	if severity > 0.5 {
		action = "refresh"
	}

	return &Signal{
		Type:              Staleness,
		ContextID:         record.ID,
		ContextKey:        record.Key,
		Severity:          severity,
		Description:       fmt.Sprintf("Context is %d hours old (threshold: %dh)", int(age.Hours()), int(window.Hours())),
		DetectedAt:        d.now(),
		RecommendedAction: action,
	}
}

func (d *Detector) checkCorrections(record *store.ContextRecord) *Signal {
	if record.CorrectionCount < d.config.CorrectionThreshold {
		return nil
	}

	severity := float64(record.CorrectionCount) / float64(d.config.CorrectionThreshold*2)
	if severity > 1 {
		severity = 1
	}

	return &Signal{
		Type:              CorrectionPattern,
		ContextID:         record.ID,
		ContextKey:        record.Key,
		Severity:          severity,
		Description:       fmt.Sprintf("Context has been corrected %d times", record.CorrectionCount),
		DetectedAt:        d.now(),
		RecommendedAction: "confirm_with_user",
	}
}

func (d *Detector) checkConfidence(record *store.ContextRecord) *Signal {
	if record.Confidence >= d.config.LowConfidenceThreshold {
		return nil
	}

	severity := 1.0 - record.Confidence/d.config.LowConfidenceThreshold

	action := "monitor"
	if record.Confidence < d.config.CriticalConfidenceThreshold {
		action = "refresh"
	}

	return &Signal{
		Type:              BehavioralMismatch,
		ContextID:         record.ID,
		ContextKey:        record.Key,
		Severity:          severity,
		Description:       fmt.Sprintf("Confidence is low (%.2f)", record.Confidence),
		DetectedAt:        d.now(),
		RecommendedAction: action,
	}
}

// checkConflicts looks for cross-record disagreement: multiple active
// temporal records disagreeing on timezone, or spatial records on
// country.
func (d *Detector) checkConflicts(records []*store.ContextRecord) []Signal {
	signals := []Signal{}

	byType := map[store.ContextType][]*store.ContextRecord{}
	for _, record := range records {
		byType[record.Type] = append(byType[record.Type], record)
	}

	if temporal := byType[store.ContextTypeTemporal]; len(temporal) > 1 {
		timezones := map[string]bool{}
		for _, record := range temporal {
			if record.Key == "timezone" {
				if tz, ok := record.Value["timezone"].(string); ok && tz != "" {
					timezones[tz] = true
				}
			}
		}
		if len(timezones) > 1 {
			signals = append(signals, Signal{
				Type:              Conflict,
				ContextID:         temporal[0].ID,
				ContextKey:        "timezone",
				Severity:          0.8,
				Description:       fmt.Sprintf("Multiple timezones detected: %v", keys(timezones)),
				DetectedAt:        d.now(),
				RecommendedAction: "resolve_conflict",
			})
		}
	}

	if spatial := byType[store.ContextTypeSpatial]; len(spatial) > 1 {
		countries := map[string]bool{}
		for _, record := range spatial {
			if c, ok := record.Value["country_code"].(string); ok && c != "" {
				countries[c] = true
			}
		}
		if len(countries) > 1 {
			signals = append(signals, Signal{
				Type:              Conflict,
				ContextID:         spatial[0].ID,
				ContextKey:        "country",
				Severity:          0.7,
				Description:       fmt.Sprintf("Multiple countries detected: %v", keys(countries)),
				DetectedAt:        d.now(),
				RecommendedAction: "resolve_conflict",
			})
		}
	}

	return signals
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// calculateHealth starts at 1.0, deducts per-signal by type weight and
// rescales by mean confidence.
func (d *Detector) calculateHealth(records []*store.ContextRecord, signals []Signal) float64 {
	health := 1.0
	for _, s := range signals {
		switch s.Type {
		case Conflict:
			health -= s.Severity * 0.30
		case CorrectionPattern:
			health -= s.Severity * 0.20
		case Staleness:
			health -= s.Severity * 0.15
		default:
			health -= s.Severity * 0.10
		}
	}

	total := 0.0
	for _, record := range records {
		total += record.Confidence
	}
	meanConfidence := total / float64(len(records))
	health *= 0.5 + 0.5*meanConfidence

	if health < 0 {
		return 0
	}
	if health > 1 {
		return 1
	}
	return health
}

// ShouldRefresh advises whether a record needs refreshing and why.
func (d *Detector) ShouldRefresh(record *store.ContextRecord) (bool, string) {
	now := d.now()
	age := now.Sub(time.Unix(record.UpdatedTs, 0))

	if record.IsExpired(now.Unix()) {
		return true, "Context has expired"
	}
	if age > d.config.CriticalStalenessWindow {
		return true, fmt.Sprintf("Context is %d hours old (critical)", int(age.Hours()))
	}
	if record.DriftStatus == store.DriftConflicting {
		return true, "Context has conflicting status"
	}
	if record.Confidence < d.config.CriticalConfidenceThreshold {
		return true, fmt.Sprintf("Confidence too low (%.2f)", record.Confidence)
	}
	if age > d.stalenessWindowFor(record) && record.Confidence < 0.7 {
		return true, fmt.Sprintf("Context is stale (%dh) with moderate confidence", int(age.Hours()))
	}
	return false, "Context is healthy"
}

// StatusFor derives the drift status a record should carry given its
// signals, per the fixed precedence table.
func StatusFor(signals []Signal) store.DriftStatus {
	if len(signals) == 0 {
		return store.DriftStable
	}
	maxStaleSeverity := 0.0
	hasStale := false
	for _, s := range signals {
		switch s.Type {
		case Conflict, CorrectionPattern:
			return store.DriftConflicting
		case Staleness:
			hasStale = true
			if s.Severity > maxStaleSeverity {
				maxStaleSeverity = s.Severity
			}
		}
	}
	if hasStale && maxStaleSeverity > 0.7 {
		return store.DriftStale
	}
	return store.DriftDrifting
}

// UpdateDriftStatus is the only mutating call: it derives the status
// from the signals and writes it through the memory-backed store.
func (d *Detector) UpdateDriftStatus(ctx context.Context, record *store.ContextRecord, signals []Signal) (store.DriftStatus, error) {
	newStatus := StatusFor(signals)
	if d.memory == nil || newStatus == record.DriftStatus {
		record.DriftStatus = newStatus
		return newStatus, nil
	}

	if err := d.memory.SetDriftStatus(ctx, record.ID, newStatus); err != nil {
		return record.DriftStatus, fmt.Errorf("failed to update drift status: %w", err)
	}
	record.DriftStatus = newStatus
	return newStatus, nil
}

func (d *Detector) recommendations(signals []Signal, records []*store.ContextRecord) []string {
	recommendations := []string{}

	conflictKeys := map[string]bool{}
	correctionKeys := map[string]bool{}
	staleCount := 0
	for _, s := range signals {
		switch s.Type {
		case Conflict:
			conflictKeys[s.ContextKey] = true
		case CorrectionPattern:
			correctionKeys[s.ContextKey] = true
		case Staleness:
			staleCount++
		}
	}

	if len(conflictKeys) > 0 {
		recommendations = append(recommendations, fmt.Sprintf("Resolve conflicting values for: %s", joinKeys(conflictKeys)))
	}
	if len(correctionKeys) > 0 {
		recommendations = append(recommendations, fmt.Sprintf("Confirm correct values for frequently corrected: %s", joinKeys(correctionKeys)))
	}
	if staleCount > 0 {
		plural := ""
		if staleCount > 1 {
			plural = "s"
		}
		recommendations = append(recommendations, fmt.Sprintf("Refresh %d stale context%s", staleCount, plural))
	}

	lowConfidence := 0
	for _, record := range records {
		if record.Confidence < 0.5 {
			lowConfidence++
		}
	}
	if float64(lowConfidence) > float64(len(records))*0.3 {
		recommendations = append(recommendations, "Consider requesting updated context from user - many values have low confidence")
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, "No issues detected - context is healthy")
	}
	return recommendations
}

func joinKeys(set map[string]bool) string {
	out := ""
	for k := range set {
		if out != "" {
			out += ", "
		}
		out += k
	}
	return out
}
