// Package apiv0 exposes the stable v0 REST surface over the engines.
package apiv0

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/StrungPattern-coder/context/engine/bus"
	"github.com/StrungPattern-coder/context/engine/composer"
	"github.com/StrungPattern-coder/context/engine/device"
	"github.com/StrungPattern-coder/context/engine/drift"
	"github.com/StrungPattern-coder/context/engine/memory"
	"github.com/StrungPattern-coder/context/engine/metrics"
	"github.com/StrungPattern-coder/context/engine/resolver"
	"github.com/StrungPattern-coder/context/engine/situational"
	"github.com/StrungPattern-coder/context/engine/snapshot"
	"github.com/StrungPattern-coder/context/engine/spatial"
	"github.com/StrungPattern-coder/context/engine/temporal"
	"github.com/StrungPattern-coder/context/internal/errs"
	"github.com/StrungPattern-coder/context/internal/profile"
	"github.com/StrungPattern-coder/context/store"
)

// userHeader may override the body/query user id.
const userHeader = "X-RAL-User"

// Service bundles the engines the v0 handlers dispatch to.
type Service struct {
	Profile  *profile.Profile
	Store    *store.Store
	Memory   *memory.Service
	Temporal *temporal.Reasoner
	Spatial  *spatial.Reasoner
	Resolver    *resolver.Resolver
	Composer    *composer.Composer
	Drift       *drift.Detector
	Snapshot    *snapshot.Manager
	Bus         *bus.Bus
	Situational *situational.Engine
	Device      *device.Ingress
	Metrics     *metrics.Exporter

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// Register mounts the v0 routes.
func Register(e *echo.Echo, s *Service) {
	s.limiters = map[string]*rate.Limiter{}

	group := e.Group("/api/v0", s.tenantRateLimit)
	group.POST("/universal/augment", s.universalAugment)
	group.POST("/context/resolve", s.contextResolve)
	group.GET("/context/snapshot", s.contextSnapshot)
	group.POST("/context/update", s.contextUpdate)
	group.POST("/prompt/augment", s.promptAugment)
	group.GET("/drift/status", s.driftStatus)
}

// tenantRateLimit enforces the per-tenant request limit when a tenant
// key is presented. Authentication itself is an external collaborator.
func (s *Service) tenantRateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		apiKey := c.Request().Header.Get("X-API-Key")
		if apiKey == "" {
			return next(c)
		}

		tenant, err := s.Store.GetTenant(c.Request().Context(), &store.FindTenant{APIKey: &apiKey})
		if err != nil {
			return echoError(c, errs.Wrap(errs.Transient, "tenant lookup failed", err))
		}
		if tenant == nil || !tenant.IsActive {
			return echoError(c, errs.New(errs.Unauthorized, "unknown or inactive tenant"))
		}
		if tenant.RequestsPerMinute > 0 && !s.limiterFor(tenant).Allow() {
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error": "rate limit exceeded",
			})
		}
		return next(c)
	}
}

func (s *Service) limiterFor(tenant *store.Tenant) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	limiter, ok := s.limiters[tenant.ID]
	if !ok {
		perSecond := rate.Limit(float64(tenant.RequestsPerMinute) / 60.0)
		limiter = rate.NewLimiter(perSecond, tenant.RequestsPerMinute)
		s.limiters[tenant.ID] = limiter
	}
	return limiter
}

// echoError maps a kinded error onto the transport.
func echoError(c echo.Context, err error) error {
	return c.JSON(errs.HTTPStatus(err), map[string]any{"error": err.Error()})
}

// signals are the raw ambient inputs a client submits.
type signals struct {
	Timestamp     string         `json:"timestamp"`
	Timezone      string         `json:"timezone"`
	Locale        string         `json:"locale"`
	Country       string         `json:"country"`
	Region        string         `json:"region"`
	SessionID     string         `json:"sessionId"`
	AllowLocation *bool          `json:"allowLocation"`
	Device        map[string]any `json:"device"`
}

// requestContext is the per-request view assembled from signals, the
// stored user, and defaults. Warnings accumulate instead of failing.
type requestContext struct {
	user         *store.User
	userID       string
	timestamp    time.Time
	timezone     string
	locale       string
	country      string
	region       string
	sessionID    string
	sessionStart *time.Time
	consent      bool
	warnings     []string
}

// buildRequestContext validates the signals and merges user defaults.
// An invalid timestamp is surfaced as InvalidInput; a missing timezone
// falls back to the user default, then UTC with a warning.
func (s *Service) buildRequestContext(c echo.Context, userID string, sig signals) (*requestContext, error) {
	if header := c.Request().Header.Get(userHeader); header != "" {
		userID = header
	}

	rc := &requestContext{
		userID:    userID,
		timezone:  sig.Timezone,
		locale:    sig.Locale,
		country:   sig.Country,
		region:    sig.Region,
		sessionID: sig.SessionID,
		timestamp: time.Now().UTC(),
	}

	if sig.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, sig.Timestamp)
		if err != nil {
			return nil, errs.Newf(errs.InvalidInput, "invalid timestamp %q: expected ISO-8601 with offset", sig.Timestamp)
		}
		rc.timestamp = parsed
	}

	ctx := c.Request().Context()
	if userID != "" {
		user, err := s.Store.GetUser(ctx, &store.FindUser{ID: &userID})
		if err != nil {
			return nil, errs.Wrap(errs.Transient, "user lookup failed", err)
		}
		if user == nil {
			rc.warnings = append(rc.warnings, "Unknown user, using defaults")
		} else {
			rc.user = user
			if rc.timezone == "" {
				rc.timezone = user.DefaultTimezone
			}
			if rc.locale == "" {
				rc.locale = user.DefaultLocale
			}
			if rc.country == "" {
				rc.country = user.DefaultCountry
			}
			rc.consent = user.AllowLocation
		}
	}
	if sig.AllowLocation != nil {
		rc.consent = *sig.AllowLocation
	}

	if rc.timezone == "" {
		rc.timezone = "UTC"
		rc.warnings = append(rc.warnings, "No timezone provided, using UTC")
	} else if _, err := time.LoadLocation(rc.timezone); err != nil {
		rc.warnings = append(rc.warnings, "Unknown timezone \""+rc.timezone+"\", using UTC")
		rc.timezone = "UTC"
	}
	if rc.locale == "" {
		rc.locale = "en-US"
	}

	if rc.sessionID != "" {
		session, err := s.Memory.GetSession(ctx, rc.sessionID)
		if err == nil && session != nil {
			start := time.Unix(session.StartedTs, 0).UTC()
			rc.sessionStart = &start
		}
	}

	return rc, nil
}

// situationalContext collects the user's situational records into a
// flat map, honoring the situational privacy switch.
func (s *Service) situationalContext(c echo.Context, rc *requestContext) map[string]any {
	if rc.user == nil || !rc.user.AllowSituational {
		return nil
	}
	records, err := s.Memory.GetByUserAndType(c.Request().Context(), rc.user.ID, store.ContextTypeSituational)
	if err != nil || len(records) == 0 {
		return nil
	}

	out := map[string]any{}
	for _, record := range records {
		if len(record.Value) == 1 {
			for _, v := range record.Value {
				out[record.Key] = v
			}
			continue
		}
		out[record.Key] = record.Value
	}
	return out
}
