package apiv0

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

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
	"github.com/StrungPattern-coder/context/internal/profile"
	"github.com/StrungPattern-coder/context/store"
	"github.com/StrungPattern-coder/context/store/db/sqlite"
)

type testAPI struct {
	echo    *echo.Echo
	service *Service
	store   *store.Store
	tenant  *store.Tenant
	user    *store.User
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "apiv0_test.db"),
	}
	p.FromEnv()
	require.NoError(t, p.Validate())

	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })

	st := store.New(driver, p)
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	tenant, err := st.CreateTenant(ctx, &store.Tenant{
		Slug: "acme", APIKey: "rk_acme_live", IsActive: true, RequestsPerMinute: 1,
		CreatedTs: time.Now().Unix(), UpdatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)
	user, err := st.CreateUser(ctx, &store.User{
		ID: "user-1", TenantID: tenant.ID, ExternalID: "ext-1",
		DefaultTimezone: "America/New_York", DefaultLocale: "en-US", DefaultCountry: "US",
		AllowLocation: true, AllowSituational: true,
		CreatedTs: time.Now().Unix(), UpdatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	memoryService := memory.NewService(st, memory.DefaultConfig())
	temporalReasoner := temporal.NewReasoner()
	spatialReasoner := spatial.NewReasoner("en-US")

	service := &Service{
		Profile:     p,
		Store:       st,
		Memory:      memoryService,
		Temporal:    temporalReasoner,
		Spatial:     spatialReasoner,
		Resolver:    resolver.NewResolver(temporalReasoner, spatialReasoner, p.DefaultConfidenceThreshold, p.HighConfidenceThreshold),
		Composer:    composer.NewComposer(composer.Config{MaxContextTokens: p.MaxContextTokens, MinRelevance: p.MinRelevanceScore}),
		Drift:       drift.NewDetector(drift.DefaultConfig(), memoryService),
		Snapshot:    snapshot.NewManager(st, snapshot.Config{}),
		Bus:         bus.New(bus.NewInMemoryBroker(16), bus.Options{}),
		Situational: situational.NewEngine(),
		Device:      device.NewIngress(),
		Metrics:     metrics.NewExporter(metrics.DefaultConfig()),
	}

	e := echo.New()
	Register(e, service)

	return &testAPI{echo: e, service: service, store: st, tenant: tenant, user: user}
}

func (a *testAPI) request(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestUniversalAugmentBasics(t *testing.T) {
	api := newTestAPI(t)

	rec, payload := api.request(t, http.MethodPost, "/api/v0/universal/augment",
		`{"prompt": "Schedule a meeting for tomorrow", "userId": "user-1", "provider": "anthropic"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotEmpty(t, payload["requestId"])
	require.Equal(t, "Schedule a meeting for tomorrow", payload["userPrompt"])
	require.Equal(t, "anthropic", payload["provider"])

	systemContext := payload["systemContext"].(string)
	require.True(t, strings.HasPrefix(systemContext, "<context>"))

	contextData := payload["context"].(map[string]any)
	require.Contains(t, contextData, "atomic")
	require.Contains(t, contextData, "temporal")

	metadata := payload["metadata"].(map[string]any)
	require.Equal(t, false, metadata["slowPathCompleted"])
}

func TestUniversalAugmentValidation(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.request(t, http.MethodPost, "/api/v0/universal/augment", `{"prompt": ""}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, payload := api.request(t, http.MethodPost, "/api/v0/universal/augment",
		`{"prompt": "hi", "signals": {"timestamp": "not-a-time"}}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, payload["error"], "invalid timestamp")
}

func TestUniversalAugmentUnknownTimezoneWarns(t *testing.T) {
	api := newTestAPI(t)

	rec, payload := api.request(t, http.MethodPost, "/api/v0/universal/augment",
		`{"prompt": "hello", "signals": {"timezone": "Mars/Olympus"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	warnings := payload["warnings"].([]any)
	found := false
	for _, w := range warnings {
		if strings.Contains(w.(string), "Unknown timezone") {
			found = true
		}
	}
	require.True(t, found, "unknown timezone must warn, not fail")
}

func TestContextResolveMidnightCrossover(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()

	// A session that started at 23:00 the previous calendar day.
	loc, _ := time.LoadLocation("America/New_York")
	sessionStart := time.Date(2026, 1, 3, 23, 0, 0, 0, loc)
	_, err := api.store.CreateContextSession(ctx, &store.ContextSession{
		UserID: "user-1", SessionID: "sess-midnight",
		StartedTs: sessionStart.Unix(), LastActivityTs: sessionStart.Unix(),
	})
	require.NoError(t, err)

	rec, payload := api.request(t, http.MethodPost, "/api/v0/context/resolve",
		`{"userId": "user-1", "message": "I had a meeting earlier today", "signals": {"timestamp": "2026-01-04T00:30:00-05:00", "timezone": "America/New_York", "sessionId": "sess-midnight"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotEmpty(t, payload["resolveId"])
	resolved := payload["resolved"].(map[string]any)
	require.Contains(t, resolved, "earlier")
	require.Contains(t, resolved, "today")

	earlier := resolved["earlier"].(map[string]any)
	require.Equal(t, "session_earlier", earlier["source"])
	require.InDelta(t, 0.7, earlier["confidence"].(float64), 0.01)
}

func TestContextSnapshotEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rec, payload := api.request(t, http.MethodGet, "/api/v0/context/snapshot?userId=user-1&timezone=Asia/Tokyo", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	snapshotData := payload["snapshot"].(map[string]any)
	require.Equal(t, "Asia/Tokyo", snapshotData["timezone"])
	require.Contains(t, snapshotData, "time_of_day")
	require.Contains(t, snapshotData, "date_format")
}

func TestContextUpdateAndDriftStatus(t *testing.T) {
	api := newTestAPI(t)

	rec, payload := api.request(t, http.MethodPost, "/api/v0/context/update",
		`{"userId": "user-1", "updates": [{"type": "spatial", "key": "location", "value": {"city": "Boston"}, "source": "user_explicit"}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), payload["updated"])
	require.Equal(t, "1.0.0", payload["contextVersion"])

	rec, payload = api.request(t, http.MethodGet, "/api/v0/drift/status?userId=user-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), payload["contextsChecked"])
	require.Greater(t, payload["health"].(float64), 0.7)
	require.NotEmpty(t, payload["recommendations"])
}

func TestContextUpdateUnknownUser(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.request(t, http.MethodPost, "/api/v0/context/update",
		`{"userId": "ghost", "updates": [{"type": "meta", "key": "k", "value": {"v": 1}}]}`, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserHeaderOverride(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.request(t, http.MethodPost, "/api/v0/context/update",
		`{"userId": "ghost", "updates": [{"type": "meta", "key": "k", "value": {"v": 1}}]}`,
		map[string]string{"X-RAL-User": "user-1"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPromptAugmentPIIExclusion(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()

	// Situational state including credential-shaped fields.
	for key, value := range map[string]any{
		"account_status": "active",
		"user_ssn":       "123-45-6789",
		"card_number":    "4111111111111111",
		"api_key":        "sk-" + strings.Repeat("Ab1x", 8),
	} {
		_, err := api.service.Memory.Store(ctx, memory.StoreParams{
			UserID: "user-1", Type: store.ContextTypeSituational, Key: key,
			Value: map[string]any{key: value}, Confidence: 0.9, Source: "api",
		})
		require.NoError(t, err)
	}

	rec, payload := api.request(t, http.MethodPost, "/api/v0/prompt/augment",
		`{"userId": "user-1", "prompt": "continue with my project from before", "provider": "generic"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	systemContext := payload["systemContext"].(string)
	require.NotRegexp(t, regexp.MustCompile(`\d{3}-\d{2}-\d{4}`), systemContext)
	require.NotRegexp(t, regexp.MustCompile(`\b\d{16}\b`), systemContext)
	require.NotRegexp(t, regexp.MustCompile(`sk-[A-Za-z0-9]{32,}`), systemContext)
}

func TestPromptAugmentInjectionStyles(t *testing.T) {
	api := newTestAPI(t)

	rec, payload := api.request(t, http.MethodPost, "/api/v0/prompt/augment",
		`{"userId": "user-1", "prompt": "what time is it now?", "injectionStyle": "prefix"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	messages := payload["messages"].([]any)
	require.Len(t, messages, 1)

	rec, _ = api.request(t, http.MethodPost, "/api/v0/prompt/augment",
		`{"userId": "user-1", "prompt": "hi", "injectionStyle": "sideways"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUniversalAugmentDeviceTelemetry(t *testing.T) {
	api := newTestAPI(t)

	body := `{"prompt": "what time is my meeting today?", "userId": "user-1",
		"signals": {"device": {
			"battery": {"level": 0.05, "state": "discharging"},
			"network": {"connection_type": "4g"},
			"kinetic": {"state": "walking"}
		}}}`
	rec, payload := api.request(t, http.MethodPost, "/api/v0/universal/augment", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	contextData := payload["context"].(map[string]any)
	deviceData := contextData["device"].(map[string]any)
	require.Equal(t, "critical", deviceData["overall_constraint"])

	metadata := payload["metadata"].(map[string]any)
	require.Equal(t, "critical", metadata["devicePriority"])
	require.Equal(t, float64(250), metadata["maxResponseTokens"])

	// The constraint instructions are part of the composed context.
	require.Contains(t, payload["systemContext"].(string), "battery is critical")
}

func TestUniversalAugmentTracksSituationalTask(t *testing.T) {
	api := newTestAPI(t)

	rec, payload := api.request(t, http.MethodPost, "/api/v0/universal/augment",
		`{"prompt": "I am working on the quarterly report, continue where we left off", "userId": "user-1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	systemContext := payload["systemContext"].(string)
	require.Contains(t, systemContext, "quarterly report")
}

func TestTenantRateLimit(t *testing.T) {
	api := newTestAPI(t)
	headers := map[string]string{"X-API-Key": "rk_acme_live"}

	rec, _ := api.request(t, http.MethodGet, "/api/v0/context/snapshot?timezone=UTC", "", headers)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.request(t, http.MethodGet, "/api/v0/context/snapshot?timezone=UTC", "", headers)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestUnknownTenantKeyRejected(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.request(t, http.MethodGet, "/api/v0/context/snapshot?timezone=UTC", "",
		map[string]string{"X-API-Key": "rk_who_dis"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}
