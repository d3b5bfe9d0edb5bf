package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch-monitor/sentinel/internal/alerting"
	"dispatch-monitor/sentinel/internal/auth"
	"dispatch-monitor/sentinel/internal/config"
	"dispatch-monitor/sentinel/internal/diff"
	"dispatch-monitor/sentinel/internal/domain"
	"dispatch-monitor/sentinel/internal/notify"
	"dispatch-monitor/sentinel/internal/poller"
	"dispatch-monitor/sentinel/internal/snapshot"
	"dispatch-monitor/sentinel/internal/verify"
)

type stubJobs struct{ snap domain.Snapshot }

func (s *stubJobs) FetchActiveJobs(context.Context) (domain.Snapshot, error) {
	return s.snap, nil
}

type stubTelemetry struct{}

func (s *stubTelemetry) FetchLatestPositions(context.Context) (map[string]*domain.VehiclePosition, error) {
	return map[string]*domain.VehiclePosition{}, nil
}

type fixture struct {
	mux    *http.ServeMux
	store  *alerting.Store
	engine *alerting.Engine
	bus    *notify.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()

	store := alerting.NewStore()
	engine := alerting.NewEngine(store, alerting.DefaultRules(alerting.RuleParams{
		StalledArrival:          4 * time.Hour,
		ProximityThresholdMiles: 2.0,
	}), log)
	bus := notify.NewBus()

	p := poller.New(&stubJobs{snap: domain.Snapshot{}}, &stubTelemetry{}, verify.New(2.0),
		engine, snapshot.New(15*time.Second), bus,
		poller.Options{Interval: time.Hour, FetchTimeout: time.Second}, log)

	cfg := config.Load()
	cfg.ValidAPIKeys = []string{"test-key"}

	mux := http.NewServeMux()
	server := NewServer(store, p, bus, log)
	server.Routes(mux, NewAuthMiddleware(auth.NewAuthenticator(cfg, nil)), NewHub(bus, log))

	return &fixture{mux: mux, store: store, engine: engine, bus: bus}
}

// raiseAlert pushes one vehicle_without_driver alert through the engine.
func (f *fixture) raiseAlert(t *testing.T, jobID string) string {
	t.Helper()
	jobs := domain.Snapshot{jobID: {
		ID:            jobID,
		Status:        domain.StatusEntered,
		ScheduledDate: time.Now(),
		VehicleID:     "V-" + jobID,
	}}
	sum := f.engine.Evaluate(time.Now(), jobs, diff.Diff(domain.Snapshot{}, jobs),
		map[string]*domain.VerificationResult{})
	require.Len(t, sum.Raised, 1)
	return sum.Raised[0].ID
}

func (f *fixture) do(method, path, body, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestListAlerts(t *testing.T) {
	f := newFixture(t)
	f.raiseAlert(t, "J1")

	rec := f.do(http.MethodGet, "/api/alerts", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Alerts []domain.Alert    `json:"alerts"`
		Stats  domain.AlertStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, "J1", body.Alerts[0].JobID)
	assert.Equal(t, 1, body.Stats.Total)
	assert.Equal(t, 1, body.Stats.BySeverity["MEDIUM"])
}

func TestListAlertsSeverityFilter(t *testing.T) {
	f := newFixture(t)
	f.raiseAlert(t, "J1")

	rec := f.do(http.MethodGet, "/api/alerts?severity=high", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Alerts []domain.Alert    `json:"alerts"`
		Stats  domain.AlertStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Alerts)
	assert.Equal(t, 1, body.Stats.Total)

	rec = f.do(http.MethodGet, "/api/alerts?severity=bogus", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcknowledgeEndpoint(t *testing.T) {
	f := newFixture(t)
	id := f.raiseAlert(t, "J1")

	events, cancel := f.bus.Subscribe(4)
	defer cancel()

	rec := f.do(http.MethodPost, "/api/alerts/"+id+"/acknowledge", `{"by":"alice"}`, "test-key")
	require.Equal(t, http.StatusOK, rec.Code)

	a, ok := f.store.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.AlertAcknowledged, a.State)

	select {
	case ev := <-events:
		assert.Equal(t, notify.AlertAcknowledged, ev.Type)
	default:
		t.Fatal("expected an acknowledged event on the bus")
	}
}

func TestAcknowledgeRequiresAuth(t *testing.T) {
	f := newFixture(t)
	id := f.raiseAlert(t, "J1")

	rec := f.do(http.MethodPost, "/api/alerts/"+id+"/acknowledge", `{"by":"alice"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/alerts/"+id+"/acknowledge", `{"by":"alice"}`, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActionErrorMapping(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/alerts/nope/dismiss", `{"by":"alice"}`, "test-key")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := f.raiseAlert(t, "J1")
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/alerts/"+id+"/dismiss", `{"by":"alice"}`, "test-key").Code)

	// Dismissed is terminal for acknowledge.
	rec = f.do(http.MethodPost, "/api/alerts/"+id+"/acknowledge", `{"by":"bob"}`, "test-key")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Missing operator name.
	rec = f.do(http.MethodPost, "/api/alerts/"+id+"/dismiss", `{}`, "test-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/polling/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ps poller.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ps))
	assert.False(t, ps.Running)

	rec = f.do(http.MethodGet, "/api/gps/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var gps poller.GpsStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gps))
	assert.Equal(t, 0, gps.TotalVehicles)

	rec = f.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sentinel_polls_total")
}
