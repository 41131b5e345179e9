package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.sqlmaint/internal/app"
	"dev.helix.sqlmaint/internal/config"
	"dev.helix.sqlmaint/internal/history"
	"dev.helix.sqlmaint/internal/maintenance"
	"dev.helix.sqlmaint/internal/profilestore"
	"dev.helix.sqlmaint/internal/secrets"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()

	profiles, err := profilestore.Open(filepath.Join(t.TempDir(), "profiles.json"))
	require.NoError(t, err)

	ring, err := keyring.NewArrayKeyring(nil)
	require.NoError(t, err)
	secretStore := secrets.OpenWithKeyring(ring)

	historyStore, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { historyStore.Close() })

	registry := prometheus.NewRegistry()
	metrics := maintenance.NewMetrics(registry)
	emitter := maintenance.NewEmitter()
	coordinator := maintenance.NewCoordinator(emitter, historyStore, metrics)

	return &app.App{
		Config: &config.Config{
			Defaults: config.DefaultsConfig{ConnectionTimeoutMs: 1000},
		},
		Profiles:    profiles,
		Secrets:     secretStore,
		History:     historyStore,
		Emitter:     emitter,
		Metrics:     metrics,
		Coordinator: coordinator,
		Registry:    registry,
	}
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleSaveAndListAndDeleteProfile(t *testing.T) {
	s := NewServer(newTestApp(t), "127.0.0.1:0")

	profile := maintenance.ServerProfile{
		ID:       "p1",
		Name:     "primary",
		Server:   "sqlhost",
		Port:     1433,
		Username: "sa",
		Password: "secret",
	}
	body, err := json.Marshal(profile)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/profiles", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/profiles", nil)
	listRec := httptest.NewRecorder()
	s.router.ServeHTTP(listRec, listReq)
	listResp := decodeResponse(t, listRec)
	require.True(t, listResp.Success)

	data, err := json.Marshal(listResp.Data)
	require.NoError(t, err)
	var onDisk []maintenance.ServerProfileOnDisk
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Len(t, onDisk, 1)
	assert.Equal(t, "p1", onDisk[0].ID)
	assert.Equal(t, "primary", onDisk[0].Name)

	delReq := httptest.NewRequest(http.MethodDelete, "/api/v1/profiles/p1", nil)
	delRec := httptest.NewRecorder()
	s.router.ServeHTTP(delRec, delReq)
	require.Equal(t, http.StatusOK, delRec.Code)

	listRec2 := httptest.NewRecorder()
	s.router.ServeHTTP(listRec2, httptest.NewRequest(http.MethodGet, "/api/v1/profiles", nil))
	data2, err := json.Marshal(decodeResponse(t, listRec2).Data)
	require.NoError(t, err)
	var afterDelete []maintenance.ServerProfileOnDisk
	require.NoError(t, json.Unmarshal(data2, &afterDelete))
	assert.Empty(t, afterDelete)
}

func TestHandleRunMaintenanceRejectsInvalidRequest(t *testing.T) {
	s := NewServer(newTestApp(t), "127.0.0.1:0")

	body, err := json.Marshal(map[string]interface{}{
		"profile": maintenance.ServerProfile{},
		"options": maintenance.DefaultOptions(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/run", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestHandleRunMaintenanceRejectsMalformedBody(t *testing.T) {
	s := NewServer(newTestApp(t), "127.0.0.1:0")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/run", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePauseResumeSkipStopUnknownProfile(t *testing.T) {
	s := NewServer(newTestApp(t), "127.0.0.1:0")

	for _, path := range []string{
		"/api/v1/pause/missing",
		"/api/v1/resume/missing",
		"/api/v1/skip/missing",
		"/api/v1/stop/missing",
	} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
	}
}

func TestHandleGetAndClearRunHistory(t *testing.T) {
	a := newTestApp(t)
	s := NewServer(a, "127.0.0.1:0")

	summary := maintenance.BuildSummary([]maintenance.DatabaseResult{
		{DatabaseName: "db1", Success: true},
	}, 1.5)
	require.NoError(t, a.History.PersistRun(context.Background(), "p1", "primary", "sqlhost", "2026-01-01T00:00:00Z", "2026-01-01T00:01:00Z", summary))

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var records []maintenance.RunRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "p1", records[0].ProfileID)

	clearRec := httptest.NewRecorder()
	s.router.ServeHTTP(clearRec, httptest.NewRequest(http.MethodDelete, "/api/v1/history", nil))
	assert.Equal(t, http.StatusOK, clearRec.Code)

	afterRec := httptest.NewRecorder()
	s.router.ServeHTTP(afterRec, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	afterResp := decodeResponse(t, afterRec)
	afterData, err := json.Marshal(afterResp.Data)
	require.NoError(t, err)
	var afterRecords []maintenance.RunRecord
	require.NoError(t, json.Unmarshal(afterData, &afterRecords))
	assert.Empty(t, afterRecords)
}

func TestHandleMetricsServesPrometheusFormat(t *testing.T) {
	s := NewServer(newTestApp(t), "127.0.0.1:0")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}

func TestWebSocketBroadcastsEmittedEvents(t *testing.T) {
	a := newTestApp(t)
	s := NewServer(a, "127.0.0.1:0")
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events"
	u, err := url.Parse(wsURL)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server goroutine a moment to register the client before
	// emitting, since the upgrade and registration race with the send below.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.clientMu.RLock()
		n := len(s.clients)
		s.clientMu.RUnlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	a.Emitter.Emit(maintenance.Event{Kind: maintenance.EventFinished, ProfileID: "p1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event maintenance.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "p1", event.ProfileID)
	assert.Equal(t, maintenance.EventFinished, event.Kind)
}
