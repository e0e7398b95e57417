package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluetray/internal/adapter"
	"bluetray/internal/adapter/adaptertest"
	"bluetray/internal/config"
	"bluetray/internal/coordinator"
	"bluetray/internal/stats"
)

type testEnv struct {
	fake   *adaptertest.Adapter
	coord  *coordinator.Coordinator
	hub    *Hub
	server *httptest.Server
	cfg    *config.Manager
	logs   *stats.LogBuffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.NewManager(filepath.Join(t.TempDir(), "bluetray.yaml"))
	require.NoError(t, cfg.Load())

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)

	logs := stats.NewLogBuffer(10)
	outcomes := stats.NewOutcomes(10)
	fake := adaptertest.New()
	coord := coordinator.Start(ctx, adapter.NewGateway(fake),
		coordinator.WithNotifier(hub),
		coordinator.WithOutcomes(func(o coordinator.Outcome) { outcomes.Record(o) }),
	)

	h := NewHandler(cfg, coord.Client(), hub, logs, outcomes)
	h.SetVersion("v1.2.3")
	mux := http.NewServeMux()
	h.Register(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-coord.Done()
	})
	return &testEnv{fake: fake, coord: coord, hub: hub, server: server, cfg: cfg, logs: logs}
}

func (e *testEnv) do(t *testing.T, method, path string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestDevices_EmptyList(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/devices", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []map[string]interface{}{}, decode[[]map[string]interface{}](t, resp))
}

func TestRefresh_PopulatesDevices(t *testing.T) {
	env := newTestEnv(t)
	env.fake.AddDevice("48:73:CB:41:50:F5", "Earbuds").SetConnected(true)

	resp := env.do(t, http.MethodPost, "/api/devices/refresh", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, decode[EnqueueResponse](t, resp).Queued)

	require.Eventually(t, func() bool { return len(env.coord.Client().GetDevices()) == 1 }, 2*time.Second, 5*time.Millisecond)

	resp = env.do(t, http.MethodGet, "/api/devices", "")
	devices := decode[[]map[string]interface{}](t, resp)
	require.Len(t, devices, 1)
	assert.Equal(t, "48:73:CB:41:50:F5", devices[0]["mac_addr"])
	assert.Equal(t, "Earbuds", devices[0]["name"])
	assert.Equal(t, true, devices[0]["is_connected"])

	resp = env.do(t, http.MethodGet, "/api/status", "")
	status := decode[StatusResponse](t, resp)
	assert.Equal(t, "v1.2.3", status.Version)
	assert.Equal(t, 1, status.DeviceCount)
	assert.Equal(t, 1, status.ConnectedCount)
	assert.True(t, status.Refreshing)
	assert.Equal(t, "bluez", status.Backend)

	resp = env.do(t, http.MethodPost, "/api/devices/refresh/stop", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Eventually(t, func() bool { return !env.coord.Client().Refreshing() }, 2*time.Second, 5*time.Millisecond)
}

func TestConnect_BroadcastsUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.fake.AddDevice("AA:BB:CC:DD:EE:FF", "Speaker")

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	resp := env.do(t, http.MethodPost, "/api/devices/aa:bb:cc:dd:ee:ff/connect", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageUpdateDevices, msg.Type)
}

func TestDisconnect_MalformedAddressIsStillQueued(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/devices/not-an-address/disconnect", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestEnqueue_ClosedQueue(t *testing.T) {
	env := newTestEnv(t)
	env.coord.Client().Close()
	<-env.coord.Done()

	resp := env.do(t, http.MethodPost, "/api/devices/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, decode[EnqueueResponse](t, resp).Queued)
}

func TestDeviceState_NoContent(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/devices/state", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodGet, "/api/devices/refresh", "").StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodDelete, "/api/config", "").StatusCode)
}

func TestDebugMode(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/debug", `{"debug":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.cfg.Get().Logging.Debug)

	resp = env.do(t, http.MethodPost, "/api/debug", `{"debug":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfigUpdate(t *testing.T) {
	env := newTestEnv(t)

	cfg := env.cfg.Get()
	cfg.Bluetooth.Transport = "le"
	body, err := json.Marshal(cfg)
	require.NoError(t, err)

	resp := env.do(t, http.MethodPut, "/api/config", string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "le", env.cfg.Get().Bluetooth.Transport)

	cfg.Web.Port = -1
	body, _ = json.Marshal(cfg)
	resp = env.do(t, http.MethodPut, "/api/config", string(body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/config", "")
	got := decode[config.Config](t, resp)
	assert.Equal(t, "le", got.Bluetooth.Transport)
}

func TestLogsDownload_Disabled(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/logs/download", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOutcomes_RecordsRejectedConnect(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/devices/AA:BB:CC:DD:EE:FF/connect", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var entries []stats.OutcomeEntry
	require.Eventually(t, func() bool {
		resp := env.do(t, http.MethodGet, "/api/outcomes", "")
		entries = decode[[]stats.OutcomeEntry](t, resp)
		return len(entries) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "connect_device", entries[0].Command)
	assert.Equal(t, "rejected", entries[0].Result)
	assert.NotEmpty(t, entries[0].Error)

	status := decode[StatusResponse](t, env.do(t, http.MethodGet, "/api/status", ""))
	assert.Equal(t, 1, status.Commands["rejected"])
}

func TestLogs_Recent(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/logs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]stats.LogEntry](t, resp))

	log := logrus.New()
	log.SetOutput(io.Discard)
	log.AddHook(env.logs)
	log.Info("one")
	log.Info("two")

	entries := decode[[]stats.LogEntry](t, env.do(t, http.MethodGet, "/api/logs?n=1", ""))
	require.Len(t, entries, 1)
	assert.Equal(t, "two", entries[0].Line)
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]interface{}](t, resp)
	assert.Equal(t, "v1.2.3", got["version"])
	assert.Contains(t, got, "go_version")
	assert.Contains(t, got, "prerelease")
}

func TestSystem(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/system", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]interface{}](t, resp)
	assert.Contains(t, got, "os")
	adapter, ok := got["adapter"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hci0", adapter["name"])
}
