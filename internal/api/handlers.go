package api

import (
	"encoding/json"
	"net/http"
	"time"

	"bluetray/internal/config"
	"bluetray/internal/coordinator"
	"bluetray/internal/stats"
	"bluetray/internal/version"
)

type Handler struct {
	config     *config.Manager
	client     *coordinator.Client
	wsHub      *Hub
	logs       *stats.LogBuffer
	outcomes   *stats.Outcomes
	startTime  time.Time
	appVersion string
}

func NewHandler(cfg *config.Manager, client *coordinator.Client, hub *Hub, logs *stats.LogBuffer, outcomes *stats.Outcomes) *Handler {
	return &Handler{
		config:    cfg,
		client:    client,
		wsHub:     hub,
		logs:      logs,
		outcomes:  outcomes,
		startTime: time.Now(),
	}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices", h.HandleDevices)
	mux.HandleFunc("GET /api/devices/state", h.HandleDeviceState)
	mux.HandleFunc("POST /api/devices/refresh", h.HandleRefresh)
	mux.HandleFunc("POST /api/devices/refresh/stop", h.HandleRefreshStop)
	mux.HandleFunc("POST /api/devices/{addr}/connect", h.HandleConnect)
	mux.HandleFunc("POST /api/devices/{addr}/disconnect", h.HandleDisconnect)

	mux.HandleFunc("/api/status", h.HandleStatus)
	mux.HandleFunc("GET /api/version", h.HandleVersion)
	mux.HandleFunc("GET /api/system", h.HandleSystem)
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.HandleConfigGet(w, r)
		case http.MethodPut:
			h.HandleConfigUpdate(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/debug", h.HandleDebugMode)
	mux.HandleFunc("GET /api/logs", h.HandleLogs)
	mux.HandleFunc("/api/logs/download", h.HandleLogsDownload)
	mux.HandleFunc("GET /api/outcomes", h.HandleOutcomes)
	mux.HandleFunc("/ws", h.HandleWebSocket)
}

type StatusResponse struct {
	Version        string `json:"version"`
	Uptime         int64  `json:"uptime"`
	Backend        string `json:"backend"`
	Adapter        string `json:"adapter"`
	Refreshing     bool   `json:"refreshing"`
	DeviceCount    int    `json:"device_count"`
	ConnectedCount int    `json:"connected_count"`
	Clients        int    `json:"ws_clients"`

	Commands map[string]int `json:"commands"`
}

// EnqueueResponse answers every command endpoint. Queued says only that the
// command reached the coordinator, not that it succeeded.
type EnqueueResponse struct {
	Queued bool `json:"queued"`
}

// ========== Helper Methods ==========

func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) uptime() time.Duration {
	return time.Since(h.startTime)
}

func (h *Handler) SetVersion(version string) {
	h.appVersion = version
}

func (h *Handler) GetVersion() string {
	return h.appVersion
}

func (h *Handler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	info := version.GetBuildInfo()
	if h.appVersion != "" {
		info.Version = h.appVersion
	}
	writeJSON(w, http.StatusOK, struct {
		version.BuildInfo
		Prerelease bool `json:"prerelease"`
	}{info, version.IsPrerelease()})
}
