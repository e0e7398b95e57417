package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"bluetray/internal/config"
	"bluetray/internal/logger"
	"bluetray/internal/stats"
	"bluetray/internal/system"
)

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := h.config.Get()
	devices := h.client.GetDevices()
	connected := 0
	for _, d := range devices {
		if d.IsConnected() {
			connected++
		}
	}

	resp := StatusResponse{
		Version:        h.GetVersion(),
		Uptime:         int64(h.uptime().Seconds()),
		Backend:        cfg.Bluetooth.Backend,
		Adapter:        cfg.Bluetooth.Adapter,
		Refreshing:     h.client.Refreshing(),
		DeviceCount:    len(devices),
		ConnectedCount: connected,
		Clients:        h.wsHub.ClientCount(),
		Commands:       map[string]int{},
	}
	if h.outcomes != nil {
		resp.Commands = h.outcomes.Totals()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleSystem reports host dependencies for the configured controller.
func (h *Handler) HandleSystem(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, system.Check(h.config.Get().Bluetooth.Adapter))
}

func (h *Handler) HandleConfigGet(w http.ResponseWriter, r *http.Request) {
	cfg := h.config.Get()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

// HandleConfigUpdate persists a new config. Bluetooth settings apply on the
// next restart.
func (h *Handler) HandleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var cfg config.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		jsonError(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.config.Update(cfg); err != nil {
		jsonError(w, fmt.Sprintf("Failed to update config: %v", err), http.StatusBadRequest)
		return
	}

	logger.Info("Configuration updated successfully")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
}

// recentCount reads ?n= and falls back to def.
func recentCount(r *http.Request, def int) int {
	if v := r.URL.Query().Get("n"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	logs := []stats.LogEntry{}
	if h.logs != nil {
		logs = append(logs, h.logs.GetRecent(recentCount(r, stats.DefaultLogLines))...)
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) HandleOutcomes(w http.ResponseWriter, r *http.Request) {
	outcomes := []stats.OutcomeEntry{}
	if h.outcomes != nil {
		outcomes = append(outcomes, h.outcomes.Recent(recentCount(r, stats.DefaultOutcomeHistory))...)
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func (h *Handler) HandleLogsDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var logFilePath string
	if l := logger.Get(); l != nil {
		logFilePath = l.GetFilePath()
	}
	if logFilePath == "" {
		jsonError(w, "File logging is not enabled", http.StatusNotFound)
		return
	}

	file, err := os.Open(logFilePath)
	if err != nil {
		jsonError(w, fmt.Sprintf("Failed to open log file: %v", err), http.StatusInternalServerError)
		return
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		jsonError(w, fmt.Sprintf("Failed to stat log file: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Disposition", "attachment; filename=\"bluetray.log\"")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", fileInfo.Size()))

	if _, err := io.Copy(w, file); err != nil {
		logger.Error("Failed to stream log file: %v", err)
	}
}

func (h *Handler) HandleDebugMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{
			"debug": logger.IsDebug(),
		})

	case http.MethodPost:
		var req struct {
			Debug bool `json:"debug"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
			return
		}

		logger.SetDebug(req.Debug)
		if err := h.config.SetDebug(req.Debug); err != nil {
			logger.Warn("Failed to persist debug mode: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"debug":  req.Debug,
			"status": "updated",
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHub.HandleConnection(w, r)
}
