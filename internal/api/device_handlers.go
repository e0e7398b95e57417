package api

import (
	"net/http"

	"bluetray/internal/device"
)

func (h *Handler) HandleDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.client.GetDevices()
	if devices == nil {
		devices = []device.Record{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// HandleDeviceState is reserved for per-device detail.
func (h *Handler) HandleDeviceState(w http.ResponseWriter, r *http.Request) {
	h.client.GetDeviceState()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.enqueued(w, h.client.RefreshDevices(r.Context()))
}

func (h *Handler) HandleRefreshStop(w http.ResponseWriter, r *http.Request) {
	h.enqueued(w, h.client.StopRefreshDevices(r.Context()))
}

// HandleConnect passes the raw address through; the coordinator parses it
// and drops malformed ones.
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	h.enqueued(w, h.client.ConnectDevice(r.Context(), r.PathValue("addr")))
}

func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	h.enqueued(w, h.client.DisconnectDevice(r.Context(), r.PathValue("addr")))
}

func (h *Handler) enqueued(w http.ResponseWriter, ok bool) {
	code := http.StatusAccepted
	if !ok {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, EnqueueResponse{Queued: ok})
}
