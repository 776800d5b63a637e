package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type deviceSummary struct {
	Name   string `json:"name"`
	Driver string `json:"driver"`
}

type deviceState struct {
	Name   string `json:"name"`
	Shared bool   `json:"shared"`
	Online bool   `json:"online"`
}

type shareResult struct {
	Name    string `json:"name"`
	Shared  bool   `json:"shared"`
	Changed bool   `json:"changed"`
}

// listDevices handles GET /devices
func (h *handler) listDevices(w http.ResponseWriter, r *http.Request) {
	items := []deviceSummary{}
	for _, name := range h.devices.Names() {
		driver, err := h.devices.Driver(name)
		if err != nil {
			writeError(w, err)
			return
		}
		items = append(items, deviceSummary{Name: name, Driver: driver})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// getDevice handles GET /devices/{name}
func (h *handler) getDevice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	dev, err := h.open(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}

	shared, err := dev.IsShared(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	online, err := dev.IsOnline(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deviceState{Name: name, Shared: shared, Online: online})
}

// setShare handles PUT and DELETE /devices/{name}/share
func (h *handler) setShare(shared bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		dev, err := h.open(r.Context(), name)
		if err != nil {
			writeError(w, err)
			return
		}

		changed, err := dev.Ensure(r.Context(), shared)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, shareResult{Name: name, Shared: shared, Changed: changed})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
