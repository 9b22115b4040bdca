/*
presets.go - Preset handlers

PURPOSE:
  Lists the built-in rotation skeletons and creates a new profile from one.
  Loading a preset never touches existing profiles: it adds a profile and
  makes it active.

USAGE VIA API:

	GET  /api/presets
	POST /api/presets/load
	{"preset_id": "extended", "name": "Winter"}

SEE ALSO:
  - planner/presets.go: Preset definitions
*/
package api

import (
	"net/http"

	"github.com/warp/permiplan/planner"
)

// ListPresets returns the available presets.
// GET /api/presets
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	presets := planner.Presets()
	dtos := make([]PresetDTO, len(presets))
	for i, p := range presets {
		dtos[i] = toPresetDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadPreset creates a profile from a preset.
// POST /api/presets/load
func (h *Handler) LoadPreset(w http.ResponseWriter, r *http.Request) {
	var req LoadPresetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PresetID == "" {
		writeError(w, http.StatusBadRequest, "preset_id is required", nil)
		return
	}

	p, err := h.Planner.LoadPreset(r.Context(), req.PresetID, req.Name)
	if err != nil {
		h.writeServiceError(w, "Failed to load preset", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileDTO(p, p.ID))
}
