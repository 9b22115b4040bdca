/*
handlers.go - HTTP API handlers for the rotation planner

PURPOSE:
  Exposes the planner service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every rule to planner.Service.

ENDPOINTS:
  Profiles:
    GET    /api/profiles                       List profiles
    POST   /api/profiles                       Create a starter profile
    GET    /api/profiles/active                Get the active profile
    PUT    /api/profiles/active                Switch the active profile
    GET    /api/profiles/{id}                  Get profile details
    PATCH  /api/profiles/{id}                  Change name, dates, ref year
    DELETE /api/profiles/{id}                  Delete (never the last one)

  Blocks:
    POST   /api/profiles/{id}/blocks           Append a block
    POST   /api/profiles/{id}/blocks/cycle     Insert an unplanned cycle
    PATCH  /api/profiles/{id}/blocks/{blockID} Edit kind, duration, label
    PUT    /api/profiles/{id}/blocks/{blockID}/end  Set duration from end date
    DELETE /api/profiles/{id}/blocks/{blockID} Remove a block

  Holidays:
    POST   /api/profiles/{id}/holidays         Add a holiday
    DELETE /api/profiles/{id}/holidays/{holidayID}

  Views:
    GET    /api/profiles/{id}/plan?today=      Annotated timeline
    GET    /api/profiles/{id}/calendar.ics     iCalendar export
    GET    /api/waves?ref_year=                Wave schedule of a season
    GET    /api/audit?profile_id=&action=&limit=

  Backup:
    GET    /api/backup                         Download the collection
    POST   /api/backup                         Restore a backup

  The profile id "active" stands for the active profile on every
  /api/profiles/{id}/... route.

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert DTO to planner input (dates, kinds)
  3. Call planner.Service
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, malformed backups
  - 404: Profile, block, holiday or preset not found
  - 409: Refused by a collection rule (last profile, closing leave)
  - 500: Storage failures

SECURITY NOTE:
  No authentication. The planner is a single-user tool bound to localhost
  by default.

SEE ALSO:
  - dto.go: Request/response data structures
  - presets.go: Preset handlers
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/permiplan/calendar"
	"github.com/warp/permiplan/generic"
	"github.com/warp/permiplan/planner"
	"github.com/warp/permiplan/rotation"
)

// ActiveProfileID is the path alias of the active profile.
const ActiveProfileID = "active"

// MaxImportBytes bounds the size of an uploaded backup.
const MaxImportBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Planner *planner.Service
	logger  zerolog.Logger
}

// NewHandler creates a new handler on top of the planner service.
func NewHandler(svc *planner.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		Planner: svc,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// profileID reads {id} from the path and resolves the "active" alias.
func (h *Handler) profileID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if id == ActiveProfileID {
		return h.Planner.Active().ID
	}
	return id
}

// Health reports that the process is up.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "today": h.Planner.Today().String()})
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

// ListProfiles returns every profile.
// GET /api/profiles
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	c := h.Planner.Collection()
	dtos := make([]ProfileSummaryDTO, len(c.Profiles))
	for i, p := range c.Profiles {
		dtos[i] = toProfileSummaryDTO(p, c.ActiveID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"active_id": c.ActiveID, "profiles": dtos})
}

// CreateProfile adds a starter profile and makes it active. The body is
// optional.
// POST /api/profiles
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	p, err := h.Planner.CreateProfile(r.Context(), req.Name)
	if err != nil {
		h.writeServiceError(w, "Failed to create profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileDTO(p, p.ID))
}

// GetProfile returns a profile with its blocks and holidays.
// GET /api/profiles/{id}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Planner.Profile(h.profileID(r))
	if err != nil {
		h.writeServiceError(w, "Profile not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p, h.Planner.Active().ID))
}

// GetActiveProfile returns the active profile.
// GET /api/profiles/active
func (h *Handler) GetActiveProfile(w http.ResponseWriter, r *http.Request) {
	p := h.Planner.Active()
	writeJSON(w, http.StatusOK, toProfileDTO(p, p.ID))
}

// SetActiveProfile switches the active profile.
// PUT /api/profiles/active
func (h *Handler) SetActiveProfile(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	if err := h.Planner.SetActive(r.Context(), req.ID); err != nil {
		h.writeServiceError(w, "Failed to switch profile", err)
		return
	}
	p := h.Planner.Active()
	writeJSON(w, http.StatusOK, toProfileDTO(p, p.ID))
}

// UpdateProfile changes the fields present in the body.
// PATCH /api/profiles/{id}
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u := planner.ProfileUpdate{Name: req.Name, RefYear: req.RefYear}
	if req.StartDate != nil {
		d, err := generic.ParseTimePoint(*req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date", err)
			return
		}
		if d.IsZero() {
			writeError(w, http.StatusBadRequest, "start_date cannot be empty", nil)
			return
		}
		u.StartDate = &d
	}
	if req.TargetWaveDate != nil {
		d, err := generic.ParseTimePoint(*req.TargetWaveDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid target_wave_date", err)
			return
		}
		u.TargetWaveDate = &d
	}

	p, err := h.Planner.UpdateProfile(r.Context(), h.profileID(r), u)
	if err != nil {
		h.writeServiceError(w, "Failed to update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p, h.Planner.Active().ID))
}

// DeleteProfile removes a profile.
// DELETE /api/profiles/{id}
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.Planner.DeleteProfile(r.Context(), h.profileID(r)); err != nil {
		h.writeServiceError(w, "Failed to delete profile", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "active_id": h.Planner.Active().ID})
}

// =============================================================================
// BLOCK HANDLERS
// =============================================================================

// AddBlock appends a block to the rotation.
// POST /api/profiles/{id}/blocks
func (h *Handler) AddBlock(w http.ResponseWriter, r *http.Request) {
	var req AddBlockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind, err := rotation.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid kind", err)
		return
	}

	b, err := h.Planner.AddBlock(r.Context(), h.profileID(r), planner.BlockInput{
		Kind:         kind,
		DurationDays: req.DurationDays,
		Label:        req.Label,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to add block", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlockDTO(b))
}

// InsertCycle inserts an unplanned work rotation and its rest period.
// POST /api/profiles/{id}/blocks/cycle
func (h *Handler) InsertCycle(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.Planner.InsertCycle(r.Context(), h.profileID(r))
	if err != nil {
		h.writeServiceError(w, "Failed to insert cycle", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"blocks": toBlockDTOs(blocks)})
}

// UpdateBlock edits a block in place.
// PATCH /api/profiles/{id}/blocks/{blockID}
func (h *Handler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	var req UpdateBlockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u := planner.BlockUpdate{DurationDays: req.DurationDays, Label: req.Label}
	if req.Kind != nil {
		kind, err := rotation.ParseKind(*req.Kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid kind", err)
			return
		}
		u.Kind = &kind
	}

	b, err := h.Planner.UpdateBlock(r.Context(), h.profileID(r), chi.URLParam(r, "blockID"), u)
	if err != nil {
		h.writeServiceError(w, "Failed to update block", err)
		return
	}
	writeJSON(w, http.StatusOK, toBlockDTO(b))
}

// EditBlockEnd sets a block's duration from its new last day.
// PUT /api/profiles/{id}/blocks/{blockID}/end
func (h *Handler) EditBlockEnd(w http.ResponseWriter, r *http.Request) {
	var req EditBlockEndRequest
	if !decodeBody(w, r, &req) {
		return
	}
	end, err := generic.ParseTimePoint(req.EndDate)
	if err != nil || end.IsZero() {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}

	b, err := h.Planner.EditBlockEnd(r.Context(), h.profileID(r), chi.URLParam(r, "blockID"), end)
	if err != nil {
		h.writeServiceError(w, "Failed to edit block end", err)
		return
	}
	writeJSON(w, http.StatusOK, toBlockDTO(b))
}

// RemoveBlock deletes a block.
// DELETE /api/profiles/{id}/blocks/{blockID}
func (h *Handler) RemoveBlock(w http.ResponseWriter, r *http.Request) {
	if err := h.Planner.RemoveBlock(r.Context(), h.profileID(r), chi.URLParam(r, "blockID")); err != nil {
		h.writeServiceError(w, "Failed to remove block", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// AddHoliday adds a named date to the profile.
// POST /api/profiles/{id}/holidays
func (h *Handler) AddHoliday(w http.ResponseWriter, r *http.Request) {
	var req AddHolidayRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := generic.ParseTimePoint(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	hol, err := h.Planner.AddHoliday(r.Context(), h.profileID(r), req.Name, date)
	if err != nil {
		h.writeServiceError(w, "Failed to add holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(hol))
}

// RemoveHoliday deletes a holiday.
// DELETE /api/profiles/{id}/holidays/{holidayID}
func (h *Handler) RemoveHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Planner.RemoveHoliday(r.Context(), h.profileID(r), chi.URLParam(r, "holidayID")); err != nil {
		h.writeServiceError(w, "Failed to remove holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// VIEWS
// =============================================================================

// GetPlan returns the annotated timeline. ?today= overrides the clock.
// GET /api/profiles/{id}/plan
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	today, err := generic.ParseTimePoint(r.URL.Query().Get("today"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today", err)
		return
	}
	if today.IsZero() {
		today = h.Planner.Today()
	}

	plan, err := h.Planner.Plan(h.profileID(r), today)
	if err != nil {
		h.writeServiceError(w, "Failed to build plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan, today))
}

// GetCalendar exports the profile as an iCalendar file.
// GET /api/profiles/{id}/calendar.ics
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	p, err := h.Planner.Profile(h.profileID(r))
	if err != nil {
		h.writeServiceError(w, "Profile not found", err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", calendar.FileName(p)))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, calendar.Export(p, h.Planner.Today().Time))
}

// GetWaves lists the wave dates of a season. Without ?ref_year= the active
// profile's reference year is used.
// GET /api/waves
func (h *Handler) GetWaves(w http.ResponseWriter, r *http.Request) {
	refYear := h.Planner.Active().RefYear
	if v := r.URL.Query().Get("ref_year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !rotation.ValidRefYear(n) {
			writeError(w, http.StatusBadRequest, "Invalid ref_year", err)
			return
		}
		refYear = n
	}

	season := rotation.SeasonOf(refYear)
	writeJSON(w, http.StatusOK, WavesResponse{
		RefYear:     refYear,
		SeasonStart: season.Start.String(),
		SeasonEnd:   season.End.String(),
		Waves:       toWaveDTOs(rotation.GenerateWaves(refYear)),
	})
}

// GetAudit returns recorded changes, newest first.
// GET /api/audit?profile_id=&action=a,b&limit=
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter generic.AuditFilter
	if v := q.Get("profile_id"); v != "" {
		filter.ProfileID = &v
	}
	for _, a := range strings.Split(q.Get("action"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			filter.Actions = append(filter.Actions, generic.AuditAction(a))
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	entries, err := h.Planner.AuditTrail(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "Failed to read audit log", err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": dtos})
}

// =============================================================================
// BACKUP
// =============================================================================

// ExportBackup downloads the whole collection.
// GET /api/backup
func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.Planner.Export()
	if err != nil {
		h.writeServiceError(w, "Failed to export", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ImportBackup restores a backup document or merges a profile fragment.
// POST /api/backup
func (h *Handler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Backup too large", err)
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}

	result, err := h.Planner.Import(r.Context(), data)
	if err != nil {
		h.writeServiceError(w, "Import failed", err)
		return
	}
	h.logger.Info().
		Int("version", result.Version).
		Int("profiles", result.Profiles).
		Msg("backup imported")
	writeJSON(w, http.StatusOK, toImportResponse(result))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps planner errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.logger.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// decodeBody reads a JSON request body into dst. It writes the 400 response
// itself and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody where an empty body leaves dst untouched.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}
