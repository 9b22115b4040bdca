/*
handlers_test.go - HTTP tests for the planner API

Tests for:
- Profile CRUD and the "active" alias
- Block and holiday edits with their error status codes
- Plan, waves, calendar and audit views
- Backup export/import round trip
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/permiplan/api"
	"github.com/warp/permiplan/generic/store"
	"github.com/warp/permiplan/planner"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var fixedNow = time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)

// newRouter serves a fresh starter collection. With sequential ids the
// starter profile is id-1, its holidays id-2 and id-3, its blocks id-4..id-6.
func newRouter(t *testing.T) *chi.Mux {
	t.Helper()
	mem := store.NewMemory()
	n := 0
	svc, err := planner.New(context.Background(), mem,
		planner.WithAuditLog(mem),
		planner.WithClock(func() time.Time { return fixedNow }),
		planner.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	require.NoError(t, err)
	h := api.NewHandler(svc, zerolog.Nop())
	return api.NewRouter(h, api.Options{AllowedOrigins: []string{"http://localhost:5173"}, Logger: zerolog.Nop()})
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// =============================================================================
// PROFILES
// =============================================================================

func TestProfiles_ListAndGet(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodGet, "/api/profiles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		ActiveID string                  `json:"active_id"`
		Profiles []api.ProfileSummaryDTO `json:"profiles"`
	}](t, rec)
	require.Len(t, list.Profiles, 1)
	assert.Equal(t, "id-1", list.ActiveID)
	assert.Equal(t, planner.DefaultProfileName, list.Profiles[0].Name)
	assert.Equal(t, 3, list.Profiles[0].BlockCount)
	assert.True(t, list.Profiles[0].Active)

	rec = do(t, router, http.MethodGet, "/api/profiles/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[api.ProfileDTO](t, rec)
	assert.Equal(t, "id-1", p.ID)
	assert.Equal(t, "2026-01-01", p.StartDate)
	assert.Equal(t, 2027, p.RefYear)
	assert.Equal(t, "2027-06-01", p.TargetWaveDate)
	assert.Len(t, p.Holidays, 2)

	rec = do(t, router, http.MethodGet, "/api/profiles/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Profile not found", decode[api.ErrorResponse](t, rec).Error)
}

func TestProfiles_CreateWithoutBody(t *testing.T) {
	router := newRouter(t)

	// WHEN: Creating a profile with an empty body
	rec := do(t, router, http.MethodPost, "/api/profiles", nil)

	// THEN: The starter profile gets the default name
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, planner.NewProfileName, decode[api.ProfileDTO](t, rec).Name)

	rec = do(t, router, http.MethodPost, "/api/profiles", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfiles_CreateSwitchDelete(t *testing.T) {
	router := newRouter(t)

	// GIVEN: A second profile
	rec := do(t, router, http.MethodPost, "/api/profiles", api.CreateProfileRequest{Name: "Winter"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[api.ProfileDTO](t, rec)
	assert.Equal(t, "Winter", created.Name)
	assert.True(t, created.Active)

	// WHEN: Switching back to the first one
	rec = do(t, router, http.MethodPut, "/api/profiles/active", api.SetActiveRequest{ID: "id-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "id-1", decode[api.ProfileDTO](t, rec).ID)

	// THEN: Deleting the active profile activates the remaining one
	rec = do(t, router, http.MethodDelete, "/api/profiles/id-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, created.ID, decode[map[string]any](t, rec)["active_id"])

	// AND: The last profile cannot be deleted
	rec = do(t, router, http.MethodDelete, "/api/profiles/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProfiles_SetActiveValidation(t *testing.T) {
	router := newRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPut, "/api/profiles/active", api.SetActiveRequest{}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodPut, "/api/profiles/active", api.SetActiveRequest{ID: "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPut, "/api/profiles/active", "{").Code)
}

func TestProfiles_Update(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodPatch, "/api/profiles/id-1", map[string]any{
		"name":       "Summer",
		"start_date": "2026-02-01",
		"ref_year":   2026,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[api.ProfileDTO](t, rec)
	assert.Equal(t, "Summer", p.Name)
	assert.Equal(t, "2026-02-01", p.StartDate)
	assert.Equal(t, "2026-06-01", p.TargetWaveDate, "target follows the new season")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"bad start date", map[string]any{"start_date": "01/02/2026"}},
		{"empty start date", map[string]any{"start_date": ""}},
		{"bad target", map[string]any{"target_wave_date": "soon"}},
		{"blank name", map[string]any{"name": "  "}},
		{"ref year out of range", map[string]any{"ref_year": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPatch, "/api/profiles/id-1", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

// =============================================================================
// BLOCKS & HOLIDAYS
// =============================================================================

func TestBlocks_AddEditRemove(t *testing.T) {
	router := newRouter(t)

	// Legacy kind names are accepted
	rec := do(t, router, http.MethodPost, "/api/profiles/active/blocks", api.AddBlockRequest{Kind: "CONGE_ANNUEL", DurationDays: 30})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	leave := decode[api.BlockDTO](t, rec)
	assert.Equal(t, "leave", leave.Kind)

	rec = do(t, router, http.MethodPost, "/api/profiles/id-1/blocks", api.AddBlockRequest{Kind: "nap", DurationDays: 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/profiles/id-1/blocks/cycle", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	cycle := decode[struct {
		Blocks []api.BlockDTO `json:"blocks"`
	}](t, rec)
	require.Len(t, cycle.Blocks, 2)
	assert.Equal(t, "work", cycle.Blocks[0].Kind)
	assert.Equal(t, planner.CycleWorkDays, cycle.Blocks[0].DurationDays)

	rec = do(t, router, http.MethodGet, "/api/profiles/id-1", nil)
	p := decode[api.ProfileDTO](t, rec)
	require.Len(t, p.Blocks, 6)
	assert.Equal(t, leave.ID, p.Blocks[5].ID, "cycle goes before the closing leave")

	rec = do(t, router, http.MethodPatch, "/api/profiles/id-1/blocks/id-4", map[string]any{"label": "First hitch", "duration_days": 40})
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[api.BlockDTO](t, rec)
	assert.Equal(t, "First hitch", b.Label)
	assert.Equal(t, 40, b.DurationDays)

	rec = do(t, router, http.MethodDelete, "/api/profiles/id-1/blocks/"+leave.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodDelete, "/api/profiles/id-1/blocks/id-6", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodDelete, "/api/profiles/id-1/blocks/id-6", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBlocks_EditEnd(t *testing.T) {
	router := newRouter(t)

	// GIVEN: The starter rest block runs 2026-02-15 .. 2026-03-01
	// WHEN: Moving its end before its start
	rec := do(t, router, http.MethodPut, "/api/profiles/id-1/blocks/id-5/end", api.EditBlockEndRequest{EndDate: "2026-02-10"})

	// THEN: The edit is refused and the block keeps its duration
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	p := decode[api.ProfileDTO](t, do(t, router, http.MethodGet, "/api/profiles/id-1", nil))
	assert.Equal(t, 15, p.Blocks[1].DurationDays)

	rec = do(t, router, http.MethodPut, "/api/profiles/id-1/blocks/id-5/end", api.EditBlockEndRequest{EndDate: "2026-02-28"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 14, decode[api.BlockDTO](t, rec).DurationDays)

	rec = do(t, router, http.MethodPut, "/api/profiles/id-1/blocks/id-5/end", api.EditBlockEndRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHolidays_AddRemove(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodPost, "/api/profiles/id-1/holidays", api.AddHolidayRequest{Name: "Birthday", Date: "2026-02-20"})
	require.Equal(t, http.StatusCreated, rec.Code)
	hol := decode[api.HolidayDTO](t, rec)
	assert.Equal(t, "2026-02-20", hol.Date)

	assert.Equal(t, http.StatusBadRequest,
		do(t, router, http.MethodPost, "/api/profiles/id-1/holidays", api.AddHolidayRequest{Name: "Nameless"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, router, http.MethodPost, "/api/profiles/id-1/holidays", api.AddHolidayRequest{Name: "X", Date: "tomorrow"}).Code)

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodDelete, "/api/profiles/id-1/holidays/"+hol.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/api/profiles/id-1/holidays/"+hol.ID, nil).Code)
}

// =============================================================================
// VIEWS
// =============================================================================

func TestPlan(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodGet, "/api/profiles/active/plan?today=2026-01-10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plan := decode[api.PlanDTO](t, rec)

	assert.Equal(t, "id-1", plan.ProfileID)
	assert.Equal(t, "2026-01-10", plan.Today)
	assert.Equal(t, "2026-04-15", plan.EndDate)
	require.Len(t, plan.Entries, 3)

	first := plan.Entries[0]
	assert.Equal(t, "2026-01-01", first.Start)
	assert.Equal(t, "2026-02-14", first.End)

	// Eid al-Fitr lands in the second work block
	third := plan.Entries[2]
	assert.Equal(t, "alert", third.Notice)
	require.Len(t, third.Conflicts, 1)
	assert.Equal(t, "2026-03-20", third.Conflicts[0].Date)

	assert.Equal(t, "active", plan.Progress.State)
	require.NotNil(t, plan.Progress.Index)
	assert.Equal(t, 0, *plan.Progress.Index)
	assert.Equal(t, "work", plan.Progress.Kind)
	assert.Equal(t, 90, plan.Totals.WorkDays)
	assert.Equal(t, 15, plan.Totals.RestDays)
	assert.NotEmpty(t, plan.Waves)

	rec = do(t, router, http.MethodGet, "/api/profiles/id-1/plan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-01-01", decode[api.PlanDTO](t, rec).Today, "defaults to the service clock")

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/profiles/id-1/plan?today=never", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/profiles/nope/plan", nil).Code)
}

func TestPlan_ConflictRatioIsAString(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodGet, "/api/profiles/id-1/plan", nil)
	var raw struct {
		Entries []struct {
			Conflicts []map[string]any `json:"conflicts"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw.Entries[2].Conflicts, 1)
	assert.IsType(t, "", raw.Entries[2].Conflicts[0]["ratio"])
}

func TestWaves(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodGet, "/api/waves", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	waves := decode[api.WavesResponse](t, rec)
	assert.Equal(t, 2027, waves.RefYear, "defaults to the active profile")

	rec = do(t, router, http.MethodGet, "/api/waves?ref_year=2026", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	waves = decode[api.WavesResponse](t, rec)
	assert.Equal(t, "2026-06-01", waves.SeasonStart)
	assert.Equal(t, "2027-05-31", waves.SeasonEnd)
	require.GreaterOrEqual(t, len(waves.Waves), 2)
	assert.Equal(t, api.WaveDTO{Index: 1, Date: "2026-06-01"}, waves.Waves[0])
	assert.Equal(t, api.WaveDTO{Index: 2, Date: "2026-07-21"}, waves.Waves[1])

	for _, bad := range []string{"abc", "0", "10000"} {
		assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/waves?ref_year="+bad, nil).Code, bad)
	}
}

func TestCalendar(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodGet, "/api/profiles/active/calendar.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".ics")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "block-id-4@permiplan")
}

func TestAudit(t *testing.T) {
	router := newRouter(t)

	do(t, router, http.MethodPost, "/api/profiles", api.CreateProfileRequest{Name: "Second"})
	do(t, router, http.MethodPost, "/api/profiles/id-1/holidays", api.AddHolidayRequest{Name: "Birthday", Date: "2026-02-20"})

	rec := do(t, router, http.MethodGet, "/api/audit?action=profile_created", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Entries []api.AuditEntryDTO `json:"entries"`
	}](t, rec)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "Second", body.Entries[0].Payload["name"])

	rec = do(t, router, http.MethodGet, "/api/audit?profile_id=id-1&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[struct {
		Entries []api.AuditEntryDTO `json:"entries"`
	}](t, rec)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "holiday_added", body.Entries[0].Action)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/audit?limit=-1", nil).Code)
}

// =============================================================================
// BACKUP
// =============================================================================

func TestBackup_RoundTrip(t *testing.T) {
	router := newRouter(t)

	// GIVEN: An export of the starter collection
	rec := do(t, router, http.MethodGet, "/api/backup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "permiplan-backup-2026-01-01.json")
	backup := rec.Body.Bytes()

	// AND: A change made afterwards
	do(t, router, http.MethodPost, "/api/profiles", api.CreateProfileRequest{Name: "Scratch"})

	// WHEN: Importing the export
	rec = do(t, router, http.MethodPost, "/api/backup", backup)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[api.ImportResponse](t, rec)

	// THEN: The collection is back to the exported state
	assert.Equal(t, "collection", res.Kind)
	assert.Equal(t, 1, res.Profiles)
	assert.Equal(t, "id-1", res.ProfileID)
	assert.Len(t, decode[map[string]any](t, do(t, router, http.MethodGet, "/api/profiles", nil))["profiles"], 1)
}

func TestBackup_ImportFragmentAndGarbage(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodPost, "/api/backup", `{"startDate":"2026-03-01","refYear":2026}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "fragment", decode[api.ImportResponse](t, rec).Kind)

	p := decode[api.ProfileDTO](t, do(t, router, http.MethodGet, "/api/profiles/active", nil))
	assert.Equal(t, "2026-03-01", p.StartDate)
	assert.Equal(t, "2026-06-01", p.TargetWaveDate)

	rec = do(t, router, http.MethodPost, "/api/backup", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := bytes.Repeat([]byte(" "), api.MaxImportBytes+1)
	rec = do(t, router, http.MethodPost, "/api/backup", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

// =============================================================================
// PRESETS & HEALTH
// =============================================================================

func TestPresets(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	presets := decode[[]api.PresetDTO](t, rec)
	require.NotEmpty(t, presets)
	assert.Equal(t, planner.StarterPresetID, presets[0].ID)

	rec = do(t, router, http.MethodPost, "/api/presets/load", api.LoadPresetRequest{PresetID: "extended"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[api.ProfileDTO](t, rec)
	assert.Equal(t, "Extended Rotations", p.Name)
	assert.True(t, p.Active)
	assert.Equal(t, "leave", p.Blocks[len(p.Blocks)-1].Kind)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodPost, "/api/presets/load", api.LoadPresetRequest{PresetID: "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/presets/load", api.LoadPresetRequest{}).Code)
}

func TestHealthAndCORS(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])

	req := httptest.NewRequest(http.MethodOptions, "/api/profiles", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
