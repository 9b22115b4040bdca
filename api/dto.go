/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the rotation model from the external API contract, so fields can be
  renamed internally without breaking clients.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Profiles:  ProfileDTO, ProfileSummaryDTO, CreateProfileRequest,
             UpdateProfileRequest, SetActiveRequest
  Blocks:    BlockDTO, AddBlockRequest, UpdateBlockRequest, EditBlockEndRequest
  Holidays:  HolidayDTO, AddHolidayRequest
  Plan:      PlanDTO, PlanEntryDTO, ConflictDTO, ProgressDTO, TotalsDTO
  Waves:     WaveDTO, WavesResponse
  Backup:    ImportResponse
  Presets:   PresetDTO, LoadPresetRequest
  Audit:     AuditEntryDTO

DATES:
  Every date is a "YYYY-MM-DD" string. Unset dates are empty strings.

VALIDATION:
  Validation is done in handlers and the planner service, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/backup.go: Backup document schema
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/permiplan/factory"
	"github.com/warp/permiplan/generic"
	"github.com/warp/permiplan/planner"
	"github.com/warp/permiplan/rotation"
)

// =============================================================================
// PROFILES
// =============================================================================

// ProfileSummaryDTO is a profile in list responses.
type ProfileSummaryDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	StartDate      string `json:"start_date"`
	RefYear        int    `json:"ref_year"`
	TargetWaveDate string `json:"target_wave_date"`
	Active         bool   `json:"active"`
	BlockCount     int    `json:"block_count"`
	HolidayCount   int    `json:"holiday_count"`
}

// ProfileDTO is a full profile with its blocks and holidays.
type ProfileDTO struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	StartDate      string       `json:"start_date"`
	RefYear        int          `json:"ref_year"`
	TargetWaveDate string       `json:"target_wave_date"`
	Active         bool         `json:"active"`
	Holidays       []HolidayDTO `json:"holidays"`
	Blocks         []BlockDTO   `json:"blocks"`
}

type CreateProfileRequest struct {
	Name string `json:"name"`
}

// UpdateProfileRequest changes the fields that are present.
type UpdateProfileRequest struct {
	Name           *string `json:"name,omitempty"`
	StartDate      *string `json:"start_date,omitempty"`
	RefYear        *int    `json:"ref_year,omitempty"`
	TargetWaveDate *string `json:"target_wave_date,omitempty"` // "" resets to the first wave
}

type SetActiveRequest struct {
	ID string `json:"id"`
}

// =============================================================================
// BLOCKS & HOLIDAYS
// =============================================================================

type BlockDTO struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	DurationDays int    `json:"duration_days"`
	Label        string `json:"label,omitempty"`
}

type AddBlockRequest struct {
	Kind         string `json:"kind"`
	DurationDays int    `json:"duration_days"`
	Label        string `json:"label"`
}

type UpdateBlockRequest struct {
	Kind         *string `json:"kind,omitempty"`
	DurationDays *int    `json:"duration_days,omitempty"`
	Label        *string `json:"label,omitempty"`
}

// EditBlockEndRequest sets a block's duration from its last day.
type EditBlockEndRequest struct {
	EndDate string `json:"end_date"`
}

type HolidayDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Date string `json:"date"`
}

type AddHolidayRequest struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

// =============================================================================
// PLAN
// =============================================================================

// PlanDTO is the annotated timeline of a profile as seen on Today.
type PlanDTO struct {
	ProfileID      string         `json:"profile_id"`
	Today          string         `json:"today"`
	StartDate      string         `json:"start_date"`
	EndDate        string         `json:"end_date"`
	TargetWaveDate string         `json:"target_wave_date"`
	Entries        []PlanEntryDTO `json:"entries"`
	Waves          []WaveDTO      `json:"waves"`
	Progress       ProgressDTO    `json:"progress"`
	Totals         TotalsDTO      `json:"totals"`
}

// PlanEntryDTO is one block placed on the calendar with its annotations.
type PlanEntryDTO struct {
	Index           int           `json:"index"`
	ID              string        `json:"id"`
	Kind            string        `json:"kind"`
	DurationDays    int           `json:"duration_days"`
	Label           string        `json:"label,omitempty"`
	Start           string        `json:"start"`
	End             string        `json:"end"`
	Notice          string        `json:"notice,omitempty"` // "alert" | "celebrate"
	Conflicts       []ConflictDTO `json:"conflicts"`
	SequenceWarning string        `json:"sequence_warning,omitempty"`
	Gap             *GapDTO       `json:"gap,omitempty"`
	RestZone        *RestZoneDTO  `json:"rest_zone,omitempty"`
}

type ConflictDTO struct {
	HolidayID string          `json:"holiday_id"`
	Name      string          `json:"name"`
	Date      string          `json:"date"`
	Position  string          `json:"position"`
	Ratio     decimal.Decimal `json:"ratio"`
}

type GapDTO struct {
	State string `json:"state"`
	Days  int    `json:"days"`
}

type RestZoneDTO struct {
	DaysToWave int `json:"days_to_wave"`
}

type ProgressDTO struct {
	State        string `json:"state"`
	Percent      int    `json:"percent"`
	Index        *int   `json:"index,omitempty"`
	Kind         string `json:"kind,omitempty"`
	DaysLeft     *int   `json:"days_left,omitempty"`
	FinalStretch bool   `json:"final_stretch"`
}

type TotalsDTO struct {
	WorkDays  int `json:"work_days"`
	RestDays  int `json:"rest_days"`
	LeaveDays int `json:"leave_days"`
}

// =============================================================================
// WAVES
// =============================================================================

type WaveDTO struct {
	Index int    `json:"index"`
	Date  string `json:"date"`
}

type WavesResponse struct {
	RefYear     int       `json:"ref_year"`
	SeasonStart string    `json:"season_start"`
	SeasonEnd   string    `json:"season_end"`
	Waves       []WaveDTO `json:"waves"`
}

// =============================================================================
// BACKUP, PRESETS, AUDIT
// =============================================================================

type ImportResponse struct {
	Kind      string `json:"kind"` // "collection" | "fragment"
	Version   int    `json:"version"`
	Profiles  int    `json:"profiles"`
	ProfileID string `json:"profile_id"`
}

type PresetDTO struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Blocks      []BlockDTO `json:"blocks"`
}

type LoadPresetRequest struct {
	PresetID string `json:"preset_id"`
	Name     string `json:"name"`
}

type AuditEntryDTO struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Action    string         `json:"action"`
	ProfileID string         `json:"profile_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toProfileSummaryDTO(p rotation.Profile, activeID string) ProfileSummaryDTO {
	return ProfileSummaryDTO{
		ID:             p.ID,
		Name:           p.Name,
		StartDate:      p.StartDate.String(),
		RefYear:        p.RefYear,
		TargetWaveDate: p.TargetWaveDate.String(),
		Active:         p.ID == activeID,
		BlockCount:     len(p.Blocks),
		HolidayCount:   len(p.Holidays),
	}
}

func toProfileDTO(p rotation.Profile, activeID string) ProfileDTO {
	dto := ProfileDTO{
		ID:             p.ID,
		Name:           p.Name,
		StartDate:      p.StartDate.String(),
		RefYear:        p.RefYear,
		TargetWaveDate: p.TargetWaveDate.String(),
		Active:         p.ID == activeID,
		Holidays:       make([]HolidayDTO, len(p.Holidays)),
		Blocks:         toBlockDTOs(p.Blocks),
	}
	for i, h := range p.Holidays {
		dto.Holidays[i] = toHolidayDTO(h)
	}
	return dto
}

func toBlockDTO(b rotation.Block) BlockDTO {
	return BlockDTO{ID: b.ID, Kind: string(b.Kind), DurationDays: b.DurationDays, Label: b.Label}
}

func toBlockDTOs(blocks []rotation.Block) []BlockDTO {
	out := make([]BlockDTO, len(blocks))
	for i, b := range blocks {
		out[i] = toBlockDTO(b)
	}
	return out
}

func toHolidayDTO(h rotation.Holiday) HolidayDTO {
	return HolidayDTO{ID: h.ID, Name: h.Name, Date: h.Date.String()}
}

func toWaveDTOs(waves []rotation.WaveDate) []WaveDTO {
	out := make([]WaveDTO, len(waves))
	for i, w := range waves {
		out[i] = WaveDTO{Index: w.Index, Date: w.Date.String()}
	}
	return out
}

func toPlanDTO(plan rotation.Plan, today generic.TimePoint) PlanDTO {
	dto := PlanDTO{
		ProfileID:      plan.ProfileID,
		Today:          today.String(),
		StartDate:      plan.Start.String(),
		EndDate:        plan.Totals.End.String(),
		TargetWaveDate: plan.Target.String(),
		Entries:        make([]PlanEntryDTO, len(plan.Entries)),
		Waves:          toWaveDTOs(plan.Waves),
		Progress: ProgressDTO{
			State:        string(plan.Progress.State),
			Percent:      plan.Progress.Percent,
			FinalStretch: plan.Progress.FinalStretch,
		},
		Totals: TotalsDTO{
			WorkDays:  plan.Totals.WorkDays,
			RestDays:  plan.Totals.RestDays,
			LeaveDays: plan.Totals.LeaveDays,
		},
	}
	if plan.Progress.State == rotation.ProgressActive {
		index, daysLeft := plan.Progress.Index, plan.Progress.DaysLeft
		dto.Progress.Index = &index
		dto.Progress.DaysLeft = &daysLeft
		dto.Progress.Kind = string(plan.Progress.Kind)
	}

	for i, e := range plan.Entries {
		entry := PlanEntryDTO{
			Index:        e.Index,
			ID:           e.ID,
			Kind:         string(e.Kind),
			DurationDays: e.DurationDays,
			Label:        e.Label,
			Start:        e.Start.String(),
			End:          e.End.String(),
			Notice:       string(e.Notice()),
			Conflicts:    make([]ConflictDTO, len(e.Conflicts)),
		}
		for j, c := range e.Conflicts {
			entry.Conflicts[j] = ConflictDTO{
				HolidayID: c.Holiday.ID,
				Name:      c.Holiday.Name,
				Date:      c.Holiday.Date.String(),
				Position:  string(c.Position),
				Ratio:     c.Ratio,
			}
		}
		if e.Sequence != nil {
			entry.SequenceWarning = e.Sequence.String()
		}
		if e.Gap != nil {
			entry.Gap = &GapDTO{State: string(e.Gap.State), Days: e.Gap.Days}
		}
		if e.RestZone != nil {
			entry.RestZone = &RestZoneDTO{DaysToWave: e.RestZone.DaysToWave}
		}
		dto.Entries[i] = entry
	}
	return dto
}

func toPresetDTO(p planner.Preset) PresetDTO {
	return PresetDTO{ID: p.ID, Name: p.Name, Description: p.Description, Blocks: toBlockDTOs(p.Blocks)}
}

func toImportResponse(r planner.ImportResult) ImportResponse {
	kind := "collection"
	if r.Kind == factory.PayloadFragment {
		kind = "fragment"
	}
	return ImportResponse{Kind: kind, Version: r.Version, Profiles: r.Profiles, ProfileID: r.ProfileID}
}

func toAuditEntryDTO(e generic.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:        e.ID,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Action:    string(e.Action),
		ProfileID: e.ProfileID,
		Payload:   e.Payload,
	}
}
