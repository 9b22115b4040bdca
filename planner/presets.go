package planner

import (
	"github.com/warp/permiplan/generic"
	"github.com/warp/permiplan/rotation"
)

// =============================================================================
// PRESET DEFINITIONS
// =============================================================================

// Preset is a ready-made block skeleton a new profile can start from.
type Preset struct {
	ID          string
	Name        string
	Description string
	Blocks      []rotation.Block // ids are assigned when the preset is loaded
}

// StarterPresetID is the skeleton every fresh profile gets.
const StarterPresetID = "starter"

var presets = []Preset{
	{
		ID:          StarterPresetID,
		Name:        "Starter",
		Description: "Two work rotations around one rest period",
		Blocks: []rotation.Block{
			{Kind: rotation.KindWork, DurationDays: 45},
			{Kind: rotation.KindRest, DurationDays: 15},
			{Kind: rotation.KindWork, DurationDays: 45},
		},
	},
	{
		ID:          "full-season",
		Name:        "Full Season",
		Description: "Three work rotations closed by the annual leave",
		Blocks: []rotation.Block{
			{Kind: rotation.KindWork, DurationDays: 45, Label: "Rotation 1"},
			{Kind: rotation.KindRest, DurationDays: 15, Label: "Rest 1"},
			{Kind: rotation.KindWork, DurationDays: 50, Label: "Rotation 2"},
			{Kind: rotation.KindRest, DurationDays: 15, Label: "Rest 2"},
			{Kind: rotation.KindWork, DurationDays: 45, Label: "Rotation 3"},
			{Kind: rotation.KindLeave, DurationDays: 50, Label: "Annual leave"},
		},
	},
	{
		ID:          "extended",
		Name:        "Extended Rotations",
		Description: "Two long work rotations and a shorter annual leave",
		Blocks: []rotation.Block{
			{Kind: rotation.KindWork, DurationDays: 60, Label: "Rotation 1"},
			{Kind: rotation.KindRest, DurationDays: 20, Label: "Rest 1"},
			{Kind: rotation.KindWork, DurationDays: 60, Label: "Rotation 2"},
			{Kind: rotation.KindRest, DurationDays: 20, Label: "Rest 2"},
			{Kind: rotation.KindLeave, DurationDays: 45, Label: "Annual leave"},
		},
	},
}

// Presets returns every preset in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	for i, p := range presets {
		out[i] = p
		out[i].Blocks = append([]rotation.Block(nil), p.Blocks...)
	}
	return out
}

// LookupPreset finds a preset by id.
func LookupPreset(id string) (Preset, bool) {
	for _, p := range Presets() {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// =============================================================================
// NEW PROFILES
// =============================================================================

// starterHolidays are pre-filled on every new profile. Users edit them freely.
func starterHolidays() []rotation.Holiday {
	return []rotation.Holiday{
		{Name: "Eid al-Fitr", Date: generic.MustParseTimePoint("2026-03-20")},
		{Name: "Eid al-Adha", Date: generic.MustParseTimePoint("2026-05-27")},
	}
}

// newProfile builds a profile starting today, planned against next year's
// wave season, with the preset's blocks and the starter holidays.
func newProfile(name string, today generic.TimePoint, preset Preset, newID func() string) rotation.Profile {
	p := rotation.Profile{
		ID:        newID(),
		Name:      name,
		StartDate: today,
		RefYear:   today.Year() + 1,
		Holidays:  starterHolidays(),
		Blocks:    append([]rotation.Block(nil), preset.Blocks...),
	}
	for i := range p.Holidays {
		p.Holidays[i].ID = newID()
	}
	for i := range p.Blocks {
		p.Blocks[i].ID = newID()
	}
	p.EnsureTargetWave()
	return p
}
