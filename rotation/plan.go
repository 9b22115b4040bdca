package rotation

import (
	"github.com/warp/permiplan/generic"
)

// =============================================================================
// PLAN - Everything the presentation layer shows for one profile
// =============================================================================

// Entry is one timeline item with all of its annotations.
type Entry struct {
	Item
	Sequence  *SequenceWarning
	Conflicts []Conflict
	Gap       *Gap             // leave blocks only
	RestZone  *RestZoneWarning // rest blocks only
}

// Totals sums the planned days per kind.
type Totals struct {
	WorkDays  int
	RestDays  int
	LeaveDays int
	End       generic.TimePoint
}

// Plan is the fully derived view of a profile on a given day. It is rebuilt
// from scratch on every read and never stored.
type Plan struct {
	ProfileID string
	Start     generic.TimePoint
	Target    generic.TimePoint
	Entries   []Entry
	Waves     []WaveDate
	Progress  Progress
	Totals    Totals
}

// BuildPlan derives the plan of profile as seen on today.
func BuildPlan(profile Profile, today generic.TimePoint) Plan {
	timeline := ComputeTimeline(profile.StartDate, profile.Blocks, profile.Holidays)

	plan := Plan{
		ProfileID: profile.ID,
		Start:     profile.StartDate,
		Target:    profile.TargetWaveDate,
		Entries:   make([]Entry, len(timeline)),
		Waves:     GenerateWaves(profile.RefYear),
		Progress:  CurrentProgress(today, timeline, profile.StartDate),
	}

	for i, it := range timeline {
		e := Entry{
			Item:      it,
			Sequence:  CheckSequence(i, profile.Blocks),
			Conflicts: it.ConflictPositions(),
		}
		switch it.Kind {
		case KindLeave:
			e.Gap = ClassifyGap(it.Start, profile.TargetWaveDate)
			plan.Totals.LeaveDays += it.DurationDays
		case KindRest:
			e.RestZone = CheckRestZone(it.Start, profile.TargetWaveDate)
			plan.Totals.RestDays += it.DurationDays
		case KindWork:
			plan.Totals.WorkDays += it.DurationDays
		}
		plan.Entries[i] = e
	}
	plan.Totals.End = EndDate(profile.StartDate, timeline)
	return plan
}
