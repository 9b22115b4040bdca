package rotation

import (
	"time"

	"github.com/warp/permiplan/generic"
)

// =============================================================================
// WAVE SCHEDULE
// =============================================================================

const (
	// WaveIntervalDays is the spacing between two departure waves.
	WaveIntervalDays = 50

	// RestZoneDays is the minimum distance between a rest block and the
	// target wave.
	RestZoneDays = 30

	// A season must end within four-digit years.
	MinRefYear = 1
	MaxRefYear = 9998
)

// ValidRefYear reports whether refYear has a representable season.
func ValidRefYear(refYear int) bool {
	return refYear >= MinRefYear && refYear <= MaxRefYear
}

// WaveDate is one candidate departure date of a season.
type WaveDate struct {
	Index int // 1-based
	Date  generic.TimePoint
}

// SeasonOf returns the season of refYear: June 1 to May 31 of the next year.
func SeasonOf(refYear int) generic.Period {
	return generic.Period{
		Start: generic.NewTimePoint(refYear, time.June, 1),
		End:   generic.NewTimePoint(refYear+1, time.May, 31),
	}
}

// GenerateWaves lists the waves of the refYear season, every
// WaveIntervalDays from June 1 up to and including May 31.
func GenerateWaves(refYear int) []WaveDate {
	season := SeasonOf(refYear)
	var waves []WaveDate
	for d := season.Start; d.BeforeOrEqual(season.End); d = d.AddDays(WaveIntervalDays) {
		waves = append(waves, WaveDate{Index: len(waves) + 1, Date: d})
	}
	return waves
}

// =============================================================================
// GAP CLASSIFICATION
// =============================================================================

type GapState string

const (
	GapSynchronized GapState = "synchronized"
	GapDelayed      GapState = "delayed"
	GapEarly        GapState = "early"
)

// Gap compares a leave start with the target wave.
type Gap struct {
	State GapState
	Days  int // always >= 0
}

// ClassifyGap returns nil when no target wave is chosen.
func ClassifyGap(leaveStart, target generic.TimePoint) *Gap {
	if target.IsZero() {
		return nil
	}
	diff := generic.DaysBetween(target, leaveStart)
	switch {
	case diff == 0:
		return &Gap{State: GapSynchronized}
	case diff > 0:
		return &Gap{State: GapDelayed, Days: diff}
	default:
		return &Gap{State: GapEarly, Days: -diff}
	}
}

// RestZoneWarning flags a rest block starting within RestZoneDays of the wave.
type RestZoneWarning struct {
	DaysToWave int // signed: positive when the wave is after the rest start
}

// CheckRestZone returns nil when no target is chosen or the rest block is far
// enough from it.
func CheckRestZone(restStart, target generic.TimePoint) *RestZoneWarning {
	if target.IsZero() {
		return nil
	}
	diff := generic.DaysBetween(restStart, target)
	if diff > -RestZoneDays && diff < RestZoneDays {
		return &RestZoneWarning{DaysToWave: diff}
	}
	return nil
}
