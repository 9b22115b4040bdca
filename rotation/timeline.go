package rotation

import (
	"github.com/warp/permiplan/generic"
)

// =============================================================================
// TIMELINE
// =============================================================================

// Item is a block placed on the calendar.
type Item struct {
	Block
	Index     int
	Start     generic.TimePoint
	End       generic.TimePoint // inclusive
	Conflicts []Holiday
}

// Period returns [Start, End].
func (it Item) Period() generic.Period {
	return generic.Period{Start: it.Start, End: it.End}
}

// Notice is the headline shown for a block that contains holidays.
type Notice string

const (
	NoticeNone      Notice = ""
	NoticeAlert     Notice = "alert"     // working through a holiday
	NoticeCelebrate Notice = "celebrate" // off for a holiday
)

func (it Item) Notice() Notice {
	if len(it.Conflicts) == 0 {
		return NoticeNone
	}
	if it.Kind == KindWork {
		return NoticeAlert
	}
	return NoticeCelebrate
}

// ComputeTimeline chains blocks from initialStart. Each block starts the day
// after the previous one ends and covers DurationDays calendar days.
//
// A zero-duration block ends the day before it starts, matches no holiday and
// leaves the cursor where it was. The result always has len(blocks) items.
func ComputeTimeline(initialStart generic.TimePoint, blocks []Block, holidays []Holiday) []Item {
	items := make([]Item, 0, len(blocks))
	// An empty period ending the day before initialStart.
	period := generic.PeriodOf(initialStart, 0)
	for i, b := range blocks {
		period = period.Next(b.DurationDays)
		items = append(items, Item{
			Block:     b,
			Index:     i,
			Start:     period.Start,
			End:       period.End,
			Conflicts: FindConflicts(period.Start, period.End, holidays),
		})
	}
	return items
}

// DurationForEnd converts an edited end date back into a duration.
func DurationForEnd(start, newEnd generic.TimePoint) (int, error) {
	if newEnd.Before(start) {
		return 0, &InvalidEndDateError{Start: start, End: newEnd}
	}
	return generic.InclusiveDayCount(start, newEnd), nil
}

// EndDate returns the last day of the timeline, or the day before start for
// an empty one.
func EndDate(start generic.TimePoint, items []Item) generic.TimePoint {
	if len(items) == 0 {
		return start.AddDays(-1)
	}
	return items[len(items)-1].End
}
