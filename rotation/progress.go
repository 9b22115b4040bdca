package rotation

import (
	"github.com/shopspring/decimal"

	"github.com/warp/permiplan/generic"
)

// =============================================================================
// PROGRESS
// =============================================================================

type ProgressState string

const (
	ProgressPending  ProgressState = "pending"
	ProgressActive   ProgressState = "active"
	ProgressComplete ProgressState = "complete"
)

// Progress is where "today" sits in a timeline.
type Progress struct {
	State   ProgressState
	Percent int

	// Set only when State is ProgressActive.
	Index        int
	Kind         Kind
	DaysLeft     int  // days remaining in the active block, today excluded
	FinalStretch bool // active work block followed by a leave block
}

var hundred = decimal.NewFromInt(100)

// CurrentProgress finds the first item whose range contains today.
//
// With no such item the rotation is pending when today is before firstStart
// and complete otherwise.
func CurrentProgress(today generic.TimePoint, timeline []Item, firstStart generic.TimePoint) Progress {
	for i, it := range timeline {
		if !it.Period().Contains(today) {
			continue
		}
		elapsed := decimal.NewFromInt(int64(generic.DaysBetween(it.Start, today)))
		span := decimal.NewFromInt(int64(it.Period().Span()))
		percent := elapsed.Mul(hundred).Div(span).Round(0).IntPart()

		p := Progress{
			State:    ProgressActive,
			Percent:  clampPercent(percent),
			Index:    i,
			Kind:     it.Kind,
			DaysLeft: generic.DaysBetween(today, it.End),
		}
		if it.Kind == KindWork && i+1 < len(timeline) && timeline[i+1].Kind == KindLeave {
			p.FinalStretch = true
		}
		return p
	}

	if today.Before(firstStart) {
		return Progress{State: ProgressPending, Percent: 0}
	}
	return Progress{State: ProgressComplete, Percent: 100}
}

func clampPercent(p int64) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return int(p)
	}
}
