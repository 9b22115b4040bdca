package rotation

import (
	"github.com/shopspring/decimal"

	"github.com/warp/permiplan/generic"
)

// =============================================================================
// CONFLICT DETECTION
// =============================================================================

// Position tells in which third of a block a holiday falls.
type Position string

const (
	PositionStart  Position = "start"
	PositionMiddle Position = "middle"
	PositionEnd    Position = "end"
)

// Conflict is a holiday inside a block together with where it lands.
type Conflict struct {
	Holiday  Holiday
	Position Position
	Ratio    decimal.Decimal // offset from block start / block span, 3 places
}

// FindConflicts returns the holidays dated within [start, end], in input order.
// An inverted range matches nothing.
func FindConflicts(start, end generic.TimePoint, holidays []Holiday) []Holiday {
	period := generic.Period{Start: start, End: end}
	var out []Holiday
	for _, h := range holidays {
		if period.Contains(h.Date) {
			out = append(out, h)
		}
	}
	return out
}

// ClassifyPosition places date in the first, middle or last third of
// [start, end]. The ratio is (date - start) / span with span counted
// inclusively. A non-positive span classifies as start.
func ClassifyPosition(date, start, end generic.TimePoint) Position {
	span := generic.InclusiveDayCount(start, end)
	if span <= 0 {
		return PositionStart
	}
	offset := generic.DaysBetween(start, date)
	switch {
	case 3*offset < span:
		return PositionStart
	case 3*offset > 2*span:
		return PositionEnd
	default:
		return PositionMiddle
	}
}

// positionRatio is the display value of the ratio used by ClassifyPosition.
func positionRatio(date, start, end generic.TimePoint) decimal.Decimal {
	span := generic.InclusiveDayCount(start, end)
	if span <= 0 {
		return decimal.Zero
	}
	offset := decimal.NewFromInt(int64(generic.DaysBetween(start, date)))
	return offset.Div(decimal.NewFromInt(int64(span))).Round(3)
}

// ConflictPositions pairs each conflict of the item with its position.
func (it Item) ConflictPositions() []Conflict {
	out := make([]Conflict, 0, len(it.Conflicts))
	for _, h := range it.Conflicts {
		out = append(out, Conflict{
			Holiday:  h,
			Position: ClassifyPosition(h.Date, it.Start, it.End),
			Ratio:    positionRatio(h.Date, it.Start, it.End),
		})
	}
	return out
}
