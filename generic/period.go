package generic

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is the closed range [Start, End]. Both ends belong to the period, so
// a one-day period has Start == End.
//
// A period whose End precedes Start is "inverted": it contains no date and has
// a Span of zero or less. Zero-duration rotation blocks produce such periods.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// PeriodOf returns the period that starts at start and lasts days calendar days.
func PeriodOf(start TimePoint, days int) Period {
	return Period{Start: start, End: start.AddDays(days - 1)}
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Span is the number of calendar days in the period.
func (p Period) Span() int {
	return InclusiveDayCount(p.Start, p.End)
}

func (p Period) IsInverted() bool {
	return p.End.Before(p.Start)
}

// Next returns the period of the given length that starts the day after p ends.
func (p Period) Next(days int) Period {
	return PeriodOf(p.End.AddDays(1), days)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
