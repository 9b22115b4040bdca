/*
Package generic holds the domain-agnostic building blocks of the planner.

PURPOSE:
  Calendar dates, inclusive periods, sentinel errors and the persistence
  interfaces. Nothing here knows about work, rest or leave.

KEY CONCEPTS IN THIS FILE (time.go):
  - TimePoint: A calendar date, always UTC midnight
  - DaysBetween / InclusiveDayCount: Whole-day arithmetic

DESIGN PRINCIPLES:
  1. Day granularity: there is no time of day and no time zone anywhere
  2. Inclusive ends: a period [S, E] covers both S and E

SEE ALSO:
  - period.go: Period
  - errors.go: Sentinel errors
  - store.go: KVStore and AuditLog
*/
package generic

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Calendar date at day granularity (UTC midnight)
// =============================================================================

// DateLayout is the wire and storage format for every date in the system.
const DateLayout = "2006-01-02"

// TimePoint is a calendar date. The zero value means "unset".
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime drops the time-of-day and location of t, keeping its calendar date.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseTimePoint parses a YYYY-MM-DD date. The empty string yields the zero TimePoint.
func ParseTimePoint(s string) (TimePoint, error) {
	if s == "" {
		return TimePoint{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return TimePoint{Time: t}, nil
}

// MustParseTimePoint is ParseTimePoint for literals in tests and presets.
func MustParseTimePoint(s string) TimePoint {
	tp, err := ParseTimePoint(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(DateLayout)
}

// MarshalJSON writes the date as "YYYY-MM-DD", or "" when unset.
func (tp TimePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(tp.String())
}

func (tp *TimePoint) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseTimePoint(s)
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween returns the signed number of whole days from `from` to `to`.
// Both sides are normalized to UTC midnight, so the difference is always a
// multiple of secondsPerDay. Unix seconds are used because time.Duration
// cannot span more than about 292 years.
func DaysBetween(from, to TimePoint) int {
	return int((to.normalize().Unix() - from.normalize().Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// InclusiveDayCount returns how many calendar days [start, end] covers.
// It is DaysBetween + 1 and goes to zero or below when end precedes start.
func InclusiveDayCount(start, end TimePoint) int {
	return DaysBetween(start, end) + 1
}

