/*
Package rotation implements the rotation timeline engine.

PURPOSE:
  A shift worker's year is an ordered list of blocks (work, rest, annual
  leave) chained from a start date. This package turns that list into
  concrete date ranges, flags user holidays that fall inside each block,
  checks the work/rest alternation rule, derives the periodic "wave" leave
  schedule, and reports progress for a given day.

KEY CONCEPTS IN THIS FILE (types.go):
  - Kind: work, rest or leave
  - Block: one segment of the rotation with a duration in days
  - Holiday: a user-supplied named date
  - Profile / Collection: an independently configured scenario, and the set
    of them with one marked active

DESIGN PRINCIPLES:
  1. Pure functions: every operation takes a full snapshot and returns a
     fresh result. Nothing here holds state between calls.
  2. Inclusive ends: a block of N days starting on S ends on S+N-1 and the
     next block starts on S+N.
  3. Total: any input is accepted, including empty lists and zero-length
     blocks. Problems are reported as values, never panics.

SEE ALSO:
  - timeline.go: ComputeTimeline
  - plan.go: BuildPlan, the single fold used by the API and CLI
  - planner/: the stateful service owning the profile collection
*/
package rotation

import (
	"fmt"
	"strings"

	"github.com/warp/permiplan/generic"
)

// =============================================================================
// KIND
// =============================================================================

// Kind is the category of a rotation block.
type Kind string

const (
	KindWork  Kind = "work"
	KindRest  Kind = "rest"
	KindLeave Kind = "leave"
)

func (k Kind) Valid() bool {
	return k == KindWork || k == KindRest || k == KindLeave
}

// legacyKinds maps the names used by older exports.
var legacyKinds = map[string]Kind{
	"TRAVAIL":      KindWork,
	"PERMISSION":   KindRest,
	"CONGE_ANNUEL": KindLeave,
}

// ParseKind accepts the canonical names in any case, plus legacy names.
func ParseKind(s string) (Kind, error) {
	name := strings.TrimSpace(s)
	if k, ok := legacyKinds[strings.ToUpper(name)]; ok {
		return k, nil
	}
	k := Kind(strings.ToLower(name))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown block kind %q", generic.ErrInvalidInput, s)
	}
	return k, nil
}

// =============================================================================
// BLOCK & HOLIDAY
// =============================================================================

// Block is one segment of the rotation. Position in the list determines
// chaining and sequence-rule adjacency.
type Block struct {
	ID           string
	Kind         Kind
	DurationDays int
	Label        string
}

// Holiday is a user-supplied date. Several holidays may share a date.
type Holiday struct {
	ID   string
	Name string
	Date generic.TimePoint
}

// =============================================================================
// PROFILE
// =============================================================================

// Profile is one rotation scenario. It owns its blocks and holidays.
type Profile struct {
	ID             string
	Name           string
	StartDate      generic.TimePoint
	RefYear        int
	TargetWaveDate generic.TimePoint // zero = not chosen yet
	Holidays       []Holiday
	Blocks         []Block
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	out := p
	out.Holidays = append([]Holiday(nil), p.Holidays...)
	out.Blocks = append([]Block(nil), p.Blocks...)
	return out
}

// BlockIndex returns the position of the block with the given id, or -1.
func (p Profile) BlockIndex(id string) int {
	for i, b := range p.Blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// HolidayIndex returns the position of the holiday with the given id, or -1.
func (p Profile) HolidayIndex(id string) int {
	for i, h := range p.Holidays {
		if h.ID == id {
			return i
		}
	}
	return -1
}

// EnsureTargetWave sets TargetWaveDate to the first wave of RefYear when it is
// unset. Returns true if the profile changed.
func (p *Profile) EnsureTargetWave() bool {
	if !p.TargetWaveDate.IsZero() {
		return false
	}
	waves := GenerateWaves(p.RefYear)
	if len(waves) == 0 {
		return false
	}
	p.TargetWaveDate = waves[0].Date
	return true
}

// Collection is every profile plus the id of the active one.
type Collection struct {
	Profiles []Profile
	ActiveID string
}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	out := Collection{ActiveID: c.ActiveID, Profiles: make([]Profile, len(c.Profiles))}
	for i, p := range c.Profiles {
		out.Profiles[i] = p.Clone()
	}
	return out
}

// Index returns the position of the profile with the given id, or -1.
func (c Collection) Index(id string) int {
	for i, p := range c.Profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Active returns the active profile. ok is false if ActiveID matches nothing.
func (c Collection) Active() (Profile, bool) {
	i := c.Index(c.ActiveID)
	if i < 0 {
		return Profile{}, false
	}
	return c.Profiles[i], true
}
