/*
Package factory converts between JSON documents and rotation profiles.

PURPOSE:
  Every persisted or exported document goes through this package: the blob
  saved after each mutation, the backup file a user downloads, and whatever
  they upload later. Decoding is a tagged-variant step: the document says
  which schema version it follows, and each older untagged shape has one
  documented migration function.

JSON SCHEMA (version 3, current):
  {
    "version": 3,
    "exported_at": "2026-10-19T08:00:00Z",
    "active_id": "4b0c...",
    "profiles": [
      {
        "id": "4b0c...",
        "name": "Main",
        "start_date": "2026-01-01",
        "ref_year": 2026,
        "target_wave_date": "2026-06-01",
        "holidays": [{"id": "h1", "name": "Eid al-Fitr", "date": "2026-03-20"}],
        "blocks": [{"id": "b1", "kind": "work", "duration_days": 45}]
      }
    ]
  }

KNOWN LEGACY SHAPES (no "version" field):
  v2: {"profiles": [...], "activeId": ...}  camelCase, French kind names,
      numeric ids. Migrated by migrateV2Collection.
  v1: a single profile's fields at the top level (startDate, refYear,
      targetWaveDate, holidays, blocks), any subset. Migrated by
      migrateV1Fragment and merged into an existing profile by the caller.

USAGE:
  payload, err := factory.Decode(data)
  switch payload.Kind {
  case factory.PayloadCollection: // replace everything
  case factory.PayloadFragment:   // payload.Fragment.Apply(activeProfile)
  }

SEE ALSO:
  - legacy.go: Legacy shapes and migrations
  - planner/repository.go: Load/Save through this codec
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/warp/permiplan/generic"
	"github.com/warp/permiplan/rotation"
)

// CurrentVersion is written by Encode.
const CurrentVersion = 3

var (
	// ErrMalformedPayload is returned for documents that are not JSON objects
	// or miss the fields of every known shape.
	ErrMalformedPayload = fmt.Errorf("%w: malformed payload", generic.ErrInvalidInput)

	// ErrUnsupportedVersion is returned for a version tag this build cannot read.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported payload version", generic.ErrInvalidInput)
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// EnvelopeJSON is the top-level document.
type EnvelopeJSON struct {
	Version    int           `json:"version"`
	ExportedAt string        `json:"exported_at,omitempty"`
	ActiveID   string        `json:"active_id"`
	Profiles   []ProfileJSON `json:"profiles"`
}

// ProfileJSON is the JSON representation of a profile.
type ProfileJSON struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	StartDate      generic.TimePoint `json:"start_date"`
	RefYear        int               `json:"ref_year"`
	TargetWaveDate generic.TimePoint `json:"target_wave_date"`
	Holidays       []HolidayJSON     `json:"holidays"`
	Blocks         []BlockJSON       `json:"blocks"`
}

type HolidayJSON struct {
	ID   string            `json:"id"`
	Name string            `json:"name"`
	Date generic.TimePoint `json:"date"`
}

type BlockJSON struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	DurationDays int    `json:"duration_days"`
	Label        string `json:"label,omitempty"`
}

// =============================================================================
// DECODED PAYLOAD
// =============================================================================

type PayloadKind int

const (
	PayloadCollection PayloadKind = iota + 1 // full restore
	PayloadFragment                          // merge into the active profile
)

// Payload is the result of Decode. Exactly one of Collection or Fragment is
// meaningful, as told by Kind.
type Payload struct {
	Kind       PayloadKind
	Version    int // schema version the document was written in
	Collection rotation.Collection
	Fragment   Fragment
}

// Fragment is a partial profile. Nil pointers and false Has* flags mean the
// field was absent from the document.
type Fragment struct {
	StartDate      *generic.TimePoint
	RefYear        *int
	TargetWaveDate *generic.TimePoint
	Holidays       []rotation.Holiday
	HasHolidays    bool
	Blocks         []rotation.Block
	HasBlocks      bool
}

// Apply returns p with every present field of the fragment copied over it.
func (f Fragment) Apply(p rotation.Profile) rotation.Profile {
	out := p.Clone()
	if f.StartDate != nil {
		out.StartDate = *f.StartDate
	}
	if f.RefYear != nil {
		out.RefYear = *f.RefYear
	}
	if f.TargetWaveDate != nil {
		out.TargetWaveDate = *f.TargetWaveDate
	}
	if f.HasHolidays {
		out.Holidays = append([]rotation.Holiday(nil), f.Holidays...)
	}
	if f.HasBlocks {
		out.Blocks = append([]rotation.Block(nil), f.Blocks...)
	}
	return out
}

// =============================================================================
// ENCODE
// =============================================================================

// Encode writes the collection as a current-version document. A zero
// exportedAt omits the timestamp (used for the stored copy).
func Encode(c rotation.Collection, exportedAt time.Time) ([]byte, error) {
	env := EnvelopeJSON{
		Version:  CurrentVersion,
		ActiveID: c.ActiveID,
		Profiles: make([]ProfileJSON, 0, len(c.Profiles)),
	}
	if !exportedAt.IsZero() {
		env.ExportedAt = exportedAt.UTC().Format(time.RFC3339)
	}
	for _, p := range c.Profiles {
		env.Profiles = append(env.Profiles, toProfileJSON(p))
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	return data, nil
}

// ExportFileName is the download name of a backup taken on day.
func ExportFileName(day generic.TimePoint) string {
	return "permiplan-backup-" + day.String() + ".json"
}

func toProfileJSON(p rotation.Profile) ProfileJSON {
	out := ProfileJSON{
		ID:             p.ID,
		Name:           p.Name,
		StartDate:      p.StartDate,
		RefYear:        p.RefYear,
		TargetWaveDate: p.TargetWaveDate,
		Holidays:       make([]HolidayJSON, 0, len(p.Holidays)),
		Blocks:         make([]BlockJSON, 0, len(p.Blocks)),
	}
	for _, h := range p.Holidays {
		out.Holidays = append(out.Holidays, HolidayJSON{ID: h.ID, Name: h.Name, Date: h.Date})
	}
	for _, b := range p.Blocks {
		out.Blocks = append(out.Blocks, BlockJSON{
			ID:           b.ID,
			Kind:         string(b.Kind),
			DurationDays: b.DurationDays,
			Label:        b.Label,
		})
	}
	return out
}

// =============================================================================
// DECODE
// =============================================================================

// probe reads just enough of a document to tell which shape it is.
type probe struct {
	Version   *int            `json:"version"`
	Profiles  json.RawMessage `json:"profiles"`
	StartDate json.RawMessage `json:"startDate"`
	RefYear   json.RawMessage `json:"refYear"`
	Target    json.RawMessage `json:"targetWaveDate"`
	Holidays  json.RawMessage `json:"holidays"`
	Blocks    json.RawMessage `json:"blocks"`
}

func (p probe) looksLikeFragment() bool {
	return p.StartDate != nil || p.RefYear != nil || p.Target != nil || p.Holidays != nil || p.Blocks != nil
}

// Decode parses any known document shape. It never returns a partially
// filled payload together with an error.
func Decode(data []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Payload{}, fmt.Errorf("%w: expected a JSON object", ErrMalformedPayload)
	}

	var pr probe
	if err := json.Unmarshal(trimmed, &pr); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch {
	case pr.Version != nil:
		if *pr.Version != CurrentVersion {
			return Payload{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, *pr.Version)
		}
		c, err := decodeCurrent(trimmed)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Kind: PayloadCollection, Version: CurrentVersion, Collection: c}, nil

	case pr.Profiles != nil:
		c, err := migrateV2Collection(trimmed)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Kind: PayloadCollection, Version: 2, Collection: c}, nil

	case pr.looksLikeFragment():
		f, err := migrateV1Fragment(trimmed)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Kind: PayloadFragment, Version: 1, Fragment: f}, nil
	}

	return Payload{}, fmt.Errorf("%w: no profiles and no profile fields", ErrMalformedPayload)
}

func decodeCurrent(data []byte) (rotation.Collection, error) {
	var env EnvelopeJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return rotation.Collection{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	c := rotation.Collection{ActiveID: env.ActiveID}
	for i, pj := range env.Profiles {
		p, err := fromProfileJSON(pj)
		if err != nil {
			return rotation.Collection{}, fmt.Errorf("%w: profile %d: %v", ErrMalformedPayload, i+1, err)
		}
		c.Profiles = append(c.Profiles, p)
	}
	return finishCollection(c)
}

func fromProfileJSON(pj ProfileJSON) (rotation.Profile, error) {
	p := rotation.Profile{
		ID:             pj.ID,
		Name:           pj.Name,
		StartDate:      pj.StartDate,
		RefYear:        pj.RefYear,
		TargetWaveDate: pj.TargetWaveDate,
	}
	for _, h := range pj.Holidays {
		p.Holidays = append(p.Holidays, rotation.Holiday{ID: h.ID, Name: h.Name, Date: h.Date})
	}
	for i, b := range pj.Blocks {
		kind, err := rotation.ParseKind(b.Kind)
		if err != nil {
			return rotation.Profile{}, fmt.Errorf("block %d: %w", i+1, err)
		}
		p.Blocks = append(p.Blocks, rotation.Block{ID: b.ID, Kind: kind, DurationDays: b.DurationDays, Label: b.Label})
	}
	return p, nil
}

// finishCollection enforces the collection invariants shared by every shape:
// at least one profile, unique non-empty ids, and an active id that exists.
func finishCollection(c rotation.Collection) (rotation.Collection, error) {
	if len(c.Profiles) == 0 {
		return rotation.Collection{}, fmt.Errorf("%w: no profiles", ErrMalformedPayload)
	}

	profileIDs := newIDSet("profile")
	for i := range c.Profiles {
		p := &c.Profiles[i]
		p.ID = profileIDs.claim(p.ID)
		if p.StartDate.IsZero() {
			return rotation.Collection{}, fmt.Errorf("%w: profile %q has no start date", ErrMalformedPayload, p.ID)
		}
		if p.RefYear == 0 {
			p.RefYear = p.StartDate.Year()
		}
		if !rotation.ValidRefYear(p.RefYear) {
			return rotation.Collection{}, fmt.Errorf("%w: profile %q has reference year %d", ErrMalformedPayload, p.ID, p.RefYear)
		}

		blockIDs := newIDSet("block")
		for j := range p.Blocks {
			p.Blocks[j].ID = blockIDs.claim(p.Blocks[j].ID)
		}
		holidayIDs := newIDSet("holiday")
		for j := range p.Holidays {
			p.Holidays[j].ID = holidayIDs.claim(p.Holidays[j].ID)
		}
	}

	if c.Index(c.ActiveID) < 0 {
		c.ActiveID = c.Profiles[0].ID
	}
	return c, nil
}

// idSet hands out unique ids, keeping the requested one when it is free.
type idSet struct {
	prefix string
	used   map[string]bool
}

func newIDSet(prefix string) *idSet {
	return &idSet{prefix: prefix, used: make(map[string]bool)}
}

func (s *idSet) claim(id string) string {
	if id != "" && !s.used[id] {
		s.used[id] = true
		return id
	}
	for n := len(s.used) + 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d", s.prefix, n)
		if !s.used[candidate] {
			s.used[candidate] = true
			return candidate
		}
	}
}

// IsMalformed reports whether err came from decoding a bad document.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedPayload) || errors.Is(err, ErrUnsupportedVersion)
}
