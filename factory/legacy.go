package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/warp/permiplan/generic"
	"github.com/warp/permiplan/rotation"
)

// =============================================================================
// LEGACY SHAPES
// =============================================================================

// LegacyKeys are the store keys the first release saved one value per field
// under. Each holds a JSON value.
var LegacyKeys = []string{"startDate", "refYear", "targetWaveDate", "holidays", "blocks"}

// LegacyDefaultRefYear is used when the first release never stored a reference year.
const LegacyDefaultRefYear = 2026

type legacyHoliday struct {
	ID   flexID `json:"id"`
	Name string `json:"name"`
	Date string `json:"date"`
}

type legacyBlock struct {
	ID       flexID  `json:"id"`
	Type     string  `json:"type"`
	Duration flexInt `json:"duration"`
	Label    string  `json:"label"`
}

type legacyProfile struct {
	ID             flexID          `json:"id"`
	Name           string          `json:"name"`
	StartDate      string          `json:"startDate"`
	RefYear        flexInt         `json:"refYear"`
	TargetWaveDate string          `json:"targetWaveDate"`
	Holidays       []legacyHoliday `json:"holidays"`
	Blocks         []legacyBlock   `json:"blocks"`
}

type legacyCollection struct {
	Profiles []legacyProfile `json:"profiles"`
	ActiveID flexID          `json:"activeId"`
}

type legacyFragment struct {
	StartDate      *string          `json:"startDate"`
	RefYear        *flexInt         `json:"refYear"`
	TargetWaveDate *string          `json:"targetWaveDate"`
	Holidays       *[]legacyHoliday `json:"holidays"`
	Blocks         *[]legacyBlock   `json:"blocks"`
}

// =============================================================================
// MIGRATIONS
// =============================================================================

// migrateV2Collection reads the untagged multi-profile document.
func migrateV2Collection(data []byte) (rotation.Collection, error) {
	var lc legacyCollection
	if err := json.Unmarshal(data, &lc); err != nil {
		return rotation.Collection{}, fmt.Errorf("%w: v2 collection: %v", ErrMalformedPayload, err)
	}

	c := rotation.Collection{ActiveID: string(lc.ActiveID)}
	for i, lp := range lc.Profiles {
		p, err := lp.toProfile()
		if err != nil {
			return rotation.Collection{}, fmt.Errorf("%w: v2 profile %d: %v", ErrMalformedPayload, i+1, err)
		}
		c.Profiles = append(c.Profiles, p)
	}
	return finishCollection(c)
}

// migrateV1Fragment reads a single profile's fields from the top level.
func migrateV1Fragment(data []byte) (Fragment, error) {
	var lf legacyFragment
	if err := json.Unmarshal(data, &lf); err != nil {
		return Fragment{}, fmt.Errorf("%w: v1 fragment: %v", ErrMalformedPayload, err)
	}

	var f Fragment
	if lf.StartDate != nil {
		d, err := generic.ParseTimePoint(*lf.StartDate)
		if err != nil || d.IsZero() {
			return Fragment{}, fmt.Errorf("%w: v1 startDate %q", ErrMalformedPayload, *lf.StartDate)
		}
		f.StartDate = &d
	}
	if lf.RefYear != nil {
		y := int(*lf.RefYear)
		if !rotation.ValidRefYear(y) {
			return Fragment{}, fmt.Errorf("%w: v1 refYear %d", ErrMalformedPayload, y)
		}
		f.RefYear = &y
	}
	if lf.TargetWaveDate != nil {
		d, err := generic.ParseTimePoint(*lf.TargetWaveDate)
		if err != nil {
			return Fragment{}, fmt.Errorf("%w: v1 targetWaveDate: %v", ErrMalformedPayload, err)
		}
		f.TargetWaveDate = &d
	}
	if lf.Holidays != nil {
		hs, err := convertHolidays(*lf.Holidays)
		if err != nil {
			return Fragment{}, fmt.Errorf("%w: v1 holidays: %v", ErrMalformedPayload, err)
		}
		f.Holidays, f.HasHolidays = hs, true
	}
	if lf.Blocks != nil {
		bs, err := convertBlocks(*lf.Blocks)
		if err != nil {
			return Fragment{}, fmt.Errorf("%w: v1 blocks: %v", ErrMalformedPayload, err)
		}
		f.Blocks, f.HasBlocks = bs, true
	}
	return f, nil
}

// DecodeLegacyKeys assembles the per-key values of the first release into a
// fragment. Missing holidays and blocks become empty lists and a missing
// reference year becomes LegacyDefaultRefYear, as the first release did.
func DecodeLegacyKeys(values map[string][]byte) (Fragment, error) {
	if _, ok := values["startDate"]; !ok {
		return Fragment{}, fmt.Errorf("%w: legacy data has no startDate", ErrMalformedPayload)
	}

	obj := map[string]json.RawMessage{
		"refYear":  json.RawMessage(strconv.Itoa(LegacyDefaultRefYear)),
		"holidays": json.RawMessage("[]"),
		"blocks":   json.RawMessage("[]"),
	}
	for _, k := range LegacyKeys {
		if v, ok := values[k]; ok && len(bytes.TrimSpace(v)) > 0 {
			obj[k] = json.RawMessage(v)
		}
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return Fragment{}, fmt.Errorf("%w: legacy keys: %v", ErrMalformedPayload, err)
	}
	return migrateV1Fragment(data)
}

func (lp legacyProfile) toProfile() (rotation.Profile, error) {
	start, err := generic.ParseTimePoint(lp.StartDate)
	if err != nil {
		return rotation.Profile{}, err
	}
	target, err := generic.ParseTimePoint(lp.TargetWaveDate)
	if err != nil {
		return rotation.Profile{}, err
	}
	holidays, err := convertHolidays(lp.Holidays)
	if err != nil {
		return rotation.Profile{}, err
	}
	blocks, err := convertBlocks(lp.Blocks)
	if err != nil {
		return rotation.Profile{}, err
	}
	return rotation.Profile{
		ID:             string(lp.ID),
		Name:           lp.Name,
		StartDate:      start,
		RefYear:        int(lp.RefYear),
		TargetWaveDate: target,
		Holidays:       holidays,
		Blocks:         blocks,
	}, nil
}

func convertHolidays(in []legacyHoliday) ([]rotation.Holiday, error) {
	out := make([]rotation.Holiday, 0, len(in))
	for i, h := range in {
		d, err := generic.ParseTimePoint(h.Date)
		if err != nil || d.IsZero() {
			return nil, fmt.Errorf("holiday %d: bad date %q", i+1, h.Date)
		}
		out = append(out, rotation.Holiday{ID: string(h.ID), Name: h.Name, Date: d})
	}
	ids := newIDSet("holiday")
	for i := range out {
		out[i].ID = ids.claim(out[i].ID)
	}
	return out, nil
}

func convertBlocks(in []legacyBlock) ([]rotation.Block, error) {
	out := make([]rotation.Block, 0, len(in))
	for i, b := range in {
		kind, err := rotation.ParseKind(b.Type)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i+1, err)
		}
		out = append(out, rotation.Block{ID: string(b.ID), Kind: kind, DurationDays: int(b.Duration), Label: b.Label})
	}
	ids := newIDSet("block")
	for i := range out {
		out[i].ID = ids.claim(out[i].ID)
	}
	return out, nil
}

// =============================================================================
// LENIENT SCALARS
// =============================================================================

// flexID accepts a JSON string or number. Older exports used timestamps.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

// flexInt accepts a JSON number or a numeric string. Fractions are truncated,
// as the form inputs of older releases did.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("expected a number, got %q", s)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return fmt.Errorf("number %q is out of range", s)
	}
	*n = flexInt(int(f))
	return nil
}
