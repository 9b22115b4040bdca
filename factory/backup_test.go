package factory_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/permiplan/factory"
	"github.com/warp/permiplan/generic"
	"github.com/warp/permiplan/rotation"
)

func date(s string) generic.TimePoint { return generic.MustParseTimePoint(s) }

func sampleCollection() rotation.Collection {
	return rotation.Collection{
		ActiveID: "p2",
		Profiles: []rotation.Profile{
			{
				ID: "p1", Name: "Main", StartDate: date("2026-01-01"), RefYear: 2026,
				TargetWaveDate: date("2026-06-01"),
				Holidays:       []rotation.Holiday{{ID: "h1", Name: "Eid al-Fitr", Date: date("2026-03-20")}},
				Blocks: []rotation.Block{
					{ID: "b1", Kind: rotation.KindWork, DurationDays: 45},
					{ID: "b2", Kind: rotation.KindLeave, DurationDays: 50, Label: "Annual leave"},
				},
			},
			{ID: "p2", Name: "Plan B", StartDate: date("2026-02-01"), RefYear: 2027},
		},
	}
}

// =============================================================================
// CURRENT VERSION
// =============================================================================

func TestEncodeDecode_CurrentVersion(t *testing.T) {
	// GIVEN: A collection encoded as a backup
	data, err := factory.Encode(sampleCollection(), time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	assert.EqualValues(t, factory.CurrentVersion, env["version"])
	assert.Equal(t, "2026-10-19T08:00:00Z", env["exported_at"])

	// WHEN: Decoding it
	payload, err := factory.Decode(data)
	require.NoError(t, err)

	// THEN: It is a full restore carrying the same profiles
	assert.Equal(t, factory.PayloadCollection, payload.Kind)
	assert.Equal(t, factory.CurrentVersion, payload.Version)
	assert.Equal(t, "p2", payload.Collection.ActiveID)
	require.Len(t, payload.Collection.Profiles, 2)
	p1 := payload.Collection.Profiles[0]
	assert.Equal(t, "2026-06-01", p1.TargetWaveDate.String())
	assert.Equal(t, sampleCollection().Profiles[0].Blocks, p1.Blocks)
	assert.Equal(t, sampleCollection().Profiles[0].Holidays, p1.Holidays)
	assert.True(t, payload.Collection.Profiles[1].TargetWaveDate.IsZero())
}

func TestEncode_StoredCopyHasNoTimestamp(t *testing.T) {
	data, err := factory.Encode(sampleCollection(), time.Time{})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "exported_at")
}

func TestDecode_FixesDanglingActiveIDAndDuplicateIDs(t *testing.T) {
	doc := `{"version":3,"active_id":"missing","profiles":[
		{"id":"p1","name":"A","start_date":"2026-01-01","ref_year":2026,
		 "blocks":[{"id":"b","kind":"work","duration_days":45},{"id":"b","kind":"rest","duration_days":15},{"kind":"work","duration_days":45}]}
	]}`

	payload, err := factory.Decode([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "p1", payload.Collection.ActiveID)
	blocks := payload.Collection.Profiles[0].Blocks
	require.Len(t, blocks, 3)
	ids := map[string]bool{}
	for _, b := range blocks {
		assert.NotEmpty(t, b.ID)
		assert.False(t, ids[b.ID], "duplicate id %s", b.ID)
		ids[b.ID] = true
	}
	assert.Equal(t, "b", blocks[0].ID)
}

// =============================================================================
// REJECTION
// =============================================================================

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"profiles": [`},
		{"array", `[1,2,3]`},
		{"null", `null`},
		{"empty", ``},
		{"unknown shape", `{"foo":"bar"}`},
		{"no profiles", `{"version":3,"profiles":[]}`},
		{"bad kind", `{"version":3,"profiles":[{"id":"p","start_date":"2026-01-01","blocks":[{"kind":"nap","duration_days":1}]}]}`},
		{"bad date", `{"version":3,"profiles":[{"id":"p","start_date":"01/01/2026"}]}`},
		{"missing start", `{"version":3,"profiles":[{"id":"p","name":"x"}]}`},
		{"legacy bad holiday date", `{"profiles":[{"id":1,"startDate":"2026-01-01","holidays":[{"id":1,"name":"x","date":"soon"}]}]}`},
		{"fragment bad duration", `{"blocks":[{"id":1,"type":"TRAVAIL","duration":"lots"}]}`},
		{"fragment NaN duration", `{"blocks":[{"id":1,"type":"TRAVAIL","duration":"NaN"}]}`},
		{"fragment infinite duration", `{"blocks":[{"id":1,"type":"TRAVAIL","duration":"-Inf"}]}`},
		{"fragment huge duration", `{"blocks":[{"id":1,"type":"TRAVAIL","duration":1e300}]}`},
		{"fragment huge ref year", `{"startDate":"2026-01-01","refYear":"1e30","blocks":[]}`},
		{"fragment ref year too late", `{"startDate":"2026-01-01","refYear":9999,"blocks":[]}`},
		{"legacy ref year too late", `{"profiles":[{"id":1,"startDate":"2026-01-01","refYear":10000}]}`},
		{"ref year negative", `{"version":3,"profiles":[{"id":"p","start_date":"2026-01-01","ref_year":-5}]}`},
		{"ref year too late", `{"version":3,"profiles":[{"id":"p","start_date":"2026-01-01","ref_year":10000}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := factory.Decode([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, factory.ErrMalformedPayload), "got %v", err)
			assert.True(t, generic.IsClientError(err))
			assert.Zero(t, payload.Kind)
		})
	}
}

func TestDecode_UnsupportedVersion(t *testing.T) {
	_, err := factory.Decode([]byte(`{"version":99,"profiles":[]}`))

	assert.ErrorIs(t, err, factory.ErrUnsupportedVersion)
	assert.True(t, factory.IsMalformed(err))
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "permiplan-backup-2026-10-19.json", factory.ExportFileName(date("2026-10-19")))
}
