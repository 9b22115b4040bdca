package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/permiplan/generic"
	"github.com/warp/permiplan/planner"
	"github.com/warp/permiplan/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// KEY-VALUE
// =============================================================================

func TestKV_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "k", []byte(`{"a":1}`)))
	require.NoError(t, s.Put(ctx, "k", []byte(`{"a":2}`)))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":2}`, string(v))

	at, ok, err := s.UpdatedAt(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), at, time.Minute)

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptTimestampsAreReported(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "permiplan.db")

	// GIVEN: A key and an audit entry whose timestamps were damaged on disk
	s, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	require.NoError(t, s.Append(ctx, generic.AuditEntry{ID: "a1", Timestamp: time.Now(), Action: generic.AuditProfileCreated}))
	require.NoError(t, s.Close())

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec("UPDATE kv SET updated_at = 'yesterday'")
	require.NoError(t, err)
	_, err = raw.Exec("UPDATE audit_log SET timestamp = 'not a time'")
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	// WHEN: Reading them back
	s, err = sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()
	_, ok, err := s.UpdatedAt(ctx, "k")

	// THEN: Both reads fail instead of returning a zero time
	assert.Error(t, err)
	assert.False(t, ok)
	entries, err := s.Query(ctx, generic.AuditFilter{})
	assert.Error(t, err)
	assert.Nil(t, entries)
}

func TestKV_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "permiplan.db")

	s, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, planner.StorageKey, []byte("doc")))
	require.NoError(t, s.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, planner.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "doc", string(v))
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAudit_AppendQuery(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ts := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	entries := []generic.AuditEntry{
		{ID: "a1", Timestamp: ts, Action: generic.AuditProfileCreated, ProfileID: "p1", Payload: map[string]any{"name": "Main"}},
		{ID: "a2", Timestamp: ts.Add(time.Second), Action: generic.AuditBlockAdded, ProfileID: "p1", Payload: map[string]any{"duration_days": 45}},
		{ID: "a3", Timestamp: ts.Add(2 * time.Second), Action: generic.AuditBlockAdded, ProfileID: "p2"},
	}
	for _, e := range entries {
		require.NoError(t, s.Append(ctx, e))
	}

	t.Run("newest first", func(t *testing.T) {
		got, err := s.Query(ctx, generic.AuditFilter{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"a3", "a2", "a1"}, ids(got))
		assert.True(t, ts.Equal(got[2].Timestamp))
		assert.Equal(t, "Main", got[2].Payload["name"])
		assert.Equal(t, float64(45), got[1].Payload["duration_days"])
		assert.Nil(t, got[0].Payload)
	})

	t.Run("by profile and action", func(t *testing.T) {
		p1 := "p1"
		got, err := s.Query(ctx, generic.AuditFilter{ProfileID: &p1, Actions: []generic.AuditAction{generic.AuditBlockAdded}})
		require.NoError(t, err)
		assert.Equal(t, []string{"a2"}, ids(got))
	})

	t.Run("limit", func(t *testing.T) {
		got, err := s.Query(ctx, generic.AuditFilter{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"a3"}, ids(got))
	})

	t.Run("duplicate id is refused", func(t *testing.T) {
		assert.Error(t, s.Append(ctx, entries[0]))
	})
}

// =============================================================================
// SERVICE ON SQLITE
// =============================================================================

func TestPlannerOnSQLite(t *testing.T) {
	// GIVEN: A planner backed by SQLite
	ctx := context.Background()
	s := newStore(t)
	svc, err := planner.New(ctx, s, planner.WithAuditLog(s))
	require.NoError(t, err)

	// WHEN: Creating a profile and restarting
	created, err := svc.CreateProfile(ctx, "Plan B")
	require.NoError(t, err)
	restarted, err := planner.New(ctx, s, planner.WithAuditLog(s))
	require.NoError(t, err)

	// THEN: The profile survives and the change is audited
	assert.Equal(t, created.ID, restarted.Active().ID)
	trail, err := restarted.AuditTrail(ctx, generic.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, generic.AuditProfileCreated, trail[0].Action)
}

func ids(entries []generic.AuditEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
