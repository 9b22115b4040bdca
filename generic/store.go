/*
store.go - Persistence interfaces for the planner

PURPOSE:
  Defines the interface between the service layer and the database. The
  rotation engine never touches storage: the planner service loads a
  snapshot, hands it to the pure engine, and writes the result back.

KEY INTERFACES:
  KVStore:  Opaque blobs under string keys (the profile collection lives
            under one fixed key, legacy data under a handful of others)
  AuditLog: Append-only record of who changed what when

WHY KEY-VALUE:
  The whole profile collection is saved after every mutation as a single
  versioned document. There is nothing to query inside it, so a blob per key
  is all the store has to provide.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - generic/store/memory.go: In-memory for testing

EXAMPLE:
  store := sqlite.New("./permiplan.db")
  raw, ok, err := store.Get(ctx, "permiplan_v2_data")

SEE ALSO:
  - planner/repository.go: Load/Save on top of KVStore
  - factory/backup.go: Encoding of the stored document
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// KEY-VALUE STORE
// =============================================================================

// KVStore persists opaque values under string keys.
type KVStore interface {
	// Get returns the value for key. ok is false when the key does not exist.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put creates or replaces the value for key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// =============================================================================
// AUDIT LOG - Separate from the data, tracks who did what when
// =============================================================================

// AuditEntry records one mutation of the profile collection.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Action    AuditAction
	ProfileID string
	Payload   map[string]any // action-specific data
}

type AuditAction string

const (
	AuditProfileCreated  AuditAction = "profile_created"
	AuditProfileUpdated  AuditAction = "profile_updated"
	AuditProfileDeleted  AuditAction = "profile_deleted"
	AuditProfileActivate AuditAction = "profile_activated"
	AuditBlockAdded      AuditAction = "block_added"
	AuditBlockUpdated    AuditAction = "block_updated"
	AuditBlockRemoved    AuditAction = "block_removed"
	AuditHolidayAdded    AuditAction = "holiday_added"
	AuditHolidayRemoved  AuditAction = "holiday_removed"
	AuditImportApplied   AuditAction = "import_applied"
	AuditLegacyMigrated  AuditAction = "legacy_migrated"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	ProfileID *string
	Actions   []AuditAction
	Limit     int // 0 = no limit
}

// Matches reports whether e passes the filter (ignoring Limit).
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.ProfileID != nil && e.ProfileID != *f.ProfileID {
		return false
	}
	if len(f.Actions) == 0 {
		return true
	}
	for _, a := range f.Actions {
		if a == e.Action {
			return true
		}
	}
	return false
}
