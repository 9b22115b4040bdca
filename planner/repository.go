package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/permiplan/factory"
	"github.com/warp/permiplan/generic"
	"github.com/warp/permiplan/rotation"
)

// StorageKey holds the whole profile collection.
const StorageKey = "permiplan_v2_data"

// Default profile names per load path.
const (
	DefaultProfileName  = "Main"
	MigratedProfileName = "My Profile"
	NewProfileName      = "New Profile"
)

// LoadSource tells where Load found the collection.
type LoadSource string

const (
	SourceStored LoadSource = "stored" // decoded from StorageKey
	SourceLegacy LoadSource = "legacy" // migrated from the first release's loose keys
	SourceFresh  LoadSource = "fresh"  // nothing stored yet
	SourceReset  LoadSource = "reset"  // stored data was unreadable and got replaced
)

// Repository reads and writes the profile collection through a KVStore.
type Repository struct {
	store  generic.KVStore
	logger zerolog.Logger
}

func NewRepository(store generic.KVStore, logger zerolog.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger.With().Str("component", "repository").Logger(),
	}
}

// Load returns the stored collection. seed builds a fresh starter profile
// with the given name; it is used when nothing usable is stored.
//
// Unreadable data is never fatal: it is logged and replaced by a fresh
// collection, reported as SourceReset. Only store failures return an error.
func (r *Repository) Load(ctx context.Context, seed func(name string) rotation.Profile) (rotation.Collection, LoadSource, error) {
	raw, ok, err := r.store.Get(ctx, StorageKey)
	if err != nil {
		return rotation.Collection{}, "", fmt.Errorf("%w: read %s: %v", generic.ErrStoreFailed, StorageKey, err)
	}

	if ok {
		c, err := decodeStored(raw, seed)
		if err != nil {
			r.logger.Warn().Err(err).Int("bytes", len(raw)).Msg("stored profiles unreadable, starting fresh")
			return single(seed(DefaultProfileName)), SourceReset, nil
		}
		return c, SourceStored, nil
	}

	legacy, err := r.legacyValues(ctx)
	if err != nil {
		return rotation.Collection{}, "", err
	}
	if _, has := legacy["startDate"]; has {
		f, err := factory.DecodeLegacyKeys(legacy)
		if err != nil {
			r.logger.Warn().Err(err).Msg("legacy data unreadable, starting fresh")
			return single(seed(DefaultProfileName)), SourceReset, nil
		}
		p := applyFragment(f, seed(MigratedProfileName))
		r.logger.Info().Str("profile_id", p.ID).Int("blocks", len(p.Blocks)).Msg("migrated legacy data")
		return single(p), SourceLegacy, nil
	}

	return single(seed(DefaultProfileName)), SourceFresh, nil
}

// Save replaces the stored collection.
func (r *Repository) Save(ctx context.Context, c rotation.Collection) error {
	data, err := factory.Encode(c, time.Time{})
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", generic.ErrStoreFailed, StorageKey, err)
	}
	return nil
}

func (r *Repository) legacyValues(ctx context.Context) (map[string][]byte, error) {
	values := make(map[string][]byte)
	for _, key := range factory.LegacyKeys {
		v, ok, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", generic.ErrStoreFailed, key, err)
		}
		if ok {
			values[key] = v
		}
	}
	return values, nil
}

func decodeStored(raw []byte, seed func(name string) rotation.Profile) (rotation.Collection, error) {
	payload, err := factory.Decode(raw)
	if err != nil {
		return rotation.Collection{}, err
	}
	if payload.Kind == factory.PayloadFragment {
		return single(applyFragment(payload.Fragment, seed(DefaultProfileName))), nil
	}
	return payload.Collection, nil
}

// applyFragment merges f into base. The seeded target wave belongs to the
// seed's reference year, so it is dropped when f brings none of its own.
func applyFragment(f factory.Fragment, base rotation.Profile) rotation.Profile {
	p := f.Apply(base)
	if f.TargetWaveDate == nil {
		p.TargetWaveDate = generic.TimePoint{}
	}
	return p
}

func single(p rotation.Profile) rotation.Collection {
	return rotation.Collection{Profiles: []rotation.Profile{p}, ActiveID: p.ID}
}
