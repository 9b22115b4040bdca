/*
Package planner owns the mutable profile collection.

PURPOSE:
  The rotation package is pure: it turns one profile snapshot into a plan.
  This package is the stateful layer around it. It loads the collection
  from a KVStore, applies edits requested by the API or the CLI, saves the
  result after every mutation, and records what changed in the audit log.

MUTATION FLOW:
  1. Lock the service
  2. Deep-copy the current collection
  3. Apply the edit to the copy (validation errors abort here)
  4. Save the copy through the repository
  5. Commit the copy in memory and append the audit entry

  A failed save leaves the in-memory state untouched, so memory and store
  never disagree.

COLLECTION RULES:
  - There is always at least one profile and ActiveID names one of them.
  - Every profile has a target wave once it has been loaded or created.
  - Removing the closing annual leave of a profile is refused.

SEE ALSO:
  - repository.go: Load/Save and legacy migration
  - presets.go: Block skeletons for new profiles
  - rotation/plan.go: BuildPlan
*/
package planner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/permiplan/factory"
	"github.com/warp/permiplan/generic"
	"github.com/warp/permiplan/rotation"
)

// Unplanned cycle inserted by InsertCycle.
const (
	CycleWorkDays = 45
	CycleRestDays = 15
)

// =============================================================================
// SERVICE
// =============================================================================

// Service serializes every read and write of the profile collection.
type Service struct {
	repo   *Repository
	audit  generic.AuditLog
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string

	mu   sync.Mutex
	data rotation.Collection
}

type Option func(*Service)

// WithAuditLog records every mutation in log.
func WithAuditLog(log generic.AuditLog) Option {
	return func(s *Service) { s.audit = log }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock replaces time.Now, which decides "today" for new profiles and plans.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the UUID generator used for profile, block and
// holiday ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// New loads the collection from store and returns a ready service. Anything
// the load had to repair (migration, missing target waves, unreadable data)
// is saved before New returns.
func New(ctx context.Context, store generic.KVStore, opts ...Option) (*Service, error) {
	s := &Service{
		logger: zerolog.Nop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	base := s.logger
	s.logger = base.With().Str("component", "planner").Logger()
	s.repo = NewRepository(store, base)

	c, source, err := s.repo.Load(ctx, func(name string) rotation.Profile {
		return newProfile(name, s.Today(), presets[0], s.newID)
	})
	if err != nil {
		return nil, err
	}

	repaired := false
	for i := range c.Profiles {
		if c.Profiles[i].EnsureTargetWave() {
			repaired = true
		}
	}
	if source != SourceStored || repaired {
		if err := s.repo.Save(ctx, c); err != nil {
			return nil, err
		}
	}
	s.data = c

	if source == SourceLegacy {
		s.record(ctx, change{action: generic.AuditLegacyMigrated, profileID: c.ActiveID})
	}
	s.logger.Info().
		Str("source", string(source)).
		Int("profiles", len(c.Profiles)).
		Str("active_id", c.ActiveID).
		Msg("profiles loaded")
	return s, nil
}

// Today is the current calendar date according to the service clock.
func (s *Service) Today() generic.TimePoint {
	return generic.FromTime(s.now())
}

// =============================================================================
// READS
// =============================================================================

// Collection returns a deep copy of every profile.
func (s *Service) Collection() rotation.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// Profile returns a copy of the profile with the given id.
func (s *Service) Profile(id string) (rotation.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.data.Index(id)
	if i < 0 {
		return rotation.Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return s.data.Profiles[i].Clone(), nil
}

// Active returns a copy of the active profile.
func (s *Service) Active() rotation.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.Active()
	if !ok {
		// Load and every mutation keep ActiveID valid.
		return s.data.Profiles[0].Clone()
	}
	return p.Clone()
}

// Plan builds the plan of a profile as of today. A zero today means the
// service clock's date.
func (s *Service) Plan(id string, today generic.TimePoint) (rotation.Plan, error) {
	p, err := s.Profile(id)
	if err != nil {
		return rotation.Plan{}, err
	}
	if today.IsZero() {
		today = s.Today()
	}
	return rotation.BuildPlan(p, today), nil
}

// AuditTrail returns recorded mutations, newest first. Without an audit log
// it returns nothing.
func (s *Service) AuditTrail(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	if s.audit == nil {
		return []generic.AuditEntry{}, nil
	}
	return s.audit.Query(ctx, filter)
}

// =============================================================================
// PROFILES
// =============================================================================

// CreateProfile adds a starter profile and makes it active.
func (s *Service) CreateProfile(ctx context.Context, name string) (rotation.Profile, error) {
	return s.createFrom(ctx, name, presets[0])
}

// LoadPreset adds a profile built from a preset and makes it active. An
// empty name uses the preset's name.
func (s *Service) LoadPreset(ctx context.Context, presetID, name string) (rotation.Profile, error) {
	preset, ok := LookupPreset(presetID)
	if !ok {
		return rotation.Profile{}, fmt.Errorf("%w: %s", ErrPresetNotFound, presetID)
	}
	if strings.TrimSpace(name) == "" {
		name = preset.Name
	}
	return s.createFrom(ctx, name, preset)
}

func (s *Service) createFrom(ctx context.Context, name string, preset Preset) (rotation.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = NewProfileName
	}

	var created rotation.Profile
	err := s.mutate(ctx, func(c *rotation.Collection) (change, error) {
		created = newProfile(name, s.Today(), preset, s.newID)
		c.Profiles = append(c.Profiles, created)
		c.ActiveID = created.ID
		return change{
			action:    generic.AuditProfileCreated,
			profileID: created.ID,
			payload:   map[string]any{"name": created.Name, "preset": preset.ID},
		}, nil
	})
	if err != nil {
		return rotation.Profile{}, err
	}
	return created.Clone(), nil
}

// ProfileUpdate holds the settings to change. Nil fields are kept.
type ProfileUpdate struct {
	Name           *string
	StartDate      *generic.TimePoint
	RefYear        *int
	TargetWaveDate *generic.TimePoint // zero resets to the first wave
}

// UpdateProfile changes a profile's settings. Changing the reference year
// without naming a target moves the target to the new season's first wave.
func (s *Service) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (rotation.Profile, error) {
	return s.mutateProfile(ctx, id, func(p *rotation.Profile) (change, error) {
		fields := map[string]any{}
		if u.Name != nil {
			name := strings.TrimSpace(*u.Name)
			if name == "" {
				return change{}, fmt.Errorf("%w: name is empty", ErrInvalidProfile)
			}
			p.Name = name
			fields["name"] = name
		}
		if u.StartDate != nil {
			if u.StartDate.IsZero() {
				return change{}, fmt.Errorf("%w: start date is required", ErrInvalidProfile)
			}
			p.StartDate = *u.StartDate
			fields["start_date"] = p.StartDate.String()
		}
		if u.RefYear != nil {
			if !rotation.ValidRefYear(*u.RefYear) {
				return change{}, fmt.Errorf("%w: reference year %d", ErrInvalidProfile, *u.RefYear)
			}
			if *u.RefYear != p.RefYear && u.TargetWaveDate == nil {
				p.TargetWaveDate = generic.TimePoint{}
			}
			p.RefYear = *u.RefYear
			fields["ref_year"] = p.RefYear
		}
		if u.TargetWaveDate != nil {
			p.TargetWaveDate = *u.TargetWaveDate
		}
		p.EnsureTargetWave()
		if u.TargetWaveDate != nil || u.RefYear != nil {
			fields["target_wave_date"] = p.TargetWaveDate.String()
		}
		return change{action: generic.AuditProfileUpdated, payload: fields}, nil
	})
}

// DeleteProfile removes a profile. The last profile cannot be deleted.
// Deleting the active profile activates the first remaining one.
func (s *Service) DeleteProfile(ctx context.Context, id string) error {
	return s.mutate(ctx, func(c *rotation.Collection) (change, error) {
		i := c.Index(id)
		if i < 0 {
			return change{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
		}
		if len(c.Profiles) == 1 {
			return change{}, ErrLastProfile
		}
		name := c.Profiles[i].Name
		c.Profiles = append(c.Profiles[:i], c.Profiles[i+1:]...)
		if c.ActiveID == id {
			c.ActiveID = c.Profiles[0].ID
		}
		return change{
			action:    generic.AuditProfileDeleted,
			profileID: id,
			payload:   map[string]any{"name": name, "active_id": c.ActiveID},
		}, nil
	})
}

// SetActive marks a profile as the active one.
func (s *Service) SetActive(ctx context.Context, id string) error {
	return s.mutate(ctx, func(c *rotation.Collection) (change, error) {
		if c.Index(id) < 0 {
			return change{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
		}
		c.ActiveID = id
		return change{action: generic.AuditProfileActivate, profileID: id}, nil
	})
}

// =============================================================================
// BLOCKS
// =============================================================================

// BlockInput describes a block to append.
type BlockInput struct {
	Kind         rotation.Kind
	DurationDays int
	Label        string
}

// AddBlock appends a block to the end of the profile's rotation. Zero and
// negative durations are stored as given; the timeline treats them as empty.
func (s *Service) AddBlock(ctx context.Context, profileID string, in BlockInput) (rotation.Block, error) {
	if !in.Kind.Valid() {
		return rotation.Block{}, fmt.Errorf("%w: %q", ErrInvalidKind, in.Kind)
	}

	var added rotation.Block
	_, err := s.mutateProfile(ctx, profileID, func(p *rotation.Profile) (change, error) {
		added = rotation.Block{ID: s.newID(), Kind: in.Kind, DurationDays: in.DurationDays, Label: strings.TrimSpace(in.Label)}
		p.Blocks = append(p.Blocks, added)
		return change{action: generic.AuditBlockAdded, payload: blockPayload(added)}, nil
	})
	return added, err
}

// InsertCycle adds an unplanned work rotation and its rest period. They go
// right before a closing annual leave, or at the end when there is none.
func (s *Service) InsertCycle(ctx context.Context, profileID string) ([]rotation.Block, error) {
	var cycle []rotation.Block
	_, err := s.mutateProfile(ctx, profileID, func(p *rotation.Profile) (change, error) {
		cycle = []rotation.Block{
			{ID: s.newID(), Kind: rotation.KindWork, DurationDays: CycleWorkDays, Label: "Extra work"},
			{ID: s.newID(), Kind: rotation.KindRest, DurationDays: CycleRestDays, Label: "Extra rest"},
		}
		at := len(p.Blocks)
		if at > 0 && p.Blocks[at-1].Kind == rotation.KindLeave {
			at--
		}
		blocks := make([]rotation.Block, 0, len(p.Blocks)+len(cycle))
		blocks = append(blocks, p.Blocks[:at]...)
		blocks = append(blocks, cycle...)
		blocks = append(blocks, p.Blocks[at:]...)
		p.Blocks = blocks
		return change{
			action:  generic.AuditBlockAdded,
			payload: map[string]any{"cycle": true, "index": at},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return cycle, nil
}

// BlockUpdate holds the block fields to change. Nil fields are kept.
type BlockUpdate struct {
	Kind         *rotation.Kind
	DurationDays *int
	Label        *string
}

// UpdateBlock edits a block in place.
func (s *Service) UpdateBlock(ctx context.Context, profileID, blockID string, u BlockUpdate) (rotation.Block, error) {
	if u.Kind != nil && !u.Kind.Valid() {
		return rotation.Block{}, fmt.Errorf("%w: %q", ErrInvalidKind, *u.Kind)
	}
	return s.editBlock(ctx, profileID, blockID, func(_ *rotation.Profile, b *rotation.Block) error {
		if u.Kind != nil {
			b.Kind = *u.Kind
		}
		if u.DurationDays != nil {
			b.DurationDays = *u.DurationDays
		}
		if u.Label != nil {
			b.Label = strings.TrimSpace(*u.Label)
		}
		return nil
	})
}

// EditBlockEnd sets a block's duration from a new inclusive end date. An end
// before the block's start returns *rotation.InvalidEndDateError and leaves
// the block unchanged.
func (s *Service) EditBlockEnd(ctx context.Context, profileID, blockID string, newEnd generic.TimePoint) (rotation.Block, error) {
	return s.editBlock(ctx, profileID, blockID, func(p *rotation.Profile, b *rotation.Block) error {
		timeline := rotation.ComputeTimeline(p.StartDate, p.Blocks, nil)
		start := timeline[p.BlockIndex(b.ID)].Start
		days, err := rotation.DurationForEnd(start, newEnd)
		if err != nil {
			return err
		}
		b.DurationDays = days
		return nil
	})
}

func (s *Service) editBlock(ctx context.Context, profileID, blockID string, edit func(p *rotation.Profile, b *rotation.Block) error) (rotation.Block, error) {
	var updated rotation.Block
	_, err := s.mutateProfile(ctx, profileID, func(p *rotation.Profile) (change, error) {
		i := p.BlockIndex(blockID)
		if i < 0 {
			return change{}, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
		}
		b := p.Blocks[i]
		if err := edit(p, &b); err != nil {
			return change{}, err
		}
		p.Blocks[i] = b
		updated = b
		return change{action: generic.AuditBlockUpdated, payload: blockPayload(b)}, nil
	})
	if err != nil {
		return rotation.Block{}, err
	}
	return updated, nil
}

// RemoveBlock deletes a block. The closing annual leave is protected.
func (s *Service) RemoveBlock(ctx context.Context, profileID, blockID string) error {
	_, err := s.mutateProfile(ctx, profileID, func(p *rotation.Profile) (change, error) {
		i := p.BlockIndex(blockID)
		if i < 0 {
			return change{}, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
		}
		b := p.Blocks[i]
		if i == len(p.Blocks)-1 && b.Kind == rotation.KindLeave {
			return change{}, ErrProtectedBlock
		}
		p.Blocks = append(p.Blocks[:i], p.Blocks[i+1:]...)
		return change{action: generic.AuditBlockRemoved, payload: blockPayload(b)}, nil
	})
	return err
}

func blockPayload(b rotation.Block) map[string]any {
	return map[string]any{"block_id": b.ID, "kind": string(b.Kind), "duration_days": b.DurationDays}
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// AddHoliday records a named date. Both the name and the date are required.
func (s *Service) AddHoliday(ctx context.Context, profileID, name string, date generic.TimePoint) (rotation.Holiday, error) {
	name = strings.TrimSpace(name)
	if name == "" || date.IsZero() {
		return rotation.Holiday{}, ErrInvalidHoliday
	}

	var added rotation.Holiday
	_, err := s.mutateProfile(ctx, profileID, func(p *rotation.Profile) (change, error) {
		added = rotation.Holiday{ID: s.newID(), Name: name, Date: date}
		p.Holidays = append(p.Holidays, added)
		return change{
			action:  generic.AuditHolidayAdded,
			payload: map[string]any{"holiday_id": added.ID, "name": name, "date": date.String()},
		}, nil
	})
	return added, err
}

// RemoveHoliday deletes a holiday by id.
func (s *Service) RemoveHoliday(ctx context.Context, profileID, holidayID string) error {
	_, err := s.mutateProfile(ctx, profileID, func(p *rotation.Profile) (change, error) {
		i := p.HolidayIndex(holidayID)
		if i < 0 {
			return change{}, fmt.Errorf("%w: %s", ErrHolidayNotFound, holidayID)
		}
		h := p.Holidays[i]
		p.Holidays = append(p.Holidays[:i], p.Holidays[i+1:]...)
		return change{
			action:  generic.AuditHolidayRemoved,
			payload: map[string]any{"holiday_id": h.ID, "name": h.Name},
		}, nil
	})
	return err
}

// =============================================================================
// BACKUP
// =============================================================================

// Export encodes the whole collection as a backup document and returns it
// with its download file name.
func (s *Service) Export() ([]byte, string, error) {
	now := s.now()
	data, err := factory.Encode(s.Collection(), now)
	if err != nil {
		return nil, "", err
	}
	return data, factory.ExportFileName(generic.FromTime(now)), nil
}

// ImportResult describes what an import changed.
type ImportResult struct {
	Kind      factory.PayloadKind
	Version   int
	Profiles  int
	ProfileID string // merged profile for fragments, active profile otherwise
}

// Import restores a backup. A full collection replaces every profile; a
// single-profile fragment is merged into the active profile. Malformed input
// changes nothing.
func (s *Service) Import(ctx context.Context, data []byte) (ImportResult, error) {
	payload, err := factory.Decode(data)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	err = s.mutate(ctx, func(c *rotation.Collection) (change, error) {
		switch payload.Kind {
		case factory.PayloadCollection:
			*c = payload.Collection.Clone()
		case factory.PayloadFragment:
			i := c.Index(c.ActiveID)
			if i < 0 {
				i = 0
			}
			before := c.Profiles[i]
			merged := payload.Fragment.Apply(before)
			if merged.RefYear != before.RefYear && payload.Fragment.TargetWaveDate == nil {
				merged.TargetWaveDate = generic.TimePoint{}
			}
			c.Profiles[i] = merged
		}
		for i := range c.Profiles {
			c.Profiles[i].EnsureTargetWave()
		}

		result = ImportResult{
			Kind:      payload.Kind,
			Version:   payload.Version,
			Profiles:  len(c.Profiles),
			ProfileID: c.ActiveID,
		}
		return change{
			action:    generic.AuditImportApplied,
			profileID: c.ActiveID,
			payload:   map[string]any{"version": payload.Version, "profiles": len(c.Profiles), "fragment": payload.Kind == factory.PayloadFragment},
		}, nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return result, nil
}

// =============================================================================
// MUTATION PLUMBING
// =============================================================================

// change is the audit record of one successful mutation.
type change struct {
	action    generic.AuditAction
	profileID string
	payload   map[string]any
}

// mutate applies fn to a copy of the collection, saves the copy and then
// commits it. Nothing changes if fn or the save fails.
func (s *Service) mutate(ctx context.Context, fn func(c *rotation.Collection) (change, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data.Clone()
	ch, err := fn(&next)
	if err != nil {
		return err
	}
	if err := s.repo.Save(ctx, next); err != nil {
		s.logger.Error().Err(err).Str("action", string(ch.action)).Msg("save failed, change discarded")
		return err
	}
	s.data = next
	s.record(ctx, ch)
	return nil
}

// mutateProfile is mutate scoped to one profile. It returns the profile as
// committed.
func (s *Service) mutateProfile(ctx context.Context, id string, fn func(p *rotation.Profile) (change, error)) (rotation.Profile, error) {
	var out rotation.Profile
	err := s.mutate(ctx, func(c *rotation.Collection) (change, error) {
		i := c.Index(id)
		if i < 0 {
			return change{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
		}
		ch, err := fn(&c.Profiles[i])
		if err != nil {
			return change{}, err
		}
		ch.profileID = id
		out = c.Profiles[i].Clone()
		return ch, nil
	})
	if err != nil {
		return rotation.Profile{}, err
	}
	return out, nil
}

// record appends to the audit log. Audit failures are logged, not returned:
// the change itself is already saved.
func (s *Service) record(ctx context.Context, ch change) {
	s.logger.Debug().
		Str("action", string(ch.action)).
		Str("profile_id", ch.profileID).
		Msg("profiles changed")
	if s.audit == nil {
		return
	}
	entry := generic.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC(),
		Action:    ch.action,
		ProfileID: ch.profileID,
		Payload:   ch.payload,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", string(ch.action)).Msg("audit append failed")
	}
}
