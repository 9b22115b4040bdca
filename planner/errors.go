package planner

import (
	"fmt"

	"github.com/warp/permiplan/generic"
)

var (
	ErrProfileNotFound = fmt.Errorf("profile: %w", generic.ErrEntityNotFound)
	ErrBlockNotFound   = fmt.Errorf("block: %w", generic.ErrEntityNotFound)
	ErrHolidayNotFound = fmt.Errorf("holiday: %w", generic.ErrEntityNotFound)
	ErrPresetNotFound  = fmt.Errorf("preset: %w", generic.ErrEntityNotFound)

	// ErrLastProfile is returned when deleting the only remaining profile.
	ErrLastProfile = fmt.Errorf("%w: cannot delete the last profile", generic.ErrConflict)

	// ErrProtectedBlock is returned when removing the closing annual leave.
	ErrProtectedBlock = fmt.Errorf("%w: the final leave block cannot be removed", generic.ErrConflict)

	ErrInvalidHoliday = fmt.Errorf("%w: holiday needs a name and a date", generic.ErrInvalidInput)
	ErrInvalidKind    = fmt.Errorf("%w: block kind must be work, rest or leave", generic.ErrInvalidInput)
	ErrInvalidProfile = fmt.Errorf("%w: invalid profile settings", generic.ErrInvalidInput)
)
