package rotation

import (
	"fmt"

	"github.com/warp/permiplan/generic"
)

// InvalidEndDateError is returned when an edited end date precedes the start
// of the block. The block keeps its previous duration.
type InvalidEndDateError struct {
	Start generic.TimePoint
	End   generic.TimePoint
}

func (e *InvalidEndDateError) Error() string {
	return fmt.Sprintf("end date %s is before block start %s", e.End, e.Start)
}

func (e *InvalidEndDateError) Unwrap() error {
	return generic.ErrInvalidPeriod
}
