package acq

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// Acquisitions arrive once per processed camera frame.
const slotFilterDt = 1.0 / 25.0

// boxSlot holds the latest acquired bounding box for one tracked entity, the
// flag telling whether that box has been consumed yet, and a Kalman-smoothed
// estimate of the entity's center across acquisitions.
type boxSlot struct {
	rect   Rectangle
	fresh  bool
	center Point
	filter *kalman_filter.Kalman2D
}

// acquire overwrites the stored rectangle, marks the slot fresh and feeds the
// new center through the slot's filter.
func (s *boxSlot) acquire(rect Rectangle) error {
	s.rect = rect
	s.fresh = true

	c := rect.Center()
	if s.filter == nil {
		/* Kalman filter props */
		ux := 1.0
		uy := 1.0
		stdDevA := 2.0
		stdDevMx := 0.1
		stdDevMy := 0.1
		s.filter = kalman_filter.NewKalman2D(slotFilterDt, ux, uy, stdDevA, stdDevMx, stdDevMy, kalman_filter.WithState2D(c.X, c.Y))
		s.center = c
		return nil
	}
	s.filter.Predict()
	if err := s.filter.Update(c.X, c.Y); err != nil {
		return errors.Wrap(err, "Can't update center filter")
	}
	stateX, stateY := s.filter.GetState()
	s.center = Point{X: stateX, Y: stateY}
	return nil
}

// get returns the stored rectangle for in-place use. Freshness can only go
// from true to false here, and only when consume is set.
func (s *boxSlot) get(consume bool) *Rectangle {
	s.fresh = s.fresh && !consume
	return &s.rect
}
