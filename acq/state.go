package acq

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// ObjectType classifies the currently identified object. Values are stored
// as-is; callers are trusted to pass a recognized classification.
type ObjectType int

const (
	ObjectUnacquired ObjectType = iota
	ObjectCube
	ObjectBall
)

func (t ObjectType) String() string {
	switch t {
	case ObjectUnacquired:
		return "UNACQUIRED"
	case ObjectCube:
		return "CUBE"
	case ObjectBall:
		return "BALL"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrDisplayNotAttached is returned by box acquisitions when the session
	// was created without a status display.
	ErrDisplayNotAttached = errors.New("status display is not attached")
	// ErrControllerNotAttached is returned by Begin* when the session was
	// created without a motion controller.
	ErrControllerNotAttached = errors.New("motion controller is not attached")
	// ErrProcedureNotRunning is returned by Halt* when the slot is idle.
	ErrProcedureNotRunning = errors.New("procedure is not running")
)

// The object counts as delivered once its box overlaps the target box this much.
const objectAtTargetIoU = 0.25

// Calibration carries the expected box areas established during calibration,
// plus the validity threshold applied to the acquisition score.
type Calibration struct {
	RobotArea  float64
	ObjectArea float64
	ScoreSigma float64
}

// TrackingState is the per-session state of the vision-guided acquisition
// loop: the latest robot/object/target boxes with their freshness, the wall
// set, the accumulated traversal path and the two motion procedure slots
// driven by it.
//
// All mutating entry points assume a single owner goroutine. Procedures
// started by Begin* run on their own goroutine; the only cross-goroutine
// contract is start/stop signaling.
type TrackingState struct {
	robot  boxSlot
	object boxSlot
	target Rectangle

	walls *WallSet
	path  []Point

	trackingRobot  bool
	trackingObject bool
	acquireWalls   bool
	objectType     ObjectType

	calib      Calibration
	controller MotionController

	robotLabel  Label
	objectLabel Label

	traversal  *Procedure
	objectMove *ObjectMoveProcedure
}

// NewTrackingState creates an empty session. Display and controller may be
// nil; the operations that need them then fail with a typed error. Labels for
// the robot and object centers are attached to the display up front.
func NewTrackingState(display StatusDisplay, controller MotionController, calib Calibration) *TrackingState {
	s := &TrackingState{
		calib:      calib,
		controller: controller,
		objectType: ObjectUnacquired,
	}
	if display != nil {
		s.robotLabel = display.AddLabel(centerText(Rectangle{}, "Robot"))
		s.objectLabel = display.AddLabel(centerText(Rectangle{}, "Object"))
	}
	return s
}

// AcquireRobotBox registers a freshly detected robot bounding box and pushes
// the new center to the status display.
func (s *TrackingState) AcquireRobotBox(robotBox Rectangle) error {
	if s.robotLabel == nil {
		return ErrDisplayNotAttached
	}
	s.robotLabel.SetText(centerText(robotBox, "Robot"))
	if err := s.robot.acquire(robotBox); err != nil {
		return errors.Wrap(err, "Can't acquire robot box")
	}
	return nil
}

// AcquireObjectBox registers a freshly detected object bounding box and
// pushes the new center to the status display.
func (s *TrackingState) AcquireObjectBox(objectBox Rectangle) error {
	if s.objectLabel == nil {
		return ErrDisplayNotAttached
	}
	s.objectLabel.SetText(centerText(objectBox, "Object"))
	if err := s.object.acquire(objectBox); err != nil {
		return errors.Wrap(err, "Can't acquire object box")
	}
	return nil
}

// AcquireTargetBox overwrites the designated goal location. The target has no
// freshness tracking and no display side effect.
func (s *TrackingState) AcquireTargetBox(targetBox Rectangle) {
	s.target = targetBox
}

// AcquireWalls stores a reference to the detector-owned wall set. The
// geometry is not copied and never mutated here.
func (s *TrackingState) AcquireWalls(walls *WallSet) {
	s.walls = walls
}

// Walls returns the currently referenced wall set, nil if none was acquired.
func (s *TrackingState) Walls() *WallSet {
	return s.walls
}

// GetRobotBox returns the stored robot rectangle for in-place use. With
// consume set, the robot box's freshness is cleared as a side effect.
func (s *TrackingState) GetRobotBox(consume bool) *Rectangle {
	return s.robot.get(consume)
}

// GetObjectBox returns the stored object rectangle for in-place use. With
// consume set, the object box's freshness is cleared as a side effect.
func (s *TrackingState) GetObjectBox(consume bool) *Rectangle {
	return s.object.get(consume)
}

// GetTargetBox returns the stored target rectangle for in-place use.
func (s *TrackingState) GetTargetBox() *Rectangle {
	return &s.target
}

// IsRobotBoxFresh reports whether the robot box has not been consumed yet.
func (s *TrackingState) IsRobotBoxFresh() bool {
	return s.robot.fresh
}

// IsObjectBoxFresh reports whether the object box has not been consumed yet.
func (s *TrackingState) IsObjectBoxFresh() bool {
	return s.object.fresh
}

// IsRobotBoxValid reports whether the stored robot box scores under the
// calibrated validity threshold.
func (s *TrackingState) IsRobotBoxValid() bool {
	return AcquisitionScore(s.robot.rect, s.calib.RobotArea) < s.calib.ScoreSigma
}

// IsObjectBoxValid reports whether the stored object box scores under the
// calibrated validity threshold.
func (s *TrackingState) IsObjectBoxValid() bool {
	return AcquisitionScore(s.object.rect, s.calib.ObjectArea) < s.calib.ScoreSigma
}

// RobotCenterEstimate returns the Kalman-smoothed robot center.
func (s *TrackingState) RobotCenterEstimate() Point {
	return s.robot.center
}

// ObjectCenterEstimate returns the Kalman-smoothed object center.
func (s *TrackingState) ObjectCenterEstimate() Point {
	return s.object.center
}

// IsObjectAtTarget reports whether the tracked object's box overlaps the
// target box enough to count as delivered.
func (s *TrackingState) IsObjectAtTarget() bool {
	return IoU(s.object.rect, s.target) > objectAtTargetIoU
}

func (s *TrackingState) IsTrackingRobot() bool {
	return s.trackingRobot
}

func (s *TrackingState) IsTrackingObject() bool {
	return s.trackingObject
}

func (s *TrackingState) SetTrackingRobot(trackingRobot bool) {
	s.trackingRobot = trackingRobot
}

func (s *TrackingState) SetTrackingObject(trackingObject bool) {
	s.trackingObject = trackingObject
}

func (s *TrackingState) IsAcquiringWalls() bool {
	return s.acquireWalls
}

func (s *TrackingState) SetAcquireWalls(acquireWalls bool) {
	s.acquireWalls = acquireWalls
}

func (s *TrackingState) ObjectType() ObjectType {
	return s.objectType
}

func (s *TrackingState) SetObjectType(objectType ObjectType) {
	s.objectType = objectType
}

// ClearPath empties the accumulated path.
func (s *TrackingState) ClearPath() {
	s.path = s.path[:0]
}

// AppendPath appends one point to the accumulated path. Order is preserved
// and significant (traversal order).
func (s *TrackingState) AppendPath(x, y float64) {
	s.path = append(s.path, Point{X: x, Y: y})
}

// GetPath returns the accumulated path. Be careful: this is not a copy of the
// path, but a reference to it.
func (s *TrackingState) GetPath() []Point {
	return s.path
}

// PathLength returns the total length of the accumulated path.
func (s *TrackingState) PathLength() float64 {
	total := 0.0
	for i := 1; i < len(s.path); i++ {
		a := r2.Vec{X: s.path[i-1].X, Y: s.path[i-1].Y}
		b := r2.Vec{X: s.path[i].X, Y: s.path[i].Y}
		total += r2.Norm(r2.Sub(b, a))
	}
	return total
}

// BeginTraversal starts a traversal procedure over a snapshot of the current
// path. A procedure already occupying the slot is stopped and joined first,
// so at most one traversal is ever alive.
func (s *TrackingState) BeginTraversal() error {
	if s.controller == nil {
		return ErrControllerNotAttached
	}
	if s.traversal != nil {
		s.traversal.Stop()
	}
	s.traversal = NewProcedure(s.controller, s.path)
	s.traversal.Start()
	return nil
}

// HaltTraversal stops the active traversal procedure and waits for its
// goroutine to finish, leaving the slot ready for a new BeginTraversal.
func (s *TrackingState) HaltTraversal() error {
	if s.traversal == nil {
		return ErrProcedureNotRunning
	}
	s.traversal.Stop()
	err := s.traversal.Err()
	s.traversal = nil
	return err
}

// BeginObjectMove starts an object-move procedure over a snapshot of the
// current path, independent of the traversal slot.
func (s *TrackingState) BeginObjectMove() error {
	if s.controller == nil {
		return ErrControllerNotAttached
	}
	if s.objectMove != nil {
		s.objectMove.Stop()
	}
	s.objectMove = NewObjectMoveProcedure(s.controller, s.path)
	s.objectMove.Start()
	return nil
}

// HaltObjectMove stops the active object-move procedure and waits for its
// goroutine to finish.
func (s *TrackingState) HaltObjectMove() error {
	if s.objectMove == nil {
		return ErrProcedureNotRunning
	}
	s.objectMove.Stop()
	err := s.objectMove.Err()
	s.objectMove = nil
	return err
}
