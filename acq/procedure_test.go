package acq

import (
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type fakeController struct {
	mu         sync.Mutex
	moves      []Point
	events     []string
	moveErr    error
	gripErr    error
	releaseErr error
	onMove     func(n int)
}

func (c *fakeController) MoveTo(p Point) error {
	c.mu.Lock()
	c.moves = append(c.moves, p)
	c.events = append(c.events, "move")
	n := len(c.moves)
	hook := c.onMove
	err := c.moveErr
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return err
}

func (c *fakeController) Grip() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, "grip")
	return c.gripErr
}

func (c *fakeController) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, "release")
	return c.releaseErr
}

func (c *fakeController) snapshotMoves() []Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	moves := make([]Point, len(c.moves))
	copy(moves, c.moves)
	return moves
}

func (c *fakeController) snapshotEvents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]string, len(c.events))
	copy(events, c.events)
	return events
}

func TestTraversalVisitsWaypointsInOrder(t *testing.T) {
	controller := &fakeController{}
	path := []Point{{0, 0}, {5, 0}, {10, 5}}
	procedure := NewProcedure(controller, path)
	procedure.Start()
	<-procedure.Done()
	if err := procedure.Err(); err != nil {
		t.Error(err)
		return
	}
	moves := controller.snapshotMoves()
	if len(moves) != len(path) {
		t.Errorf("Wrong number of moves: %d, expected %d", len(moves), len(path))
		return
	}
	for i := range path {
		if moves[i] != path[i] {
			t.Errorf("Wrong move at %d: %v, expected %v", i, moves[i], path[i])
		}
	}
}

func TestTraversalSubdividesLongSegments(t *testing.T) {
	controller := &fakeController{}
	procedure := NewProcedure(controller, []Point{{0, 0}, {100, 0}})
	procedure.Start()
	<-procedure.Done()
	if err := procedure.Err(); err != nil {
		t.Error(err)
		return
	}
	expected := []Point{{0, 0}, {20, 0}, {40, 0}, {60, 0}, {80, 0}, {100, 0}}
	moves := controller.snapshotMoves()
	if len(moves) != len(expected) {
		t.Errorf("Wrong number of moves: %d, expected %d", len(moves), len(expected))
		return
	}
	for i := range expected {
		if math.Abs(moves[i].X-expected[i].X) > eps || math.Abs(moves[i].Y-expected[i].Y) > eps {
			t.Errorf("Wrong move at %d: %v, expected %v", i, moves[i], expected[i])
		}
	}
}

func TestTraversalSnapshotsPath(t *testing.T) {
	controller := &fakeController{}
	path := []Point{{0, 0}, {5, 0}}
	procedure := NewProcedure(controller, path)
	// Mutating the caller's path after construction must not affect the run.
	path[1] = Point{1000, 1000}
	procedure.Start()
	<-procedure.Done()
	moves := controller.snapshotMoves()
	if len(moves) != 2 || moves[1] != (Point{5, 0}) {
		t.Errorf("Procedure must run over a snapshot of the path, got %v", moves)
	}
}

func TestTraversalStopBeforeStart(t *testing.T) {
	controller := &fakeController{}
	procedure := NewProcedure(controller, []Point{{0, 0}, {5, 0}})
	close(procedure.stop)
	procedure.Start()
	<-procedure.Done()
	if len(controller.snapshotMoves()) != 0 {
		t.Error("A stopped procedure must not issue any command")
	}
}

func TestTraversalStopMidRun(t *testing.T) {
	controller := &fakeController{}
	procedure := NewProcedure(controller, []Point{{0, 0}, {5, 0}, {10, 0}, {15, 0}})
	controller.onMove = func(n int) {
		if n == 2 {
			close(procedure.stop)
		}
	}
	procedure.Start()
	<-procedure.Done()
	if err := procedure.Err(); err != nil {
		t.Error(err)
		return
	}
	if len(controller.snapshotMoves()) != 2 {
		t.Errorf("Wrong number of moves after stop: %d, expected 2", len(controller.snapshotMoves()))
	}
}

func TestTraversalCommandError(t *testing.T) {
	controller := &fakeController{moveErr: errors.New("motor stalled")}
	procedure := NewProcedure(controller, []Point{{0, 0}, {5, 0}, {10, 0}})
	procedure.Start()
	<-procedure.Done()
	if procedure.Err() == nil {
		t.Error("Command failure must surface through Err")
	}
	if len(controller.snapshotMoves()) != 1 {
		t.Errorf("A failed command must abort the path, got %d moves", len(controller.snapshotMoves()))
	}
}

func TestProcedureStopJoinsAndIsIdempotent(t *testing.T) {
	controller := &fakeController{}
	procedure := NewProcedure(controller, []Point{{0, 0}})
	procedure.Start()
	procedure.Stop()
	procedure.Stop()
	select {
	case <-procedure.Done():
	default:
		t.Error("Stop must wait for the run goroutine to finish")
	}
}

func TestProcedureHasID(t *testing.T) {
	procedure := NewProcedure(&fakeController{}, nil)
	if procedure.ID() == uuid.Nil {
		t.Error("Procedure must carry an identifier")
	}
	move := NewObjectMoveProcedure(&fakeController{}, nil)
	if move.ID() == uuid.Nil {
		t.Error("Object-move procedure must carry an identifier")
	}
}

func TestObjectMoveBracketsTraversal(t *testing.T) {
	controller := &fakeController{}
	procedure := NewObjectMoveProcedure(controller, []Point{{0, 0}, {5, 0}})
	procedure.Start()
	<-procedure.Done()
	if err := procedure.Err(); err != nil {
		t.Error(err)
		return
	}
	expected := []string{"grip", "move", "move", "release"}
	events := controller.snapshotEvents()
	if len(events) != len(expected) {
		t.Errorf("Wrong events: %v, expected %v", events, expected)
		return
	}
	for i := range expected {
		if events[i] != expected[i] {
			t.Errorf("Wrong events: %v, expected %v", events, expected)
			return
		}
	}
}

func TestObjectMoveReleasesOnHalt(t *testing.T) {
	controller := &fakeController{}
	procedure := NewObjectMoveProcedure(controller, []Point{{0, 0}, {5, 0}})
	close(procedure.stop)
	procedure.Start()
	<-procedure.Done()
	events := controller.snapshotEvents()
	if len(events) != 2 || events[0] != "grip" || events[1] != "release" {
		t.Errorf("Halted object move must still release, got events %v", events)
	}
}

func TestObjectMoveGripError(t *testing.T) {
	controller := &fakeController{gripErr: errors.New("gripper jammed")}
	procedure := NewObjectMoveProcedure(controller, []Point{{0, 0}})
	procedure.Start()
	<-procedure.Done()
	if procedure.Err() == nil {
		t.Error("Grip failure must surface through Err")
	}
	if len(controller.snapshotMoves()) != 0 {
		t.Error("Grip failure must abort before any move")
	}
}

func TestBeginHaltBeginTraversal(t *testing.T) {
	controller := &fakeController{}
	state := NewTrackingState(&fakeDisplay{}, controller, testCalibration())
	state.AppendPath(0, 0)
	state.AppendPath(5, 0)
	if err := state.BeginTraversal(); err != nil {
		t.Error(err)
		return
	}
	if err := state.HaltTraversal(); err != nil {
		t.Error(err)
		return
	}
	if err := state.BeginTraversal(); err != nil {
		t.Error(err)
		return
	}
	if err := state.HaltTraversal(); err != nil {
		t.Error(err)
		return
	}
}

func TestHaltWithoutBegin(t *testing.T) {
	state := NewTrackingState(&fakeDisplay{}, &fakeController{}, testCalibration())
	if err := state.HaltTraversal(); err != ErrProcedureNotRunning {
		t.Errorf("Wrong error: %v, expected %v", err, ErrProcedureNotRunning)
	}
	if err := state.HaltObjectMove(); err != ErrProcedureNotRunning {
		t.Errorf("Wrong error: %v, expected %v", err, ErrProcedureNotRunning)
	}
}

func TestBeginWithoutController(t *testing.T) {
	state := NewTrackingState(&fakeDisplay{}, nil, testCalibration())
	if err := state.BeginTraversal(); err != ErrControllerNotAttached {
		t.Errorf("Wrong error: %v, expected %v", err, ErrControllerNotAttached)
	}
	if err := state.BeginObjectMove(); err != ErrControllerNotAttached {
		t.Errorf("Wrong error: %v, expected %v", err, ErrControllerNotAttached)
	}
}

func TestBeginTraversalReplacesRunning(t *testing.T) {
	controller := &fakeController{}
	state := NewTrackingState(&fakeDisplay{}, controller, testCalibration())
	state.AppendPath(0, 0)
	if err := state.BeginTraversal(); err != nil {
		t.Error(err)
		return
	}
	// Beginning again stops and replaces the previous procedure.
	if err := state.BeginTraversal(); err != nil {
		t.Error(err)
		return
	}
	if err := state.HaltTraversal(); err != nil {
		t.Error(err)
		return
	}
}

func TestTraversalAndObjectMoveIndependent(t *testing.T) {
	controller := &fakeController{}
	state := NewTrackingState(&fakeDisplay{}, controller, testCalibration())
	state.AppendPath(0, 0)
	if err := state.BeginTraversal(); err != nil {
		t.Error(err)
		return
	}
	if err := state.BeginObjectMove(); err != nil {
		t.Error(err)
		return
	}
	if err := state.HaltObjectMove(); err != nil {
		t.Error(err)
		return
	}
	if err := state.HaltTraversal(); err != nil {
		t.Error(err)
		return
	}
}
