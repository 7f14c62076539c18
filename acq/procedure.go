package acq

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// MotionController executes the low-level commands procedures issue.
// Implementations must be safe to call from the procedure's goroutine.
type MotionController interface {
	// MoveTo drives the robot toward the given frame/world coordinate.
	MoveTo(p Point) error
	// Grip closes on the object before an object move.
	Grip() error
	// Release lets go of the object after an object move.
	Release() error
}

// maxStepLen bounds the distance covered by a single MoveTo command; longer
// path segments are subdivided.
const maxStepLen = 20.0

// Procedure drives the motion controller through a path on its own
// goroutine. It is exclusively owned by the slot that started it; Stop is the
// only entry point meant for another goroutine.
type Procedure struct {
	id         uuid.UUID
	controller MotionController
	waypoints  []Point

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu  sync.Mutex
	err error
}

// NewProcedure creates a traversal procedure over a snapshot of path, so
// later ClearPath/AppendPath calls cannot race with the run.
func NewProcedure(controller MotionController, path []Point) *Procedure {
	return &Procedure{
		id:         uuid.New(),
		controller: controller,
		waypoints:  snapshotPath(path),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// ID returns the procedure's identifier.
func (p *Procedure) ID() uuid.UUID {
	return p.id
}

// Start launches the run goroutine.
func (p *Procedure) Start() {
	go p.run()
}

// Stop requests a cooperative stop and waits for the run goroutine to finish.
// Safe to call more than once.
func (p *Procedure) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

// Done is closed once the run goroutine has finished.
func (p *Procedure) Done() <-chan struct{} {
	return p.done
}

// Err reports the first command failure, if any. Stable once Done is closed.
func (p *Procedure) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Procedure) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *Procedure) run() {
	defer close(p.done)
	p.setErr(p.traverse())
}

// traverse walks the waypoints in order. A requested stop is honored between
// commands; a failed command aborts the rest of the path.
func (p *Procedure) traverse() error {
	for i, waypoint := range p.waypoints {
		steps := []Point{waypoint}
		if i > 0 {
			steps = subdivide(p.waypoints[i-1], waypoint)
		}
		for _, step := range steps {
			select {
			case <-p.stop:
				return nil
			default:
			}
			if err := p.controller.MoveTo(step); err != nil {
				return errors.Wrapf(err, "Can't move to (%v, %v)", step.X, step.Y)
			}
		}
	}
	return nil
}

// ObjectMoveProcedure relocates the tracked object along a path: grip,
// traverse, release. The release also happens when the run is halted
// mid-path, so the object is never left held.
type ObjectMoveProcedure struct {
	Procedure
}

// NewObjectMoveProcedure creates an object-move procedure over a snapshot of
// path.
func NewObjectMoveProcedure(controller MotionController, path []Point) *ObjectMoveProcedure {
	return &ObjectMoveProcedure{Procedure{
		id:         uuid.New(),
		controller: controller,
		waypoints:  snapshotPath(path),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}}
}

// Start launches the run goroutine.
func (p *ObjectMoveProcedure) Start() {
	go p.run()
}

func (p *ObjectMoveProcedure) run() {
	defer close(p.done)
	p.setErr(p.moveObject())
}

func (p *ObjectMoveProcedure) moveObject() error {
	if err := p.controller.Grip(); err != nil {
		return errors.Wrap(err, "Can't grip object")
	}
	traverseErr := p.traverse()
	if err := p.controller.Release(); err != nil && traverseErr == nil {
		return errors.Wrap(err, "Can't release object")
	}
	return traverseErr
}

func snapshotPath(path []Point) []Point {
	waypoints := make([]Point, len(path))
	copy(waypoints, path)
	return waypoints
}

// subdivide splits the segment from a to b into steps of at most maxStepLen,
// always ending exactly on b.
func subdivide(a, b Point) []Point {
	va := r2.Vec{X: a.X, Y: a.Y}
	vb := r2.Vec{X: b.X, Y: b.Y}
	d := r2.Sub(vb, va)
	length := r2.Norm(d)
	if length <= maxStepLen {
		return []Point{b}
	}
	n := int(math.Ceil(length / maxStepLen))
	steps := make([]Point, 0, n)
	for k := 1; k < n; k++ {
		v := r2.Add(va, r2.Scale(float64(k)/float64(n), d))
		steps = append(steps, Point{X: v.X, Y: v.Y})
	}
	return append(steps, b)
}
