package acq

// Wall is a single wall segment in frame coordinates, as produced by the
// upstream detector.
type Wall struct {
	P0 Point
	P1 Point
}

// WallSet is the detector-owned collection of wall geometry. The tracking
// state keeps a reference to a WallSet and never mutates it; the producer
// retains ownership and must keep it alive at least as long as the session.
type WallSet struct {
	Walls []Wall
}
