package acq

import "fmt"

// Label is a single status line on the display; SetText replaces its content.
type Label interface {
	SetText(text string)
}

// StatusDisplay renders session status lines. AddLabel allocates a new line
// with the given initial text and returns the handle used to update it.
type StatusDisplay interface {
	AddLabel(initial string) Label
}

// centerText formats a box center for the status display.
func centerText(rect Rectangle, label string) string {
	c := rect.Center()
	return fmt.Sprintf("%6s: (%6.1f , %6.1f )", label, c.X, c.Y)
}
