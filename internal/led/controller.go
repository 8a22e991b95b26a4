// Package led drives a board status LED from the camera's state.
package led

// Pattern is how an LED is lit.
type Pattern string

// Patterns understood by every controller.
const (
	PatternOff   Pattern = "off"
	PatternSolid Pattern = "solid"
	PatternBlink Pattern = "blink"
)

// Controller abstracts LED hardware across boards.
type Controller interface {
	// Set lights the named LED with p.
	Set(name string, p Pattern) error
	// Available lists the LED names this board exposes.
	Available() []string
}
