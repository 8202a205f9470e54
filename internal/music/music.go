package music

import (
	"fmt"
	"math"
)

// Gesture-to-music mapping constants. The playable range is C3..C6;
// durations and velocities are linear maps over the input ranges.
const (
	MinNote = 48
	MaxNote = 84

	MinDurationMS = 100
	MaxDurationMS = 500

	MinVelocity = 30
	MaxVelocity = 127

	MinThickness = 3
	MaxThickness = 30

	// HeaderHeight is the non-paintable strip at the top of the canvas;
	// Y values inside it clamp to the shortest duration.
	HeaderHeight = 60
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteToFreq converts a MIDI note number to a frequency in Hz (A4 = 69 = 440Hz).
func NoteToFreq(note int) float64 {
	return 440.0 * math.Pow(2, float64(note-69)/12.0)
}

// NoteName returns the conventional name of a MIDI note, e.g. 60 -> "C4".
func NoteName(note int) string {
	octave := note/12 - 1
	return fmt.Sprintf("%s%d", noteNames[((note%12)+12)%12], octave)
}

// MapXToNote maps a horizontal canvas position onto the playable note range.
func MapXToNote(x, width int) int {
	if width <= 0 {
		width = 640
	}
	x = clamp(x, 0, width-1)
	return MinNote + int(float64(x)/float64(width)*float64(MaxNote-MinNote))
}

// MapYToDuration maps a vertical position to a note duration in
// milliseconds. Top of the canvas is short, bottom is long.
func MapYToDuration(y, height int) int {
	if height <= HeaderHeight {
		height = 480
	}
	y = clamp(y, HeaderHeight, height-1)
	ratio := float64(y-HeaderHeight) / float64(height-HeaderHeight)
	return MinDurationMS + int(ratio*float64(MaxDurationMS-MinDurationMS))
}

// MapThicknessToVelocity maps brush thickness to a MIDI velocity.
func MapThicknessToVelocity(thickness int) int {
	thickness = clamp(thickness, MinThickness, MaxThickness)
	ratio := float64(thickness-MinThickness) / float64(MaxThickness-MinThickness)
	return MinVelocity + int(ratio*float64(MaxVelocity-MinVelocity))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
