package strokesynth

import "strokesynth/internal/synth"

// Instrument identifies a timbre. The zero value is not valid; use Piano.
type Instrument string

const (
	Piano   Instrument = "piano"
	Guitar  Instrument = "guitar"
	Drums   Instrument = "drums"
	Synth   Instrument = "synth"
	Strings Instrument = "strings"
)

// InstrumentList is the cyclic switching order.
var InstrumentList = []Instrument{Piano, Guitar, Drums, Synth, Strings}

// InstrumentInfo describes a timbre for UIs and for MIDI export.
type InstrumentInfo struct {
	Key     Instrument
	Name    string
	Color   [3]uint8
	Program uint8 // General MIDI program
	Wave    synth.Waveform
}

var instrumentInfos = map[Instrument]InstrumentInfo{
	Piano:   {Key: Piano, Name: "Piano", Color: [3]uint8{255, 200, 100}, Program: 0, Wave: synth.Sine},
	Guitar:  {Key: Guitar, Name: "Guitar", Color: [3]uint8{100, 200, 255}, Program: 25, Wave: synth.Triangle},
	Drums:   {Key: Drums, Name: "Drums", Color: [3]uint8{100, 100, 255}, Program: 118, Wave: synth.Noise},
	Synth:   {Key: Synth, Name: "Synth", Color: [3]uint8{255, 100, 200}, Program: 81, Wave: synth.Square},
	Strings: {Key: Strings, Name: "Strings", Color: [3]uint8{100, 255, 150}, Program: 48, Wave: synth.Sawtooth},
}

// Info returns the instrument's metadata, defaulting to piano for
// unknown keys so a corrupt project still renders.
func (i Instrument) Info() InstrumentInfo {
	if info, ok := instrumentInfos[i]; ok {
		return info
	}
	return instrumentInfos[Piano]
}

// Valid reports whether i names a known instrument.
func (i Instrument) Valid() bool {
	_, ok := instrumentInfos[i]
	return ok
}
