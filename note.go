package strokesynth

// NoteEvent is one recorded trigger. Timestamps are seconds relative to
// the start of the recording and strictly increase within one session.
type NoteEvent struct {
	Note       int        // MIDI note 0-127
	Velocity   int        // 0-127
	DurationMS int        // note length in milliseconds
	Instrument Instrument
	Timestamp  float64 // seconds since recording start
	X, Y       int     // canvas position that produced the note
}

// SequenceEvent is one scheduled replay trigger, produced in bulk by the
// sequencer and consumed once in ascending time order.
type SequenceEvent struct {
	Time       float64 // seconds from playback start
	Note       int
	Velocity   int
	Duration   float64 // seconds
	Instrument Instrument
	X, Y       int
}
