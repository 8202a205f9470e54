package strokesynth

import (
	"io"
	"os"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// midiTicksPerQuarter is the SMF resolution used for export.
const midiTicksPerQuarter = 480

// ExportMIDI writes the recorded notes as a single-track standard MIDI
// file. Each instrument plays on its own channel with its General MIDI
// program; note on/off pairs preserve the recorded timestamps, durations
// and velocities. Empty input returns ErrNoEvents, matching the WAV
// export contract.
func ExportMIDI(w io.Writer, events []NoteEvent, bpm int) error {
	if len(events) == 0 {
		return ErrNoEvents
	}
	if bpm <= 0 {
		bpm = 120
	}
	ticks := smf.MetricTicks(midiTicksPerQuarter)

	type timedMsg struct {
		tick uint32
		msg  midi.Message
	}
	var msgs []timedMsg

	channels := map[Instrument]uint8{}
	for _, ev := range events {
		ch, ok := channels[ev.Instrument]
		if !ok {
			ch = uint8(len(channels))
			channels[ev.Instrument] = ch
			msgs = append(msgs, timedMsg{0, midi.ProgramChange(ch, ev.Instrument.Info().Program)})
		}
		on := ticks.Ticks(float64(bpm), time.Duration(ev.Timestamp*float64(time.Second)))
		off := on + ticks.Ticks(float64(bpm), time.Duration(ev.DurationMS)*time.Millisecond)
		note := uint8(clampMIDI(ev.Note))
		vel := uint8(clampMIDI(ev.Velocity))
		msgs = append(msgs,
			timedMsg{on, midi.NoteOn(ch, note, vel)},
			timedMsg{off, midi.NoteOff(ch, note)},
		)
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].tick < msgs[j].tick })

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(float64(bpm)))
	prev := uint32(0)
	for _, m := range msgs {
		tr.Add(m.tick-prev, m.msg)
		prev = m.tick
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = ticks
	s.Add(tr)
	_, err := s.WriteTo(w)
	return err
}

// ExportMIDIFile is ExportMIDI to a file path.
func (e *Engine) ExportMIDIFile(path string, events []NoteEvent) error {
	if events == nil {
		events = e.RecordedNotes()
	}
	if len(events) == 0 {
		return ErrNoEvents
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ExportMIDI(f, events, e.cfg.BPM); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func clampMIDI(v int) int {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return v
}
