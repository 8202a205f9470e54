package strokesynth

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"strokesynth/internal/music"
	"strokesynth/internal/synth"
)

// ErrNoEvents is returned when an export is asked to render zero notes;
// no degenerate file is ever produced.
var ErrNoEvents = errors.New("no note events to export")

// exportTailSeconds pads the render past the final note's release.
const exportTailSeconds = 0.5

// RenderEvents offline-renders a note timeline into one mono stream:
// each note renders independently through the synthesis path honoring
// its own instrument, velocity and duration, and mixes additively at its
// sample offset. The result is normalized to a 0.9 peak.
func RenderEvents(events []NoteEvent) ([]float64, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	last := events[len(events)-1]
	total := last.Timestamp + float64(last.DurationMS)/1000.0 + exportTailSeconds
	buf := make([]float64, int(total*synth.SampleRate))

	for _, ev := range events {
		note := synth.RenderNote(
			ev.Instrument.Info().Wave,
			music.NoteToFreq(ev.Note),
			float64(ev.DurationMS)/1000.0,
			ev.Velocity,
		)
		start := int(ev.Timestamp * synth.SampleRate)
		if start >= len(buf) {
			continue
		}
		if start+len(note) > len(buf) {
			note = note[:len(buf)-start]
		}
		for i, s := range note {
			buf[start+i] += s
		}
	}

	var peak float64
	for _, s := range buf {
		if a := abs64(s); a > peak {
			peak = a
		}
	}
	if peak > 0 {
		g := 0.9 / peak
		for i := range buf {
			buf[i] *= g
		}
	}
	return buf, nil
}

// EncodeWAV16 writes a standard uncompressed stereo 16-bit PCM WAV; the
// mono render is duplicated to both channels.
func EncodeWAV16(w io.Writer, samples []float64, sampleRate int) error {
	const channels = 2
	dataSize := len(samples) * channels * 2
	header := make([]byte, 44)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+dataSize))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:], channels)
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(header[32:], channels*2)
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(dataSize))
	if _, err := w.Write(header); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	frame := make([]byte, 4)
	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := uint16(int16(s * 32767))
		binary.LittleEndian.PutUint16(frame[0:], v)
		binary.LittleEndian.PutUint16(frame[2:], v)
		if _, err := bw.Write(frame); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ExportWAV renders events (the current recording when events is nil)
// and writes the WAV stream. Empty input returns ErrNoEvents.
func (e *Engine) ExportWAV(w io.Writer, events []NoteEvent) error {
	if events == nil {
		events = e.RecordedNotes()
	}
	samples, err := RenderEvents(events)
	if err != nil {
		return err
	}
	return EncodeWAV16(w, samples, synth.SampleRate)
}

// ExportWAVFile is ExportWAV to a file path. A render failure leaves no
// file behind.
func (e *Engine) ExportWAVFile(path string, events []NoteEvent) error {
	if events == nil {
		events = e.RecordedNotes()
	}
	samples, err := RenderEvents(events)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV16(f, samples, synth.SampleRate); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// WriteRecordingText writes the delimited text recording format: header
// comments followed by one line per note.
func WriteRecordingText(w io.Writer, events []NoteEvent, scale music.Scale) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Stroke Synth Recording\n")
	fmt.Fprintf(bw, "# Notes: %d\n", len(events))
	fmt.Fprintf(bw, "# Scale: %s\n", scale)
	fmt.Fprintf(bw, "# Format: timestamp,note,velocity,duration,instrument,x,y\n")
	fmt.Fprintf(bw, "#==================================================\n")
	for _, ev := range events {
		fmt.Fprintf(bw, "%.3f,%d,%d,%d,%s,%d,%d\n",
			ev.Timestamp, ev.Note, ev.Velocity, ev.DurationMS, ev.Instrument, ev.X, ev.Y)
	}
	return bw.Flush()
}

// SaveRecording writes the current recording as delimited text. Write
// errors are returned, never fatal.
func (e *Engine) SaveRecording(w io.Writer) error {
	events := e.RecordedNotes()
	if len(events) == 0 {
		return ErrNoEvents
	}
	scale, _ := e.Scale()
	return WriteRecordingText(w, events, scale)
}

// SaveRecordingFile is SaveRecording to a file path.
func (e *Engine) SaveRecordingFile(path string) error {
	events := e.RecordedNotes()
	if len(events) == 0 {
		return ErrNoEvents
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	scale, _ := e.Scale()
	if err := WriteRecordingText(f, events, scale); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
