package strokesynth

import (
	"sync"
	"testing"
	"time"
)

type fakeSink struct {
	mu      sync.Mutex
	volumes []float64
}

func (s *fakeSink) PlayPCM(pcm []byte, volume float64) {
	s.mu.Lock()
	s.volumes = append(s.volumes, volume)
	s.mu.Unlock()
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.volumes)
}

func (s *fakeSink) lastVolume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.volumes) == 0 {
		return -1
	}
	return s.volumes[len(s.volumes)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEngine(t *testing.T) (*Engine, *fakeSink, *fakeClock) {
	t.Helper()
	sink := &fakeSink{}
	e := NewEngine(DefaultConfig(), WithSink(sink))
	if !e.Ready() {
		t.Fatal("engine with injected sink should be ready")
	}
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e.now = clk.Now
	return e, sink, clk
}

func TestPlayNoteTriggers(t *testing.T) {
	e, sink, _ := newTestEngine(t)
	e.PlayNote(320, 240, 10)
	if sink.count() != 1 {
		t.Fatalf("plays = %d, want 1", sink.count())
	}
	if v := sink.lastVolume(); v <= 0 || v > 1 {
		t.Errorf("volume = %v, want in (0, 1]", v)
	}
}

func TestPlayNoteMinInterval(t *testing.T) {
	e, sink, clk := newTestEngine(t)
	e.PlayNote(100, 240, 10)
	// A second trigger inside the minimum interval is dropped even for a
	// different note.
	e.PlayNote(500, 240, 10)
	if sink.count() != 1 {
		t.Fatalf("plays = %d, want 1", sink.count())
	}
	clk.advance(25 * time.Millisecond)
	e.PlayNote(500, 240, 10)
	if sink.count() != 2 {
		t.Fatalf("plays = %d, want 2", sink.count())
	}
}

func TestPlayNoteSameNoteDebounce(t *testing.T) {
	e, sink, clk := newTestEngine(t)
	e.PlayNote(320, 240, 10)
	clk.advance(50 * time.Millisecond)
	e.PlayNote(320, 240, 10)
	if sink.count() != 1 {
		t.Fatalf("same note inside debounce: plays = %d, want 1", sink.count())
	}
	clk.advance(250 * time.Millisecond)
	e.PlayNote(320, 240, 10)
	if sink.count() != 2 {
		t.Fatalf("same note after debounce: plays = %d, want 2", sink.count())
	}
}

func TestPreviewTimePath(t *testing.T) {
	e, sink, clk := newTestEngine(t)
	if !e.PlayPreviewNote(100, 100, 10) {
		t.Fatal("first preview should fire")
	}
	// Too soon and too close: neither branch of the gate is satisfied.
	clk.advance(30 * time.Millisecond)
	if e.PlayPreviewNote(105, 100, 10) {
		t.Fatal("preview inside both thresholds should not fire")
	}
	// Enough time elapsed, still barely moved.
	clk.advance(55 * time.Millisecond)
	if !e.PlayPreviewNote(110, 100, 10) {
		t.Fatal("preview past the time threshold should fire")
	}
	if sink.count() != 2 {
		t.Fatalf("plays = %d, want 2", sink.count())
	}
}

func TestPreviewDistancePath(t *testing.T) {
	e, _, clk := newTestEngine(t)
	if !e.PlayPreviewNote(100, 100, 10) {
		t.Fatal("first preview should fire")
	}
	// Before the full interval but past the time floor, a large movement
	// fires the distance branch.
	clk.advance(25 * time.Millisecond)
	if !e.PlayPreviewNote(200, 100, 10) {
		t.Fatal("fast large movement should fire")
	}
}

func TestPreviewSameNoteDebounce(t *testing.T) {
	e, _, clk := newTestEngine(t)
	if !e.PlayPreviewNote(100, 100, 10) {
		t.Fatal("first preview should fire")
	}
	clk.advance(90 * time.Millisecond)
	if e.PlayPreviewNote(100, 100, 10) {
		t.Fatal("same note inside preview debounce should not fire")
	}
	clk.advance(90 * time.Millisecond)
	if !e.PlayPreviewNote(100, 100, 10) {
		t.Fatal("same note after preview debounce should fire")
	}
}

func TestResetPreviewState(t *testing.T) {
	e, _, clk := newTestEngine(t)
	e.PlayPreviewNote(100, 100, 10)
	clk.advance(5 * time.Millisecond)
	// A new stroke resets the gates; its first point fires immediately,
	// even at the same position.
	e.ResetPreviewState()
	if !e.PlayPreviewNote(100, 100, 10) {
		t.Fatal("first point of a new stroke should fire")
	}
}

func TestRecording(t *testing.T) {
	e, _, clk := newTestEngine(t)
	e.StartRecording()
	if !e.Recording() {
		t.Fatal("recording should be active")
	}
	e.PlayNote(100, 240, 10)
	clk.advance(300 * time.Millisecond)
	e.PlayNote(500, 240, 20)

	notes := e.StopRecording()
	if e.Recording() {
		t.Fatal("recording should have stopped")
	}
	if len(notes) != 2 {
		t.Fatalf("recorded %d notes, want 2", len(notes))
	}
	if notes[0].Timestamp != 0 {
		t.Errorf("first timestamp = %v, want 0", notes[0].Timestamp)
	}
	if got := notes[1].Timestamp; got < 0.29 || got > 0.31 {
		t.Errorf("second timestamp = %v, want ~0.3", got)
	}
	// The buffer stays available for export after stopping.
	if len(e.RecordedNotes()) != 2 {
		t.Errorf("RecordedNotes after stop = %d, want 2", len(e.RecordedNotes()))
	}
	// A new session clears it.
	e.StartRecording()
	if len(e.RecordedNotes()) != 0 {
		t.Error("StartRecording should clear the buffer")
	}
}

func TestToggleRecording(t *testing.T) {
	e, _, _ := newTestEngine(t)
	notes, recording := e.ToggleRecording()
	if notes != nil || !recording {
		t.Fatalf("first toggle = (%v, %v), want (nil, true)", notes, recording)
	}
	e.PlayNote(100, 240, 10)
	notes, recording = e.ToggleRecording()
	if recording {
		t.Fatal("second toggle should stop recording")
	}
	if len(notes) != 1 {
		t.Fatalf("toggle returned %d notes, want 1", len(notes))
	}
}

func TestSilentEngine(t *testing.T) {
	e := NewEngine(DefaultConfig(), WithSilent())
	if e.Ready() {
		t.Fatal("silent engine should not be ready")
	}
	// Every trigger is a safe no-op.
	e.PlayNote(100, 240, 10)
	if e.PlayPreviewNote(100, 240, 10) {
		t.Error("silent preview should not fire")
	}
	e.StepDrums(120)
	e.StepBass()
	e.PlayChord(60, 100)
	if e.StepMetronome(120, 4) {
		t.Error("silent metronome should not tick")
	}
	// Pure-data operations keep working.
	e.StartRecording()
	if !e.Recording() {
		t.Error("recording should work without a device")
	}
}

func TestTogglePlay(t *testing.T) {
	e, sink, _ := newTestEngine(t)
	if enabled := e.TogglePlay(); enabled {
		t.Fatal("first toggle should disable")
	}
	e.PlayNote(100, 240, 10)
	if sink.count() != 0 {
		t.Fatal("disabled engine should not play")
	}
	if enabled := e.TogglePlay(); !enabled {
		t.Fatal("second toggle should re-enable")
	}
	e.PlayNote(100, 240, 10)
	if sink.count() != 1 {
		t.Fatal("re-enabled engine should play")
	}
}

func TestSwitchInstrument(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if got := e.Instrument(); got != Piano {
		t.Fatalf("initial instrument = %s, want piano", got)
	}
	if got := e.SwitchInstrument(1); got != Guitar {
		t.Errorf("next = %s, want guitar", got)
	}
	if got := e.SwitchInstrument(-1); got != Piano {
		t.Errorf("previous = %s, want piano", got)
	}
	if got := e.SwitchInstrument(-1); got != Strings {
		t.Errorf("previous wraps to %s, want strings", got)
	}
	for i := 0; i < len(InstrumentList); i++ {
		e.SwitchInstrument(1)
	}
	if got := e.Instrument(); got != Strings {
		t.Errorf("full cycle = %s, want strings", got)
	}
}

func TestSetScaleAndRoot(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.SetScale("dorian")
	if scale, _ := e.Scale(); scale != DefaultConfig().Scale {
		t.Errorf("invalid scale changed state to %s", scale)
	}
	e.SetScale("blues")
	if scale, _ := e.Scale(); scale != "blues" {
		t.Errorf("scale = %s, want blues", scale)
	}
	e.SetRoot(200)
	if _, root := e.Scale(); root != DefaultConfig().Root {
		t.Errorf("out-of-range root changed state to %d", root)
	}
	e.SetRoot(57)
	if _, root := e.Scale(); root != 57 {
		t.Errorf("root = %d, want 57", root)
	}
}

func TestWaveform(t *testing.T) {
	e, _, _ := newTestEngine(t)
	snap := e.WaveformSnapshot()
	if len(snap) != WaveformSegments {
		t.Fatalf("snapshot len = %d, want %d", len(snap), WaveformSegments)
	}
	for _, v := range snap {
		if v != 0 {
			t.Fatal("initial waveform should be silent")
		}
	}
	e.PlayNote(320, 240, 20)
	snap = e.WaveformSnapshot()
	var energy float64
	for _, v := range snap {
		energy += v * v
	}
	if energy == 0 {
		t.Fatal("waveform should carry energy after a note")
	}
	e.DecayWaveform(0.5)
	decayed := e.WaveformSnapshot()
	var after float64
	for _, v := range decayed {
		after += v * v
	}
	if after >= energy {
		t.Errorf("decay did not attenuate: %v -> %v", energy, after)
	}
}

func TestAccompanimentLevels(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	e.SetAccompanimentLevel("off")
	e.StepDrums(120)
	e.StepBass()
	if sink.count() != 0 {
		t.Fatalf("level off: plays = %d, want 0", sink.count())
	}

	e.SetAccompanimentLevel("low")
	e.StepDrums(120)
	before := sink.count()
	if before == 0 {
		t.Fatal("level low: drums should play")
	}
	e.StepBass()
	if sink.count() != before {
		t.Fatal("level low: bass should stay silent")
	}

	e.SetAccompanimentLevel("high")
	e.StepBass()
	if sink.count() != before+1 {
		t.Fatalf("level high: bass should play, plays = %d", sink.count())
	}
}

func TestStepDrumsThrottle(t *testing.T) {
	e, sink, clk := newTestEngine(t)
	e.SetDrumsEnabled(true)

	// First step of the basic pattern: kick plus hihat.
	e.StepDrums(120)
	if sink.count() != 2 {
		t.Fatalf("first step plays = %d, want 2", sink.count())
	}
	// Polling again inside the eighth interval is a no-op.
	e.StepDrums(120)
	if sink.count() != 2 {
		t.Fatalf("throttled step plays = %d, want 2", sink.count())
	}
	// Second step: no kick in the basic pattern, hihat only every other.
	clk.advance(250 * time.Millisecond)
	e.StepDrums(120)
	if sink.count() != 2 {
		t.Fatalf("second step plays = %d, want 2", sink.count())
	}
	// Third step: hihat again.
	clk.advance(250 * time.Millisecond)
	e.StepDrums(120)
	if sink.count() != 3 {
		t.Fatalf("third step plays = %d, want 3", sink.count())
	}
}

func TestStepBass(t *testing.T) {
	e, sink, clk := newTestEngine(t)
	e.SetBassEnabled(true)
	e.StepBass()
	if sink.count() != 1 {
		t.Fatalf("plays = %d, want 1", sink.count())
	}
	if v := sink.lastVolume(); v != 0.5 {
		t.Errorf("bass volume = %v, want 0.5", v)
	}
	e.StepBass()
	if sink.count() != 1 {
		t.Fatal("bass should throttle to its interval")
	}
	clk.advance(500 * time.Millisecond)
	e.StepBass()
	if sink.count() != 2 {
		t.Fatalf("plays after interval = %d, want 2", sink.count())
	}
}

func TestPlayChord(t *testing.T) {
	e, sink, _ := newTestEngine(t)
	e.PlayChord(60, 100)
	if sink.count() != 0 {
		t.Fatal("chords disabled: should stay silent")
	}
	e.SetChordEnabled(true)
	e.PlayChord(60, 100)
	if sink.count() != 3 {
		t.Fatalf("triad plays = %d, want 3", sink.count())
	}
	wantVol := 100.0 / 127.0 * 0.5
	if v := sink.lastVolume(); v != wantVol {
		t.Errorf("chord volume = %v, want %v", v, wantVol)
	}
}

func TestStepMetronome(t *testing.T) {
	e, sink, clk := newTestEngine(t)
	e.SetMetronomeEnabled(true)
	if !e.StepMetronome(120, 4) {
		t.Fatal("first tick should fire")
	}
	if e.StepMetronome(120, 4) {
		t.Fatal("tick inside the beat interval should not fire")
	}
	clk.advance(500 * time.Millisecond)
	if !e.StepMetronome(120, 4) {
		t.Fatal("tick after the beat interval should fire")
	}
	if sink.count() != 2 {
		t.Fatalf("plays = %d, want 2", sink.count())
	}
}

func TestSetDrumPattern(t *testing.T) {
	e, sink, clk := newTestEngine(t)
	e.SetDrumPattern("bogus")
	e.SetDrumPattern("rock")
	e.SetDrumsEnabled(true)
	// Rock pattern kicks on every even step; steps 0 and 2 both carry
	// kick plus hihat, step 1 is silent.
	e.StepDrums(120)
	clk.advance(250 * time.Millisecond)
	e.StepDrums(120)
	clk.advance(250 * time.Millisecond)
	e.StepDrums(120)
	if sink.count() != 4 {
		t.Fatalf("rock pattern plays = %d, want 4", sink.count())
	}
}
