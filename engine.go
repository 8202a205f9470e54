package strokesynth

import (
	"math"
	"sync"
	"time"

	"strokesynth/internal/audio"
	"strokesynth/internal/music"
	"strokesynth/internal/synth"
)

// WaveformSegments is the length of the visualization buffer.
const WaveformSegments = 64

// Trigger gating constants. The preview gate is a time-OR-distance
// combination: a note fires when enough time has passed, or when the
// pointer moved far enough and a smaller time floor has passed. The OR is
// load-bearing; AND changes responsiveness materially.
const (
	minNoteInterval    = 20 * time.Millisecond
	sameNoteDebounce   = 200 * time.Millisecond
	previewMinInterval = 80 * time.Millisecond
	previewTimeFloor   = 20 * time.Millisecond
	previewMinDistance = 30.0 // pixels
	previewDebounce    = 150 * time.Millisecond
)

// Config carries the engine's initial settings. Explicit configuration
// replaces the process-wide settings managers of the surrounding system.
type Config struct {
	Width      int
	Height     int
	BPM        int
	Instrument Instrument
	Scale      music.Scale
	Root       int
}

// DefaultConfig matches the canvas and musical defaults of a new project.
func DefaultConfig() Config {
	return Config{
		Width:      640,
		Height:     480,
		BPM:        120,
		Instrument: Piano,
		Scale:      music.DefaultScale,
		Root:       music.DefaultRoot,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink routes triggers to a custom output instead of the audio
// device. Tests inject counting sinks this way.
func WithSink(s audio.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithSilent skips device initialization entirely; the engine behaves as
// if no audio device were present.
func WithSilent() Option {
	return func(e *Engine) { e.silent = true }
}

// Engine owns the sound bank and all real-time trigger state: current
// instrument and scale, rate-limit gates, the recording buffer, the
// visualization waveform and the accompaniment voices.
//
// All operations are O(1) lookups plus arithmetic and never block; the
// gesture loop may call them every frame. Failure to open the audio
// device degrades the whole engine to a safe no-op (Ready reports false)
// while pure-data operations keep working.
type Engine struct {
	cfg    Config
	sink   audio.Sink
	silent bool
	ready  bool
	bank   *SoundBank

	now func() time.Time

	mu              sync.Mutex
	instrumentIndex int
	scale           music.Scale
	root            int
	enabled         bool

	lastNote     int
	lastNoteTime time.Time

	lastPreviewX    int
	lastPreviewY    int
	lastPreviewTime time.Time

	recording      bool
	recordingStart time.Time
	recorded       []NoteEvent

	waveformMu sync.Mutex
	waveform   [WaveformSegments]float64

	drumEnabled   bool
	bassEnabled   bool
	chordEnabled  bool
	drumPattern   string
	drumBeatIndex int
	lastDrumTime  time.Time

	bassInterval time.Duration
	lastBassTime time.Time

	metronomeEnabled   bool
	metronomeVolume    float64
	metronomeBeatIndex int
	lastMetronomeTime  time.Time
}

// drumPatterns marks which eighth-note steps carry a kick.
var drumPatterns = map[string][]bool{
	"basic": {true, false, false, false, true, false, false, false},
	"rock":  {true, false, true, false, true, false, true, false},
	"hihat": {true, true, true, true, true, true, true, true},
}

// NewEngine builds the engine and its sound bank. When the audio device
// cannot be opened the engine comes up not-ready: every trigger succeeds
// as a no-op and recording/export still work on pure data.
func NewEngine(cfg Config, opts ...Option) *Engine {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		d := DefaultConfig()
		cfg.Width, cfg.Height = d.Width, d.Height
	}
	if cfg.BPM <= 0 {
		cfg.BPM = 120
	}
	if !cfg.Scale.Valid() {
		cfg.Scale = music.DefaultScale
	}
	if !cfg.Instrument.Valid() {
		cfg.Instrument = Piano
	}
	if cfg.Root <= 0 {
		cfg.Root = music.DefaultRoot
	}

	e := &Engine{
		cfg:             cfg,
		now:             time.Now,
		scale:           cfg.Scale,
		root:            cfg.Root,
		enabled:         true,
		lastNote:        -1,
		drumPattern:     "basic",
		bassInterval:    500 * time.Millisecond,
		metronomeVolume: 0.5,
	}
	for i, inst := range InstrumentList {
		if inst == cfg.Instrument {
			e.instrumentIndex = i
		}
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.sink == nil && !e.silent {
		ctx, err := audio.NewContext(synth.SampleRate)
		if err == nil {
			e.sink = ctx
		}
	}
	if e.sink != nil {
		e.ready = true
		e.bank = BuildBank()
	}
	return e
}

// Ready reports whether the audio device came up. A not-ready engine
// accepts every call and plays nothing.
func (e *Engine) Ready() bool { return e.ready }

// Bank exposes the shared voice library; the sequencer replays from it
// using the same key scheme the engine triggers with.
func (e *Engine) Bank() *SoundBank { return e.bank }

// Instrument returns the active timbre.
func (e *Engine) Instrument() Instrument {
	e.mu.Lock()
	defer e.mu.Unlock()
	return InstrumentList[e.instrumentIndex]
}

// SetInstrument selects a timbre for future triggers.
func (e *Engine) SetInstrument(instrument Instrument) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, inst := range InstrumentList {
		if inst == instrument {
			e.instrumentIndex = i
			return
		}
	}
}

// SwitchInstrument steps through the instrument list; direction +1 is
// next, -1 previous, cyclic.
func (e *Engine) SwitchInstrument(direction int) Instrument {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(InstrumentList)
	e.instrumentIndex = ((e.instrumentIndex+direction)%n + n) % n
	return InstrumentList[e.instrumentIndex]
}

// SetScale changes the quantization scale; the bank is unaffected.
func (e *Engine) SetScale(scale music.Scale) {
	if !scale.Valid() {
		return
	}
	e.mu.Lock()
	e.scale = scale
	e.mu.Unlock()
}

// SetRoot changes the quantization root note.
func (e *Engine) SetRoot(root int) {
	if root < 0 || root > 127 {
		return
	}
	e.mu.Lock()
	e.root = root
	e.mu.Unlock()
}

// Scale returns the active scale and root.
func (e *Engine) Scale() (music.Scale, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scale, e.root
}

// TogglePlay flips the global enable. Disabled triggers are no-ops that
// still return normally.
func (e *Engine) TogglePlay() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = !e.enabled
	return e.enabled
}

// PlayNote triggers the note mapped from a committed gesture position.
// X controls pitch, Y duration, thickness velocity. Triggers inside the
// minimum interval, or repeating the same quantized note inside the
// debounce window, are suppressed.
func (e *Engine) PlayNote(x, y, thickness int) {
	e.mu.Lock()
	if !e.enabled || !e.ready {
		e.mu.Unlock()
		return
	}
	now := e.now()
	if now.Sub(e.lastNoteTime) < minNoteInterval {
		e.mu.Unlock()
		return
	}
	raw := music.MapXToNote(x, e.cfg.Width)
	note := music.QuantizeToScale(raw, e.scale, e.root)
	if note == e.lastNote && now.Sub(e.lastNoteTime) < sameNoteDebounce {
		e.mu.Unlock()
		return
	}
	durationMS := music.MapYToDuration(y, e.cfg.Height)
	velocity := music.MapThicknessToVelocity(thickness)
	instrument := InstrumentList[e.instrumentIndex]

	pcm := e.bank.Lookup(NoteKey(instrument, note))
	if pcm == nil {
		e.mu.Unlock()
		return
	}
	e.lastNote = note
	e.lastNoteTime = now
	if e.recording {
		e.recorded = append(e.recorded, NoteEvent{
			Note:       note,
			Velocity:   velocity,
			DurationMS: durationMS,
			Instrument: instrument,
			Timestamp:  now.Sub(e.recordingStart).Seconds(),
			X:          x,
			Y:          y,
		})
	}
	sink := e.sink
	e.mu.Unlock()

	sink.PlayPCM(pcm, float64(velocity)/127.0)
	e.blendWaveform(note, velocity)
}

// PlayPreviewNote triggers from an active stroke. It fires when the
// preview interval elapsed, or when the pointer moved at least the
// distance threshold and the smaller time floor elapsed. Returns whether
// a note fired.
func (e *Engine) PlayPreviewNote(x, y, thickness int) bool {
	e.mu.Lock()
	if !e.enabled || !e.ready {
		e.mu.Unlock()
		return false
	}
	now := e.now()
	dx := float64(x - e.lastPreviewX)
	dy := float64(y - e.lastPreviewY)
	distance := math.Sqrt(dx*dx + dy*dy)
	elapsed := now.Sub(e.lastPreviewTime)

	shouldTrigger := elapsed >= previewMinInterval ||
		(distance >= previewMinDistance && elapsed >= previewTimeFloor)
	if !shouldTrigger {
		e.mu.Unlock()
		return false
	}

	raw := music.MapXToNote(x, e.cfg.Width)
	note := music.QuantizeToScale(raw, e.scale, e.root)
	if note == e.lastNote && elapsed < previewDebounce {
		e.mu.Unlock()
		return false
	}
	velocity := music.MapThicknessToVelocity(thickness)
	instrument := InstrumentList[e.instrumentIndex]

	pcm := e.bank.Lookup(NoteKey(instrument, note))
	if pcm == nil {
		e.mu.Unlock()
		return false
	}
	e.lastNote = note
	e.lastNoteTime = now
	e.lastPreviewX = x
	e.lastPreviewY = y
	e.lastPreviewTime = now
	if e.recording {
		e.recorded = append(e.recorded, NoteEvent{
			Note:       note,
			Velocity:   velocity,
			DurationMS: music.MapYToDuration(y, e.cfg.Height),
			Instrument: instrument,
			Timestamp:  now.Sub(e.recordingStart).Seconds(),
			X:          x,
			Y:          y,
		})
	}
	sink := e.sink
	e.mu.Unlock()

	sink.PlayPCM(pcm, float64(velocity)/127.0)
	e.blendWaveform(note, velocity)
	return true
}

// ResetPreviewState clears the preview gates. Must run at the start of
// every new stroke so its first point is unconditionally eligible.
func (e *Engine) ResetPreviewState() {
	e.mu.Lock()
	e.lastPreviewX = 0
	e.lastPreviewY = 0
	e.lastPreviewTime = time.Time{}
	e.lastNote = -1
	e.mu.Unlock()
}

// playSequenceEvent replays a cached voice for the sequencer, switching
// the active instrument when the event differs. This path bypasses the
// real-time gates; the event list is already deduplicated.
func (e *Engine) playSequenceEvent(ev SequenceEvent) {
	e.mu.Lock()
	if !e.ready {
		e.mu.Unlock()
		return
	}
	if InstrumentList[e.instrumentIndex] != ev.Instrument && ev.Instrument.Valid() {
		for i, inst := range InstrumentList {
			if inst == ev.Instrument {
				e.instrumentIndex = i
			}
		}
	}
	pcm := e.bank.Lookup(NoteKey(ev.Instrument, ev.Note))
	sink := e.sink
	e.mu.Unlock()
	if pcm == nil {
		return
	}
	sink.PlayPCM(pcm, float64(ev.Velocity)/127.0)
	e.blendWaveform(ev.Note, ev.Velocity)
}

// StartRecording clears the note buffer and anchors timestamps at now.
func (e *Engine) StartRecording() {
	e.mu.Lock()
	e.recorded = nil
	e.recordingStart = e.now()
	e.recording = true
	e.mu.Unlock()
}

// StopRecording clears the recording flag and returns the captured notes.
// The buffer is retained for export until the next StartRecording.
func (e *Engine) StopRecording() []NoteEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recording = false
	out := make([]NoteEvent, len(e.recorded))
	copy(out, e.recorded)
	return out
}

// ToggleRecording starts or stops recording; returns the captured notes
// when stopping (nil when starting) and the new recording state.
func (e *Engine) ToggleRecording() ([]NoteEvent, bool) {
	e.mu.Lock()
	recording := e.recording
	e.mu.Unlock()
	if recording {
		return e.StopRecording(), false
	}
	e.StartRecording()
	return nil, true
}

// Recording reports whether a recording session is active.
func (e *Engine) Recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording
}

// RecordedNotes returns a snapshot of the current note buffer.
func (e *Engine) RecordedNotes() []NoteEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]NoteEvent, len(e.recorded))
	copy(out, e.recorded)
	return out
}

// blendWaveform mixes a new sine, whose frequency tracks the note's
// position in the playable range and whose amplitude tracks velocity,
// into the visualization buffer. Blend, never overwrite.
func (e *Engine) blendWaveform(note, velocity int) {
	freqFactor := float64(note-music.MinNote) / float64(music.MaxNote-music.MinNote)
	amp := float64(velocity) / 127.0
	e.waveformMu.Lock()
	for i := range e.waveform {
		x := float64(i) / float64(WaveformSegments-1) * 4 * math.Pi
		s := math.Sin(x*(1+freqFactor*3)) * amp
		e.waveform[i] = e.waveform[i]*0.7 + s*0.3
	}
	e.waveformMu.Unlock()
}

// WaveformSnapshot returns an immutable copy of the visualization
// buffer; consumers render from the copy, never under the lock.
func (e *Engine) WaveformSnapshot() []float64 {
	e.waveformMu.Lock()
	defer e.waveformMu.Unlock()
	out := make([]float64, WaveformSegments)
	copy(out[:], e.waveform[:])
	return out
}

// DecayWaveform attenuates the visualization buffer; call once per frame.
func (e *Engine) DecayWaveform(factor float64) {
	e.waveformMu.Lock()
	for i := range e.waveform {
		e.waveform[i] *= factor
	}
	e.waveformMu.Unlock()
}

// SetAccompanimentLevel maps a coarse level to the voice toggles:
// "off" disables everything, "low" drums only, "high" drums and bass.
func (e *Engine) SetAccompanimentLevel(level string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch level {
	case "low":
		e.drumEnabled, e.bassEnabled, e.chordEnabled = true, false, false
	case "high":
		e.drumEnabled, e.bassEnabled, e.chordEnabled = true, true, false
	default:
		e.drumEnabled, e.bassEnabled, e.chordEnabled = false, false, false
	}
}

// SetDrumsEnabled toggles the drum voice and restarts its pattern.
func (e *Engine) SetDrumsEnabled(enabled bool) {
	e.mu.Lock()
	e.drumEnabled = enabled
	e.drumBeatIndex = 0
	e.mu.Unlock()
}

// SetBassEnabled toggles the bass voice.
func (e *Engine) SetBassEnabled(enabled bool) {
	e.mu.Lock()
	e.bassEnabled = enabled
	e.mu.Unlock()
}

// SetChordEnabled toggles the chord voice.
func (e *Engine) SetChordEnabled(enabled bool) {
	e.mu.Lock()
	e.chordEnabled = enabled
	e.mu.Unlock()
}

// SetDrumPattern selects the kick pattern; unknown names keep the
// current pattern.
func (e *Engine) SetDrumPattern(name string) {
	if _, ok := drumPatterns[name]; !ok {
		return
	}
	e.mu.Lock()
	e.drumPattern = name
	e.mu.Unlock()
}

// SetMetronomeEnabled toggles the metronome and resets its beat counter.
func (e *Engine) SetMetronomeEnabled(enabled bool) {
	e.mu.Lock()
	e.metronomeEnabled = enabled
	e.metronomeBeatIndex = 0
	e.lastMetronomeTime = time.Time{}
	e.mu.Unlock()
}

// SetMetronomeVolume sets the tick volume, clamped to 0..1.
func (e *Engine) SetMetronomeVolume(volume float64) {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	e.mu.Lock()
	e.metronomeVolume = volume
	e.mu.Unlock()
}

// StepDrums advances the drum pattern when an eighth note has elapsed
// since the last step. Designed to be polled every frame; it throttles
// itself regardless of call frequency.
func (e *Engine) StepDrums(bpm int) {
	e.mu.Lock()
	if !e.drumEnabled || !e.ready {
		e.mu.Unlock()
		return
	}
	now := e.now()
	interval := time.Duration(60.0 / float64(bpm) / 2 * float64(time.Second))
	if now.Sub(e.lastDrumTime) < interval {
		e.mu.Unlock()
		return
	}
	pattern := drumPatterns[e.drumPattern]
	kick := pattern[e.drumBeatIndex%len(pattern)]
	hihat := e.drumBeatIndex%2 == 0
	e.drumBeatIndex++
	e.lastDrumTime = now
	sink := e.sink
	kickPCM := e.bank.Lookup(KeyDrumKick)
	hihatPCM := e.bank.Lookup(KeyDrumHiHat)
	e.mu.Unlock()

	if kick && kickPCM != nil {
		sink.PlayPCM(kickPCM, 0.6)
	}
	if hihat && hihatPCM != nil {
		sink.PlayPCM(hihatPCM, 0.3)
	}
}

// StepBass plays the scale root two octaves down on a fixed wall-clock
// interval, decoupled from tempo.
func (e *Engine) StepBass() {
	e.mu.Lock()
	if !e.bassEnabled || !e.ready {
		e.mu.Unlock()
		return
	}
	now := e.now()
	if now.Sub(e.lastBassTime) < e.bassInterval {
		e.mu.Unlock()
		return
	}
	bassNote := e.root%12 + 24
	pcm := e.bank.Lookup(BassKey(bassNote))
	e.lastBassTime = now
	sink := e.sink
	e.mu.Unlock()

	if pcm != nil {
		sink.PlayPCM(pcm, 0.5)
	}
}

// PlayChord triggers a major triad (root, +4, +7) on the active
// instrument at half the note volume.
func (e *Engine) PlayChord(root, velocity int) {
	e.mu.Lock()
	if !e.chordEnabled || !e.ready {
		e.mu.Unlock()
		return
	}
	instrument := InstrumentList[e.instrumentIndex]
	sink := e.sink
	bank := e.bank
	e.mu.Unlock()

	vol := float64(velocity) / 127.0 * 0.5
	for _, offset := range []int{0, 4, 7} {
		if pcm := bank.Lookup(NoteKey(instrument, root+offset)); pcm != nil {
			sink.PlayPCM(pcm, vol)
		}
	}
}

// StepMetronome ticks at the beat interval, with the accented voice on
// the downbeat every beatsPerBar beats. Returns whether a tick fired.
func (e *Engine) StepMetronome(bpm, beatsPerBar int) bool {
	e.mu.Lock()
	if !e.metronomeEnabled || !e.ready {
		e.mu.Unlock()
		return false
	}
	now := e.now()
	interval := time.Duration(60.0 / float64(bpm) * float64(time.Second))
	if now.Sub(e.lastMetronomeTime) < interval*9/10 {
		e.mu.Unlock()
		return false
	}
	key := KeyMetronomeLow
	if beatsPerBar > 0 && e.metronomeBeatIndex%beatsPerBar == 0 {
		key = KeyMetronomeHigh
	}
	pcm := e.bank.Lookup(key)
	volume := e.metronomeVolume
	e.metronomeBeatIndex++
	e.lastMetronomeTime = now
	sink := e.sink
	e.mu.Unlock()

	if pcm != nil {
		sink.PlayPCM(pcm, volume)
	}
	return true
}
