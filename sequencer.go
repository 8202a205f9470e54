package strokesynth

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"strokesynth/internal/music"
)

// PlaybackMode selects how replay events derive from a project.
type PlaybackMode string

const (
	// ModeScan maps spatial X to time: a scan line sweeps the canvas in a
	// fixed window, independent of original draw timing.
	ModeScan PlaybackMode = "scan"
	// ModeTimeline preserves the original relative draw timestamps.
	ModeTimeline PlaybackMode = "timeline"
)

// scanWindowSeconds is the wall-clock length of one scan sweep; the whole
// composition always plays inside it.
const scanWindowSeconds = 4.0

// timelineTailSeconds pads playback past the last timeline event.
const timelineTailSeconds = 1.0

// PlaybackInfo is an eventual-consistency snapshot of playback state for
// UIs; never use it for control decisions.
type PlaybackInfo struct {
	Playing      bool
	Paused       bool
	CurrentTime  float64
	ScanPosition int
	Mode         PlaybackMode
	BPM          int
	TotalEvents  int
	EventIndex   int
}

// Sequencer derives a replay event list from a project snapshot and
// replays it on a dedicated timer loop, driving the engine and the UI
// callbacks. One scheduling goroutine exclusively owns playback state
// during a session; other goroutines only read flags or issue
// start/pause/stop requests.
type Sequencer struct {
	mu      sync.Mutex
	engine  *Engine
	project *Project
	mode    PlaybackMode
	bpm     int
	grid    music.Grid
	speed   float64

	scanWidth int
	events    []SequenceEvent

	playing      atomic.Bool
	paused       atomic.Bool
	currentTime  atomic.Uint64 // float64 bits
	scanPosition atomic.Int64
	eventIndex   atomic.Int64

	stopCh chan struct{}
	doneCh chan struct{}

	// Callbacks run on the scheduling goroutine; keep them brief.
	OnNotePlay     func(SequenceEvent)
	OnScanPosition func(int)
	OnPlaybackEnd  func()
}

// NewSequencer creates a stopped sequencer driving the engine. The
// engine may be nil; events then only reach the callbacks.
func NewSequencer(engine *Engine) *Sequencer {
	return &Sequencer{
		engine:    engine,
		mode:      ModeScan,
		bpm:       120,
		grid:      music.GridEighth,
		speed:     1.0,
		scanWidth: 640,
	}
}

// SetProject installs the project snapshot to replay; tempo, grid and
// canvas width follow the project.
func (s *Sequencer) SetProject(p *Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = p
	if p != nil {
		if p.Width > 0 {
			s.scanWidth = p.Width
		}
		if p.BPM > 0 {
			s.bpm = p.BPM
		}
		if p.Quantize != "" {
			s.grid = p.Quantize
		}
	}
}

// SetMode selects the generation strategy for the next Prepare.
func (s *Sequencer) SetMode(mode PlaybackMode) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

// Mode returns the selected playback mode.
func (s *Sequencer) Mode() PlaybackMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetSpeed scales the virtual clock; 1.0 is real time.
func (s *Sequencer) SetSpeed(speed float64) {
	if speed <= 0 {
		return
	}
	s.mu.Lock()
	s.speed = speed
	s.mu.Unlock()
}

// Prepare regenerates the event list from the current project snapshot
// and the selected mode, resetting time and index. Idempotent.
func (s *Sequencer) Prepare() {
	s.mu.Lock()
	switch s.mode {
	case ModeTimeline:
		s.events = s.generateTimelineEvents()
	default:
		s.events = s.generateScanEvents()
	}
	s.mu.Unlock()
	s.eventIndex.Store(0)
	s.setCurrentTime(0)
	s.scanPosition.Store(0)
}

// Events returns the prepared event list.
func (s *Sequencer) Events() []SequenceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SequenceEvent, len(s.events))
	copy(out, s.events)
	return out
}

// generateScanEvents collects every point of every stroke, orders them by
// X, and maps X into the scan window. Points closer than a minimum X gap
// to the previous emitted point are suppressed, as are repeats of the
// same note within 0.1s.
func (s *Sequencer) generateScanEvents() []SequenceEvent {
	if s.project == nil || len(s.project.Strokes) == 0 {
		return nil
	}
	type scanPoint struct {
		x, y, thickness int
		instrument      Instrument
	}
	var points []scanPoint
	for _, stroke := range s.project.Strokes {
		for _, p := range stroke.Points {
			points = append(points, scanPoint{p.X, p.Y, p.Thickness, stroke.Instrument})
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].x < points[j].x })

	beat := 60.0 / float64(s.bpm)
	minXGap := s.scanWidth / 32
	var events []SequenceEvent
	lastNote := -1
	lastX := -1
	for _, p := range points {
		if lastX >= 0 && absInt(p.x-lastX) < minXGap {
			continue
		}
		t := float64(p.x) / float64(s.scanWidth) * scanWindowSeconds
		t = music.QuantizeTime(t, s.bpm, s.grid)
		note := music.MapXToNote(p.x, s.scanWidth)
		note = music.QuantizeToScale(note, s.project.Scale, s.project.RootNote)
		if note == lastNote && len(events) > 0 && math.Abs(t-events[len(events)-1].Time) < 0.1 {
			continue
		}
		events = append(events, SequenceEvent{
			Time:       t,
			Note:       note,
			Velocity:   music.MapThicknessToVelocity(p.thickness),
			Duration:   beat / 2,
			Instrument: p.instrument,
			X:          p.x,
			Y:          p.y,
		})
		lastNote = note
		lastX = p.x
	}
	return events
}

// generateTimelineEvents preserves original relative timestamps. Each
// stroke is subsampled to roughly eight events, timestamps snap to the
// grid, and the final list is globally time-sorted because subsampling
// can interleave strokes out of order.
func (s *Sequencer) generateTimelineEvents() []SequenceEvent {
	if s.project == nil || len(s.project.Strokes) == 0 {
		return nil
	}
	beat := 60.0 / float64(s.bpm)
	var events []SequenceEvent
	for _, stroke := range s.project.Strokes {
		interval := len(stroke.Points) / 8
		if interval < 1 {
			interval = 1
		}
		for i, p := range stroke.Points {
			if i%interval != 0 {
				continue
			}
			t := music.QuantizeTime(p.T, s.bpm, s.grid)
			note := music.MapXToNote(p.X, s.project.Width)
			note = music.QuantizeToScale(note, s.project.Scale, s.project.RootNote)
			events = append(events, SequenceEvent{
				Time:       t,
				Note:       note,
				Velocity:   music.MapThicknessToVelocity(p.Thickness),
				Duration:   beat / 2,
				Instrument: stroke.Instrument,
				X:          p.X,
				Y:          p.Y,
			})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	return events
}

// Start prepares and launches the scheduling loop. Starting an
// already-playing sequencer is a benign no-op.
func (s *Sequencer) Start() {
	if s.playing.Load() {
		return
	}
	s.Prepare()
	s.paused.Store(false)
	s.playing.Store(true)
	s.mu.Lock()
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()
	go s.loop(stopCh, doneCh)
}

// Pause toggles playing/paused without resetting time or index; resuming
// re-anchors the virtual clock so it continues seamlessly.
func (s *Sequencer) Pause() {
	if !s.playing.Load() {
		return
	}
	s.paused.Store(!s.paused.Load())
}

// Stop forces the loop to exit and resets time, index and scan position.
// Blocks briefly for the scheduling goroutine to finish.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh = nil
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	if doneCh != nil {
		select {
		case <-doneCh:
		case <-time.After(time.Second):
		}
	}
	s.playing.Store(false)
	s.paused.Store(false)
	s.setCurrentTime(0)
	s.eventIndex.Store(0)
	s.scanPosition.Store(0)
}

// Playing reports whether a playback session is active.
func (s *Sequencer) Playing() bool { return s.playing.Load() }

// Paused reports whether the active session is paused.
func (s *Sequencer) Paused() bool { return s.paused.Load() }

// CurrentTime returns the virtual playback clock in seconds.
func (s *Sequencer) CurrentTime() float64 {
	return math.Float64frombits(s.currentTime.Load())
}

func (s *Sequencer) setCurrentTime(t float64) {
	s.currentTime.Store(math.Float64bits(t))
}

// ScanPosition returns the scan line's canvas X position.
func (s *Sequencer) ScanPosition() int { return int(s.scanPosition.Load()) }

// Info returns a snapshot of playback state.
func (s *Sequencer) Info() PlaybackInfo {
	s.mu.Lock()
	mode, bpm, total := s.mode, s.bpm, len(s.events)
	s.mu.Unlock()
	return PlaybackInfo{
		Playing:      s.playing.Load(),
		Paused:       s.paused.Load(),
		CurrentTime:  s.CurrentTime(),
		ScanPosition: s.ScanPosition(),
		Mode:         mode,
		BPM:          bpm,
		TotalEvents:  total,
		EventIndex:   int(s.eventIndex.Load()),
	}
}

// loop is the scheduling goroutine: a virtual clock anchored at start,
// dispatching due events in index order every ~10ms tick.
func (s *Sequencer) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	s.mu.Lock()
	mode := s.mode
	speed := s.speed
	events := s.events
	scanWidth := s.scanWidth
	s.mu.Unlock()

	endTime := scanWindowSeconds
	if mode == ModeTimeline {
		if len(events) == 0 {
			endTime = 0
		} else {
			endTime = events[len(events)-1].Time + timelineTailSeconds
		}
	}

	anchor := time.Now()
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if s.paused.Load() {
			time.Sleep(50 * time.Millisecond)
			// Re-anchor so the virtual clock resumes where it paused.
			anchor = time.Now().Add(-time.Duration(s.CurrentTime() / speed * float64(time.Second)))
			continue
		}

		now := time.Since(anchor).Seconds() * speed
		s.setCurrentTime(now)

		if mode == ModeScan {
			pos := int(now / scanWindowSeconds * float64(scanWidth))
			if pos > scanWidth {
				pos = scanWidth
			}
			s.scanPosition.Store(int64(pos))
			if s.OnScanPosition != nil {
				s.OnScanPosition(pos)
			}
		}

		for {
			idx := int(s.eventIndex.Load())
			if idx >= len(events) || events[idx].Time > now {
				break
			}
			s.dispatch(events[idx])
			s.eventIndex.Store(int64(idx + 1))
		}

		if now >= endTime {
			s.playing.Store(false)
			if s.OnPlaybackEnd != nil {
				s.OnPlaybackEnd()
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// dispatch triggers one event. A failed or missing voice is skipped; the
// loop never terminates on a single-note failure.
func (s *Sequencer) dispatch(ev SequenceEvent) {
	if s.engine != nil {
		s.engine.playSequenceEvent(ev)
	}
	if s.OnNotePlay != nil {
		s.OnNotePlay(ev)
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
