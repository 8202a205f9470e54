package strokesynth

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/remeh/sizedwaitgroup"

	"strokesynth/internal/music"
	"strokesynth/internal/synth"
)

// Bank voice keys shared by the engine and the sequencer.
const (
	KeyDrumKick      = "drum_kick"
	KeyDrumSnare     = "drum_snare"
	KeyDrumHiHat     = "drum_hihat"
	KeyMetronomeHigh = "metronome_high"
	KeyMetronomeLow  = "metronome_low"
)

const (
	bassMinNote = 24 // C1
	bassMaxNote = 48 // C3

	// toneDuration is the length of every precomputed melodic voice.
	toneDuration = 0.3
)

// SoundBank is the precomputed voice library: every (instrument, note)
// pair over the playable range plus percussion, bass and metronome
// voices, rendered once and shared read-only afterwards.
type SoundBank struct {
	sounds map[string][]byte
}

// NoteKey is the lookup key for a melodic voice.
func NoteKey(instrument Instrument, note int) string {
	return fmt.Sprintf("%s_%d", instrument, note)
}

// BassKey is the lookup key for a bass voice.
func BassKey(note int) string {
	return fmt.Sprintf("bass_%d", note)
}

// BuildBank synthesizes the full library. Voices render in a bounded
// parallel group; the bank is immutable once returned.
func BuildBank() *SoundBank {
	b := &SoundBank{sounds: make(map[string][]byte)}

	var mu sync.Mutex
	add := func(key string, pcm []int16) {
		mu.Lock()
		b.sounds[key] = synth.Bytes(pcm)
		mu.Unlock()
	}

	swg := sizedwaitgroup.New(runtime.NumCPU())
	for _, inst := range InstrumentList {
		wave := inst.Info().Wave
		for note := music.MinNote; note <= music.MaxNote; note++ {
			swg.Add()
			go func(inst Instrument, note int, wave synth.Waveform) {
				defer swg.Done()
				add(NoteKey(inst, note), synth.Tone(music.NoteToFreq(note), toneDuration, wave))
			}(inst, note, wave)
		}
	}
	for note := bassMinNote; note <= bassMaxNote; note++ {
		swg.Add()
		go func(note int) {
			defer swg.Done()
			add(BassKey(note), synth.BassTone(music.NoteToFreq(note)))
		}(note)
	}
	swg.Add()
	go func() {
		defer swg.Done()
		add(KeyDrumKick, synth.Kick())
		add(KeyDrumSnare, synth.Snare())
		add(KeyDrumHiHat, synth.HiHat())
		add(KeyMetronomeHigh, synth.MetronomeTick(1200, 0.05))
		add(KeyMetronomeLow, synth.MetronomeTick(800, 0.04))
	}()
	swg.Wait()
	return b
}

// Lookup returns the PCM for key, or nil when the voice does not exist.
// A miss means "nothing to play", never an error.
func (b *SoundBank) Lookup(key string) []byte {
	if b == nil {
		return nil
	}
	return b.sounds[key]
}

// Len reports the number of cached voices.
func (b *SoundBank) Len() int {
	if b == nil {
		return 0
	}
	return len(b.sounds)
}
