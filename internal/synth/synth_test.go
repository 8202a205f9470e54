package synth

import (
	"math"
	"testing"
)

var maxInt16f = float64(math.MaxInt16)

func peakInt16(samples []int16) int {
	peak := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

func TestToneLengthAndPeak(t *testing.T) {
	for _, wave := range []Waveform{Sine, Triangle, Square, Sawtooth, Noise} {
		pcm := Tone(440, 0.3, wave)
		wantFrames := int(0.3 * SampleRate)
		if len(pcm) != wantFrames*2 {
			t.Errorf("wave %d: len = %d samples, want %d (stereo frames)", wave, len(pcm), wantFrames*2)
		}
		peak := peakInt16(pcm)
		want := int(0.8 * maxInt16f)
		if peak < want-400 || peak > want+400 {
			t.Errorf("wave %d: peak = %d, want ~%d", wave, peak, want)
		}
	}
}

func TestToneStereoInterleave(t *testing.T) {
	pcm := Tone(220, 0.1, Sine)
	for i := 0; i < len(pcm); i += 2 {
		if pcm[i] != pcm[i+1] {
			t.Fatalf("frame %d: L=%d R=%d, mono source must duplicate", i/2, pcm[i], pcm[i+1])
		}
	}
}

func TestRenderNoteVelocityScaling(t *testing.T) {
	loud := RenderNote(Sine, 440, 0.2, 127)
	quiet := RenderNote(Sine, 440, 0.2, 64)
	if len(loud) != int(0.2*SampleRate) {
		t.Fatalf("len = %d, want %d", len(loud), int(0.2*SampleRate))
	}
	var loudPeak, quietPeak float64
	for i := range loud {
		if a := math.Abs(loud[i]); a > loudPeak {
			loudPeak = a
		}
		if a := math.Abs(quiet[i]); a > quietPeak {
			quietPeak = a
		}
	}
	if loudPeak > 1.0 {
		t.Errorf("full-velocity peak = %v, want <= 1", loudPeak)
	}
	ratio := quietPeak / loudPeak
	want := 64.0 / 127.0
	if math.Abs(ratio-want) > 0.01 {
		t.Errorf("velocity 64/127 peak ratio = %v, want ~%v", ratio, want)
	}
}

func TestApplyADSRShape(t *testing.T) {
	env := Envelope{AttackSec: 0.01, DecaySec: 0.05, SustainLvl: 0.7, ReleaseSec: 0.1}
	n := int(0.3 * SampleRate)
	buf := make([]float64, n)
	for i := range buf {
		buf[i] = 1
	}
	applyADSR(buf, env)

	if buf[0] != 0 {
		t.Errorf("attack start = %v, want 0", buf[0])
	}
	// Middle of the sustain span holds at the sustain level.
	mid := n / 2
	if math.Abs(buf[mid]-0.7) > 1e-9 {
		t.Errorf("sustain = %v, want 0.7", buf[mid])
	}
	// The tail ramps toward zero.
	if buf[n-1] > 0.01 {
		t.Errorf("release end = %v, want ~0", buf[n-1])
	}
	for i := 1; i < n; i++ {
		if buf[i] < 0 || buf[i] > 1 {
			t.Fatalf("envelope out of range at %d: %v", i, buf[i])
		}
	}
}

func TestApplyADSRShortBuffer(t *testing.T) {
	// Shorter than attack+decay: must not panic, decay is dropped.
	env := Envelope{AttackSec: 0.05, DecaySec: 0.05, SustainLvl: 0.7, ReleaseSec: 0.1}
	buf := make([]float64, int(0.06*SampleRate))
	for i := range buf {
		buf[i] = 1
	}
	applyADSR(buf, env)
	if buf[len(buf)-1] > 0.01 {
		t.Errorf("release end = %v, want ~0", buf[len(buf)-1])
	}
}

func TestPercussionVoices(t *testing.T) {
	cases := []struct {
		name     string
		pcm      []int16
		duration float64
	}{
		{"kick", Kick(), 0.3},
		{"snare", Snare(), 0.2},
		{"hihat", HiHat(), 0.1},
	}
	for _, tc := range cases {
		wantFrames := int(tc.duration * SampleRate)
		if len(tc.pcm) != wantFrames*2 {
			t.Errorf("%s: len = %d samples, want %d", tc.name, len(tc.pcm), wantFrames*2)
		}
		peak := peakInt16(tc.pcm)
		want := int(0.7 * maxInt16f)
		if peak < want-400 || peak > want+400 {
			t.Errorf("%s: peak = %d, want ~%d", tc.name, peak, want)
		}
	}
}

func TestBassTone(t *testing.T) {
	pcm := BassTone(55)
	if len(pcm) != int(0.5*SampleRate)*2 {
		t.Fatalf("len = %d, want %d", len(pcm), int(0.5*SampleRate)*2)
	}
	peak := peakInt16(pcm)
	want := int(0.6 * maxInt16f)
	if peak < want-400 || peak > want+400 {
		t.Errorf("peak = %d, want ~%d", peak, want)
	}
}

func TestMetronomeTick(t *testing.T) {
	pcm := MetronomeTick(1200, 0.05)
	if len(pcm) != int(0.05*SampleRate)*2 {
		t.Fatalf("len = %d, want %d", len(pcm), int(0.05*SampleRate)*2)
	}
	peak := peakInt16(pcm)
	want := int(0.8 * maxInt16f)
	if peak < want-400 || peak > want+400 {
		t.Errorf("peak = %d, want ~%d", peak, want)
	}
}

func TestBytesLittleEndian(t *testing.T) {
	got := Bytes([]int16{0x0102, -1})
	want := []byte{0x02, 0x01, 0xff, 0xff}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Bytes = %v, want %v", got, want)
		}
	}
}
