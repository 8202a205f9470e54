// Package synth renders one-shot voices to PCM. Every function is a pure
// computation over sample buffers; playback and caching live elsewhere.
package synth

import (
	"encoding/binary"
	"math"
	"math/rand"
)

const (
	SampleRate = 44100
	twoPi      = math.Pi * 2
)

// Waveform selects the oscillator used for a melodic voice.
type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Square
	Sawtooth
	// Noise is pitched noise: uniform noise blended 50/50 with a sine an
	// octave below the nominal frequency. Used for percussive timbres.
	Noise
)

// Envelope is a linear ADSR shape. Attack and decay are ramps, sustain
// holds flat, release ramps to zero over the final samples.
type Envelope struct {
	AttackSec  float64
	DecaySec   float64
	SustainLvl float64
	ReleaseSec float64
}

// CacheEnvelope shapes the precomputed trigger voices.
func CacheEnvelope() Envelope {
	return Envelope{AttackSec: 0.01, DecaySec: 0.05, SustainLvl: 0.7, ReleaseSec: 0.1}
}

// RenderEnvelope shapes offline-rendered notes; a slightly softer attack
// and longer tail than the trigger voices.
func RenderEnvelope() Envelope {
	return Envelope{AttackSec: 0.02, DecaySec: 0.05, SustainLvl: 0.7, ReleaseSec: 0.15}
}

func oscillate(wave Waveform, freq, duration float64) []float64 {
	n := int(SampleRate * duration)
	buf := make([]float64, n)
	for i := range buf {
		t := float64(i) / SampleRate
		switch wave {
		case Sine:
			buf[i] = math.Sin(twoPi * freq * t)
		case Triangle:
			buf[i] = 2*math.Abs(2*(t*freq-math.Floor(t*freq+0.5))) - 1
		case Square:
			if math.Sin(twoPi*freq*t) >= 0 {
				buf[i] = 1
			} else {
				buf[i] = -1
			}
		case Sawtooth:
			buf[i] = 2 * (t*freq - math.Floor(t*freq+0.5))
		case Noise:
			buf[i] = (rand.Float64()*2-1)*0.5 + 0.5*math.Sin(twoPi*freq*0.5*t)
		default:
			buf[i] = math.Sin(twoPi * freq * t)
		}
	}
	return buf
}

// applyADSR shapes buf in place. When attack+decay exceeds the buffer the
// decay is dropped; the sustain span only exists when positive, and the
// release always covers the final samples.
func applyADSR(buf []float64, env Envelope) {
	n := len(buf)
	attack := int(env.AttackSec * SampleRate)
	decay := int(env.DecaySec * SampleRate)
	release := int(env.ReleaseSec * SampleRate)
	if release > n {
		release = n
	}

	if attack > n {
		attack = n
	}
	for i := 0; i < attack; i++ {
		buf[i] *= float64(i) / float64(attack)
	}
	if attack+decay < n {
		for i := 0; i < decay; i++ {
			g := 1 + (env.SustainLvl-1)*float64(i)/float64(decay)
			buf[attack+i] *= g
		}
	} else {
		decay = 0
	}
	sustainStart := attack + decay
	sustainEnd := n - release
	for i := sustainStart; i < sustainEnd; i++ {
		buf[i] *= env.SustainLvl
	}
	for i := 0; i < release; i++ {
		buf[n-release+i] *= env.SustainLvl * (1 - float64(i)/float64(release))
	}
}

// normalize scales buf so its absolute peak equals target. Silent buffers
// are left untouched.
func normalize(buf []float64, target float64) {
	var peak float64
	for _, s := range buf {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	g := target / peak
	for i := range buf {
		buf[i] *= g
	}
}

// toStereoPCM quantizes a mono buffer to interleaved 16-bit stereo.
func toStereoPCM(buf []float64) []int16 {
	out := make([]int16, len(buf)*2)
	for i, s := range buf {
		v := int16(clampUnit(s) * 32767)
		out[i*2] = v
		out[i*2+1] = v
	}
	return out
}

func clampUnit(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// Bytes serializes interleaved int16 samples as little-endian PCM, the
// layout the audio backend consumes directly.
func Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Tone renders a melodic voice: oscillator, ADSR, normalize to 0.8 peak,
// stereo 16-bit. The result has exactly duration*SampleRate frames.
func Tone(freq, duration float64, wave Waveform) []int16 {
	buf := oscillate(wave, freq, duration)
	applyADSR(buf, CacheEnvelope())
	normalize(buf, 0.8)
	return toStereoPCM(buf)
}

// RenderNote is the offline path: the envelope and velocity scale the
// amplitude directly and no per-note normalization happens, so notes mix
// additively at their recorded loudness.
func RenderNote(wave Waveform, freq, duration float64, velocity int) []float64 {
	buf := oscillate(wave, freq, duration)
	applyADSR(buf, RenderEnvelope())
	vol := float64(velocity) / 127.0
	for i := range buf {
		buf[i] *= vol
	}
	return buf
}

// Kick is a sine whose pitch falls exponentially from 60Hz under a fast
// exponential decay.
func Kick() []int16 {
	const duration = 0.3
	n := int(SampleRate * duration)
	buf := make([]float64, n)
	for i := range buf {
		t := float64(i) / SampleRate
		freq := 60 * math.Exp(-t*10)
		buf[i] = math.Sin(twoPi*freq*t) * math.Exp(-t*8)
	}
	normalize(buf, 0.7)
	return toStereoPCM(buf)
}

// Snare blends noise with a 200Hz tone.
func Snare() []int16 {
	const duration = 0.2
	n := int(SampleRate * duration)
	buf := make([]float64, n)
	for i := range buf {
		t := float64(i) / SampleRate
		noise := rand.Float64()*2 - 1
		tone := math.Sin(twoPi * 200 * t)
		buf[i] = (noise*0.7 + tone*0.3) * math.Exp(-t*15)
	}
	normalize(buf, 0.7)
	return toStereoPCM(buf)
}

// HiHat takes the first difference of noise for a brighter spectrum.
func HiHat() []int16 {
	const duration = 0.1
	n := int(SampleRate * duration)
	noise := make([]float64, n)
	for i := range noise {
		noise[i] = rand.Float64()*2 - 1
	}
	buf := make([]float64, n)
	prev := noise[0]
	for i := range buf {
		buf[i] = (noise[i]-prev)*0.5 + noise[i]*0.5
		prev = noise[i]
		t := float64(i) / SampleRate
		buf[i] *= math.Exp(-t * 30)
	}
	normalize(buf, 0.7)
	return toStereoPCM(buf)
}

// BassTone layers the fundamental with small second and third harmonics.
func BassTone(freq float64) []int16 {
	const duration = 0.5
	n := int(SampleRate * duration)
	buf := make([]float64, n)
	for i := range buf {
		t := float64(i) / SampleRate
		buf[i] = math.Sin(twoPi*freq*t)*0.8 +
			math.Sin(twoPi*freq*2*t)*0.15 +
			math.Sin(twoPi*freq*3*t)*0.05
	}
	applyADSR(buf, CacheEnvelope())
	normalize(buf, 0.6)
	return toStereoPCM(buf)
}

// MetronomeTick is a bare sine with a very fast decay.
func MetronomeTick(freq, duration float64) []int16 {
	n := int(SampleRate * duration)
	buf := make([]float64, n)
	for i := range buf {
		t := float64(i) / SampleRate
		buf[i] = math.Sin(twoPi*freq*t) * math.Exp(-t*50)
	}
	normalize(buf, 0.8)
	return toStereoPCM(buf)
}
