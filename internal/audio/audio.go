// Package audio is the real-time output backend: a shared ebiten audio
// context and fire-and-forget players over precomputed PCM buffers.
package audio

import (
	"bytes"
	"fmt"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Sink accepts a one-shot trigger of little-endian 16-bit stereo PCM.
// Implementations must not block the caller.
type Sink interface {
	PlayPCM(pcm []byte, volume float64)
}

var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextErr  error
	contextRate int
)

// sharedContext returns the process-wide audio context. The context can
// only ever exist at one sample rate.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				contextErr = fmt.Errorf("audio context init: %v", r)
			}
		}()
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextErr != nil {
		return nil, contextErr
	}
	if contextRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// Context is a Sink backed by the shared ebiten audio context.
type Context struct {
	ctx *ebitaudio.Context
}

// NewContext opens (or joins) the shared audio device. An error leaves the
// caller in silent mode; it is not fatal to anything but audible output.
func NewContext(sampleRate int) (*Context, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	return &Context{ctx: ctx}, nil
}

// PlayPCM starts an independent player over the buffer and lets it run to
// completion. Byte players over cached PCM are the low-latency path for
// one-shot voices; concurrent triggers simply overlap.
func (c *Context) PlayPCM(pcm []byte, volume float64) {
	if len(pcm) == 0 {
		return
	}
	p, err := c.ctx.NewPlayer(bytes.NewReader(pcm))
	if err != nil {
		return
	}
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	p.SetVolume(volume)
	p.Play()
}
