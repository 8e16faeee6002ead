// Package oto plays rendered audio on the default audio device.
package oto

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
)

type (
	// Context is the audio output of the process. Only one Context can be
	// created per process.
	Context struct {
		context    *oto.Context
		sampleRate int
	}

	// Player plays one stream of interleaved 16-bit little-endian stereo
	// audio.
	Player struct {
		player *oto.Player
	}
)

const pollInterval = 10 * time.Millisecond

// NewContext opens the default audio device for 16-bit stereo output at the
// given sample rate, waiting until the device is ready.
func NewContext(sampleRate int) (*Context, error) {
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{context: context, sampleRate: sampleRate}, nil
}

// SampleRate returns the sample rate the context was opened with.
func (c *Context) SampleRate() int {
	return c.sampleRate
}

// Play starts playing the audio read from r. r should return io.EOF when
// there is nothing more to play.
func (c *Context) Play(r io.Reader) *Player {
	p := &Player{player: c.context.NewPlayer(r)}
	p.player.Play()
	return p
}

// Wait blocks until the player has played everything or failed.
func (p *Player) Wait() error {
	for p.player.IsPlaying() {
		time.Sleep(pollInterval)
	}
	if err := p.player.Err(); err != nil {
		return fmt.Errorf("oto player failed: %w", err)
	}
	return nil
}

// Close disposes of resources
func (p *Player) Close() error {
	if err := p.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
