// Package engine renders songs: it instantiates the devices of a song, turns
// the tracks into nodes of a dependency graph and runs the graph once per
// block of output audio.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vsariola/tahti"
	"github.com/vsariola/tahti/graph"
)

type (
	// Renderer renders a song block by block. The tracks of the song are
	// rendered in parallel where their receives allow it; the output of the
	// renderer is the main stereo pair of the master track.
	Renderer struct {
		song      tahti.Song
		tracks    []*Track
		processor *graph.Processor[*Track]
		master    *Track
		blockSize int
		position  int
		logger    *slog.Logger
	}

	// Option configures a Renderer.
	Option func(*options)

	options struct {
		blockSize  int
		numWorkers int // negative means the default of the graph processor
		logger     *slog.Logger
	}
)

// DefaultBlockSize is the maximum number of samples rendered in one pass of
// the graph, unless set with WithBlockSize.
const DefaultBlockSize = 256

// WithBlockSize sets the maximum number of samples rendered in one pass. The
// track buffers are allocated for this size once.
func WithBlockSize(n int) Option {
	return func(o *options) { o.blockSize = n }
}

// WithWorkers sets the number of worker goroutines rendering tracks besides
// the goroutine calling the renderer.
func WithWorkers(n int) Option {
	return func(o *options) { o.numWorkers = n }
}

// WithLogger sets the logger for debug logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewRenderer validates the song, creates and initializes its devices with
// the factory, builds the track graph and starts the worker goroutines. The
// renderer keeps a copy of the song.
func NewRenderer(song tahti.Song, factory tahti.DeviceFactory, opts ...Option) (*Renderer, error) {
	o := options{
		blockSize:  DefaultBlockSize,
		numWorkers: -1,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.blockSize < 1 {
		return nil, fmt.Errorf("block size should be > 0, got %v", o.blockSize)
	}
	if err := song.Validate(); err != nil {
		return nil, fmt.Errorf("invalid song: %w", err)
	}
	song = song.Copy()
	sampleRate := song.SamplesPerSecond()
	devices := make([]tahti.Device, len(song.Devices))
	for i := range song.Devices {
		spec := &song.Devices[i]
		d, err := factory.NewDevice(*spec)
		if err != nil {
			return nil, fmt.Errorf("could not create device %v (%v): %w", i, spec.Type, err)
		}
		d.SetSampleRate(float64(sampleRate))
		d.SetTempo(song.BPM)
		spec.LoadParams(d)
		devices[i] = d
	}
	laneEvents := make([][]tahti.Event, len(song.Lanes))
	for i := range song.Lanes {
		laneEvents[i] = song.Lanes[i].Events()
	}
	tracks := make([]*Track, len(song.Tracks))
	for i := range song.Tracks {
		spec := &song.Tracks[i]
		chain := make([]tahti.Device, len(spec.Devices))
		for j, d := range spec.Devices {
			chain[j] = devices[d]
		}
		var events []tahti.Event
		if spec.Lane >= 0 {
			events = laneEvents[spec.Lane]
		}
		tracks[i] = newTrack(spec, chain, events, o.blockSize, float64(sampleRate))
	}
	for _, t := range tracks {
		for j, r := range t.spec.Receives {
			t.sources[j] = tracks[r.Source]
		}
	}
	g, err := graph.Build(tracks)
	if err != nil {
		return nil, fmt.Errorf("could not build the track graph: %w", err)
	}
	for i := range tracks {
		o.logger.Debug("Track scheduled.", "track", i, "name", song.Tracks[i].Name, "dependencies", g.Dependencies(i), "dependents", g.DependentCount(i))
	}
	popts := []graph.Option{graph.WithLogger(o.logger)}
	if o.numWorkers >= 0 {
		popts = append(popts, graph.WithWorkers(o.numWorkers))
	}
	r := &Renderer{
		song:      song,
		tracks:    tracks,
		processor: graph.NewProcessor(g, tracks, popts...),
		master:    tracks[song.Master],
		blockSize: o.blockSize,
		logger:    o.logger,
	}
	r.logger.Debug("Renderer created.", "tracks", len(tracks), "devices", len(devices), "sampleRate", sampleRate, "blockSize", o.blockSize, "workers", r.processor.NumWorkers())
	return r, nil
}

// RenderSamples renders len(buffer)/2 frames of interleaved stereo 16-bit
// audio. The frames are rendered in passes of at most the block size.
func (r *Renderer) RenderSamples(buffer []int16) error {
	if len(buffer)%2 != 0 {
		return errors.New("RenderSamples: buffer length should be even (interleaved stereo)")
	}
	for len(buffer) > 0 {
		n := min(len(buffer)/2, r.blockSize)
		left, right := r.pass(n)
		for i := range n {
			buffer[2*i] = tahti.Quantize(left[i])
			buffer[2*i+1] = tahti.Quantize(right[i])
		}
		buffer = buffer[2*n:]
	}
	return nil
}

// RenderFloat fills the buffer with float audio, in passes of at most the
// block size.
func (r *Renderer) RenderFloat(buffer tahti.AudioBuffer) {
	for len(buffer) > 0 {
		n := min(len(buffer), r.blockSize)
		buffer = buffer[buffer.Fill(r.pass(n)):]
	}
}

func (r *Renderer) pass(numSamples int) (left, right []float32) {
	r.processor.ProcessGraph(numSamples)
	r.position += numSamples
	return r.master.Output()
}

// Position returns the number of frames rendered so far.
func (r *Renderer) Position() int {
	return r.position
}

// Length returns the length of the song in frames.
func (r *Renderer) Length() int {
	return r.song.LengthInSamples()
}

// SampleRate returns the sample rate of the song.
func (r *Renderer) SampleRate() int {
	return r.song.SamplesPerSecond()
}

// BlockSize returns the maximum number of frames rendered in one pass.
func (r *Renderer) BlockSize() int {
	return r.blockSize
}

// Track returns the graph node of track i.
func (r *Renderer) Track(i int) *Track {
	return r.tracks[i]
}

// Close stops the worker goroutines of the renderer.
func (r *Renderer) Close() {
	r.processor.Close()
}

// Play renders the whole song into a buffer.
func Play(song tahti.Song, factory tahti.DeviceFactory, opts ...Option) (tahti.AudioBuffer, error) {
	r, err := NewRenderer(song, factory, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	buffer := make(tahti.AudioBuffer, r.Length())
	r.RenderFloat(buffer)
	return buffer, nil
}
