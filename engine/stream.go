package engine

import (
	"encoding/binary"
	"io"
)

// Stream reads the output of a renderer as interleaved little-endian 16-bit
// stereo PCM, one block at a time, until the given number of frames has been
// rendered.
type Stream struct {
	renderer  *Renderer
	remaining int
	samples   []int16
	data      []byte
	pending   []byte
}

// NewStream returns a stream of the next frames frames of the renderer.
func NewStream(r *Renderer, frames int) *Stream {
	return &Stream{
		renderer:  r,
		remaining: frames,
		samples:   make([]int16, 2*r.BlockSize()),
		data:      make([]byte, 4*r.BlockSize()),
	}
}

func (s *Stream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		if s.remaining <= 0 {
			return 0, io.EOF
		}
		n := min(s.remaining, s.renderer.BlockSize())
		samples := s.samples[:2*n]
		if err := s.renderer.RenderSamples(samples); err != nil {
			return 0, err
		}
		for i, v := range samples {
			binary.LittleEndian.PutUint16(s.data[2*i:], uint16(v))
		}
		s.pending = s.data[:4*n]
		s.remaining -= n
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}
