package oto

import (
	"encoding/binary"
	"io"

	"github.com/vsariola/tahti"
)

// FloatBufferTo16BitLE converts a stereo float buffer to interleaved 16-bit
// little-endian integers, appending to out. The values are clipped to
// [-1,1].
func FloatBufferTo16BitLE(buff tahti.AudioBuffer, out []byte) []byte {
	for _, frame := range buff {
		out = binary.LittleEndian.AppendUint16(out, uint16(tahti.Quantize(frame[0])))
		out = binary.LittleEndian.AppendUint16(out, uint16(tahti.Quantize(frame[1])))
	}
	return out
}

// BufferReader reads an already rendered buffer as 16-bit PCM, converting
// it in chunks.
type BufferReader struct {
	buffer  tahti.AudioBuffer
	pending []byte
	tmp     []byte
}

const chunkFrames = 4096

func NewBufferReader(buffer tahti.AudioBuffer) *BufferReader {
	return &BufferReader{buffer: buffer}
}

func (r *BufferReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if len(r.buffer) == 0 {
			return 0, io.EOF
		}
		n := min(len(r.buffer), chunkFrames)
		r.tmp = FloatBufferTo16BitLE(r.buffer[:n], r.tmp[:0])
		r.pending = r.tmp
		r.buffer = r.buffer[n:]
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
