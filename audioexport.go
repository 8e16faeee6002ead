package tahti

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Wav converts the buffer into a .wav file, either as float32 or 16-bit
// signed PCM.
func (buffer AudioBuffer) Wav(pcm16 bool, sampleRate int) ([]byte, error) {
	buf := new(bytes.Buffer)
	wavHeader(2*len(buffer), pcm16, sampleRate, buf)
	if err := buffer.rawToBuffer(pcm16, buf); err != nil {
		return nil, fmt.Errorf("Wav failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Raw converts the buffer into raw little-endian interleaved samples, either
// float32 or 16-bit signed PCM.
func (buffer AudioBuffer) Raw(pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := buffer.rawToBuffer(pcm16, buf); err != nil {
		return nil, fmt.Errorf("Raw failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (buffer AudioBuffer) rawToBuffer(pcm16 bool, buf *bytes.Buffer) error {
	var err error
	if pcm16 {
		int16data := make([][2]int16, len(buffer))
		for i, v := range buffer {
			int16data[i] = [2]int16{Quantize(v[0]), Quantize(v[1])}
		}
		err = binary.Write(buf, binary.LittleEndian, int16data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, buffer)
	}
	if err != nil {
		return fmt.Errorf("could not binary write data to binary buffer: %w", err)
	}
	return nil
}

// wavHeader writes a wave header for either float32 or int16 .wav file into the
// bytes.buffer. It needs to know the length of the buffer and assumes stereo
// sound, so the length in stereo samples (L + R) is bufferlength / 2. If pcm16
// = true, then the header is for int16 audio; pcm16 = false means the header is
// for float32 audio.
func wavHeader(bufferLength int, pcm16 bool, sampleRate int, buf *bytes.Buffer) {
	// Refer to: http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
	numChannels := 2
	var bytesPerSample, chunkSize, fmtChunkSize, waveFormat int
	var factChunk bool
	if pcm16 {
		bytesPerSample = 2
		chunkSize = 36 + bytesPerSample*bufferLength
		fmtChunkSize = 16
		waveFormat = 1 // PCM
		factChunk = false
	} else {
		bytesPerSample = 4
		chunkSize = 50 + bytesPerSample*bufferLength
		fmtChunkSize = 18
		waveFormat = 3 // IEEE float
		factChunk = true
	}
	buf.Write([]byte("RIFF"))
	binary.Write(buf, binary.LittleEndian, uint32(chunkSize))
	buf.Write([]byte("WAVE"))
	buf.Write([]byte("fmt "))
	binary.Write(buf, binary.LittleEndian, uint32(fmtChunkSize))
	binary.Write(buf, binary.LittleEndian, uint16(waveFormat))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*numChannels*bytesPerSample)) // avgBytesPerSec
	binary.Write(buf, binary.LittleEndian, uint16(numChannels*bytesPerSample))            // blockAlign
	binary.Write(buf, binary.LittleEndian, uint16(8*bytesPerSample))                      // bits per sample
	if fmtChunkSize > 16 {
		binary.Write(buf, binary.LittleEndian, uint16(0)) // size of extension
	}
	if factChunk {
		buf.Write([]byte("fact"))
		binary.Write(buf, binary.LittleEndian, uint32(4))              // fact chunk size
		binary.Write(buf, binary.LittleEndian, uint32(bufferLength/2)) // sample frames
	}
	buf.Write([]byte("data"))
	binary.Write(buf, binary.LittleEndian, uint32(bytesPerSample*bufferLength))
}
