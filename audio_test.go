package tahti

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantize(t *testing.T) {
	assert.Equal(t, int16(0), Quantize(0))
	assert.Equal(t, int16(math.MaxInt16), Quantize(1))
	assert.Equal(t, int16(math.MaxInt16), Quantize(3))
	assert.Equal(t, int16(-math.MaxInt16), Quantize(-1))
	assert.Equal(t, int16(-math.MaxInt16), Quantize(-7))
	assert.Equal(t, int16(16383), Quantize(0.5))
}

func TestFill(t *testing.T) {
	b := make(AudioBuffer, 3)
	n := b.Fill([]float32{1, 2, 3, 4}, []float32{-1, -2})
	assert.Equal(t, 2, n)
	assert.Equal(t, AudioBuffer{{1, -1}, {2, -2}, {0, 0}}, b)
}

func TestWav(t *testing.T) {
	buffer := AudioBuffer{{0.5, -0.5}, {1, -1}, {0, 0.25}}
	t.Run("pcm16", func(t *testing.T) {
		wav, err := buffer.Wav(true, 48000)
		require.NoError(t, err)
		require.Len(t, wav, 44+3*4)
		assert.Equal(t, "RIFF", string(wav[0:4]))
		assert.Equal(t, uint32(36+12), binary.LittleEndian.Uint32(wav[4:]))
		assert.Equal(t, "WAVEfmt ", string(wav[8:16]))
		assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:]))
		assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(wav[22:]))
		assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(wav[24:]))
		assert.Equal(t, uint32(48000*4), binary.LittleEndian.Uint32(wav[28:]))
		assert.Equal(t, "data", string(wav[36:40]))
		assert.Equal(t, uint32(12), binary.LittleEndian.Uint32(wav[40:]))
		assert.Equal(t, int16(16383), int16(binary.LittleEndian.Uint16(wav[44:])))
		assert.Equal(t, int16(-16383), int16(binary.LittleEndian.Uint16(wav[46:])))
	})

	t.Run("float", func(t *testing.T) {
		wav, err := buffer.Wav(false, 44100)
		require.NoError(t, err)
		require.Len(t, wav, 58+3*8)
		assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(wav[20:]))
		assert.Equal(t, "fact", string(wav[38:42]))
		assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(wav[46:]))
		assert.Equal(t, "data", string(wav[50:54]))
		assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(wav[len(wav)-4:])))
	})
}

func TestRaw(t *testing.T) {
	raw, err := AudioBuffer{{1, -1}}.Raw(true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0x7f, 0x01, 0x80}, raw)
	raw, err = AudioBuffer{{1, -1}}.Raw(false)
	require.NoError(t, err)
	assert.Len(t, raw, 8)
}
