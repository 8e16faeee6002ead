// Package meter measures the loudness and the true peak of rendered audio,
// following ITU-R BS.1770 and EBU R 128: momentary (400 ms), short-term (3 s)
// and gated integrated loudness of the K-weighted signal, and the peak of
// the 4x oversampled signal.
package meter

import (
	"math"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/tahti"
)

type (
	Decibel float32

	Result struct {
		Momentary    Decibel
		ShortTerm    Decibel
		MaxMomentary Decibel
		MaxShortTerm Decibel
		Integrated   Decibel
		TruePeak     [2]Decibel
	}

	// Meter analyzes audio in blocks of 100 ms. Audio written to the meter
	// is buffered until a full block is available.
	Meter struct {
		chunkSize    int
		weighting    [2]biquadCoeff
		states       [2][2]biquadState
		oversamplers [2]oversamplerState
		windows      [2]ringBuffer // momentary and short-term
		blocks       []float32     // momentary power every 100 ms, for gating
		numChunks    int
		maxPowers    [2]float32
		peaks        [2]float32
		pending      tahti.AudioBuffer
		tmp, tmp2    []float32
		tmpbool      []bool
	}

	biquadState struct {
		x1, x2, y1, y2 float32
	}

	biquadCoeff struct {
		b0, b1, b2, a1, a2 float32
	}

	oversamplerState struct {
		history   [11]float32
		tmp, tmp2 []float32
	}

	ringBuffer struct {
		buffer []float32
		cursor int
	}
)

// loudnessOffset makes up for the K-weighting having slightly above unity
// gain at 1 kHz.
const loudnessOffset = -0.691

// maxBlocks limits the gating data to one hour of audio.
const maxBlocks = 10 * 60 * 60

func New(sampleRate int) *Meter {
	return &Meter{
		chunkSize: max(sampleRate/10, 1),
		weighting: kWeighting(float64(sampleRate)),
		windows: [2]ringBuffer{
			{buffer: make([]float32, 4)},
			{buffer: make([]float32, 30)},
		},
	}
}

// Measure analyzes a whole buffer.
func Measure(buffer tahti.AudioBuffer, sampleRate int) Result {
	m := New(sampleRate)
	m.Write(buffer)
	return m.Result()
}

// Write analyzes the audio, in full blocks of 100 ms. The remainder is kept
// for the next call.
func (m *Meter) Write(buffer tahti.AudioBuffer) {
	for len(buffer) > 0 {
		n := min(len(buffer), m.chunkSize-len(m.pending))
		m.pending = append(m.pending, buffer[:n]...)
		buffer = buffer[n:]
		if len(m.pending) == m.chunkSize {
			m.update(m.pending)
			m.pending = m.pending[:0]
		}
	}
}

func (m *Meter) update(chunk tahti.AudioBuffer) {
	n := len(chunk)
	setSliceLength(&m.tmp, n)
	setSliceLength(&m.tmp2, 4*n)
	var total float32
	for chn := range 2 {
		x := m.tmp[:n]
		for i := range chunk {
			x[i] = chunk[i][chn]
		}
		o := m.oversamplers[chn].Oversample(x, m.tmp2)
		vek32.Abs_Inplace(o)
		m.peaks[chn] = max(m.peaks[chn], vek32.Max(o))
		for k := range m.weighting {
			m.states[chn][k].Filter(x, m.weighting[k])
		}
		total += vek32.Mean(vek32.Mul_Into(m.tmp2[:n], x, x))
	}
	for i := range m.windows {
		m.windows[i].writeWrapSingle(total)
		m.maxPowers[i] = max(m.maxPowers[i], vek32.Mean(m.windows[i].buffer))
	}
	// gating blocks are full 400 ms blocks
	if m.numChunks++; m.numChunks >= len(m.windows[0].buffer) && len(m.blocks) < maxBlocks {
		m.blocks = append(m.blocks, vek32.Mean(m.windows[0].buffer))
	}
}

// Result returns the measurements of the audio written so far.
func (m *Meter) Result() Result {
	return Result{
		Momentary:    power2loudness(vek32.Mean(m.windows[0].buffer)),
		ShortTerm:    power2loudness(vek32.Mean(m.windows[1].buffer)),
		MaxMomentary: power2loudness(m.maxPowers[0]),
		MaxShortTerm: power2loudness(m.maxPowers[1]),
		Integrated:   power2loudness(m.integratedPower()),
		TruePeak:     [2]Decibel{amplitude2decibel(m.peaks[0]), amplitude2decibel(m.peaks[1])},
	}
}

// integratedPower gates the momentary blocks twice: first with the absolute
// threshold of -70 LUFS, then 10 dB below the mean of the remaining blocks.
func (m *Meter) integratedPower() float32 {
	n := len(m.blocks)
	if n == 0 {
		return 0
	}
	setSliceLength(&m.tmpbool, n)
	setSliceLength(&m.tmp, n)
	setSliceLength(&m.tmp2, n)
	b := vek32.GtNumber_Into(m.tmpbool[:n], m.blocks, loudness2power(-70))
	m2 := vek32.Select_Into(m.tmp[:n], m.blocks, b)
	if len(m2) == 0 {
		return 0
	}
	relThreshold := vek32.Mean(m2) / 10
	b2 := vek32.GtNumber_Into(m.tmpbool[:len(m2)], m2, relThreshold)
	m3 := vek32.Select_Into(m.tmp2[:len(m2)], m2, b2)
	if len(m3) == 0 {
		return 0
	}
	return vek32.Mean(m3)
}

// kWeighting returns the high shelf and high pass stages of the K-weighting
// filter for the sample rate.
func kWeighting(rate float64) [2]biquadCoeff {
	f0, g, q := 1681.974450955533, 3.999843853973347, 0.7071752369554196
	k := math.Tan(math.Pi * f0 / rate)
	vh := math.Pow(10, g/20)
	vb := math.Pow(vh, 0.4996667741545416)
	a0 := 1 + k/q + k*k
	shelf := biquadCoeff{
		b0: float32((vh + vb*k/q + k*k) / a0),
		b1: float32(2 * (k*k - vh) / a0),
		b2: float32((vh - vb*k/q + k*k) / a0),
		a1: float32(2 * (k*k - 1) / a0),
		a2: float32((1 - k/q + k*k) / a0),
	}
	f0, q = 38.13547087602444, 0.5003270373238773
	k = math.Tan(math.Pi * f0 / rate)
	a0 = 1 + k/q + k*k
	highpass := biquadCoeff{
		b0: 1, b1: -2, b2: 1,
		a1: float32(2 * (k*k - 1) / a0),
		a2: float32((1 - k/q + k*k) / a0),
	}
	return [2]biquadCoeff{shelf, highpass}
}

func power2loudness(power float32) Decibel {
	return Decibel(float32(10*math.Log10(float64(power))) + loudnessOffset)
}

func loudness2power(loudness Decibel) float32 {
	return float32(math.Pow(10, (float64(loudness)-loudnessOffset)/10))
}

func amplitude2decibel(a float32) Decibel {
	return Decibel(20 * math.Log10(float64(a)))
}

func (state *biquadState) Filter(buffer []float32, coeff biquadCoeff) {
	s := *state
	for i := 0; i < len(buffer); i++ {
		x := buffer[i]
		y := coeff.b0*x + coeff.b1*s.x1 + coeff.b2*s.x2 - coeff.a1*s.y1 - coeff.a2*s.y2
		s.x2, s.x1 = s.x1, x
		s.y2, s.y1 = s.y1, y
		buffer[i] = y
	}
	*state = s
}

func (r *ringBuffer) writeWrapSingle(value float32) {
	r.cursor = (r.cursor + 1) % len(r.buffer)
	r.buffer[r.cursor] = value
}

func setSliceLength[T any](slice *[]T, length int) {
	if len(*slice) < length {
		*slice = append(*slice, make([]T, length-len(*slice))...)
	}
	*slice = (*slice)[:length]
}

// ref: https://www.itu.int/dms_pubrec/itu-r/rec/bs/R-REC-BS.1770-5-202311-I!!PDF-E.pdf
var oversamplingCoeffs = [4][12]float32{
	{0.0017089843750, 0.0109863281250, -0.0196533203125, 0.0332031250000, -0.0594482421875, 0.1373291015625, 0.9721679687500, -0.1022949218750, 0.0476074218750, -0.0266113281250, 0.0148925781250, -0.0083007812500},
	{-0.0291748046875, 0.0292968750000, -0.0517578125000, 0.0891113281250, -0.1665039062500, 0.4650878906250, 0.7797851562500, -0.2003173828125, 0.1015625000000, -0.0582275390625, 0.0330810546875, -0.0189208984375},
	{-0.0189208984375, 0.0330810546875, -0.058227539062, 0.1015625000000, -0.200317382812, 0.7797851562500, 0.4650878906250, -0.166503906250, 0.0891113281250, -0.051757812500, 0.0292968750000, -0.0291748046875},
	{-0.0083007812500, 0.0148925781250, -0.0266113281250, 0.0476074218750, -0.1022949218750, 0.9721679687500, 0.1373291015625, -0.0594482421875, 0.0332031250000, -0.0196533203125, 0.0109863281250, 0.0017089843750},
}

// Oversample interpolates x to four times the rate into y, which should be
// at least 4*len(x) long. Phase q of the output is the convolution of x with
// the coefficients of phase q, using the history for samples before x[0].
func (s *oversamplerState) Oversample(x []float32, y []float32) []float32 {
	setSliceLength(&s.tmp, len(x))
	setSliceLength(&s.tmp2, len(x))
	for q, coeffs := range oversamplingCoeffs {
		r := vek32.Zeros_Into(s.tmp2, len(x))
		for j, c := range coeffs {
			if j > len(x) {
				break
			}
			vek32.MulNumber_Into(s.tmp[:j], s.history[11-j:11], c)
			vek32.MulNumber_Into(s.tmp[j:], x[:len(x)-j], c)
			vek32.Add_Inplace(r, s.tmp[:len(x)])
		}
		for p, v := range r {
			y[p*4+q] = v
		}
	}
	z := min(len(x), 11)
	copy(s.history[:11-z], s.history[z:11])
	copy(s.history[11-z:], x[len(x)-z:])
	return y[:len(x)*4]
}
