package devices

import "math"

type (
	// Filter is a resonant biquad with the cookbook coefficients of Robert
	// Bristow-Johnson. The coefficients are recalculated whenever a
	// parameter or the sample rate changes.
	Filter struct {
		base
		coefs biquadCoefs
		state [2]biquadState
		dirty bool
	}

	biquadCoefs struct {
		b0, b1, b2, a1, a2 float64
	}

	biquadState struct {
		x1, x2, y1, y2 float64
	}
)

const (
	lowpass = iota
	highpass
	bandpass
)

func newFilter(b base) *Filter {
	return &Filter{base: b, dirty: true}
}

func (f *Filter) SetSampleRate(sampleRate float64) {
	f.base.SetSampleRate(sampleRate)
	f.dirty = true
}

func (f *Filter) SetParam(index int, value float32) {
	f.base.SetParam(index, value)
	f.dirty = true
}

// Frequency returns the cutoff frequency in Hz.
func (f *Filter) Frequency() float64 {
	freq := 20 * math.Pow(1000, float64(f.params[1]))
	return min(freq, f.sampleRate*0.49)
}

func (f *Filter) update() {
	w0 := 2 * math.Pi * f.Frequency() / f.sampleRate
	q := 0.5 + 9.5*float64(f.params[2])
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*q)
	var c biquadCoefs
	switch f.choice(0, 3) {
	case lowpass:
		c.b0, c.b1, c.b2 = (1-cos)/2, 1-cos, (1-cos)/2
	case highpass:
		c.b0, c.b1, c.b2 = (1+cos)/2, -(1 + cos), (1+cos)/2
	default:
		c.b0, c.b1, c.b2 = alpha, 0, -alpha
	}
	a0 := 1 + alpha
	c.a1, c.a2 = -2*cos/a0, (1-alpha)/a0
	c.b0, c.b1, c.b2 = c.b0/a0, c.b1/a0, c.b2/a0
	f.coefs = c
	f.dirty = false
}

func (f *Filter) Run(_ float64, inputs, outputs [][]float32, numSamples int) {
	if f.dirty {
		f.update()
	}
	c := f.coefs
	for ch := 0; ch < 2; ch++ {
		s := &f.state[ch]
		in, out := inputs[ch][:numSamples], outputs[ch][:numSamples]
		for i, v := range in {
			x := float64(v)
			y := c.b0*x + c.b1*s.x1 + c.b2*s.x2 - c.a1*s.y1 - c.a2*s.y2
			s.x2, s.x1 = s.x1, x
			s.y2, s.y1 = s.y1, y
			out[i] = float32(y)
		}
	}
}
