package devices

import (
	"math"

	"github.com/viterin/vek/vek32"
)

type (
	// Gain scales the main pair.
	Gain struct{ base }

	// Pan moves the main pair between the left and right channels with an
	// equal power law. The center position leaves the signal untouched.
	Pan struct{ base }

	// Ducker lowers the main pair while the sidechain pair (channels 2 and
	// 3) is loud. It follows the peak of the sidechain with an instant
	// attack and an exponential release.
	Ducker struct {
		base
		envelope float32
		gains    []float32
	}
)

func (g *Gain) Run(_ float64, inputs, outputs [][]float32, numSamples int) {
	gain := g.params[0] * 2
	for c := 0; c < 2; c++ {
		scale(outputs[c][:numSamples], inputs[c][:numSamples], gain)
	}
}

func (p *Pan) Run(_ float64, inputs, outputs [][]float32, numSamples int) {
	angle := float64(p.params[0]) * math.Pi / 2
	left := float32(math.Cos(angle) * math.Sqrt2)
	right := float32(math.Sin(angle) * math.Sqrt2)
	if p.params[0] == 0.5 {
		left, right = 1, 1
	}
	scale(outputs[0][:numSamples], inputs[0][:numSamples], left)
	scale(outputs[1][:numSamples], inputs[1][:numSamples], right)
}

func (d *Ducker) Run(_ float64, inputs, outputs [][]float32, numSamples int) {
	if len(inputs) < 4 {
		passThrough(inputs, outputs, numSamples)
		return
	}
	if cap(d.gains) < numSamples {
		d.gains = make([]float32, numSamples)
	}
	gains := d.gains[:numSamples]
	amount := d.params[0]
	releaseTime := 0.01 * math.Pow(100, float64(d.params[1]))
	release := float32(math.Exp(-1 / (releaseTime * d.sampleRate)))
	sideLeft, sideRight := inputs[2][:numSamples], inputs[3][:numSamples]
	for i := range gains {
		level := max(abs(sideLeft[i]), abs(sideRight[i]))
		d.envelope = max(level, d.envelope*release)
		gains[i] = 1 - amount*min(d.envelope, 1)
	}
	for c := 0; c < 2; c++ {
		out := outputs[c][:numSamples]
		copy(out, inputs[c][:numSamples])
		vek32.Mul_Inplace(out, gains)
	}
}

// scale writes in*gain to out. Devices usually run in place, with out and in
// being the same slice.
func scale(out, in []float32, gain float32) {
	copy(out, in)
	vek32.MulNumber_Inplace(out, gain)
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
