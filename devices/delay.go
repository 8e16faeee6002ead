package devices

import "math"

// Delay is a stereo feedback delay with a maximum delay time of one second.
// The delay line is allocated when the sample rate is set.
type Delay struct {
	base
	lines [2][]float32
	pos   int
}

func (d *Delay) SetSampleRate(sampleRate float64) {
	d.base.SetSampleRate(sampleRate)
	for c := range d.lines {
		d.lines[c] = make([]float32, int(sampleRate)+1)
	}
	d.pos = 0
}

func (d *Delay) Run(_ float64, inputs, outputs [][]float32, numSamples int) {
	if d.lines[0] == nil {
		d.SetSampleRate(d.sampleRate)
	}
	size := len(d.lines[0])
	length := min(max(int(math.Round(float64(d.params[0])*d.sampleRate)), 1), size-1)
	feedback := d.params[1] * 0.95
	wet := d.params[2]
	dry := 1 - wet
	pos := d.pos
	for c := 0; c < 2; c++ {
		line := d.lines[c]
		in, out := inputs[c][:numSamples], outputs[c][:numSamples]
		pos = d.pos
		for i, x := range in {
			read := pos - length
			if read < 0 {
				read += size
			}
			delayed := line[read]
			line[pos] = x + delayed*feedback
			out[i] = x*dry + delayed*wet
			if pos++; pos == size {
				pos = 0
			}
		}
	}
	d.pos = pos
}
