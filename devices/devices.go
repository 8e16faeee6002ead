// Package devices contains the reference instruments and effects that can be
// used in songs: a polyphonic synth and a handful of simple effects. All
// devices are deterministic: the same events and parameters always produce
// the same samples.
package devices

import (
	"fmt"
	"sort"

	"github.com/vsariola/tahti"
)

type (
	// Factory creates the reference devices by their type name.
	Factory struct{}

	// Parameter documents one parameter of a device type. All parameters
	// are normalized to 0..1 in songs; Description tells what the range maps
	// to.
	Parameter struct {
		Name        string
		Default     float32
		Description string
	}

	// base implements the bookkeeping every device shares: the sample rate,
	// the tempo and the normalized parameter values. Effects ignore the
	// events.
	base struct {
		sampleRate float64
		bpm        int
		params     []float32
	}
)

// Types lists the parameters of all device types, in index order.
var Types = map[string][]Parameter{
	"synth": {
		{Name: "waveform", Default: 0, Description: "sine (<1/3), saw (<2/3) or square"},
		{Name: "attack", Default: 0.005, Description: "0..2 s"},
		{Name: "release", Default: 0.05, Description: "0..2 s"},
		{Name: "gain", Default: 0.5, Description: "0..1"},
		{Name: "transpose", Default: 0.5, Description: "-24..+24 semitones, 0.5 is none"},
	},
	"gain": {
		{Name: "gain", Default: 0.5, Description: "0..2, 0.5 is unity"},
	},
	"pan": {
		{Name: "pan", Default: 0.5, Description: "left (0) to right (1), equal power"},
	},
	"filter": {
		{Name: "mode", Default: 0, Description: "lowpass (<1/3), highpass (<2/3) or bandpass"},
		{Name: "cutoff", Default: 0.5, Description: "20 Hz..20 kHz, exponential"},
		{Name: "resonance", Default: 0, Description: "Q 0.5..10"},
	},
	"delay": {
		{Name: "time", Default: 0.25, Description: "0..1 s"},
		{Name: "feedback", Default: 0.3, Description: "0..0.95"},
		{Name: "mix", Default: 0.3, Description: "dry (0) to wet (1)"},
	},
	"ducker": {
		{Name: "amount", Default: 0.5, Description: "0..1 gain reduction at full sidechain level"},
		{Name: "release", Default: 0.2, Description: "10 ms..1 s"},
	},
}

// TypeNames is a list of all the device type names, sorted alphabetically.
var TypeNames []string

func init() {
	TypeNames = make([]string, 0, len(Types))
	for k := range Types {
		TypeNames = append(TypeNames, k)
	}
	sort.Strings(TypeNames)
}

// NewDevice creates a device of type spec.Type with default parameters. The
// parameters of the device spec are loaded by the caller.
func (Factory) NewDevice(spec tahti.DeviceSpec) (tahti.Device, error) {
	params, ok := Types[spec.Type]
	if !ok {
		return nil, fmt.Errorf("unknown device type %q", spec.Type)
	}
	b := newBase(params)
	switch spec.Type {
	case "synth":
		return newSynth(b), nil
	case "gain":
		return &Gain{base: b}, nil
	case "pan":
		return &Pan{base: b}, nil
	case "filter":
		return newFilter(b), nil
	case "delay":
		return &Delay{base: b}, nil
	case "ducker":
		return &Ducker{base: b}, nil
	}
	return nil, fmt.Errorf("device type %q has no implementation", spec.Type)
}

func newBase(params []Parameter) base {
	b := base{sampleRate: tahti.DefaultSampleRate, bpm: 120, params: make([]float32, len(params))}
	for i, p := range params {
		b.params[i] = p.Default
	}
	return b
}

func (b *base) SetSampleRate(sampleRate float64) { b.sampleRate = sampleRate }
func (b *base) SetTempo(bpm int)                 { b.bpm = bpm }
func (b *base) NoteOn(byte, byte, int)           {}
func (b *base) NoteOff(byte, int)                {}
func (b *base) ControlChange(byte, byte, int)    {}
func (b *base) PitchBend(int, int)               {}
func (b *base) NumParams() int                   { return len(b.params) }

func (b *base) SetParam(index int, value float32) {
	if index < 0 || index >= len(b.params) {
		return
	}
	b.params[index] = min(max(value, 0), 1)
}

// choice maps a normalized parameter to one of n options.
func (b *base) choice(index, n int) int {
	return min(int(b.params[index]*float32(n)), n-1)
}

// passThrough copies the main pair of the inputs to the outputs, unless they
// already are the same buffers.
func passThrough(inputs, outputs [][]float32, numSamples int) {
	for c := 0; c < 2; c++ {
		copy(outputs[c][:numSamples], inputs[c][:numSamples])
	}
}
