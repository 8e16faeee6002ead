package engine

import (
	"fmt"
	"math"

	"github.com/vsariola/tahti"
)

type (
	testFactory struct {
		constructors map[string]func(spec tahti.DeviceSpec) tahti.Device
	}

	// recorder records the events and parameter changes it receives, with
	// absolute times.
	recorder struct {
		position int
		events   []recordedEvent
		params   []recordedParam
		offsets  []int // every offset relative to its pass
		passes   []int // numSamples of every pass
		onRun    func()
	}

	recordedEvent struct {
		Time  int
		Type  tahti.EventType
		Note  byte
		Value int
	}

	recordedParam struct {
		Time  int
		Index int
		Value float32
	}

	// tone adds a deterministic signal to the main pair: a sine with the
	// period given as parameter 0 (in samples) and amplitude parameter 1.
	tone struct {
		position  int
		period    float32
		amplitude float32
	}
)

func (f testFactory) NewDevice(spec tahti.DeviceSpec) (tahti.Device, error) {
	c, ok := f.constructors[spec.Type]
	if !ok {
		return nil, fmt.Errorf("no device %q", spec.Type)
	}
	return c(spec), nil
}

func (r *recorder) SetSampleRate(float64) {}
func (r *recorder) SetTempo(int)          {}
func (r *recorder) NumParams() int        { return 4 }

func (r *recorder) record(offset int, typ tahti.EventType, note byte, value int) {
	r.offsets = append(r.offsets, offset)
	r.events = append(r.events, recordedEvent{Time: r.position + offset, Type: typ, Note: note, Value: value})
}

func (r *recorder) NoteOn(note, velocity byte, offset int) {
	r.record(offset, tahti.NoteOn, note, int(velocity))
}

func (r *recorder) NoteOff(note byte, offset int) {
	r.record(offset, tahti.NoteOff, note, 0)
}

func (r *recorder) ControlChange(controller, value byte, offset int) {
	r.record(offset, tahti.ControlChange, controller, int(value))
}

func (r *recorder) PitchBend(value int, offset int) {
	r.record(offset, tahti.PitchBend, 0, value)
}

func (r *recorder) SetParam(index int, value float32) {
	r.params = append(r.params, recordedParam{Time: r.position, Index: index, Value: value})
}

func (r *recorder) Run(_ float64, inputs, outputs [][]float32, numSamples int) {
	if r.onRun != nil {
		r.onRun()
	}
	r.passes = append(r.passes, numSamples)
	r.position += numSamples
}

func (t *tone) SetSampleRate(float64)         {}
func (t *tone) SetTempo(int)                  {}
func (t *tone) NoteOn(byte, byte, int)        {}
func (t *tone) NoteOff(byte, int)             {}
func (t *tone) ControlChange(byte, byte, int) {}
func (t *tone) PitchBend(int, int)            {}
func (t *tone) NumParams() int                { return 2 }

func (t *tone) SetParam(index int, value float32) {
	switch index {
	case 0:
		t.period = value
	case 1:
		t.amplitude = value
	}
}

func (t *tone) Run(_ float64, inputs, outputs [][]float32, numSamples int) {
	for i := range numSamples {
		v := t.amplitude * float32(math.Sin(2*math.Pi*float64(t.position+i)/float64(t.period)))
		outputs[0][i] += v
		outputs[1][i] -= v
	}
	t.position += numSamples
}
