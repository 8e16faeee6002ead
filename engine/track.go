package engine

import (
	"github.com/viterin/vek/vek32"
	"github.com/vsariola/tahti"
)

type (
	// Track is the graph node rendering one track of a song. Each pass it
	// replays the lane events and automations falling into the pass, mixes
	// in the audio received from other tracks and runs its devices in place
	// on its own buffers.
	//
	// Process is only called by the graph processor, and only after all the
	// tracks this track receives from have finished the same pass, so the
	// buffers of the sources can be read without further synchronization.
	Track struct {
		spec        *tahti.Track
		devices     []tahti.Device
		sources     []*Track // parallel to spec.Receives
		events      []tahti.Event
		eventIndex  int
		eventTime   int // absolute time of events[eventIndex]
		automations []trackAutomation
		buffers     [tahti.NumChannels][]float32
		channels    [][]float32
		scratch     []float32
		position    int // absolute time of the first sample of the next pass
		sampleRate  float64
	}

	trackAutomation struct {
		device tahti.Device
		param  int
		cursor tahti.AutomationCursor
	}
)

// newTrack creates a track with buffers for at most maxSamples samples per
// pass. The sources of the receives are linked later, once all tracks exist.
func newTrack(spec *tahti.Track, devices []tahti.Device, events []tahti.Event, maxSamples int, sampleRate float64) *Track {
	t := &Track{
		spec:       spec,
		devices:    devices,
		events:     events,
		sources:    make([]*Track, len(spec.Receives)),
		channels:   make([][]float32, tahti.NumChannels),
		scratch:    make([]float32, maxSamples),
		sampleRate: sampleRate,
	}
	for c := range t.buffers {
		t.buffers[c] = make([]float32, maxSamples)
	}
	if len(events) > 0 {
		t.eventTime = events[0].Delta
	}
	for _, a := range spec.Automations {
		t.automations = append(t.automations, trackAutomation{
			device: devices[a.Device],
			param:  a.Param,
			cursor: a.Cursor(),
		})
	}
	return t
}

func (t *Track) NumDependencies() int {
	return len(t.spec.Receives)
}

func (t *Track) Dependency(i int) int {
	return t.spec.Receives[i].Source
}

// Process renders the next numSamples samples of the track. numSamples
// should not exceed the block size the track was created with.
func (t *Track) Process(numSamples int) {
	t.dispatchEvents(numSamples)
	for i := range t.automations {
		a := &t.automations[i]
		a.device.SetParam(a.param, a.cursor.ValueAt(t.position))
	}
	ch := t.channels
	for c := range ch {
		ch[c] = t.buffers[c][:numSamples]
		clear(ch[c])
	}
	scratch := t.scratch[:numSamples]
	for i, r := range t.spec.Receives {
		for c := 0; c < 2; c++ {
			vek32.MulNumber_Into(scratch, t.sources[i].buffers[c][:numSamples], r.Gain)
			vek32.Add_Inplace(ch[r.Channel+c], scratch)
		}
	}
	songPosition := float64(t.position) / t.sampleRate
	for _, d := range t.devices {
		d.Run(songPosition, ch, ch[:2], numSamples)
	}
	vek32.MulNumber_Inplace(ch[0], t.spec.Volume)
	vek32.MulNumber_Inplace(ch[1], t.spec.Volume)
	t.position += numSamples
}

// dispatchEvents sends the events in [position, position+numSamples) to
// every device, with their offsets from the start of the pass.
func (t *Track) dispatchEvents(numSamples int) {
	end := t.position + numSamples
	for t.eventIndex < len(t.events) && t.eventTime < end {
		e := t.events[t.eventIndex]
		offset := t.eventTime - t.position
		for _, d := range t.devices {
			switch e.Type {
			case tahti.NoteOn:
				d.NoteOn(e.Note, byte(e.Value), offset)
			case tahti.NoteOff:
				d.NoteOff(e.Note, offset)
			case tahti.ControlChange:
				d.ControlChange(e.Note, byte(e.Value), offset)
			case tahti.PitchBend:
				d.PitchBend(e.Value, offset)
			}
		}
		t.eventIndex++
		if t.eventIndex < len(t.events) {
			t.eventTime += t.events[t.eventIndex].Delta
		}
	}
}

// Output returns the main stereo pair rendered in the last pass.
func (t *Track) Output() (left, right []float32) {
	return t.channels[0], t.channels[1]
}

// Position returns the absolute time, in samples, of the next pass.
func (t *Track) Position() int {
	return t.position
}
