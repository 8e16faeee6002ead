package tahti

type (
	// Device is a stateful, deterministic audio processing unit: an
	// instrument or an effect. All the event methods take the offset, in
	// samples, from the start of the next Run call, so a device can place
	// notes with sample accuracy inside the block.
	//
	// A Device is only ever called from one goroutine at a time, but not
	// necessarily always the same goroutine.
	Device interface {
		SetSampleRate(sampleRate float64)
		SetTempo(bpm int)
		NoteOn(note, velocity byte, offset int)
		NoteOff(note byte, offset int)
		ControlChange(controller, value byte, offset int)
		// PitchBend value is in the range -8192..8191
		PitchBend(value int, offset int)
		// Run processes numSamples samples. inputs contains all the channels
		// of the track (main pair followed by the sidechain pair) and outputs
		// the main pair. The slices may alias: devices are run in place.
		Run(songPosition float64, inputs, outputs [][]float32, numSamples int)
		// SetParam sets the normalized (0..1) value of a parameter. Values
		// out of range are clamped by the device.
		SetParam(index int, value float32)
		NumParams() int
	}

	// DeviceFactory creates devices from their song descriptions.
	DeviceFactory interface {
		NewDevice(spec DeviceSpec) (Device, error)
	}

	// DeviceSpec describes a device in a song: the type of the device and the
	// normalized values of its parameters, loaded once when the device is
	// created.
	DeviceSpec struct {
		Type    string
		Params  []float32 `yaml:",flow,omitempty"`
		Comment string    `yaml:",omitempty"`
	}
)

// Copy makes a deep copy of a DeviceSpec.
func (d *DeviceSpec) Copy() DeviceSpec {
	return DeviceSpec{Type: d.Type, Params: append([]float32(nil), d.Params...), Comment: d.Comment}
}

// Param returns the value of parameter index, or def if the device spec does not
// define it.
func (d *DeviceSpec) Param(index int, def float32) float32 {
	if index < 0 || index >= len(d.Params) {
		return def
	}
	return d.Params[index]
}

// LoadParams bulk loads the parameters of the device spec into the device.
func (d *DeviceSpec) LoadParams(device Device) {
	for i := range min(len(d.Params), device.NumParams()) {
		device.SetParam(i, d.Params[i])
	}
}
