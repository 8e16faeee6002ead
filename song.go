package tahti

import (
	"errors"
	"fmt"
)

type (
	// Song is the complete, load-time description of what is rendered: the
	// devices, the MIDI lanes driving them and the tracks that chain devices
	// together and route audio between each other. A Song is never modified
	// after a renderer has been built from it.
	Song struct {
		// BPM is passed to every device with SetTempo. Tempo is fixed for the
		// whole song.
		BPM int

		// SampleRate in Hz. Zero means DefaultSampleRate.
		SampleRate int `yaml:",omitempty"`

		// Length of the song in samples (frames). Zero means that the length
		// is derived from the last lane event and automation point, see
		// LengthInSamples.
		Length int `yaml:",omitempty"`

		// Master is the index of the track whose main stereo pair is the
		// final output of the song.
		Master int

		Devices []DeviceSpec
		Lanes   []Lane  `yaml:",omitempty"`
		Tracks  []Track
	}

	// Track chains devices together. Every render pass, the track first
	// replays the events of its lane and its automations, then mixes in the
	// audio received from other tracks and finally runs its devices, in
	// order, in place on its own buffers.
	Track struct {
		Name string `yaml:",omitempty"`

		// Volume scales the main stereo pair of the track after all the
		// devices have been run.
		Volume float32

		// Devices lists the indices of Song.Devices forming the device chain
		// of this track. A device can belong to only one track.
		Devices []int `yaml:",flow"`

		// Lane is the index of the MIDI lane in Song.Lanes driving the
		// devices of this track, or -1 if the track has no lane.
		Lane int

		// Receives lists the tracks whose output is mixed into this track.
		// Receives are the edges of the dependency graph: a track is never
		// rendered before the tracks it receives from.
		Receives []Receive `yaml:",omitempty"`

		Automations []Automation `yaml:",omitempty"`
	}

	// Receive mixes the main stereo pair (channels 0 and 1) of the Source
	// track, multiplied by Gain, into channels Channel and Channel+1 of the
	// receiving track. Channel 0 targets the main pair, channel 2 the
	// sidechain pair.
	Receive struct {
		Source  int
		Channel int `yaml:",omitempty"`
		Gain    float32
	}
)

// DefaultSampleRate is used when Song.SampleRate is zero.
const DefaultSampleRate = 44100

// NumChannels is the number of audio channels every track owns: the main
// stereo pair followed by the sidechain stereo pair.
const NumChannels = 4

var ErrEmptySong = errors.New("song contains no tracks")

// SamplesPerSecond returns the sample rate of the song, applying the default
// if the sample rate is not set.
func (s *Song) SamplesPerSecond() int {
	if s.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return s.SampleRate
}

// LengthInSamples returns Song.Length if it is set. Otherwise, the length is
// the time of the last event in the lanes used by the tracks, or the time of
// the last automation point, whichever comes later.
func (s *Song) LengthInSamples() int {
	if s.Length > 0 {
		return s.Length
	}
	ret := 0
	for _, t := range s.Tracks {
		if t.Lane >= 0 && t.Lane < len(s.Lanes) {
			ret = max(ret, s.Lanes[t.Lane].Duration())
		}
		for _, a := range t.Automations {
			if n := len(a.Points); n > 0 {
				ret = max(ret, a.Points[n-1].Time)
			}
		}
	}
	return ret
}

// Validate checks that all the indices in the song point to something that
// exists, that no device is shared between tracks and that lanes and
// automations are well formed. Validate does not look for cycles in the
// receive graph; that is done when the graph is built.
func (s *Song) Validate() error {
	if s.BPM < 1 {
		return errors.New("BPM should be > 0")
	}
	if len(s.Tracks) == 0 {
		return ErrEmptySong
	}
	if s.Master < 0 || s.Master >= len(s.Tracks) {
		return fmt.Errorf("master track %v out of range [0,%v)", s.Master, len(s.Tracks))
	}
	for i, l := range s.Lanes {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("lane %v: %w", i, err)
		}
	}
	owner := make([]int, len(s.Devices))
	for i := range owner {
		owner[i] = -1
	}
	for i, t := range s.Tracks {
		if err := s.validateTrack(i, &t, owner); err != nil {
			return fmt.Errorf("track %v: %w", i, err)
		}
	}
	return nil
}

func (s *Song) validateTrack(index int, t *Track, owner []int) error {
	for _, d := range t.Devices {
		if d < 0 || d >= len(s.Devices) {
			return fmt.Errorf("device %v out of range [0,%v)", d, len(s.Devices))
		}
		if owner[d] >= 0 {
			return fmt.Errorf("device %v is already used by track %v", d, owner[d])
		}
		owner[d] = index
	}
	if t.Lane < -1 || t.Lane >= len(s.Lanes) {
		return fmt.Errorf("lane %v out of range [-1,%v)", t.Lane, len(s.Lanes))
	}
	for _, r := range t.Receives {
		if r.Source < 0 || r.Source >= len(s.Tracks) {
			return fmt.Errorf("receive source %v out of range [0,%v)", r.Source, len(s.Tracks))
		}
		if r.Source == index {
			return errors.New("track cannot receive from itself")
		}
		if r.Channel < 0 || r.Channel+1 >= NumChannels {
			return fmt.Errorf("receive channel %v out of range [0,%v]", r.Channel, NumChannels-2)
		}
	}
	for j, a := range t.Automations {
		if a.Device < 0 || a.Device >= len(t.Devices) {
			return fmt.Errorf("automation %v: device %v out of range [0,%v)", j, a.Device, len(t.Devices))
		}
		if err := a.Validate(); err != nil {
			return fmt.Errorf("automation %v: %w", j, err)
		}
	}
	return nil
}

// Copy makes a deep copy of a Song.
func (s *Song) Copy() Song {
	var devices []DeviceSpec
	for _, d := range s.Devices {
		devices = append(devices, d.Copy())
	}
	var lanes []Lane
	for _, l := range s.Lanes {
		lanes = append(lanes, l.Copy())
	}
	var tracks []Track
	for _, t := range s.Tracks {
		tracks = append(tracks, t.Copy())
	}
	return Song{
		BPM:        s.BPM,
		SampleRate: s.SampleRate,
		Length:     s.Length,
		Master:     s.Master,
		Devices:    devices,
		Lanes:      lanes,
		Tracks:     tracks,
	}
}

// Copy makes a deep copy of a Track.
func (t *Track) Copy() Track {
	var automations []Automation
	for _, a := range t.Automations {
		automations = append(automations, a.Copy())
	}
	return Track{
		Name:        t.Name,
		Volume:      t.Volume,
		Devices:     append([]int(nil), t.Devices...),
		Lane:        t.Lane,
		Receives:    append([]Receive(nil), t.Receives...),
		Automations: automations,
	}
}

// NumDependencies and Dependency expose the receives of the track as the
// edges of the dependency graph.
func (t *Track) NumDependencies() int {
	return len(t.Receives)
}

func (t *Track) Dependency(i int) int {
	return t.Receives[i].Source
}
