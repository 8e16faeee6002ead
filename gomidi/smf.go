// Package gomidi imports standard MIDI files into song lanes.
package gomidi

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/vsariola/tahti"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type (
	// Import is the result of reading a MIDI file: one lane per track of the
	// file that has notes or controls, and the tempo of the file.
	Import struct {
		BPM    int
		Lanes  []tahti.Lane
		Tracks []int // index of the track in the file, for each lane
	}

	tempoChange struct {
		tick   int64
		sample float64
		bpm    float64
	}

	// tempoMap converts absolute ticks into samples.
	tempoMap struct {
		changes         []tempoChange
		ticksPerQuarter float64
		sampleRate      float64
	}

	openNote struct {
		key   uint8
		index int
	}
)

// DefaultBPM is the tempo of MIDI files without a tempo meta event.
const DefaultBPM = 120

var ErrTimecode = errors.New("SMPTE time code MIDI files are not supported")

// ReadFile reads the MIDI file with the given name, see Read.
func ReadFile(filename string, sampleRate int) (*Import, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open MIDI file: %w", err)
	}
	defer f.Close()
	ret, err := Read(f, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("could not read MIDI file %v: %w", filename, err)
	}
	return ret, nil
}

// Read reads a standard MIDI file and converts its tracks into lanes with
// times in samples at the given sample rate. All the tempo changes of the
// file are honored when converting the times; the BPM of the import is the
// first tempo of the file. Note ons are paired with the first open note off
// of the same key, regardless of the channel; notes still open at the end
// of a track end there.
func Read(r io.Reader, sampleRate int) (*Import, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrTimecode
	}
	tempo := newTempoMap(s, float64(ticks), float64(sampleRate))
	ret := &Import{BPM: int(math.Round(tempo.changes[0].bpm))}
	for i, track := range s.Tracks {
		lane := convertTrack(track, tempo)
		if len(lane.Notes) == 0 && len(lane.Controls) == 0 {
			continue
		}
		ret.Lanes = append(ret.Lanes, lane)
		ret.Tracks = append(ret.Tracks, i)
	}
	return ret, nil
}

func newTempoMap(s *smf.SMF, ticksPerQuarter, sampleRate float64) *tempoMap {
	var changes []tempoChange
	for _, track := range s.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				changes = append(changes, tempoChange{tick: tick, bpm: bpm})
			}
		}
	}
	slices.SortStableFunc(changes, func(a, b tempoChange) int { return cmp.Compare(a.tick, b.tick) })
	if len(changes) == 0 || changes[0].tick > 0 {
		changes = append([]tempoChange{{bpm: DefaultBPM}}, changes...)
	}
	m := &tempoMap{changes: changes, ticksPerQuarter: ticksPerQuarter, sampleRate: sampleRate}
	for i := 1; i < len(changes); i++ {
		changes[i].sample = m.offset(changes[i-1], changes[i].tick)
	}
	return m
}

func (m *tempoMap) offset(c tempoChange, tick int64) float64 {
	return c.sample + float64(tick-c.tick)*m.sampleRate*60/(c.bpm*m.ticksPerQuarter)
}

// Sample returns the time of an absolute tick in samples.
func (m *tempoMap) Sample(tick int64) int {
	i := len(m.changes) - 1
	for i > 0 && m.changes[i].tick > tick {
		i--
	}
	return int(math.Round(m.offset(m.changes[i], tick)))
}

func convertTrack(track smf.Track, tempo *tempoMap) tahti.Lane {
	type timedNote struct {
		start int
		note  tahti.Note
	}
	var notes []timedNote
	var open []openNote
	var controls []tahti.Control
	var controlTimes []int
	var tick int64
	for _, ev := range track {
		tick += int64(ev.Delta)
		t := tempo.Sample(tick)
		msg := midi.Message(ev.Message)
		var channel, key, velocity, controller, value uint8
		var bend int16
		var abs uint16
		switch {
		case msg.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
			open = append(open, openNote{key: key, index: len(notes)})
			notes = append(notes, timedNote{start: t, note: tahti.Note{Note: key, Velocity: velocity}})
		case msg.GetNoteOn(&channel, &key, &velocity), msg.GetNoteOff(&channel, &key, &velocity):
			i := slices.IndexFunc(open, func(o openNote) bool { return o.key == key })
			if i < 0 {
				continue
			}
			n := &notes[open[i].index]
			n.note.Duration = t - n.start
			open = slices.Delete(open, i, i+1)
		case msg.GetControlChange(&channel, &controller, &value):
			controls = append(controls, tahti.Control{Type: tahti.ControlChange, Controller: controller, Value: int(value)})
			controlTimes = append(controlTimes, t)
		case msg.GetPitchBend(&channel, &bend, &abs):
			controls = append(controls, tahti.Control{Type: tahti.PitchBend, Value: int(bend)})
			controlTimes = append(controlTimes, t)
		}
	}
	end := tempo.Sample(tick)
	for _, o := range open {
		n := &notes[o.index]
		n.note.Duration = end - n.start
	}
	var lane tahti.Lane
	prev := 0
	for _, n := range notes {
		n.note.Delta = n.start - prev
		prev = n.start
		lane.Notes = append(lane.Notes, n.note)
	}
	prev = 0
	for i, c := range controls {
		c.Delta = controlTimes[i] - prev
		prev = controlTimes[i]
		lane.Controls = append(lane.Controls, c)
	}
	return lane
}
