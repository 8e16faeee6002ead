package gomidi

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/tahti"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// at 96 ticks per quarter, 120 BPM and 48 kHz, a tick is 250 samples
func writeSMF(t *testing.T, tracks ...smf.Track) *bytes.Buffer {
	t.Helper()
	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(96)
	for _, tr := range tracks {
		if !tr.IsClosed() {
			tr.Close(0)
		}
		require.NoError(t, s.Add(tr))
	}
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestRead(t *testing.T) {
	var conductor, track smf.Track
	conductor.Add(0, smf.MetaTempo(120))
	track.Add(0, midi.NoteOn(0, 60, 100))
	track.Add(96, midi.NoteOn(1, 64, 90))
	track.Add(96, midi.NoteOff(0, 60))
	track.Add(48, midi.NoteOn(1, 64, 0))
	track.Add(0, midi.ControlChange(0, 7, 100))
	track.Add(4, midi.Pitchbend(0, -8192))
	imp, err := Read(writeSMF(t, conductor, track), 48000)
	require.NoError(t, err)
	assert.Equal(t, 120, imp.BPM)
	assert.Equal(t, []int{1}, imp.Tracks)
	want := tahti.Lane{
		Notes: []tahti.Note{
			{Delta: 0, Note: 60, Velocity: 100, Duration: 48000},
			{Delta: 24000, Note: 64, Velocity: 90, Duration: 36000},
		},
		Controls: []tahti.Control{
			{Delta: 60000, Type: tahti.ControlChange, Controller: 7, Value: 100},
			{Delta: 1000, Type: tahti.PitchBend, Value: -8192},
		},
	}
	require.Len(t, imp.Lanes, 1)
	assert.Equal(t, want, imp.Lanes[0])
	assert.NoError(t, imp.Lanes[0].Validate())
}

func TestReadHonorsTempoChanges(t *testing.T) {
	var conductor, track smf.Track
	conductor.Add(0, smf.MetaTempo(120))
	conductor.Add(96, smf.MetaTempo(60))
	track.Add(192, midi.NoteOn(0, 60, 100))
	track.Add(96, midi.NoteOff(0, 60))
	imp, err := Read(writeSMF(t, conductor, track), 48000)
	require.NoError(t, err)
	assert.Equal(t, 120, imp.BPM)
	require.Len(t, imp.Lanes, 1)
	assert.Equal(t, []tahti.Note{{Delta: 96*250 + 96*500, Note: 60, Velocity: 100, Duration: 96 * 500}}, imp.Lanes[0].Notes)
}

func TestReadDefaults(t *testing.T) {
	var track smf.Track
	track.Add(0, midi.NoteOn(0, 60, 100))
	track.Add(0, midi.NoteOn(0, 60, 80))
	track.Add(10, midi.NoteOff(0, 60))
	track.Close(86)
	imp, err := Read(writeSMF(t, track), 48000)
	require.NoError(t, err)
	assert.Equal(t, DefaultBPM, imp.BPM)
	require.Len(t, imp.Lanes, 1)
	// the first note on is closed by the note off, the second one by the end
	// of the track
	assert.Equal(t, []tahti.Note{
		{Delta: 0, Note: 60, Velocity: 100, Duration: 2500},
		{Delta: 0, Note: 60, Velocity: 80, Duration: 24000},
	}, imp.Lanes[0].Notes)
}

func TestReadInvalid(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not a midi file")), 44100)
	assert.Error(t, err)
	_, err = ReadFile("does-not-exist.mid", 44100)
	assert.ErrorContains(t, err, "could not open MIDI file")
}
