package tahti

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlSong = `
bpm: 100
master: 0
devices:
  - type: synth
    params: [0.5, 0.01]
  - type: gain
lanes:
  - notes: [{delta: 0, note: 60, velocity: 100, duration: 4410}]
    controls: [{delta: 100, type: cc, controller: 7, value: 90}]
tracks:
  - name: master
    devices: [1]
    receives:
      - source: 1
  - name: lead
    volume: 0.5
    devices: [0]
    lane: 0
    receives:
      - {source: 2, channel: 2, gain: 0.25}
  - name: empty
`

const jsonSong = `{
  "BPM": 100,
  "Devices": [{"Type": "synth"}],
  "Tracks": [{"Devices": [0], "Receives": [{"Source": 1}]}, {"Name": "other", "Lane": -1, "Volume": 0}]
}`

func TestReadSongYAML(t *testing.T) {
	song, err := ReadSong([]byte(yamlSong))
	require.NoError(t, err)
	require.NoError(t, song.Validate())
	assert.Equal(t, 100, song.BPM)
	assert.Equal(t, []float32{0.5, 0.01}, song.Devices[0].Params)
	require.Len(t, song.Tracks, 3)
	// defaults: no lane, unity volume, receive at unity gain to the main pair
	assert.Equal(t, Track{Name: "master", Volume: 1, Lane: -1, Devices: []int{1}, Receives: []Receive{{Source: 1, Gain: 1}}}, song.Tracks[0])
	assert.Equal(t, Track{Name: "lead", Volume: 0.5, Lane: 0, Devices: []int{0}, Receives: []Receive{{Source: 2, Channel: 2, Gain: 0.25}}}, song.Tracks[1])
	assert.Equal(t, Track{Name: "empty", Volume: 1, Lane: -1}, song.Tracks[2])
	assert.Equal(t, Control{Delta: 100, Type: ControlChange, Controller: 7, Value: 90}, song.Lanes[0].Controls[0])
}

func TestReadSongJSON(t *testing.T) {
	song, err := ReadSong([]byte(jsonSong))
	require.NoError(t, err)
	assert.Equal(t, Track{Volume: 1, Lane: -1, Devices: []int{0}, Receives: []Receive{{Source: 1, Gain: 1}}}, song.Tracks[0])
	assert.Equal(t, Track{Name: "other", Volume: 0, Lane: -1}, song.Tracks[1])
}

func TestReadSongErrors(t *testing.T) {
	_, err := ReadSong([]byte("bpm: [unclosed"))
	assert.ErrorContains(t, err, "could not be parsed")
	_, err = ReadSongFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorContains(t, err, "could not read file")
}

func TestReadSongFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlSong), 0644))
	song, err := ReadSongFile(path)
	require.NoError(t, err)
	assert.Equal(t, "lead", song.Tracks[1].Name)
}
