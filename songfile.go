package tahti

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ReadSong parses a song from .json or .yml data. JSON is tried first, as
// every JSON document is also YAML but the JSON errors are more useful.
func ReadSong(data []byte) (Song, error) {
	var song Song
	if errJSON := json.Unmarshal(data, &song); errJSON != nil {
		song = Song{}
		if errYaml := yaml.Unmarshal(data, &song); errYaml != nil {
			return Song{}, fmt.Errorf("the song could not be parsed as .json (%v) or .yml (%w)", errJSON, errYaml)
		}
	}
	return song, nil
}

// ReadSongFile reads and parses a song file.
func ReadSongFile(filename string) (Song, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Song{}, fmt.Errorf("could not read file %v: %w", filename, err)
	}
	song, err := ReadSong(data)
	if err != nil {
		return Song{}, fmt.Errorf("could not parse file %v: %w", filename, err)
	}
	return song, nil
}

// Song files can leave out the lane, volume and gain; a track then has no
// lane, unity volume and receives at unity gain.

type plainTrack Track

func defaultTrack() plainTrack {
	return plainTrack{Lane: -1, Volume: 1}
}

func (t *Track) UnmarshalYAML(node *yaml.Node) error {
	p := defaultTrack()
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = Track(p)
	return nil
}

func (t *Track) UnmarshalJSON(data []byte) error {
	p := defaultTrack()
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Track(p)
	return nil
}

type plainReceive Receive

func (r *Receive) UnmarshalYAML(node *yaml.Node) error {
	p := plainReceive{Gain: 1}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = Receive(p)
	return nil
}

func (r *Receive) UnmarshalJSON(data []byte) error {
	p := plainReceive{Gain: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Receive(p)
	return nil
}
