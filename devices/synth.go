package devices

import "math"

type (
	// Synth is a polyphonic oscillator instrument. It adds its output to the
	// main pair, so audio the track received before the synth is kept.
	//
	// Events are queued with their offsets and the block is rendered in
	// pieces between them, so notes start and stop on the exact sample.
	Synth struct {
		base
		voices  [NumVoices]voice
		pending []synthEvent
		bend    float64 // semitones
		volume  float32 // CC 7
		age     uint64
	}

	voice struct {
		note     byte
		velocity float32
		phase    float64
		level    float32
		step     float32 // per sample change of level
		stage    envelopeStage
		age      uint64
	}

	synthEvent struct {
		offset int
		kind   byte
		note   byte
		value  int
	}

	envelopeStage int
)

// NumVoices is the number of notes a synth can play at the same time. A note
// beyond that steals the voice of the oldest note.
const NumVoices = 8

const (
	off envelopeStage = iota
	attack
	sustain
	release
)

const (
	eventNoteOn = iota
	eventNoteOff
	eventControl
	eventBend
)

const (
	sine = iota
	saw
	square
)

func newSynth(b base) *Synth {
	return &Synth{base: b, volume: 1}
}

func (s *Synth) NoteOn(note, velocity byte, offset int) {
	s.pending = append(s.pending, synthEvent{offset: offset, kind: eventNoteOn, note: note, value: int(velocity)})
}

func (s *Synth) NoteOff(note byte, offset int) {
	s.pending = append(s.pending, synthEvent{offset: offset, kind: eventNoteOff, note: note})
}

func (s *Synth) ControlChange(controller, value byte, offset int) {
	s.pending = append(s.pending, synthEvent{offset: offset, kind: eventControl, note: controller, value: int(value)})
}

func (s *Synth) PitchBend(value int, offset int) {
	s.pending = append(s.pending, synthEvent{offset: offset, kind: eventBend, value: value})
}

// NumActiveVoices returns the number of voices currently sounding.
func (s *Synth) NumActiveVoices() int {
	n := 0
	for i := range s.voices {
		if s.voices[i].stage != off {
			n++
		}
	}
	return n
}

func (s *Synth) Run(_ float64, inputs, outputs [][]float32, numSamples int) {
	passThrough(inputs, outputs, numSamples)
	pos := 0
	for _, e := range s.pending {
		offset := min(max(e.offset, pos), numSamples)
		s.render(outputs, pos, offset)
		pos = offset
		s.apply(e)
	}
	s.pending = s.pending[:0]
	s.render(outputs, pos, numSamples)
}

func (s *Synth) apply(e synthEvent) {
	switch e.kind {
	case eventNoteOn:
		if e.value == 0 {
			s.release(e.note)
			return
		}
		v := s.freeVoice()
		s.age++
		*v = voice{note: e.note, velocity: float32(e.value) / 127, stage: attack, age: s.age}
		attackTime := float64(s.params[1]) * 2 * s.sampleRate
		if attackTime < 1 {
			v.level, v.stage = 1, sustain
		} else {
			v.step = float32(1 / attackTime)
		}
	case eventNoteOff:
		s.release(e.note)
	case eventControl:
		if e.note == 7 {
			s.volume = float32(e.value) / 127
		}
	case eventBend:
		s.bend = float64(e.value) / 8192 * 2
	}
}

func (s *Synth) freeVoice() *voice {
	oldest := &s.voices[0]
	for i := range s.voices {
		v := &s.voices[i]
		if v.stage == off {
			return v
		}
		if v.age < oldest.age {
			oldest = v
		}
	}
	return oldest
}

func (s *Synth) release(note byte) {
	releaseTime := float32(float64(s.params[2]) * 2 * s.sampleRate)
	for i := range s.voices {
		v := &s.voices[i]
		if v.note != note || v.stage == off || v.stage == release {
			continue
		}
		if releaseTime < 1 {
			v.stage, v.level = off, 0
			continue
		}
		v.stage = release
		v.step = v.level / releaseTime
	}
}

func (s *Synth) render(outputs [][]float32, from, to int) {
	if from >= to {
		return
	}
	waveform := s.choice(0, 3)
	transpose := math.Round(float64(s.params[4])*48 - 24)
	gain := s.params[3] * s.volume
	left, right := outputs[0][from:to], outputs[1][from:to]
	for i := range s.voices {
		v := &s.voices[i]
		if v.stage == off {
			continue
		}
		freq := 440 * math.Pow(2, (float64(v.note)-69+transpose+s.bend)/12)
		inc := freq / s.sampleRate
		for j := range left {
			out := oscillator(waveform, v.phase) * v.level * v.velocity * gain
			left[j] += out
			right[j] += out
			v.phase += inc
			v.phase -= math.Floor(v.phase)
			switch v.stage {
			case attack:
				if v.level += v.step; v.level >= 1 {
					v.level, v.stage = 1, sustain
				}
			case release:
				if v.level -= v.step; v.level <= 0 {
					v.level, v.stage = 0, off
				}
			}
			if v.stage == off {
				break
			}
		}
	}
}

func oscillator(waveform int, phase float64) float32 {
	switch waveform {
	case saw:
		return float32(2*phase - 1)
	case square:
		if phase < 0.5 {
			return 1
		}
		return -1
	}
	return float32(math.Sin(2 * math.Pi * phase))
}
