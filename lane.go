package tahti

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

type (
	// Lane is the compact form of the MIDI events driving one track. Notes
	// are stored as note + duration, so a note never lacks its note off, and
	// controls separately from notes. Lanes are expanded into a single,
	// time-ordered list of events with Events before rendering.
	Lane struct {
		Notes    []Note    `yaml:",flow,omitempty"`
		Controls []Control `yaml:",flow,omitempty"`
	}

	// Note is a note in a lane. Delta is the distance, in samples, from the
	// start of the previous note in the lane (the first note is relative to
	// the start of the song).
	Note struct {
		Delta    int
		Note     byte
		Velocity byte
		Duration int
	}

	// Control is a control change or a pitch bend in a lane. Delta is the
	// distance, in samples, from the previous control in the lane.
	Control struct {
		Delta      int
		Type       EventType
		Controller byte `yaml:",omitempty"`
		Value      int
	}

	// Event is an expanded lane event. Delta is the distance, in samples,
	// from the previous event. Note is the note number for notes and the
	// controller number for control changes. Value is the velocity of a note
	// on, the value of a control change or the amount of pitch bend.
	Event struct {
		Delta int
		Type  EventType
		Note  byte
		Value int
	}

	EventType int
)

const (
	NoteOn EventType = iota
	NoteOff
	ControlChange
	PitchBend
)

var eventTypeNames = [...]string{"noteon", "noteoff", "cc", "pitchbend"}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return fmt.Sprintf("EventType(%d)", int(t))
	}
	return eventTypeNames[t]
}

func (t EventType) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return nil, fmt.Errorf("invalid event type %d", int(t))
	}
	return []byte(eventTypeNames[t]), nil
}

func (t *EventType) UnmarshalText(text []byte) error {
	i := slices.Index(eventTypeNames[:], strings.ToLower(string(text)))
	if i < 0 {
		return fmt.Errorf("unknown event type %q", text)
	}
	*t = EventType(i)
	return nil
}

// Events expands the lane: every note becomes a note on and a note off,
// every control an event, and all of them are sorted by their absolute time
// and delta encoded. The sort is stable, so events at the same time keep the
// order in which they were expanded: notes in lane order (note on before
// its note off) followed by the controls.
func (l *Lane) Events() []Event {
	type timedEvent struct {
		time  int
		event Event
	}
	timed := make([]timedEvent, 0, 2*len(l.Notes)+len(l.Controls))
	t := 0
	for _, n := range l.Notes {
		t += n.Delta
		timed = append(timed,
			timedEvent{t, Event{Type: NoteOn, Note: n.Note, Value: int(n.Velocity)}},
			timedEvent{t + n.Duration, Event{Type: NoteOff, Note: n.Note}})
	}
	t = 0
	for _, c := range l.Controls {
		t += c.Delta
		timed = append(timed, timedEvent{t, Event{Type: c.Type, Note: c.Controller, Value: c.Value}})
	}
	slices.SortStableFunc(timed, func(a, b timedEvent) int { return cmp.Compare(a.time, b.time) })
	ret := make([]Event, len(timed))
	prev := 0
	for i, e := range timed {
		e.event.Delta = e.time - prev
		prev = e.time
		ret[i] = e.event
	}
	return ret
}

// Duration returns the absolute time of the last event of the lane, i.e.
// the last note off or control.
func (l *Lane) Duration() int {
	ret, t := 0, 0
	for _, n := range l.Notes {
		t += n.Delta
		ret = max(ret, t+n.Duration)
	}
	t = 0
	for _, c := range l.Controls {
		t += c.Delta
		ret = max(ret, t)
	}
	return ret
}

// Validate checks that all times are non-negative and that notes and
// control values are in the MIDI ranges.
func (l *Lane) Validate() error {
	for i, n := range l.Notes {
		if n.Delta < 0 || n.Duration < 0 {
			return fmt.Errorf("note %v: negative delta or duration", i)
		}
		if n.Note > 127 || n.Velocity > 127 {
			return fmt.Errorf("note %v: note or velocity out of range [0,127]", i)
		}
	}
	for i, c := range l.Controls {
		if c.Delta < 0 {
			return fmt.Errorf("control %v: negative delta", i)
		}
		switch c.Type {
		case ControlChange:
			if c.Controller > 127 || c.Value < 0 || c.Value > 127 {
				return fmt.Errorf("control %v: controller or value out of range [0,127]", i)
			}
		case PitchBend:
			if c.Value < -8192 || c.Value > 8191 {
				return fmt.Errorf("control %v: pitch bend %v out of range [-8192,8191]", i, c.Value)
			}
		default:
			return fmt.Errorf("control %v: type %v is not cc or pitchbend", i, c.Type)
		}
	}
	return nil
}

// Copy makes a deep copy of a Lane.
func (l *Lane) Copy() Lane {
	return Lane{
		Notes:    append([]Note(nil), l.Notes...),
		Controls: append([]Control(nil), l.Controls...),
	}
}
