package tahti

import (
	"errors"
	"fmt"
)

type (
	// Automation drives one parameter of one device of a track over the
	// song. Device is the position of the device in the device chain of the
	// track, not an index into Song.Devices.
	Automation struct {
		Device int
		Param  int
		Points []AutomationPoint `yaml:",flow"`
	}

	// AutomationPoint is a control point of an automation. Time is the
	// absolute time in samples; Value is the normalized parameter value.
	AutomationPoint struct {
		Time  int
		Value float32
	}

	// AutomationCursor samples an Automation at increasing times. The cursor
	// only moves forward: sampling at a time earlier than a previous sample
	// does not rewind it.
	AutomationCursor struct {
		points []AutomationPoint
		index  int
	}
)

// Validate checks that the automation has points and that they are in time
// order. Two points can have the same time, which makes the value jump.
func (a *Automation) Validate() error {
	if len(a.Points) == 0 {
		return errors.New("automation has no points")
	}
	if a.Param < 0 {
		return fmt.Errorf("negative parameter index %v", a.Param)
	}
	for i := 1; i < len(a.Points); i++ {
		if a.Points[i].Time < a.Points[i-1].Time {
			return fmt.Errorf("point %v is earlier than the previous point", i)
		}
	}
	return nil
}

// ValueAt returns the value of the automation at the given time: linearly
// interpolated between the two surrounding points, the first value before
// the first point and the last value after the last point.
func (a *Automation) ValueAt(time int) float32 {
	c := a.Cursor()
	return c.ValueAt(time)
}

// Cursor returns a new cursor at the start of the automation.
func (a *Automation) Cursor() AutomationCursor {
	return AutomationCursor{points: a.Points}
}

// Copy makes a deep copy of an Automation.
func (a *Automation) Copy() Automation {
	return Automation{Device: a.Device, Param: a.Param, Points: append([]AutomationPoint(nil), a.Points...)}
}

// ValueAt advances the cursor to the given time and returns the value of the
// automation there.
func (c *AutomationCursor) ValueAt(time int) float32 {
	n := len(c.points)
	if n == 0 {
		return 0
	}
	for c.index+1 < n && c.points[c.index+1].Time <= time {
		c.index++
	}
	p0 := c.points[c.index]
	if time <= p0.Time || c.index == n-1 {
		return p0.Value
	}
	p1 := c.points[c.index+1]
	frac := float64(time-p0.Time) / float64(p1.Time-p0.Time)
	return p0.Value + float32(frac*float64(p1.Value-p0.Value))
}
