package tahti

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutomationValueAt(t *testing.T) {
	a := Automation{Points: []AutomationPoint{{Time: 0, Value: 0}, {Time: 100, Value: 1}}}
	assert.Equal(t, float32(0.5), a.ValueAt(50))
	assert.Equal(t, float32(1), a.ValueAt(150))
	assert.Equal(t, float32(0), a.ValueAt(-10))
	assert.Equal(t, float32(0), a.ValueAt(0))
	assert.Equal(t, float32(1), a.ValueAt(100))
}

func TestAutomationJump(t *testing.T) {
	a := Automation{Points: []AutomationPoint{{Time: 10, Value: 0.2}, {Time: 20, Value: 0.4}, {Time: 20, Value: 0.9}, {Time: 30, Value: 0.9}}}
	assert.Equal(t, float32(0.2), a.ValueAt(5))
	assert.InDelta(t, 0.3, a.ValueAt(15), 1e-6)
	assert.Equal(t, float32(0.9), a.ValueAt(20))
	assert.Equal(t, float32(0.9), a.ValueAt(25))
}

func TestAutomationCursorOnlyMovesForward(t *testing.T) {
	a := Automation{Points: []AutomationPoint{{Time: 0, Value: 0}, {Time: 100, Value: 1}, {Time: 200, Value: 0}}}
	c := a.Cursor()
	for time := 0; time <= 200; time += 25 {
		assert.InDelta(t, a.ValueAt(time), c.ValueAt(time), 1e-7, "time %v", time)
	}
	// the cursor is at the last point, so an earlier time gets its value
	assert.Equal(t, float32(0), c.ValueAt(50))
	var empty AutomationCursor
	assert.Zero(t, empty.ValueAt(10))
}

func TestAutomationValidate(t *testing.T) {
	assert.ErrorContains(t, (&Automation{}).Validate(), "no points")
	assert.ErrorContains(t, (&Automation{Param: -1, Points: []AutomationPoint{{}}}).Validate(), "negative parameter")
	assert.ErrorContains(t, (&Automation{Points: []AutomationPoint{{Time: 5}, {Time: 4}}}).Validate(), "point 1")
	assert.NoError(t, (&Automation{Points: []AutomationPoint{{Time: 5}, {Time: 5}}}).Validate())
}
