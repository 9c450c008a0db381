package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func TestManual_RunsDueCallbacksInOrder(t *testing.T) {
	m := NewManual(epoch)
	var order []string

	m.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	m.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	m.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	m.AfterFunc(10*time.Second, func() { order = append(order, "late") })

	m.Advance(3 * time.Second)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, epoch.Add(3*time.Second), m.Now())
	assert.Equal(t, 1, m.Pending())
}

func TestManual_StopPreventsCallback(t *testing.T) {
	m := NewManual(epoch)
	ran := false
	timer := m.AfterFunc(time.Second, func() { ran = true })

	require.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports false")

	m.Advance(time.Minute)
	assert.False(t, ran)
}

func TestManual_CallbackSchedulesFollowUp(t *testing.T) {
	m := NewManual(epoch)
	var at []time.Time

	var tick func()
	tick = func() {
		at = append(at, m.Now())
		if len(at) < 3 {
			m.AfterFunc(2*time.Second, tick)
		}
	}
	m.AfterFunc(time.Second, tick)

	m.Advance(5 * time.Second)

	require.Len(t, at, 3)
	assert.Equal(t, epoch.Add(1*time.Second), at[0])
	assert.Equal(t, epoch.Add(3*time.Second), at[1])
	assert.Equal(t, epoch.Add(5*time.Second), at[2])
}

func TestManual_FiredTimerCannotBeStopped(t *testing.T) {
	m := NewManual(epoch)
	timer := m.AfterFunc(time.Second, func() {})
	m.Advance(time.Second)
	assert.False(t, timer.Stop())
}
