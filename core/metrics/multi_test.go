package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordSink struct {
	cycles, swaps, sizes int
	err                  error
}

func (r *recordSink) RecordCycle(CycleRecord) error {
	r.cycles++
	return r.err
}

func (r *recordSink) RecordSwap(SwapRecord) error {
	r.swaps++
	return nil
}

type cycleOnly struct{ n int }

func (c *cycleOnly) RecordCycle(CycleRecord) error {
	c.n++
	return nil
}

func TestMultiSinkForwards(t *testing.T) {
	s1 := &recordSink{}
	s2 := &cycleOnly{}
	m := NewMultiSink(s1, s2)
	assert.NoError(t, m.RecordCycle(CycleRecord{CycleID: "c1"}))
	assert.NoError(t, m.RecordSwap(SwapRecord{RobotID: "r1"}))
	assert.NoError(t, m.RecordFleetSize(3))
	assert.Equal(t, 1, s1.cycles)
	assert.Equal(t, 1, s1.swaps)
	assert.Equal(t, 1, s2.n)
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &cycleOnly{}
	err := NewMultiSink(s1, s2).RecordCycle(CycleRecord{})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s2.n)
}
