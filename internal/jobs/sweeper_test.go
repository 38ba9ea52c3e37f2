package jobs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCleaner struct {
	calls atomic.Int32
}

func (c *countingCleaner) Cleanup() int {
	c.calls.Add(1)
	return 0
}

func TestSweeperInvalidSchedule(t *testing.T) {
	_, err := NewSweeper("every now and then", &countingCleaner{})
	assert.Error(t, err)
}

func TestSweepRunsHooks(t *testing.T) {
	cleaner := &countingCleaner{}
	var hooked atomic.Int32

	s, err := NewSweeper("@every 1m", cleaner, func() { hooked.Add(1) })
	require.NoError(t, err)

	s.Sweep()
	assert.Equal(t, int32(1), cleaner.calls.Load())
	assert.Equal(t, int32(1), hooked.Load())
}

func TestSweeperRunsOnSchedule(t *testing.T) {
	cleaner := &countingCleaner{}
	s, err := NewSweeper("@every 1s", cleaner)
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return cleaner.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()
}
