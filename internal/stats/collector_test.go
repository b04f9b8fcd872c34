package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrentActivity(t *testing.T) {
	c := NewCollector()
	const goroutines = 50
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := range goroutines {
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				c.RecordActivity(i%2 == 0)
				c.Update(1)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	half := int64(goroutines / 2 * opsPerGoroutine)
	assert.Equal(t, half, s.RecvEvents)
	assert.Equal(t, half, s.SendEvents)
	assert.Equal(t, int64(goroutines*opsPerGoroutine), s.BytesTransferred)
}

func TestDownloadProgressAnyDelta(t *testing.T) {
	c := NewCollector()
	c.Init(1000, 0, true)

	assert.False(t, c.Update(0))
	assert.False(t, c.MadeProgress())

	assert.True(t, c.Update(1), "first positive delta counts")
	assert.False(t, c.Update(10), "reported only once")
	assert.True(t, c.MadeProgress())
}

func TestUploadProgressThreshold(t *testing.T) {
	c := NewCollector()
	c.Init(1<<20, 100, false)

	assert.False(t, c.Update(uploadProgressThreshold))
	assert.False(t, c.MadeProgress())

	assert.True(t, c.Update(1))
	assert.True(t, c.MadeProgress())
}

func TestInitResetsTransfer(t *testing.T) {
	c := NewCollector()
	c.Init(100, 0, true)
	c.Update(50)
	c.Finish(true)

	c.Init(200, 20, false)
	s := c.Snapshot()
	assert.Equal(t, int64(200), s.BytesTotal)
	assert.Equal(t, int64(20), s.StartOffset)
	assert.Zero(t, s.BytesTransferred)
	assert.False(t, s.MadeProgress)
	assert.True(t, s.Active)
	assert.Equal(t, int64(1), s.FilesDone)
}

func TestFinish(t *testing.T) {
	c := NewCollector()
	c.Init(1, 0, true)
	c.Finish(false)
	s := c.Snapshot()
	assert.False(t, s.Active)
	assert.Equal(t, int64(1), s.FilesFailed)
	assert.Zero(t, s.FilesDone)
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		BytesTransferred: 4096,
		BytesTotal:       8192,
		CurrentOffset:    4096,
		FilesDone:        2,
		FilesFailed:      1,
	}
	assert.Equal(t, "transferred=4096 total=8192 offset=4096 done=2 failed=1", s.String())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}

func TestTickAndRollingSpeed(t *testing.T) {
	c := NewCollector()
	c.Init(10000, 0, true)

	for range 5 {
		c.Update(1000)
		c.Tick()
	}

	assert.InDelta(t, 1000.0, c.RollingSpeed(5), 0.01)
	assert.InDelta(t, 1000.0, c.RollingSpeed(50), 0.01, "partial window")
}

func TestRollingSpeedNoSamples(t *testing.T) {
	c := NewCollector()
	assert.Equal(t, 0.0, c.RollingSpeed(5))
}

func TestRingWraparound(t *testing.T) {
	c := NewCollector()
	c.Init(0, 0, true)
	for range ringSize + 10 {
		c.Update(10)
		c.Tick()
	}
	assert.InDelta(t, 10.0, c.RollingSpeed(ringSize), 0.01)
}

func TestETA(t *testing.T) {
	c := NewCollector()
	c.Init(10000, 0, true)

	for range 5 {
		c.Update(1000)
		c.Tick()
	}

	assert.InDelta(t, 5.0, c.ETA().Seconds(), 1.0)
}

func TestETANoSpeed(t *testing.T) {
	c := NewCollector()
	c.Init(10000, 0, true)
	assert.Equal(t, time.Duration(0), c.ETA())
}

func TestSetStartTime(t *testing.T) {
	c := NewCollector()
	time.Sleep(20 * time.Millisecond)
	before := c.Elapsed()
	c.SetStartTime()
	assert.Less(t, c.Elapsed(), before)
}
