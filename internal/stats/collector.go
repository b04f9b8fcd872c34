package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// uploadProgressThreshold is how far past its start offset an upload must
// get before it counts as having made progress.
const uploadProgressThreshold = 65565

// Collector tracks transfer statistics using lock-free atomic counters.
// The backend reader side only ever adds; presenters only read.
type Collector struct {
	bytesTotal    atomic.Int64
	startOffset   atomic.Int64
	currentOffset atomic.Int64
	filesDone     atomic.Int64
	filesFailed   atomic.Int64
	recvEvents    atomic.Int64
	sendEvents    atomic.Int64
	download      atomic.Bool
	madeProgress  atomic.Bool
	active        atomic.Bool

	// startTime and the ring buffer are guarded by mu.
	mu         sync.Mutex
	startTime  time.Time
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int // samples written, capped at ringSize
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Init prepares accounting for a new transfer of total bytes starting at
// startOffset (non-zero when resuming).
func (c *Collector) Init(total, startOffset int64, download bool) {
	c.bytesTotal.Store(total)
	c.startOffset.Store(startOffset)
	c.currentOffset.Store(startOffset)
	c.download.Store(download)
	c.madeProgress.Store(false)
	c.active.Store(true)

	c.mu.Lock()
	c.lastBytes = 0
	c.ringIdx = 0
	c.ringCount = 0
	c.mu.Unlock()
}

// SetStartTime stamps the beginning of the current transfer.
func (c *Collector) SetStartTime() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
}

// Update applies a byte delta reported by the backend. It returns true the
// first time the transfer is judged to have made progress: any positive
// delta for downloads, or moving past the start offset by more than
// uploadProgressThreshold for uploads.
func (c *Collector) Update(delta int64) bool {
	current := c.currentOffset.Add(delta)
	if delta <= 0 || c.madeProgress.Load() {
		return false
	}

	progressed := c.download.Load() ||
		current > c.startOffset.Load()+uploadProgressThreshold
	if !progressed {
		return false
	}
	return c.madeProgress.CompareAndSwap(false, true)
}

// MadeProgress reports whether the current transfer has made progress.
func (c *Collector) MadeProgress() bool { return c.madeProgress.Load() }

// Finish closes the current transfer.
func (c *Collector) Finish(ok bool) {
	c.active.Store(false)
	if ok {
		c.filesDone.Add(1)
	} else {
		c.filesFailed.Add(1)
	}
}

// RecordActivity notes a Recv (recv true) or Send activity event.
func (c *Collector) RecordActivity(recv bool) {
	if recv {
		c.recvEvents.Add(1)
	} else {
		c.sendEvents.Add(1)
	}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	BytesTransferred int64
	BytesTotal       int64
	StartOffset      int64
	CurrentOffset    int64
	FilesDone        int64
	FilesFailed      int64
	RecvEvents       int64
	SendEvents       int64
	Elapsed          time.Duration
	Active           bool
	MadeProgress     bool
}

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	start := c.startOffset.Load()
	current := c.currentOffset.Load()
	return Snapshot{
		BytesTransferred: current - start,
		BytesTotal:       c.bytesTotal.Load(),
		StartOffset:      start,
		CurrentOffset:    current,
		FilesDone:        c.filesDone.Load(),
		FilesFailed:      c.filesFailed.Load(),
		RecvEvents:       c.recvEvents.Load(),
		SendEvents:       c.sendEvents.Load(),
		Elapsed:          c.Elapsed(),
		Active:           c.active.Load(),
		MadeProgress:     c.madeProgress.Load(),
	}
}

// Tick snapshots the byte delta into the ring buffer. Called 1/sec by the presenter.
func (c *Collector) Tick() {
	current := c.currentOffset.Load() - c.startOffset.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.currentOffset.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since the last SetStartTime (or creation).
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"transferred=%d total=%d offset=%d done=%d failed=%d",
		s.BytesTransferred, s.BytesTotal, s.CurrentOffset, s.FilesDone, s.FilesFailed,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
