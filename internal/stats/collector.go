package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks sync statistics using lock-free atomic counters.
// The sync pipeline writes; presenters only read.
type Collector struct {
	filesPlanned      atomic.Int64
	filesStaged       atomic.Int64
	filesTransferred  atomic.Int64
	filesFailed       atomic.Int64
	filesSkipped      atomic.Int64
	bytesTransferred  atomic.Int64
	dirsCreated       atomic.Int64
	bytesTotal        atomic.Int64
	filesTotal        atomic.Int64
	filesVerified     atomic.Int64
	filesVerifyFailed atomic.Int64
	startTime         time.Time

	// Ring buffer, written only by the presenter's Tick(), never by the
	// transfer path.
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int
	lastBytes  int64
}

// Writer is the mutation surface handed to the sync pipeline.
type Writer interface {
	AddFilesPlanned(n int64)
	AddFilesStaged(n int64)
	AddFilesTransferred(n int64)
	AddFilesFailed(n int64)
	AddFilesSkipped(n int64)
	AddBytesTransferred(n int64)
	AddDirsCreated(n int64)
	AddFilesVerified(n int64)
	AddFilesVerifyFailed(n int64)
	SetTotals(files, bytes int64)
}

// Reader is the read-only surface handed to presenters.
type Reader interface {
	Snapshot() Snapshot
	RollingSpeed(seconds int) float64
	ETA() time.Duration
}

// ReadTicker is a Reader that also owns the per-second sampling tick.
type ReadTicker interface {
	Reader
	Tick()
	SparklineData(n int) []float64
}

var (
	_ Writer     = (*Collector)(nil)
	_ ReadTicker = (*Collector)(nil)
)

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records plan totals (called once when enumeration completes).
func (c *Collector) SetTotals(files, bytes int64) {
	c.filesTotal.Store(files)
	c.bytesTotal.Store(bytes)
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesPlanned      int64
	FilesStaged       int64
	FilesTransferred  int64
	FilesFailed       int64
	FilesSkipped      int64
	BytesTransferred  int64
	DirsCreated       int64
	BytesTotal        int64
	FilesTotal        int64
	FilesVerified     int64
	FilesVerifyFailed int64
	Elapsed           time.Duration
}

func (c *Collector) AddFilesPlanned(n int64) { c.filesPlanned.Add(n) }
func (c *Collector) AddFilesStaged(n int64) { c.filesStaged.Add(n) }
func (c *Collector) AddFilesTransferred(n int64) { c.filesTransferred.Add(n) }
func (c *Collector) AddFilesFailed(n int64) { c.filesFailed.Add(n) }
func (c *Collector) AddFilesSkipped(n int64) { c.filesSkipped.Add(n) }
func (c *Collector) AddBytesTransferred(n int64) { c.bytesTransferred.Add(n) }
func (c *Collector) AddDirsCreated(n int64) { c.dirsCreated.Add(n) }
func (c *Collector) AddFilesVerified(n int64) { c.filesVerified.Add(n) }
func (c *Collector) AddFilesVerifyFailed(n int64) { c.filesVerifyFailed.Add(n) }

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesPlanned:      c.filesPlanned.Load(),
		FilesStaged:       c.filesStaged.Load(),
		FilesTransferred:  c.filesTransferred.Load(),
		FilesFailed:       c.filesFailed.Load(),
		FilesSkipped:      c.filesSkipped.Load(),
		BytesTransferred:  c.bytesTransferred.Load(),
		DirsCreated:       c.dirsCreated.Load(),
		BytesTotal:        c.bytesTotal.Load(),
		FilesTotal:        c.filesTotal.Load(),
		FilesVerified:     c.filesVerified.Load(),
		FilesVerifyFailed: c.filesVerifyFailed.Load(),
		Elapsed:           c.Elapsed(),
	}
}

// Tick snapshots the byte delta into the ring buffer. Called 1/sec by the
// presenter.
func (c *Collector) Tick() {
	currentBytes := c.bytesTransferred.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = currentBytes - c.lastBytes
	c.lastBytes = currentBytes
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := seconds
	if count > c.ringCount {
		count = c.ringCount
	}
	if count == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < count; i++ {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// SparklineData returns the last n bytes/sec samples, oldest first.
func (c *Collector) SparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := n
	if count > c.ringCount {
		count = c.ringCount
	}
	if count == 0 {
		return nil
	}

	data := make([]float64, count)
	for i := 0; i < count; i++ {
		idx := (c.ringIdx - count + i + ringSize) % ringSize
		data[i] = float64(c.throughput[idx])
	}
	return data
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesTransferred.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"planned=%d transferred=%d failed=%d skipped=%d bytes=%d dirs=%d",
		s.FilesPlanned, s.FilesTransferred, s.FilesFailed, s.FilesSkipped,
		s.BytesTransferred, s.DirsCreated,
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
