package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersAndSnapshot(t *testing.T) {
	c := NewCollector()
	c.AddFilesPlanned(10)
	c.AddFilesStaged(9)
	c.AddFilesTransferred(8)
	c.AddFilesFailed(1)
	c.AddFilesSkipped(2)
	c.AddBytesTransferred(4096)
	c.AddDirsCreated(3)
	c.SetTotals(10, 5000)

	snap := c.Snapshot()
	assert.Equal(t, int64(10), snap.FilesPlanned)
	assert.Equal(t, int64(9), snap.FilesStaged)
	assert.Equal(t, int64(8), snap.FilesTransferred)
	assert.Equal(t, int64(1), snap.FilesFailed)
	assert.Equal(t, int64(2), snap.FilesSkipped)
	assert.Equal(t, int64(4096), snap.BytesTransferred)
	assert.Equal(t, int64(3), snap.DirsCreated)
	assert.Equal(t, int64(10), snap.FilesTotal)
	assert.Equal(t, int64(5000), snap.BytesTotal)
	assert.GreaterOrEqual(t, snap.Elapsed.Nanoseconds(), int64(0))
}

func TestRollingSpeed(t *testing.T) {
	c := NewCollector()

	assert.Zero(t, c.RollingSpeed(10))

	c.AddBytesTransferred(1024)
	c.Tick()
	c.AddBytesTransferred(3072)
	c.Tick()

	// Two samples: 1024 and 3072 bytes in their respective seconds.
	assert.InDelta(t, 2048.0, c.RollingSpeed(10), 0.01)
	assert.InDelta(t, 3072.0, c.RollingSpeed(1), 0.01)
}

func TestSparklineData(t *testing.T) {
	c := NewCollector()
	assert.Nil(t, c.SparklineData(5))

	for i := 0; i < 3; i++ {
		c.AddBytesTransferred(int64(100 * (i + 1)))
		c.Tick()
	}

	data := c.SparklineData(5)
	assert.Equal(t, []float64{100, 200, 300}, data)
}

func TestETA(t *testing.T) {
	c := NewCollector()
	c.SetTotals(10, 10_000)

	// No throughput samples: ETA unknown.
	assert.Zero(t, c.ETA())

	c.AddBytesTransferred(5000)
	c.Tick()

	eta := c.ETA()
	assert.Greater(t, eta.Seconds(), 0.0)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
	assert.Equal(t, "1.5 MiB", FormatBytes(3*1024*1024/2))
	assert.Equal(t, "2.0 GiB", FormatBytes(2*1024*1024*1024))
}

func TestSnapshotString(t *testing.T) {
	c := NewCollector()
	c.AddFilesTransferred(2)
	assert.Contains(t, c.Snapshot().String(), "transferred=2")
}
