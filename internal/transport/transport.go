// Package transport moves a staged tree to its destination. The production
// implementation speaks SFTP over SSH; the local implementation serves
// local destinations and doubles as the unit-test transport.
package transport

import (
	"context"
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/blake3"
	"golang.org/x/time/rate"

	"github.com/UnfoldDataScience/skiff/internal/event"
	"github.com/UnfoldDataScience/skiff/internal/plan"
	"github.com/UnfoldDataScience/skiff/internal/stats"
)

// Protocol identifies a transport implementation.
type Protocol int

const (
	ProtocolLocal Protocol = iota
	ProtocolSFTP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolLocal:
		return "local"
	case ProtocolSFTP:
		return "sftp"
	default:
		return "unknown"
	}
}

// CopyStats reports what a Copy call actually moved.
type CopyStats struct {
	Files int64
	Bytes int64
	Dirs  int64
}

// Transport ships a staged tree to a destination path. Implementations are
// single-use and sequential: one Copy per connection, no concurrent calls.
type Transport interface {
	Protocol() Protocol

	// Copy transfers the staged entries to the destination, creating
	// directories before the files beneath them. Entries must be in plan
	// order. Copy stops at the first error.
	Copy(ctx context.Context, stagedRoot string, entries []plan.Entry) (CopyStats, error)

	// RemoveTree deletes the destination tree if it exists. Used for
	// delete-then-recreate deployments.
	RemoveTree() error

	// WriteFile writes a single small file relative to the destination.
	WriteFile(relPath string, data []byte, perm os.FileMode) error

	// Exists reports whether relPath exists under the destination.
	Exists(relPath string) (bool, error)

	// Hash computes the BLAKE3 hash of a destination file by relative path.
	Hash(relPath string) (string, error)

	// Close releases the connection.
	Close() error
}

// Options carries the cross-cutting wiring shared by transports.
type Options struct {
	Events  chan<- event.Event
	Stats   stats.Writer
	Limiter *rate.Limiter // nil = unlimited
}

// NewBWLimiter creates a rate.Limiter that caps aggregate upload throughput
// to bytesPerSec. The burst is 1 MB so natural read-size chunks pass
// without blocking on small reads.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := 1 << 20 // 1 MB
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// limitedReader wraps an io.Reader and enforces a shared rate limit.
type limitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func newLimitedReader(ctx context.Context, r io.Reader, limiter *rate.Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &limitedReader{r: r, limiter: limiter, ctx: ctx}
}

func (rl *limitedReader) Read(p []byte) (int, error) {
	n, err := rl.r.Read(p)
	if n > 0 {
		if waitErr := rl.limiter.WaitN(rl.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}

// HashFile computes the hex-encoded BLAKE3 digest of a local file. The
// verification pass uses it to hash staged files for comparison against
// Transport.Hash results.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hashReader(f)
}

// hashReader computes the hex-encoded BLAKE3 digest of r.
func hashReader(r io.Reader) (string, error) {
	h := blake3.New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
