// Package platform provides the fastest available whole-file copy for the
// staging phase, falling back through kernel offload strategies to plain
// read/write.
package platform

import "os"

// CopyMethod identifies which syscall/strategy was used for a copy.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota
	CopyFileRange            // Linux copy_file_range(2)
	Sendfile                 // Linux sendfile(2)
	IOURing                  // Linux io_uring
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	case Sendfile:
		return "sendfile"
	case IOURing:
		return "io_uring"
	default:
		return "unknown"
	}
}

// CopyResult reports the outcome of a copy operation.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// CopyFileParams describes a whole-file copy into an open destination fd.
type CopyFileParams struct {
	DstFd   *os.File
	SrcPath string
	SrcSize int64
}
