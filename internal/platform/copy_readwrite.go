package platform

import (
	"io"
	"os"
	"sync"
)

const bufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// copyReadWrite copies data using positional read/write with a pooled buffer.
func copyReadWrite(params CopyFileParams) (CopyResult, error) {
	srcFd, err := os.Open(params.SrcPath)
	if err != nil {
		return CopyResult{}, err
	}
	defer srcFd.Close()

	bufp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufp)
	buf := *bufp

	var offset int64
	var totalWritten int64

	for {
		n, err := srcFd.ReadAt(buf, offset)
		if n > 0 {
			written := 0
			for written < n {
				w, werr := params.DstFd.WriteAt(buf[written:n], offset+int64(written))
				if werr != nil {
					return CopyResult{BytesWritten: totalWritten + int64(written), Method: ReadWrite}, werr
				}
				written += w
			}
			offset += int64(n)
			totalWritten += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return CopyResult{BytesWritten: totalWritten, Method: ReadWrite}, err
		}
	}

	return CopyResult{BytesWritten: totalWritten, Method: ReadWrite}, nil
}

// CopyReadWrite is the exported version, used by tests to pin the strategy.
func CopyReadWrite(params CopyFileParams) (CopyResult, error) {
	return copyReadWrite(params)
}
