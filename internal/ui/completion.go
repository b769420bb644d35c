package ui

import (
	"fmt"

	"github.com/UnfoldDataScience/skiff/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  files 211  size 4.7 MiB  avg 1.2 MB/s  time 4s  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesTransferred) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if snap.FilesFailed > 0 || snap.FilesVerifyFailed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  files %s  size %s  avg %s  time %s",
		icon,
		FormatCount(snap.FilesTransferred),
		FormatBytes(snap.BytesTransferred),
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
	)

	if snap.FilesVerified > 0 || snap.FilesVerifyFailed > 0 {
		base += fmt.Sprintf("  verified %s", FormatCount(snap.FilesVerified))
	}

	base += fmt.Sprintf("  errors %d", snap.FilesFailed+snap.FilesVerifyFailed)

	return base
}
