package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/UnfoldDataScience/skiff/internal/event"
	"github.com/UnfoldDataScience/skiff/internal/stats"
)

// plainPresenter outputs one line per transferred file to stdout,
// and periodic progress to stderr when not a TTY.
type plainPresenter struct {
	w       io.Writer
	errW    io.Writer
	stats   stats.ReadTicker
	verbose bool
}

func (p *plainPresenter) Run(events <-chan event.Event) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			p.printProgress()
		}
	}
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.PlanComplete:
		fmt.Fprintf(p.errW, "plan: %s files, %s\n",
			FormatCount(ev.Total), FormatBytes(ev.TotalSize))
	case event.FileStaged:
		if p.verbose {
			fmt.Fprintf(p.w, "staged: %s\n", ev.Path)
		}
	case event.FileCompleted:
		fmt.Fprintf(p.w, "%s  %s\n", ev.Path, FormatBytes(ev.Size))
	case event.FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s  %s  %s\n", ev.Path, FormatBytes(ev.Size), errMsg)
	case event.FileSkipped:
		fmt.Fprintf(p.w, "%s  skipped\n", ev.Path)
	case event.RemoteCleaned:
		fmt.Fprintf(p.w, "cleaned: %s\n", ev.Path)
	case event.VerifyStarted:
		if p.verbose {
			fmt.Fprintf(p.w, "verify: %s\n", ev.Path)
		}
	case event.VerifyFailed:
		fmt.Fprintf(p.w, "MISMATCH: %s\n", ev.Path)
	case event.VerifyOK:
		// silent in plain mode
	case event.CleanupWarning:
		fmt.Fprintf(p.errW, "warning: scratch dir left behind: %s\n", ev.Path)
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	if snap.BytesTotal > 0 {
		pct := float64(snap.BytesTransferred) / float64(snap.BytesTotal) * 100
		speed := p.stats.RollingSpeed(10)
		eta := p.stats.ETA()
		fmt.Fprintf(p.errW, "progress: %.0f%% %s/%s %s/%s files %s eta %s\n",
			pct,
			FormatBytes(snap.BytesTransferred), FormatBytes(snap.BytesTotal),
			FormatCount(snap.FilesTransferred), FormatCount(snap.FilesTotal),
			FormatRate(speed),
			FormatETA(eta),
		)
	} else {
		fmt.Fprintf(p.errW, "progress: %s sent %s files\n",
			FormatBytes(snap.BytesTransferred),
			FormatCount(snap.FilesTransferred),
		)
	}
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
