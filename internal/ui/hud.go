package ui

import (
	"fmt"
	"io"
	"path"
	"time"

	"github.com/UnfoldDataScience/skiff/internal/event"
	"github.com/UnfoldDataScience/skiff/internal/stats"
)

// ANSI escape sequences.
const (
	ansiDim   = "\033[2m"
	ansiReset = "\033[0m"
)

// hudPresenter provides a rich TTY display with a scrolling feed of
// transferred files and a 2-line HUD that redraws in place.
type hudPresenter struct {
	w       io.Writer
	stats   stats.ReadTicker
	verbose bool

	// Internal state.
	hudDrawn     bool
	hudLineCount int
	verifying    bool
	lastHUDDraw  time.Time
}

const (
	sparklineWidth   = 20
	progressBarWidth = 20
	hudMinInterval   = 50 * time.Millisecond // don't redraw faster than this
)

func (p *hudPresenter) Run(events <-chan event.Event) {
	// Fire first tick quickly to seed the ring buffer with initial speed
	// data, then switch to 1s interval.
	secTicker := time.NewTicker(250 * time.Millisecond)
	defer secTicker.Stop()
	firstTickDone := false

	// Redraw ticker for when no events are flowing (e.g., large file copy).
	redrawTicker := time.NewTicker(100 * time.Millisecond)
	defer redrawTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearHUD()
				return
			}
			p.handleEvent(ev)
			p.maybeDrawHUD()

		case <-redrawTicker.C:
			p.drawHUD()

		case <-secTicker.C:
			p.stats.Tick()
			if !firstTickDone {
				firstTickDone = true
				secTicker.Reset(1 * time.Second)
			}
		}
	}
}

func (p *hudPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.PlanComplete:
		p.clearHUD()
		fmt.Fprintf(p.w, "%splan: %s files, %s%s\n",
			ansiDim, FormatCount(ev.Total), FormatBytes(ev.TotalSize), ansiReset)
		p.drawHUD()

	case event.FileCompleted:
		p.clearHUD()
		fmt.Fprintf(p.w, "✓  %s  %10s\n", styledPath(ev.Path), FormatBytes(ev.Size))
		p.drawHUD()

	case event.FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		p.clearHUD()
		fmt.Fprintf(p.w, "✗  %s  %10s  %s\n", styledPath(ev.Path), FormatBytes(ev.Size), errMsg)
		p.drawHUD()

	case event.FileSkipped:
		p.clearHUD()
		fmt.Fprintf(p.w, "–  %s  %10s  %sskipped%s\n",
			styledPath(ev.Path), FormatBytes(ev.Size), ansiDim, ansiReset)
		p.drawHUD()

	case event.RemoteCleaned:
		p.clearHUD()
		fmt.Fprintf(p.w, "%scleaned destination%s\n", ansiDim, ansiReset)
		p.drawHUD()

	case event.VerifyStarted:
		if !p.verifying {
			p.verifying = true
			p.clearHUD()
			fmt.Fprintf(p.w, "%sverifying checksums...%s\n", ansiDim, ansiReset)
			p.drawHUD()
		}

	case event.VerifyOK:
		if p.verbose {
			p.clearHUD()
			fmt.Fprintf(p.w, "%s✓  %s verified%s\n", ansiDim, ev.Path, ansiReset)
			p.drawHUD()
		}

	case event.VerifyFailed:
		p.clearHUD()
		fmt.Fprintf(p.w, "✗  %s  CHECKSUM MISMATCH\n", styledPath(ev.Path))
		p.drawHUD()

	case event.CleanupWarning:
		p.clearHUD()
		fmt.Fprintf(p.w, "⚠  scratch dir left behind: %s\n", ev.Path)
		p.drawHUD()
	}
}

// maybeDrawHUD redraws the HUD if enough time has passed since the last draw.
func (p *hudPresenter) maybeDrawHUD() {
	if time.Since(p.lastHUDDraw) < hudMinInterval {
		return
	}
	p.drawHUD()
}

func (p *hudPresenter) drawHUD() {
	snap := p.stats.Snapshot()

	p.clearHUD()

	var pct float64
	if snap.BytesTotal > 0 {
		pct = float64(snap.BytesTransferred) / float64(snap.BytesTotal)
	}

	speed := p.stats.RollingSpeed(10)
	eta := p.stats.ETA()

	lines := 0

	// Line 1: throughput sparkline + speed + byte totals.
	spark := Sparkline(p.stats.SparklineData(sparklineWidth), sparklineWidth)
	fmt.Fprintf(p.w, "       %s   %s   %s / %s\n",
		spark, FormatRate(speed),
		FormatBytes(snap.BytesTransferred), FormatBytes(snap.BytesTotal))
	lines++

	// Line 2: progress bar + files + eta.
	bar := ProgressBar(pct, progressBarWidth)
	fmt.Fprintf(p.w, " %3.0f%%  %s   %s / %s files   eta %s\n",
		pct*100, bar,
		FormatCount(snap.FilesTransferred), FormatCount(snap.FilesTotal),
		FormatETA(eta))
	lines++

	p.hudDrawn = true
	p.hudLineCount = lines
	p.lastHUDDraw = time.Now()
}

func (p *hudPresenter) clearHUD() {
	if !p.hudDrawn {
		return
	}
	lines := p.hudLineCount
	if lines == 0 {
		lines = 2 // fallback
	}
	// Move cursor up N lines and clear to end of screen.
	fmt.Fprintf(p.w, "\033[%dA\033[J", lines)
	p.hudDrawn = false
}

func (p *hudPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}

// styledPath returns the path with the directory portion dimmed and the
// filename in normal weight, making the actual filename stand out.
func styledPath(relPath string) string {
	dir := path.Dir(relPath)
	base := path.Base(relPath)
	if dir == "." || dir == "" {
		return base
	}
	return fmt.Sprintf("%s%s/%s%s", ansiDim, dir, ansiReset, base)
}
