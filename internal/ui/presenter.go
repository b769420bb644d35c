// Package ui renders deployment progress. Three presenters cover the
// output modes: quiet (nothing), plain (line per file, for pipes and CI
// logs), and a TTY HUD that redraws in place.
package ui

import (
	"io"

	"github.com/UnfoldDataScience/skiff/internal/event"
	"github.com/UnfoldDataScience/skiff/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan event.Event)
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer
	ErrWriter  io.Writer
	Stats      stats.ReadTicker
	IsTTY      bool
	Quiet      bool
	Verbose    bool
	NoProgress bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{}
	}
	if !cfg.IsTTY || cfg.NoProgress {
		return &plainPresenter{
			w:       cfg.Writer,
			errW:    cfg.ErrWriter,
			stats:   cfg.Stats,
			verbose: cfg.Verbose,
		}
	}
	return &hudPresenter{
		w:       cfg.ErrWriter, // HUD renders to stderr (the TTY)
		stats:   cfg.Stats,
		verbose: cfg.Verbose,
	}
}
