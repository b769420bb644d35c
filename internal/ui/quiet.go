package ui

import "github.com/UnfoldDataScience/skiff/internal/event"

// quietPresenter consumes events but produces no output.
type quietPresenter struct{}

func (p *quietPresenter) Run(events <-chan event.Event) {
	for range events {
	}
}

func (p *quietPresenter) Summary() string {
	return ""
}
