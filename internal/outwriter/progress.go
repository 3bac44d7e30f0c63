package outwriter

import (
	"fmt"
	"io"

	"github.com/huangsam/reposcan/schema"
	"github.com/pterm/pterm"
)

// Progress renders session events on w until events is closed: a spinner
// while the scan prepares, then a bar once the sampled total is known.
// It blocks; run it in its own goroutine.
func Progress(events <-chan schema.ProgressEvent, w io.Writer) {
	spinner, _ := pterm.DefaultSpinner.
		WithWriter(w).
		WithRemoveWhenDone(true).
		Start("starting")

	var bar *pterm.ProgressbarPrinter
	done := 0
	for ev := range events {
		if bar == nil && ev.FilesTotal > 0 {
			if spinner != nil {
				_ = spinner.Stop()
				spinner = nil
			}
			bar, _ = pterm.DefaultProgressbar.
				WithTotal(ev.FilesTotal).
				WithTitle("scanning").
				WithWriter(w).
				WithRemoveWhenDone(true).
				Start()
		}
		switch {
		case bar != nil:
			if ev.FilesDone > done {
				bar.Add(ev.FilesDone - done)
				done = ev.FilesDone
			}
			bar.UpdateTitle(progressTitle(ev))
		case spinner != nil:
			spinner.UpdateText(string(ev.State))
		}
	}

	if spinner != nil {
		_ = spinner.Stop()
	}
	if bar != nil {
		_, _ = bar.Stop()
	}
}

func progressTitle(ev schema.ProgressEvent) string {
	if ev.Workers == 0 {
		return string(ev.State)
	}
	return fmt.Sprintf("%s (%d workers, batch %d)", ev.State, ev.Workers, ev.BatchSize)
}
