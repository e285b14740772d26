package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/fintrack/internal/reconcile"
)

// SyncProgress draws one progress bar per sync phase.
type SyncProgress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	phase  string
	mu     sync.Mutex
}

// NewSyncProgress creates a progress display writing to w.
func NewSyncProgress(w io.Writer) *SyncProgress {
	return &SyncProgress{writer: w}
}

// Update implements the engine's progress callback.
func (p *SyncProgress) Update(event reconcile.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Phase != p.phase || p.bar == nil {
		p.finishLocked()
		p.phase = event.Phase
		p.bar = p.newBar(event.Phase, event.Total)
	}

	if err := p.bar.Set(event.Done); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Finish completes the current bar, if any.
func (p *SyncProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
}

func (p *SyncProgress) finishLocked() {
	if p.bar == nil {
		return
	}
	if !p.bar.IsFinished() {
		if err := p.bar.Finish(); err != nil {
			slog.Warn("Failed to finish progress bar", "error", err)
		}
	}
	p.bar = nil
}

func (p *SyncProgress) newBar(phase string, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(describe(phase)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func describe(phase string) string {
	switch phase {
	case reconcile.PhasePush:
		return "[cyan][bold]Pushing changes...[reset]"
	case reconcile.PhasePull:
		return "[cyan][bold]Pulling changes...[reset]"
	case reconcile.PhaseDelete:
		return "[cyan][bold]Deleting remote copies...[reset]"
	default:
		return phase
	}
}
