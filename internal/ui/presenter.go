package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/bucketctl/internal/event"
	"github.com/bamsammich/bucketctl/internal/stats"
)

// Presenter consumes session events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan event.Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer    io.Writer
	ErrWriter io.Writer
	Stats     *stats.Collector
	IsTTY     bool
	Quiet     bool
	Verbose   bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return quietPresenter{}
	}
	return &plainPresenter{
		w:       cfg.Writer,
		errW:    cfg.ErrWriter,
		stats:   cfg.Stats,
		tty:     cfg.IsTTY,
		verbose: cfg.Verbose,
	}
}

// quietPresenter consumes events but produces no output.
type quietPresenter struct{}

func (quietPresenter) Run(events <-chan event.Event) error {
	for range events { //nolint:revive // drain
	}
	return nil
}

func (quietPresenter) Summary() string { return "" }

// plainPresenter prints one line per finished action to w and transfer
// progress to errW: redrawn in place on a terminal, every few seconds
// otherwise.
type plainPresenter struct {
	w       io.Writer
	errW    io.Writer
	stats   *stats.Collector
	ticks   int
	tty     bool
	verbose bool
	drawn   bool
}

const plainProgressEvery = 5

func (p *plainPresenter) Run(events <-chan event.Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearProgress()
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			p.ticks++
			if p.tty || p.ticks%plainProgressEvery == 0 {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.TransferCompleted:
		p.clearProgress()
		line := fmt.Sprintf("%s %s  %s  %s",
			styleOK.Render("✓"), transferLabel(ev), FormatBytes(ev.Size), FormatRate(p.stats.RollingSpeed(5)))
		if ev.Checksum != "" {
			line += "  blake3:" + ev.Checksum
		}
		fmt.Fprintln(p.w, line)
	case event.TransferFailed:
		p.clearProgress()
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s %s  %s\n", styleFailed.Render("✗"), transferLabel(ev), errMsg)
	case event.FileDeleted:
		fmt.Fprintf(p.w, "deleted: %s\n", ev.Path)
	case event.DirCreated:
		fmt.Fprintf(p.w, "created: %s\n", ev.Path)
	case event.DirRemoved:
		fmt.Fprintf(p.w, "removed: %s\n", ev.Path)
	case event.TransferStarted:
		if p.verbose {
			fmt.Fprintf(p.errW, "transfer: %s (%s)\n", transferLabel(ev), FormatSize(ev.Size))
		}
	case event.Connected, event.Disconnected:
		if p.verbose {
			fmt.Fprintf(p.errW, "%s\n", ev.Type)
		}
	case event.ListingUpdated, event.TransferProgress:
		// progress is drawn from the collector on the ticker
	}
}

func transferLabel(ev event.Event) string {
	if ev.Download {
		return ev.Path + " -> " + ev.Local
	}
	return ev.Local + " -> " + ev.Path
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	if !snap.Active {
		return
	}

	var line string
	speed := FormatRate(p.stats.RollingSpeed(10))
	if snap.BytesTotal > 0 {
		pct := float64(snap.CurrentOffset) / float64(snap.BytesTotal)
		line = fmt.Sprintf("%s %3.0f%% %s/%s %s eta %s",
			ProgressBar(pct, 20), pct*100,
			FormatBytes(snap.CurrentOffset), FormatBytes(snap.BytesTotal),
			speed, FormatETA(p.stats.ETA()))
	} else {
		line = fmt.Sprintf("%s transferred %s", FormatBytes(snap.BytesTransferred), speed)
	}

	if p.tty {
		fmt.Fprintf(p.errW, "\r\033[K%s", line)
		p.drawn = true
		return
	}
	fmt.Fprintf(p.errW, "progress: %s\n", line)
}

func (p *plainPresenter) clearProgress() {
	if p.drawn {
		fmt.Fprint(p.errW, "\r\033[K")
		p.drawn = false
	}
}

// Summary builds the final line.
// Format: done ✓  files 3  size 2.1 GiB  avg 64.0 MiB/s  time 3m17s  errors 0
func (p *plainPresenter) Summary() string {
	snap := p.stats.Snapshot()
	if snap.FilesDone == 0 && snap.FilesFailed == 0 {
		return ""
	}

	avg := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avg = float64(snap.BytesTransferred) / snap.Elapsed.Seconds()
	}
	icon := "✓"
	if snap.FilesFailed > 0 {
		icon = "✗"
	}
	return fmt.Sprintf("done %s  files %d  size %s  avg %s  time %s  errors %d",
		icon,
		snap.FilesDone,
		FormatBytes(snap.BytesTransferred),
		FormatRate(avg),
		FormatDuration(snap.Elapsed),
		snap.FilesFailed,
	)
}
