package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"aacnorm/internal/encoding"
	"aacnorm/internal/logging"
)

// progressRenderer prints runner events for people. On a terminal the
// progress line is redrawn in place; elsewhere progress is sampled into
// separate lines.
type progressRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	tty      bool
	verbose  bool
	sampler  *logging.ProgressSampler
	caser    cases.Caser
	lineOpen int
}

func newProgressRenderer(out io.Writer, verbose bool) *progressRenderer {
	return &progressRenderer{
		out:     out,
		tty:     shouldColorize(out),
		verbose: verbose,
		sampler: logging.NewProgressSampler(10),
		caser:   cases.Title(language.English),
	}
}

func (p *progressRenderer) Emit(e encoding.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case encoding.EventFileStarted:
		p.sampler.Reset()
		p.println(fmt.Sprintf("[%d/%d] %s", e.FileIndex, e.FileCount, e.FileName))
	case encoding.EventProgress:
		p.progress(e)
	case encoding.EventLog:
		switch e.Level {
		case encoding.LevelFFmpeg:
			if p.verbose {
				p.println("    ffmpeg: " + e.Message)
			}
		case encoding.LevelWarn:
			p.println("  ! " + e.Message)
		default:
			if p.verbose || !strings.HasPrefix(e.Message, "Executing: ") {
				p.println("  " + e.Message)
			}
		}
	case encoding.EventError:
		p.println("  x " + e.Message)
		for _, line := range strings.Split(strings.TrimSpace(e.Detail), "\n") {
			if line != "" {
				p.println("      " + line)
			}
		}
	case encoding.EventFileFinished:
		p.println(fmt.Sprintf("  %s in %s (overall %d%%)", p.stateLabel(e.State), formatDuration(e.Elapsed), e.Overall))
	case encoding.EventComplete, encoding.EventQueueFailed:
		p.println(e.Message)
	}
}

func (p *progressRenderer) progress(e encoding.Event) {
	label := p.stateLabel(e.State)
	pct := "--"
	if e.Percent >= 0 {
		pct = fmt.Sprintf("%3d%%", e.Percent)
	}
	line := fmt.Sprintf("  %s %s  %s  overall %d%%", label, pct, e.ETA, e.Overall)
	if p.tty {
		p.clear()
		fmt.Fprint(p.out, line)
		p.lineOpen = len(line)
		return
	}
	if p.sampler.ShouldLog(float64(e.Percent), string(e.State)) {
		fmt.Fprintln(p.out, line)
	}
}

func (p *progressRenderer) println(line string) {
	p.clear()
	fmt.Fprintln(p.out, line)
}

func (p *progressRenderer) clear() {
	if p.lineOpen == 0 {
		return
	}
	fmt.Fprint(p.out, "\r"+strings.Repeat(" ", p.lineOpen)+"\r")
	p.lineOpen = 0
}

func (p *progressRenderer) stateLabel(state encoding.FileState) string {
	return p.caser.String(string(state))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
