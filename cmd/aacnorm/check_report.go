package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"aacnorm/internal/deps"
	"aacnorm/internal/preflight"
)

// checkSeverity grades one line of the check report. Only severityFail
// lines make the command exit non-zero.
type checkSeverity int

const (
	severityNote checkSeverity = iota
	severityPass
	severityMissing
	severityFail
)

var severityTags = map[checkSeverity]string{
	severityNote:    "note",
	severityPass:    "pass",
	severityMissing: "missing",
	severityFail:    "FAIL",
}

var severityColors = map[checkSeverity]string{
	severityNote:    "\x1b[36m",
	severityPass:    "\x1b[32m",
	severityMissing: "\x1b[33m",
	severityFail:    "\x1b[1;31m",
}

const (
	colorReset = "\x1b[0m"
	labelWidth = 18
)

// requiredEncoders must be present for a conversion to run at all; the rest
// only matter when the video path re-encodes.
var requiredEncoders = map[string]bool{"aac": true}

type checkLine struct {
	Label    string
	Severity checkSeverity
	Detail   string
}

type checkSection struct {
	Title string
	Lines []checkLine
}

// checkReport collects the outcome of `aacnorm check`.
type checkReport struct {
	Sections []checkSection
}

func (r *checkReport) add(title string, lines []checkLine) {
	r.Sections = append(r.Sections, checkSection{Title: title, Lines: lines})
}

// Failures lists the labels of failing lines in report order.
func (r *checkReport) Failures() []string {
	var out []string
	for _, section := range r.Sections {
		for _, line := range section.Lines {
			if line.Severity == severityFail {
				out = append(out, line.Label)
			}
		}
	}
	return out
}

// Err summarises failing lines, or returns nil when every line passed.
func (r *checkReport) Err() error {
	failed := r.Failures()
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("checks failed: %s", strings.Join(failed, ", "))
}

func (r *checkReport) Render(w io.Writer, colorize bool) {
	for i, section := range r.Sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, strings.ToUpper(section.Title))
		for _, line := range section.Lines {
			fmt.Fprintln(w, formatCheckLine(line, colorize))
		}
	}
}

// formatCheckLine renders "  label ........ tag  detail". Only the tag is
// colored so labels stay aligned on a terminal.
func formatCheckLine(line checkLine, colorize bool) string {
	label := line.Label
	if pad := labelWidth - len(label); pad > 0 {
		label += " " + strings.Repeat(".", pad)
	}
	tag := severityTags[line.Severity]
	if colorize {
		tag = severityColors[line.Severity] + tag + colorReset
	}
	text := "  " + label + " " + tag
	if line.Detail != "" {
		text += "  " + line.Detail
	}
	return text
}

func environmentLines(results []preflight.Result) []checkLine {
	lines := make([]checkLine, 0, len(results))
	for _, r := range results {
		sev := severityPass
		if !r.Passed {
			sev = severityFail
		}
		lines = append(lines, checkLine{Label: r.Name, Severity: sev, Detail: r.Detail})
	}
	return lines
}

// versionLines reports the version of every binary that resolved. Missing
// binaries already fail in the environment section.
func versionLines(statuses []deps.Status) []checkLine {
	var lines []checkLine
	for _, s := range statuses {
		if !s.Available {
			continue
		}
		lines = append(lines, checkLine{Label: s.Name, Severity: severityNote, Detail: valueOr(s.Version, "version unknown")})
	}
	return lines
}

// encoderLines grades each encoder by whether ffmpeg lists it. A listing
// error yields a single missing line since nothing can be said either way.
func encoderLines(names []string, found map[string]bool, listErr error) []checkLine {
	if listErr != nil {
		return []checkLine{{Label: "ffmpeg -encoders", Severity: severityMissing, Detail: listErr.Error()}}
	}
	lines := make([]checkLine, 0, len(names))
	for _, name := range names {
		switch {
		case found[name]:
			lines = append(lines, checkLine{Label: name, Severity: severityPass})
		case requiredEncoders[name]:
			lines = append(lines, checkLine{Label: name + " encoder", Severity: severityFail, Detail: "required; not built into this ffmpeg"})
		default:
			lines = append(lines, checkLine{Label: name, Severity: severityMissing, Detail: "only needed when re-encoding video"})
		}
	}
	return lines
}

// shouldColorize reports whether writer is an interactive terminal.
func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
