package main

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"aacnorm/internal/deps"
	"aacnorm/internal/preflight"
)

func TestFormatCheckLineNoColor(t *testing.T) {
	tests := []struct {
		line checkLine
		want string
	}{
		{checkLine{Label: "aac", Severity: severityPass}, "  aac ............... pass"},
		{checkLine{Label: "libx265", Severity: severityMissing, Detail: "only needed when re-encoding video"},
			"  libx265 ........... missing  only needed when re-encoding video"},
		{checkLine{Label: "A label longer than width", Severity: severityFail, Detail: "x"},
			"  A label longer than width FAIL  x"},
	}
	for _, tt := range tests {
		if got := formatCheckLine(tt.line, false); got != tt.want {
			t.Errorf("formatCheckLine(%+v)\n got: %q\nwant: %q", tt.line, got, tt.want)
		}
	}
}

func TestFormatCheckLineColorsOnlyTag(t *testing.T) {
	got := formatCheckLine(checkLine{Label: "FFmpeg", Severity: severityFail, Detail: "not found"}, true)
	if !strings.HasPrefix(got, "  FFmpeg ") {
		t.Fatalf("label should stay uncolored, got %q", got)
	}
	if !strings.Contains(got, severityColors[severityFail]+"FAIL"+colorReset+"  not found") {
		t.Fatalf("expected colored tag, got %q", got)
	}
}

func TestEncoderLinesGradesRequiredAndOptional(t *testing.T) {
	found := map[string]bool{"aac": false, "libx264": true, "libx265": false}
	got := encoderLines(checkedEncoders, found, nil)
	want := []checkSeverity{severityFail, severityPass, severityMissing}
	if len(got) != len(want) {
		t.Fatalf("lines = %+v", got)
	}
	for i, sev := range want {
		if got[i].Severity != sev {
			t.Fatalf("line %d = %+v, want severity %d", i, got[i], sev)
		}
	}
	if got[0].Label != "aac encoder" {
		t.Fatalf("required encoder label = %q", got[0].Label)
	}
}

func TestEncoderLinesListingErrorDoesNotFail(t *testing.T) {
	got := encoderLines(checkedEncoders, nil, errors.New("exec: not found"))
	if len(got) != 1 || got[0].Severity != severityMissing || got[0].Detail != "exec: not found" {
		t.Fatalf("lines = %+v", got)
	}
}

func TestCheckReportCollectsFailures(t *testing.T) {
	var report checkReport
	report.add("Environment", environmentLines([]preflight.Result{
		{Name: "Output directory", Passed: true, Detail: "/out (read/write ok)"},
		{Name: "FFprobe", Detail: "ffprobe (error: not found)"},
	}))
	report.add("Versions", versionLines([]deps.Status{
		{Name: "FFmpeg", Available: true, Version: "ffmpeg version 7.1"},
		{Name: "FFprobe"},
	}))
	report.add("Encoders", encoderLines(checkedEncoders, map[string]bool{"libx264": true}, nil))

	if got, want := report.Failures(), []string{"FFprobe", "aac encoder"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("failures = %v, want %v", got, want)
	}
	if err := report.Err(); err == nil || err.Error() != "checks failed: FFprobe, aac encoder" {
		t.Fatalf("err = %v", err)
	}

	var buf bytes.Buffer
	report.Render(&buf, false)
	out := buf.String()
	for _, want := range []string{"ENVIRONMENT\n", "\nVERSIONS\n", "\nENCODERS\n", "FFmpeg", "note  ffmpeg version 7.1", "libx265"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in report\n%s", want, out)
		}
	}
	if strings.Count(out, "FFprobe") != 1 {
		t.Fatalf("unavailable binary should not get a version line\n%s", out)
	}
}

func TestCheckReportPassesWithOptionalMissing(t *testing.T) {
	var report checkReport
	report.add("Encoders", encoderLines(checkedEncoders, map[string]bool{"aac": true}, nil))
	if err := report.Err(); err != nil {
		t.Fatalf("optional encoders should not fail the check: %v", err)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
