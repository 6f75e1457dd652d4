package deps

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\necho 'present version 6.1'\necho 'built with gcc'\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := CheckBinaries(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Version != "present version 6.1" {
		t.Fatalf("unexpected version %q", results[0].Version)
	}
	if results[0].Path != present {
		t.Fatalf("unexpected path %q", results[0].Path)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %s", results[2].Detail)
	}

	if got := MissingRequired(results); !reflect.DeepEqual(got, []string{"Missing"}) {
		t.Fatalf("MissingRequired = %v", got)
	}
}

func TestFFmpegRequirements(t *testing.T) {
	reqs := FFmpegRequirements("/opt/ffmpeg", "ffprobe")
	if len(reqs) != 2 || reqs[0].Command != "/opt/ffmpeg" || reqs[1].Command != "ffprobe" {
		t.Fatalf("requirements = %+v", reqs)
	}
}

func TestParseEncoders(t *testing.T) {
	out := []byte(`Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
`)
	got := parseEncoders(out, []string{"aac", "libx264", "libx265"})
	want := map[string]bool{"aac": true, "libx264": true, "libx265": false}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseEncoders = %v", got)
	}
}

func TestCheckEncodersUsesBinary(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nprintf ' A....D aac   AAC\\n'\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	got, err := CheckEncoders(context.Background(), bin, "aac", "libx264")
	if err != nil {
		t.Fatalf("CheckEncoders: %v", err)
	}
	if !got["aac"] || got["libx264"] {
		t.Fatalf("encoders = %v", got)
	}
}
