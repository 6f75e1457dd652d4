package encoding

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"aacnorm/internal/services"
	"aacnorm/internal/testsupport"
)

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.MKV", "a.flac", "notes.txt", "c.m4a"} {
		testsupport.WriteFile(t, filepath.Join(dir, name), 1)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mkv"), 0o755); err != nil {
		t.Fatal(err)
	}
	loose := filepath.Join(t.TempDir(), "loose.ts")
	testsupport.WriteFile(t, loose, 1)

	got, err := ExpandInputs([]string{loose, dir, filepath.Join(dir, "a.flac")})
	if err != nil {
		t.Fatalf("ExpandInputs: %v", err)
	}
	want := []string{
		loose,
		filepath.Join(dir, "a.flac"),
		filepath.Join(dir, "b.MKV"),
		filepath.Join(dir, "c.m4a"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandInputs = %v\nwant %v", got, want)
	}
}

func TestExpandInputsErrors(t *testing.T) {
	_, err := ExpandInputs([]string{filepath.Join(t.TempDir(), "missing.mkv")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	empty := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(empty, "readme.md"), 1)
	_, err = ExpandInputs([]string{empty})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestIsSupported(t *testing.T) {
	for _, name := range []string{"x.mkv", "x.MKA", "x.Flac", "x.wav", "x.mp4", "x.m4a", "x.mp3"} {
		if !IsSupported(name) {
			t.Errorf("%s should be supported", name)
		}
	}
	if IsSupported("x.avi") || IsSupported("mkv") {
		t.Fatal("unexpected support")
	}
}
