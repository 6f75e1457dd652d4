package encoding

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aacnorm/internal/services"
)

// SupportedExtensions lists the containers picked up from directories.
var SupportedExtensions = []string{".mkv", ".mka", ".flac", ".wav", ".mp4", ".m4a", ".mp3"}

// IsSupported reports whether path has a supported media extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range SupportedExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// ExpandInputs resolves the queue from user arguments. Files are taken as
// given; directories contribute their supported files, sorted by name.
// Duplicates are dropped and order is otherwise preserved.
func ExpandInputs(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		key := path
		if abs, err := filepath.Abs(path); err == nil {
			key = abs
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, path)
	}

	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, "inputs", "stat", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "inputs", "read dir", path, err)
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() || !IsSupported(entry.Name()) {
				continue
			}
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			add(filepath.Join(path, name))
		}
	}
	if len(out) == 0 {
		return nil, services.Wrap(services.ErrValidation, "inputs", "expand", "no supported media files found", nil)
	}
	return out, nil
}
