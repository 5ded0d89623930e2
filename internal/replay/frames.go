package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var frameExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

type frameFile struct {
	ID   string
	Path string
}

// listFrames returns the image files directly under dir in name order. The
// frame id is the file name without its extension.
func listFrames(dir string) ([]frameFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}
	var out []frameFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !frameExtensions[ext] {
			continue
		}
		out = append(out, frameFile{
			ID:   strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFrames, dir)
	}
	return out, nil
}
