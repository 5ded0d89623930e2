package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/okian/rollcall/internal/domain/model"
)

// Dir reads images from a local directory.
type Dir struct {
	root string
}

// NewDir returns a store rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Fetch reads the first existing candidate file.
func (d *Dir) Fetch(ctx context.Context, identity model.Identity) ([]byte, error) {
	for _, ref := range candidates(identity) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !filepath.IsLocal(ref) {
			return nil, fmt.Errorf("%w: image ref %q escapes the image directory", ErrInvalidRef, ref)
		}
		data, err := readBounded(filepath.Join(d.root, ref))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", ref, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, identity.ID)
}

func readBounded(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%w: image larger than %d bytes", ErrInvalidRef, maxImageBytes)
	}
	return data, nil
}
