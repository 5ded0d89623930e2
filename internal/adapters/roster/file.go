package roster

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/rollcall/internal/domain/model"
)

// fileDocument is the YAML layout of a roster file:
//
//	identities:
//	  - id: CSC/2019/001
//	    name: Ada Obi
//	    department: Computer Science
//	    level: "300"
//	    courses: [CS101, MA201]
//	    image: csc-2019-001.jpg
type fileDocument struct {
	Identities []model.Identity `yaml:"identities"`
}

// File is a roster backed by a YAML file. The file is re-read when its
// modification time changes, so edits are picked up by the next refresh.
type File struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	cached  []model.Identity
	byID    map[string]int
}

var _ Roster = (*File)(nil)

// NewFile returns a roster reading path. The file is loaded lazily.
func NewFile(path string) *File {
	return &File{path: path}
}

// ParseYAML decodes a roster document. Identities are normalized and ids
// without a value are dropped.
func ParseYAML(data []byte) ([]model.Identity, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	out := make([]model.Identity, 0, len(doc.Identities))
	for _, id := range doc.Identities {
		if id = id.Normalized(); id.ID != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *File) load() ([]model.Identity, map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, err := os.Stat(f.path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	if f.cached != nil && st.ModTime().Equal(f.modTime) {
		return f.cached, f.byID, nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	ids, err := ParseYAML(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", f.path, err)
	}
	byID := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := byID[id.ID]; !dup {
			byID[id.ID] = i
		}
	}
	f.cached, f.byID, f.modTime = ids, byID, st.ModTime()
	return ids, byID, nil
}

// All returns every identity in file order.
func (f *File) All(ctx context.Context) ([]model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, _, err := f.load()
	if err != nil {
		return nil, err
	}
	return append([]model.Identity(nil), ids...), nil
}

// Enrolled returns the identities taking course, in file order.
func (f *File) Enrolled(ctx context.Context, course string) ([]model.Identity, error) {
	all, err := f.All(ctx)
	if err != nil {
		return nil, err
	}
	return filterEnrolled(all, course), nil
}

// Get returns the identity with id.
func (f *File) Get(ctx context.Context, id string) (model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return model.Identity{}, err
	}
	ids, byID, err := f.load()
	if err != nil {
		return model.Identity{}, err
	}
	i, ok := byID[model.NormalizeID(id)]
	if !ok {
		return model.Identity{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ids[i], nil
}
