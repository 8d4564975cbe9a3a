package catalog

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

type fileDemo struct {
	Demo      model.DemoConfig       `yaml:"demo"`
	Items     []model.TourItem       `yaml:"items"`
	Knowledge []model.KnowledgeEntry `yaml:"knowledge"`
}

type fileCatalog struct {
	Demos []fileDemo `yaml:"demos"`
}

// FileSource serves demos from a YAML document, for offline tours and local runs.
type FileSource struct {
	demos map[string]fileDemo
}

// LoadFileSource reads and validates the YAML catalog at path.
func LoadFileSource(path string) (*FileSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseFileSource(b)
}

// ParseFileSource builds a FileSource from YAML bytes.
func ParseFileSource(b []byte) (*FileSource, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	fs := &FileSource{demos: make(map[string]fileDemo, len(fc.Demos))}
	for i, d := range fc.Demos {
		if d.Demo.Slug == "" {
			return nil, fmt.Errorf("catalog file: demo %d has no slug", i)
		}
		d.Demo.Type = model.ParseBusinessType(string(d.Demo.Type))
		ApplyDefaults(&d.Demo)
		fs.demos[d.Demo.Slug] = d
	}
	return fs, nil
}

func (f *FileSource) Load(_ context.Context, slug string) (*model.Catalog, error) {
	d, ok := f.demos[slug]
	if !ok {
		return nil, ErrDemoNotFound
	}
	items := make([]model.TourItem, len(d.Items))
	copy(items, d.Items)
	return &model.Catalog{
		Demo:      d.Demo,
		Items:     items,
		Knowledge: d.Knowledge,
		LoadedAt:  time.Now(),
	}, nil
}

// Slugs lists the demos the file defines.
func (f *FileSource) Slugs() []string {
	out := make([]string, 0, len(f.demos))
	for s := range f.demos {
		out = append(out, s)
	}
	return out
}
