package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout accepted by LoadSeed. A file-level domain
// applies to passages that do not name their own.
//
//	domain: finance
//	passages:
//	  - title: Zero-based budgeting
//	    url: https://www.nerdwallet.com/article/finance/zero-based-budgeting
//	    content: Give every dollar a job...
type SeedFile struct {
	Domain   string        `yaml:"domain"`
	Passages []seedPassage `yaml:"passages"`
}

type seedPassage struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	URL     string `yaml:"url"`
	Content string `yaml:"content"`
	Domain  string `yaml:"domain"`
}

// seedNamespace makes generated IDs stable across reindexing.
var seedNamespace = uuid.MustParse("6f1c8a52-3d2e-4b8f-9a71-5c0e2d9b4f13")

// LoadSeed parses one YAML seed file.
func LoadSeed(path string) ([]Passage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	passages := make([]Passage, 0, len(file.Passages))
	for i, sp := range file.Passages {
		name := sp.Domain
		if name == "" {
			name = file.Domain
		}
		d, ok := domain.ParseDomain(name)
		if !ok {
			return nil, fmt.Errorf("%s: passage %d: unknown domain %q", path, i, name)
		}
		if strings.TrimSpace(sp.Content) == "" {
			return nil, fmt.Errorf("%s: passage %d: %w", path, i, ErrEmptyPassage)
		}

		id := sp.ID
		if id == "" {
			id = uuid.NewSHA1(seedNamespace, []byte(d.String()+"\x00"+sp.Title+"\x00"+sp.Content)).String()
		}

		passages = append(passages, Passage{
			ID:      id,
			Title:   sp.Title,
			URL:     sp.URL,
			Content: strings.TrimSpace(sp.Content),
			Domain:  d,
		})
	}
	return passages, nil
}

// LoadSeedDir loads every .yaml and .yml file in dir in name order.
func LoadSeedDir(dir string) ([]Passage, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	var all []Passage
	for _, f := range files {
		passages, err := LoadSeed(f)
		if err != nil {
			return nil, err
		}
		all = append(all, passages...)
	}
	return all, nil
}
