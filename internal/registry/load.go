package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// overrideFile is the on-disk shape of a factors.yaml override. Only
// keywords and categories can be tuned; the factor set itself is fixed.
type overrideFile struct {
	Factors []struct {
		Name       string   `yaml:"name"`
		Keywords   []string `yaml:"keywords"`
		Categories []string `yaml:"categories"`
	} `yaml:"factors"`
}

// Load returns the factor registry, applying keyword overrides from the
// given yaml file when path is non-empty. Overrides naming an unknown
// factor are rejected rather than silently ignored.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read overrides")
	}

	var of overrideFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return nil, eris.Wrap(err, "registry: parse overrides")
	}

	factors := make([]Factor, len(defaultFactors))
	copy(factors, defaultFactors)

	idx := make(map[string]int, len(factors))
	for i, f := range factors {
		idx[f.Name] = i
	}

	for _, o := range of.Factors {
		i, ok := idx[o.Name]
		if !ok {
			return nil, eris.Errorf("registry: unknown factor in overrides: %s", o.Name)
		}
		if len(o.Keywords) > 0 {
			factors[i].Keywords = o.Keywords
		}
		if len(o.Categories) > 0 {
			factors[i].Categories = o.Categories
		}
	}

	return newRegistry(factors), nil
}
