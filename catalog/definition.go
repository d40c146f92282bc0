package catalog

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/kbukum/chainkit/errors"
)

// Definition is a named pipeline described in YAML.
type Definition struct {
	Name   string     `yaml:"name"`
	Stages []StageRef `yaml:"stages"`
}

// StageRef is a single stage entry. In YAML it can be written as a plain
// name, a mapping with options, or a nested sequence forming an eager list:
//
//	stages:
//	  - square
//	  - name: sum
//	    flushable: true
//	  - [inc, double]
type StageRef struct {
	Name      string     `yaml:"name"`
	Flushable bool       `yaml:"flushable"`
	List      []StageRef `yaml:"list"`
}

// UnmarshalYAML accepts a stage as a string, a sequence or a mapping.
func (s *StageRef) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&s.Name)
	case yaml.SequenceNode:
		return value.Decode(&s.List)
	}
	type raw StageRef
	return value.Decode((*raw)(s))
}

// IsList reports whether the entry is an eager list stage.
func (s StageRef) IsList() bool { return s.Name == "" && s.List != nil }

// ParseDefinition parses YAML bytes into a single Definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinition reads and parses a Definition from a YAML file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline definition: %w", err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return def, nil
}

// Catalog is a file defining several pipelines under a "pipelines" key.
//
//	pipelines:
//	  squares:
//	    stages: [square, sum]
//	  evens:
//	    stages: [drop-even, double]
type Catalog struct {
	Pipelines map[string]Definition `yaml:"pipelines"`
}

// ParseCatalog parses YAML bytes into a Catalog. A definition without a
// name takes its key.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	for key, def := range c.Pipelines {
		if def.Name == "" {
			def.Name = key
			c.Pipelines[key] = def
		}
	}
	return &c, nil
}

// LoadCatalog reads and parses a Catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline catalog: %w", err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

// Get returns the definition stored under name.
func (c *Catalog) Get(name string) (*Definition, error) {
	def, ok := c.Pipelines[name]
	if !ok {
		return nil, errors.NotFound("pipeline", name).
			WithDetail("available", slices.Sorted(maps.Keys(c.Pipelines)))
	}
	return &def, nil
}
