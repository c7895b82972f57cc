package plan

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Loader loads plan overrides from a YAML file
type Loader struct {
	path     string
	validate *validator.Validate
}

type planFile struct {
	Plans []*Plan `yaml:"plans" validate:"dive"`
}

// NewLoader creates a loader for the given file. An empty path loads nothing.
func NewLoader(path string) *Loader {
	return &Loader{
		path:     path,
		validate: validator.New(),
	}
}

// LoadAll returns the plans defined in the file
func (l *Loader) LoadAll() ([]*Plan, error) {
	if l.path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read plans file %s: %w", l.path, err)
	}

	var file planFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse plans YAML %s: %w", l.path, err)
	}

	seen := make(map[string]bool, len(file.Plans))
	for _, p := range file.Plans {
		if p == nil {
			return nil, fmt.Errorf("plans file %s contains an empty entry", l.path)
		}
		if err := l.Validate(p); err != nil {
			return nil, fmt.Errorf("validate plan %s: %w", p.ID, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate plan id %s", p.ID)
		}
		seen[p.ID] = true
	}

	return file.Plans, nil
}

// Validate validates a plan definition
func (l *Loader) Validate(p *Plan) error {
	if err := l.validate.Struct(p); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
