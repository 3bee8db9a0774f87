package schema

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is a named entity as declared in a definitions file
type Definition struct {
	Name string `yaml:"name"`

	// Datasource names the store records of this entity live in
	Datasource string `yaml:"datasource"`

	// CreateOnSave lets a record that cannot be loaded be created by its
	// first save
	CreateOnSave bool `yaml:"create_on_save"`

	Table  string      `yaml:"table"`
	Fields []FieldSpec `yaml:"fields"`
	Tables []TableSpec `yaml:"tables,omitempty"`
}

// Build creates the schema described by the definition
func (d Definition) Build() (*Schema, error) {
	return New(d.Table, d.Fields, d.Tables)
}

type definitionsFile struct {
	Entities []Definition `yaml:"entities"`
}

// ParseDefinitions decodes entity definitions from YAML
func ParseDefinitions(r io.Reader) ([]Definition, error) {
	var file definitionsFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode entity definitions: %w", err)
	}

	seen := make(map[string]bool, len(file.Entities))
	for i, def := range file.Entities {
		if def.Name == "" {
			file.Entities[i].Name = def.Table
			def.Name = def.Table
		}
		if def.Name == "" {
			return nil, fmt.Errorf("entity %d has neither a name nor a table", i)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntity, def.Name)
		}
		seen[def.Name] = true
	}
	return file.Entities, nil
}

// LoadDefinitions reads entity definitions from a YAML file
func LoadDefinitions(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open entity definitions: %w", err)
	}
	defer f.Close()

	return ParseDefinitions(f)
}
