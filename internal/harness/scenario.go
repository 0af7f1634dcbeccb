package harness

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/roach88/relq/internal/dsl"
	"github.com/roach88/relq/internal/tree"
)

// Scenario defines one end-to-end filter check.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is a CUE file path, relative to the scenario file.
	Schema string `yaml:"schema"`

	// Entity is the entity the steps filter.
	Entity string `yaml:"entity"`

	// Fixtures are inserted before any step runs.
	Fixtures []Fixture `yaml:"fixtures,omitempty"`

	// Steps are applied in order, each narrowing the previous result.
	Steps []Step `yaml:"steps"`

	// Expect holds the checks run against the final result.
	Expect Expect `yaml:"expect"`

	// dir is the directory the scenario was loaded from.
	dir string
}

// Fixture lists rows for one table.
type Fixture struct {
	Table string           `yaml:"table"`
	Rows  []map[string]any `yaml:"rows"`
}

// Step is one filter or exclude call. Exactly one field is set.
type Step struct {
	Filter      any    `yaml:"filter,omitempty"`
	Exclude     any    `yaml:"exclude,omitempty"`
	FilterText  string `yaml:"filter_text,omitempty"`
	ExcludeText string `yaml:"exclude_text,omitempty"`
}

// Node parses the step's filter and reports whether it excludes.
func (s Step) Node() (*tree.Node, bool, error) {
	switch {
	case s.Filter != nil:
		n, err := dsl.FromData(s.Filter)
		return n, false, err
	case s.Exclude != nil:
		n, err := dsl.FromData(s.Exclude)
		return n, true, err
	case s.FilterText != "":
		n, err := dsl.ParseText(s.FilterText)
		return n, false, err
	default:
		n, err := dsl.ParseText(s.ExcludeText)
		return n, true, err
	}
}

func (s Step) count() int {
	n := 0
	for _, set := range []bool{s.Filter != nil, s.Exclude != nil, s.FilterText != "", s.ExcludeText != ""} {
		if set {
			n++
		}
	}
	return n
}

// Expect is the set of checks for a scenario. Unset checks are skipped.
type Expect struct {
	// PKs are the matching primary keys in order.
	PKs []any `yaml:"pks,omitempty"`

	// Count is the expected number of matching rows.
	Count *int `yaml:"count,omitempty"`

	// Joins maps join aliases to their expected join type.
	Joins map[string]string `yaml:"joins,omitempty"`

	// Error is the expected error code of the failing step.
	Error string `yaml:"error,omitempty"`

	// Empty expects a statement that matches nothing without a query.
	Empty bool `yaml:"empty,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(fs afero.Fs, file string) (*Scenario, error) {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.dir = path.Dir(file)

	if err := validateScenario(fs, &scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// SchemaPath resolves the schema path against the scenario directory.
func (s *Scenario) SchemaPath() string {
	if path.IsAbs(s.Schema) || s.dir == "" {
		return s.Schema
	}
	return path.Join(s.dir, s.Schema)
}

// Discover returns the scenario files under dir whose base name matches
// filter (a glob; empty matches all), sorted by path.
func Discover(fs afero.Fs, dir, filter string) ([]string, error) {
	var files []string
	err := afero.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := path.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(path.Base(p), ext)
			matched, err := path.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	sort.Strings(files)
	return files, err
}

func validateScenario(fs afero.Fs, s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if s.Entity == "" {
		return fmt.Errorf("entity is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if ok, _ := afero.Exists(fs, s.SchemaPath()); !ok {
		return fmt.Errorf("schema file not found: %s", s.SchemaPath())
	}
	for i, f := range s.Fixtures {
		if f.Table == "" {
			return fmt.Errorf("fixtures[%d]: table is required", i)
		}
	}
	for i, step := range s.Steps {
		if step.count() != 1 {
			return fmt.Errorf("steps[%d]: exactly one of filter, exclude, filter_text, exclude_text is required", i)
		}
	}
	for alias, typ := range s.Expect.Joins {
		if !validJoinType(typ) {
			return fmt.Errorf("expect.joins[%s]: unknown join type %q", alias, typ)
		}
	}
	return nil
}
