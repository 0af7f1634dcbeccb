package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/dsl"
	"github.com/roach88/relq/internal/meta"
	"github.com/roach88/relq/internal/schema"
	"github.com/roach88/relq/internal/tree"
)

// FilterOptions are the flags shared by commands that take a filter.
type FilterOptions struct {
	File    string // YAML filter file
	Exclude bool
}

func (o *FilterOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.File, "file", "f", "", "read the filter from a YAML file")
	cmd.Flags().BoolVar(&o.Exclude, "exclude", false, "exclude matching rows instead of keeping them")
}

// node parses the filter from the remaining args (text form) or the
// YAML file. No filter at all matches every row.
func (o *FilterOptions) node(fs afero.Fs, args []string) (*tree.Node, error) {
	if o.File != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("pass a filter expression or --file, not both")
		}
		data, err := afero.ReadFile(fs, o.File)
		if err != nil {
			return nil, err
		}
		return dsl.ParseYAML(data)
	}
	return dsl.ParseText(strings.Join(args, " "))
}

// loadSchema reads a single CUE file through fs, or a directory of CUE
// files from disk.
func loadSchema(fs afero.Fs, path string) (*meta.Schema, error) {
	isDir, err := afero.IsDir(fs, path)
	if err != nil {
		return nil, &schema.LoadError{Code: schema.ErrCodeNotFound, Message: fmt.Sprintf("schema not found: %s", path)}
	}
	if isDir {
		return schema.Load(path)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	return schema.Compile(string(data))
}

func lookupEntity(s *meta.Schema, name string) (*meta.Entity, error) {
	e, ok := s.Entity(name)
	if !ok {
		names := make([]string, 0)
		for _, e := range s.Entities() {
			names = append(names, e.Name)
		}
		return nil, fmt.Errorf("unknown entity %q (choices: %s)", name, strings.Join(names, ", "))
	}
	return e, nil
}
