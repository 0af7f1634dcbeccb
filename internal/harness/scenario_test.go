package harness

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}
	return fs
}

func TestLoadScenario(t *testing.T) {
	fs := memFS(t, map[string]string{
		"scenarios/schema.cue": "entity: Author: fields: name: string\n",
		"scenarios/a.yaml": `name: a
description: d
schema: schema.cue
entity: Author
steps:
  - filter_text: 'name = "Jim"'
  - exclude: {name: Bob}
expect:
  pks: [1]
`,
	})
	s, err := LoadScenario(fs, "scenarios/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "scenarios/schema.cue", s.SchemaPath())
	require.Len(t, s.Steps, 2)

	n, exclude, err := s.Steps[0].Node()
	require.NoError(t, err)
	assert.False(t, exclude)
	assert.Equal(t, `(AND: (name, "Jim"))`, n.String())

	_, exclude, err = s.Steps[1].Node()
	require.NoError(t, err)
	assert.True(t, exclude)
}

func TestLoadScenarioErrors(t *testing.T) {
	base := "description: d\nschema: schema.cue\nentity: Author\n"
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing name", base + "steps: [{filter: {name: x}}]\n", "name is required"},
		{"missing steps", "name: a\n" + base, "steps list is required"},
		{"two filters in a step", "name: a\n" + base + "steps: [{filter: {name: x}, filter_text: 'name = 1'}]\n", "steps[0]: exactly one"},
		{"unknown field", "name: a\n" + base + "stepz: []\n", "failed to parse YAML"},
		{"bad join type", "name: a\n" + base + "steps: [{filter: {name: x}}]\nexpect: {joins: {T2: CROSS}}\n", `unknown join type "CROSS"`},
		{"missing schema file", "name: a\ndescription: d\nschema: other.cue\nentity: Author\nsteps: [{filter: {name: x}}]\n", "schema file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := memFS(t, map[string]string{
				"schema.cue": "entity: Author: fields: name: string\n",
				"s.yaml":     tt.body,
			})
			_, err := LoadScenario(fs, "s.yaml")
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := LoadScenario(afero.NewMemMapFs(), "missing.yaml")
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestDiscover(t *testing.T) {
	fs := memFS(t, map[string]string{
		"sc/b.yaml":          "",
		"sc/a.yml":           "",
		"sc/nested/c.yaml":   "",
		"sc/schema.cue":      "",
		"sc/golden/a.golden": "",
	})

	files, err := Discover(fs, "sc", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"sc/a.yml", "sc/b.yaml", "sc/nested/c.yaml"}, files)

	files, err = Discover(fs, "sc", "[ab]")
	require.NoError(t, err)
	assert.Equal(t, []string{"sc/a.yml", "sc/b.yaml"}, files)

	_, err = Discover(fs, "sc", "[")
	assert.Error(t, err)
}
