package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the parts of a result that golden files pin down.
func Snapshot(result *Result) []byte {
	var b strings.Builder
	b.WriteString("-- sql --\n")
	if result.Empty {
		b.WriteString("(empty)\n")
	} else {
		b.WriteString(result.SQL + "\n")
	}
	fmt.Fprintf(&b, "-- params --\n%v\n", result.Params)
	b.WriteString("-- joins --\n")
	for _, j := range result.Joins {
		fmt.Fprintf(&b, "%s %s %s\n", j.Alias, j.Table, j.Type)
	}
	fmt.Fprintf(&b, "-- pks --\n%v\n", result.PKs)
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func (h *Harness) RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := h.Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Snapshot(result))
	return result, nil
}
