package harness

import (
	"fmt"
	"sort"
)

// Evaluate checks a result against its expectations and returns one
// message per failed check.
func Evaluate(result *Result, expect Expect) []string {
	var failures []string

	code := ErrorCode(result.Err)
	switch {
	case expect.Error != "" && code == "":
		return []string{fmt.Sprintf("expected error %s, got none", expect.Error)}
	case expect.Error != "" && code != expect.Error:
		return []string{fmt.Sprintf("expected error %s, got %s: %v", expect.Error, code, result.Err)}
	case expect.Error != "":
		return nil
	case result.Err != nil:
		return []string{fmt.Sprintf("unexpected error: %v", result.Err)}
	}

	if expect.Empty != result.Empty {
		failures = append(failures, fmt.Sprintf("expected empty=%t, got %t", expect.Empty, result.Empty))
	}
	if expect.PKs != nil && !samePKs(expect.PKs, result.PKs) {
		failures = append(failures, fmt.Sprintf("expected pks %v, got %v", expect.PKs, result.PKs))
	}
	if expect.Count != nil && *expect.Count != len(result.PKs) {
		failures = append(failures, fmt.Sprintf("expected %d rows, got %d", *expect.Count, len(result.PKs)))
	}

	if len(expect.Joins) > 0 {
		got := make(map[string]string, len(result.Joins))
		for _, j := range result.Joins {
			got[j.Alias] = string(j.Type)
		}
		aliases := make([]string, 0, len(expect.Joins))
		for alias := range expect.Joins {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			want := expect.Joins[alias]
			typ, ok := got[alias]
			switch {
			case !ok:
				failures = append(failures, fmt.Sprintf("expected join %s, not present", alias))
			case typ != want:
				failures = append(failures, fmt.Sprintf("join %s: expected %s, got %s", alias, want, typ))
			}
		}
	}
	return failures
}

// samePKs compares keys by their printed form, since YAML decodes
// integers as int and SQLite returns int64.
func samePKs(want, got []any) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if fmt.Sprint(want[i]) != fmt.Sprint(got[i]) {
			return false
		}
	}
	return true
}
