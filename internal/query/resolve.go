package query

import (
	"fmt"
	"strings"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/lookup"
	"github.com/roach88/relq/internal/meta"
)

// multiJoinError is raised by namesToPath when a path crosses a
// multi-valued hop where that is not allowed. buildFilter turns it into a
// subquery.
type multiJoinError struct {
	pos   int
	names []string
}

func (e *multiJoinError) Error() string {
	return fmt.Sprintf("path %s crosses a multi-valued relation at %q", strings.Join(e.names, LookupSep), e.names[e.pos])
}

// namesToPath walks names from the base entity. Relations are tried before
// fields, so a forward FK name hops while its column name ("author_id")
// does not. It stops at the first name that is neither unless
// failOnMissing is set; the remaining names are lookups.
func (q *Query) namesToPath(names []string, allowMany, failOnMissing bool) ([]meta.PathInfo, target, int, error) {
	var (
		paths []meta.PathInfo
		cur   = q.entity
		tgt   = fieldTarget(cur.PK)
	)
	for i, name := range names {
		if rel, ok := cur.Relation(name); ok {
			hops := rel.PathInfos()
			for _, p := range hops {
				if p.MultiValued && !allowMany {
					return nil, target{}, 0, &multiJoinError{pos: i, names: names}
				}
			}
			paths = append(paths, hops...)
			cur = rel.Target
			tgt = fieldTarget(rel.TargetField())
			continue
		}
		if f, ok := cur.Field(name); ok {
			// A concrete field, or an FK named by its column, ends the path.
			if failOnMissing && i+1 < len(names) {
				return nil, target{}, 0, &FieldError{
					Code:    ErrCodeUnresolvedField,
					Name:    names[i+1],
					Message: fmt.Sprintf("cannot resolve keyword %q into field. Join on %q not permitted", names[i+1], name),
				}
			}
			return paths, fieldTarget(f), i + 1, nil
		}
		if i == 0 || failOnMissing {
			return nil, target{}, 0, unresolvedField(name, cur.Names())
		}
		return paths, tgt, i, nil
	}
	return paths, tgt, len(names), nil
}

// buildLookup applies transforms and the final lookup to lhs. An unknown
// final name is retried as a transform compared with exact.
func (q *Query) buildLookup(lookups []string, lhs expr.Expression, rhs any) (*lookup.Lookup, error) {
	if len(lookups) == 0 {
		lookups = []string{"exact"}
	}
	transforms, name := lookups[:len(lookups)-1], lookups[len(lookups)-1]
	for _, t := range transforms {
		var err error
		if lhs, err = q.tryTransform(lhs, t); err != nil {
			return nil, err
		}
	}
	rule, ok := q.registry.Rule(name)
	if !ok {
		var err error
		if lhs, err = q.tryTransform(lhs, name); err != nil {
			return nil, err
		}
		name = "exact"
		if rule, ok = q.registry.Rule(name); !ok {
			return nil, unsupportedLookup(name, lhs, q.registry)
		}
	}

	if isNil(rhs) && !rule.AcceptsNone() {
		if name != "exact" && name != "iexact" {
			return nil, &FieldError{
				Code:    ErrCodeInvalidLookupValue,
				Name:    name,
				Message: "cannot use nil as a query value",
			}
		}
		isnull, ok := q.registry.Rule("isnull")
		if !ok {
			return nil, unsupportedLookup("isnull", lhs, q.registry)
		}
		rule, rhs = isnull, true
	}

	l, err := lookup.New(rule, lhs, rhs)
	if err != nil {
		return nil, &FieldError{Code: ErrCodeInvalidLookupValue, Name: name, Message: err.Error()}
	}
	return l, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	if val, ok := v.(expr.Value); ok {
		return val.V == nil
	}
	return false
}

func (q *Query) tryTransform(lhs expr.Expression, name string) (expr.Expression, error) {
	t, ok := q.registry.Transform(name, lhs.OutputType())
	if !ok {
		return nil, unsupportedLookup(name, lhs, q.registry)
	}
	return t.Apply(lhs), nil
}

func unsupportedLookup(name string, lhs expr.Expression, reg *lookup.Registry) *FieldError {
	choices := reg.Names(lhs.OutputType())
	return &FieldError{
		Code:    ErrCodeUnsupportedLookup,
		Name:    name,
		Message: fmt.Sprintf("unsupported lookup %q for %v or join on the field not permitted", name, lhs),
		Choices: choices,
	}
}

// refResolver resolves F() references in the branch they appear in, so
// their joins are reused and voted for like the filter's own.
type refResolver struct {
	q          *Query
	context    int
	negated    bool
	allowJoins bool
}

func (r refResolver) ResolveRef(name string) (expr.Expression, error) {
	names := strings.Split(name, LookupSep)
	info, err := r.q.setupJoins(names, true, true, r.context, r.negated)
	if err != nil {
		return nil, err
	}
	tgt, alias, joins := r.q.trimJoins(info.target, info.joins, info.paths)
	if !r.allowJoins && len(joins) > 1 {
		return nil, disallowedJoin(name)
	}
	return tgt.col(alias), nil
}

// Resolve resolves a field reference against the query's current joins,
// creating any it needs in the root branch.
func (q *Query) Resolve(name string) (expr.Expression, error) {
	return refResolver{q: q, allowJoins: q.allowJoins}.ResolveRef(name)
}
