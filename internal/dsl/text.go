package dsl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/query"
	"github.com/roach88/relq/internal/tree"
)

var textLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[~&|()=\[\],]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type textOr struct {
	Pos   lexer.Position
	Terms []*textAnd `parser:"@@ ( \"|\" @@ )*"`
}

type textAnd struct {
	Factors []*textUnary `parser:"@@ ( \"&\" @@ )*"`
}

type textUnary struct {
	Not   *textUnary `parser:"  \"~\" @@"`
	Group *textOr    `parser:"| \"(\" @@ \")\""`
	Cond  *textCond  `parser:"| @@"`
}

type textCond struct {
	Pos   lexer.Position
	Path  string     `parser:"@Ident \"=\""`
	Value *textValue `parser:"@@"`
}

type textValue struct {
	Ref    *string   `parser:"  \"F\" \"(\" @Ident \")\""`
	List   *textList `parser:"| @@"`
	String *string   `parser:"| @String"`
	Number *string   `parser:"| @Number"`
	Bool   *string   `parser:"| @(\"true\" | \"false\")"`
	Null   bool      `parser:"| @\"null\""`
}

type textList struct {
	Items []*textValue `parser:"\"[\" ( @@ ( \",\" @@ )* )? \"]\""`
}

var textParser = participle.MustBuild[textOr](
	participle.Lexer(textLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// ParseText parses a filter in the text form.
func ParseText(src string) (*tree.Node, error) {
	if strings.TrimSpace(src) == "" {
		return query.All(), nil
	}
	raw, err := textParser.ParseString("filter", src)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			return nil, &ParseError{Path: perr.Position().String(), Message: perr.Message()}
		}
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	return raw.node()
}

func (o *textOr) node() (*tree.Node, error) {
	var out *tree.Node
	for _, term := range o.Terms {
		n, err := term.node()
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = n
		} else {
			out = out.Or(n)
		}
	}
	return out, nil
}

func (a *textAnd) node() (*tree.Node, error) {
	var out *tree.Node
	for _, f := range a.Factors {
		n, err := f.node()
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = n
		} else {
			out = out.And(n)
		}
	}
	return out, nil
}

func (u *textUnary) node() (*tree.Node, error) {
	switch {
	case u.Not != nil:
		n, err := u.Not.node()
		if err != nil {
			return nil, err
		}
		return n.Not(), nil
	case u.Group != nil:
		return u.Group.node()
	default:
		v, err := u.Cond.Value.value()
		if err != nil {
			return nil, &ParseError{Path: u.Cond.Pos.String(), Message: err.Error()}
		}
		return query.Q(u.Cond.Path, v), nil
	}
}

func (v *textValue) value() (any, error) {
	switch {
	case v.Ref != nil:
		return expr.F{Name: *v.Ref}, nil
	case v.List != nil:
		out := make([]any, len(v.List.Items))
		for i, item := range v.List.Items {
			iv, err := item.value()
			if err != nil {
				return nil, err
			}
			out[i] = iv
		}
		return out, nil
	case v.String != nil:
		return *v.String, nil
	case v.Number != nil:
		if strings.Contains(*v.Number, ".") {
			return strconv.ParseFloat(*v.Number, 64)
		}
		return strconv.Atoi(*v.Number)
	case v.Bool != nil:
		return *v.Bool == "true", nil
	default:
		return nil, nil
	}
}
