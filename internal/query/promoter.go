package query

import (
	"github.com/roach88/relq/internal/tree"
)

// JoinPromoter decides join types for the aliases referenced by the
// children of one tree level.
//
// Each child votes for the aliases it needs to be INNER. Under the
// effective connector (the node's connector, flipped when the node is
// negated):
//
//	OR:  every voted alias is promoted to LEFT OUTER.
//	AND: aliases voted by every child are demoted to INNER, aliases voted
//	     by only some children are promoted.
//
// Promotion only changes nullable hops or hops under a LEFT OUTER parent.
type JoinPromoter struct {
	Connector   tree.Connector
	NumChildren int
	Negated     bool

	votes map[string]int
	order []string
}

// NewJoinPromoter returns a promoter for a level with numChildren children.
func NewJoinPromoter(connector tree.Connector, numChildren int, negated bool) *JoinPromoter {
	return &JoinPromoter{
		Connector:   connector,
		NumChildren: numChildren,
		Negated:     negated,
		votes:       make(map[string]int),
	}
}

// EffectiveConnector is the connector as seen after negation:
// NOT (a AND b) needs the joins of a OR b.
func (p *JoinPromoter) EffectiveConnector() tree.Connector {
	if !p.Negated {
		return p.Connector
	}
	switch p.Connector {
	case tree.AND:
		return tree.OR
	case tree.OR:
		return tree.AND
	}
	return p.Connector
}

// AddVotes records one child's votes. Duplicates within a call count once.
func (p *JoinPromoter) AddVotes(aliases []string) {
	seen := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		if seen[a] {
			continue
		}
		seen[a] = true
		if _, ok := p.votes[a]; !ok {
			p.order = append(p.order, a)
		}
		p.votes[a]++
	}
}

// Votes returns how many children voted for alias.
func (p *JoinPromoter) Votes(alias string) int {
	return p.votes[alias]
}

// Decide splits the voted aliases into those to promote and those to
// demote, in first-vote order.
func (p *JoinPromoter) Decide() (promote, demote []string) {
	or := p.EffectiveConnector() == tree.OR
	for _, a := range p.order {
		all := p.votes[a] >= p.NumChildren
		switch {
		case or:
			promote = append(promote, a)
		case all:
			demote = append(demote, a)
		default:
			promote = append(promote, a)
		}
	}
	return promote, demote
}

// Unanimous returns the aliases every child voted for. They are the
// level's votes to its parent.
func (p *JoinPromoter) Unanimous() []string {
	var out []string
	for _, a := range p.order {
		if p.votes[a] >= p.NumChildren {
			out = append(out, a)
		}
	}
	return out
}

// UpdateJoinTypes applies the decision to q and returns the aliases to vote
// for at the parent level.
func (p *JoinPromoter) UpdateJoinTypes(q *Query) []string {
	promote, demote := p.Decide()
	q.promoteJoins(promote)
	q.demoteJoins(demote)
	return p.Unanimous()
}
