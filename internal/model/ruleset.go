package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInWorkingSet is returned when a rule references a subreddit
	// outside the rule set's working set.
	ErrNotInWorkingSet = errors.New("subreddit not in working set")

	// ErrDuplicateRule is returned when the same rule block is added twice
	// with a full membership.
	ErrDuplicateRule = errors.New("duplicate rule")

	// ErrEmptyRule is returned for blank rule blocks.
	ErrEmptyRule = errors.New("empty rule")
)

// Rule is one unique rule block together with the subreddits using it.
type Rule struct {
	Block   string
	Members Membership
}

// RuleSet is an ordered mapping from rule block to membership. Blocks are
// unique by content and keep their first-seen order.
type RuleSet struct {
	workingSet WorkingSet
	rules      []Rule
	index      map[string]int
}

// NewRuleSet returns an empty rule set over the given working set.
func NewRuleSet(ws WorkingSet) *RuleSet {
	return &RuleSet{
		workingSet: ws,
		index:      make(map[string]int),
	}
}

// WorkingSet returns the subreddits this rule set was built for.
func (rs *RuleSet) WorkingSet() WorkingSet {
	return rs.workingSet
}

// Len returns the number of unique rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Rules returns the rules in insertion order.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Lookup returns the membership of block, if present.
func (rs *RuleSet) Lookup(block string) (Membership, bool) {
	i, ok := rs.index[block]
	if !ok {
		return Membership{}, false
	}
	return rs.rules[i].Members, true
}

// AddMember records that sub uses block. A new block is appended at the end;
// a known block gains sub in its membership unless already present.
func (rs *RuleSet) AddMember(block, sub string) error {
	if block == "" {
		return ErrEmptyRule
	}
	name, ok := rs.workingSet.Lookup(sub)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInWorkingSet, sub)
	}
	sub = name
	if i, ok := rs.index[block]; ok {
		rs.rules[i].Members = rs.rules[i].Members.With(sub)
		return nil
	}
	rs.append(block, Explicit(sub))
	return nil
}

// Add appends block with a complete membership, as read from a local file.
// An explicit membership naming every working-set subreddit is stored as
// Universal.
func (rs *RuleSet) Add(block string, m Membership) error {
	if block == "" {
		return ErrEmptyRule
	}
	if _, ok := rs.index[block]; ok {
		return ErrDuplicateRule
	}
	if !m.IsUniversal() {
		if m.Len() == 0 {
			return fmt.Errorf("%w: no subreddits", ErrNotInWorkingSet)
		}
		var members Membership
		for _, name := range m.subs {
			sub, ok := rs.workingSet.Lookup(name)
			if !ok {
				return fmt.Errorf("%w: %s", ErrNotInWorkingSet, name)
			}
			members = members.With(sub)
		}
		m = members
		if m.Len() == rs.workingSet.Len() {
			m = Universal()
		}
	}
	rs.append(block, m)
	return nil
}

func (rs *RuleSet) append(block string, m Membership) {
	rs.index[block] = len(rs.rules)
	rs.rules = append(rs.rules, Rule{Block: block, Members: m})
}

// Collapse replaces every membership that covers the whole working set with
// Universal.
func (rs *RuleSet) Collapse() {
	n := rs.workingSet.Len()
	if n == 0 {
		return
	}
	for i := range rs.rules {
		if rs.rules[i].Members.Len() == n {
			rs.rules[i].Members = Universal()
		}
	}
}

// BlocksFor returns, in order, the blocks used by sub.
func (rs *RuleSet) BlocksFor(sub string) []string {
	var blocks []string
	for _, r := range rs.rules {
		if r.Members.Includes(sub) {
			blocks = append(blocks, r.Block)
		}
	}
	return blocks
}

// Equal reports whether two rule sets hold the same rules, in the same
// order, with the same memberships over the same working set.
func (rs *RuleSet) Equal(other *RuleSet) bool {
	if rs == nil || other == nil {
		return rs == other
	}
	if !rs.workingSet.Equal(other.workingSet) || len(rs.rules) != len(other.rules) {
		return false
	}
	for i, r := range rs.rules {
		o := other.rules[i]
		if r.Block != o.Block || !r.Members.Equal(o.Members) {
			return false
		}
	}
	return true
}
