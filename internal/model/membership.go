package model

import (
	"slices"
	"strings"
)

// Membership records which subreddits use a rule. It is either Universal
// (every subreddit of the working set) or an explicit, sorted list.
type Membership struct {
	universal bool
	subs      []string
}

// Universal returns the membership shared by every subreddit of a working set.
func Universal() Membership {
	return Membership{universal: true}
}

// Explicit returns a membership holding exactly the given subreddits.
// Duplicates are dropped and the result is sorted.
func Explicit(subs ...string) Membership {
	m := Membership{}
	for _, sub := range subs {
		m = m.With(sub)
	}
	return m
}

// IsUniversal reports whether the membership is the Universal sentinel.
func (m Membership) IsUniversal() bool {
	return m.universal
}

// Subreddits returns the explicit members in sorted order.
// It returns nil for a Universal membership.
func (m Membership) Subreddits() []string {
	if m.universal {
		return nil
	}
	return slices.Clone(m.subs)
}

// Len returns the number of explicit members, or 0 for Universal.
func (m Membership) Len() int {
	return len(m.subs)
}

// Includes reports whether sub uses the rule. Universal includes everyone.
// Names are compared exactly; a RuleSet stores members in its working set's
// spelling.
func (m Membership) Includes(sub string) bool {
	if m.universal {
		return true
	}
	_, ok := slices.BinarySearch(m.subs, sub)
	return ok
}

// With returns a copy of m with sub inserted in sorted position.
// Adding an existing member or adding to Universal is a no-op.
func (m Membership) With(sub string) Membership {
	if m.universal {
		return m
	}
	i, ok := slices.BinarySearch(m.subs, sub)
	if ok {
		return m
	}
	subs := make([]string, 0, len(m.subs)+1)
	subs = append(subs, m.subs[:i]...)
	subs = append(subs, sub)
	subs = append(subs, m.subs[i:]...)
	return Membership{subs: subs}
}

// Equal reports whether two memberships are identical.
func (m Membership) Equal(other Membership) bool {
	if m.universal != other.universal {
		return false
	}
	return slices.Equal(m.subs, other.subs)
}

// String renders the membership for messages and logs.
func (m Membership) String() string {
	if m.universal {
		return "all"
	}
	return "[" + strings.Join(m.subs, ", ") + "]"
}
