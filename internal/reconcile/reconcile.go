// Package reconcile groups identical AutoModerator rule blocks across
// subreddits into a single rule set.
package reconcile

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/klauern/amsync/internal/logging"
	"github.com/klauern/amsync/internal/model"
)

// Divider is the line separating rule blocks in wiki and local text.
const Divider = "---"

// Normalize converts CRLF and lone CR line endings to LF.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// IsDivider reports whether line separates two rule blocks.
func IsDivider(line string) bool {
	return strings.TrimRight(line, " \t") == Divider
}

// SplitBlocks splits raw configuration text into rule blocks. Trailing
// whitespace of every block is stripped and empty blocks are dropped.
func SplitBlocks(text string) []string {
	var (
		blocks  []string
		current []string
	)
	flush := func() {
		block := strings.TrimRightFunc(strings.Join(current, "\n"), unicode.IsSpace)
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(Normalize(text), "\n") {
		if IsDivider(line) {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return blocks
}

// JoinBlocks joins rule blocks into wiki text.
func JoinBlocks(blocks []string) string {
	return strings.Join(blocks, "\n"+Divider+"\n")
}

// Reconcile builds a rule set from each subreddit's raw configuration text.
//
// Subreddits of ws missing from raw could not be read; they are left out of
// the result entirely, including its working set, so they do not count
// towards universal membership.
func Reconcile(ws model.WorkingSet, raw map[string]string) *model.RuleSet {
	readable := ws.Filter(func(sub string) bool {
		_, ok := raw[sub]
		return ok
	})

	rs := model.NewRuleSet(readable)
	for _, sub := range readable {
		blocks := SplitBlocks(raw[sub])
		for _, block := range blocks {
			// readable is the rule set's own working set and blocks are
			// never empty, so AddMember cannot fail here.
			_ = rs.AddMember(block, sub)
		}
		logging.Debug("reconciled subreddit",
			logging.Subreddit(sub),
			logging.Count(len(blocks)),
		)
	}
	rs.Collapse()

	logging.Debug("reconciliation complete",
		logging.Count(rs.Len()),
		slog.Int("subreddits", readable.Len()),
		slog.Int("unreadable", ws.Len()-readable.Len()),
	)

	return rs
}

// Render returns the wiki text for sub: every block it uses, in rule set
// order.
func Render(rs *model.RuleSet, sub string) string {
	return JoinBlocks(rs.BlocksFor(sub))
}
