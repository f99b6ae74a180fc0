// Package sync moves AutoModerator rules between the local rules file and
// subreddit wiki pages.
//
// A Syncer drives four operations:
//
//   - Init snapshots the given subreddits into a new rules file.
//   - ModInit does the same for every subreddit the account moderates.
//   - Pull refreshes the rules file from the wiki, after showing the diff
//     and asking the operator.
//   - Push writes each subreddit's rules from the file to its wiki page,
//     one subreddit at a time, with a diff, a confirmation and a commit
//     message for every change.
//
// Subreddits are always processed in sorted order. A page that cannot be
// read or written is reported and skipped; only local file problems and
// operator errors stop an operation.
//
// # Example
//
//	s := sync.New(client, rulefile.New("rules.yaml"), operator, os.Stdout, sync.Options{})
//	report, err := s.Push(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(report.Summary())
package sync
