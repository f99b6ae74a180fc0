package backup

import (
	"fmt"
	"time"
)

// CleanupOptions configures backup cleanup behavior
type CleanupOptions struct {
	// MaxBackups limits the number of backups to keep per source file (0 = unlimited)
	MaxBackups int

	// MaxAge is the maximum age of backups to keep (0 = unlimited)
	MaxAge time.Duration

	// KeepAtLeastOne ensures at least one backup is kept per source file
	KeepAtLeastOne bool

	// DryRun previews what would be deleted without actually deleting
	DryRun bool
}

// Cleanup removes old backups and returns the IDs it removed (or would
// remove, for a dry run), newest first within each source file.
func (m *Manager) Cleanup(opts CleanupOptions) ([]string, error) {
	index, err := m.loadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load backup index: %w", err)
	}

	// sorted keeps each group newest first.
	groups := make(map[string][]Metadata)
	var order []string
	for _, b := range index.sorted() {
		if _, ok := groups[b.SourcePath]; !ok {
			order = append(order, b.SourcePath)
		}
		groups[b.SourcePath] = append(groups[b.SourcePath], b)
	}

	now := m.now()
	var toDelete []string
	for _, source := range order {
		var doomed []string
		for i, b := range groups[source] {
			expired := opts.MaxAge > 0 && now.Sub(b.CreatedAt) > opts.MaxAge
			overLimit := opts.MaxBackups > 0 && i >= opts.MaxBackups
			if expired || overLimit {
				doomed = append(doomed, b.ID)
			}
		}
		if opts.KeepAtLeastOne && len(doomed) == len(groups[source]) && len(doomed) > 0 {
			doomed = doomed[1:]
		}
		toDelete = append(toDelete, doomed...)
	}

	if opts.DryRun || len(toDelete) == 0 {
		return toDelete, nil
	}

	var deleted []string
	for _, id := range toDelete {
		if err := m.remove(index, id); err != nil {
			_ = m.saveIndex(index)
			return deleted, fmt.Errorf("failed to delete backup %q: %w", id, err)
		}
		deleted = append(deleted, id)
	}
	return deleted, m.saveIndex(index)
}

// Stats contains statistics about backups
type Stats struct {
	TotalBackups int
	TotalSize    int64
	OldestBackup time.Time
	NewestBackup time.Time
}

// Stats summarizes the backups in the directory.
func (m *Manager) Stats() (*Stats, error) {
	backups, err := m.List()
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalBackups: len(backups)}
	for _, b := range backups {
		stats.TotalSize += b.Size
	}
	if len(backups) > 0 {
		stats.NewestBackup = backups[0].CreatedAt
		stats.OldestBackup = backups[len(backups)-1].CreatedAt
	}
	return stats, nil
}
