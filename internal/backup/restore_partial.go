package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tenantadmin/internal/collections"
	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/logging"
)

// SelectiveOptions tunes RestoreSelective.
type SelectiveOptions struct {
	Collections []string
}

// CollectionRestore reports one collection of a selective restore.
type CollectionRestore struct {
	Collection string
	Documents  int
}

// SelectiveResult is the outcome of RestoreSelective.
type SelectiveResult struct {
	Failed     Precondition
	BackupPath string
	Restored   []CollectionRestore
	// NotInBackup lists requested collections the backup has no documents for.
	NotInBackup []string
	// Ignored lists requested names that are not restorable collections.
	Ignored        []string
	TotalDocuments int
	Failures       []ItemFailure
}

// DiffRestoreOptions tunes RestoreDiffBased.
type DiffRestoreOptions struct {
	Collections []string
}

// DiffRestoreCounts reports one collection of a diff-based restore.
type DiffRestoreCounts struct {
	Collection      string
	Added           int
	Modified        int
	DeletedRestored int
}

// DiffRestoreResult is the outcome of RestoreDiffBased.
type DiffRestoreResult struct {
	Failed      Precondition
	Restored    []DiffRestoreCounts
	NoChanges   []string
	Ignored     []string
	Totals      DiffRestoreCounts
	Failures    []ItemFailure
	SummaryPath string
}

// selectTargets applies the shared gates of the partial restores: a
// non-empty list of known, non-identity collections and an active
// maintenance lock. Users is dropped silently; unknown names are logged.
func (e *Engine) selectTargets(ctx context.Context, log logging.Logger, tenantID string, wanted []string) (collections.Schedule, []string, Precondition, error) {
	if len(wanted) == 0 {
		return nil, nil, NoCollectionsSpecified, nil
	}

	selected, unknown := e.schedule.Select(wanted, false)
	for _, n := range unknown {
		log.Warn(ctx, "unknown collection ignored", "collection", n)
	}
	if len(selected) == 0 {
		return nil, unknown, NoValidCollections, nil
	}

	root, err := e.tenantRoot(ctx, tenantID)
	if err != nil {
		return nil, nil, "", err
	}
	if !inMaintenance(root) {
		return nil, unknown, MaintenanceLockRequired, nil
	}
	return selected, unknown, "", nil
}

// RestoreSelective merges the chosen collections from the latest backup back
// into the tenant. Fields absent from the backup documents are kept.
func (e *Engine) RestoreSelective(ctx context.Context, tenantID string, opts SelectiveOptions) (*SelectiveResult, error) {
	log := e.opLogger("restore-selective", tenantID)

	targets, ignored, failed, err := e.selectTargets(ctx, log, tenantID, opts.Collections)
	if err != nil {
		return nil, err
	}
	res := &SelectiveResult{Failed: failed, Ignored: ignored}
	if failed != "" {
		log.Warn(ctx, "restore refused", "reason", failed)
		return res, nil
	}

	basePath, ok, err := e.latestBackup(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		res.Failed = NoBaselineBackup
		return res, nil
	}
	snap, _, err := e.loadSnapshot(ctx, basePath)
	if err != nil {
		return nil, err
	}
	res.BackupPath = basePath
	log.Info(ctx, "restoring from backup", "path", basePath, "collections", targets.Names())

	for _, c := range targets {
		records := snap.Documents(c.Name)
		if len(records) == 0 {
			log.Info(ctx, "collection not in backup", "collection", c.Name)
			res.NotInBackup = append(res.NotInBackup, c.Name)
			continue
		}
		n, failures := e.writeDocuments(ctx, log, tenantID, c.Name, setWrites(records, true))
		res.Restored = append(res.Restored, CollectionRestore{Collection: c.Name, Documents: n})
		res.TotalDocuments += n
		res.Failures = append(res.Failures, failures...)
		log.Info(ctx, "restored", "collection", c.Name, "documents", n)
		e.settle(ctx, log, c.Name, c.SettleAfterRestore)
	}
	return res, nil
}

// RestoreDiffBased replays the last computed diff for the chosen
// collections: added and modified documents are written in their live
// version, deleted documents are written back in their baseline version.
func (e *Engine) RestoreDiffBased(ctx context.Context, tenantID string, opts DiffRestoreOptions) (*DiffRestoreResult, error) {
	log := e.opLogger("restore-diff", tenantID)

	targets, ignored, failed, err := e.selectTargets(ctx, log, tenantID, opts.Collections)
	if err != nil {
		return nil, err
	}
	res := &DiffRestoreResult{Failed: failed, Ignored: ignored, SummaryPath: DiffSummaryPath(tenantID)}
	if failed != "" {
		log.Warn(ctx, "restore refused", "reason", failed)
		return res, nil
	}

	var summary DiffSummary
	if _, err := e.store.Load(ctx, res.SummaryPath, &summary); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			res.Failed = NoDiffFound
			return res, nil
		}
		return nil, fmt.Errorf("read diff summary: %w", err)
	}
	log.Info(ctx, "restoring from diff", "baseline", summary.BaselinePath, "live_date", summary.LiveDate,
		"collections", targets.Names())

	for _, c := range targets {
		var d CollectionDiff
		if _, err := e.store.Load(ctx, DiffPath(tenantID, c.Name), &d); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				log.Info(ctx, "no changes recorded", "collection", c.Name)
				res.NoChanges = append(res.NoChanges, c.Name)
				continue
			}
			return nil, fmt.Errorf("read diff %s: %w", c.Name, err)
		}

		writes := setWrites(d.Added, false)
		writes = append(writes, setWrites(d.Modified, false)...)
		writes = append(writes, setWrites(d.Deleted, false)...)
		if len(writes) == 0 {
			res.NoChanges = append(res.NoChanges, c.Name)
			continue
		}

		_, failures := e.writeDocuments(ctx, log, tenantID, c.Name, writes)
		res.Failures = append(res.Failures, failures...)

		counts := DiffRestoreCounts{
			Collection:      c.Name,
			Added:           len(d.Added),
			Modified:        len(d.Modified),
			DeletedRestored: len(d.Deleted),
		}
		discount(&counts, d, failures)
		res.Restored = append(res.Restored, counts)
		res.Totals.Added += counts.Added
		res.Totals.Modified += counts.Modified
		res.Totals.DeletedRestored += counts.DeletedRestored

		log.Info(ctx, "restored from diff", "collection", c.Name,
			"added", counts.Added, "modified", counts.Modified, "deleted_restored", counts.DeletedRestored)
		e.settle(ctx, log, c.Name, c.SettleAfterRestore)
	}
	return res, nil
}

// discount removes failed writes from the per-category counts.
func discount(c *DiffRestoreCounts, d CollectionDiff, failures []ItemFailure) {
	if len(failures) == 0 {
		return
	}
	failed := make(map[string]bool, len(failures))
	for _, f := range failures {
		failed[f.ID] = true
	}
	for _, r := range d.Added {
		if failed[r.DocID] {
			c.Added--
		}
	}
	for _, r := range d.Modified {
		if failed[r.DocID] {
			c.Modified--
		}
	}
	for _, r := range d.Deleted {
		if failed[r.DocID] {
			c.DeletedRestored--
		}
	}
}
