package cli

import (
	"context"

	"github.com/dmitrijs2005/tenantadmin/internal/backup"
)

func (a *App) backup(ctx context.Context, args []string, o options) error {
	tenant, err := arg(args, 0, "tenant")
	if err != nil {
		return err
	}
	res, err := a.engine.Backup(ctx, tenant, backup.BackupOptions{DryRun: o.dryRun})
	if err != nil {
		return err
	}
	a.printBackup(res, o.dryRun)
	return nil
}

func (a *App) list(ctx context.Context, args []string, _ options) error {
	tenant := ""
	if len(args) > 0 {
		tenant = args[0]
	}
	infos, err := a.engine.ListBackups(ctx, tenant)
	if err != nil {
		return err
	}
	a.printList(infos)
	return nil
}

// restoreFull restores the tenant from -file, or from its newest backup.
func (a *App) restoreFull(ctx context.Context, args []string, o options) error {
	tenant, err := arg(args, 0, "tenant")
	if err != nil {
		return err
	}

	src := o.file
	if src == "" {
		infos, err := a.engine.ListBackups(ctx, tenant)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			return failed(backup.NoBaselineBackup)
		}
		src = infos[0].Path
	}

	res, err := a.engine.RestoreFull(ctx, src, backup.RestoreFullOptions{
		SkipConfirmation:         a.config.AssumeYes,
		AllowEnvironmentMismatch: o.allowEnvMismatch,
		TargetTenantID:           tenant,
		AllowCrossTenant:         o.allowCrossTenant,
	})
	if err != nil {
		return err
	}
	if res.Failed != "" {
		return failed(res.Failed)
	}
	if res.Cancelled {
		return errCancelled
	}
	a.printRestoreFull(res)
	return nil
}

func (a *App) snapshot(ctx context.Context, args []string, o options) error {
	tenant, err := arg(args, 0, "tenant")
	if err != nil {
		return err
	}
	res, err := a.engine.Snapshot(ctx, tenant, backup.SnapshotOptions{SkipDiff: o.skipDiff})
	if err != nil {
		return err
	}
	if res.Failed != "" {
		return failed(res.Failed)
	}
	a.printf("Live snapshot: %s (%s documents)\n", res.Path, comma(res.Snapshot.Metadata.TotalDocuments))
	if res.Diff == nil {
		return nil
	}
	if res.Diff.Failed != "" {
		return failed(res.Diff.Failed)
	}
	a.printDiff(res.Diff)
	return nil
}

func (a *App) diff(ctx context.Context, args []string, o options) error {
	tenant, err := arg(args, 0, "tenant")
	if err != nil {
		return err
	}
	res, err := a.engine.Diff(ctx, tenant, backup.DiffOptions{AllowWithoutMaintenance: o.allowUnlocked})
	if err != nil {
		return err
	}
	if res.Failed != "" {
		return failed(res.Failed)
	}
	a.printDiff(res)
	return nil
}

func (a *App) restoreSelective(ctx context.Context, args []string, o options) error {
	tenant, err := arg(args, 0, "tenant")
	if err != nil {
		return err
	}
	res, err := a.engine.RestoreSelective(ctx, tenant, backup.SelectiveOptions{Collections: o.collections})
	if err != nil {
		return err
	}
	if res.Failed != "" {
		return failed(res.Failed)
	}
	a.printSelective(res)
	return nil
}

func (a *App) restoreDiff(ctx context.Context, args []string, o options) error {
	tenant, err := arg(args, 0, "tenant")
	if err != nil {
		return err
	}
	res, err := a.engine.RestoreDiffBased(ctx, tenant, backup.DiffRestoreOptions{Collections: o.collections})
	if err != nil {
		return err
	}
	if res.Failed != "" {
		return failed(res.Failed)
	}
	a.printDiffRestore(res)
	return nil
}
