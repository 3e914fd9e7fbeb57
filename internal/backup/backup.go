package backup

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/tenantadmin/internal/storage"
)

// BackupOptions tunes Backup.
type BackupOptions struct {
	// DryRun collects the tenant without writing an artifact.
	DryRun bool
}

// BackupResult describes a written backup.
type BackupResult struct {
	Path     string
	Snapshot *TenantSnapshot
	Metadata storage.Metadata
}

// Backup collects the tenant and writes it to a new timestamp-qualified
// artifact under companies/{tenantId}/.
func (e *Engine) Backup(ctx context.Context, tenantID string, opts BackupOptions) (*BackupResult, error) {
	log := e.opLogger("backup", tenantID)
	log.Info(ctx, "backup started")

	snap, err := e.collect(ctx, log, tenantID)
	if err != nil {
		return nil, err
	}

	at, err := time.Parse(timestampLayout, snap.BackupDate)
	if err != nil {
		return nil, fmt.Errorf("backup date: %w", err)
	}
	at, err = e.freeBackupStamp(ctx, tenantID, at)
	if err != nil {
		return nil, err
	}
	snap.BackupDate = at.UTC().Format(timestampLayout)

	res := &BackupResult{
		Path:     BackupPath(tenantID, at),
		Snapshot: snap,
		Metadata: snap.metadata(e.env),
	}
	if opts.DryRun {
		log.Info(ctx, "dry run, nothing written", "path", res.Path)
		return res, nil
	}

	if err := e.store.Save(ctx, res.Path, snap, res.Metadata); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}
	log.Info(ctx, "backup written", "path", res.Path,
		"documents", snap.Metadata.TotalDocuments, "users", snap.Metadata.TotalAuthUsers)
	return res, nil
}

// maxStampBumps bounds the search for an unused backup path.
const maxStampBumps = 1000

// freeBackupStamp returns the first instant from at onwards, in millisecond
// steps, whose backup path is not taken. Existing backups are never replaced.
func (e *Engine) freeBackupStamp(ctx context.Context, tenantID string, at time.Time) (time.Time, error) {
	for range maxStampBumps {
		ok, err := e.store.Exists(ctx, BackupPath(tenantID, at))
		if err != nil {
			return time.Time{}, fmt.Errorf("check backup path: %w", err)
		}
		if !ok {
			return at, nil
		}
		at = at.Add(time.Millisecond)
	}
	return time.Time{}, fmt.Errorf("no free backup path for %s near %s", tenantID, at.UTC().Format(timestampLayout))
}

// BackupInfo describes one stored backup.
type BackupInfo struct {
	Path           string
	CompanyID      string
	CompanyName    string
	Timestamp      string
	TotalDocuments int
	TotalAuthUsers int
	Collections    []string
	Environment    string
	Size           int64
}

// ListBackups returns the backups of tenantID, or of every tenant when it is
// empty, newest first.
func (e *Engine) ListBackups(ctx context.Context, tenantID string) ([]BackupInfo, error) {
	objs, err := e.store.List(ctx, BackupPattern(tenantID), storage.ListOptions{IncludeMetadata: true})
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	out := make([]BackupInfo, 0, len(objs))
	for _, o := range objs {
		md := o.Metadata
		if md == nil {
			if md, err = e.store.Load(ctx, o.Path, nil); err != nil {
				return nil, fmt.Errorf("read backup metadata: %w", err)
			}
		}
		out = append(out, backupInfo(o, md))
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := path.Base(out[i].Path), path.Base(out[j].Path)
		if si != sj {
			return si > sj
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

func backupInfo(o storage.Object, md storage.Metadata) BackupInfo {
	info := BackupInfo{
		Path:        o.Path,
		CompanyID:   md.Get("companyId"),
		CompanyName: md.Get("companyName"),
		Timestamp:   md.Get("timestamp"),
		Environment: md.Get("environment"),
		Size:        o.Size,
	}
	info.TotalDocuments, _ = strconv.Atoi(md.Get("totalDocuments"))
	info.TotalAuthUsers, _ = strconv.Atoi(md.Get("totalAuthUsers"))
	if c := md.Get("collections"); c != "" {
		info.Collections = strings.Split(c, ",")
	}
	if info.CompanyID == "" {
		info.CompanyID = path.Base(path.Dir(o.Path))
	}
	return info
}

// latestBackup returns the path of the newest backup of tenantID.
func (e *Engine) latestBackup(ctx context.Context, tenantID string) (string, bool, error) {
	objs, err := e.store.List(ctx, BackupPattern(tenantID), storage.ListOptions{})
	if err != nil {
		return "", false, fmt.Errorf("list backups: %w", err)
	}
	latest := ""
	for _, o := range objs {
		if o.Path > latest {
			latest = o.Path
		}
	}
	return latest, latest != "", nil
}

// loadSnapshot reads a TenantSnapshot artifact.
func (e *Engine) loadSnapshot(ctx context.Context, p string) (*TenantSnapshot, storage.Metadata, error) {
	var snap TenantSnapshot
	md, err := e.store.Load(ctx, p, &snap)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", p, err)
	}
	if snap.CompanyID == "" {
		return nil, nil, fmt.Errorf("read %s: %w", p, errors.New("not a tenant snapshot"))
	}
	return &snap, md, nil
}
