package backup

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/tenantadmin/internal/directory"
	"github.com/dmitrijs2005/tenantadmin/internal/storage"
	"github.com/dmitrijs2005/tenantadmin/internal/tscodec"
	"github.com/juju/collections/set"
)

// DiffCounts are the partition sizes of one collection.
type DiffCounts struct {
	Added     int `json:"added"`
	Modified  int `json:"modified"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

func (c *DiffCounts) add(o DiffCounts) {
	c.Added += o.Added
	c.Modified += o.Modified
	c.Deleted += o.Deleted
	c.Unchanged += o.Unchanged
}

// CollectionDiff partitions one collection between a baseline backup and
// the live snapshot. Modified carries the live version, Deleted the baseline
// version.
type CollectionDiff struct {
	Collection string           `json:"collection"`
	Added      []DocumentRecord `json:"added"`
	Modified   []DocumentRecord `json:"modified"`
	Deleted    []DocumentRecord `json:"deleted"`
	Unchanged  []string         `json:"unchanged"`
	Counts     DiffCounts       `json:"counts"`
}

// HasChanges reports whether anything but unchanged documents was found.
func (d CollectionDiff) HasChanges() bool {
	return d.Counts.Added+d.Counts.Modified+d.Counts.Deleted > 0
}

// DiffSummary aggregates a diff run.
type DiffSummary struct {
	CompanyID          string                `json:"companyId"`
	CompanyName        string                `json:"companyName"`
	IsMaintenance      bool                  `json:"isMaintenance"`
	BaselinePath       string                `json:"baselinePath"`
	BaselineDate       string                `json:"baselineDate"`
	LiveDate           string                `json:"liveDate"`
	GeneratedAt        string                `json:"generatedAt"`
	Collections        map[string]DiffCounts `json:"collections"`
	ChangedCollections []string              `json:"changedCollections"`
	Totals             DiffCounts            `json:"totals"`
}

// DiffOptions tunes Diff.
type DiffOptions struct {
	// AllowWithoutMaintenance diffs a tenant that is not in maintenance
	// mode; the lock state is then only recorded in the summary.
	AllowWithoutMaintenance bool
}

// DiffResult is the outcome of Diff. When Failed is set nothing else is.
type DiffResult struct {
	Failed      Precondition
	Summary     *DiffSummary
	Collections []CollectionDiff
}

// SnapshotOptions tunes Snapshot.
type SnapshotOptions struct {
	// SkipDiff captures without diffing afterwards.
	SkipDiff bool
}

// SnapshotResult is the outcome of Snapshot.
type SnapshotResult struct {
	Failed   Precondition
	Path     string
	Snapshot *TenantSnapshot
	Diff     *DiffResult
}

// Snapshot captures the tenant into the live snapshot path and then diffs it
// against the latest backup. The tenant must be in maintenance mode.
func (e *Engine) Snapshot(ctx context.Context, tenantID string, opts SnapshotOptions) (*SnapshotResult, error) {
	log := e.opLogger("snapshot", tenantID)

	root, err := e.tenantRoot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !inMaintenance(root) {
		log.Warn(ctx, "snapshot refused", "reason", MaintenanceLockRequired)
		return &SnapshotResult{Failed: MaintenanceLockRequired}, nil
	}

	snap, err := e.collect(ctx, log, tenantID)
	if err != nil {
		return nil, err
	}

	res := &SnapshotResult{Path: LiveSnapshotPath(tenantID), Snapshot: snap}
	md := snap.metadata(e.env)
	md["isSnapshot"] = "true"
	if err := e.store.Save(ctx, res.Path, snap, md); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	log.Info(ctx, "live snapshot written", "path", res.Path, "documents", snap.Metadata.TotalDocuments)

	if opts.SkipDiff {
		return res, nil
	}
	res.Diff, err = e.Diff(ctx, tenantID, DiffOptions{})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Diff compares the live snapshot with the latest backup and writes one
// artifact per changed collection plus a summary. The tenant must be in
// maintenance mode unless opts.AllowWithoutMaintenance is set.
func (e *Engine) Diff(ctx context.Context, tenantID string, opts DiffOptions) (*DiffResult, error) {
	log := e.opLogger("diff", tenantID)

	root, err := e.tenantRoot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	maintenance := inMaintenance(root)
	if !maintenance {
		if !opts.AllowWithoutMaintenance {
			log.Warn(ctx, "diff refused", "reason", MaintenanceLockRequired)
			return &DiffResult{Failed: MaintenanceLockRequired}, nil
		}
		log.Warn(ctx, "tenant is not in maintenance mode; restores will be refused")
	}

	livePath := LiveSnapshotPath(tenantID)
	ok, err := e.store.Exists(ctx, livePath)
	if err != nil {
		return nil, fmt.Errorf("check live snapshot: %w", err)
	}
	if !ok {
		return &DiffResult{Failed: NoLiveCapture}, nil
	}

	basePath, ok, err := e.latestBackup(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &DiffResult{Failed: NoBaselineBackup}, nil
	}

	live, _, err := e.loadSnapshot(ctx, livePath)
	if err != nil {
		return nil, err
	}
	base, _, err := e.loadSnapshot(ctx, basePath)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "comparing", "baseline", basePath, "live", livePath)

	diffs := DiffCollections(e.schedule.Names(), base, live)

	summary := &DiffSummary{
		CompanyID:     tenantID,
		CompanyName:   companyName(root.Fields),
		IsMaintenance: maintenance,
		BaselinePath:  basePath,
		BaselineDate:  base.BackupDate,
		LiveDate:      live.BackupDate,
		GeneratedAt:   e.clock.Now().UTC().Format(timestampLayout),
		Collections:   map[string]DiffCounts{},
	}
	changed := set.NewStrings()
	for _, d := range diffs {
		summary.Collections[d.Collection] = d.Counts
		summary.Totals.add(d.Counts)
		if d.HasChanges() {
			summary.ChangedCollections = append(summary.ChangedCollections, d.Collection)
			changed.Add(d.Collection)
		}
	}

	md := storage.Metadata{
		"companyId":   tenantID,
		"companyName": summary.CompanyName,
		"timestamp":   summary.GeneratedAt,
		"environment": e.env,
		"collections": strings.Join(summary.ChangedCollections, ","),
	}
	for _, d := range diffs {
		if !d.HasChanges() {
			continue
		}
		cmd := storage.Metadata{"collection": d.Collection}
		for k, v := range md {
			cmd[k] = v
		}
		cmd["added"] = strconv.Itoa(d.Counts.Added)
		cmd["modified"] = strconv.Itoa(d.Counts.Modified)
		cmd["deleted"] = strconv.Itoa(d.Counts.Deleted)
		if err := e.store.Save(ctx, DiffPath(tenantID, d.Collection), d, cmd); err != nil {
			return nil, fmt.Errorf("write diff %s: %w", d.Collection, err)
		}
		log.Info(ctx, "diff written", "collection", d.Collection,
			"added", d.Counts.Added, "modified", d.Counts.Modified, "deleted", d.Counts.Deleted)
	}
	if err := e.removeStaleDiffs(ctx, tenantID, changed); err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, DiffSummaryPath(tenantID), summary, md); err != nil {
		return nil, fmt.Errorf("write diff summary: %w", err)
	}

	return &DiffResult{Summary: summary, Collections: diffs}, nil
}

// removeStaleDiffs deletes per-collection artifacts of a previous run whose
// collection has no changes now.
func (e *Engine) removeStaleDiffs(ctx context.Context, tenantID string, keep set.Strings) error {
	objs, err := e.store.List(ctx, DiffDir(tenantID)+"/*.json", storage.ListOptions{})
	if err != nil {
		return fmt.Errorf("list diffs: %w", err)
	}
	for _, o := range objs {
		name := path.Base(o.Path)
		if name == summaryFile || keep.Contains(strings.TrimSuffix(name, ".json")) {
			continue
		}
		if err := e.store.Delete(ctx, o.Path); err != nil {
			return fmt.Errorf("remove stale diff: %w", err)
		}
	}
	return nil
}

// DiffCollections partitions every collection present in either snapshot.
// Collections follow order; names not in order come after it, sorted.
//
// A document in both snapshots is modified only when both carry an
// updatedAt timestamp and the live one is strictly later. A missing or
// unparsable timestamp on either side counts as unchanged.
func DiffCollections(order []string, base, live *TenantSnapshot) []CollectionDiff {
	names := set.NewStrings()
	for n := range base.SubCollections {
		names.Add(n)
	}
	for n := range live.SubCollections {
		names.Add(n)
	}

	var ordered []string
	for _, n := range order {
		if names.Contains(n) {
			ordered = append(ordered, n)
			names.Remove(n)
		}
	}
	ordered = append(ordered, names.SortedValues()...)

	out := make([]CollectionDiff, 0, len(ordered))
	for _, n := range ordered {
		out = append(out, diffCollection(n, base.Documents(n), live.Documents(n)))
	}
	return out
}

func diffCollection(name string, base, live []DocumentRecord) CollectionDiff {
	d := CollectionDiff{Collection: name}

	baseByID := make(map[string]DocumentRecord, len(base))
	for _, r := range base {
		baseByID[r.DocID] = r
	}
	liveIDs := set.NewStrings()

	for _, l := range live {
		liveIDs.Add(l.DocID)
		b, ok := baseByID[l.DocID]
		switch {
		case !ok:
			d.Added = append(d.Added, l)
		case newer(l.Data, b.Data):
			d.Modified = append(d.Modified, l)
		default:
			d.Unchanged = append(d.Unchanged, l.DocID)
		}
	}
	for _, b := range base {
		if !liveIDs.Contains(b.DocID) {
			d.Deleted = append(d.Deleted, b)
		}
	}

	sortRecords(d.Added)
	sortRecords(d.Modified)
	sortRecords(d.Deleted)
	sort.Strings(d.Unchanged)

	d.Counts = DiffCounts{
		Added:     len(d.Added),
		Modified:  len(d.Modified),
		Deleted:   len(d.Deleted),
		Unchanged: len(d.Unchanged),
	}
	return d
}

func sortRecords(rs []DocumentRecord) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].DocID < rs[j].DocID })
}

// newer reports whether live's updatedAt is strictly after base's.
func newer(live, base tscodec.Fields) bool {
	lt, ok := modTime(live[directory.FieldUpdatedAt])
	if !ok {
		return false
	}
	bt, ok := modTime(base[directory.FieldUpdatedAt])
	if !ok {
		return false
	}
	return lt.After(bt)
}

func modTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case tscodec.Marker:
		t, err := x.Time()
		return t, err == nil
	case *tscodec.Marker:
		if x == nil {
			return time.Time{}, false
		}
		return modTime(*x)
	case time.Time:
		return x, true
	default:
		return time.Time{}, false
	}
}
