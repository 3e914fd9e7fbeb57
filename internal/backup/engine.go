// Package backup captures, diffs and restores whole tenants.
//
// A tenant is captured into a TenantSnapshot (root document, every scheduled
// subcollection and the identity records behind its Users), persisted through
// a storage.Adapter. Full backups are never overwritten; the live snapshot
// and the diff artifacts live under temporary/ and are replaced on each run.
//
// Restore-class operations are gated: full restore asks the operator through
// a confirm.Prompter, snapshot/diff/selective restores require the tenant's
// maintenance lock. Gate failures are reported in the result's Failed field,
// not as errors.
package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tenantadmin/internal/collections"
	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/confirm"
	"github.com/dmitrijs2005/tenantadmin/internal/directory"
	"github.com/dmitrijs2005/tenantadmin/internal/identity"
	"github.com/dmitrijs2005/tenantadmin/internal/logging"
	"github.com/dmitrijs2005/tenantadmin/internal/storage"
	"github.com/google/uuid"
	"github.com/juju/clock"
)

// newRunID is a seam for deterministic run ids in tests.
var newRunID = uuid.NewString

// Deps are the collaborators of an Engine.
type Deps struct {
	Directory directory.Store
	Identity  identity.Store
	Storage   storage.Adapter
	// Schedule defaults to collections.Default.
	Schedule collections.Schedule
	// Clock defaults to the wall clock; settle waits go through Clock.After.
	Clock    clock.Clock
	Logger   logging.Logger
	Prompter confirm.Prompter
	// Environment is the tag of the environment the engine runs against.
	Environment string
}

// Engine runs backup, snapshot, diff and restore operations.
type Engine struct {
	dir      directory.Store
	ids      identity.Store
	store    storage.Adapter
	schedule collections.Schedule
	clock    clock.Clock
	log      logging.Logger
	prompter confirm.Prompter
	env      string
}

func New(d Deps) *Engine {
	e := &Engine{
		dir:      d.Directory,
		ids:      d.Identity,
		store:    d.Storage,
		schedule: d.Schedule,
		clock:    d.Clock,
		log:      d.Logger,
		prompter: d.Prompter,
		env:      d.Environment,
	}
	if e.schedule == nil {
		e.schedule = collections.Default
	}
	if e.clock == nil {
		e.clock = clock.WallClock
	}
	if e.log == nil {
		e.log = logging.Discard()
	}
	if e.prompter == nil {
		e.prompter = confirm.NewTerminal()
	}
	if e.env == "" {
		e.env = common.EnvUnknown
	}
	return e
}

// Environment returns the tag recorded in artifacts written by e.
func (e *Engine) Environment() string { return e.env }

func (e *Engine) opLogger(op, tenantID string) logging.Logger {
	return e.log.With("op", op, "tenant", tenantID, "run_id", newRunID())
}

// Precondition names a gate that stopped an operation before it changed anything.
type Precondition string

const (
	MaintenanceLockRequired Precondition = "maintenance-lock-required"
	NoLiveCapture           Precondition = "no-live-capture"
	NoBaselineBackup        Precondition = "no-baseline-backup"
	NoDiffFound             Precondition = "no-diff-found"
	NoCollectionsSpecified  Precondition = "no-collections-specified"
	NoValidCollections      Precondition = "no-valid-collections"
	TenantMismatch          Precondition = "tenant-mismatch"
)

// Message is the operator-facing explanation of p.
func (p Precondition) Message() string {
	switch p {
	case MaintenanceLockRequired:
		return "tenant is not in maintenance mode; enable it first"
	case NoLiveCapture:
		return "no live snapshot found; run snapshot first"
	case NoBaselineBackup:
		return "no backup found for tenant; run backup first"
	case NoDiffFound:
		return "no diff found; run snapshot or diff first"
	case NoCollectionsSpecified:
		return "no target collections specified"
	case NoValidCollections:
		return "none of the specified collections can be restored"
	case TenantMismatch:
		return "backup belongs to another tenant; pass -allow-cross-tenant to restore it here"
	default:
		return string(p)
	}
}

// ItemFailure is a per-item problem inside a bulk step. It never aborts the
// operation it belongs to.
type ItemFailure struct {
	Collection string
	ID         string
	Email      string
	Err        error
}

func (f ItemFailure) Error() string {
	target := f.ID
	if f.Collection != "" {
		target = f.Collection + "/" + f.ID
	}
	if f.Email != "" {
		target += " <" + f.Email + ">"
	}
	return fmt.Sprintf("%s: %v", target, f.Err)
}

// Artifact paths, relative to the storage backend.

func BackupPath(tenantID string, at time.Time) string {
	return fmt.Sprintf("companies/%s/backup_%s.json", tenantID, at.UTC().Format(backupStampLayout))
}

func BackupPattern(tenantID string) string {
	if tenantID == "" {
		tenantID = "*"
	}
	return "companies/" + tenantID + "/backup_*.json"
}

func LiveSnapshotPath(tenantID string) string {
	return "temporary/companies/" + tenantID + "/snapshot.json"
}

func DiffDir(tenantID string) string {
	return "temporary/companies/" + tenantID + "/diff"
}

func DiffPath(tenantID, collection string) string {
	return DiffDir(tenantID) + "/" + collection + ".json"
}

func DiffSummaryPath(tenantID string) string {
	return DiffDir(tenantID) + "/" + summaryFile
}

const (
	summaryFile = "summary.json"

	// zero-padded so lexicographic order of file names is chronological
	backupStampLayout = "2006-01-02_15-04-05.000"

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// tenantRoot reads the root document, mapping absence to ErrTenantNotFound.
func (e *Engine) tenantRoot(ctx context.Context, tenantID string) (directory.Document, error) {
	doc, err := e.dir.Get(ctx, common.TenantsCollection, tenantID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return directory.Document{}, fmt.Errorf("%s: %w", tenantID, common.ErrTenantNotFound)
		}
		return directory.Document{}, fmt.Errorf("read tenant %s: %w", tenantID, err)
	}
	return doc, nil
}

func inMaintenance(root directory.Document) bool {
	on, _ := root.Fields[directory.FieldIsMaintenance].(bool)
	return on
}

func companyName(fields map[string]any) string {
	name, _ := fields[directory.FieldCompanyName].(string)
	return name
}

// settle blocks for d on the engine clock.
func (e *Engine) settle(ctx context.Context, log logging.Logger, collection string, d time.Duration) {
	if d <= 0 {
		return
	}
	log.Info(ctx, "waiting for triggers to settle", "collection", collection, "delay", d)
	<-e.clock.After(d)
}
