package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tenantadmin/internal/collections"
	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/confirm"
	"github.com/dmitrijs2005/tenantadmin/internal/identity"
	"github.com/dmitrijs2005/tenantadmin/internal/tscodec"
)

// RestoreFullOptions tunes RestoreFull.
type RestoreFullOptions struct {
	// SkipConfirmation answers every prompt with yes.
	SkipConfirmation bool
	// AllowEnvironmentMismatch restores a backup taken in another
	// environment without asking about it.
	AllowEnvironmentMismatch bool
	// TargetTenantID overrides the tenant id stored in the backup.
	TargetTenantID string
	// AllowCrossTenant permits a TargetTenantID that differs from the
	// backup's tenant. The backup's identity records are still the ones
	// deleted and recreated.
	AllowCrossTenant bool
}

// RestoredUser is a recreated identity record and the temporary password the
// operator must hand over for a mandatory reset.
type RestoredUser struct {
	UID          string
	Email        string
	TempPassword string
}

// RestoreFullResult reports a full restore.
type RestoreFullResult struct {
	// Failed names the gate that refused the restore; nothing was changed.
	Failed Precondition
	// Cancelled is set when the operator declined a confirmation; nothing was changed.
	Cancelled         bool
	TenantID          string
	SourcePath        string
	DeletedDocuments  int
	DeletedUsers      int
	RestoredDocuments int
	RestoredUsers     []RestoredUser
	SkippedUsers      []ItemFailure
	Failures          []ItemFailure
}

// RestoreFull replaces the tenant's data with the backup at sourcePath.
//
// The run is strictly ordered: clear every scheduled subcollection, delete
// the referenced identity records, overwrite the root document, restore the
// subcollections, recreate identities with temporary passwords. Errors up to
// and including the root document write abort the restore; later per-item
// failures are collected in the result.
func (e *Engine) RestoreFull(ctx context.Context, sourcePath string, opts RestoreFullOptions) (*RestoreFullResult, error) {
	snap, md, err := e.loadSnapshot(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	tenantID := snap.CompanyID
	if opts.TargetTenantID != "" {
		tenantID = opts.TargetTenantID
	}
	log := e.opLogger("restore-full", tenantID)
	res := &RestoreFullResult{TenantID: tenantID, SourcePath: sourcePath}

	if tenantID != snap.CompanyID && !opts.AllowCrossTenant {
		log.Warn(ctx, "restore refused", "reason", TenantMismatch, "backup_tenant", snap.CompanyID)
		res.Failed = TenantMismatch
		return res, nil
	}

	storedEnv := md.Get("environment")
	if confirm.EnvMismatch(storedEnv, e.env) {
		log.Warn(ctx, "backup environment differs from target", "backup_env", storedEnv, "target_env", e.env)
	}
	ok, err := confirm.Ask(ctx, e.prompter, confirm.Questions(confirm.Restore{
		TenantID:         tenantID,
		SourceTenantID:   snap.CompanyID,
		SourcePath:       sourcePath,
		StoredEnv:        storedEnv,
		CurrentEnv:       e.env,
		SkipConfirm:      opts.SkipConfirmation,
		AllowEnvMismatch: opts.AllowEnvironmentMismatch,
	}))
	if err != nil {
		return nil, fmt.Errorf("confirmation: %w", err)
	}
	if !ok {
		log.Info(ctx, "restore cancelled by operator")
		res.Cancelled = true
		return res, nil
	}

	log.Info(ctx, "clearing subcollections")
	for _, c := range e.schedule {
		n, err := e.clearCollection(ctx, tenantID, c.Name)
		res.DeletedDocuments += n
		if err != nil {
			return res, err
		}
		if n > 0 {
			log.Info(ctx, "cleared", "collection", c.Name, "documents", n)
			e.settle(ctx, log, c.Name, c.SettleAfterClear)
		}
	}

	log.Info(ctx, "deleting identity records")
	for _, rec := range snap.Documents(collections.Users) {
		if isTemporary(rec.Data) {
			continue
		}
		err := e.ids.DeleteUser(ctx, rec.DocID)
		switch {
		case err == nil:
			res.DeletedUsers++
		case errors.Is(err, common.ErrorNotFound):
			log.Info(ctx, "identity record already absent", "uid", rec.DocID)
		default:
			log.Warn(ctx, "identity record not deleted", "uid", rec.DocID, "err", err)
			res.Failures = append(res.Failures, ItemFailure{Collection: collections.Users, ID: rec.DocID, Err: err})
		}
	}

	log.Info(ctx, "writing root document")
	if err := e.dir.Set(ctx, common.TenantsCollection, tenantID, tscodec.DecodeFields(snap.Company)); err != nil {
		return res, fmt.Errorf("write root document: %w", err)
	}

	for _, c := range e.schedule {
		records := snap.Documents(c.Name)
		if len(records) == 0 {
			continue
		}
		n, failures := e.writeDocuments(ctx, log, tenantID, c.Name, setWrites(records, false))
		res.RestoredDocuments += n
		res.Failures = append(res.Failures, failures...)
		log.Info(ctx, "restored", "collection", c.Name, "documents", n)
		e.settle(ctx, log, c.Name, c.SettleAfterRestore)
	}

	log.Info(ctx, "recreating identity records", "users", len(snap.AuthUsers))
	for _, u := range snap.AuthUsers {
		ru, err := e.recreateUser(ctx, u)
		if err != nil {
			log.Warn(ctx, "identity record skipped", "uid", u.UID, "email", u.Email, "err", err)
			res.SkippedUsers = append(res.SkippedUsers, ItemFailure{ID: u.UID, Email: u.Email, Err: err})
			continue
		}
		res.RestoredUsers = append(res.RestoredUsers, ru)

		if len(u.CustomClaims) > 0 {
			if err := e.ids.SetCustomClaims(ctx, u.UID, u.CustomClaims); err != nil {
				log.Warn(ctx, "custom claims not restored", "uid", u.UID, "err", err)
				res.Failures = append(res.Failures, ItemFailure{ID: u.UID, Email: u.Email, Err: fmt.Errorf("claims: %w", err)})
			}
		}
	}

	log.Info(ctx, "restore finished",
		"documents", res.RestoredDocuments, "users", len(res.RestoredUsers), "skipped", len(res.SkippedUsers))
	return res, nil
}

func (e *Engine) recreateUser(ctx context.Context, u identity.User) (RestoredUser, error) {
	pw, err := e.tempPassword()
	if err != nil {
		return RestoredUser{}, err
	}
	_, err = e.ids.CreateUser(ctx, identity.CreateParams{
		UID:           u.UID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Password:      pw,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		Disabled:      u.Disabled,
	})
	if err != nil {
		return RestoredUser{}, err
	}
	return RestoredUser{UID: u.UID, Email: u.Email, TempPassword: pw}, nil
}

// tempPassword is "Temp" + unix millis + 16 random hex characters + "!".
func (e *Engine) tempPassword() (string, error) {
	suffix, err := common.MakeRandHexString(8)
	if err != nil {
		return "", fmt.Errorf("temp password: %w", err)
	}
	return fmt.Sprintf("Temp%d%s!", e.clock.Now().UnixMilli(), suffix), nil
}
