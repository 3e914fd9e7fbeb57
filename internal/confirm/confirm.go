// Package confirm separates the decision of whether an operator must confirm
// a destructive operation from the I/O that asks them.
//
// Questions is pure and decides which prompts a restore needs; Ask walks
// them through a Prompter and stops at the first "no".
package confirm

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tenantadmin/internal/common"
)

// Prompter obtains a yes/no answer from the operator.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Restore describes a restore about to run.
type Restore struct {
	TenantID string
	// SourceTenantID is the tenant the backup was taken from.
	SourceTenantID string
	SourcePath     string
	StoredEnv      string
	CurrentEnv     string
	SkipConfirm    bool
	// AllowEnvMismatch accepts a backup taken in another environment
	// without asking.
	AllowEnvMismatch bool
}

// EnvMismatch reports whether both tags are known and differ.
func EnvMismatch(stored, current string) bool {
	if !known(stored) || !known(current) {
		return false
	}
	return stored != current
}

func known(env string) bool {
	return env != "" && env != common.EnvUnknown
}

// Questions returns the prompts r needs, in the order they must be asked.
// SkipConfirm suppresses all of them.
func Questions(r Restore) []string {
	if r.SkipConfirm {
		return nil
	}

	var qs []string
	if EnvMismatch(r.StoredEnv, r.CurrentEnv) && !r.AllowEnvMismatch {
		qs = append(qs, fmt.Sprintf(
			"Backup was taken in %q but the target environment is %q. Restore anyway?",
			r.StoredEnv, r.CurrentEnv))
	}

	if r.SourceTenantID != "" && r.SourceTenantID != r.TenantID {
		qs = append(qs, fmt.Sprintf(
			"Backup belongs to tenant %q but the target is %q. The identity records of %q's users will be recreated with new temporary passwords. Restore anyway?",
			r.SourceTenantID, r.TenantID, r.SourceTenantID))
	}

	qs = append(qs, fmt.Sprintf(
		"All data of tenant %q will be deleted and replaced from %s. Continue?",
		r.TenantID, r.SourcePath))

	if r.CurrentEnv == common.EnvProd {
		qs = append(qs, fmt.Sprintf(
			"This is the PRODUCTION environment. Confirm again to restore tenant %q.",
			r.TenantID))
	}
	return qs
}

// Ask asks every question in order and reports whether all were accepted.
func Ask(ctx context.Context, p Prompter, questions []string) (bool, error) {
	for _, q := range questions {
		ok, err := p.Confirm(ctx, q)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// AutoApprove answers yes to everything; used with -y.
type AutoApprove struct{}

func (AutoApprove) Confirm(context.Context, string) (bool, error) { return true, nil }
