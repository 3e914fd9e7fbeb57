package backup

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/tenantadmin/internal/collections"
	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tempPasswordRe = regexp.MustCompile(`^Temp\d{13}[0-9a-f]{16}!$`)

func TestRestoreFull_RebuildsTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)
	require.NoError(t, f.ids.SetCustomClaims(ctx, "u1", map[string]any{"isSuperUser": true}))

	b, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)

	// drift after the backup
	f.setRoot(t, "acme", map[string]any{"companyName": "Acme Renamed", "extra": true})
	f.setDoc(t, "acme", "Customers", "c2", map[string]any{"name": "Second"})
	f.setDoc(t, "acme", "Sites", "s1", map[string]any{"name": "Site"})
	require.NoError(t, f.dir.Delete(ctx, "Companies/acme/Customers", "c1"))

	res, err := f.engine.RestoreFull(ctx, b.Path, RestoreFullOptions{SkipConfirmation: true})
	require.NoError(t, err)
	assert.False(t, res.Cancelled)
	assert.Empty(t, f.prompter.asked)

	assert.Equal(t, "acme", res.TenantID)
	assert.Equal(t, 3, res.DeletedDocuments)
	assert.Equal(t, 1, res.DeletedUsers)
	assert.Equal(t, 2, res.RestoredDocuments)
	assert.Empty(t, res.SkippedUsers)
	assert.Empty(t, res.Failures)

	root, err := f.dir.Get(ctx, common.TenantsCollection, "acme")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"companyName": "Acme"}, root.Fields)

	customers := f.docs(t, "acme", "Customers")
	require.Len(t, customers, 1)
	assert.Equal(t, "First", customers["c1"]["name"])
	assert.Equal(t, t1, customers["c1"]["updatedAt"])
	assert.Empty(t, f.docs(t, "acme", "Sites"))

	require.Len(t, res.RestoredUsers, 1)
	ru := res.RestoredUsers[0]
	assert.Equal(t, "u1", ru.UID)
	assert.Regexp(t, tempPasswordRe, ru.TempPassword)
	pw, ok := f.ids.Password("u1")
	require.True(t, ok)
	assert.Equal(t, ru.TempPassword, pw)

	u, err := f.ids.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@acme.io", u.Email)
	assert.Equal(t, map[string]any{"isSuperUser": true}, u.CustomClaims)
}

func TestRestoreFull_Confirmation(t *testing.T) {
	tests := []struct {
		name          string
		backupEnv     string
		targetEnv     string
		answers       []bool
		opts          RestoreFullOptions
		wantPrompts   int
		wantCancelled bool
	}{
		{"dev single yes", common.EnvDev, common.EnvDev, []bool{true}, RestoreFullOptions{}, 1, false},
		{"dev declined", common.EnvDev, common.EnvDev, []bool{false}, RestoreFullOptions{}, 1, true},
		{"prod double yes", common.EnvProd, common.EnvProd, []bool{true, true}, RestoreFullOptions{}, 2, false},
		{"prod second declined", common.EnvProd, common.EnvProd, []bool{true, false}, RestoreFullOptions{}, 2, true},
		{"mismatch declined", common.EnvDev, common.EnvProd, []bool{false}, RestoreFullOptions{}, 1, true},
		{"mismatch accepted then prod", common.EnvDev, common.EnvProd, []bool{true, true, true}, RestoreFullOptions{}, 3, false},
		{"mismatch allowed", common.EnvDev, common.EnvEmulator, []bool{true}, RestoreFullOptions{AllowEnvironmentMismatch: true}, 1, false},
		{"skip confirmation", common.EnvDev, common.EnvProd, nil, RestoreFullOptions{SkipConfirmation: true}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			src := newFixture(t, tt.backupEnv)
			src.seedAcme(t)
			b, err := src.engine.Backup(ctx, "acme", BackupOptions{})
			require.NoError(t, err)

			dst := newFixture(t, tt.targetEnv)
			dst.engine.store = src.store
			dst.setRoot(t, "acme", map[string]any{"companyName": "Live"})
			dst.setDoc(t, "acme", "Customers", "live", map[string]any{})
			dst.prompter.answers = tt.answers

			res, err := dst.engine.RestoreFull(ctx, b.Path, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCancelled, res.Cancelled)
			assert.Len(t, dst.prompter.asked, tt.wantPrompts)

			_, stillLive := dst.docs(t, "acme", "Customers")["live"]
			assert.Equal(t, tt.wantCancelled, stillLive, "a cancelled restore must not touch data")
			if tt.wantCancelled {
				assert.Zero(t, dst.ev.count("commit"))
			}
		})
	}
}

func TestRestoreFull_OrderAndSettle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.engine.schedule = collections.Schedule{
		{Name: "X", SettleAfterClear: 3 * time.Second, SettleAfterRestore: 3 * time.Second},
		{Name: "Y"},
	}
	f.setRoot(t, "t", map[string]any{"companyName": "T"})
	for i := 0; i < 600; i++ {
		f.setDoc(t, "t", "X", fmt.Sprintf("x%03d", i), map[string]any{"i": i})
	}
	f.setDoc(t, "t", "Y", "y1", map[string]any{})
	f.setDoc(t, "t", "Y", "y2", map[string]any{})

	b, err := f.engine.Backup(ctx, "t", BackupOptions{})
	require.NoError(t, err)

	_, err = f.engine.RestoreFull(ctx, b.Path, RestoreFullOptions{SkipConfirmation: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"commit Companies/t/X 500",
		"commit Companies/t/X 100",
		"wait 3s",
		"commit Companies/t/Y 2",
		"commit Companies/t/X 500",
		"commit Companies/t/X 100",
		"wait 3s",
		"commit Companies/t/Y 2",
	}, f.ev.list())
}

func TestRestoreFull_PerItemFailuresDoNotAbort(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)
	f.setDoc(t, "acme", "Users", "u2", map[string]any{"email": "b@acme.io"})
	f.setDoc(t, "acme", "Users", "u3", map[string]any{"email": "c@acme.io"})
	for _, u := range []identity.CreateParams{{UID: "u2", Email: "b@acme.io"}, {UID: "u3", Email: "c@acme.io"}} {
		_, err := f.ids.CreateUser(ctx, u)
		require.NoError(t, err)
	}

	b, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)
	require.Len(t, b.Snapshot.AuthUsers, 3)

	// u3 vanished since the backup; u2 cannot be deleted and then not recreated
	require.NoError(t, f.ids.MemoryStore.DeleteUser(ctx, "u3"))
	f.ids.failDelete["u2"] = true
	f.ids.failCreate["u2"] = true

	res, err := f.engine.RestoreFull(ctx, b.Path, RestoreFullOptions{SkipConfirmation: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.DeletedUsers)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "u2", res.Failures[0].ID)
	require.Len(t, res.SkippedUsers, 1)
	assert.Equal(t, "u2", res.SkippedUsers[0].ID)
	assert.Equal(t, "b@acme.io", res.SkippedUsers[0].Email)

	var restored []string
	for _, u := range res.RestoredUsers {
		restored = append(restored, u.UID)
	}
	assert.ElementsMatch(t, []string{"u1", "u3"}, restored)
	assert.Equal(t, 4, res.RestoredDocuments)
}

func TestRestoreFull_ClearFailureAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)
	b, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)

	f.rec.failCommit = func(path string) error {
		if strings.HasSuffix(path, "/Customers") {
			return errors.New("quota exceeded")
		}
		return nil
	}

	_, err = f.engine.RestoreFull(ctx, b.Path, RestoreFullOptions{SkipConfirmation: true})
	require.ErrorContains(t, err, "quota exceeded")

	_, err = f.ids.GetUser(ctx, "u1")
	require.NoError(t, err, "identity records must be untouched when clearing fails")
}

type failingSet struct {
	*recordingStore
}

func (s failingSet) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	return errors.New("root write denied")
}

func TestRestoreFull_RootWriteFailureAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)
	b, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)

	f.engine.dir = failingSet{f.rec}
	_, err = f.engine.RestoreFull(ctx, b.Path, RestoreFullOptions{SkipConfirmation: true})
	require.ErrorContains(t, err, "root write denied")

	assert.Empty(t, f.docs(t, "acme", "Customers"), "restore phase must not run")
	_, err = f.ids.GetUser(ctx, "u1")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRestoreFull_MissingSource(t *testing.T) {
	f := newFixture(t, common.EnvDev)
	_, err := f.engine.RestoreFull(context.Background(), "companies/acme/backup_none.json", RestoreFullOptions{SkipConfirmation: true})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRestoreFull_TargetTenantOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)
	b, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)

	res, err := f.engine.RestoreFull(ctx, b.Path, RestoreFullOptions{
		SkipConfirmation: true,
		TargetTenantID:   "acme-copy",
		AllowCrossTenant: true,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.Equal(t, "acme-copy", res.TenantID)
	assert.Len(t, f.docs(t, "acme-copy", "Customers"), 1)
}

func TestRestoreFull_OtherTenantRefusedWithoutOptIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)
	f.setRoot(t, "beta", map[string]any{"companyName": "Beta"})
	f.setDoc(t, "beta", "Customers", "b1", map[string]any{"name": "Beta customer"})
	b, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)
	before, err := f.ids.GetUser(ctx, "u1")
	require.NoError(t, err)

	res, err := f.engine.RestoreFull(ctx, b.Path, RestoreFullOptions{SkipConfirmation: true, TargetTenantID: "beta"})
	require.NoError(t, err)
	assert.Equal(t, TenantMismatch, res.Failed)
	assert.Empty(t, f.prompter.asked)

	// neither tenant nor identity was touched
	assert.Contains(t, f.docs(t, "beta", "Customers"), "b1")
	assert.Empty(t, f.docs(t, "beta", "Users"))
	after, err := f.ids.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Zero(t, f.ev.count("commit"))
}

func TestRestoreFull_OtherTenantAsksAboutIdentities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)
	b, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)
	f.prompter.answers = []bool{false}

	res, err := f.engine.RestoreFull(ctx, b.Path, RestoreFullOptions{TargetTenantID: "beta", AllowCrossTenant: true})
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	require.Len(t, f.prompter.asked, 1)
	assert.Contains(t, f.prompter.asked[0], `Backup belongs to tenant "acme" but the target is "beta"`)
	assert.Empty(t, f.docs(t, "beta", "Customers"))
}
