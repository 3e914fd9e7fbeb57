package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/storage"
	"github.com/dmitrijs2005/tenantadmin/internal/tscodec"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_Acme(t *testing.T) {
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)
	f.setDoc(t, "acme", "Users", "tmp", map[string]any{"isTemporary": true})

	snap, err := f.engine.Collect(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, "acme", snap.CompanyID)
	assert.Equal(t, "Acme", snap.CompanyName())
	assert.Equal(t, 3, snap.Metadata.TotalDocuments)
	assert.Equal(t, 1, snap.Metadata.TotalAuthUsers)
	assert.Equal(t, []string{"Customers", "Users"}, snap.Metadata.Collections)
	require.Len(t, snap.AuthUsers, 1)
	assert.Equal(t, "u1", snap.AuthUsers[0].UID)

	c1 := snap.Documents("Customers")[0]
	assert.Equal(t, tscodec.NewMarker(t1), c1.Data["updatedAt"])
	assert.NotContains(t, snap.SubCollections, "Sites")
}

func TestCollect_TenantNotFound(t *testing.T) {
	f := newFixture(t, common.EnvDev)
	_, err := f.engine.Collect(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrTenantNotFound)
}

func TestCollect_IdentityFailureIsPartial(t *testing.T) {
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)
	f.setDoc(t, "acme", "Users", "u2", map[string]any{"email": "b@acme.io"})
	f.ids.failGet["u2"] = true

	snap, err := f.engine.Collect(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Metadata.TotalAuthUsers)
	assert.Equal(t, 3, snap.Metadata.TotalDocuments)
}

func TestBackup_AcmeArtifact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvProd)
	f.seedAcme(t)

	res, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Path, "companies/acme/backup_2024-06-01_12-00-00."), res.Path)

	raw, err := os.ReadFile(filepath.Join(f.store.BasePath(), filepath.FromSlash(res.Path)))
	require.NoError(t, err)

	var artifact struct {
		Metadata map[string]string `json:"metadata"`
		Data     struct {
			CompanyID string `json:"companyId"`
			AuthUsers []struct {
				UID string `json:"uid"`
			} `json:"authUsers"`
			Metadata struct {
				TotalDocuments int `json:"totalDocuments"`
			} `json:"metadata"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &artifact))

	assert.Equal(t, 2, artifact.Data.Metadata.TotalDocuments)
	require.Len(t, artifact.Data.AuthUsers, 1)
	assert.Equal(t, "u1", artifact.Data.AuthUsers[0].UID)

	md := artifact.Metadata
	assert.Equal(t, "acme", md["companyId"])
	assert.Equal(t, "Acme", md["companyName"])
	assert.Equal(t, "2", md["totalDocuments"])
	assert.Equal(t, "1", md["totalAuthUsers"])
	assert.Equal(t, "Customers,Users", md["collections"])
	assert.Equal(t, "prod", md["environment"])
	assert.NotEmpty(t, md["timestamp"])
}

func TestBackup_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)

	first, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)
	second, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.Less(t, first.Path, second.Path)

	var a, b TenantSnapshot
	_, err = f.store.Load(ctx, first.Path, &a)
	require.NoError(t, err)
	_, err = f.store.Load(ctx, second.Path, &b)
	require.NoError(t, err)

	assert.NotEqual(t, a.BackupDate, b.BackupDate)
	assert.Empty(t, cmp.Diff(a, b, cmpopts.IgnoreFields(TenantSnapshot{}, "BackupDate")))
}

func TestBackup_SameInstantKeepsBothArtifacts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)
	f.clock.frozen = true

	first, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)
	second, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)
	third, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)

	assert.Less(t, first.Path, second.Path)
	assert.Less(t, second.Path, third.Path)

	list, err := f.engine.ListBackups(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.Path, list[0].Path)

	for _, res := range []*BackupResult{first, second, third} {
		var snap TenantSnapshot
		md, err := f.store.Load(ctx, res.Path, &snap)
		require.NoError(t, err)
		assert.Equal(t, res.Snapshot.BackupDate, snap.BackupDate)
		assert.Equal(t, snap.BackupDate, md["timestamp"])
	}
	assert.NotEqual(t, first.Snapshot.BackupDate, second.Snapshot.BackupDate)
}

func TestBackup_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)

	res, err := f.engine.Backup(ctx, "acme", BackupOptions{DryRun: true})
	require.NoError(t, err)
	ok, err := f.store.Exists(ctx, res.Path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListBackups_NewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)
	f.setRoot(t, "globex", map[string]any{"companyName": "Globex"})

	a1, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)
	g1, err := f.engine.Backup(ctx, "globex", BackupOptions{})
	require.NoError(t, err)
	a2, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)

	all, err := f.engine.ListBackups(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{a2.Path, g1.Path, a1.Path}, []string{all[0].Path, all[1].Path, all[2].Path})
	assert.Equal(t, "Globex", all[1].CompanyName)

	acme, err := f.engine.ListBackups(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, acme, 2)
	assert.Equal(t, 2, acme[0].TotalDocuments)
	assert.Equal(t, []string{"Customers", "Users"}, acme[0].Collections)
}

// metadataless hides list metadata the way an object store without
// user-metadata would.
type metadataless struct{ storage.Adapter }

func (m metadataless) List(ctx context.Context, pattern string, _ storage.ListOptions) ([]storage.Object, error) {
	return m.Adapter.List(ctx, pattern, storage.ListOptions{})
}

func TestListBackups_FallsBackToLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, common.EnvDev)
	f.seedAcme(t)
	_, err := f.engine.Backup(ctx, "acme", BackupOptions{})
	require.NoError(t, err)

	e := New(Deps{Directory: f.dir, Identity: f.ids, Storage: metadataless{f.store}, Clock: f.clock, Prompter: f.prompter})
	list, err := e.ListBackups(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Acme", list[0].CompanyName)
	assert.Equal(t, 1, list[0].TotalAuthUsers)
}
