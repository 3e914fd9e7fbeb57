package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/confirm"
	"github.com/dmitrijs2005/tenantadmin/internal/directory"
	"github.com/dmitrijs2005/tenantadmin/internal/identity"
	"github.com/dmitrijs2005/tenantadmin/internal/storage"
	"github.com/juju/clock"
	"github.com/stretchr/testify/require"
)

var (
	t1 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	t3 = time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
)

// events is an ordered log shared by the recording clock and store.
type events struct {
	mu    sync.Mutex
	items []string
}

func (e *events) add(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append(e.items, fmt.Sprintf(format, args...))
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.items...)
}

func (e *events) count(prefix string) int {
	n := 0
	for _, it := range e.list() {
		if strings.HasPrefix(it, prefix) {
			n++
		}
	}
	return n
}

// recordingClock advances one millisecond per Now call, unless frozen, and
// never sleeps.
type recordingClock struct {
	clock.Clock
	mu     sync.Mutex
	now    time.Time
	frozen bool
	ev     *events
}

func (c *recordingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.frozen {
		c.now = c.now.Add(time.Millisecond)
	}
	return c.now
}

func (c *recordingClock) After(d time.Duration) <-chan time.Time {
	c.ev.add("wait %s", d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

// recordingStore logs every batch commit and can fail chosen commits.
type recordingStore struct {
	directory.Store
	ev         *events
	failCommit func(path string) error
}

func (s *recordingStore) NewBatch() directory.Batch {
	return &recordingBatch{Batch: s.Store.NewBatch(), store: s}
}

type recordingBatch struct {
	directory.Batch
	store *recordingStore
	path  string
}

func (b *recordingBatch) Set(collection, id string, fields map[string]any) {
	b.path = collection
	b.Batch.Set(collection, id, fields)
}

func (b *recordingBatch) Merge(collection, id string, fields map[string]any) {
	b.path = collection
	b.Batch.Merge(collection, id, fields)
}

func (b *recordingBatch) Delete(collection, id string) {
	b.path = collection
	b.Batch.Delete(collection, id)
}

func (b *recordingBatch) Commit(ctx context.Context) error {
	n := b.Batch.Len()
	if b.store.failCommit != nil {
		if err := b.store.failCommit(b.path); err != nil {
			b.store.ev.add("commit-failed %s %d", b.path, n)
			return err
		}
	}
	b.store.ev.add("commit %s %d", b.path, n)
	return b.Batch.Commit(ctx)
}

// flakyIdentity fails chosen calls of an in-memory identity store.
type flakyIdentity struct {
	*identity.MemoryStore
	failGet    map[string]bool
	failCreate map[string]bool
	failDelete map[string]bool
}

func (f *flakyIdentity) GetUser(ctx context.Context, uid string) (identity.User, error) {
	if f.failGet[uid] {
		return identity.User{}, errors.New("identity service unavailable")
	}
	return f.MemoryStore.GetUser(ctx, uid)
}

func (f *flakyIdentity) CreateUser(ctx context.Context, p identity.CreateParams) (identity.User, error) {
	if f.failCreate[p.UID] {
		return identity.User{}, errors.New("email already in use")
	}
	return f.MemoryStore.CreateUser(ctx, p)
}

func (f *flakyIdentity) DeleteUser(ctx context.Context, uid string) error {
	if f.failDelete[uid] {
		return errors.New("permission denied")
	}
	return f.MemoryStore.DeleteUser(ctx, uid)
}

type fixture struct {
	dir      *directory.MemoryStore
	rec      *recordingStore
	ids      *flakyIdentity
	store    *storage.LocalAdapter
	clock    *recordingClock
	ev       *events
	prompter *scriptedPrompter
	engine   *Engine
}

type scriptedPrompter struct {
	answers []bool
	asked   []string
}

func (p *scriptedPrompter) Confirm(_ context.Context, q string) (bool, error) {
	p.asked = append(p.asked, q)
	if len(p.answers) == 0 {
		return false, errors.New("unexpected prompt: " + q)
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

var _ confirm.Prompter = (*scriptedPrompter)(nil)

func newFixture(t *testing.T, env string) *fixture {
	t.Helper()
	ev := &events{}
	f := &fixture{
		dir:      directory.NewMemoryStore(),
		ids:      &flakyIdentity{MemoryStore: identity.NewMemoryStore(), failGet: map[string]bool{}, failCreate: map[string]bool{}, failDelete: map[string]bool{}},
		store:    storage.NewLocalAdapter(t.TempDir()),
		clock:    &recordingClock{Clock: clock.WallClock, now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), ev: ev},
		ev:       ev,
		prompter: &scriptedPrompter{},
	}
	f.rec = &recordingStore{Store: f.dir, ev: ev}
	f.engine = New(Deps{
		Directory:   f.rec,
		Identity:    f.ids,
		Storage:     f.store,
		Clock:       f.clock,
		Prompter:    f.prompter,
		Environment: env,
	})
	return f
}

func (f *fixture) setRoot(t *testing.T, id string, fields map[string]any) {
	t.Helper()
	require.NoError(t, f.dir.Set(context.Background(), common.TenantsCollection, id, fields))
}

func (f *fixture) setDoc(t *testing.T, tenant, coll, id string, fields map[string]any) {
	t.Helper()
	require.NoError(t, f.dir.Set(context.Background(), directory.SubcollectionPath(tenant, coll), id, fields))
}

func (f *fixture) docs(t *testing.T, tenant, coll string) map[string]map[string]any {
	t.Helper()
	all, err := f.dir.GetAll(context.Background(), directory.SubcollectionPath(tenant, coll))
	require.NoError(t, err)
	out := map[string]map[string]any{}
	for _, d := range all {
		out[d.ID] = d.Fields
	}
	return out
}

func (f *fixture) setMaintenance(t *testing.T, id string, on bool) {
	t.Helper()
	require.NoError(t, f.dir.Update(context.Background(), common.TenantsCollection, id,
		map[string]any{directory.FieldIsMaintenance: on}))
}

// seedAcme builds the acme tenant: one customer and one real user.
func (f *fixture) seedAcme(t *testing.T) {
	t.Helper()
	f.setRoot(t, "acme", map[string]any{"companyName": "Acme"})
	f.setDoc(t, "acme", "Customers", "c1", map[string]any{"name": "First", "updatedAt": t1})
	f.setDoc(t, "acme", "Users", "u1", map[string]any{"isTemporary": false, "email": "a@acme.io"})
	_, err := f.ids.CreateUser(context.Background(), identity.CreateParams{UID: "u1", Email: "a@acme.io", Password: "orig"})
	require.NoError(t, err)
}
