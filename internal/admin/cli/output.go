package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/tenantadmin/internal/backup"
	"github.com/dmitrijs2005/tenantadmin/internal/identity"
	"github.com/dmitrijs2005/tenantadmin/internal/tenants"
	"github.com/dustin/go-humanize"
)

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func comma(n int) string {
	return humanize.Comma(int64(n))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ago renders an RFC 3339 timestamp relative to now; unparsable input is
// returned as is.
func (a *App) ago(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return humanize.RelTime(t, a.now(), "ago", "from now")
}

func (a *App) when(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339) + " (" + humanize.RelTime(t, a.now(), "ago", "from now") + ")"
}

func (a *App) printFailures(fs []backup.ItemFailure) {
	if len(fs) == 0 {
		return
	}
	a.printf("Failures: %d\n", len(fs))
	for _, f := range fs {
		a.printf("  - %s\n", f.Error())
	}
}

func (a *App) printBackup(res *backup.BackupResult, dryRun bool) {
	s := res.Snapshot
	if dryRun {
		a.printf("Dry run: backup would be written to %s\n", res.Path)
	} else {
		a.printf("Backup written: %s\n", res.Path)
	}
	a.printf("Tenant:      %s (%s)\n", s.CompanyID, s.CompanyName())
	a.printf("Documents:   %s\n", comma(s.Metadata.TotalDocuments))
	a.printf("Auth users:  %s\n", comma(s.Metadata.TotalAuthUsers))
	a.printf("Collections: %s\n", strings.Join(s.Metadata.Collections, ", "))
}

func (a *App) printList(infos []backup.BackupInfo) {
	if len(infos) == 0 {
		a.printf("No backups found.\n")
		return
	}
	for _, b := range infos {
		a.printf("%s\n", b.Path)
		a.printf("  tenant %s (%s), env %s, taken %s\n", b.CompanyID, b.CompanyName, b.Environment, a.ago(b.Timestamp))
		a.printf("  %s documents, %s auth users, %s\n", comma(b.TotalDocuments), comma(b.TotalAuthUsers), humanize.Bytes(uint64(b.Size)))
	}
	a.printf("%d backup(s)\n", len(infos))
}

func (a *App) printRestoreFull(res *backup.RestoreFullResult) {
	a.printf("Restored tenant %s from %s\n", res.TenantID, res.SourcePath)
	a.printf("Deleted documents:  %s\n", comma(res.DeletedDocuments))
	a.printf("Deleted users:      %s\n", comma(res.DeletedUsers))
	a.printf("Restored documents: %s\n", comma(res.RestoredDocuments))
	a.printf("Restored users:     %s\n", comma(len(res.RestoredUsers)))
	if len(res.RestoredUsers) > 0 {
		a.printf("Temporary passwords (a reset is required at next sign-in):\n")
		for _, u := range res.RestoredUsers {
			a.printf("  %s <%s>: %s\n", u.UID, u.Email, u.TempPassword)
		}
	}
	if len(res.SkippedUsers) > 0 {
		a.printf("Skipped users: %d\n", len(res.SkippedUsers))
		for _, f := range res.SkippedUsers {
			a.printf("  - %s\n", f.Error())
		}
	}
	a.printFailures(res.Failures)
}

func (a *App) printDiff(res *backup.DiffResult) {
	s := res.Summary
	a.printf("Diff of %s (%s) against %s\n", s.CompanyID, s.CompanyName, s.BaselinePath)
	a.printf("Baseline %s, live %s, maintenance %s\n", s.BaselineDate, s.LiveDate, yesNo(s.IsMaintenance))
	for _, d := range res.Collections {
		if !d.HasChanges() {
			continue
		}
		a.printf("  %-28s +%d ~%d -%d (=%d)\n", d.Collection, d.Counts.Added, d.Counts.Modified, d.Counts.Deleted, d.Counts.Unchanged)
	}
	if len(s.ChangedCollections) == 0 {
		a.printf("No changes.\n")
	}
	t := s.Totals
	a.printf("Total: %s added, %s modified, %s deleted, %s unchanged\n",
		comma(t.Added), comma(t.Modified), comma(t.Deleted), comma(t.Unchanged))
}

func (a *App) printSelective(res *backup.SelectiveResult) {
	a.printf("Restored from %s\n", res.BackupPath)
	for _, c := range res.Restored {
		a.printf("  %-28s %s documents\n", c.Collection, comma(c.Documents))
	}
	if len(res.NotInBackup) > 0 {
		a.printf("Not in backup: %s\n", strings.Join(res.NotInBackup, ", "))
	}
	if len(res.Ignored) > 0 {
		a.printf("Ignored: %s\n", strings.Join(res.Ignored, ", "))
	}
	a.printf("Total: %s documents\n", comma(res.TotalDocuments))
	a.printFailures(res.Failures)
}

func (a *App) printDiffRestore(res *backup.DiffRestoreResult) {
	a.printf("Restored from diff %s\n", res.SummaryPath)
	for _, c := range res.Restored {
		a.printf("  %-28s %d added, %d modified, %d deleted restored\n", c.Collection, c.Added, c.Modified, c.DeletedRestored)
	}
	if len(res.NoChanges) > 0 {
		a.printf("No changes: %s\n", strings.Join(res.NoChanges, ", "))
	}
	if len(res.Ignored) > 0 {
		a.printf("Ignored: %s\n", strings.Join(res.Ignored, ", "))
	}
	t := res.Totals
	a.printf("Total: %s added, %s modified, %s deleted restored\n", comma(t.Added), comma(t.Modified), comma(t.DeletedRestored))
	a.printFailures(res.Failures)
}

func (a *App) printTenantInfo(info tenants.Info) {
	a.printf("Tenant:       %s\n", info.ID)
	a.printf("Name:         %s\n", info.CompanyName)
	if info.CompanyNameKana != "" {
		a.printf("Name (kana):  %s\n", info.CompanyNameKana)
	}
	a.printf("Created:      %s\n", a.when(info.CreatedAt))
	a.printf("Updated:      %s\n", a.when(info.UpdatedAt))
	a.printf("Maintenance:  %s\n", yesNo(info.Maintenance.On))
}

func (a *App) printMembers(ms []tenants.Member) {
	if len(ms) == 0 {
		a.printf("No users.\n")
		return
	}
	for _, m := range ms {
		a.printf("%s <%s> %s admin=%s temporary=%s disabled=%s\n",
			m.UID, m.Email, m.DisplayName, yesNo(m.IsAdmin), yesNo(m.IsTemporary), yesNo(m.Disabled))
	}
	a.printf("%d user(s)\n", len(ms))
}

func (a *App) printDelete(res *tenants.DeleteResult) {
	a.printf("Deleted tenant %s\n", res.TenantID)
	a.printf("Identities deleted: %d (temporary skipped: %d, missing: %d)\n", res.DeletedUsers, res.SkippedTemporary, res.MissingUsers)
	for _, c := range res.Collections {
		a.printf("  %-28s %s documents\n", c.Collection, comma(c.Documents))
	}
	a.printf("Total: %s documents\n", comma(res.DeletedDocuments))
	for _, f := range res.Failures {
		a.printf("  - %s\n", f.Error())
	}
}

func (a *App) printMaintenance(id string, st tenants.MaintenanceState) {
	state := "off"
	if st.On {
		state = "on"
	}
	a.printf("Maintenance for %s: %s\n", id, state)
	if st.Reason != "" {
		a.printf("Reason: %s\n", st.Reason)
	}
	if !st.UpdatedAt.IsZero() {
		a.printf("Updated: %s\n", a.when(st.UpdatedAt))
	}
}

func (a *App) printUser(u identity.User) {
	a.printf("UID:      %s\n", u.UID)
	a.printf("Email:    %s\n", u.Email)
	if u.DisplayName != "" {
		a.printf("Name:     %s\n", u.DisplayName)
	}
	a.printf("Disabled: %s\n", yesNo(u.Disabled))

	keys := make([]string, 0, len(u.CustomClaims))
	for k := range u.CustomClaims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		a.printf("Claims:   none\n")
		return
	}
	a.printf("Claims:\n")
	for _, k := range keys {
		v, err := json.Marshal(u.CustomClaims[k])
		if err != nil {
			v = []byte(fmt.Sprint(u.CustomClaims[k]))
		}
		a.printf("  %s: %s\n", k, v)
	}
}

func (a *App) printSuperUsers(us []identity.User) {
	if len(us) == 0 {
		a.printf("No superusers found.\n")
		return
	}
	for i, u := range us {
		email := u.Email
		if email == "" {
			email = "(no email)"
		}
		name := u.DisplayName
		if name == "" {
			name = "(no display name)"
		}
		a.printf("%d. %s %s %s\n", i+1, u.UID, email, name)
	}
	a.printf("%d superuser(s)\n", len(us))
}
