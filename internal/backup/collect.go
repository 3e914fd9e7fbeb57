package backup

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/tenantadmin/internal/collections"
	"github.com/dmitrijs2005/tenantadmin/internal/directory"
	"github.com/dmitrijs2005/tenantadmin/internal/identity"
	"github.com/dmitrijs2005/tenantadmin/internal/logging"
	"github.com/dmitrijs2005/tenantadmin/internal/tscodec"
)

// DocumentRecord is one captured document with timestamps in marker form.
type DocumentRecord struct {
	DocID string         `json:"docId"`
	Data  tscodec.Fields `json:"data"`
}

// Stats are derived from the captured content.
type Stats struct {
	TotalDocuments int      `json:"totalDocuments"`
	TotalAuthUsers int      `json:"totalAuthUsers"`
	Collections    []string `json:"collections"`
}

// TenantSnapshot is the unit of backup and restore.
type TenantSnapshot struct {
	BackupDate     string                      `json:"backupDate"`
	CompanyID      string                      `json:"companyId"`
	Company        tscodec.Fields              `json:"company"`
	SubCollections map[string][]DocumentRecord `json:"subCollections"`
	AuthUsers      []identity.User             `json:"authUsers"`
	Metadata       Stats                       `json:"metadata"`
}

// Documents returns the records of a collection, nil when absent.
func (s *TenantSnapshot) Documents(collection string) []DocumentRecord {
	return s.SubCollections[collection]
}

// CompanyName returns the tenant display name from the root document.
func (s *TenantSnapshot) CompanyName() string {
	name, _ := s.Company[directory.FieldCompanyName].(string)
	return name
}

// metadata is the artifact metadata describing s.
func (s *TenantSnapshot) metadata(env string) map[string]string {
	return map[string]string{
		"companyId":      s.CompanyID,
		"companyName":    s.CompanyName(),
		"timestamp":      s.BackupDate,
		"totalDocuments": strconv.Itoa(s.Metadata.TotalDocuments),
		"totalAuthUsers": strconv.Itoa(s.Metadata.TotalAuthUsers),
		"collections":    strings.Join(s.Metadata.Collections, ","),
		"environment":    env,
	}
}

// Collect reads the tenant into memory. Only reads are performed. A missing
// root document fails with common.ErrTenantNotFound; an identity record that
// cannot be fetched is logged and left out.
func (e *Engine) Collect(ctx context.Context, tenantID string) (*TenantSnapshot, error) {
	return e.collect(ctx, e.opLogger("collect", tenantID), tenantID)
}

func (e *Engine) collect(ctx context.Context, log logging.Logger, tenantID string) (*TenantSnapshot, error) {
	root, err := e.tenantRoot(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	snap := &TenantSnapshot{
		BackupDate:     e.clock.Now().UTC().Format(timestampLayout),
		CompanyID:      tenantID,
		Company:        tscodec.EncodeFields(root.Fields),
		SubCollections: map[string][]DocumentRecord{},
	}
	if snap.Company == nil {
		snap.Company = tscodec.Fields{}
	}

	for _, c := range e.schedule {
		docs, err := e.dir.GetAll(ctx, directory.SubcollectionPath(tenantID, c.Name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", c.Name, err)
		}
		if len(docs) == 0 {
			continue
		}

		records := make([]DocumentRecord, len(docs))
		for i, d := range docs {
			records[i] = DocumentRecord{DocID: d.ID, Data: tscodec.EncodeFields(d.Fields)}
		}
		snap.SubCollections[c.Name] = records
		snap.Metadata.TotalDocuments += len(records)
		snap.Metadata.Collections = append(snap.Metadata.Collections, c.Name)
		log.Info(ctx, "collected", "collection", c.Name, "documents", len(records))
	}

	for _, rec := range snap.SubCollections[collections.Users] {
		if isTemporary(rec.Data) {
			continue
		}
		u, err := e.ids.GetUser(ctx, rec.DocID)
		if err != nil {
			log.Warn(ctx, "identity record not captured", "uid", rec.DocID, "err", err)
			continue
		}
		snap.AuthUsers = append(snap.AuthUsers, u)
	}
	snap.Metadata.TotalAuthUsers = len(snap.AuthUsers)
	log.Info(ctx, "collected identity records", "users", snap.Metadata.TotalAuthUsers)

	return snap, nil
}

// isTemporary reports whether a Users document is a placeholder without an
// identity record.
func isTemporary(fields tscodec.Fields) bool {
	t, _ := fields["isTemporary"].(bool)
	return t
}
