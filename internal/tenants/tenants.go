// Package tenants implements the tenant lifecycle commands: inspection,
// the maintenance lock and whole-tenant deletion.
package tenants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tenantadmin/internal/collections"
	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/directory"
	"github.com/dmitrijs2005/tenantadmin/internal/identity"
	"github.com/dmitrijs2005/tenantadmin/internal/logging"
	"github.com/juju/clock"
)

type Deps struct {
	Directory directory.Store
	Identity  identity.Store
	// Schedule defaults to collections.Default.
	Schedule collections.Schedule
	Clock    clock.Clock
	Logger   logging.Logger
}

// Service runs lifecycle commands against one directory and identity store.
type Service struct {
	dir      directory.Store
	ids      identity.Store
	schedule collections.Schedule
	clock    clock.Clock
	log      logging.Logger
}

func New(d Deps) *Service {
	s := &Service{
		dir:      d.Directory,
		ids:      d.Identity,
		schedule: d.Schedule,
		clock:    d.Clock,
		log:      d.Logger,
	}
	if s.schedule == nil {
		s.schedule = collections.Default
	}
	if s.clock == nil {
		s.clock = clock.WallClock
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	return s
}

// Info is the summary of a tenant root document. Zero times mean the field
// is not set.
type Info struct {
	ID              string
	CompanyName     string
	CompanyNameKana string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Maintenance     MaintenanceState
}

// Member is one entry of the tenant's Users subcollection.
type Member struct {
	UID         string
	Email       string
	DisplayName string
	IsAdmin     bool
	IsTemporary bool
	Disabled    bool
}

// MaintenanceState is the lock as stored on the root document.
type MaintenanceState struct {
	On        bool
	Reason    string
	UpdatedAt time.Time
	// Changed is set by SetMaintenance when the stored state was modified.
	Changed bool
}

func (s *Service) root(ctx context.Context, id string) (directory.Document, error) {
	doc, err := s.dir.Get(ctx, common.TenantsCollection, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return directory.Document{}, fmt.Errorf("%s: %w", id, common.ErrTenantNotFound)
		}
		return directory.Document{}, fmt.Errorf("read tenant %s: %w", id, err)
	}
	return doc, nil
}

func (s *Service) Info(ctx context.Context, id string) (Info, error) {
	doc, err := s.root(ctx, id)
	if err != nil {
		return Info{}, err
	}
	return Info{
		ID:              id,
		CompanyName:     stringField(doc.Fields, directory.FieldCompanyName),
		CompanyNameKana: stringField(doc.Fields, "companyNameKana"),
		CreatedAt:       timeField(doc.Fields, "createdAt"),
		UpdatedAt:       timeField(doc.Fields, directory.FieldUpdatedAt),
		Maintenance:     maintenanceOf(doc.Fields),
	}, nil
}

// ListUsers returns the tenant's Users subcollection ordered by uid.
func (s *Service) ListUsers(ctx context.Context, id string) ([]Member, error) {
	if _, err := s.root(ctx, id); err != nil {
		return nil, err
	}
	docs, err := s.dir.GetAll(ctx, directory.SubcollectionPath(id, collections.Users))
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	out := make([]Member, 0, len(docs))
	for _, d := range docs {
		out = append(out, Member{
			UID:         d.ID,
			Email:       stringField(d.Fields, "email"),
			DisplayName: stringField(d.Fields, "displayName"),
			IsAdmin:     boolField(d.Fields, "isAdmin"),
			IsTemporary: boolField(d.Fields, "isTemporary"),
			Disabled:    boolField(d.Fields, "disabled"),
		})
	}
	return out, nil
}

func (s *Service) MaintenanceStatus(ctx context.Context, id string) (MaintenanceState, error) {
	doc, err := s.root(ctx, id)
	if err != nil {
		return MaintenanceState{}, err
	}
	return maintenanceOf(doc.Fields), nil
}

// SetMaintenance turns the lock on or off. Setting the state the tenant is
// already in leaves the document untouched. Turning the lock off clears the
// reason.
func (s *Service) SetMaintenance(ctx context.Context, id string, on bool, reason string) (MaintenanceState, error) {
	log := s.log.With("op", "maintenance", "tenant", id)

	doc, err := s.root(ctx, id)
	if err != nil {
		return MaintenanceState{}, err
	}
	cur := maintenanceOf(doc.Fields)
	if cur.On == on {
		log.Info(ctx, "maintenance state unchanged", "on", on)
		return cur, nil
	}

	if !on {
		reason = ""
	}
	now := s.clock.Now().UTC()
	err = s.dir.Update(ctx, common.TenantsCollection, id, map[string]any{
		directory.FieldIsMaintenance:        on,
		directory.FieldMaintenanceReason:    reason,
		directory.FieldMaintenanceUpdatedAt: now,
	})
	if err != nil {
		return MaintenanceState{}, fmt.Errorf("update tenant %s: %w", id, err)
	}
	log.Info(ctx, "maintenance state changed", "on", on, "reason", reason)
	return MaintenanceState{On: on, Reason: reason, UpdatedAt: now, Changed: true}, nil
}

func maintenanceOf(fields map[string]any) MaintenanceState {
	return MaintenanceState{
		On:        boolField(fields, directory.FieldIsMaintenance),
		Reason:    stringField(fields, directory.FieldMaintenanceReason),
		UpdatedAt: timeField(fields, directory.FieldMaintenanceUpdatedAt),
	}
}

func stringField(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}

func boolField(fields map[string]any, key string) bool {
	v, _ := fields[key].(bool)
	return v
}

func timeField(fields map[string]any, key string) time.Time {
	v, _ := fields[key].(time.Time)
	return v
}
