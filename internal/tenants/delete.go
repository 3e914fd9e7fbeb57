package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/directory"
)

// UserFailure is an identity record that could not be removed.
type UserFailure struct {
	UID   string
	Email string
	Err   error
}

func (f UserFailure) Error() string {
	return fmt.Sprintf("%s <%s>: %v", f.UID, f.Email, f.Err)
}

// CollectionCount is the number of documents removed from one subcollection.
type CollectionCount struct {
	Collection string
	Documents  int
}

type DeleteResult struct {
	TenantID         string
	DeletedUsers     int
	SkippedTemporary int
	// MissingUsers had a Users document but no identity record.
	MissingUsers     int
	Collections      []CollectionCount
	DeletedDocuments int
	Failures         []UserFailure
}

// Delete removes a tenant: the identity records of its non-temporary users,
// every scheduled subcollection in order, and finally the root document.
// Identity failures are collected; a directory failure aborts.
func (s *Service) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	log := s.log.With("op", "delete", "tenant", id)

	if _, err := s.root(ctx, id); err != nil {
		return nil, err
	}
	members, err := s.ListUsers(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &DeleteResult{TenantID: id}
	for _, m := range members {
		if m.IsTemporary {
			res.SkippedTemporary++
			log.Debug(ctx, "temporary user skipped", "uid", m.UID)
			continue
		}
		err := s.ids.DeleteUser(ctx, m.UID)
		switch {
		case err == nil:
			res.DeletedUsers++
			log.Info(ctx, "identity deleted", "uid", m.UID, "email", m.Email)
		case errors.Is(err, common.ErrorNotFound):
			res.MissingUsers++
			log.Warn(ctx, "identity not found", "uid", m.UID, "email", m.Email)
		default:
			res.Failures = append(res.Failures, UserFailure{UID: m.UID, Email: m.Email, Err: err})
			log.Warn(ctx, "identity delete failed", "uid", m.UID, "email", m.Email, "err", err)
		}
	}

	for _, c := range s.schedule {
		n, err := directory.Clear(ctx, s.dir, directory.SubcollectionPath(id, c.Name))
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", c.Name, err)
		}
		if n == 0 {
			continue
		}
		res.Collections = append(res.Collections, CollectionCount{Collection: c.Name, Documents: n})
		res.DeletedDocuments += n
		log.Info(ctx, "collection deleted", "collection", c.Name, "documents", n)

		if c.SettleAfterClear > 0 {
			log.Info(ctx, "waiting for triggers to settle", "collection", c.Name, "delay", c.SettleAfterClear)
			<-s.clock.After(c.SettleAfterClear)
		}
	}

	if err := s.dir.Delete(ctx, common.TenantsCollection, id); err != nil {
		return nil, fmt.Errorf("delete tenant %s: %w", id, err)
	}
	log.Info(ctx, "tenant deleted", "users", res.DeletedUsers, "documents", res.DeletedDocuments)
	return res, nil
}
