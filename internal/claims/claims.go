// Package claims manages the custom claims that grant platform-wide roles
// to identity records.
package claims

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/identity"
	"github.com/dmitrijs2005/tenantadmin/internal/logging"
)

const (
	SuperUser = "isSuperUser"
	Developer = "isDeveloper"
)

// Parse maps an operator-facing role name to its claim key.
func Parse(name string) (string, error) {
	switch strings.ToLower(name) {
	case "superuser", "super", strings.ToLower(SuperUser):
		return SuperUser, nil
	case "developer", "dev", strings.ToLower(Developer):
		return Developer, nil
	}
	return "", fmt.Errorf("%q: %w", name, common.ErrUnknownClaim)
}

type Service struct {
	ids      identity.Store
	log      logging.Logger
	pageSize int
}

func New(ids identity.Store, log logging.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{ids: ids, log: log, pageSize: identity.DefaultPageSize}
}

// SetClaim sets claim to true, keeping the other claims. The returned user
// carries the new claims; they apply from the user's next sign-in.
func (s *Service) SetClaim(ctx context.Context, uid, claim string) (identity.User, error) {
	return s.edit(ctx, uid, claim, func(c map[string]any) { c[claim] = true })
}

// RemoveClaim drops claim, keeping the other claims.
func (s *Service) RemoveClaim(ctx context.Context, uid, claim string) (identity.User, error) {
	return s.edit(ctx, uid, claim, func(c map[string]any) { delete(c, claim) })
}

func (s *Service) edit(ctx context.Context, uid, claim string, change func(map[string]any)) (identity.User, error) {
	if claim != SuperUser && claim != Developer {
		return identity.User{}, fmt.Errorf("%q: %w", claim, common.ErrUnknownClaim)
	}
	u, err := s.ids.GetUser(ctx, uid)
	if err != nil {
		return identity.User{}, fmt.Errorf("get user %s: %w", uid, err)
	}

	next := maps.Clone(u.CustomClaims)
	if next == nil {
		next = map[string]any{}
	}
	change(next)
	if err := s.ids.SetCustomClaims(ctx, uid, next); err != nil {
		return identity.User{}, fmt.Errorf("set claims %s: %w", uid, err)
	}
	u.CustomClaims = next
	s.log.Info(ctx, "claims updated", "uid", uid, "email", u.Email, "claim", claim)
	return u, nil
}

// View returns the identity record of uid with its claims.
func (s *Service) View(ctx context.Context, uid string) (identity.User, error) {
	u, err := s.ids.GetUser(ctx, uid)
	if err != nil {
		return identity.User{}, fmt.Errorf("get user %s: %w", uid, err)
	}
	return u, nil
}

func (s *Service) UIDByEmail(ctx context.Context, email string) (string, error) {
	u, err := s.ids.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("get user %s: %w", email, err)
	}
	return u.UID, nil
}

// ListSuperUsers walks every page of the identity store and returns the
// records whose isSuperUser claim is true.
func (s *Service) ListSuperUsers(ctx context.Context) ([]identity.User, error) {
	var out []identity.User
	token := ""
	for {
		page, err := s.ids.ListUsers(ctx, s.pageSize, token)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		for _, u := range page.Users {
			if on, _ := u.CustomClaims[SuperUser].(bool); on {
				out = append(out, u)
			}
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}
