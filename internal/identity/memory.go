package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/tenantadmin/internal/common"
)

// MemoryStore keeps identity records in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]User
	passwords map[string]string
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     map[string]User{},
		passwords: map[string]string{},
		now:       time.Now,
	}
}

func (s *MemoryStore) GetUser(ctx context.Context, uid string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[uid]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", uid, common.ErrorNotFound)
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email != "" && strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return User{}, fmt.Errorf("user %s: %w", email, common.ErrorNotFound)
}

func (s *MemoryStore) CreateUser(ctx context.Context, p CreateParams) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.UID == "" {
		uid, err := common.MakeRandHexString(14)
		if err != nil {
			return User{}, err
		}
		p.UID = uid
	}
	if _, ok := s.users[p.UID]; ok {
		return User{}, fmt.Errorf("uid %s: %w", p.UID, common.ErrorAlreadyExists)
	}
	if p.Email != "" {
		for _, u := range s.users {
			if strings.EqualFold(u.Email, p.Email) {
				return User{}, fmt.Errorf("email %s: %w", p.Email, common.ErrorAlreadyExists)
			}
		}
	}

	u := User{
		UID:           p.UID,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		DisplayName:   p.DisplayName,
		PhotoURL:      p.PhotoURL,
		Disabled:      p.Disabled,
		Metadata:      UserMetadata{CreationTime: formatTime(s.now())},
	}
	s.users[u.UID] = u
	s.passwords[u.UID] = p.Password
	return cloneUser(u), nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[uid]; !ok {
		return fmt.Errorf("user %s: %w", uid, common.ErrorNotFound)
	}
	delete(s.users, uid)
	delete(s.passwords, uid)
	return nil
}

func (s *MemoryStore) SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[uid]
	if !ok {
		return fmt.Errorf("user %s: %w", uid, common.ErrorNotFound)
	}
	u.CustomClaims = cloneClaims(claims)
	s.users[uid] = u
	return nil
}

// ListUsers pages through records ordered by uid. The page token is the last
// uid of the previous page.
func (s *MemoryStore) ListUsers(ctx context.Context, pageSize int, pageToken string) (Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	uids := make([]string, 0, len(s.users))
	for uid := range s.users {
		if uid > pageToken {
			uids = append(uids, uid)
		}
	}
	sort.Strings(uids)

	var page Page
	for i, uid := range uids {
		if i == pageSize {
			page.NextPageToken = uids[i-1]
			break
		}
		page.Users = append(page.Users, cloneUser(s.users[uid]))
	}
	return page, nil
}

// Password returns the password the record was created with.
func (s *MemoryStore) Password(uid string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.passwords[uid]
	return p, ok
}

func cloneUser(u User) User {
	u.CustomClaims = cloneClaims(u.CustomClaims)
	return u
}

func cloneClaims(c map[string]any) map[string]any {
	if c == nil {
		return nil
	}
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
