// Package identity is the boundary to the authentication service holding
// login-capable accounts. Records are addressed by uid; emails are unique.
package identity

import (
	"context"
	"time"
)

// User is one identity record.
type User struct {
	UID           string         `json:"uid"`
	Email         string         `json:"email,omitempty"`
	EmailVerified bool           `json:"emailVerified"`
	DisplayName   string         `json:"displayName,omitempty"`
	PhotoURL      string         `json:"photoURL,omitempty"`
	Disabled      bool           `json:"disabled"`
	CustomClaims  map[string]any `json:"customClaims,omitempty"`
	Metadata      UserMetadata   `json:"metadata"`
}

// UserMetadata carries account timestamps as RFC 3339 strings; empty means unknown.
type UserMetadata struct {
	CreationTime   string `json:"creationTime,omitempty"`
	LastSignInTime string `json:"lastSignInTime,omitempty"`
}

// CreateParams describes a new record. UID is kept as given.
type CreateParams struct {
	UID           string
	Email         string
	EmailVerified bool
	Password      string
	DisplayName   string
	PhotoURL      string
	Disabled      bool
}

// Page is one ListUsers result. NextPageToken is empty on the last page.
type Page struct {
	Users         []User
	NextPageToken string
}

// Store is the identity service.
type Store interface {
	// GetUser and GetUserByEmail return common.ErrorNotFound for unknown records.
	GetUser(ctx context.Context, uid string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// CreateUser fails with common.ErrorAlreadyExists on a uid or email clash.
	CreateUser(ctx context.Context, p CreateParams) (User, error)
	// DeleteUser returns common.ErrorNotFound when the record is absent.
	DeleteUser(ctx context.Context, uid string) error
	// SetCustomClaims replaces the claims; nil clears them.
	SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error
	ListUsers(ctx context.Context, pageSize int, pageToken string) (Page, error)
}

// DefaultPageSize is used by ListUsers when pageSize is not positive.
const DefaultPageSize = 1000

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
