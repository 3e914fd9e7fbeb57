package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const userColumns = `uid, email, email_verified, display_name, photo_url, disabled, custom_claims, created_at, last_sign_in_at`

const (
	selectUserQuery = `SELECT ` + userColumns + ` FROM auth_users WHERE uid = ?`

	selectUserByEmailQuery = `SELECT ` + userColumns + ` FROM auth_users WHERE LOWER(email) = LOWER(?)`

	insertUserQuery = `INSERT INTO auth_users (uid, email, email_verified, display_name, photo_url, disabled, password_hash, custom_claims, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '{}', ?)`

	deleteUserQuery = `DELETE FROM auth_users WHERE uid = ?`

	updateClaimsQuery = `UPDATE auth_users SET custom_claims = ? WHERE uid = ?`

	listUsersQuery = `SELECT ` + userColumns + ` FROM auth_users WHERE uid > ? ORDER BY uid LIMIT ?`
)

// hashPassword is a seam so tests can avoid bcrypt's cost.
var hashPassword = func(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// SQLStore keeps identity records in the auth_users table. Passwords are
// stored as bcrypt hashes.
type SQLStore struct {
	db      dbx.DBTX
	dialect dbx.Dialect
	now     func() time.Time
}

func NewSQLStore(db dbx.DBTX, dialect dbx.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		u      User
		email  sql.NullString
		claims string
	)
	err := row.Scan(&u.UID, &email, &u.EmailVerified, &u.DisplayName, &u.PhotoURL, &u.Disabled,
		&claims, &u.Metadata.CreationTime, &u.Metadata.LastSignInTime)
	if err != nil {
		return User{}, err
	}
	u.Email = email.String
	if claims != "" && claims != "{}" {
		if err := json.Unmarshal([]byte(claims), &u.CustomClaims); err != nil {
			return User{}, fmt.Errorf("decode claims of %s: %w", u.UID, err)
		}
	}
	return u, nil
}

func (s *SQLStore) GetUser(ctx context.Context, uid string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.dialect.Rebind(selectUserQuery), uid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, fmt.Errorf("user %s: %w", uid, common.ErrorNotFound)
		}
		return User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.dialect.Rebind(selectUserByEmailQuery), email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, fmt.Errorf("user %s: %w", email, common.ErrorNotFound)
		}
		return User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, p CreateParams) (User, error) {
	if p.UID == "" {
		uid, err := common.MakeRandHexString(14)
		if err != nil {
			return User{}, err
		}
		p.UID = uid
	}

	hash := ""
	if p.Password != "" {
		h, err := hashPassword(p.Password)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		hash = h
	}

	email := sql.NullString{String: p.Email, Valid: p.Email != ""}
	created := formatTime(s.now())

	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(insertUserQuery),
		p.UID, email, p.EmailVerified, p.DisplayName, p.PhotoURL, p.Disabled, hash, created)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, fmt.Errorf("user %s: %w", p.UID, common.ErrorAlreadyExists)
		}
		return User{}, fmt.Errorf("db error: %w", err)
	}

	return User{
		UID:           p.UID,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		DisplayName:   p.DisplayName,
		PhotoURL:      p.PhotoURL,
		Disabled:      p.Disabled,
		Metadata:      UserMetadata{CreationTime: created},
	}, nil
}

func (s *SQLStore) DeleteUser(ctx context.Context, uid string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(deleteUserQuery), uid)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res, uid)
}

func (s *SQLStore) SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error {
	raw := "{}"
	if len(claims) > 0 {
		b, err := json.Marshal(claims)
		if err != nil {
			return fmt.Errorf("encode claims: %w", err)
		}
		raw = string(b)
	}

	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(updateClaimsQuery), raw, uid)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res, uid)
}

func (s *SQLStore) ListUsers(ctx context.Context, pageSize int, pageToken string) (Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(listUsersQuery), pageToken, pageSize+1)
	if err != nil {
		return Page{}, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var page Page
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return Page{}, fmt.Errorf("db error: %w", err)
		}
		page.Users = append(page.Users, u)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("db error: %w", err)
	}

	if len(page.Users) > pageSize {
		page.Users = page.Users[:pageSize]
		page.NextPageToken = page.Users[pageSize-1].UID
	}
	return page, nil
}

func requireRow(res sql.Result, uid string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", uid, common.ErrorNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
