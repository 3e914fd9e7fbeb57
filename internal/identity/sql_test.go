package identity

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/database"
	"github.com/dmitrijs2005/tenantadmin/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var userCols = []string{"uid", "email", "email_verified", "display_name", "photo_url", "disabled", "custom_claims", "created_at", "last_sign_in_at"}

func newStoreWithMock(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewSQLStore(db, dbx.Postgres)
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s, mock
}

func fastHash(t *testing.T) {
	t.Helper()
	orig := hashPassword
	hashPassword = func(p string) (string, error) {
		h, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.MinCost)
		return string(h), err
	}
	t.Cleanup(func() { hashPassword = orig })
}

func TestSQLStore_GetUser(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+uid,.*FROM\s+auth_users\s+WHERE\s+uid\s*=\s*\$1$`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "a@acme.io", true, "Alice", "", false, `{"isSuperUser":true}`, "2024-01-01T00:00:00Z", ""))

	u, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, User{
		UID:           "u1",
		Email:         "a@acme.io",
		EmailVerified: true,
		DisplayName:   "Alice",
		CustomClaims:  map[string]any{"isSuperUser": true},
		Metadata:      UserMetadata{CreationTime: "2024-01-01T00:00:00Z"},
	}, u)
}

func TestSQLStore_GetUser_NotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)
	mock.ExpectQuery(`FROM\s+auth_users`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := s.GetUser(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLStore_GetUserByEmail_NullEmailRow(t *testing.T) {
	s, mock := newStoreWithMock(t)
	mock.ExpectQuery(`WHERE\s+LOWER\(email\)\s*=\s*LOWER\(\$1\)`).
		WithArgs("a@acme.io").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", nil, false, "", "", false, "{}", "2024-01-01T00:00:00Z", ""))

	u, err := s.GetUserByEmail(context.Background(), "a@acme.io")
	require.NoError(t, err)
	assert.Equal(t, "", u.Email)
	assert.Nil(t, u.CustomClaims)
}

func TestSQLStore_CreateUser(t *testing.T) {
	s, mock := newStoreWithMock(t)
	fastHash(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+auth_users`).
		WithArgs("u1", "a@acme.io", true, "", "", false, sqlmock.AnyArg(), "2024-01-01T00:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := s.CreateUser(context.Background(), CreateParams{UID: "u1", Email: "a@acme.io", EmailVerified: true, Password: "Temp1!"})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CreateUser_Duplicate(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`INSERT\s+INTO\s+auth_users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := s.CreateUser(context.Background(), CreateParams{UID: "u1"})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestSQLStore_DeleteUser(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`^DELETE\s+FROM\s+auth_users\s+WHERE\s+uid\s*=\s*\$1$`).WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE\s+FROM\s+auth_users`).WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^DELETE\s+FROM\s+auth_users`).WithArgs("u2").
		WillReturnError(errors.New("db down"))

	require.NoError(t, s.DeleteUser(context.Background(), "u1"))
	require.ErrorIs(t, s.DeleteUser(context.Background(), "u1"), common.ErrorNotFound)
	require.ErrorContains(t, s.DeleteUser(context.Background(), "u2"), "db error: db down")
}

func TestSQLStore_SetCustomClaims(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`^UPDATE\s+auth_users\s+SET\s+custom_claims\s*=\s*\$1\s+WHERE\s+uid\s*=\s*\$2$`).
		WithArgs(`{"isDeveloper":true}`, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^UPDATE\s+auth_users`).
		WithArgs(`{}`, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SetCustomClaims(context.Background(), "u1", map[string]any{"isDeveloper": true}))
	require.NoError(t, s.SetCustomClaims(context.Background(), "u1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_ListUsers_Pages(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`WHERE\s+uid\s*>\s*\$1\s+ORDER\s+BY\s+uid\s+LIMIT\s+\$2$`).
		WithArgs("", 3).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("a", nil, false, "", "", false, "{}", "", "").
			AddRow("b", nil, false, "", "", false, "{}", "", "").
			AddRow("c", nil, false, "", "", false, "{}", "", ""))

	page, err := s.ListUsers(context.Background(), 2, "")
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	assert.Equal(t, "b", page.NextPageToken)
}

func TestSQLStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	fastHash(t)

	db, dialect, err := database.Open(ctx, database.DriverSQLite, "file:identity_test?mode=memory")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewSQLStore(db, dialect)

	_, err = s.CreateUser(ctx, CreateParams{UID: "u1", Email: "a@acme.io", Password: "pw", Disabled: true})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, CreateParams{UID: "u2"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, CreateParams{UID: "u3"})
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, CreateParams{UID: "u1"})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)

	var hash string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT password_hash FROM auth_users WHERE uid = ?`, "u1").Scan(&hash))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))

	require.NoError(t, s.SetCustomClaims(ctx, "u1", map[string]any{"isSuperUser": true}))
	u, err := s.GetUserByEmail(ctx, "A@acme.io")
	require.NoError(t, err)
	assert.True(t, u.Disabled)
	assert.Equal(t, map[string]any{"isSuperUser": true}, u.CustomClaims)

	page, err := s.ListUsers(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	page, err = s.ListUsers(ctx, 2, page.NextPageToken)
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "u3", page.Users[0].UID)
	assert.Empty(t, page.NextPageToken)

	require.NoError(t, s.DeleteUser(ctx, "u2"))
	require.ErrorIs(t, s.DeleteUser(ctx, "u2"), common.ErrorNotFound)
}
