package site

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/database"
)

var siteCols = []string{"id", "tenant_id", "slug", "name", "status", "settings", "template_id", "created_at", "updated_at"}

func newStore(t *testing.T) (*Store, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	x := sqlx.NewDb(db, "mysql")
	return NewStore(x), x, mock
}

func TestGet_ScansRow(t *testing.T) {
	s, _, mock := newStore(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM sites WHERE id = ?")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(siteCols).
			AddRow("s1", "t1", "acme", "Acme", "draft", []byte(`{"theme":"dark"}`), nil, now, now))

	got, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "acme", got.Slug)
	require.Equal(t, StatusDraft, got.Status)
	require.Equal(t, "dark", got.Settings["theme"])
	require.Nil(t, got.TemplateID)
}

func TestGet_MissingIsNotFound(t *testing.T) {
	s, _, mock := newStore(t)
	mock.ExpectQuery("FROM sites").WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "nope")
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestLock_UsesTransaction(t *testing.T) {
	s, db, mock := newStore(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(siteCols).
			AddRow("s1", "t1", "acme", "Acme", "published", []byte(`{}`), nil, now, now))
	mock.ExpectCommit()

	err := database.NewTxRunner(db).WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := s.Lock(ctx, "s1")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_FillsDefaults(t *testing.T) {
	s, _, mock := newStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sites")).
		WithArgs(sqlmock.AnyArg(), "t1", "my-bakery", "My Bakery!", StatusDraft,
			sqlmock.AnyArg(), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &Site{TenantID: "t1", Name: "My Bakery!"}
	require.NoError(t, s.Create(context.Background(), rec))
	require.NotEmpty(t, rec.ID)
	require.Equal(t, "my-bakery", rec.Slug)
	require.NotNil(t, rec.Settings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateSlugIsConflict(t *testing.T) {
	s, _, mock := newStore(t)
	mock.ExpectExec("INSERT INTO sites").WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := s.Create(context.Background(), &Site{TenantID: "t1", Name: "Acme"})
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestUpdate(t *testing.T) {
	s, _, mock := newStore(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sites SET name = ?, updated_at = ? WHERE id = ?")).
		WithArgs("New", sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Update(context.Background(), "s1", map[string]any{"name": "New"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_Rejects(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	err := s.Update(ctx, "s1", map[string]any{"tenant_id": "other"})
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = s.Update(ctx, "s1", map[string]any{"slug": "Not A Slug"})
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	require.NoError(t, s.Update(ctx, "s1", map[string]any{}))
}

func TestSetStatus(t *testing.T) {
	s, _, mock := newStore(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sites SET status = ?")).
		WithArgs(StatusPublished, sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sites").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, s.SetStatus(ctx, "s1", StatusPublished))
	require.True(t, apperr.IsKind(s.SetStatus(ctx, "gone", StatusPublished), apperr.KindNotFound))
	require.True(t, apperr.IsKind(s.SetStatus(ctx, "s1", "deleted"), apperr.KindValidation))
}
