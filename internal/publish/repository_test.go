package publish

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
	"github.com/yanizio/sitebuilder/internal/content"
)

var publishCols = []string{"id", "site_id", "tenant_id", "version", "snapshot", "changelog", "is_current", "created_at"}

func newRepo(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLRepository(sqlx.NewDb(db, "mysql")), mock
}

const snapJSON = `{"pages":[{"id":"p1","slug":"home","title":"Home","is_homepage":true,"seo":{},` +
	`"sections":[{"id":"s","type":"text","variant":null,"content":{"body":"hi"},"settings":{},"sort_order":0}]}],` +
	`"settings":{"theme":"dark"},"published_at":"2026-01-02T03:04:05Z"}`

func TestLatestVersion_ZeroWhenNone(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM publishes WHERE site_id = ?")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(0))

	v, err := r.LatestVersion(context.Background(), "s1")
	require.NoError(t, err)
	require.Zero(t, v)
}

func TestCurrent_ScansSnapshot(t *testing.T) {
	r, mock := newRepo(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("AND is_current = TRUE ORDER BY version DESC LIMIT 1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(publishCols).
			AddRow("id1", "s1", "t1", 2, []byte(snapJSON), nil, true, now))

	p, err := r.Current(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 2, p.Version)
	require.Nil(t, p.Changelog)
	require.Len(t, p.Snapshot.Pages, 1)
	require.Equal(t, "hi", p.Snapshot.Pages[0].Sections[0].Content["body"])
	require.Nil(t, p.Snapshot.Pages[0].Sections[0].Variant)
	require.Equal(t, content.JSON{"theme": "dark"}, p.Snapshot.Settings)
}

func TestCurrent_NilWhenNone(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectQuery("FROM publishes").WillReturnError(sql.ErrNoRows)

	p, err := r.Current(context.Background(), "s1")
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestByVersion_GatewayErrorClassified(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectQuery("FROM publishes").WillReturnError(&mysql.MySQLError{Number: 1045})

	_, err := r.ByVersion(context.Background(), "s1", 1)
	require.True(t, apperr.IsKind(err, apperr.KindAuth))
}

func TestInsert_DuplicateVersionIsConflict(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO publishes")).
		WithArgs("id", "s1", "t1", 3, sqlmock.AnyArg(), nil, true, sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062})

	err := r.Insert(context.Background(), &Publish{ID: "id", SiteID: "s1", TenantID: "t1", Version: 3, IsCurrent: true})
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearCurrent(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE publishes SET is_current = FALSE WHERE site_id = ?")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.ClearCurrent(context.Background(), "s1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotValueRoundTrip(t *testing.T) {
	var s Snapshot
	require.NoError(t, s.Scan([]byte(snapJSON)))

	v, err := s.Value()
	require.NoError(t, err)

	var again Snapshot
	require.NoError(t, again.Scan(v))
	require.Equal(t, s, again)

	require.Error(t, s.Scan(42))
}

func TestSnapshotPage(t *testing.T) {
	s := Snapshot{Pages: []SnapshotPage{{Slug: "about"}, {Slug: "home", IsHomepage: true}}}

	p, ok := s.Page("")
	require.True(t, ok)
	require.Equal(t, "home", p.Slug)

	p, ok = s.Page("about")
	require.True(t, ok)
	require.Equal(t, "about", p.Slug)

	_, ok = s.Page("missing")
	require.False(t, ok)

	p, ok = Snapshot{Pages: []SnapshotPage{{Slug: "first"}, {Slug: "second"}}}.Page("")
	require.True(t, ok)
	require.Equal(t, "first", p.Slug)
}
