// internal/acl/store_test.go
//
// Unit-tests for acl store helpers and middleware using sqlmock.
//
// Run: go test ./internal/acl -v

package acl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/auth"
)

const siteRoleQ = `SELECT s.id AS site_id, s.tenant_id, m.role FROM sites s JOIN tenant_members m ON m.tenant_id = s.tenant_id WHERE s.id = ? AND m.user_id = ?`

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "mysql")), mock
}

func TestTenantRole(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT role FROM tenant_members WHERE tenant_id = ? AND user_id = ?`,
	)).
		WithArgs("t1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))

	got, err := s.TenantRole(context.Background(), "u1", "t1")
	if err != nil {
		t.Fatalf("TenantRole error: %v", err)
	}
	if got != RoleAdmin {
		t.Fatalf("unexpected role: %q", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSiteRole(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(siteRoleQ)).
		WithArgs("site-1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"site_id", "tenant_id", "role"}).
			AddRow("site-1", "t1", "editor"))
	mock.ExpectQuery(regexp.QuoteMeta(siteRoleQ)).
		WithArgs("site-2", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"site_id", "tenant_id", "role"}))

	a, err := s.SiteRole(context.Background(), "u1", "site-1")
	require.NoError(t, err)
	require.Equal(t, &Access{SiteID: "site-1", TenantID: "t1", Role: RoleEditor}, a)

	_, err = s.SiteRole(context.Background(), "u1", "site-2")
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

type fakeRoles map[string]*Access // key: user|site

func (f fakeRoles) SiteRole(_ context.Context, userID, siteID string) (*Access, error) {
	if a, ok := f[userID+"|"+siteID]; ok {
		return a, nil
	}
	return nil, apperr.New(apperr.KindNotFound, "fake", "")
}

func TestRequireSiteRole(t *testing.T) {
	roles := fakeRoles{
		"owner|site-1":  {SiteID: "site-1", TenantID: "t1", Role: RoleOwner},
		"viewer|site-1": {SiteID: "site-1", TenantID: "t1", Role: RoleViewer},
	}

	var seen *Access
	r := chi.NewRouter()
	r.With(RequireSiteRole(roles, "siteID", Admins...)).
		Get("/sites/{siteID}", func(w http.ResponseWriter, r *http.Request) {
			seen = FromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

	call := func(user, site string) int {
		req := httptest.NewRequest(http.MethodGet, "/sites/"+site, nil)
		if user != "" {
			req = req.WithContext(auth.WithUser(req.Context(), user))
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusUnauthorized, call("", "site-1"))
	require.Equal(t, http.StatusForbidden, call("viewer", "site-1"))
	require.Equal(t, http.StatusForbidden, call("stranger", "site-1"))
	require.Equal(t, http.StatusOK, call("owner", "site-1"))
	require.Equal(t, "t1", seen.TenantID)
}

func TestRequireSiteRole_PanicsWithoutRoles(t *testing.T) {
	require.Panics(t, func() { RequireSiteRole(fakeRoles{}, "siteID") })
}
