package apperr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

func TestKindRetryable(t *testing.T) {
	retryable := []Kind{KindNetwork, KindRateLimited, KindServer}
	permanent := []Kind{KindAuth, KindForbidden, KindNotFound, KindValidation, KindConflict, KindUnknown}

	for _, k := range retryable {
		require.Truef(t, k.Retryable(), "%s should be retryable", k)
	}
	for _, k := range permanent {
		require.Falsef(t, k.Retryable(), "%s should not be retryable", k)
	}
}

func TestFromDB(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"no rows", sql.ErrNoRows, KindNotFound},
		{"wrapped no rows", fmt.Errorf("get: %w", sql.ErrNoRows), KindNotFound},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"bad conn", mysql.ErrInvalidConn, KindNetwork},
		{"duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, KindConflict},
		{"fk missing", &mysql.MySQLError{Number: 1452}, KindValidation},
		{"access denied", &mysql.MySQLError{Number: 1045}, KindAuth},
		{"table denied", &mysql.MySQLError{Number: 1142}, KindForbidden},
		{"too many conns", &mysql.MySQLError{Number: 1040}, KindRateLimited},
		{"deadlock", &mysql.MySQLError{Number: 1213}, KindServer},
		{"net", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindNetwork},
		{"substring", errors.New("dial tcp: connection refused"), KindNetwork},
		{"opaque", errors.New("weird"), KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := FromDB("test.op", tc.err)
			require.Equal(t, tc.want, KindOf(err))
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestFromDB_DoesNotRewrap(t *testing.T) {
	orig := New(KindNotFound, "publish.Rollback", "Version not found")
	got := FromDB("store.Get", orig)
	require.Same(t, orig, got)
	require.Nil(t, FromDB("x", nil))
}

func TestFromHTTPStatus(t *testing.T) {
	require.Equal(t, KindAuth, KindOf(FromHTTPStatus("h", http.StatusUnauthorized, "")))
	require.Equal(t, KindRateLimited, KindOf(FromHTTPStatus("h", http.StatusTooManyRequests, "")))
	require.Equal(t, KindServer, KindOf(FromHTTPStatus("h", http.StatusServiceUnavailable, "")))

	err := FromHTTPStatus("h", http.StatusBadRequest, "Invalid domain name")
	require.Equal(t, "Invalid domain name", UserMessage(err))

	err = FromHTTPStatus("h", http.StatusInternalServerError, "stack trace with ids")
	require.Equal(t, KindServer.UserMessage(), UserMessage(err))
}

func TestUserMessageUnknownError(t *testing.T) {
	require.Equal(t, KindUnknown.UserMessage(), UserMessage(errors.New("boom")))
	require.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
}
