// internal/apperr/classify.go
//
// Boundary classifiers.  FromDB handles everything the sqlx/mysql gateway can
// return; FromHTTPStatus handles third-party REST responses.

package apperr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers we care about.
const (
	mysqlDBAccessDenied   = 1044
	mysqlAccessDenied     = 1045
	mysqlTooManyConns     = 1040
	mysqlUserConnLimit    = 1203
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlock         = 1213
	mysqlTableAccess      = 1142
	mysqlColumnAccess     = 1143
	mysqlNotNull          = 1048
	mysqlDupEntry         = 1062
	mysqlIncorrectValue   = 1366
	mysqlDataTooLong      = 1406
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
	mysqlInvalidJSONValue = 3140
)

// FromDB classifies a gateway error.  nil stays nil and an existing *Error is
// returned untouched, so calling FromDB twice never re-wraps.
func FromDB(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Wrap(classifyDB(err), op, err)
}

func classifyDB(err error) Kind {
	if errors.Is(err, sql.ErrNoRows) {
		return KindNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return KindNetwork
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDupEntry, mysqlRowIsReferenced:
			return KindConflict
		case mysqlNotNull, mysqlIncorrectValue, mysqlDataTooLong, mysqlNoReferencedRow,
			mysqlInvalidJSONValue:
			return KindValidation
		case mysqlDBAccessDenied, mysqlAccessDenied:
			return KindAuth
		case mysqlTableAccess, mysqlColumnAccess:
			return KindForbidden
		case mysqlTooManyConns, mysqlUserConnLimit:
			return KindRateLimited
		case mysqlLockWaitTimeout, mysqlDeadlock:
			return KindServer
		default:
			return KindServer
		}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return KindNetwork
	}

	return classifyMessage(err.Error())
}

// classifyMessage is the substring fallback for drivers that only hand back
// opaque text.
func classifyMessage(msg string) Kind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "connection refused"),
		strings.Contains(m, "broken pipe"),
		strings.Contains(m, "i/o timeout"),
		strings.Contains(m, "connection reset"):
		return KindNetwork
	case strings.Contains(m, "duplicate"):
		return KindConflict
	case strings.Contains(m, "not found"), strings.Contains(m, "no rows"):
		return KindNotFound
	case strings.Contains(m, "permission denied"), strings.Contains(m, "access denied"):
		return KindForbidden
	case strings.Contains(m, "too many"):
		return KindRateLimited
	}
	return KindUnknown
}

// KindForStatus maps an HTTP status from a third-party API onto a Kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusBadGateway, status == http.StatusGatewayTimeout:
		return KindNetwork
	case status >= 500:
		return KindServer
	}
	return KindUnknown
}

// FromHTTPStatus builds a classified error for a non-2xx response.  msg is
// the provider's own message and is kept as the user-facing text only for
// validation and conflict failures, where it is actionable.
func FromHTTPStatus(op string, status int, msg string) error {
	k := KindForStatus(status)
	e := &Error{Kind: k, Op: op, Err: errors.New(strings.TrimSpace(http.StatusText(status) + " " + msg))}
	if (k == KindValidation || k == KindConflict) && msg != "" {
		e.Message = msg
	}
	return e
}
