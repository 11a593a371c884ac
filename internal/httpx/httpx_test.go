package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanizio/sitebuilder/internal/apperr"
)

func TestError_MapsKindToStatusAndBody(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   apperr.Kind
		msg    string
	}{
		{apperr.New(apperr.KindNotFound, "x", "Page not found."), 404, apperr.KindNotFound, "Page not found."},
		{apperr.New(apperr.KindValidation, "x", ""), 422, apperr.KindValidation, apperr.KindValidation.UserMessage()},
		{apperr.Wrap(apperr.KindServer, "x", errors.New("secret dsn leaked")), 500, apperr.KindServer, apperr.KindServer.UserMessage()},
		{errors.New("plain"), 500, apperr.KindUnknown, apperr.KindUnknown.UserMessage()},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		Error(rr, httptest.NewRequest(http.MethodGet, "/x", nil), tc.err)

		require.Equal(t, tc.status, rr.Code)
		var body ErrorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, tc.kind, body.Error.Kind)
		require.Equal(t, tc.msg, body.Error.Message)
		require.NotContains(t, rr.Body.String(), "secret dsn")
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, Decode(req, &v))
	require.Equal(t, "a", v.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
	require.True(t, apperr.IsKind(Decode(req, &v), apperr.KindValidation))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	require.True(t, apperr.IsKind(Decode(req, &v), apperr.KindValidation))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	require.True(t, apperr.IsKind(Decode(req, &v), apperr.KindValidation))
}

func TestDecodeMap(t *testing.T) {
	m, err := DecodeMap(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`)))
	require.NoError(t, err)
	require.Equal(t, float64(1), m["a"])

	_, err = DecodeMap(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`null`)))
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}
