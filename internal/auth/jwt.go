// internal/auth/jwt.go
//
// Bearer-token verification.
//
// Context
// -------
// Users sign in with the hosted identity provider, which issues HS256 JWTs
// whose subject is the user id.  API requests carry that token in the
// Authorization header; Verifier checks signature, expiry, and (when
// configured) issuer, then RequireUser puts the subject into the request
// context.
//
// Notes
// -----
//   - Only HMAC signing methods are accepted.
//   - Every verification failure is an AUTH error with one fixed message.
//   - Issue exists for tests and local tooling.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/httpx"
)

// Claims are the registered claims the provider issues.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Verifier validates bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewVerifier returns a Verifier for HS256 tokens signed with secret.  An
// empty issuer skips the iss check.
func NewVerifier(secret []byte, issuer string) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: jwt secret required")
	}
	return &Verifier{secret: secret, issuer: issuer, leeway: 30 * time.Second}, nil
}

var errInvalidToken = apperr.New(apperr.KindAuth, "auth.Verify", "Your session has expired.  Please sign in again.")

// Verify parses token and returns the user id it was issued to.
func (v *Verifier) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return "", &apperr.Error{Kind: errInvalidToken.Kind, Op: errInvalidToken.Op,
			Message: errInvalidToken.Message, Err: err}
	}
	if claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

// Issue signs a token for userID valid for ttl.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// RequireUser rejects requests without a valid bearer token and stores
// the user id in the request context.
func RequireUser(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := BearerToken(r)
			if !ok {
				httpx.Error(w, r, apperr.New(apperr.KindAuth, "auth.RequireUser", "Sign in to continue."))
				return
			}
			uid, err := v.Verify(tok)
			if err != nil {
				httpx.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), uid)))
		})
	}
}

// MustUser returns the user id placed by RequireUser.  Handlers mounted
// behind RequireUser may rely on it.
func MustUser(ctx context.Context) string {
	id, _ := UserID(ctx)
	return id
}
