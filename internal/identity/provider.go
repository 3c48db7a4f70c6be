// Package identity resolves requests to a stable user ID using HS256 JWTs.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Kerhoff/wishpool/internal/commitment"
)

// CookieName is the session cookie checked when no Authorization header is
// present.
const CookieName = "token"

const opAuth = "auth"

// ErrNoCredentials means the request carried neither header nor cookie.
var ErrNoCredentials = errors.New("no credentials")

// Claims is the token payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"userId"`
}

// Provider issues and verifies user tokens.
type Provider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewProvider creates a provider. A nil now uses time.Now.
func NewProvider(secret string, ttl time.Duration, now func() time.Time) (*Provider, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("jwt ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Provider{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// Issue mints a token for userID.
func (p *Provider) Issue(userID int64) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("invalid user id %d", userID)
	}
	now := p.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the user ID carried by token, or an AUTH_FAILURE error.
func (p *Provider) Verify(token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, &commitment.Error{Kind: commitment.KindAuthFailure, Op: opAuth, Message: "authentication required", Cause: ErrNoCredentials}
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "token expired"
		}
		return 0, &commitment.Error{Kind: commitment.KindAuthFailure, Op: opAuth, Message: msg, Cause: err}
	}
	if claims.UserID <= 0 {
		return 0, commitment.New(commitment.KindAuthFailure, opAuth, "token carries no user")
	}
	return claims.UserID, nil
}

// ResolveActor reads a Bearer token from the Authorization header, falling
// back to the token cookie.
func (p *Provider) ResolveActor(r *http.Request) (int64, error) {
	return p.Verify(tokenFromRequest(r))
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return token
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
