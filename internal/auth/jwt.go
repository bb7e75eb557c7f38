package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token rejection reasons beyond signature and expiry failures.
var (
	ErrEmptyToken     = errors.New("auth: empty token")
	ErrMissingSubject = errors.New("auth: token has no subject")
	ErrUnknownRole    = errors.New("auth: unknown role")
	ErrOtherRApp      = errors.New("auth: token not scoped to this rapp")
)

// clockSkew is tolerated on exp, nbf and iat.
const clockSkew = 30 * time.Second

// Claims are the JWT claims accepted by the rApp API. RApps optionally
// scopes the token to named rApps; an empty list admits every rApp.
type Claims struct {
	Role  string   `json:"role"`
	RApps []string `json:"rapps,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 bearer tokens for one rApp instance.
type Verifier struct {
	secret []byte
	rapp   string
	parser *jwt.Parser
}

// NewVerifier returns a Verifier for tokens signed with secret. rapp is the
// name matched against the rapps claim.
func NewVerifier(secret []byte, rapp string) *Verifier {
	return &Verifier{
		secret: secret,
		rapp:   rapp,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(clockSkew),
		),
	}
}

// Verify parses token and returns its claims. Tokens need an expiry, a
// subject and a known role.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	if len(v.secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}
	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if _, ok := NormalizeRole(claims.Role); !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownRole, claims.Role)
	}
	if len(claims.RApps) > 0 && !slices.Contains(claims.RApps, v.rapp) {
		return nil, ErrOtherRApp
	}
	return claims, nil
}
