package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signClaims(t *testing.T, method jwt.SigningMethod, secret []byte, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims() Claims {
	return Claims{
		Role: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "noc-operator",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifier_AcceptsScopedToken(t *testing.T) {
	secret := []byte("s3cret")
	claims := validClaims()
	claims.RApps = []string{"slice-prb", "energy-saving"}

	got, err := NewVerifier(secret, "slice-prb").Verify(signClaims(t, jwt.SigningMethodHS256, secret, claims))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Subject != "noc-operator" || got.Role != "operator" {
		t.Fatalf("unexpected claims %+v", got)
	}
}

func TestVerifier_Rejections(t *testing.T) {
	secret := []byte("s3cret")
	verifier := NewVerifier(secret, "energy-saving")

	cases := []struct {
		name   string
		token  func() string
		target error
	}{
		{
			name:   "empty",
			token:  func() string { return "" },
			target: ErrEmptyToken,
		},
		{
			name: "no subject",
			token: func() string {
				c := validClaims()
				c.Subject = ""
				return signClaims(t, jwt.SigningMethodHS256, secret, c)
			},
			target: ErrMissingSubject,
		},
		{
			name: "unknown role",
			token: func() string {
				c := validClaims()
				c.Role = "root"
				return signClaims(t, jwt.SigningMethodHS256, secret, c)
			},
			target: ErrUnknownRole,
		},
		{
			name: "other rapp",
			token: func() string {
				c := validClaims()
				c.RApps = []string{"slice-prb"}
				return signClaims(t, jwt.SigningMethodHS256, secret, c)
			},
			target: ErrOtherRApp,
		},
		{
			name: "no expiry",
			token: func() string {
				c := validClaims()
				c.ExpiresAt = nil
				return signClaims(t, jwt.SigningMethodHS256, secret, c)
			},
			target: jwt.ErrTokenRequiredClaimMissing,
		},
		{
			name: "expired beyond skew",
			token: func() string {
				c := validClaims()
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
				return signClaims(t, jwt.SigningMethodHS256, secret, c)
			},
			target: jwt.ErrTokenExpired,
		},
		{
			name: "wrong algorithm",
			token: func() string {
				return signClaims(t, jwt.SigningMethodHS384, secret, validClaims())
			},
			target: jwt.ErrTokenSignatureInvalid,
		},
		{
			name: "wrong secret",
			token: func() string {
				return signClaims(t, jwt.SigningMethodHS256, []byte("other"), validClaims())
			},
			target: jwt.ErrTokenSignatureInvalid,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := verifier.Verify(tc.token())
			if !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
		})
	}
}

func TestVerifier_ToleratesClockSkew(t *testing.T) {
	secret := []byte("s3cret")
	c := validClaims()
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-10 * time.Second))
	if _, err := NewVerifier(secret, "energy-saving").Verify(signClaims(t, jwt.SigningMethodHS256, secret, c)); err != nil {
		t.Fatalf("expected token within skew to pass: %v", err)
	}
}
