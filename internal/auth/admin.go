package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const adminRole = "admin"

// ErrNotAdmin marks tokens that validate but lack the admin role.
var ErrNotAdmin = errors.New("auth: token lacks admin role")

// AdminVerifier validates operator JWTs for the admin surface. Tokens must be
// HS256-signed with the shared secret, carry the pinned issuer and audience,
// and list "admin" in their roles claim.
type AdminVerifier struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Now       func() time.Time
}

// Verify parses and validates a signed admin token, returning its subject.
func (v *AdminVerifier) Verify(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("auth: empty token")
	}
	alg, err := tokenAlgorithm(trimmed)
	if err != nil {
		return "", err
	}
	if alg != jwa.HS256 {
		return "", fmt.Errorf("auth: unexpected token algorithm %s", alg)
	}
	tok, err := jwt.ParseString(trimmed, jwt.WithKey(alg, v.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(v.now)),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return "", fmt.Errorf("auth: validate token: %w", err)
	}
	if !hasRole(tok, adminRole) {
		return "", ErrNotAdmin
	}
	return tok.Subject(), nil
}

func (v *AdminVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func hasRole(tok jwt.Token, want string) bool {
	raw, ok := tok.Get("roles")
	if !ok {
		return false
	}
	switch roles := raw.(type) {
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok && s == want {
				return true
			}
		}
	case []string:
		for _, r := range roles {
			if r == want {
				return true
			}
		}
	case string:
		return roles == want
	}
	return false
}

// tokenAlgorithm reads the signature algorithm from the protected headers
// before any key material is applied. Unsigned tokens and tokens mixing
// algorithms across signatures are rejected here.
func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", fmt.Errorf("auth: parse signature: %w", err)
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token has no signatures")
	}
	var alg jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		got := headers.Algorithm()
		if got == "" || got == jwa.NoSignature {
			return "", errors.New("auth: token algorithm not allowed")
		}
		if alg == "" {
			alg = got
		} else if alg != got {
			return "", errors.New("auth: mixed token algorithms")
		}
	}
	return alg, nil
}
