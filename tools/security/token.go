package security

import (
	"crypto/rsa"
	"fmt"
	"os"

	"PrivChat/tools/errs"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Verifier checks identity tokens issued by the external credential service.
// The public key is loaded exactly once at construction; there is never
// per-call key material.
type Verifier struct {
	publicKey *rsa.PublicKey
}

// IdentityClaims is the subset of the token payload the gateway cares about.
type IdentityClaims struct {
	UserID   string
	Email    string
	Nickname string
}

// NewVerifier parses an RS256 public key in PEM form.
func NewVerifier(publicKeyPEM []byte) (*Verifier, error) {
	key, err := jwtlib.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, errs.WrapMsg(err, "parse identity public key")
	}
	return &Verifier{publicKey: key}, nil
}

// NewVerifierFromFile reads the PEM from disk (default deployment layout keeps
// it next to the binary as public.pem).
func NewVerifierFromFile(path string) (*Verifier, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapMsg(err, "read identity public key", "path", path)
	}
	return NewVerifier(pem)
}

// Verify validates the signature and expiry, then extracts the identity.
// Every failure mode (bad signature, malformed token, expired token, missing
// subject) comes back as ErrAuthentication; nothing escapes as a panic.
func (v *Verifier) Verify(token string) (*IdentityClaims, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// RS256 family only; reject alg confusion outright.
		if _, ok := t.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return v.publicKey, nil
	}, jwtlib.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, errs.ErrAuthentication.WrapMsg("token verify", "err", err)
	}
	if !parsed.Valid {
		return nil, errs.ErrAuthentication.Wrap()
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errs.ErrAuthentication.WrapMsg("claims type mismatch")
	}

	out := &IdentityClaims{
		UserID:   firstString(claims, "userId", "sub", "id"),
		Email:    stringClaim(claims, "email"),
		Nickname: stringClaim(claims, "nickname"),
	}
	if out.UserID == "" {
		return nil, errs.ErrAuthentication.WrapMsg("token missing userId, id, or sub")
	}
	return out, nil
}

func stringClaim(m jwtlib.MapClaims, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func firstString(m jwtlib.MapClaims, keys ...string) string {
	for _, k := range keys {
		if s := stringClaim(m, k); s != "" {
			return s
		}
	}
	return ""
}
