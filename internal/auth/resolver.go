// Package auth verifies bearer tokens and resolves them to caller
// identities. Tokens are HS256 JWTs issued by the upstream application.
package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lexedge/aigateway/pkg/errors"
)

// Identity is the verified caller extracted from a token.
type Identity struct {
	SubjectID   string
	Email       string
	DisplayName string
}

// Resolver verifies HS256 bearer tokens.
type Resolver struct {
	secret []byte
}

// NewResolver creates a resolver with the given shared signing secret.
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

type tokenClaims struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	UserID string `json:"userId"`
	ID     string `json:"id"`
	jwt.RegisteredClaims
}

// Resolve verifies the token and extracts the caller identity.
// The subject id is taken from the sub claim, falling back to userId
// then id. A verified token without a usable subject or email is
// rejected as malformed.
func (r *Resolver) Resolve(token string) (*Identity, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.NewInvalidCredential()
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.UserID
	}
	if subject == "" {
		subject = claims.ID
	}
	if subject == "" || claims.Email == "" {
		return nil, errors.NewMalformedClaims()
	}

	name := claims.Name
	if name == "" {
		// Fall back to the local part of the email.
		name = claims.Email
		if i := strings.Index(name, "@"); i > 0 {
			name = name[:i]
		}
	}

	return &Identity{
		SubjectID:   subject,
		Email:       claims.Email,
		DisplayName: name,
	}, nil
}

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(header string) (string, error) {
	const prefix = "Bearer "
	if header == "" || !strings.HasPrefix(header, prefix) {
		return "", errors.NewMissingCredential()
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errors.NewMissingCredential()
	}
	return token, nil
}
