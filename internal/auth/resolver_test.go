package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexedge/aigateway/pkg/errors"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestResolveValidToken(t *testing.T) {
	r := NewResolver(testSecret)

	token := signToken(t, jwt.MapClaims{
		"sub":   "user-1",
		"email": "alice@example.com",
		"name":  "Alice",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	id, err := r.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.SubjectID)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.Equal(t, "Alice", id.DisplayName)
}

func TestResolveSubjectFallbacks(t *testing.T) {
	r := NewResolver(testSecret)

	token := signToken(t, jwt.MapClaims{
		"userId": "user-2",
		"email":  "bob@example.com",
	}, testSecret)

	id, err := r.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", id.SubjectID)

	token = signToken(t, jwt.MapClaims{
		"id":    "user-3",
		"email": "carol@example.com",
	}, testSecret)

	id, err = r.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "user-3", id.SubjectID)
}

func TestResolveNameFallsBackToEmailLocalPart(t *testing.T) {
	r := NewResolver(testSecret)

	token := signToken(t, jwt.MapClaims{
		"sub":   "user-4",
		"email": "dave@example.com",
	}, testSecret)

	id, err := r.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "dave", id.DisplayName)
}

func TestResolveBadSignature(t *testing.T) {
	r := NewResolver(testSecret)

	token := signToken(t, jwt.MapClaims{
		"sub":   "user-1",
		"email": "alice@example.com",
	}, "wrong-secret")

	_, err := r.Resolve(token)
	require.Error(t, err)
	assert.Equal(t, 403, errors.AsGatewayError(err).HTTPStatusCode())
}

func TestResolveExpiredToken(t *testing.T) {
	r := NewResolver(testSecret)

	token := signToken(t, jwt.MapClaims{
		"sub":   "user-1",
		"email": "alice@example.com",
		"exp":   time.Now().Add(-time.Hour).Unix(),
	}, testSecret)

	_, err := r.Resolve(token)
	require.Error(t, err)
	assert.Equal(t, 403, errors.AsGatewayError(err).HTTPStatusCode())
}

func TestResolveMissingClaims(t *testing.T) {
	r := NewResolver(testSecret)

	// Verified token without subject or email is malformed, not invalid.
	token := signToken(t, jwt.MapClaims{"foo": "bar"}, testSecret)

	_, err := r.Resolve(token)
	require.Error(t, err)
	assert.Equal(t, 400, errors.AsGatewayError(err).HTTPStatusCode())
}

func TestExtractBearer(t *testing.T) {
	token, err := ExtractBearer("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	for _, header := range []string{"", "Basic abc", "Bearer ", "abc.def.ghi"} {
		_, err := ExtractBearer(header)
		require.Error(t, err, "header %q", header)
		assert.Equal(t, 401, errors.AsGatewayError(err).HTTPStatusCode())
	}
}
