package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwk"
	"github.com/lestrrat-go/jwx/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://auth.example.test/realms/notes"

func TestStateRoundTrip(t *testing.T) {
	state := &State{CameFrom: "http://localhost:4444/notes"}
	encoded, err := state.Encode("nonce-123")
	require.NoError(t, err)

	parsed, nonce, err := ParseState(encoded)
	require.NoError(t, err)
	assert.Equal(t, "nonce-123", nonce)
	assert.Equal(t, state.CameFrom, parsed.CameFrom)
}

func TestParseStateRejectsGarbage(t *testing.T) {
	for name, param := range map[string]string{
		"empty":      "",
		"not base64": "%%%",
		"not json":   "bm90LWpzb24=",
		"no nonce":   "e30=",
	} {
		param := param
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseState(param)
			assert.Error(t, err)
		})
	}
}

func newSigningKey(t *testing.T) (jwk.Key, jwk.Set) {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := jwk.New(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	pub, err := jwk.PublicKeyOf(key)
	require.NoError(t, err)
	set := jwk.NewSet()
	set.Add(pub)
	return key, set
}

func signToken(t *testing.T, key jwk.Key, issuer string, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.New()
	require.NoError(t, token.Set(jwt.IssuerKey, issuer))
	require.NoError(t, token.Set(jwt.SubjectKey, subject))
	require.NoError(t, token.Set(jwt.ExpirationKey, expires))
	signed, err := jwt.Sign(token, jwa.RS256, key)
	require.NoError(t, err)
	return string(signed)
}

func TestParseToken(t *testing.T) {
	key, set := newSigningKey(t)

	t.Run("valid token yields identity", func(t *testing.T) {
		token, err := ParseToken(signToken(t, key, testIssuer, "alice", time.Now().Add(time.Hour)), set, testIssuer)
		require.NoError(t, err)
		id, err := IdentityFromToken(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", id.Subject)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := ParseToken(signToken(t, key, "https://evil.test", "alice", time.Now().Add(time.Hour)), set, testIssuer)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := ParseToken(signToken(t, key, testIssuer, "alice", time.Now().Add(-time.Hour)), set, testIssuer)
		assert.Error(t, err)
	})

	t.Run("foreign key", func(t *testing.T) {
		other, _ := newSigningKey(t)
		_, err := ParseToken(signToken(t, other, testIssuer, "alice", time.Now().Add(time.Hour)), set, testIssuer)
		assert.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, err := ParseToken(signToken(t, key, testIssuer, "", time.Now().Add(time.Hour)), set, testIssuer)
		require.NoError(t, err)
		_, err = IdentityFromToken(token)
		assert.Error(t, err)
	})
}
