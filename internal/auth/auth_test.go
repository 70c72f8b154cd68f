package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/jobconsole/internal/domain"
)

func TestTokenSource(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	t.Run("Should serve an opaque token as a bearer token", func(t *testing.T) {
		tok, err := TokenSource("  opaque-token ").Token()

		require.NoError(t, err)
		assert.Equal(t, "opaque-token", tok.AccessToken)
		assert.Equal(t, "Bearer", tok.Type())
		assert.True(t, tok.Expiry.IsZero())
	})

	t.Run("Should carry the expiry of a live JWT", func(t *testing.T) {
		raw, err := issuer.Issue("user-1")
		require.NoError(t, err)

		tok, err := TokenSource(raw).Token()

		require.NoError(t, err)
		assert.Equal(t, raw, tok.AccessToken)
		assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, 5*time.Second)
	})

	t.Run("Should refuse an expired JWT", func(t *testing.T) {
		raw, err := issuer.issueAt("user-1", time.Now().Add(-2*time.Hour))
		require.NoError(t, err)

		_, err = TokenSource(raw).Token()

		assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	})

	t.Run("Should refuse an empty token", func(t *testing.T) {
		_, err := TokenSource("").Token()

		assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	})
}

func TestIssuerValidate(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	t.Run("Should return the subject of a valid token", func(t *testing.T) {
		raw, err := issuer.Issue("user-1")
		require.NoError(t, err)

		sub, err := issuer.Validate(raw)

		require.NoError(t, err)
		assert.Equal(t, "user-1", sub)
	})

	t.Run("Should reject a token signed with another secret", func(t *testing.T) {
		raw, err := NewIssuer("other", time.Hour).Issue("user-1")
		require.NoError(t, err)

		_, err = issuer.Validate(raw)

		assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	})

	t.Run("Should reject an expired token", func(t *testing.T) {
		raw, err := issuer.issueAt("user-1", time.Now().Add(-2*time.Hour))
		require.NoError(t, err)

		_, err = issuer.Validate(raw)

		assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	})

	t.Run("Should reject garbage", func(t *testing.T) {
		_, err := issuer.Validate("not-a-token")

		assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	})
}
