package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientTokenRoundTrip(t *testing.T) {
	a, err := NewAuthenticator([]byte("test-secret"))
	require.NoError(t, err)

	token, err := a.GenerateClientToken("client-1")
	require.NoError(t, err)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims.ClientID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	signer, err := NewAuthenticator([]byte("secret-a"))
	require.NoError(t, err)
	verifier, err := NewAuthenticator([]byte("secret-b"))
	require.NoError(t, err)

	token, err := signer.GenerateClientToken("client-1")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	a, err := NewAuthenticator([]byte("test-secret"))
	require.NoError(t, err)

	_, err = a.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	_, err := NewAuthenticator(nil)
	assert.Error(t, err)
}
