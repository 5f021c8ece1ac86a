package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("doc-1", "docs/doc-1.pdf", "contrato.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	grant, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "doc-1", grant.Subject)
	require.Equal(t, "docs/doc-1.pdf", grant.Key)
	require.Equal(t, "contrato.pdf", grant.Filename)
	require.WithinDuration(t, expiresAt, grant.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return now }
	token, _, err := signer.Generate("doc-1", "docs/doc-1.pdf", "")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = signer.Parse(token)
	require.Error(t, err)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("doc-1", "docs/doc-1.pdf", "a.pdf")
	require.NoError(t, err)

	other := NewSignedURLSigner("other", time.Hour)
	_, err = other.Parse(token)
	require.Error(t, err)

	_, err = signer.Parse(token + "0")
	require.Error(t, err)
}
