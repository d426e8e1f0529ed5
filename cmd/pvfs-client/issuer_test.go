package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFileIssuerIssuesSignedCredential(t *testing.T) {
	dir := t.TempDir()
	keypath := filepath.Join(dir, "key")
	require.NoError(t, os.WriteFile(keypath, []byte("secret"), 0o600))

	issuer, err := newKeyFileIssuer(keypath, time.Hour)
	require.NoError(t, err)

	cred, err := issuer.Issue(context.Background(), 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), cred.UID)
	assert.NotEmpty(t, cred.Signature)
	assert.False(t, cred.Negative)
	assert.True(t, cred.ExpiresAt.After(time.Now()))
}

func TestKeyFileIssuerMissingKeypathFileErrors(t *testing.T) {
	_, err := newKeyFileIssuer("/nonexistent/path/to/key", time.Hour)
	assert.Error(t, err)
}

func TestKeyFileIssuerEmptyKeypathStillIssues(t *testing.T) {
	issuer, err := newKeyFileIssuer("", 0)
	require.NoError(t, err)

	cred, err := issuer.Issue(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, cred.Signature)
}
