package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func TestStaticTokenProvider(t *testing.T) {
	provider, err := NewStaticTokenProvider("secret-value")
	require.NoError(t, err)

	token, err := provider.Token()
	require.NoError(t, err)
	require.Equal(t, "secret-value", token)
}

func TestStaticTokenProviderRejectsEmpty(t *testing.T) {
	_, err := NewStaticTokenProvider("")
	require.Error(t, err)
}

func writeTestPrivateKey(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path, key
}

func TestJwtTokenProviderSignsValidToken(t *testing.T) {
	keyPath, key := writeTestPrivateKey(t)

	provider, err := NewJwtTokenProvider(keyPath, "cnic-capture", time.Minute)
	require.NoError(t, err)

	signed, err := provider.Token()
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	require.Equal(t, "cnic-capture", claims.Issuer)
	require.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJwtTokenProviderCachesUntilExpiry(t *testing.T) {
	keyPath, _ := writeTestPrivateKey(t)

	provider, err := NewJwtTokenProvider(keyPath, "cnic-capture", time.Hour)
	require.NoError(t, err)

	first, err := provider.Token()
	require.NoError(t, err)
	second, err := provider.Token()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestJwtTokenProviderMissingKeyFile(t *testing.T) {
	_, err := NewJwtTokenProvider("/does/not/exist.pem", "x", time.Minute)
	require.Error(t, err)
}
