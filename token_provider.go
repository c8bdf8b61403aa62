package main

import (
	"crypto/rsa"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenProvider supplies the credential attached to outbound update requests.
// The original deployment shipped a static bearer value baked into the client;
// here the value always comes from runtime configuration, and deployments that
// can rotate keys use the JWT provider instead.
type TokenProvider interface {
	Token() (token string, err error)
}

type StaticTokenProvider struct {
	value string
}

func NewStaticTokenProvider(value string) (*StaticTokenProvider, error) {
	if value == "" {
		return nil, fmt.Errorf("static token is empty")
	}
	return &StaticTokenProvider{value: value}, nil
}

func (p *StaticTokenProvider) Token() (string, error) {
	return p.value, nil
}

// ------------------------------------------------------------------------------

type JwtTokenProvider struct {
	privateKey *rsa.PrivateKey
	issuer     string
	ttl        time.Duration

	mutex  sync.Mutex
	cached string
	expiry time.Time
}

func NewJwtTokenProvider(privateKeyPath string, issuer string, ttl time.Duration) (*JwtTokenProvider, error) {
	keyBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, err
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &JwtTokenProvider{
		privateKey: privateKey,
		issuer:     issuer,
		ttl:        ttl,
	}, nil
}

// Token returns a signed RS256 service token, reusing the previous one until
// shortly before it expires.
func (p *JwtTokenProvider) Token() (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	if p.cached != "" && now.Before(p.expiry.Add(-30*time.Second)) {
		return p.cached, nil
	}

	expiry := now.Add(p.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    p.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}

	p.cached = signed
	p.expiry = expiry
	return signed, nil
}
