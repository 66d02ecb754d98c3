package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignerConfig describes the assertion minted for the token exchange.
type SignerConfig struct {
	KeyID         string
	PrivateKeyPEM string
	// CompanyURI is both issuer and subject.
	CompanyURI string
	Audience   string
	Scopes     []string
	Lifetime   time.Duration
}

// Signer mints RS256 JWT-bearer assertions.
type Signer struct {
	kid        string
	privateKey *rsa.PrivateKey
	companyURI string
	audience   string
	scopes     []string
	lifetime   time.Duration
	now        func() time.Time
}

// NewSigner builds a signer from a PEM encoded PKCS1 or PKCS8 RSA key.
// Escaped newlines, as found in single-line environment values, are accepted.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.KeyID == "" || strings.TrimSpace(cfg.PrivateKeyPEM) == "" {
		return nil, ErrMissingKey
	}
	key, err := parseRSAPrivate(strings.ReplaceAll(cfg.PrivateKeyPEM, `\n`, "\n"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return newSigner(cfg, key), nil
}

// NewEphemeralSigner generates an in-memory key for local runs against a
// token endpoint that does not verify signatures.
func NewEphemeralSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.KeyID == "" {
		cfg.KeyID = "ephemeral-key-1"
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return newSigner(cfg, key), nil
}

func newSigner(cfg SignerConfig, key *rsa.PrivateKey) *Signer {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = time.Hour
	}
	return &Signer{
		kid:        cfg.KeyID,
		privateKey: key,
		companyURI: cfg.CompanyURI,
		audience:   cfg.Audience,
		scopes:     append([]string(nil), cfg.Scopes...),
		lifetime:   cfg.Lifetime,
		now:        time.Now,
	}
}

// Audience shadows the embedded field so it encodes as a single string.
type assertionClaims struct {
	Scopes   []string `json:"scopes"`
	Audience string   `json:"aud,omitempty"`
	jwt.RegisteredClaims
}

// Assertion signs a fresh assertion.
func (s *Signer) Assertion() (string, error) {
	issuedAt := s.now().Truncate(time.Second)
	claims := assertionClaims{
		Scopes:   s.scopes,
		Audience: s.audience,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.companyURI,
			Subject:   s.companyURI,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	return token.SignedString(s.privateKey)
}

// PublicKey is the verification half of the signing key.
func (s *Signer) PublicKey() *rsa.PublicKey {
	return &s.privateKey.PublicKey
}

func parseRSAPrivate(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid private PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}
