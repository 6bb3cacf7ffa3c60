package token

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT algorithms used by the signers.
const (
	AlgRS256 = "RS256"
	AlgHS256 = "HS256"
)

// KeyPair is one signing key generation. For HS256 only Secret is set; for
// RS256 the private/public pair is set. Exactly one KeyPair in a KeyRing is
// active for signing at a time; retired pairs verify until the retention
// window elapses.
type KeyPair struct {
	KeyID      string
	Algorithm  string
	PrivateKey crypto.PrivateKey
	PublicKey  crypto.PublicKey
	Secret     []byte
	CreatedAt  time.Time
	Active     bool
}

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"`           // Key type (RSA)
	Use string `json:"use,omitempty"` // sig or enc
	Kid string `json:"kid,omitempty"` // Key ID
	Alg string `json:"alg,omitempty"` // Algorithm
	N   string `json:"n,omitempty"`   // Modulus
	E   string `json:"e,omitempty"`   // Exponent
}

// GenerateRSAKeyPair generates a new RSA key pair for RS256 signing.
func GenerateRSAKeyPair(keyID string, bits int, now time.Time) (*KeyPair, error) {
	if bits < 2048 {
		bits = 2048
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	return &KeyPair{
		KeyID:      keyID,
		Algorithm:  AlgRS256,
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		CreatedAt:  now,
	}, nil
}

// GenerateHMACKeyPair generates a random 256-bit shared secret for HS256.
func GenerateHMACKeyPair(keyID string, now time.Time) (*KeyPair, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate HMAC secret: %w", err)
	}
	return &KeyPair{
		KeyID:     keyID,
		Algorithm: AlgHS256,
		Secret:    secret,
		CreatedAt: now,
	}, nil
}

// HMACKeyPairFromSecret wraps an externally supplied shared secret.
func HMACKeyPairFromSecret(keyID, secret string, now time.Time) *KeyPair {
	return &KeyPair{
		KeyID:     keyID,
		Algorithm: AlgHS256,
		Secret:    []byte(secret),
		CreatedAt: now,
	}
}

// GetSigningMethod returns the JWT signing method for this key pair.
func (kp *KeyPair) GetSigningMethod() jwt.SigningMethod {
	if kp.Algorithm == AlgHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodRS256
}

// SecretHex returns the HMAC secret hex-encoded, for export to config.
func (kp *KeyPair) SecretHex() string {
	return hex.EncodeToString(kp.Secret)
}

// ExportPublicKeyPEM exports the public key as PEM.
func (kp *KeyPair) ExportPublicKeyPEM() (string, error) {
	pubKeyBytes, err := x509.MarshalPKIXPublicKey(kp.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	pubKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubKeyBytes,
	})

	return string(pubKeyPEM), nil
}

// ExportPrivateKeyPEM exports the RSA private key as PEM.
func (kp *KeyPair) ExportPrivateKeyPEM() (string, error) {
	rsaKey, ok := kp.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return "", fmt.Errorf("private key is not RSA")
	}

	privateKeyBytes := x509.MarshalPKCS1PrivateKey(rsaKey)
	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: privateKeyBytes,
	})

	return string(privateKeyPEM), nil
}

// ToJWK converts the key pair's public key to JWK format.
func (kp *KeyPair) ToJWK() (*JWK, error) {
	jwk := &JWK{
		Kid: kp.KeyID,
		Use: "sig",
		Alg: kp.Algorithm,
	}

	switch pubKey := kp.PublicKey.(type) {
	case *rsa.PublicKey:
		jwk.Kty = "RSA"
		jwk.N = base64.RawURLEncoding.EncodeToString(pubKey.N.Bytes())
		jwk.E = base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pubKey.E)).Bytes())

	default:
		return nil, fmt.Errorf("unsupported public key type")
	}

	return jwk, nil
}

// LoadKeyPairFromPEM loads an RSA key pair from PEM-encoded strings.
func LoadKeyPairFromPEM(keyID, privateKeyPEM string, createdAt time.Time) (*KeyPair, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	privKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
	}

	return &KeyPair{
		KeyID:      keyID,
		Algorithm:  AlgRS256,
		PrivateKey: privKey,
		PublicKey:  &privKey.PublicKey,
		CreatedAt:  createdAt,
	}, nil
}
