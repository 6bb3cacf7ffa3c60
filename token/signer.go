package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer signs claims with the ring's active key and resolves verification
// keys by the token's declared key ID.
type Signer interface {
	// Sign creates a signed JWT from claims under the active key.
	Sign(claims jwt.MapClaims) (string, error)

	// Keyfunc resolves the verification key for a parsed token header.
	Keyfunc(token *jwt.Token) (any, error)

	// Method returns the JWT signing method used.
	Method() jwt.SigningMethod
}

// HMACSigner implements Signer using symmetric HMAC-SHA256. Tokens without a
// key-id claim fall back to the active key, since symmetric deployments may
// omit kid.
type HMACSigner struct {
	ring *KeyRing
}

func NewHMACSigner(ring *KeyRing) *HMACSigner {
	return &HMACSigner{ring: ring}
}

func (h *HMACSigner) Sign(claims jwt.MapClaims) (string, error) {
	kp := h.ring.Active()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = kp.KeyID
	signedToken, err := token.SignedString(kp.Secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signedToken, nil
}

func (h *HMACSigner) Keyfunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return h.ring.Active().Secret, nil
	}
	kp, err := h.ring.VerificationKey(kid)
	if err != nil {
		return nil, err
	}
	return kp.Secret, nil
}

func (h *HMACSigner) Method() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

// KeyPairSigner implements Signer using RSA key pairs. The kid header is
// mandatory for verification key selection.
type KeyPairSigner struct {
	ring *KeyRing
}

func NewKeyPairSigner(ring *KeyRing) *KeyPairSigner {
	return &KeyPairSigner{ring: ring}
}

func (a *KeyPairSigner) Sign(claims jwt.MapClaims) (string, error) {
	kp := a.ring.Active()
	token := jwt.NewWithClaims(kp.GetSigningMethod(), claims)
	token.Header["kid"] = kp.KeyID

	signedToken, err := token.SignedString(kp.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with asymmetric key")
	}
	return signedToken, nil
}

func (a *KeyPairSigner) Keyfunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("token missing kid header")
	}
	kp, err := a.ring.VerificationKey(kid)
	if err != nil {
		return nil, err
	}
	return kp.PublicKey, nil
}

func (a *KeyPairSigner) Method() jwt.SigningMethod {
	return a.ring.Active().GetSigningMethod()
}

// GetJWKS returns the JSON Web Key Set for all verifiable keys (asymmetric
// signers only).
func (a *KeyPairSigner) GetJWKS() (*JWKS, error) {
	a.ring.mu.RLock()
	defer a.ring.mu.RUnlock()

	jwks := &JWKS{}
	for _, kp := range a.ring.keys {
		if kp.Algorithm != AlgRS256 {
			continue
		}
		jwk, err := kp.ToJWK()
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert key to JWK")
		}
		jwks.Keys = append(jwks.Keys, *jwk)
	}
	return jwks, nil
}

// NewSigner builds a signer for the configured scheme ("hmac" or "rsa").
func NewSigner(signerType string, ring *KeyRing) (Signer, error) {
	switch signerType {
	case "hmac":
		return NewHMACSigner(ring), nil
	case "rsa":
		return NewKeyPairSigner(ring), nil
	default:
		return nil, errors.Errorf("unsupported signer type: %s", signerType)
	}
}
