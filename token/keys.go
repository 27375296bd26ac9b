package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"math/big"

	"github.com/pkg/errors"
)

// KeyPair holds the RSA keys used to sign and verify tokens. Verification
// only needs the public key, so verify-only deployments may leave
// PrivateKey nil.
type KeyPair struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// JWKS represents a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a single JSON Web Key.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// GenerateKeyPair generates a new RSA key pair for RS256 signing.
func GenerateKeyPair(keyID string, bits int) (*KeyPair, error) {
	if bits < 2048 {
		bits = 2048
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, errors.Wrap(err, "[GenerateKeyPair] rsa.GenerateKey")
	}
	return &KeyPair{
		KeyID:      keyID,
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}, nil
}

// LoadKeyPairFromPEM reconstructs a key pair from PEM-encoded key material.
// privatePEM may be empty for a verify-only key pair.
func LoadKeyPairFromPEM(keyID, privatePEM, publicPEM string) (*KeyPair, error) {
	kp := &KeyPair{KeyID: keyID}

	if privatePEM != "" {
		block, _ := pem.Decode([]byte(privatePEM))
		if block == nil {
			return nil, errors.New("[LoadKeyPairFromPEM] no PEM block in private key")
		}
		privateKey, err := parsePrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "[LoadKeyPairFromPEM] private key")
		}
		kp.PrivateKey = privateKey
		kp.PublicKey = &privateKey.PublicKey
	}

	if publicPEM != "" {
		block, _ := pem.Decode([]byte(publicPEM))
		if block == nil {
			return nil, errors.New("[LoadKeyPairFromPEM] no PEM block in public key")
		}
		publicKey, err := parsePublicKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "[LoadKeyPairFromPEM] public key")
		}
		kp.PublicKey = publicKey
	}

	if kp.PublicKey == nil {
		return nil, errors.New("[LoadKeyPairFromPEM] no key material supplied")
	}
	return kp, nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an RSA private key")
	}
	return key, nil
}

func parsePublicKey(der []byte) (*rsa.PublicKey, error) {
	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return key, nil
}

// ExportPrivateKeyPEM exports the private key in PKCS#8 PEM form.
func (kp *KeyPair) ExportPrivateKeyPEM() (string, error) {
	if kp.PrivateKey == nil {
		return "", errors.New("[ExportPrivateKeyPEM] key pair has no private key")
	}
	der, err := x509.MarshalPKCS8PrivateKey(kp.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "[ExportPrivateKeyPEM] x509.MarshalPKCS8PrivateKey")
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// ExportPublicKeyPEM exports the public key in PKIX PEM form.
func (kp *KeyPair) ExportPublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(kp.PublicKey)
	if err != nil {
		return "", errors.Wrap(err, "[ExportPublicKeyPEM] x509.MarshalPKIXPublicKey")
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// ToJWKS returns the verification key as a JSON Web Key Set for
// distribution to resource servers.
func (kp *KeyPair) ToJWKS() *JWKS {
	return &JWKS{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Kid: kp.KeyID,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(kp.PublicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(kp.PublicKey.E)).Bytes()),
	}}}
}
