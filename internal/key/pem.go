package key

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// DecodeRSAPrivateKey parses a PKCS#1 or PKCS#8 RSA private key in PEM form.
func DecodeRSAPrivateKey(p string) (*rsa.PrivateKey, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(p))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return privateKey, nil
}

// DecodeRSAPublicKey parses a PKIX or PKCS#1 RSA public key (or certificate) in PEM form.
func DecodeRSAPublicKey(p string) (*rsa.PublicKey, error) {
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(p))
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return publicKey, nil
}

// MarshalPublicKeyDER returns the PKIX DER encoding of publicKey.
func MarshalPublicKeyDER(publicKey *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return der, nil
}
