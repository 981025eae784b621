// Package testutil provides RSA key material for package tests.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// KeyPair is an RSA key pair in the PEM forms Stone Banking expects.
type KeyPair struct {
	Key        *rsa.PrivateKey
	PublicPEM  string
	PrivatePEM string
}

var sharedKeyPair = sync.OnceValues(generate)

// SharedKeyPair returns a key pair generated once per test binary.
func SharedKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	kp, err := sharedKeyPair()
	if err != nil {
		t.Fatalf("failed to generate shared key pair: %v", err)
	}
	return kp
}

// NewKeyPair generates a key pair for tests that need a distinct key.
func NewKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	kp, err := generate()
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}
	return kp
}

// WriteFiles stores the key pair in a temporary directory and returns both paths.
func (kp *KeyPair) WriteFiles(t *testing.T) (publicPath, privatePath string) {
	t.Helper()
	dir := t.TempDir()
	publicPath = filepath.Join(dir, "rsa-publickey-file.pub")
	privatePath = filepath.Join(dir, "rsa-privatekey-file.pem")
	if err := os.WriteFile(publicPath, []byte(kp.PublicPEM), 0o600); err != nil {
		t.Fatalf("failed to write public key: %v", err)
	}
	if err := os.WriteFile(privatePath, []byte(kp.PrivatePEM), 0o600); err != nil {
		t.Fatalf("failed to write private key: %v", err)
	}
	return publicPath, privatePath
}

func generate() (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	publicDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		Key: privateKey,
		PublicPEM: string(pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: publicDER,
		})),
		PrivatePEM: string(pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
		})),
	}, nil
}
