// Package authtest provides signing material and cheap hashers for tests.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"

	"booking_service/internal/auth"
)

var (
	keyOnce sync.Once
	keyPEM  string
	pubPEM  string
	keyErr  error
)

// Keys returns a process-wide RSA pair plus distinct HMAC secrets.
func Keys(t testing.TB) auth.Keys {
	t.Helper()

	keyOnce.Do(func() {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			keyErr = err
			return
		}
		pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
		if err != nil {
			keyErr = err
			return
		}
		keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}))
		pubPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	})
	if keyErr != nil {
		t.Fatalf("generate rsa key: %v", keyErr)
	}

	return auth.Keys{
		PrivateKeyPEM: keyPEM,
		PublicKeyPEM:  pubPEM,
		RefreshSecret: "test-refresh-secret",
		HashSecret:    "test-hash-secret",
	}
}

func NewCodec(t testing.TB, opts ...auth.Option) *auth.TokenCodec {
	t.Helper()

	codec, err := auth.NewTokenCodec(Keys(t), opts...)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return codec
}

// Hasher uses minimal Argon2id cost so tests stay fast.
func Hasher() auth.PasswordHasher {
	return auth.PasswordHasher{
		Pepper: "test-pepper",
		Params: auth.Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
	}
}
