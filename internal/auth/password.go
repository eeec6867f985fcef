package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2Params controls Argon2id cost. MemoryKiB is in KiB as argon2.IDKey expects.
type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// PasswordHasher hashes password+pepper with Argon2id. Hashes written by the
// previous bcrypt scheme still verify.
type PasswordHasher struct {
	Pepper string
	Params Argon2Params
}

func NewPasswordHasher(pepper string) PasswordHasher {
	return PasswordHasher{Pepper: pepper, Params: DefaultArgon2Params()}
}

// Hash returns $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>.
func (h PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("auth.Hash: password is empty")
	}

	salt := make([]byte, h.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth.Hash: salt: %w", err)
	}

	key := argon2.IDKey([]byte(password+h.Pepper), salt,
		h.Params.Iterations, h.Params.MemoryKiB, h.Params.Parallelism, h.Params.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.Params.MemoryKiB, h.Params.Iterations, h.Params.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// Verify returns (true, nil) on match, (false, nil) on mismatch and
// (false, ErrInvalidHash) for malformed or unsupported hashes.
func (h PasswordHasher) Verify(encoded, password string) (bool, error) {
	if strings.HasPrefix(encoded, "$2") {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password+h.Pepper))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, ErrInvalidHash
		}
	}

	params, salt, expected, err := decodeArgon2id(encoded)
	if err != nil {
		return false, err
	}
	// Refuse hashes whose cost is far above ours; the string comes from storage
	// but must not be able to pin the CPU.
	if params.MemoryKiB > h.Params.MemoryKiB*2 || params.Iterations > h.Params.Iterations*2 {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(password+h.Pepper), salt,
		params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(expected)))

	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func decodeArgon2id(encoded string) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}

	params := Argon2Params{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}
	return params, salt, key, nil
}
