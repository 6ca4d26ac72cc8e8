package services

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

var errMalformedHash = errors.New("malformed argon2id hash")

// PasswordHasher is the hash/verify capability used by the account flow.
type PasswordHasher interface {
	Hash(raw string) (string, error)
	Verify(raw, hashed string) bool
}

// Argon2Hasher hashes new passwords with argon2id and still accepts bcrypt
// hashes written by earlier deployments. Zero fields take the defaults.
type Argon2Hasher struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  int
	KeyLength   int
}

func (h Argon2Hasher) withDefaults() Argon2Hasher {
	if h.Memory == 0 {
		h.Memory = 64 * 1024
	}
	if h.Iterations == 0 {
		h.Iterations = 3
	}
	if h.Parallelism == 0 {
		h.Parallelism = 1
	}
	if h.SaltLength == 0 {
		h.SaltLength = 16
	}
	if h.KeyLength == 0 {
		h.KeyLength = 32
	}
	return h
}

func (h Argon2Hasher) key(raw string, salt []byte, length int) []byte {
	return argon2.IDKey([]byte(raw), salt, h.Iterations, h.Memory, h.Parallelism, uint32(length))
}

// Hash returns the PHC string form: $argon2id$v=19$m=..,t=..,p=..$salt$key.
func (h Argon2Hasher) Hash(raw string) (string, error) {
	h = h.withDefaults()
	salt := make([]byte, h.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Iterations, h.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(h.key(raw, salt, h.KeyLength))), nil
}

func (h Argon2Hasher) Verify(raw, hashed string) bool {
	if !strings.HasPrefix(hashed, "$argon2") {
		return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(raw)) == nil
	}
	stored, salt, want, err := parseArgon2id(hashed)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(want, stored.key(raw, salt, len(want))) == 1
}

// parseArgon2id returns the cost parameters, salt and key of a stored hash.
func parseArgon2id(encoded string) (Argon2Hasher, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Argon2Hasher{}, nil, nil, errMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Argon2Hasher{}, nil, nil, errMalformedHash
	}
	var params Argon2Hasher
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return Argon2Hasher{}, nil, nil, errMalformedHash
	}
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		return Argon2Hasher{}, nil, nil, errMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Hasher{}, nil, nil, errMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Argon2Hasher{}, nil, nil, errMalformedHash
	}
	return params, salt, key, nil
}
