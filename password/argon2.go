// Package password hashes and verifies account passwords with argon2id,
// stored in PHC string format so parameters can be raised over time and
// old hashes upgraded on the next successful login.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcAlgorithm = "argon2id"

// Floor values below which a Params set is rejected outright.
const (
	minMemoryKB    uint32 = 8 * 1024
	minIterations  uint32 = 1
	minParallelism uint8  = 1
	minSaltBytes   uint32 = 16
	minKeyBytes    uint32 = 16
)

// ErrMalformedHash is returned when a stored hash cannot be parsed as a
// PHC argon2id string. Callers should treat the credential as invalid
// rather than surface the parse failure.
var ErrMalformedHash = errors.New("malformed password hash")

// Params are the argon2id cost parameters used for new hashes.
type Params struct {
	MemoryKB    uint32
	Iterations  uint32
	Parallelism uint8
	SaltBytes   uint32
	KeyBytes    uint32
}

// DefaultParams returns a server-grade parameter set.
func DefaultParams() Params {
	return Params{
		MemoryKB:    64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltBytes:   16,
		KeyBytes:    32,
	}
}

func (p Params) validate() error {
	if p.MemoryKB < minMemoryKB {
		return errors.New("argon2 memory must be >= 8192 KB")
	}
	if p.Iterations < minIterations {
		return errors.New("argon2 iterations must be >= 1")
	}
	if p.Parallelism < minParallelism {
		return errors.New("argon2 parallelism must be >= 1")
	}
	if p.SaltBytes < minSaltBytes {
		return errors.New("argon2 salt length must be >= 16 bytes")
	}
	if p.KeyBytes < minKeyBytes {
		return errors.New("argon2 key length must be >= 16 bytes")
	}
	return nil
}

// Hasher derives and checks argon2id hashes. Stateless after construction,
// safe for concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates params and returns a Hasher.
func NewHasher(params Params) (*Hasher, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Hasher{params: params}, nil
}

// Hash derives a PHC-encoded argon2id hash of password with a fresh
// random salt. Password bytes are used exactly as provided.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltBytes)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Iterations,
		h.params.MemoryKB,
		h.params.Parallelism,
		h.params.KeyBytes,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm,
		argon2.Version,
		h.params.MemoryKB,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. The comparison runs in
// constant time over the derived keys.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	stored, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		stored.salt,
		stored.iterations,
		stored.memoryKB,
		stored.parallelism,
		uint32(len(stored.key)),
	)

	return subtle.ConstantTimeCompare(computed, stored.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the Hasher's current ones. Callers rehash on the next successful
// verification, since the plaintext is only available then.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	stored, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	if stored.memoryKB < h.params.MemoryKB {
		return true, nil
	}
	if stored.iterations < h.params.Iterations {
		return true, nil
	}
	if stored.parallelism < h.params.Parallelism {
		return true, nil
	}
	if uint32(len(stored.key)) != h.params.KeyBytes {
		return true, nil
	}
	return false, nil
}

type storedHash struct {
	memoryKB    uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func decodePHC(encoded string) (*storedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != phcAlgorithm {
		return nil, ErrMalformedHash
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return nil, ErrMalformedHash
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return nil, ErrMalformedHash
	}

	var stored storedHash
	for _, field := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, ErrMalformedHash
		}
		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return nil, ErrMalformedHash
			}
			stored.memoryKB = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return nil, ErrMalformedHash
			}
			stored.iterations = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return nil, ErrMalformedHash
			}
			stored.parallelism = uint8(v)
		default:
			return nil, ErrMalformedHash
		}
	}
	if stored.memoryKB == 0 || stored.iterations == 0 || stored.parallelism == 0 {
		return nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltBytes) {
		return nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) < int(minKeyBytes) {
		return nil, ErrMalformedHash
	}

	stored.salt = salt
	stored.key = key
	return &stored, nil
}
