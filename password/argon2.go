// Package password hashes credentials with argon2id and encodes them in PHC
// string format, so parameters travel with the hash and can be upgraded.
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

const (
	minMemoryKiB   uint32 = 8 * 1024
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// Config holds the argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher derives and verifies password hashes with fixed parameters.
type Hasher struct {
	cfg Config
}

func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Memory < minMemoryKiB {
		return nil, errors.New("argon2 memory must be >= 8192 KiB")
	}
	if cfg.Time < 1 || cfg.Parallelism < 1 {
		return nil, errors.New("argon2 time and parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength || cfg.KeyLength < minKeyLength {
		return nil, errors.New("argon2 salt and key length must be >= 16")
	}
	return &Hasher{cfg: cfg}, nil
}

// Hash derives a PHC-encoded argon2id hash with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, h.cfg.Time, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.cfg.Memory,
		h.cfg.Time,
		h.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify re-derives the hash with the parameters embedded in encoded and
// compares in constant time.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	memory, timeCost, parallelism, salt, want, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(password), salt, timeCost, memory, parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func parsePHC(encoded string) (memory, timeCost uint32, parallelism uint8, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return 0, 0, 0, nil, nil, errors.New("invalid PHC hash")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, errors.New("unsupported argon2 version")
	}

	for _, pair := range strings.Split(parts[3], ",") {
		k, v, found := strings.Cut(pair, "=")
		if !found {
			return 0, 0, 0, nil, nil, errors.New("invalid PHC parameters")
		}
		n, perr := strconv.ParseUint(v, 10, 32)
		if perr != nil {
			return 0, 0, 0, nil, nil, errors.New("invalid PHC parameters")
		}
		switch k {
		case "m":
			memory = uint32(n)
		case "t":
			timeCost = uint32(n)
		case "p":
			if n > 255 {
				return 0, 0, 0, nil, nil, errors.New("invalid PHC parameters")
			}
			parallelism = uint8(n)
		default:
			return 0, 0, 0, nil, nil, errors.New("invalid PHC parameters")
		}
	}
	if memory == 0 || timeCost == 0 || parallelism == 0 {
		return 0, 0, 0, nil, nil, errors.New("missing PHC parameters")
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return 0, 0, 0, nil, nil, errors.New("invalid PHC salt")
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return 0, 0, 0, nil, nil, errors.New("invalid PHC key")
	}

	return memory, timeCost, parallelism, salt, key, nil
}
