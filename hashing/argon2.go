// Package hashing computes and verifies salted argon2id hashes for user
// passwords and client secrets. Hash strings are self-contained PHC
// encodings carrying the cost parameters and salt, so verification needs no
// separate salt storage.
package hashing

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

const (
	saltLength = 16
	phcVersion = argon2.Version
)

// Params are the argon2id cost parameters. Memory is in KiB.
type Params struct {
	Time        uint32
	Memory      uint32
	Parallelism uint8
	KeyLength   uint32
}

// DefaultParams follows the OWASP argon2id baseline.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Parallelism: 1, KeyLength: 32}

// Hasher computes and verifies argon2id hashes. Concurrent computations are
// bounded by a weighted semaphore so the deliberately expensive key
// derivation cannot monopolise the scheduler under a burst of grant
// requests.
type Hasher struct {
	params    Params
	sem       *semaphore.Weighted
	dummyHash string
}

// New returns a Hasher with the given cost parameters, allowing at most
// maxConcurrent key derivations at a time.
func New(params Params, maxConcurrent int64) *Hasher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	h := &Hasher{
		params: params,
		sem:    semaphore.NewWeighted(maxConcurrent),
	}
	// Fixed-input hash used by DummyVerify to equalise the cost of
	// rejecting unknown users and rejecting wrong passwords.
	h.dummyHash = h.encode([]byte("decoy-salt-16byt"), h.derive("decoy-password", []byte("decoy-salt-16byt"), params))
	return h
}

// ComputeHash derives an argon2id hash over the secret with a fresh random
// salt and returns the PHC-encoded string.
func (h *Hasher) ComputeHash(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "[Hasher.ComputeHash] rand.Read")
	}
	key := h.derive(secret, salt, h.params)
	return h.encode(salt, key), nil
}

// VerifyHash checks the attempt against a PHC-encoded hash string. It never
// returns an error: malformed hashes, unknown versions, and mismatches all
// verify as false. Cost parameters are taken from the hash itself so
// previously issued hashes stay verifiable after a configuration change.
func (h *Hasher) VerifyHash(hash, attempt string) bool {
	params, salt, key, err := decode(hash)
	if err != nil {
		return false
	}
	derived := h.derive(attempt, salt, params)
	return subtle.ConstantTimeCompare(derived, key) == 1
}

// DummyVerify burns the same key-derivation cost as a real verification and
// discards the result. Called when the user does not exist so response
// latency does not reveal which credential was wrong.
func (h *Hasher) DummyVerify(attempt string) {
	h.VerifyHash(h.dummyHash, attempt)
}

func (h *Hasher) derive(secret string, salt []byte, p Params) []byte {
	_ = h.sem.Acquire(context.Background(), 1)
	defer h.sem.Release(1)
	return argon2.IDKey([]byte(secret), salt, p.Time, p.Memory, p.Parallelism, p.KeyLength)
}

func (h *Hasher) encode(salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcVersion, h.params.Memory, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func decode(hash string) (Params, []byte, []byte, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, errors.New("not an argon2id PHC string")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != phcVersion {
		return Params{}, nil, nil, errors.New("unsupported argon2 version")
	}

	var params Params
	for _, field := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			return Params{}, nil, nil, errors.New("malformed cost parameters")
		}
		n, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil {
			return Params{}, nil, nil, errors.Wrap(err, "malformed cost parameter value")
		}
		switch kv[0] {
		case "m":
			params.Memory = uint32(n)
		case "t":
			params.Time = uint32(n)
		case "p":
			params.Parallelism = uint8(n)
		}
	}
	if params.Memory == 0 || params.Time == 0 || params.Parallelism == 0 {
		return Params{}, nil, nil, errors.New("missing cost parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, errors.Wrap(err, "malformed salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, errors.Wrap(err, "malformed key")
	}
	params.KeyLength = uint32(len(key))
	return params, salt, key, nil
}
