package manifest

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "tollgate/pkg/domain-errors"
)

// DigestAlgorithm names a supported content hash.
type DigestAlgorithm string

const (
	SHA256  DigestAlgorithm = "sha256"
	SHA384  DigestAlgorithm = "sha384"
	SHA512  DigestAlgorithm = "sha512"
	SHA3256 DigestAlgorithm = "sha3-256"
)

var digestPattern = regexp.MustCompile(`^(sha256:[0-9a-f]{64}|sha384:[0-9a-f]{96}|sha512:[0-9a-f]{128}|sha3-256:[0-9a-f]{64})$`)

func newHash(alg DigestAlgorithm) (hash.Hash, bool) {
	switch alg {
	case SHA256:
		return sha256.New(), true
	case SHA384:
		return sha512.New384(), true
	case SHA512:
		return sha512.New(), true
	case SHA3256:
		return sha3.New256(), true
	}
	return nil, false
}

// Digest hashes payload and formats it as "<alg>:<hex>".
func Digest(alg DigestAlgorithm, payload []byte) (string, error) {
	h, ok := newHash(alg)
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported digest algorithm %q", alg)
	}
	h.Write(payload)
	return string(alg) + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// ParseDigest validates a formatted digest. Hex must be lowercase and sized
// for the algorithm.
func ParseDigest(s string) (DigestAlgorithm, string, error) {
	if !digestPattern.MatchString(s) {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "digest must be <alg>:<hex> with a supported algorithm")
	}
	alg, hexval, _ := strings.Cut(s, ":")
	return DigestAlgorithm(alg), hexval, nil
}
