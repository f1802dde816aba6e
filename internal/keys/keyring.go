package keys

import (
	"crypto"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoActiveKey is returned when no signing key is configured for a kind.
var ErrNoActiveKey = errors.New("no active signing key")

// SigningKey is a private key with its JWS parameters.
type SigningKey struct {
	KID    string
	Signer crypto.Signer
	Method jwt.SigningMethod
}

// NewSigningKey picks the JWS method for signer. An empty kid defaults to the
// public key thumbprint.
func NewSigningKey(kid string, signer crypto.Signer) (*SigningKey, error) {
	alg, err := AlgorithmOf(signer.Public())
	if err != nil {
		return nil, err
	}
	if kid == "" {
		if kid, err = ThumbprintOf(signer.Public()); err != nil {
			return nil, err
		}
	}
	return &SigningKey{KID: kid, Signer: signer, Method: MethodFor(alg)}, nil
}

// MethodFor maps an algorithm onto its golang-jwt signing method.
func MethodFor(alg Algorithm) jwt.SigningMethod {
	if alg == AlgES256 {
		return jwt.SigningMethodES256
	}
	return jwt.SigningMethodEdDSA
}

// Keyring holds the node's active signing key per kind. Activating a key
// pins its public half in the trust store.
type Keyring struct {
	mu     sync.RWMutex
	store  *Store
	owner  string
	active map[Kind]*SigningKey
}

// NewKeyring creates a keyring whose public keys are pinned into store
// under owner.
func NewKeyring(store *Store, owner string) *Keyring {
	return &Keyring{store: store, owner: owner, active: make(map[Kind]*SigningKey)}
}

// Activate makes key the signer for kind. Previously active keys stay
// trusted so tokens they signed keep verifying until expiry.
func (r *Keyring) Activate(kind Kind, key *SigningKey) error {
	tk, err := NewTrustedKey(key.KID, kind, r.owner, key.Signer.Public(), time.Time{})
	if err != nil {
		return fmt.Errorf("activate %s key: %w", kind, err)
	}
	r.store.Pin(tk)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[kind] = key
	return nil
}

// Active returns the signing key for kind.
func (r *Keyring) Active(kind Kind) (*SigningKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.active[kind]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoActiveKey, kind)
	}
	return k, nil
}
