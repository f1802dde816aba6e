package keys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileSource loads keys from a YAML document:
//
//	keys:
//	  - kid: issuer-2026-01
//	    kind: issuer
//	    owner: tollgate-issuer
//	    pem_file: issuer-2026-01.pem
//	    not_after: 2027-01-01T00:00:00Z
//
// pem_file is resolved relative to the document. A literal pem field may be
// used instead.
type FileSource struct {
	Path string
}

type fileDocument struct {
	Keys []fileEntry `yaml:"keys"`
}

type fileEntry struct {
	KID      string    `yaml:"kid"`
	Kind     string    `yaml:"kind"`
	Owner    string    `yaml:"owner"`
	PEM      string    `yaml:"pem"`
	PEMFile  string    `yaml:"pem_file"`
	NotAfter time.Time `yaml:"not_after"`
	Revoked  bool      `yaml:"revoked"`
}

// Load implements Source.
func (f FileSource) Load(_ context.Context) ([]*TrustedKey, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}

	out := make([]*TrustedKey, 0, len(doc.Keys))
	for i, e := range doc.Keys {
		kind, err := ParseKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		pemData := []byte(e.PEM)
		if e.PEMFile != "" {
			p := e.PEMFile
			if !filepath.IsAbs(p) {
				p = filepath.Join(filepath.Dir(f.Path), p)
			}
			if pemData, err = os.ReadFile(p); err != nil {
				return nil, fmt.Errorf("key %d: read pem: %w", i, err)
			}
		}
		pub, err := ParsePublicKeyPEM(pemData)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		k, err := NewTrustedKey(e.KID, kind, e.Owner, pub, e.NotAfter.UTC())
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		k.Revoked = e.Revoked
		out = append(out, k)
	}
	return out, nil
}
