package pricing

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"tollgate/pkg/domain"
	"tollgate/pkg/platform/sentinel"
)

// Catalog is an immutable snapshot of every publisher's pricing.
type Catalog struct {
	publishers map[domain.PublisherID]*Publisher
	schemes    map[domain.SchemeID]*Scheme
}

// Scheme looks up a scheme by id.
func (c *Catalog) Scheme(id domain.SchemeID) (*Scheme, error) {
	s, ok := c.schemes[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s, nil
}

// Publisher looks up a publisher by id.
func (c *Catalog) Publisher(id domain.PublisherID) (*Publisher, error) {
	p, ok := c.publishers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p, nil
}

type catalogDoc struct {
	Publishers []publisherDoc `yaml:"publishers"`
}

type publisherDoc struct {
	ID       string      `yaml:"id"`
	Failover failoverDoc `yaml:"failover"`
	Schemes  []schemeDoc `yaml:"schemes"`
}

type failoverDoc struct {
	Mode        string        `yaml:"mode"`
	GracePeriod time.Duration `yaml:"grace_period"`
}

type schemeDoc struct {
	ID          string               `yaml:"id"`
	Enforcement string               `yaml:"enforcement"`
	Intents     map[string]intentDoc `yaml:"intents"`
}

type intentDoc struct {
	Cost      int64         `yaml:"cost"`
	Paths     []string      `yaml:"paths"`
	RateLimit *rateLimitDoc `yaml:"rate_limit"`
}

type rateLimitDoc struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// ParseCatalog decodes a YAML catalog. Publishers without a failover block
// inherit defaults. Scheme ids must be unique across publishers.
func ParseCatalog(data []byte, defaults FailoverPolicy) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		publishers: make(map[domain.PublisherID]*Publisher, len(doc.Publishers)),
		schemes:    make(map[domain.SchemeID]*Scheme),
	}
	for _, pd := range doc.Publishers {
		pub, err := buildPublisher(pd, defaults)
		if err != nil {
			return nil, err
		}
		if _, dup := c.publishers[pub.ID]; dup {
			return nil, fmt.Errorf("publisher %s declared twice", pub.ID)
		}
		c.publishers[pub.ID] = pub
		for id, s := range pub.Schemes {
			if _, dup := c.schemes[id]; dup {
				return nil, fmt.Errorf("scheme %s declared twice", id)
			}
			c.schemes[id] = s
		}
	}
	return c, nil
}

func buildPublisher(pd publisherDoc, defaults FailoverPolicy) (*Publisher, error) {
	id, err := domain.ParsePublisherID(pd.ID)
	if err != nil {
		return nil, err
	}
	policy := defaults
	if pd.Failover.Mode != "" {
		if policy.Mode, err = domain.ParseFailoverMode(pd.Failover.Mode); err != nil {
			return nil, fmt.Errorf("publisher %s: %w", id, err)
		}
	}
	if pd.Failover.GracePeriod > 0 {
		policy.GracePeriod = pd.Failover.GracePeriod
	}

	pub := &Publisher{ID: id, Failover: policy, Schemes: make(map[domain.SchemeID]*Scheme, len(pd.Schemes))}
	for _, sd := range pd.Schemes {
		s, err := buildScheme(id, sd)
		if err != nil {
			return nil, fmt.Errorf("publisher %s: %w", id, err)
		}
		pub.Schemes[s.ID] = s
	}
	return pub, nil
}

func buildScheme(publisher domain.PublisherID, sd schemeDoc) (*Scheme, error) {
	id, err := domain.ParseSchemeID(sd.ID)
	if err != nil {
		return nil, err
	}
	method, err := domain.ParseEnforcementMethod(sd.Enforcement)
	if err != nil {
		return nil, fmt.Errorf("scheme %s: %w", id, err)
	}
	s := &Scheme{ID: id, PublisherID: publisher, Method: method, Intents: make(map[domain.Intent]IntentPrice, len(sd.Intents))}
	for name, idoc := range sd.Intents {
		intent, err := domain.ParseIntent(name)
		if err != nil {
			return nil, fmt.Errorf("scheme %s: %w", id, err)
		}
		if idoc.Cost < 0 {
			return nil, fmt.Errorf("scheme %s: intent %s has negative cost", id, intent)
		}
		price := IntentPrice{Intent: intent, Cost: idoc.Cost, AllowedPaths: idoc.Paths}
		if rl := idoc.RateLimit; rl != nil {
			if rl.Requests <= 0 || rl.Window <= 0 {
				return nil, fmt.Errorf("scheme %s: intent %s rate limit needs positive requests and window", id, intent)
			}
			price.RateLimit = &RateLimit{Requests: rl.Requests, Window: rl.Window}
		}
		s.Intents[intent] = price
	}
	return s, nil
}

// Loader produces catalog snapshots.
type Loader interface {
	Load(ctx context.Context) (*Catalog, error)
}

// FileLoader reads the catalog from a YAML file on every Load.
type FileLoader struct {
	Path     string
	Defaults FailoverPolicy
}

// Load implements Loader.
func (f FileLoader) Load(_ context.Context) (*Catalog, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data, f.Defaults)
}

// Store serves the current catalog snapshot. Readers never block.
type Store struct {
	current atomic.Pointer[Catalog]
	loader  Loader
}

// NewStore creates a store backed by loader. The store is empty until the
// first successful Reload or Set.
func NewStore(loader Loader) *Store {
	return &Store{loader: loader}
}

// Current returns the latest snapshot, nil before the first load.
func (s *Store) Current() *Catalog {
	return s.current.Load()
}

// Set installs a snapshot directly.
func (s *Store) Set(c *Catalog) {
	s.current.Store(c)
}

// Reload pulls a fresh snapshot. The previous one stays in place on error.
func (s *Store) Reload(ctx context.Context) error {
	c, err := s.loader.Load(ctx)
	if err != nil {
		return err
	}
	s.current.Store(c)
	return nil
}

// Scheme resolves a scheme against the current snapshot.
func (s *Store) Scheme(id domain.SchemeID) (*Scheme, error) {
	c := s.Current()
	if c == nil {
		return nil, sentinel.ErrUnavailable
	}
	return c.Scheme(id)
}

// Publisher resolves a publisher against the current snapshot.
func (s *Store) Publisher(id domain.PublisherID) (*Publisher, error) {
	c := s.Current()
	if c == nil {
		return nil, sentinel.ErrUnavailable
	}
	return c.Publisher(id)
}
