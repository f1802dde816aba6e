package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"tollgate/internal/enforcement"
	"tollgate/internal/enforcement/cache"
	enforcementmetrics "tollgate/internal/enforcement/metrics"
	"tollgate/internal/keys"
	"tollgate/internal/ledger"
	"tollgate/internal/license"
	"tollgate/internal/manifest"
	manifeststore "tollgate/internal/manifest/store"
	"tollgate/internal/platform/config"
	"tollgate/internal/platform/kafka"
	"tollgate/internal/platform/metrics"
	"tollgate/internal/platform/postgres"
	platformredis "tollgate/internal/platform/redis"
	"tollgate/internal/platform/refresh"
	"tollgate/internal/pop"
	"tollgate/internal/pop/replay"
	"tollgate/internal/pricing"
	"tollgate/internal/ratelimit/bucket"
	"tollgate/internal/reconcile"
	"tollgate/internal/usage"
	usagepublisher "tollgate/internal/usage/publisher"
	usagestore "tollgate/internal/usage/store"
	"tollgate/pkg/domain"
	"tollgate/pkg/platform/audit"
	auditpublisher "tollgate/pkg/platform/audit/publisher"
	auditmemory "tollgate/pkg/platform/audit/store/memory"
	auditpostgres "tollgate/pkg/platform/audit/store/postgres"
)

const auditBuffer = 1024

// infra holds the external connections. Each one is optional; a nil handle
// selects the in-process fallback for the components built on it.
type infra struct {
	metrics  *metrics.Metrics
	pg       *postgres.Handles
	redis    *platformredis.Client
	producer *kgo.Client
	consumer *kgo.Client
}

func openInfra(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{metrics: metrics.New(cfg.NodeID)}

	pg, err := postgres.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	in.pg = pg
	if pg != nil {
		if err := postgres.Migrate(ctx, pg.DB); err != nil {
			in.Close()
			return nil, err
		}
		log.Info("postgres connected")
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.redis = rc
	if rc != nil {
		log.Info("redis connected")
	}

	if in.producer, err = kafka.NewProducer(ctx, cfg.Kafka); err != nil {
		in.Close()
		return nil, err
	}
	if in.producer != nil {
		if err := kafka.EnsureTopics(ctx, in.producer, cfg.Kafka.Partitions, cfg.Kafka.Replication, cfg.Kafka.UsageTopic); err != nil {
			in.Close()
			return nil, err
		}
		if in.consumer, err = kafka.NewConsumer(ctx, cfg.Kafka); err != nil {
			in.Close()
			return nil, err
		}
		log.Info("kafka connected", "topic", cfg.Kafka.UsageTopic)
	}
	return in, nil
}

func (in *infra) Close() {
	if in.consumer != nil {
		in.consumer.Close()
	}
	if in.producer != nil {
		in.producer.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	in.pg.Close()
}

type worker func(ctx context.Context) error

// node is the assembled set of services a router and the lifecycle need.
type node struct {
	audit     *auditpublisher.Publisher
	issuer    *license.Service
	engine    *enforcement.Engine
	intake    *usage.Intake
	reconcile *reconcile.Service
	manifests manifest.Store
	fresh     refresh.Group
	workers   []worker
}

// registrars fans a consumer key registration out to every configured
// store: the local trust store first, then the shared table.
type registrars []license.KeyRegistrar

func (rs registrars) Register(ctx context.Context, k *keys.TrustedKey) error {
	for _, r := range rs {
		if err := r.Register(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func buildNode(ctx context.Context, cfg *config.Config, in *infra, log *slog.Logger) (*node, error) {
	reg := in.metrics.Registry
	n := &node{}

	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if in.pg != nil {
		auditStore = auditpostgres.New(in.pg.DB)
	}
	n.audit = auditpublisher.NewPublisher(auditStore,
		auditpublisher.WithAsyncBuffer(auditBuffer),
		auditpublisher.WithLogger(log),
		auditpublisher.WithMetrics(auditpublisher.NewMetrics(reg)),
	)

	trust := keys.NewStore()
	keyring := keys.NewKeyring(trust, cfg.Issuer.ID)
	if err := activate(keyring, keys.KindIssuer, cfg.Issuer.KeyFile, cfg.Issuer.KeyID); err != nil {
		return nil, err
	}
	if err := activate(keyring, keys.KindManifest, cfg.Issuer.ManifestKey, cfg.Issuer.ManifestKID); err != nil {
		return nil, err
	}

	var sources []keys.Source
	registrar := registrars{trust}
	if cfg.Keys.StaticFile != "" {
		sources = append(sources, keys.FileSource{Path: cfg.Keys.StaticFile})
	}
	if in.pg != nil {
		pgKeys := keys.NewPostgresSource(in.pg.DB)
		sources = append(sources, pgKeys)
		registrar = append(registrar, pgKeys)
	}

	failover, err := domain.ParseFailoverMode(cfg.Enforcement.DefaultFailoverMode)
	if err != nil {
		return nil, fmt.Errorf("default failover: %w", err)
	}
	defaults := pricing.FailoverPolicy{Mode: failover, GracePeriod: cfg.Enforcement.DefaultGracePeriod}
	catalog := pricing.NewStore(pricing.FileLoader{Path: cfg.Pricing.CatalogFile, Defaults: defaults})

	refreshMetrics := refresh.NewMetrics(reg)
	pricingRefresher := refresh.New("pricing", catalog.Reload, cfg.Pricing.RefreshInterval,
		refresh.WithLogger(log), refresh.WithMetrics(refreshMetrics))
	n.fresh = refresh.Group{pricingRefresher}
	// With no sources the keys refresher still runs: each Sync prunes
	// consumer keys registered here once their licenses expire.
	keysRefresher := refresh.New("keys", func(ctx context.Context) error {
		return trust.Sync(ctx, sources...)
	}, cfg.Keys.RefreshInterval, refresh.WithLogger(log), refresh.WithMetrics(refreshMetrics))
	n.fresh = append(n.fresh, keysRefresher)
	for _, r := range n.fresh {
		// A failed first load leaves the node degraded, not down.
		if err := r.RefreshNow(ctx); err != nil {
			log.Warn("initial refresh failed", "refresher", r.Name(), "error", err)
		}
	}

	n.issuer = license.NewService(domain.IssuerID(cfg.Issuer.ID), keyring, catalog,
		license.WithLogger(log),
		license.WithAuditor(n.audit),
		license.WithMetrics(license.NewMetrics(reg)),
		license.WithKeyRegistrar(registrar),
		license.WithTTL(cfg.Issuer.DefaultTTL, cfg.Issuer.MaxTTL),
	)

	var (
		replays pop.ReplayCache           = replay.NewMemory(cfg.Enforcement.ReplayCacheSize)
		limiter enforcement.RateLimiter   = bucket.NewMemory()
		cached  enforcement.ResourceCache = cache.NewMemory(cfg.Enforcement.CachedResourceTTL)
	)
	if in.redis != nil {
		replays = replay.NewRedis(in.redis.Client)
		limiter = bucket.NewRedis(in.redis.Client)
		cached = cache.NewRedis(in.redis.Client, cfg.Enforcement.CachedResourceTTL)
	}

	n.manifests = manifeststore.NewInMemory()
	if in.pg != nil {
		n.manifests = manifeststore.NewPostgres(in.pg.DB)
	}

	usageStore := usageStoreFor(in)
	var events usage.Sink = usageStore
	if in.producer != nil {
		events = usagepublisher.NewProducer(in.producer, cfg.Kafka.UsageTopic)
	}
	usageMetrics := usage.NewMetrics(reg)
	queue := usage.NewQueue(events,
		usage.WithQueueSize(cfg.Enforcement.UsageQueueSize),
		usage.WithQueueLogger(log),
		usage.WithQueueMetrics(usageMetrics),
	)
	n.intake = usage.NewIntake(events, usage.WithLogger(log), usage.WithMetrics(usageMetrics))

	budgets := ledger.New(
		ledger.WithReservationTTL(cfg.Ledger.ReservationTTL),
		ledger.WithSweepInterval(cfg.Ledger.SweepInterval),
		ledger.WithOverdraftAllowance(cfg.Ledger.OverdraftAllowance),
		ledger.WithLogger(log),
		ledger.WithMetrics(ledger.NewMetrics(reg)),
		ledger.WithAuditor(n.audit),
	)

	opts := []enforcement.Option{
		enforcement.WithLogger(log),
		enforcement.WithMetrics(enforcementmetrics.New(reg)),
		enforcement.WithAuditor(n.audit),
		enforcement.WithRateLimiter(limiter),
		enforcement.WithFreshness(n.fresh),
		enforcement.WithResourceCache(cached),
		enforcement.WithUsageQueue(queue),
		enforcement.WithDefaultFailover(defaults),
		enforcement.WithMaxTokenBytes(cfg.Enforcement.MaxTokenBytes),
	}
	if cfg.Enforcement.SignManifests && cfg.Issuer.ManifestKey != "" {
		signer := manifest.NewSigner(keyring,
			manifest.WithStore(n.manifests),
			manifest.WithAuditor(n.audit),
			manifest.WithLogger(log),
			manifest.WithMetrics(manifest.NewMetrics(reg)),
		)
		opts = append(opts, enforcement.WithManifestSigner(signer))
	}
	n.engine = enforcement.New(
		license.NewVerifier(trust, cfg.Enforcement.MaxTokenBytes),
		pop.NewVerifier(trust, replays, cfg.Enforcement.ClockSkew),
		catalog,
		budgets,
		opts...,
	)

	n.reconcile = reconcile.NewService(usageStore,
		reconcile.WithLagWindow(cfg.Reconcile.LagWindow),
		reconcile.WithOverspendTolerance(cfg.Reconcile.OverspendTolerance),
		reconcile.WithAuditor(n.audit),
		reconcile.WithLogger(log),
		reconcile.WithMetrics(reconcile.NewMetrics(reg)),
	)

	n.workers = []worker{budgets.Run, n.engine.Run, queue.Run, n.fresh.Run}
	if in.consumer != nil {
		n.workers = append(n.workers, usagepublisher.NewConsumer(in.consumer, usageStore, log).Run)
	}
	return n, nil
}

// eventStore is the durable side of the usage pipeline: reconciliation
// reads from it and the Kafka consumer writes into it.
type eventStore interface {
	usage.Sink
	reconcile.EventSource
}

func usageStoreFor(in *infra) eventStore {
	if in.pg != nil {
		return usagestore.NewPostgres(in.pg.Pool)
	}
	return usagestore.NewInMemory()
}

// activate loads a PEM signing key and makes it the keyring's key for kind.
// An empty path leaves the kind without a key.
func activate(keyring *keys.Keyring, kind keys.Kind, path, kid string) error {
	if path == "" {
		return nil
	}
	signer, err := keys.LoadPrivateKeyFile(path)
	if err != nil {
		return fmt.Errorf("load %s key: %w", kind, err)
	}
	key, err := keys.NewSigningKey(kid, signer)
	if err != nil {
		return fmt.Errorf("load %s key: %w", kind, err)
	}
	return keyring.Activate(kind, key)
}
