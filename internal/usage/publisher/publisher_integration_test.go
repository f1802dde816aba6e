//go:build integration

package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollgate/internal/platform/config"
	"tollgate/internal/platform/kafka"
	"tollgate/internal/platform/logger"
	"tollgate/internal/usage"
	"tollgate/internal/usage/store"
	"tollgate/pkg/domain"
	"tollgate/pkg/testutil/containers"
)

func TestKafkaRoundTrip(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.Kafka{
		Brokers:       []string{rp.Broker},
		UsageTopic:    "tollgate.usage.test",
		ConsumerGroup: "tollgate-test",
		Partitions:    3,
		Replication:   1,
	}
	prodClient, err := kafka.NewProducer(ctx, cfg)
	require.NoError(t, err)
	defer prodClient.Close()
	require.NoError(t, kafka.EnsureTopics(ctx, prodClient, cfg.Partitions, cfg.Replication, cfg.UsageTopic))

	e := sampleEvent(t)
	require.NoError(t, NewProducer(prodClient, "").Append(ctx, []usage.Event{e}))

	consClient, err := kafka.NewConsumer(ctx, cfg)
	require.NoError(t, err)
	defer consClient.Close()

	st := store.NewInMemory()
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- NewConsumer(consClient, st, logger.Discard()).Run(runCtx) }()

	require.Eventually(t, func() bool { return st.Len() == 1 }, 30*time.Second, 100*time.Millisecond)
	stop()
	require.NoError(t, <-done)

	got, err := st.List(ctx, usage.Query{Reporter: domain.ReporterEnforcer})
	require.NoError(t, err)
	assert.Equal(t, e.EventID, got[0].EventID)
}
