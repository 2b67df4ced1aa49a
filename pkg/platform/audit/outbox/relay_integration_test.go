//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "campus-sso/pkg/domain"
	audit "campus-sso/pkg/platform/audit"
	auditkafka "campus-sso/pkg/platform/audit/kafka"
	"campus-sso/pkg/platform/audit/outbox"
	auditpg "campus-sso/pkg/platform/audit/store/postgres"
	"campus-sso/pkg/testutil/containers"
)

func TestRelayShipsOutboxToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := containers.NewPostgresContainer(t)
	rp := containers.NewRedpandaContainer(t)
	const topic = "sso.audit.test"

	producer, err := auditkafka.NewProducer([]string{rp.Broker}, topic)
	require.NoError(t, err)
	t.Cleanup(producer.Close)
	require.NoError(t, producer.EnsureTopic(ctx, 1, 1))

	store := auditpg.New(pg.DB)
	userID := id.NewUserID()
	require.NoError(t, store.Append(ctx, audit.Event{
		UserID:    userID,
		Action:    string(audit.EventConsentGranted),
		Timestamp: time.Now(),
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := outbox.NewRelay(pg.DB, store, producer, logger, outbox.WithBatchSize(10))
	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "published rows are not shipped twice")

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, userID.String(), string(records[0].Key))

	var payload audit.Payload
	require.NoError(t, json.Unmarshal(records[0].Value, &payload))
	assert.Equal(t, string(audit.EventConsentGranted), payload.Action)
	assert.Equal(t, string(audit.CategoryCompliance), payload.Category)
}
