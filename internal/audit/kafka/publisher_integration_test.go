//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"ekyc/internal/audit"
	"ekyc/internal/platform/config"
	"ekyc/pkg/testutil/containers"
)

func TestPublisher_Integration(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()
	const topic = "ekyc.audit.test"

	adminClient, err := kgo.NewClient(kgo.SeedBrokers(rp.Brokers...))
	require.NoError(t, err)
	defer adminClient.Close()

	admin := kadm.NewClient(adminClient)
	_, err = admin.CreateTopics(ctx, 1, 1, nil, topic)
	require.NoError(t, err)

	publisher, err := NewPublisher(config.KafkaConfig{Brokers: rp.Brokers, Topic: topic})
	require.NoError(t, err)
	defer publisher.Close()

	entry := func(ref string, attempt int) audit.Entry {
		return audit.Entry{
			EntryID:         uuid.NewString(),
			ReferenceNumber: ref,
			EventType:       audit.EventUpstreamCall,
			Payload: audit.NewPayload().
				WithIdentifier("123456789012").
				WithDetail("attempt", strconv.Itoa(attempt)),
			Outcome:   audit.OutcomeSuccess,
			Timestamp: time.Now().UTC(),
		}
	}

	for i := 1; i <= 3; i++ {
		require.NoError(t, publisher.Append(ctx, entry("EKYC-KFK-1", i)))
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var records []*kgo.Record
	deadline := time.Now().Add(30 * time.Second)
	for len(records) < 3 && time.Now().Before(deadline) {
		pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		// Empty polls time out and come back with a context error; only
		// the record count decides when to stop.
		fetches := consumer.PollFetches(pollCtx)
		cancel()
		records = append(records, fetches.Records()...)
	}
	require.Len(t, records, 3)

	// Records share the reference number as key, so they land on one
	// partition in produce order.
	for i, rec := range records {
		assert.Equal(t, "EKYC-KFK-1", string(rec.Key))

		var decoded struct {
			ReferenceNumber string            `json:"reference_number"`
			EventType       string            `json:"event_type"`
			Payload         map[string]string `json:"payload"`
			Outcome         string            `json:"outcome"`
		}
		require.NoError(t, json.Unmarshal(rec.Value, &decoded))
		assert.Equal(t, "EKYC-KFK-1", decoded.ReferenceNumber)
		assert.Equal(t, string(audit.EventUpstreamCall), decoded.EventType)
		assert.Equal(t, strconv.Itoa(i+1), decoded.Payload["attempt"])
		assert.Equal(t, "XXXXXXXX9012", decoded.Payload["identifier"])
		assert.Equal(t, string(audit.OutcomeSuccess), decoded.Outcome)
	}
}
