package mq_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/storage/mq"
)

func TestGoChannelConsumer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mq.New(ctx, configs.Default().MQ, mq.Options{Registry: prometheus.NewRegistry()})
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	got := make(chan string, 1)

	client.AddConsumer("test", "tagdrop.test", func(msg *message.Message) error {
		got <- string(msg.Payload)

		return nil
	})

	go func() { _ = client.Run(ctx) }()

	select {
	case <-client.Running():
	case <-ctx.Done():
		t.Fatal("router did not start")
	}

	require.NoError(t, client.Publish(ctx, "tagdrop.test", message.NewMessage(watermill.NewUUID(), []byte("hello"))))

	select {
	case payload := <-got:
		assert.Equal(t, "hello", payload)
	case <-ctx.Done():
		t.Fatal("message not consumed")
	}
}

func TestUnsupportedType(t *testing.T) {
	cfg := configs.Default().MQ
	cfg.Type = "kafka"

	_, err := mq.New(context.Background(), cfg, mq.Options{})
	require.Error(t, err)
}
