package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/queue"
)

func TestPublisherRespectsToggles(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	stored, err := pubSub.Subscribe(ctx, queue.TopicFileStored)
	require.NoError(t, err)

	downloaded, err := pubSub.Subscribe(ctx, queue.TopicFileDownloaded)
	require.NoError(t, err)

	cfg := configs.Default().Events
	cfg.FileDownloaded = false

	pub := queue.NewPublisher(pubSub, cfg)
	require.NotNil(t, pub)

	pub.FileDownloaded(ctx, queue.FileDownloadedPayload{File: queue.FileRef{Tag: "abcdefghij", Filename: "a.txt"}})
	pub.FileStored(ctx, queue.FileStoredPayload{File: queue.FileRef{Tag: "abcdefghij", Filename: "a.txt"}, Size: 3})

	select {
	case msg := <-stored:
		msg.Ack()

		env, err := queue.ParseFileStored(msg)
		require.NoError(t, err)
		assert.Equal(t, queue.TopicFileStored, env.Header.Topic)
		assert.Equal(t, configs.AppName, env.Header.Producer)
		assert.Equal(t, "a.txt", env.Payload.File.Filename)
		assert.Equal(t, int64(3), env.Payload.Size)
	case <-ctx.Done():
		t.Fatal("file.stored not delivered")
	}

	select {
	case msg := <-downloaded:
		t.Fatalf("unexpected download event %s", msg.UUID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNilPublisherIsNoop(t *testing.T) {
	var pub *queue.Publisher

	assert.NotPanics(t, func() {
		pub.FileStored(context.Background(), queue.FileStoredPayload{})
		pub.TagReaped(context.Background(), queue.TagReapedPayload{})
	})

	cfg := configs.Default().Events
	cfg.Enabled = false
	assert.Nil(t, queue.NewPublisher(gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}), cfg))
}

func TestMessageMetadataAndTopicCheck(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	msg, err := queue.NewWatermillMessage(queue.TopicTagReaped,
		queue.TagReapedPayload{Tag: "abcdefghij", Files: 4},
		queue.WithOccurredAt(at), queue.WithProducer("test"))
	require.NoError(t, err)

	assert.Equal(t, queue.TopicTagReaped, msg.Metadata.Get(queue.MetaTopic))
	assert.Equal(t, "abcdefghij", msg.Metadata.Get(queue.MetaTag))
	assert.Equal(t, "test", msg.Metadata.Get(queue.MetaProducer))
	assert.Empty(t, msg.Metadata.Get(queue.MetaTraceID))

	env, err := queue.ParseTagReaped(msg)
	require.NoError(t, err)
	assert.Equal(t, int64(4), env.Payload.Files)
	assert.True(t, at.Equal(env.Header.OccurredAt))

	_, err = queue.ParseFileStored(msg)
	require.ErrorIs(t, err, queue.ErrUnexpectedTopic)
}
