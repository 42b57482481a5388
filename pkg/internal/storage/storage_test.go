package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/storage"
)

func TestOpenAndClose(t *testing.T) {
	ctx := context.Background()

	cfg := configs.Default()
	cfg.DB.Type = configs.SQLite
	cfg.DB.Database = filepath.Join(t.TempDir(), "meta.db")
	cfg.DB.MaxOpenConns = 1

	m, err := storage.Open(ctx, cfg, storage.Options{})
	require.NoError(t, err)

	assert.NotNil(t, m.KV)
	assert.NotNil(t, m.MQ)
	assert.NotNil(t, m.Events)
	require.NoError(t, m.Ping(ctx))

	tag := model.NewTag("abcdefghij", "hash", time.Now())
	created, err := m.Repo.RegisterTag(ctx, tag)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := m.Repo.GetTag(ctx, "abcdefghij")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.SecretHash)

	require.NoError(t, m.Close())
}

func TestOpenWithoutOptionalParts(t *testing.T) {
	ctx := context.Background()

	cfg := configs.Default()
	cfg.DB.Type = configs.SQLite
	cfg.DB.Database = filepath.Join(t.TempDir(), "meta.db")
	cfg.DB.MaxOpenConns = 1
	cfg.KV.Enabled = false
	cfg.Events.Enabled = false

	m, err := storage.Open(ctx, cfg, storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.Nil(t, m.KV)
	assert.Nil(t, m.MQ)
	assert.Nil(t, m.Events)
}

func TestOpenUnsupportedDB(t *testing.T) {
	cfg := configs.Default()
	cfg.DB.Type = "oracle"

	m, err := storage.Open(context.Background(), cfg, storage.Options{})
	require.Error(t, err)
	assert.Nil(t, m)
}
