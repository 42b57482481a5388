package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/repository"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
	"github.com/yeisme/tagdrop/pkg/internal/storage/db"
)

const testTag = "abcdefghij"

func newRepo(t *testing.T) (*repository.GormRepository, *db.Client) {
	t.Helper()

	ctx := context.Background()
	client, err := db.New(ctx, configs.DBConfig{
		Type:         configs.SQLite,
		Database:     filepath.Join(t.TempDir(), "meta.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, db.Options{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Migrate(ctx, model.All()...))

	return repository.NewGorm(client.DB), client
}

func ptr[T any](v T) *T { return &v }

func TestRegisterTagOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)

	_, err := repo.GetTag(ctx, testTag)
	require.ErrorIs(t, err, shared.ErrNotFound)

	first := model.NewTag(testTag, "hash-1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	created, err := repo.RegisterTag(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	second := model.NewTag(testTag, "hash-2", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	created, err = repo.RegisterTag(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.GetTag(ctx, testTag)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", got.SecretHash)
	assert.True(t, got.RegisteredAt.Equal(first.RegisteredAt))
}

func TestUpsertTagReplacesConfiguration(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)

	tag := model.NewTag(testTag, "hash", time.Now())
	require.NoError(t, repo.UpsertTag(ctx, tag))

	tag.TTL = model.TTLForever
	tag.Visibility = model.VisibilityPublic
	tag.Permission = model.PermissionReadOnly
	tag.PreviewEnabled = false
	require.NoError(t, repo.UpsertTag(ctx, tag))

	got, err := repo.GetTag(ctx, testTag)
	require.NoError(t, err)
	assert.Equal(t, model.TTLForever, got.TTL)
	assert.Equal(t, model.VisibilityPublic, got.Visibility)
	assert.Equal(t, model.PermissionReadOnly, got.Permission)
	assert.False(t, got.PreviewEnabled)
}

func TestListTagIDsFilter(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)

	pub := model.NewTag("publictag01", "h", time.Now())
	pub.Visibility = model.VisibilityPublic
	require.NoError(t, repo.UpsertTag(ctx, pub))
	require.NoError(t, repo.UpsertTag(ctx, model.NewTag("privatetag1", "h", time.Now())))

	all, err := repo.ListTagIDs(ctx, repository.TagFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"publictag01", "privatetag1"}, all)

	public, err := repo.ListTagIDs(ctx, repository.TagFilter{Visibility: ptr(model.VisibilityPublic)})
	require.NoError(t, err)
	assert.Equal(t, []string{"publictag01"}, public)
}

func TestListFilesOrdersMissingCaptureTimeFirst(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	files := []*model.File{
		{Tag: testTag, Filename: "late.jpg", CapturedAt: ptr(now.Add(time.Hour)), UploadedAt: now},
		{Tag: testTag, Filename: "b-none.txt", UploadedAt: now},
		{Tag: testTag, Filename: "early.jpg", CapturedAt: ptr(now.Add(-time.Hour)), UploadedAt: now},
		{Tag: testTag, Filename: "a-none.txt", UploadedAt: now},
		{Tag: "otherothertag", Filename: "x.txt", UploadedAt: now},
	}
	for _, f := range files {
		require.NoError(t, repo.UpsertFile(ctx, f))
	}

	got, err := repo.ListFiles(ctx, testTag, repository.Page{})
	require.NoError(t, err)

	names := make([]string, 0, len(got))
	for _, f := range got {
		names = append(names, f.Filename)
	}

	assert.Equal(t, []string{"a-none.txt", "b-none.txt", "early.jpg", "late.jpg"}, names)

	page2, err := repo.ListFiles(ctx, testTag, repository.Page{Number: 2, Size: 3})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "late.jpg", page2[0].Filename)

	n, err := repo.CountFiles(ctx, testTag)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestUpsertFileResetsDownloads(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)

	f := &model.File{Tag: testTag, Filename: "a.txt", Size: 3, UploadedAt: time.Now()}
	require.NoError(t, repo.UpsertFile(ctx, f))

	for range 3 {
		require.NoError(t, repo.IncrementDownloadCount(ctx, testTag, "a.txt"))
	}

	got, err := repo.GetFile(ctx, testTag, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Downloads)

	replacement := &model.File{Tag: testTag, Filename: "a.txt", Size: 10, UploadedAt: time.Now()}
	require.NoError(t, repo.UpsertFile(ctx, replacement))

	got, err = repo.GetFile(ctx, testTag, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Downloads)
	assert.Equal(t, int64(10), got.Size)
}

func TestIncrementMissingFile(t *testing.T) {
	repo, _ := newRepo(t)

	err := repo.IncrementDownloadCount(context.Background(), testTag, "nope.txt")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLogNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	base := time.Now()

	for i := range 3 {
		entry := model.NewAccessLog(testTag, "a.txt", "127.0.0.1", model.DirectionUpload, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.AppendLog(ctx, entry))
	}

	entries, err := repo.ListLog(ctx, testTag, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Timestamp.After(entries[1].Timestamp))
	assert.True(t, entries[1].Timestamp.After(entries[2].Timestamp))

	limited, err := repo.ListLog(ctx, testTag, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOrphansAndDeletion(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	now := time.Now()

	require.NoError(t, repo.UpsertTag(ctx, model.NewTag(testTag, "h", now)))
	require.NoError(t, repo.UpsertFile(ctx, &model.File{Tag: testTag, Filename: "a.txt", UploadedAt: now}))
	require.NoError(t, repo.UpsertFile(ctx, &model.File{Tag: "orphanfiles", Filename: "a.txt", UploadedAt: now}))
	require.NoError(t, repo.AppendLog(ctx, model.NewAccessLog("orphanlogs1", "a.txt", "", model.DirectionUpload, now)))

	orphans, err := repo.ListOrphanTagIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"orphanfiles", "orphanlogs1"}, orphans)

	// 删除可以重复执行
	for range 2 {
		require.NoError(t, repo.DeleteAllFiles(ctx, testTag))
		require.NoError(t, repo.DeleteAllLogs(ctx, testTag))
		require.NoError(t, repo.DeleteTag(ctx, testTag))
	}

	_, err = repo.GetTag(ctx, testTag)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	now := time.Now()

	require.NoError(t, repo.UpsertTag(ctx, model.NewTag(testTag, "h", now)))
	require.NoError(t, repo.UpsertFile(ctx, &model.File{Tag: testTag, Filename: "a.txt", Size: 5, UploadedAt: now}))
	require.NoError(t, repo.UpsertFile(ctx, &model.File{Tag: testTag, Filename: "b.txt", Size: 7, UploadedAt: now}))
	require.NoError(t, repo.IncrementDownloadCount(ctx, testTag, "a.txt"))

	s, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Tags)
	assert.Equal(t, int64(0), s.PublicTags)
	assert.Equal(t, int64(2), s.Files)
	assert.Equal(t, int64(12), s.Bytes)
	assert.Equal(t, int64(1), s.Downloads)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	repo, client := newRepo(t)
	require.NoError(t, client.Close())

	_, err := repo.GetTag(context.Background(), testTag)
	require.ErrorIs(t, err, shared.ErrRepositoryUnavailable)
	require.Error(t, repo.Ping(context.Background()))
}
