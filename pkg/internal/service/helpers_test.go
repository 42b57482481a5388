package service_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/repository"
	"github.com/yeisme/tagdrop/pkg/internal/service"
	"github.com/yeisme/tagdrop/pkg/internal/shard"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
	"github.com/yeisme/tagdrop/pkg/internal/storage/db"
)

const testTag = "testtag001"

// clock 可手动推进的时钟.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type env struct {
	cfg    *configs.AppConfig
	repo   repository.Repository
	svc    *service.Services
	layout shard.Layout
	clock  *clock
}

func testConfig(t *testing.T) *configs.AppConfig {
	t.Helper()

	root := t.TempDir()

	cfg := configs.Default()
	cfg.Storage = configs.StorageConfig{
		FileRoot:  filepath.Join(root, "files"),
		ThumbRoot: filepath.Join(root, "thumbs"),
		TempRoot:  filepath.Join(root, "tmp"),
	}
	cfg.Security.SecretHashCost = bcrypt.MinCost
	cfg.DB = configs.DBConfig{
		Type:         configs.SQLite,
		Database:     filepath.Join(root, "meta.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	return cfg
}

func newEnv(t *testing.T, mutate ...func(*configs.AppConfig)) *env {
	t.Helper()

	cfg := testConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}

	ctx := context.Background()

	client, err := db.New(ctx, cfg.DB, db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Migrate(ctx, model.All()...))

	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := repository.NewGorm(client.DB)

	return &env{
		cfg:    cfg,
		repo:   repo,
		svc:    service.New(service.Deps{Repo: repo, Config: cfg, Now: clk.Now}),
		layout: service.LayoutFrom(cfg.Storage),
		clock:  clk,
	}
}

func (e *env) upload(t *testing.T, tag, filename, body string) *service.UploadResult {
	t.Helper()

	res, err := e.svc.Uploader.Upload(context.Background(), service.UploadRequest{
		Tag:      tag,
		Filename: filename,
		Client:   "127.0.0.1",
		Body:     strings.NewReader(body),
	})
	require.NoError(t, err)

	return res
}

// spyRepo 记录调用次数，所有方法都返回 ErrRepositoryUnavailable.
type spyRepo struct {
	calls atomic.Int64
}

func (s *spyRepo) hit() error {
	s.calls.Add(1)

	return shared.ErrRepositoryUnavailable
}

func (s *spyRepo) GetTag(context.Context, string) (*model.Tag, error) { return nil, s.hit() }
func (s *spyRepo) UpsertTag(context.Context, *model.Tag) error { return s.hit() }
func (s *spyRepo) RegisterTag(context.Context, *model.Tag) (bool, error) { return false, s.hit() }
func (s *spyRepo) DeleteTag(context.Context, string) error { return s.hit() }
func (s *spyRepo) ListOrphanTagIDs(context.Context) ([]string, error) { return nil, s.hit() }

func (s *spyRepo) ListTagIDs(context.Context, repository.TagFilter) ([]string, error) {
	return nil, s.hit()
}

func (s *spyRepo) ListFiles(context.Context, string, repository.Page) ([]model.File, error) {
	return nil, s.hit()
}

func (s *spyRepo) CountFiles(context.Context, string) (int64, error) { return 0, s.hit() }

func (s *spyRepo) GetFile(context.Context, string, string) (*model.File, error) {
	return nil, s.hit()
}

func (s *spyRepo) UpsertFile(context.Context, *model.File) error { return s.hit() }
func (s *spyRepo) IncrementDownloadCount(context.Context, string, string) error { return s.hit() }
func (s *spyRepo) DeleteAllFiles(context.Context, string) error { return s.hit() }
func (s *spyRepo) AppendLog(context.Context, *model.AccessLog) error { return s.hit() }

func (s *spyRepo) ListLog(context.Context, string, int) ([]model.AccessLog, error) {
	return nil, s.hit()
}

func (s *spyRepo) DeleteAllLogs(context.Context, string) error { return s.hit() }
func (s *spyRepo) Stats(context.Context) (*repository.Stats, error) { return nil, s.hit() }
func (s *spyRepo) Ping(context.Context) error { return s.hit() }

var _ repository.Repository = (*spyRepo)(nil)
