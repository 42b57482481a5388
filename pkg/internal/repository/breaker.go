package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
	nlog "github.com/yeisme/tagdrop/pkg/log"
)

// Breaker 为仓库加上熔断：只有 ErrRepositoryUnavailable 计为失败，
// 打开状态下直接返回 ErrRepositoryUnavailable 而不访问后端.
type Breaker struct {
	next Repository
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker 包装仓库，未启用时原样返回 next.
func NewBreaker(next Repository, cfg configs.CircuitBreakerConfig) Repository {
	if !cfg.Enabled {
		return next
	}

	logger := nlog.Component("repository")

	settings := gobreaker.Settings{
		Name:        "metadata-repository",
		MaxRequests: cfg.HalfOpenMax,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			// 失败比例
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)

			return failureRate >= cfg.FailureRate
		},
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, shared.ErrRepositoryUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}

	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// State 返回当前熔断状态.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T

		return zero, fmt.Errorf("%w: %w", shared.ErrRepositoryUnavailable, err)
	}

	out, _ := v.(T)

	return out, err
}

func exec(b *Breaker, fn func() error) error {
	_, err := call(b, func() (struct{}, error) { return struct{}{}, fn() })

	return err
}

func (b *Breaker) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	return call(b, func() (*model.Tag, error) { return b.next.GetTag(ctx, id) })
}

func (b *Breaker) UpsertTag(ctx context.Context, tag *model.Tag) error {
	return exec(b, func() error { return b.next.UpsertTag(ctx, tag) })
}

func (b *Breaker) RegisterTag(ctx context.Context, tag *model.Tag) (bool, error) {
	return call(b, func() (bool, error) { return b.next.RegisterTag(ctx, tag) })
}

func (b *Breaker) ListTagIDs(ctx context.Context, filter TagFilter) ([]string, error) {
	return call(b, func() ([]string, error) { return b.next.ListTagIDs(ctx, filter) })
}

func (b *Breaker) ListOrphanTagIDs(ctx context.Context) ([]string, error) {
	return call(b, func() ([]string, error) { return b.next.ListOrphanTagIDs(ctx) })
}

func (b *Breaker) DeleteTag(ctx context.Context, id string) error {
	return exec(b, func() error { return b.next.DeleteTag(ctx, id) })
}

func (b *Breaker) ListFiles(ctx context.Context, tag string, page Page) ([]model.File, error) {
	return call(b, func() ([]model.File, error) { return b.next.ListFiles(ctx, tag, page) })
}

func (b *Breaker) CountFiles(ctx context.Context, tag string) (int64, error) {
	return call(b, func() (int64, error) { return b.next.CountFiles(ctx, tag) })
}

func (b *Breaker) GetFile(ctx context.Context, tag, filename string) (*model.File, error) {
	return call(b, func() (*model.File, error) { return b.next.GetFile(ctx, tag, filename) })
}

func (b *Breaker) UpsertFile(ctx context.Context, file *model.File) error {
	return exec(b, func() error { return b.next.UpsertFile(ctx, file) })
}

func (b *Breaker) IncrementDownloadCount(ctx context.Context, tag, filename string) error {
	return exec(b, func() error { return b.next.IncrementDownloadCount(ctx, tag, filename) })
}

func (b *Breaker) DeleteAllFiles(ctx context.Context, tag string) error {
	return exec(b, func() error { return b.next.DeleteAllFiles(ctx, tag) })
}

func (b *Breaker) AppendLog(ctx context.Context, entry *model.AccessLog) error {
	return exec(b, func() error { return b.next.AppendLog(ctx, entry) })
}

func (b *Breaker) ListLog(ctx context.Context, tag string, limit int) ([]model.AccessLog, error) {
	return call(b, func() ([]model.AccessLog, error) { return b.next.ListLog(ctx, tag, limit) })
}

func (b *Breaker) DeleteAllLogs(ctx context.Context, tag string) error {
	return exec(b, func() error { return b.next.DeleteAllLogs(ctx, tag) })
}

func (b *Breaker) Stats(ctx context.Context) (*Stats, error) {
	return call(b, func() (*Stats, error) { return b.next.Stats(ctx) })
}

// Ping 不经过熔断器，便于探活时观察后端真实状态.
func (b *Breaker) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}
