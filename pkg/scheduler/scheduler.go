// Package scheduler 基于 gocron/v2 的 cron 调度，按名称管理任务并记录最近一次执行结果.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yeisme/tagdrop/pkg/log"
)

type JobStatus string

const (
	StatusScheduled JobStatus = "scheduled"
	StatusRunning   JobStatus = "running"
	StatusError     JobStatus = "error" // 上一次执行返回错误或 panic
)

// JobInfo 任务快照.
type JobInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CronExpr    string    `json:"cron_expr"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// Job 任务函数，ctx 在调度器停止或任务被移除时取消.
type Job func(ctx context.Context) error

type entry struct {
	job    gocron.Job
	cron   string
	cancel context.CancelFunc

	status      JobStatus
	err         string
	lastSuccess time.Time
}

type Scheduler struct {
	gs     gocron.Scheduler
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

func NewScheduler() (*Scheduler, error) {
	s := &Scheduler{
		logger:  log.Component("scheduler"),
		entries: make(map[string]*entry),
	}

	gs, err := gocron.NewScheduler(
		gocron.WithLogger(gocronLogger{l: s.logger}),
		gocron.WithGlobalJobOptions(gocron.WithEventListeners(
			gocron.BeforeJobRuns(func(_ uuid.UUID, name string) {
				s.record(name, StatusRunning, "")
			}),
			gocron.AfterJobRuns(func(_ uuid.UUID, name string) {
				s.record(name, StatusScheduled, "")
			}),
			gocron.AfterJobRunsWithError(func(_ uuid.UUID, name string, err error) {
				s.logger.Error().Err(err).Str("job", name).Msg("job failed")
				s.record(name, StatusError, err.Error())
			}),
			gocron.AfterJobRunsWithPanic(func(_ uuid.UUID, name string, recovered any) {
				s.logger.Error().Str("job", name).Interface("panic", recovered).Msg("job panicked")
				s.record(name, StatusError, fmt.Sprintf("panic: %v", recovered))
			}),
		)),
	)
	if err != nil {
		return nil, err
	}

	s.gs = gs

	return s, nil
}

func (s *Scheduler) record(name string, status JobStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return
	}

	e.status = status
	e.err = errMsg

	if status == StatusScheduled {
		e.lastSuccess = time.Now()
	}
}

// AddCron 添加 5 段 cron 任务. 上一次执行未结束时跳过本次（singleton reschedule）.
func (s *Scheduler) AddCron(ctx context.Context, name, cronExpr string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("job %s already exists", name)
	}

	jobCtx, cancel := context.WithCancel(ctx)

	j, err := s.gs.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() error { return job(jobCtx) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()

		return fmt.Errorf("add job %s: %w", name, err)
	}

	s.entries[name] = &entry{job: j, cron: cronExpr, cancel: cancel, status: StatusScheduled}
	s.logger.Info().Str("job", name).Str("cron", cronExpr).Msg("job scheduled")

	return nil
}

// ReplaceCron 以新的表达式重新注册任务，表达式未变时不做任何事. 用于配置热重载.
func (s *Scheduler) ReplaceCron(ctx context.Context, name, cronExpr string, job Job) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()

	if ok && e.cron == cronExpr {
		return nil
	}

	if ok {
		if err := s.RemoveJobByName(name); err != nil {
			return err
		}
	}

	return s.AddCron(ctx, name, cronExpr, job)
}

func (s *Scheduler) RemoveJobByName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("job %s does not exist", name)
	}

	if err := s.gs.RemoveJob(e.job.ID()); err != nil {
		return err
	}

	e.cancel()
	delete(s.entries, name)
	s.logger.Info().Str("job", name).Msg("job removed")

	return nil
}

// RunNow 立即执行一次，不影响原有调度.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("job %s does not exist", name)
	}

	return e.job.RunNow()
}

func (s *Scheduler) GetJobInfoByName(name string) (*JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("job %s does not exist", name)
	}

	info := snapshot(name, e)

	return &info, nil
}

func (s *Scheduler) GetJobInfos() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.entries))
	for name, e := range s.entries {
		out = append(out, snapshot(name, e))
	}

	return out
}

// snapshot 下次与上次运行时间直接向 gocron 查询.
func snapshot(name string, e *entry) JobInfo {
	info := JobInfo{
		ID:          e.job.ID().String(),
		Name:        name,
		CronExpr:    e.cron,
		Status:      e.status,
		Error:       e.err,
		LastSuccess: e.lastSuccess,
	}

	info.NextRun, _ = e.job.NextRun()
	info.LastRun, _ = e.job.LastRun()

	return info
}

func (s *Scheduler) Start() {
	s.gs.Start()
}

// Stop 取消所有任务的 ctx 并等待正在执行的任务返回.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	for _, e := range s.entries {
		e.cancel()
	}
	s.mu.Unlock()

	return s.gs.Shutdown()
}

// gocronLogger 把 gocron 的键值对日志转为 zerolog 字段.
type gocronLogger struct {
	l zerolog.Logger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Debug().Fields(args).Msg(msg) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Debug().Fields(args).Msg(msg) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warn().Fields(args).Msg(msg) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Error().Fields(args).Msg(msg) }
