// Package jobs 负责注册与实现业务定时任务（基于 scheduler）.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/service"
	"github.com/yeisme/tagdrop/pkg/log"
	"github.com/yeisme/tagdrop/pkg/scheduler"
)

// Sweeper 过期清理任务依赖的最小接口.
type Sweeper interface {
	RunOnce(ctx context.Context) (*service.SweepResult, error)
}

// RegisterCronJobs 配置业务定时任务：按 lifecycle.sweep_cron 清理过期标签.
// lifecycle.enabled 为 false 时不注册任何任务.
func RegisterCronJobs(ctx context.Context, sched *scheduler.Scheduler, sweeper Sweeper, cfg configs.LifecycleConfig) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if sweeper == nil {
		return fmt.Errorf("sweeper is nil")
	}

	if !cfg.Enabled {
		log.Logger().Info().Msg("lifecycle sweep disabled")

		return nil
	}

	return sched.ReplaceCron(ctx, JobLifecycleSweep, cfg.SweepCron, SweepJob(sweeper))
}

// SweepJob 把一次清理包装为调度任务. 与正在进行的清理重叠时视为成功.
func SweepJob(sweeper Sweeper) scheduler.Job {
	return func(ctx context.Context) error {
		l := log.Component("jobs").With().Str("job", JobLifecycleSweep).Logger()

		res, err := sweeper.RunOnce(ctx)
		if errors.Is(err, service.ErrSweepRunning) {
			l.Debug().Msg("previous sweep still running, skipped")

			return nil
		}

		if err != nil {
			return err
		}

		if len(res.Failed) > 0 {
			l.Warn().Strs("failed", res.Failed).Msg("some tags could not be reaped, will retry")
		}

		return nil
	}
}
