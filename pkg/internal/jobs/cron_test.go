package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/jobs"
	"github.com/yeisme/tagdrop/pkg/internal/service"
	"github.com/yeisme/tagdrop/pkg/scheduler"
)

type fakeSweeper struct {
	runs atomic.Int32
	err  error
}

func (f *fakeSweeper) RunOnce(context.Context) (*service.SweepResult, error) {
	f.runs.Add(1)

	if f.err != nil {
		return nil, f.err
	}

	return &service.SweepResult{}, nil
}

func TestSweepJob(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, jobs.SweepJob(&fakeSweeper{})(ctx))
	require.NoError(t, jobs.SweepJob(&fakeSweeper{err: service.ErrSweepRunning})(ctx))
	require.Error(t, jobs.SweepJob(&fakeSweeper{err: errors.New("db down")})(ctx))
}

func TestRegisterCronJobs(t *testing.T) {
	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)

	sched.Start()
	t.Cleanup(func() { _ = sched.Stop() })

	ctx := context.Background()
	sweeper := &fakeSweeper{}

	cfg := configs.LifecycleConfig{Enabled: false, SweepCron: configs.DefaultSweepCron}
	require.NoError(t, jobs.RegisterCronJobs(ctx, sched, sweeper, cfg))
	assert.Empty(t, sched.GetJobInfos())

	cfg.Enabled = true
	require.NoError(t, jobs.RegisterCronJobs(ctx, sched, sweeper, cfg))

	info, err := sched.GetJobInfoByName(jobs.JobLifecycleSweep)
	require.NoError(t, err)
	assert.Equal(t, configs.DefaultSweepCron, info.CronExpr)

	require.NoError(t, sched.RunNow(jobs.JobLifecycleSweep))
	require.Eventually(t, func() bool { return sweeper.runs.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.Error(t, jobs.RegisterCronJobs(ctx, nil, sweeper, cfg))
}
