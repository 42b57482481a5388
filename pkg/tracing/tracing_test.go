package tracing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/tracing"
)

func TestDisabledIsNoop(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, tracing.InitTracer(ctx, configs.Default().Tracing))

	_, span := tracing.StartSpan(ctx, "upload")
	span.End()

	assert.NoError(t, tracing.ShutdownTracer(ctx))
}

func TestUnsupportedExporter(t *testing.T) {
	cfg := configs.Default().Tracing
	cfg.Enabled = true
	cfg.ExporterType = "jaeger"

	assert.Error(t, tracing.InitTracer(context.Background(), cfg))
}

func TestZipkinProvider(t *testing.T) {
	ctx := context.Background()
	cfg := configs.Default().Tracing
	cfg.Enabled = true
	cfg.ExporterType = configs.ExporterZipkin
	cfg.Endpoint = "http://127.0.0.1:9/api/v2/spans"
	cfg.SampleRate = 1

	require.NoError(t, tracing.InitTracer(ctx, cfg))

	_, span := tracing.StartSpan(ctx, "lifecycle.sweep")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	// 导出失败不影响关闭
	_ = tracing.ShutdownTracer(ctx)
	assert.NoError(t, tracing.ShutdownTracer(ctx))
}
