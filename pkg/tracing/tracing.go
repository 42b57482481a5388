// Package tracing 封装 OpenTelemetry 的初始化与 span 创建.
//
// 未调用 InitTracer（或 tracing.enabled=false）时 otel 使用 noop provider，
// StartSpan 仍可安全调用，业务代码无需判断开关.
package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/tagdrop/pkg/configs"
)

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
)

type exporterFactory func(ctx context.Context, cfg configs.TracingConfig) (sdktrace.SpanExporter, error)

var exporters = map[string]exporterFactory{
	configs.ExporterOTLPHTTP: func(ctx context.Context, cfg configs.TracingConfig) (sdktrace.SpanExporter, error) {
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	},
	configs.ExporterOTLPGRPC: func(ctx context.Context, cfg configs.TracingConfig) (sdktrace.SpanExporter, error) {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}

		return otlptracegrpc.New(ctx, opts...)
	},
	configs.ExporterZipkin: func(_ context.Context, cfg configs.TracingConfig) (sdktrace.SpanExporter, error) {
		return zipkin.New(cfg.Endpoint)
	},
}

// InitTracer 安装全局 TracerProvider 与 W3C 传播器. 重复调用时替换并关闭旧的 provider.
func InitTracer(ctx context.Context, cfg configs.TracingConfig) error {
	if !cfg.Enabled {
		return nil
	}

	newExporter, ok := exporters[cfg.ExporterType]
	if !ok {
		return fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create %s exporter: %w", cfg.ExporterType, err)
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	for k, v := range cfg.ResourceLabels {
		attrs = append(attrs, attribute.String(k, v))
	}

	res, err := resource.New(ctx, resource.WithAttributes(attrs...), resource.WithHost())
	if err != nil {
		return fmt.Errorf("tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(cfg.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(cfg.MaxBatchSize),
			sdktrace.WithMaxQueueSize(cfg.MaxQueueSize),
		),
	)

	mu.Lock()
	old := provider
	provider = tp
	mu.Unlock()

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if old != nil {
		_ = old.Shutdown(ctx)
	}

	return nil
}

// ShutdownTracer 刷出剩余 span 并关闭 provider，未初始化时为空操作.
func ShutdownTracer(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	mu.Unlock()

	if tp == nil {
		return nil
	}

	return tp.Shutdown(ctx)
}

// StartSpan 使用 tagdrop 的 tracer 开始一个 span，调用方负责 span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(configs.AppName).Start(ctx, name, opts...)
}
