// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集 HTTP、上传、缩略图、清理与打包下载等指标.
//
// Example:
//
//	import "github.com/yeisme/tagdrop/pkg/metrics"
//
//	metrics.InitMetrics(cfg.Metrics)
//
//	// 记录指标
//	metrics.UploadsTotal.WithLabelValues(metrics.ResultOK).Inc()
package metrics

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/tagdrop/pkg/configs"
)

// 结果标签取值.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

const namespace = configs.AppName

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ResponseBytes 响应体字节数，下载与归档的出口流量主要体现在这里.
	ResponseBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_response_bytes_total",
			Help:      "Total number of HTTP response body bytes",
		},
		[]string{"endpoint"},
	)

	// ActiveConnections 活跃请求数.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	// UploadsTotal 上传次数，按结果区分.
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of uploads by result",
		},
		[]string{"result"},
	)

	// UploadBytes 成功写入的字节数.
	UploadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Total bytes committed by uploads",
		},
	)

	// ChecksumMismatches 客户端校验和不一致次数.
	ChecksumMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_checksum_mismatches_total",
			Help:      "Uploads whose client supplied checksum did not match the content",
		},
	)

	// DownloadsTotal 文件下载次数.
	DownloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Total number of file downloads",
		},
	)

	// ThumbnailsTotal 缩略图生成次数，按结果区分.
	ThumbnailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnails_total",
			Help:      "Thumbnail generation attempts by result",
		},
		[]string{"result"},
	)

	// SweepRuns 清理执行次数.
	SweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Lifecycle sweep runs by result",
		},
		[]string{"result"},
	)

	// SweepDuration 单次清理耗时.
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a lifecycle sweep",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	// TagsReaped 被清理的标签数.
	TagsReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tags_reaped_total",
			Help:      "Total number of expired tags reaped",
		},
	)

	// ReapErrors 清理步骤失败次数.
	ReapErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reap_errors_total",
			Help:      "Total number of failed reap steps",
		},
	)

	// ArchiveStreams 打包下载次数，按结果区分.
	ArchiveStreams = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_streams_total",
			Help:      "Archive streams by result",
		},
		[]string{"result"},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()
	initOnce sync.Once
)

// InitMetrics 初始化Metrics，重复调用无副作用.
func InitMetrics(config configs.MetricsConfig) {
	if !config.Enabled {
		return
	}

	initOnce.Do(func() {
		// Go 与进程收集器默认注册在 DefaultRegisterer，会随 Register 一起汇总
		if !config.RuntimeMetrics {
			prometheus.Unregister(collectors.NewGoCollector())
			prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		}

		registry.MustRegister(
			RequestCounter, RequestDuration, ResponseBytes, ActiveConnections,
			UploadsTotal, UploadBytes, ChecksumMismatches, DownloadsTotal,
			ThumbnailsTotal, SweepRuns, SweepDuration, TagsReaped, ReapErrors,
			ArchiveStreams,
		)
	})
}

// Register 把指标暴露到 engine 的 path 路径.
// gorm prometheus 插件注册在默认注册表，因此两者一起汇总.
func Register(config configs.MetricsConfig, engine *gin.Engine) {
	if !config.Enabled {
		return
	}

	gatherers := prometheus.Gatherers{registry, prometheus.DefaultGatherer}
	engine.GET(config.Path, gin.WrapH(promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})))
}

// GetRegistry 获取Prometheus注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}
