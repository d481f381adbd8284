package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
)

// envOTLPEndpoint OTLP 端点环境变量，配置未给出端点时兜底
const envOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"

// buildExporter 按 ExporterType 构造导出器
// otlp 走 HTTP 协议；stdout 供本地开发查看；noop 丢弃所有 span
func buildExporter(ctx context.Context, cfg *Config) (trace.SpanExporter, error) {
	switch cfg.ExporterType {
	case "otlp":
		return otlptracehttp.New(ctx, otlpOptions(cfg)...)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "noop":
		return discardExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}
}

// otlpOptions 组装 OTLP HTTP 选项
// 端点取值：配置 → OTEL_EXPORTER_OTLP_ENDPOINT → 客户端默认
func otlpOptions(cfg *Config) []otlptracehttp.Option {
	var opts []otlptracehttp.Option

	endpoint := cfg.ExporterEndpoint
	if endpoint == "" {
		endpoint = os.Getenv(envOTLPEndpoint)
	}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.ExporterHeaders) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.ExporterHeaders))
	}
	return opts
}

// discardExporter 丢弃 span 的导出器，noop 模式下仍返回合法 Provider
type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []trace.ReadOnlySpan) error { return nil }

func (discardExporter) Shutdown(context.Context) error { return nil }
