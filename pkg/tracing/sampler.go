package tracing

import (
	"os"
	"strconv"

	"go.opentelemetry.io/otel/sdk/trace"
)

// 采样环境变量，遵循 OTel SDK 约定；设置时优先于文件配置
const (
	envSampler    = "OTEL_TRACES_SAMPLER"
	envSamplerArg = "OTEL_TRACES_SAMPLER_ARG"
)

// buildSampler 构造采样器
// OTEL_TRACES_SAMPLER 设置时按环境变量取值，否则按 SamplingType；
// 未识别的取值回落到 parent_based
func buildSampler(cfg *Config) trace.Sampler {
	if name := os.Getenv(envSampler); name != "" {
		return samplerByEnvName(name)
	}

	switch cfg.SamplingType {
	case "always":
		return trace.AlwaysSample()
	case "never":
		return trace.NeverSample()
	case "ratio":
		return trace.TraceIDRatioBased(cfg.SamplingRate)
	default: // parent_based
		return trace.ParentBased(trace.TraceIDRatioBased(cfg.SamplingRate))
	}
}

// samplerByEnvName 按 OTel 标准采样器名选取
func samplerByEnvName(name string) trace.Sampler {
	switch name {
	case "always_on":
		return trace.AlwaysSample()
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(envSampleRatio())
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(envSampleRatio()))
	default: // parentbased_always_on 及未识别取值
		return trace.ParentBased(trace.AlwaysSample())
	}
}

// envSampleRatio 读取 OTEL_TRACES_SAMPLER_ARG，非法或缺失按全量采样
func envSampleRatio() float64 {
	raw := os.Getenv(envSamplerArg)
	if raw == "" {
		return 1.0
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1.0
	}
	return ratio
}
