// Copyright 2026 fanjia1024
// OpenTelemetry integration for distributed tracing

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "callreplay"

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartInterceptSpan 开始一次拦截调用的 span；engine 为 record 或 replay
func StartInterceptSpan(ctx context.Context, engine, className, methodName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "intercept."+engine,
		trace.WithAttributes(
			attribute.String("intercept.class", className),
			attribute.String("intercept.method", methodName),
		),
	)
	return ctx, span
}

// MarkSession 在 span 上记录会话与 lane
func MarkSession(span trace.Span, sessionID string, lane int) {
	span.SetAttributes(
		attribute.String("intercept.session_id", sessionID),
		attribute.Int("intercept.lane", lane),
	)
}

// MarkMismatch 在 span 上记录重放校验失败
func MarkMismatch(span trace.Span, phase, kind string) {
	span.AddEvent("replay.mismatch", trace.WithAttributes(
		attribute.String("replay.phase", phase),
		attribute.String("replay.kind", kind),
	))
}
