// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps an OpenTelemetry tracer with the span helpers every FSM
// transition, Agent primitive, and Scheduler state handler calls through.
// A Tracer built from a disabled TracingConfig uses otel's own no-op
// span implementation under the hood, so callers never need to nil-check
// before calling a method — only Manager.Tracer()'s caller, which may
// hold a nil *Tracer when tracing was never configured, needs that check.
type Tracer struct {
	tracer          trace.Tracer
	provider        *sdktrace.TracerProvider
	debugExporter   *DebugExporter
	capturePayloads bool
}

// TracerOption configures optional Tracer behavior.
type TracerOption func(*Tracer)

// WithDebugExporter attaches a DebugExporter as an additional span
// processor, so captured spans are queryable via DebugExporter's own
// accessors regardless of the configured primary exporter.
func WithDebugExporter(exporter *DebugExporter) TracerOption {
	return func(t *Tracer) {
		t.debugExporter = exporter
	}
}

// WithCapturePayloads enables AddPayload/AddToolPayload actually writing
// attributes onto spans; when false (the default) those calls are no-ops,
// since prompt/response payloads can be large and sensitive.
func WithCapturePayloads(enabled bool) TracerOption {
	return func(t *Tracer) {
		t.capturePayloads = enabled
	}
}

// NewTracer builds a Tracer from a TracingConfig. A disabled config still
// returns a usable Tracer backed by otel's no-op TracerProvider, so
// Manager can keep a single non-nil Tracer whenever the caller asked for
// one at all.
func NewTracer(ctx context.Context, cfg *TracingConfig, opts ...TracerOption) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("github.com/kadirpekel/orin")}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build exporter: %w", err)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithBatcher(exporter),
	}

	t := &Tracer{}
	for _, opt := range opts {
		opt(t)
	}
	if t.debugExporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(t.debugExporter))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	t.provider = provider
	t.tracer = provider.Tracer("github.com/kadirpekel/orin")
	return t, nil
}

func newSpanExporter(ctx context.Context, cfg *TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		return stdouttrace.New()
	case "", "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.IsInsecure() {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		// Jaeger/Zipkin collectors in the wild almost always speak OTLP
		// too; fall back to the OTLP exporter rather than hand-rolling a
		// client per exporter name.
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
	}
}

// Start opens a plain span, for call sites that don't fit one of the
// typed Start* helpers below.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// StartAgentRun opens a span around one Agent.RunTaskStream round.
func (t *Tracer) StartAgentRun(ctx context.Context, agentName, agentType, sessionID, taskID, userQuery string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanAgentRun, trace.WithAttributes(
		attribute.String(AttrAgentName, agentName),
		attribute.String(AttrAgentType, agentType),
		attribute.String(AttrSessionID, sessionID),
		attribute.String(AttrTaskID, taskID),
		attribute.String(AttrUserQuery, userQuery),
	))
}

// StartLLMCall opens a span around one llm.Service.Complete/Stream call.
func (t *Tracer) StartLLMCall(ctx context.Context, model string, maxTokens int, temperature, topP float64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanLLMCall, trace.WithAttributes(
		attribute.String(AttrLLMModel, model),
		attribute.Int(AttrLLMMaxTokens, maxTokens),
		attribute.Float64(AttrLLMTemperature, temperature),
		attribute.Float64(AttrLLMTopP, topP),
	))
}

// StartToolExecution opens a span around one tool dispatch.
func (t *Tracer) StartToolExecution(ctx context.Context, toolName, toolType, agentName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanToolExecution, trace.WithAttributes(
		attribute.String(AttrToolName, toolName),
		attribute.String(AttrToolType, toolType),
		attribute.String(AttrAgentName, agentName),
	))
}

// StartMemorySearch opens a span around one long-term memory recall.
func (t *Tracer) StartMemorySearch(ctx context.Context, indexType string, topK int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanMemorySearch, trace.WithAttributes(
		attribute.String(AttrMemoryIndexType, indexType),
		attribute.Int(AttrMemoryTopK, topK),
	))
}

// AddLLMUsage records token accounting on an in-flight LLM span.
func (t *Tracer) AddLLMUsage(span trace.Span, inputTokens, outputTokens int) {
	span.SetAttributes(
		attribute.Int(AttrLLMTokensInput, inputTokens),
		attribute.Int(AttrLLMTokensOutput, outputTokens),
	)
}

// AddLLMFinishReason records why an LLM completion stopped.
func (t *Tracer) AddLLMFinishReason(span trace.Span, reason string) {
	span.SetAttributes(attribute.String(AttrLLMFinishReason, reason))
}

// AddPayload attaches a prompt/response payload attribute, a no-op
// unless the Tracer was built WithCapturePayloads(true).
func (t *Tracer) AddPayload(span trace.Span, key, value string) {
	if !t.capturePayloads {
		return
	}
	span.SetAttributes(attribute.String(key, value))
}

// AddToolPayload attaches a tool call's input/output payload, a no-op
// unless the Tracer was built WithCapturePayloads(true).
func (t *Tracer) AddToolPayload(span trace.Span, key, value string) {
	t.AddPayload(span, key, value)
}

// RecordError marks span as errored and attaches err as a span event.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// DebugExporter returns the debug span sink this Tracer was built with,
// or nil if none was attached.
func (t *Tracer) DebugExporter() *DebugExporter {
	return t.debugExporter
}

// Shutdown flushes and closes the underlying TracerProvider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
