package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for invocation spans.
const (
	AttrInstance       = "witrpc.instance"
	AttrFunction       = "witrpc.function"
	AttrOutcome        = "witrpc.outcome"
	AttrParamBytes     = "witrpc.param_bytes"
	AttrResultBytes    = "witrpc.result_bytes"
	AttrResourceHandle = "witrpc.resource_handle"
	AttrResourceType   = "witrpc.resource_type"
	AttrSubChannel     = "witrpc.sub_channel_path"
)

// Span names for the invoke/serve path.
const (
	SpanInvoke         = "witrpc.invoke"
	SpanServe          = "witrpc.serve"
	SpanDeferredWriter = "witrpc.deferred_writer"
)

// Instance returns an attribute identifying the exported instance being
// invoked (e.g. "wasi:rpc/bridge").
func Instance(name string) attribute.KeyValue {
	return attribute.String(AttrInstance, name)
}

// Function returns an attribute identifying the exported function name.
func Function(name string) attribute.KeyValue {
	return attribute.String(AttrFunction, name)
}

// Outcome returns an attribute for how an invocation concluded: "ok",
// "error", or "timeout".
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

// ParamBytes returns an attribute for the encoded parameter payload size.
func ParamBytes(n int) attribute.KeyValue {
	return attribute.Int(AttrParamBytes, n)
}

// ResultBytes returns an attribute for the encoded result payload size.
func ResultBytes(n int) attribute.KeyValue {
	return attribute.Int(AttrResultBytes, n)
}

// ResourceHandle returns an attribute for a shared-resource table handle.
func ResourceHandle(handle uint32) attribute.KeyValue {
	return attribute.Int64(AttrResourceHandle, int64(handle))
}

// ResourceType returns an attribute for a resource's WIT type name.
func ResourceType(name string) attribute.KeyValue {
	return attribute.String(AttrResourceType, name)
}

// SubChannelPath returns an attribute for a synthesized sub-channel's
// LEB128 path header, rendered as a dotted string.
func SubChannelPath(path string) attribute.KeyValue {
	return attribute.String(AttrSubChannel, path)
}

// StartInvokeSpan starts a span around one client-side invocation.
func StartInvokeSpan(ctx context.Context, instance, function string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanInvoke, trace.WithAttributes(Instance(instance), Function(function)))
}

// StartServeSpan starts a span around one server-side invocation handling.
func StartServeSpan(ctx context.Context, instance, function string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanServe, trace.WithAttributes(Instance(instance), Function(function)))
}

// StartDeferredWriterSpan starts a span around running one invocation's
// deferred sub-channel writers.
func StartDeferredWriterSpan(ctx context.Context, instance, function string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanDeferredWriter, trace.WithAttributes(Instance(instance), Function(function)))
}

// EndWithOutcome sets the outcome attribute, records err on the span if
// non-nil, and ends it. Callers defer this immediately after starting a
// span, mutating outcome in the same closure pattern used for metrics.
func EndWithOutcome(span trace.Span, outcome string, err error) {
	span.SetAttributes(Outcome(outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
