package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	collectorpb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
)

// exportTimeout bounds one collector POST.
const exportTimeout = 10 * time.Second

// tracesPath is the standard OTLP/HTTP traces endpoint path.
const tracesPath = "/v1/traces"

// Exporter posts finished spans to an OTLP/HTTP collector as protobuf.
type Exporter struct {
	url    string
	client *http.Client
}

// NewExporter creates an exporter for the collector at the given base
// endpoint (scheme://host:port); the standard traces path is appended.
func NewExporter(endpoint string) *Exporter {
	return &Exporter{
		url:    strings.TrimSuffix(endpoint, "/") + tracesPath,
		client: &http.Client{Timeout: exportTimeout},
	}
}

// ExportSpans marshals the batch into an ExportTraceServiceRequest and POSTs
// it. A non-2xx response is an error so the batcher's accounting sees it.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if len(spans) == 0 {
		return nil
	}

	body, err := proto.Marshal(&collectorpb.ExportTraceServiceRequest{
		ResourceSpans: transformSpans(spans),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal spans: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-protobuf")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to export spans: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("trace collector returned %s", resp.Status)
	}
	return nil
}

// Shutdown releases the exporter's connections.
func (e *Exporter) Shutdown(context.Context) error {
	e.client.CloseIdleConnections()
	return nil
}

// transformSpans converts a batch to the wire representation. All spans in
// one batch share a provider and therefore a resource; they are grouped by
// instrumentation scope.
func transformSpans(spans []sdktrace.ReadOnlySpan) []*tracepb.ResourceSpans {
	type scopeKey struct {
		name    string
		version string
	}

	byScope := make(map[scopeKey][]*tracepb.Span)
	var order []scopeKey
	for _, s := range spans {
		key := scopeKey{name: s.InstrumentationScope().Name, version: s.InstrumentationScope().Version}
		if _, seen := byScope[key]; !seen {
			order = append(order, key)
		}
		byScope[key] = append(byScope[key], transformSpan(s))
	}

	scopeSpans := make([]*tracepb.ScopeSpans, 0, len(order))
	for _, key := range order {
		scopeSpans = append(scopeSpans, &tracepb.ScopeSpans{
			Scope: &commonpb.InstrumentationScope{Name: key.name, Version: key.version},
			Spans: byScope[key],
		})
	}

	return []*tracepb.ResourceSpans{{
		Resource:   &resourcepb.Resource{Attributes: transformAttrs(spans[0].Resource().Attributes())},
		ScopeSpans: scopeSpans,
	}}
}

func transformSpan(s sdktrace.ReadOnlySpan) *tracepb.Span {
	sc := s.SpanContext()
	traceID := sc.TraceID()
	spanID := sc.SpanID()

	pb := &tracepb.Span{
		TraceId:           traceID[:],
		SpanId:            spanID[:],
		Name:              s.Name(),
		Kind:              transformKind(s.SpanKind()),
		StartTimeUnixNano: uint64(s.StartTime().UnixNano()),
		EndTimeUnixNano:   uint64(s.EndTime().UnixNano()),
		Attributes:        transformAttrs(s.Attributes()),
		Status:            transformStatus(s.Status()),
	}

	if parent := s.Parent(); parent.HasSpanID() {
		parentID := parent.SpanID()
		pb.ParentSpanId = parentID[:]
	}

	for _, ev := range s.Events() {
		pb.Events = append(pb.Events, &tracepb.Span_Event{
			Name:         ev.Name,
			TimeUnixNano: uint64(ev.Time.UnixNano()),
			Attributes:   transformAttrs(ev.Attributes),
		})
	}

	for _, link := range s.Links() {
		linkTraceID := link.SpanContext.TraceID()
		linkSpanID := link.SpanContext.SpanID()
		pb.Links = append(pb.Links, &tracepb.Span_Link{
			TraceId:    linkTraceID[:],
			SpanId:     linkSpanID[:],
			Attributes: transformAttrs(link.Attributes),
		})
	}

	return pb
}

func transformKind(kind trace.SpanKind) tracepb.Span_SpanKind {
	switch kind {
	case trace.SpanKindInternal:
		return tracepb.Span_SPAN_KIND_INTERNAL
	case trace.SpanKindServer:
		return tracepb.Span_SPAN_KIND_SERVER
	case trace.SpanKindClient:
		return tracepb.Span_SPAN_KIND_CLIENT
	case trace.SpanKindProducer:
		return tracepb.Span_SPAN_KIND_PRODUCER
	case trace.SpanKindConsumer:
		return tracepb.Span_SPAN_KIND_CONSUMER
	default:
		return tracepb.Span_SPAN_KIND_UNSPECIFIED
	}
}

func transformStatus(st sdktrace.Status) *tracepb.Status {
	code := tracepb.Status_STATUS_CODE_UNSET
	switch st.Code {
	case codes.Ok:
		code = tracepb.Status_STATUS_CODE_OK
	case codes.Error:
		code = tracepb.Status_STATUS_CODE_ERROR
	}
	return &tracepb.Status{Code: code, Message: st.Description}
}

func transformAttrs(attrs []attribute.KeyValue) []*commonpb.KeyValue {
	out := make([]*commonpb.KeyValue, 0, len(attrs))
	for _, kv := range attrs {
		out = append(out, &commonpb.KeyValue{Key: string(kv.Key), Value: transformValue(kv.Value)})
	}
	return out
}

// transformValue covers the scalar types this process emits; anything else
// falls back to its string rendering.
func transformValue(v attribute.Value) *commonpb.AnyValue {
	switch v.Type() {
	case attribute.BOOL:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v.AsBool()}}
	case attribute.INT64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: v.AsInt64()}}
	case attribute.FLOAT64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v.AsFloat64()}}
	case attribute.STRING:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v.AsString()}}
	default:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v.Emit()}}
	}
}
