package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"

	"github.com/hindsight/hub/internal/hub"
	"github.com/hindsight/hub/internal/logger"
	"github.com/hindsight/hub/internal/model"
)

const protobufMime = "application/x-protobuf"

// OTLPHandlers serves the OTLP/HTTP trace export endpoint. Incoming
// resource spans are flattened into the internal span model; fields the
// model does not carry (kind, links, scopes) are dropped.
type OTLPHandlers struct {
	hub          *hub.Hub
	maxBodyBytes int64
	log          zerolog.Logger
}

// NewOTLPHandlers creates OTLP ingest handlers backed by the hub.
func NewOTLPHandlers(h *hub.Hub, maxBodyBytes int64) *OTLPHandlers {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &OTLPHandlers{
		hub:          h,
		maxBodyBytes: maxBodyBytes,
		log:          logger.WithComponent("http.otlp"),
	}
}

// ExportTraces handles POST /v1/traces.
func (h *OTLPHandlers) ExportTraces(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), protobufMime) {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return
	}

	body, err := readBody(r, h.maxBodyBytes)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req coltracepb.ExportTraceServiceRequest
	if err := proto.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid protobuf", http.StatusBadRequest)
		return
	}

	spans := convertResourceSpans(req.GetResourceSpans())
	result := h.hub.IngestSpansVia("otlp", spans)
	if result.Rejected > 0 {
		h.log.Debug().
			Int("accepted", result.Accepted).
			Int("rejected", result.Rejected).
			Msg("OTLP export partially rejected")
	}

	payload, err := proto.Marshal(&coltracepb.ExportTraceServiceResponse{})
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", protobufMime)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// convertResourceSpans flattens an OTLP export into model spans. The
// service name comes from the resource's service.name attribute.
func convertResourceSpans(resourceSpans []*tracepb.ResourceSpans) []model.Span {
	var out []model.Span
	for _, rs := range resourceSpans {
		serviceName := ""
		for _, attr := range rs.GetResource().GetAttributes() {
			if attr.GetKey() == "service.name" {
				serviceName = attr.GetValue().GetStringValue()
				break
			}
		}
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				converted, ok := convertSpan(span, serviceName)
				if ok {
					out = append(out, converted)
				}
			}
		}
	}
	return out
}

func convertSpan(span *tracepb.Span, serviceName string) (model.Span, bool) {
	traceID, err := model.TraceIDFromBytes(span.GetTraceId())
	if err != nil {
		return model.Span{}, false
	}
	spanID, err := model.SpanIDFromBytes(span.GetSpanId())
	if err != nil {
		return model.Span{}, false
	}

	out := model.Span{
		TraceID:     traceID,
		SpanID:      spanID,
		Name:        span.GetName(),
		ServiceName: serviceName,
		StartTime:   model.Timestamp(span.GetStartTimeUnixNano()),
		Status:      convertStatus(span.GetStatus()),
	}

	if parent, err := model.SpanIDFromBytes(span.GetParentSpanId()); err == nil && !parent.IsZero() {
		out.ParentSpanID = &parent
	}

	// An end time of zero marks a span still in flight.
	if end := span.GetEndTimeUnixNano(); end != 0 {
		t := model.Timestamp(end)
		out.EndTime = &t
	}

	if attrs := convertAttributes(span.GetAttributes()); len(attrs) > 0 {
		out.Attributes = attrs
	}
	for _, ev := range span.GetEvents() {
		out.Events = append(out.Events, model.SpanEvent{
			Name:       ev.GetName(),
			Timestamp:  model.Timestamp(ev.GetTimeUnixNano()),
			Attributes: convertAttributes(ev.GetAttributes()),
		})
	}
	return out, true
}

func convertStatus(status *tracepb.Status) model.SpanStatus {
	if status.GetCode() == tracepb.Status_STATUS_CODE_ERROR {
		return model.ErrorStatus(status.GetMessage())
	}
	return model.OkStatus()
}

// convertAttributes keeps the scalar subset of OTLP attribute values.
// Arrays, maps and byte values have no model representation and are
// skipped.
func convertAttributes(kvs []*commonpb.KeyValue) map[string]model.AttributeValue {
	if len(kvs) == 0 {
		return nil
	}
	out := make(map[string]model.AttributeValue, len(kvs))
	for _, kv := range kvs {
		switch v := kv.GetValue().GetValue().(type) {
		case *commonpb.AnyValue_StringValue:
			out[kv.GetKey()] = model.StringValue(v.StringValue)
		case *commonpb.AnyValue_IntValue:
			out[kv.GetKey()] = model.IntValue(v.IntValue)
		case *commonpb.AnyValue_DoubleValue:
			out[kv.GetKey()] = model.FloatValue(v.DoubleValue)
		case *commonpb.AnyValue_BoolValue:
			out[kv.GetKey()] = model.BoolValue(v.BoolValue)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
