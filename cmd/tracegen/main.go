// tracegen posts generated OTLP trace batches at a running hub, for
// local development and load testing.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"google.golang.org/protobuf/proto"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

func main() {
	endpoint := flag.String("endpoint", "http://localhost:1990/v1/traces", "OTLP HTTP endpoint")
	count := flag.Int("count", 1, "number of traces to send")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between traces")
	service := flag.String("service", "tracegen-demo", "service name on generated spans")
	errorRate := flag.Float64("error-rate", 0.1, "fraction of traces marked as failed")
	flag.Parse()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < *count; i++ {
		req := generateTrace(rng, *service, rng.Float64() < *errorRate)
		if err := send(*endpoint, req); err != nil {
			log.Fatalf("send trace %d: %v", i+1, err)
		}
		if i+1 < *count {
			time.Sleep(*interval)
		}
	}
	log.Printf("sent %d traces to %s", *count, *endpoint)
}

func send(endpoint string, req *coltracepb.ExportTraceServiceRequest) error {
	payload, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response status %s", resp.Status)
	}
	return nil
}

func randomID(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	rng.Read(b)
	return b
}

func strAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

func generateTrace(rng *rand.Rand, service string, failed bool) *coltracepb.ExportTraceServiceRequest {
	traceID := randomID(rng, 16)
	rootID := randomID(rng, 8)
	childID := randomID(rng, 8)

	rootDuration := time.Duration(5+rng.Intn(250)) * time.Millisecond
	end := time.Now()
	start := end.Add(-rootDuration)

	rootStatus := &tracepb.Status{Code: tracepb.Status_STATUS_CODE_OK}
	if failed {
		rootStatus = &tracepb.Status{
			Code:    tracepb.Status_STATUS_CODE_ERROR,
			Message: "synthetic failure",
		}
	}

	return &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				Resource: &resourcepb.Resource{
					Attributes: []*commonpb.KeyValue{
						strAttr("service.name", service),
					},
				},
				ScopeSpans: []*tracepb.ScopeSpans{
					{
						Spans: []*tracepb.Span{
							{
								TraceId:           traceID,
								SpanId:            rootID,
								Name:              "GET /demo",
								Kind:              tracepb.Span_SPAN_KIND_SERVER,
								StartTimeUnixNano: uint64(start.UnixNano()),
								EndTimeUnixNano:   uint64(end.UnixNano()),
								Attributes: []*commonpb.KeyValue{
									strAttr("http.method", "GET"),
									strAttr("http.route", "/demo"),
								},
								Status: rootStatus,
							},
							{
								TraceId:           traceID,
								SpanId:            childID,
								ParentSpanId:      rootID,
								Name:              "db.query demo",
								Kind:              tracepb.Span_SPAN_KIND_CLIENT,
								StartTimeUnixNano: uint64(start.Add(time.Millisecond).UnixNano()),
								EndTimeUnixNano:   uint64(end.Add(-time.Millisecond).UnixNano()),
								Attributes: []*commonpb.KeyValue{
									strAttr("db.system", "postgresql"),
								},
							},
						},
					},
				},
			},
		},
	}
}
