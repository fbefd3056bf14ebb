// Package seed loads demo traces so the query and live surfaces have
// something to show without a connected producer.
package seed

import (
	"github.com/hindsight/hub/internal/hub"
	"github.com/hindsight/hub/internal/logger"
	"github.com/hindsight/hub/internal/model"
)

// Load ingests the demo traces through the regular ingest path.
func Load(h *hub.Hub) {
	spans := demoSpans(model.Now())
	result := h.IngestSpans(spans)
	log := logger.WithComponent("seed")
	log.Info().
		Int("accepted", result.Accepted).
		Int("rejected", result.Rejected).
		Msg("Seed traces loaded")
}

func mustTraceID(s string) model.TraceID {
	id, err := model.ParseTraceID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func mustSpanID(s string) model.SpanID {
	id, err := model.ParseSpanID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func spanIDRef(s string) *model.SpanID {
	id := mustSpanID(s)
	return &id
}

func tsRef(t model.Timestamp) *model.Timestamp {
	return &t
}

func attrs(kv map[string]interface{}) map[string]model.AttributeValue {
	out := make(map[string]model.AttributeValue, len(kv))
	for k, v := range kv {
		switch val := v.(type) {
		case string:
			out[k] = model.StringValue(val)
		case int:
			out[k] = model.IntValue(int64(val))
		case int64:
			out[k] = model.IntValue(val)
		case float64:
			out[k] = model.FloatValue(val)
		case bool:
			out[k] = model.BoolValue(val)
		}
	}
	return out
}

// demoSpans covers the shapes the UI and query surface care about: a
// fast request, a slow transaction, errors, a fan-out, framework-tagged
// traces for each known kind, a mixed trace, and one still-open trace.
func demoSpans(now model.Timestamp) []model.Span {
	var spans []model.Span

	// Fast successful HTTP request with a child query.
	{
		traceID := mustTraceID("a1b2c3d4e5f6789012345678901234ab")
		start := now - 50_000_000
		spans = append(spans,
			model.Span{
				TraceID:     traceID,
				SpanID:      mustSpanID("1234567890abcdef"),
				Name:        "GET /api/users",
				ServiceName: "api-gateway",
				StartTime:   start,
				EndTime:     tsRef(start + 12_000_000),
				Attributes: attrs(map[string]interface{}{
					"http.method":      "GET",
					"http.url":         "/api/users",
					"http.status_code": 200,
				}),
				Status: model.OkStatus(),
			},
			model.Span{
				TraceID:      traceID,
				SpanID:       mustSpanID("abcdef1234567890"),
				ParentSpanID: spanIDRef("1234567890abcdef"),
				Name:         "db.query users",
				ServiceName:  "api-gateway",
				StartTime:    start + 2_000_000,
				EndTime:      tsRef(start + 10_000_000),
				Attributes: attrs(map[string]interface{}{
					"db.system":    "postgresql",
					"db.statement": "SELECT * FROM users LIMIT 10",
				}),
				Status: model.OkStatus(),
			},
		)
	}

	// Slow request blocked on a database lock.
	{
		traceID := mustTraceID("deadbeef12345678901234567890abcd")
		start := now - 2_500_000_000
		spans = append(spans,
			model.Span{
				TraceID:     traceID,
				SpanID:      mustSpanID("fedcba9876543210"),
				Name:        "POST /api/orders",
				ServiceName: "order-service",
				StartTime:   start,
				EndTime:     tsRef(start + 2_345_000_000),
				Attributes: attrs(map[string]interface{}{
					"http.method":      "POST",
					"http.url":         "/api/orders",
					"http.status_code": 200,
				}),
				Status: model.OkStatus(),
			},
			model.Span{
				TraceID:      traceID,
				SpanID:       mustSpanID("1111222233334444"),
				ParentSpanID: spanIDRef("fedcba9876543210"),
				Name:         "db.transaction",
				ServiceName:  "order-service",
				StartTime:    start + 50_000_000,
				EndTime:      tsRef(start + 2_340_000_000),
				Attributes: attrs(map[string]interface{}{
					"db.system":    "postgresql",
					"db.operation": "INSERT",
				}),
				Events: []model.SpanEvent{{
					Name:      "Waiting for lock",
					Timestamp: start + 100_000_000,
					Attributes: attrs(map[string]interface{}{
						"lock.type": "ROW EXCLUSIVE",
					}),
				}},
				Status: model.OkStatus(),
			},
		)
	}

	// Failed request with an exception event.
	{
		traceID := mustTraceID("e440e404e440e404e440e404e440e404")
		start := now - 15_000_000
		spans = append(spans, model.Span{
			TraceID:     traceID,
			SpanID:      mustSpanID("5555666677778888"),
			Name:        "GET /api/user/999",
			ServiceName: "user-service",
			StartTime:   start,
			EndTime:     tsRef(start + 8_000_000),
			Attributes: attrs(map[string]interface{}{
				"http.method":      "GET",
				"http.url":         "/api/user/999",
				"http.status_code": 404,
				"error":            true,
				"error.message":    "User not found",
			}),
			Events: []model.SpanEvent{{
				Name:      "exception",
				Timestamp: start + 5_000_000,
				Attributes: attrs(map[string]interface{}{
					"exception.type":    "UserNotFoundException",
					"exception.message": "No user with ID 999",
				}),
			}},
			Status: model.ErrorStatus("User not found"),
		})
	}

	// Checkout fan-out across services.
	{
		traceID := mustTraceID("c0a10000c0a10000c0a10000c0a10000")
		start := now - 500_000_000
		root := "1111000000000001"
		spans = append(spans,
			model.Span{
				TraceID:     traceID,
				SpanID:      mustSpanID(root),
				Name:        "POST /api/checkout",
				ServiceName: "api-gateway",
				StartTime:   start,
				EndTime:     tsRef(start + 485_000_000),
				Attributes: attrs(map[string]interface{}{
					"http.method": "POST",
					"http.url":    "/api/checkout",
				}),
				Status: model.OkStatus(),
			},
			model.Span{
				TraceID:      traceID,
				SpanID:       mustSpanID("2222000000000002"),
				ParentSpanID: spanIDRef(root),
				Name:         "validate_cart",
				ServiceName:  "cart-service",
				StartTime:    start + 5_000_000,
				EndTime:      tsRef(start + 50_000_000),
				Status:       model.OkStatus(),
			},
			model.Span{
				TraceID:      traceID,
				SpanID:       mustSpanID("3333000000000003"),
				ParentSpanID: spanIDRef(root),
				Name:         "check_inventory",
				ServiceName:  "inventory-service",
				StartTime:    start + 55_000_000,
				EndTime:      tsRef(start + 175_000_000),
				Attributes: attrs(map[string]interface{}{
					"items.checked": 3,
				}),
				Status: model.OkStatus(),
			},
			model.Span{
				TraceID:      traceID,
				SpanID:       mustSpanID("4444000000000004"),
				ParentSpanID: spanIDRef(root),
				Name:         "process_payment",
				ServiceName:  "payment-service",
				StartTime:    start + 180_000_000,
				EndTime:      tsRef(start + 460_000_000),
				Attributes: attrs(map[string]interface{}{
					"payment.provider": "stripe",
					"payment.amount":   "99.99",
				}),
				Status: model.OkStatus(),
			},
			model.Span{
				TraceID:      traceID,
				SpanID:       mustSpanID("5555000000000005"),
				ParentSpanID: spanIDRef(root),
				Name:         "create_order",
				ServiceName:  "order-service",
				StartTime:    start + 455_000_000,
				EndTime:      tsRef(start + 485_000_000),
				Attributes: attrs(map[string]interface{}{
					"order.id": "ORD-12345",
				}),
				Status: model.OkStatus(),
			},
		)
	}

	// Gateway timeout with an erroring child call.
	{
		traceID := mustTraceID("00e0000000e0000000e0000000e00000")
		start := now - 5_100_000_000
		spans = append(spans,
			model.Span{
				TraceID:     traceID,
				SpanID:      mustSpanID("1a2b3c4d5e6f7890"),
				Name:        "GET /api/external",
				ServiceName: "api-gateway",
				StartTime:   start,
				EndTime:     tsRef(start + 5_050_000_000),
				Attributes: attrs(map[string]interface{}{
					"http.method":      "GET",
					"http.status_code": 504,
				}),
				Status: model.ErrorStatus("Gateway timeout"),
			},
			model.Span{
				TraceID:      traceID,
				SpanID:       mustSpanID("2b3c4d5e6f7890a1"),
				ParentSpanID: spanIDRef("1a2b3c4d5e6f7890"),
				Name:         "http.call external-api",
				ServiceName:  "api-gateway",
				StartTime:    start + 10_000_000,
				EndTime:      tsRef(start + 5_040_000_000),
				Attributes: attrs(map[string]interface{}{
					"http.url": "https://external-api.example.com",
				}),
				Events: []model.SpanEvent{{
					Name:      "timeout",
					Timestamp: start + 5_000_000_000,
					Attributes: attrs(map[string]interface{}{
						"timeout.duration": "5s",
					}),
				}},
				Status: model.ErrorStatus("Request timeout after 5s"),
			},
		)
	}

	// Framework-tagged incremental computation trace.
	{
		traceID := mustTraceID("91ca47e0000000000000000000000001")
		start := now - 320_000_000
		spans = append(spans,
			model.Span{
				TraceID:     traceID,
				SpanID:      mustSpanID("91ca000000000001"),
				Name:        "picante.query resolve_module",
				ServiceName: "build-daemon",
				StartTime:   start,
				EndTime:     tsRef(start + 300_000_000),
				Attributes: attrs(map[string]interface{}{
					"picante.revision": 42,
				}),
				Status: model.OkStatus(),
			},
			model.Span{
				TraceID:      traceID,
				SpanID:       mustSpanID("91ca000000000002"),
				ParentSpanID: spanIDRef("91ca000000000001"),
				Name:         "picante.memo typecheck",
				ServiceName:  "build-daemon",
				StartTime:    start + 20_000_000,
				EndTime:      tsRef(start + 280_000_000),
				Attributes: attrs(map[string]interface{}{
					"picante.memo_hit": false,
				}),
				Status: model.OkStatus(),
			},
		)
	}

	// RPC topology trace.
	{
		traceID := mustTraceID("4a9ace00000000000000000000000001")
		start := now - 90_000_000
		spans = append(spans, model.Span{
			TraceID:     traceID,
			SpanID:      mustSpanID("4a9ace0000000001"),
			Name:        "rapace.call shard_lookup",
			ServiceName: "mesh-router",
			StartTime:   start,
			EndTime:     tsRef(start + 4_000_000),
			Attributes: attrs(map[string]interface{}{
				"rapace.target": "shard-7",
			}),
			Status: model.OkStatus(),
		})
	}

	// Mixed trace crossing two framework convention sets.
	{
		traceID := mustTraceID("313e0d00000000000000000000000001")
		start := now - 700_000_000
		spans = append(spans,
			model.Span{
				TraceID:     traceID,
				SpanID:      mustSpanID("313e0d0000000001"),
				Name:        "dodeca.render dashboard",
				ServiceName: "ui-server",
				StartTime:   start,
				EndTime:     tsRef(start + 60_000_000),
				Attributes: attrs(map[string]interface{}{
					"dodeca.page": "dashboard",
				}),
				Status: model.OkStatus(),
			},
			model.Span{
				TraceID:      traceID,
				SpanID:       mustSpanID("313e0d0000000002"),
				ParentSpanID: spanIDRef("313e0d0000000001"),
				Name:         "rapace.call fetch_panels",
				ServiceName:  "mesh-router",
				StartTime:    start + 5_000_000,
				EndTime:      tsRef(start + 55_000_000),
				Attributes: attrs(map[string]interface{}{
					"rapace.target": "panel-store",
				}),
				Status: model.OkStatus(),
			},
		)
	}

	// A trace still in flight: the root is closed later than its child,
	// which has no end time yet.
	{
		traceID := mustTraceID("0be40000000000000000000000000001")
		start := now - 30_000_000
		spans = append(spans,
			model.Span{
				TraceID:     traceID,
				SpanID:      mustSpanID("0be4000000000001"),
				Name:        "stream /api/export",
				ServiceName: "export-service",
				StartTime:   start,
				Status:      model.OkStatus(),
			},
			model.Span{
				TraceID:      traceID,
				SpanID:       mustSpanID("0be4000000000002"),
				ParentSpanID: spanIDRef("0be4000000000001"),
				Name:         "chunk.write",
				ServiceName:  "export-service",
				StartTime:    start + 1_000_000,
				EndTime:      tsRef(start + 9_000_000),
				Status:       model.OkStatus(),
			},
		)
	}

	return spans
}
