package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSpanBatch(t *testing.T) {
	valid := `{
		"spans": [{
			"trace_id": "a1b2c3d4e5f6789012345678901234ab",
			"span_id": "1234567890abcdef",
			"name": "GET /api/users",
			"service_name": "api-gateway",
			"start_time": 1000,
			"end_time": 2000,
			"attributes": {"http.method": "GET", "http.status_code": 200, "cache.hit": true},
			"events": [{"name": "checkpoint", "timestamp": 1500}],
			"status": {"code": 0}
		}]
	}`
	assert.NoError(t, ValidateSpanBatch([]byte(valid)))
}

func TestValidateSpanBatchOpenSpan(t *testing.T) {
	// end_time is optional: open spans are structurally valid.
	body := `{
		"spans": [{
			"trace_id": "a1b2c3d4e5f6789012345678901234ab",
			"span_id": "1234567890abcdef",
			"name": "stream",
			"service_name": "svc",
			"start_time": 1000
		}]
	}`
	assert.NoError(t, ValidateSpanBatch([]byte(body)))
}

func TestValidateSpanBatchRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing spans", `{}`},
		{"spans not array", `{"spans": 42}`},
		{"short trace id", `{"spans":[{"trace_id":"abc","span_id":"1234567890abcdef","name":"op","service_name":"svc","start_time":1}]}`},
		{"bad span id", `{"spans":[{"trace_id":"a1b2c3d4e5f6789012345678901234ab","span_id":"zzzz","name":"op","service_name":"svc","start_time":1}]}`},
		{"empty name", `{"spans":[{"trace_id":"a1b2c3d4e5f6789012345678901234ab","span_id":"1234567890abcdef","name":"","service_name":"svc","start_time":1}]}`},
		{"missing start", `{"spans":[{"trace_id":"a1b2c3d4e5f6789012345678901234ab","span_id":"1234567890abcdef","name":"op","service_name":"svc"}]}`},
		{"array attribute", `{"spans":[{"trace_id":"a1b2c3d4e5f6789012345678901234ab","span_id":"1234567890abcdef","name":"op","service_name":"svc","start_time":1,"attributes":{"bad":[1,2]}}]}`},
		{"bad status code", `{"spans":[{"trace_id":"a1b2c3d4e5f6789012345678901234ab","span_id":"1234567890abcdef","name":"op","service_name":"svc","start_time":1,"status":{"code":7}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSpanBatch([]byte(tt.body))
			require.Error(t, err)
			assert.IsType(t, ValidationError{}, err)
		})
	}
}
