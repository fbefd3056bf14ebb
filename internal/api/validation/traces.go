package validation

import (
	"net/url"
	"strconv"

	"github.com/hindsight/hub/internal/model"
)

// ParseTraceID parses a trace id path segment.
func ParseTraceID(raw string) (model.TraceID, error) {
	id, err := model.ParseTraceID(raw)
	if err != nil {
		return model.TraceID{}, ValidationError{Field: "trace_id", Reason: err.Error()}
	}
	return id, nil
}

// ParseTraceFilter builds a trace filter from list query parameters.
// Unknown parameters are ignored; malformed values are errors.
func ParseTraceFilter(values url.Values) (model.TraceFilter, error) {
	var filter model.TraceFilter

	filter.ServiceName = values.Get("service_name")

	if raw := values.Get("min_duration"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, ValidationError{Field: "min_duration", Reason: "must be an unsigned integer (nanoseconds)"}
		}
		filter.MinDuration = &v
	}
	if raw := values.Get("max_duration"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, ValidationError{Field: "max_duration", Reason: "must be an unsigned integer (nanoseconds)"}
		}
		filter.MaxDuration = &v
	}
	if raw := values.Get("has_errors"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, ValidationError{Field: "has_errors", Reason: "must be a boolean"}
		}
		filter.HasErrors = &v
	}
	if raw := values.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, ValidationError{Field: "limit", Reason: "must be an integer"}
		}
		filter.Limit = v
	}

	if err := filter.Validate(); err != nil {
		return filter, ValidationError{Field: "filter", Reason: err.Error()}
	}
	return filter, nil
}
