package validation

import "fmt"

// ValidationError indicates a malformed request parameter or body. The
// HTTP layer maps it to a 400 response.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Reason)
}
