package materials

import "fmt"

// ValidationError reports user-supplied input that cannot be computed on.
// Handlers render the reason verbatim, so it must be self-explanatory.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a named input field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports a material kind requested by a calculation but
// absent from the supplied catalog.
type ConfigurationError struct {
	Kind Kind
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("material catalog has no entry for %q", e.Kind)
}
