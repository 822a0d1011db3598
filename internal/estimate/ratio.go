package estimate

import (
	"strconv"
	"strings"

	"github.com/wanjohi/buildcalc/internal/materials"
)

// ParseRatio parses a colon-separated mix ratio like "1:2:4" into its
// numeric parts. Every part must be a number greater than zero; anything
// else fails with a ValidationError so that a malformed ratio can never
// leak NaN into a computation.
func ParseRatio(s string) ([]float64, error) {
	raw := strings.Split(strings.TrimSpace(s), ":")
	if len(raw) < 2 {
		return nil, materials.NewValidationError("ratio", "must have at least two parts separated by colons, like 1:2, got %q", s)
	}

	parts := make([]float64, len(raw))
	for i, p := range raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		// ParseFloat accepts "NaN" and "Inf"; neither is a mix part.
		if err != nil || !finite(v) {
			return nil, materials.NewValidationError("ratio", "part %q is not a number", p)
		}
		if v <= 0 {
			return nil, materials.NewValidationError("ratio", "part %q must be greater than 0", p)
		}
		parts[i] = v
	}

	return parts, nil
}
