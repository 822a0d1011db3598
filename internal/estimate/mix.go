// Package estimate computes construction material requirements and costs:
// proportioned mixes (concrete, plaster), masonry block work, and excavation.
// All computations are pure functions over an immutable materials catalog;
// every call returns fresh result lines, so concurrent requests never share
// state.
package estimate

import (
	"math"

	"github.com/wanjohi/buildcalc/internal/materials"
)

// Mix describes a proportioned dry mix to be satisfied for a target volume.
//
// Factor is the wet-to-dry conversion (bulking) factor supplied by the
// caller, e.g. 1.54 for concrete or 1.33 for plaster. WithBallast selects a
// three-part cement:sand:ballast mix over a two-part cement:sand one, and
// the ratio's part count must match.
type Mix struct {
	Volume      float64
	Factor      float64
	Ratio       string
	WithBallast bool
}

// Lines computes the purchase quantity of each mix component.
//
// The ratio parts are shares of the dry volume (Volume * Factor); each share
// is converted into the material's purchase unit with the catalog factor and
// rounded up, never down: under-purchasing on site costs more than the
// rounding ever does.
func (m Mix) Lines(cat materials.Catalog) ([]materials.Line, error) {
	if err := positive("volume", m.Volume); err != nil {
		return nil, err
	}
	if err := positive("factor", m.Factor); err != nil {
		return nil, err
	}

	parts, err := ParseRatio(m.Ratio)
	if err != nil {
		return nil, err
	}

	kinds := []materials.Kind{materials.KindCement, materials.KindSand}
	if m.WithBallast {
		kinds = append(kinds, materials.KindBallast)
	}
	if len(parts) != len(kinds) {
		return nil, materials.NewValidationError("ratio", "%q has %d parts, want %d", m.Ratio, len(parts), len(kinds))
	}

	sum := 0.0
	for _, p := range parts {
		sum += p
	}
	dry := m.Volume * m.Factor

	lines := make([]materials.Line, 0, len(kinds))
	for i, kind := range kinds {
		entry, err := cat.ByKind(kind)
		if err != nil {
			return nil, err
		}
		share := parts[i] / sum * dry
		lines = append(lines, materials.Line{
			Name:     entry.Name,
			Quantity: math.Ceil(share * entry.Factor),
			Unit:     entry.Unit,
			Price:    entry.Price,
		})
	}

	return lines, nil
}

func sumCosts(lines []materials.Line) float64 {
	total := 0.0
	for _, l := range lines {
		total += l.Cost()
	}
	return total
}
