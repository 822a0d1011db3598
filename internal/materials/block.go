package materials

import (
	"math"
	"strconv"
	"strings"
)

// mortarJoint is the joint allowance added to a block's face dimensions when
// working out how many blocks cover a square metre of wall. 20 mm on the
// length and on the height.
const mortarJoint = 0.02

// BlockSize holds a masonry block's dimensions in metres.
type BlockSize struct {
	Length    float64
	Thickness float64
	Height    float64
}

// ParseBlockSize parses a size string like "360x180x180" (millimetres,
// length x thickness x height) into metres. Malformed input fails with a
// ValidationError; it never produces NaN dimensions.
func ParseBlockSize(s string) (BlockSize, error) {
	parts := strings.Split(strings.TrimSpace(s), "x")
	if len(parts) != 3 {
		return BlockSize{}, NewValidationError("size", "must be three numbers separated by x, like 360x180x180, got %q", s)
	}

	dims := make([]float64, 3)
	for i, p := range parts {
		mm, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		// ParseFloat accepts "NaN" and "Inf"; neither is a dimension.
		if err != nil || math.IsNaN(mm) || math.IsInf(mm, 0) {
			return BlockSize{}, NewValidationError("size", "segment %q is not a number", p)
		}
		if mm <= 0 {
			return BlockSize{}, NewValidationError("size", "segment %q must be greater than 0", p)
		}
		dims[i] = mm / 1000
	}

	return BlockSize{Length: dims[0], Thickness: dims[1], Height: dims[2]}, nil
}

// Volume is the solid volume of one block in m³.
func (b BlockSize) Volume() float64 {
	return b.Length * b.Thickness * b.Height
}

// PerSquareMetre is the number of blocks needed to cover one square metre of
// wall face, each block's footprint inflated by the mortar joint on the
// length and the height.
func (b BlockSize) PerSquareMetre() float64 {
	return 1 / ((b.Length + mortarJoint) * (b.Height + mortarJoint))
}

// String renders the size back in millimetres, e.g. "360x180x180".
func (b BlockSize) String() string {
	return FormatAmount(b.Length*1000) + "x" + FormatAmount(b.Thickness*1000) + "x" + FormatAmount(b.Height*1000)
}
