package estimate

import (
	"math"

	"github.com/wanjohi/buildcalc/internal/materials"
)

// Estimate kinds as stored in the estimates table and reported in metrics.
const (
	KindExcavation = "excavation"
	KindWalling    = "walling"
	KindConcrete   = "concrete"
	KindPlaster    = "plaster"
)

// Input is one labelled input (or derived figure) echoed back with a result.
type Input struct {
	Label string
	Value string
}

// Estimate is the outcome of one calculation: the inputs it was computed
// from, the priced material lines, and the total cost.
type Estimate struct {
	Kind   string
	Title  string
	Inputs []Input
	Lines  []materials.Line
	Total  float64
}

// Descriptions returns the Describe() rendering of each line, skipping
// suppressed (zero-quantity) lines.
func (e Estimate) Descriptions() []string {
	out := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		if d := l.Describe(); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Excavation estimates the volume and cost of digging a rectangular pit or
// trench. The cost is billed on the true volume at a rate per m³; it is not
// rounded up because labour, unlike materials, is not bought in whole units.
type Excavation struct {
	Length float64
	Width  float64
	Depth  float64
	Rate   float64
}

func (x Excavation) Estimate() (Estimate, error) {
	if err := positive("length", x.Length); err != nil {
		return Estimate{}, err
	}
	if err := positive("width", x.Width); err != nil {
		return Estimate{}, err
	}
	if err := positive("depth", x.Depth); err != nil {
		return Estimate{}, err
	}
	if !finite(x.Rate) || x.Rate < 0 {
		return Estimate{}, materials.NewValidationError("rate", "must not be negative")
	}

	// Billed on the true volume, rounded to 2 dp for invoicing.
	volume := round2(x.Length * x.Width * x.Depth)
	line := materials.Line{Name: "Excavation", Quantity: volume, Unit: "m³", Price: x.Rate}

	return Estimate{
		Kind:  KindExcavation,
		Title: "Excavation " + materials.FormatAmount(volume) + " m³",
		Inputs: []Input{
			{Label: "Length (m)", Value: materials.FormatAmount(x.Length)},
			{Label: "Width (m)", Value: materials.FormatAmount(x.Width)},
			{Label: "Depth (m)", Value: materials.FormatAmount(x.Depth)},
			{Label: "Rate per m³", Value: materials.FormatAmount(x.Rate)},
		},
		Lines: []materials.Line{line},
		Total: line.Cost(),
	}, nil
}

// Concrete estimates the cement, sand, and ballast needed to cast a
// rectangular volume with a three-part mix ratio.
type Concrete struct {
	Length    float64
	Width     float64
	Depth     float64
	Ratio     string
	DryFactor float64
}

func (c Concrete) Estimate(cat materials.Catalog) (Estimate, error) {
	if err := positive("length", c.Length); err != nil {
		return Estimate{}, err
	}
	if err := positive("width", c.Width); err != nil {
		return Estimate{}, err
	}
	if err := positive("depth", c.Depth); err != nil {
		return Estimate{}, err
	}

	volume := c.Length * c.Width * c.Depth
	lines, err := Mix{Volume: volume, Factor: c.DryFactor, Ratio: c.Ratio, WithBallast: true}.Lines(cat)
	if err != nil {
		return Estimate{}, err
	}

	return Estimate{
		Kind:  KindConcrete,
		Title: "Concrete " + c.Ratio + ", " + materials.FormatAmount(round2(volume)) + " m³",
		Inputs: []Input{
			{Label: "Length (m)", Value: materials.FormatAmount(c.Length)},
			{Label: "Width (m)", Value: materials.FormatAmount(c.Width)},
			{Label: "Depth (m)", Value: materials.FormatAmount(c.Depth)},
			{Label: "Mix ratio", Value: c.Ratio},
			{Label: "Dry volume factor", Value: materials.FormatAmount(c.DryFactor)},
		},
		Lines: lines,
		Total: sumCosts(lines),
	}, nil
}

// Plaster estimates the cement and sand needed to plaster a wall area at a
// given thickness with a two-part mix ratio.
type Plaster struct {
	Area      float64
	Thickness float64
	Ratio     string
	DryFactor float64
}

func (p Plaster) Estimate(cat materials.Catalog) (Estimate, error) {
	if err := positive("area", p.Area); err != nil {
		return Estimate{}, err
	}
	if err := positive("thickness", p.Thickness); err != nil {
		return Estimate{}, err
	}

	volume := p.Area * p.Thickness
	lines, err := Mix{Volume: volume, Factor: p.DryFactor, Ratio: p.Ratio, WithBallast: false}.Lines(cat)
	if err != nil {
		return Estimate{}, err
	}

	return Estimate{
		Kind:  KindPlaster,
		Title: "Plaster " + p.Ratio + ", " + materials.FormatAmount(round2(p.Area)) + " m²",
		Inputs: []Input{
			{Label: "Area (m²)", Value: materials.FormatAmount(p.Area)},
			{Label: "Thickness (m)", Value: materials.FormatAmount(p.Thickness)},
			{Label: "Mix ratio", Value: p.Ratio},
			{Label: "Dry volume factor", Value: materials.FormatAmount(p.DryFactor)},
		},
		Lines: lines,
		Total: sumCosts(lines),
	}, nil
}

// BlockWork prices a run of masonry blocks of a given size: total solid
// volume, coverage per square metre, and cost.
type BlockWork struct {
	Count float64
	Price float64
	Size  string
}

// BlockWorkResult carries the derived block-work figures alongside the
// priced line.
type BlockWorkResult struct {
	Size           materials.BlockSize
	VolumePerRun   float64
	PerSquareMetre float64
	Line           materials.Line
}

func (b BlockWork) Result() (BlockWorkResult, error) {
	if err := positive("count", b.Count); err != nil {
		return BlockWorkResult{}, err
	}
	if !finite(b.Price) || b.Price < 0 {
		return BlockWorkResult{}, materials.NewValidationError("price", "must not be negative")
	}

	size, err := materials.ParseBlockSize(b.Size)
	if err != nil {
		return BlockWorkResult{}, err
	}

	count := math.Ceil(b.Count)
	return BlockWorkResult{
		Size:           size,
		VolumePerRun:   size.Volume() * count,
		PerSquareMetre: size.PerSquareMetre(),
		Line:           materials.Line{Name: "Blocks " + size.String(), Quantity: count, Unit: "pcs", Price: b.Price},
	}, nil
}

func (b BlockWork) Estimate() (Estimate, error) {
	res, err := b.Result()
	if err != nil {
		return Estimate{}, err
	}

	return Estimate{
		Kind:  KindWalling,
		Title: "Block work " + res.Size.String() + ", " + materials.FormatAmount(res.Line.Quantity) + " pcs",
		Inputs: []Input{
			{Label: "Block size (mm)", Value: res.Size.String()},
			{Label: "Blocks", Value: materials.FormatAmount(res.Line.Quantity)},
			{Label: "Blocks per m²", Value: materials.FormatAmount(round2(res.PerSquareMetre))},
			{Label: "Volume per run (m³)", Value: materials.FormatAmount(round2(res.VolumePerRun))},
		},
		Lines: []materials.Line{res.Line},
		Total: res.Line.Cost(),
	}, nil
}

// Walling estimates the blocks needed for a wall of the given face
// dimensions, priced from the block catalog entry.
type Walling struct {
	Length float64
	Height float64
	Size   string
}

func (w Walling) Estimate(cat materials.Catalog) (Estimate, error) {
	if err := positive("length", w.Length); err != nil {
		return Estimate{}, err
	}
	if err := positive("height", w.Height); err != nil {
		return Estimate{}, err
	}

	size, err := materials.ParseBlockSize(w.Size)
	if err != nil {
		return Estimate{}, err
	}
	entry, err := cat.ByKind(materials.KindBlock)
	if err != nil {
		return Estimate{}, err
	}

	area := w.Length * w.Height
	count := math.Ceil(area * size.PerSquareMetre())
	line := materials.Line{Name: entry.Name + " " + size.String(), Quantity: count, Unit: entry.Unit, Price: entry.Price}

	return Estimate{
		Kind:  KindWalling,
		Title: "Walling " + materials.FormatAmount(round2(area)) + " m², " + size.String(),
		Inputs: []Input{
			{Label: "Wall length (m)", Value: materials.FormatAmount(w.Length)},
			{Label: "Wall height (m)", Value: materials.FormatAmount(w.Height)},
			{Label: "Block size (mm)", Value: size.String()},
			{Label: "Blocks per m²", Value: materials.FormatAmount(round2(size.PerSquareMetre()))},
		},
		Lines: []materials.Line{line},
		Total: line.Cost(),
	}, nil
}

func positive(field string, v float64) error {
	if !finite(v) || v <= 0 {
		return materials.NewValidationError(field, "must be greater than 0")
	}
	return nil
}

// finite reports whether v is a usable number (not NaN or ±Inf).
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
