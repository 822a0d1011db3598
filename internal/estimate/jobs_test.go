package estimate

import (
	"errors"
	"math"
	"testing"

	"github.com/wanjohi/buildcalc/internal/materials"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestExcavationEstimate(t *testing.T) {
	est, err := Excavation{Length: 5, Width: 2, Depth: 1.5, Rate: 300}.Estimate()
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}

	if est.Kind != KindExcavation {
		t.Fatalf("kind = %q, want %q", est.Kind, KindExcavation)
	}
	if est.Title != "Excavation 15 m³" {
		t.Fatalf("title = %q", est.Title)
	}
	if len(est.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(est.Lines))
	}
	if est.Lines[0].Quantity != 15 || est.Lines[0].Unit != "m³" {
		t.Fatalf("line = %+v, want 15 m³", est.Lines[0])
	}
	if est.Total != 4500 {
		t.Fatalf("total = %v, want 4500", est.Total)
	}
}

func TestExcavationEstimate_VolumeRoundedForDisplay(t *testing.T) {
	// 6 * 0.7 is not exactly representable; the billed volume and title
	// must still come out as 4.2, not a 4.19999... tail.
	est, err := Excavation{Length: 6, Width: 0.7, Depth: 1, Rate: 500}.Estimate()
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}

	if est.Title != "Excavation 4.2 m³" {
		t.Fatalf("title = %q", est.Title)
	}
	nearlyEqual(t, "total", est.Total, 2100)
}

func TestExcavationEstimate_DoesNotRoundVolumeUp(t *testing.T) {
	est, err := Excavation{Length: 2.5, Width: 1, Depth: 1, Rate: 100}.Estimate()
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if est.Lines[0].Quantity != 2.5 {
		t.Fatalf("volume = %v, want 2.5 (labour is not bought in whole units)", est.Lines[0].Quantity)
	}
}

func TestExcavationEstimate_RejectsBadInputs(t *testing.T) {
	cases := []Excavation{
		{Length: 0, Width: 2, Depth: 1, Rate: 300},
		{Length: 5, Width: -2, Depth: 1, Rate: 300},
		{Length: 5, Width: 2, Depth: 0, Rate: 300},
		{Length: 5, Width: 2, Depth: 1, Rate: -1},
	}
	for _, x := range cases {
		_, err := x.Estimate()
		if err == nil {
			t.Fatalf("%+v succeeded, want validation error", x)
		}
		var vErr *materials.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%+v error type %T, want *ValidationError", x, err)
		}
	}
}

func TestConcreteEstimate(t *testing.T) {
	est, err := Concrete{Length: 5, Width: 2, Depth: 1, Ratio: "1:2:4", DryFactor: 1.54}.Estimate(testCatalog())
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}

	if est.Kind != KindConcrete {
		t.Fatalf("kind = %q, want %q", est.Kind, KindConcrete)
	}
	if est.Title != "Concrete 1:2:4, 10 m³" {
		t.Fatalf("title = %q", est.Title)
	}
	if len(est.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(est.Lines))
	}
	// 64 bags * 950 + 8 tons * 2600 + 20 tons * 2900
	if est.Total != 139600 {
		t.Fatalf("total = %v, want 139600", est.Total)
	}
}

func TestPlasterEstimate(t *testing.T) {
	est, err := Plaster{Area: 24, Thickness: 0.012, Ratio: "1:4", DryFactor: 1.33}.Estimate(testCatalog())
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}

	if est.Kind != KindPlaster {
		t.Fatalf("kind = %q, want %q", est.Kind, KindPlaster)
	}
	if est.Title != "Plaster 1:4, 24 m²" {
		t.Fatalf("title = %q", est.Title)
	}
	if len(est.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(est.Lines))
	}
	if est.Lines[0].Quantity != 3 {
		t.Fatalf("cement quantity = %v, want 3", est.Lines[0].Quantity)
	}
	if est.Lines[1].Quantity != 1 {
		t.Fatalf("sand quantity = %v, want 1", est.Lines[1].Quantity)
	}
	if est.Total != 5450 {
		t.Fatalf("total = %v, want 5450", est.Total)
	}
}

func TestWallingEstimate(t *testing.T) {
	est, err := Walling{Length: 6, Height: 4, Size: "360x180x180"}.Estimate(testCatalog())
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}

	if est.Kind != KindWalling {
		t.Fatalf("kind = %q, want %q", est.Kind, KindWalling)
	}
	if est.Title != "Walling 24 m², 360x180x180" {
		t.Fatalf("title = %q", est.Title)
	}
	// 24 m² at 1/((0.36+0.02)*(0.18+0.02)) ≈ 13.158 blocks per m², rounded up.
	if est.Lines[0].Quantity != 316 {
		t.Fatalf("block count = %v, want 316", est.Lines[0].Quantity)
	}
	if est.Lines[0].Name != "Masonry blocks 360x180x180" {
		t.Fatalf("line name = %q", est.Lines[0].Name)
	}
	if est.Total != 26860 {
		t.Fatalf("total = %v, want 26860", est.Total)
	}
}

func TestWallingEstimate_RejectsMalformedSize(t *testing.T) {
	_, err := Walling{Length: 6, Height: 4, Size: "360x180"}.Estimate(testCatalog())
	if err == nil {
		t.Fatalf("malformed size succeeded, want validation error")
	}
	var vErr *materials.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type %T, want *ValidationError", err)
	}
}

func TestWallingEstimate_MissingBlockEntry(t *testing.T) {
	cat := materials.NewCatalog(
		materials.CatalogEntry{Kind: materials.KindCement, Name: "Cement", Unit: "bags", Price: 950, Factor: 28.96},
	)
	_, err := Walling{Length: 6, Height: 4, Size: "360x180x180"}.Estimate(cat)
	if err == nil {
		t.Fatalf("expected configuration error for missing block entry")
	}
	var cfgErr *materials.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type %T, want *ConfigurationError", err)
	}
}

func TestBlockWorkResult(t *testing.T) {
	res, err := BlockWork{Count: 3000, Price: 85, Size: "360x180x180"}.Result()
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}

	nearlyEqual(t, "volume per run", res.VolumePerRun, 34.992)
	nearlyEqual(t, "blocks per m²", res.PerSquareMetre, 1/0.076)
	if res.Line.Quantity != 3000 {
		t.Fatalf("count = %v, want 3000", res.Line.Quantity)
	}
	if res.Line.Cost() != 255000 {
		t.Fatalf("cost = %v, want 255000", res.Line.Cost())
	}
}

func TestBlockWorkResult_FractionalCountRoundsUp(t *testing.T) {
	res, err := BlockWork{Count: 10.2, Price: 85, Size: "400x200x200"}.Result()
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	if res.Line.Quantity != 11 {
		t.Fatalf("count = %v, want 11", res.Line.Quantity)
	}
}

func TestBlockWorkEstimate(t *testing.T) {
	est, err := BlockWork{Count: 3000, Price: 85, Size: "360x180x180"}.Estimate()
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}

	if est.Kind != KindWalling {
		t.Fatalf("kind = %q, want %q", est.Kind, KindWalling)
	}
	if est.Title != "Block work 360x180x180, 3000 pcs" {
		t.Fatalf("title = %q", est.Title)
	}
	if est.Total != 255000 {
		t.Fatalf("total = %v, want 255000", est.Total)
	}
}

func TestEstimateDescriptionsSkipZeroQuantityLines(t *testing.T) {
	est := Estimate{
		Lines: []materials.Line{
			{Name: "Cement", Quantity: 3, Unit: "bags", Price: 950},
			{Name: "Hardcore fill", Quantity: 0, Unit: "tons", Price: 1500},
		},
	}

	got := est.Descriptions()
	if len(got) != 1 {
		t.Fatalf("expected 1 description, got %d: %v", len(got), got)
	}
	if got[0] != "Cement: 3 bags @ 950 = 2850" {
		t.Fatalf("description = %q", got[0])
	}
}
