// Package materials defines the priced construction inputs the estimators
// work with: an immutable catalog of material kinds and the per-request
// result lines computed from it. Catalog entries are never mutated by a
// calculation; every computation produces fresh Line values.
package materials

import "strconv"

// Kind identifies a material kind in the catalog.
//
// The values are stored in the material_rates table and used as stable keys
// throughout the application.
type Kind string

const (
	KindCement  Kind = "cement"
	KindSand    Kind = "sand"
	KindBallast Kind = "ballast"
	KindBlock   Kind = "block"
)

// Kinds is the full set of allowed material kinds, in catalog display order.
var Kinds = []Kind{KindCement, KindSand, KindBallast, KindBlock}

// CatalogEntry is an immutable catalog row: the price and the purchase-unit
// conversion factor for one material kind.
//
// Factor converts a volumetric share (m³) into the material's purchase unit:
// bags per m³ for cement, tons per m³ for sand and ballast. It is unused for
// blocks, which are priced per piece.
type CatalogEntry struct {
	Kind   Kind
	Name   string
	Unit   string
	Price  float64
	Factor float64
}

// Catalog is a lookup of catalog entries by material kind.
type Catalog map[Kind]CatalogEntry

// NewCatalog builds a catalog from the given entries. Later duplicates of a
// kind overwrite earlier ones.
func NewCatalog(entries ...CatalogEntry) Catalog {
	c := make(Catalog, len(entries))
	for _, e := range entries {
		c[e.Kind] = e
	}
	return c
}

// ByKind returns the entry for kind, or a ConfigurationError when the
// catalog has no such entry.
func (c Catalog) ByKind(kind Kind) (CatalogEntry, error) {
	e, ok := c[kind]
	if !ok {
		return CatalogEntry{}, &ConfigurationError{Kind: kind}
	}
	return e, nil
}

// Line is one computed result row: a quantity of a material at its catalog
// price. Lines are plain values owned by the caller; concurrent requests
// never share them.
type Line struct {
	Name     string
	Quantity float64
	Unit     string
	Price    float64
}

// Cost is the line total, always derived from the current quantity and
// price.
func (l Line) Cost() float64 {
	return l.Quantity * l.Price
}

// Describe renders the line as "<name>: <quantity> <unit> @ <price> = <cost>".
// A zero-quantity line describes to the empty string: materials that are not
// needed are suppressed from output rather than shown as zero rows.
func (l Line) Describe() string {
	if l.Quantity == 0 {
		return ""
	}
	return l.Name + ": " + FormatAmount(l.Quantity) + " " + l.Unit +
		" @ " + FormatAmount(l.Price) + " = " + FormatAmount(l.Cost())
}

// FormatAmount renders a float with the minimal number of decimals.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
