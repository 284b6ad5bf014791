// internal/sales/aggregate.go
package sales

// Totals is the per-SKU fold of sales lines.
type Totals struct {
	Quantity    float64
	NetAmount   float64
	Description string
}

// SKUTotals accumulates sales totals keyed by SKU. Not safe for concurrent
// use; parallel fetch paths fold into separate instances and Merge.
type SKUTotals map[string]*Totals

func NewSKUTotals() SKUTotals {
	return make(SKUTotals)
}

// Add folds lines into the running totals. The last non-empty line
// description per SKU is retained for placeholder product creation.
func (t SKUTotals) Add(lines ...LineItem) {
	for _, line := range lines {
		entry, exists := t[line.SKU]
		if !exists {
			entry = &Totals{}
			t[line.SKU] = entry
		}
		entry.Quantity += line.Quantity
		entry.NetAmount += line.NetAmount
		if line.Description != "" {
			entry.Description = line.Description
		}
	}
}

// Merge folds other into t.
func (t SKUTotals) Merge(other SKUTotals) {
	for sku, src := range other {
		entry, exists := t[sku]
		if !exists {
			entry = &Totals{}
			t[sku] = entry
		}
		entry.Quantity += src.Quantity
		entry.NetAmount += src.NetAmount
		if src.Description != "" {
			entry.Description = src.Description
		}
	}
}
