// internal/sales/extractor.go
package sales

import (
	"strconv"
	"strings"

	"github.com/tiendanorte/compraplan/internal/erp"
)

// LineItem is one normalized sales line pulled out of a raw ERP document.
type LineItem struct {
	SKU         string
	Description string
	Quantity    float64
	NetAmount   float64
}

// Field aliases observed across ERP document kinds and versions.
var (
	skuKeys      = []string{"codigo", "cod_prod", "codigo_producto", "sku", "articulo"}
	qtyKeys      = []string{"cantidad", "cant", "qty", "unidades"}
	netKeys      = []string{"importe_neto", "neto", "importe", "total_neto"}
	priceKeys    = []string{"precio", "precio_unitario", "importe_unitario", "punit"}
	descKeys     = []string{"descripcion", "detalle_articulo", "nombre"}
	lineListKeys = []string{"detalles", "detalle", "items", "renglones", "lineas"}
)

type strategy struct {
	name    string
	collect func(doc erp.Document) ([]any, bool)
}

// Extractor normalizes raw documents through an ordered list of named
// strategies; the first one that recognizes a line collection wins.
type Extractor struct {
	strategies []strategy
}

func NewExtractor() *Extractor {
	e := &Extractor{}
	for _, key := range lineListKeys {
		e.strategies = append(e.strategies, strategy{
			name:    key,
			collect: collectionUnder(key),
		})
	}
	return e
}

// Extract returns the document's normalized lines. ok is false when no
// strategy recognizes a line collection, which marks the document as an
// extraction failure; a recognized but empty (or all-zero-quantity)
// collection is a valid empty result.
func (e *Extractor) Extract(doc erp.Document) (lines []LineItem, ok bool) {
	for _, s := range e.strategies {
		rawLines, found := s.collect(doc)
		if !found {
			continue
		}
		for _, raw := range rawLines {
			if item, usable := parseLine(raw); usable {
				lines = append(lines, item)
			}
		}
		return lines, true
	}
	return nil, false
}

// ExtractAll processes a batch of documents without per-document fallback.
// Documents that fail extraction are skipped and listed by registration
// number in failed (documents without one are still counted).
func (e *Extractor) ExtractAll(docs []erp.Document) (lines []LineItem, failed []string) {
	for _, doc := range docs {
		docLines, ok := e.Extract(doc)
		if !ok {
			if num, has := doc.DocNum(); has {
				failed = append(failed, num)
			} else {
				failed = append(failed, "?")
			}
			continue
		}
		lines = append(lines, docLines...)
	}
	return lines, failed
}

// collectionUnder accepts the two collection encodings the ERP emits:
// a JSON array, or an object keyed by line index.
func collectionUnder(key string) func(doc erp.Document) ([]any, bool) {
	return func(doc erp.Document) ([]any, bool) {
		v, exists := doc[key]
		if !exists {
			return nil, false
		}
		switch col := v.(type) {
		case []any:
			return col, true
		case map[string]any:
			out := make([]any, 0, len(col))
			for _, item := range col {
				out = append(out, item)
			}
			return out, true
		}
		return nil, false
	}
}

// parseLine normalizes one raw line. Zero-quantity lines are dropped;
// negative quantities (credit notes, returns) pass through. Lines with no
// resolvable SKU are unusable. Net amount is unit price times quantity;
// the document's own net field is used only when that product is zero.
func parseLine(raw any) (LineItem, bool) {
	m, isObject := raw.(map[string]any)
	if !isObject {
		return LineItem{}, false
	}

	sku := fieldString(m, skuKeys...)
	if sku == "" {
		return LineItem{}, false
	}

	qty, _ := fieldNumber(m, qtyKeys...)
	if qty == 0 {
		return LineItem{}, false
	}

	net := 0.0
	if price, hasPrice := fieldNumber(m, priceKeys...); hasPrice {
		net = price * qty
	}
	if net == 0 {
		if direct, hasDirect := fieldNumber(m, netKeys...); hasDirect {
			net = direct
		}
	}

	return LineItem{
		SKU:         sku,
		Description: fieldString(m, descKeys...),
		Quantity:    qty,
		NetAmount:   net,
	}, true
}

func fieldString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, isStr := v.(string); isStr {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// fieldNumber resolves the first alias holding a JSON number or a numeric
// string. found distinguishes an absent field from a literal zero.
func fieldNumber(m map[string]any, keys ...string) (value float64, found bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
