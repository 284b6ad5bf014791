// internal/erp/types.go
package erp

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Document is a raw sales document as returned by the ERP. Shapes vary
// between document kinds and ERP versions, so it stays an untyped map and
// line extraction happens downstream.
type Document map[string]any

var docNumKeys = []string{"docnumreg", "nro_registro", "numero"}

// DocNum returns the document registration number used for detail lookups.
func (d Document) DocNum() (string, bool) {
	for _, k := range docNumKeys {
		v, ok := d[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case string:
			if s := strings.TrimSpace(n); s != "" {
				return s, true
			}
		case float64:
			return strconv.FormatInt(int64(n), 10), true
		}
	}
	return "", false
}

// StockEntry is one per-warehouse stock line from the snapshot endpoint.
type StockEntry struct {
	SKU       string
	Warehouse string
	Quantity  float64
}

func (e *StockEntry) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	e.SKU = firstString(m, "codigo", "cod_prod", "articulo", "sku")
	e.Warehouse = firstString(m, "deposito", "nombre_deposito", "deposito_nombre", "almacen")
	e.Quantity = firstNumber(m, "cantidad", "stock", "existencia")
	return nil
}

// CatalogEntry is one product row from the catalog endpoint.
type CatalogEntry struct {
	SKU         string
	Description string
	Family      string
}

func (e *CatalogEntry) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	e.SKU = firstString(m, "codigo", "cod_prod", "sku")
	e.Description = firstString(m, "descripcion", "detalle", "nombre")
	e.Family = firstString(m, "familia", "rubro", "linea")
	return nil
}

// decodeList accepts both response shapes the ERP produces: a bare JSON
// array, or an object envelope {"data": [...]}.
func decodeList(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, err
		}
		return arr, nil
	}
	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func firstNumber(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f
			}
		}
	}
	return 0
}
