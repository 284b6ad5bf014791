// internal/sync/progress.go
package sync

import "github.com/tiendanorte/compraplan/internal/domain"

// Named steps of a full sync, in execution order.
const (
	StepCatalog = "catalog"
	StepSales   = "sales"
	StepStock   = "stock"
)

// Step statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// Progress is one progress event emitted during a full sync.
type Progress struct {
	Step    string `json:"step"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// ProgressFunc receives progress events. A nil ProgressFunc is allowed and
// disables reporting.
type ProgressFunc func(Progress)

func (fn ProgressFunc) emit(step, status, detail string, count int) {
	if fn != nil {
		fn(Progress{Step: step, Status: status, Detail: detail, Count: count})
	}
}

// Summary describes the outcome of one sync operation.
type Summary struct {
	Type             string        `json:"type"`
	Period           domain.Period `json:"period"`
	Documents        int           `json:"documents"`
	FailedDocuments  int           `json:"failed_documents"`
	Products         int           `json:"products"`
	ProductsWithSale int           `json:"products_with_sales"`
	ProductsCreated  int           `json:"products_created"`
	StockedProducts  int           `json:"stocked_products"`
}
