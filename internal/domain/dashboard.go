package domain

import "time"

// DashboardQuery represents the accepted dashboard filters
type DashboardQuery struct {
	Months    int    `json:"months"`
	SKUPrefix string `json:"sku_prefix"`
}

// MonthQuantity represents one window month's sold quantity for a row
type MonthQuantity struct {
	Period   Period  `json:"period"`
	Quantity float64 `json:"quantity"`
}

// DashboardRow represents one product line of the purchase-planning board
type DashboardRow struct {
	ProductID         int64           `json:"product_id"`
	SKU               string          `json:"sku"`
	Description       string          `json:"description"`
	Family            string          `json:"family"`
	Months            []MonthQuantity `json:"months"`
	AverageMonthly    float64         `json:"average_monthly"`
	CurrentMonthSold  float64         `json:"current_month_sold"`
	StockOnHand       float64         `json:"stock_on_hand"`
	SuggestedPurchase int             `json:"suggested_purchase"`
	OrderedQuantity   *float64        `json:"ordered_quantity"`
	NetAmountWindow   float64         `json:"net_amount_window"`
}

// DashboardMeta represents response metadata for a dashboard query
type DashboardMeta struct {
	GeneratedAt   time.Time `json:"generated_at"`
	CurrentPeriod string    `json:"current_period"`
	Months        []string  `json:"months"`
	LiveToday     bool      `json:"live_today"`
	RowCount      int       `json:"row_count"`
}

// DashboardResponse is the full dashboard payload
type DashboardResponse struct {
	Meta DashboardMeta  `json:"meta"`
	Rows []DashboardRow `json:"rows"`
}

// OrderInput represents one purchase-order line submitted by the operator
type OrderInput struct {
	ProductID int64   `json:"product_id" binding:"required"`
	Quantity  float64 `json:"quantity"`
}
