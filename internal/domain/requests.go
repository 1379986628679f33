package domain

// ProductCreateRequest carries the admin-facing product creation payload.
// Each price tier takes either an explicit sale price or a margin
// percentage; the service derives the other representation.
type ProductCreateRequest struct {
	SKU                   string   `json:"sku"`
	Name                  string   `json:"name"`
	Description           string   `json:"description"`
	PurchasePriceWithFees float64  `json:"purchase_price_with_fees"`
	RawPurchasePrice      float64  `json:"raw_purchase_price"`
	RetailPrice           *float64 `json:"retail_price,omitempty"`
	MarginPercent         *float64 `json:"margin_percent,omitempty"`
	ProPrice              *float64 `json:"pro_price,omitempty"`
	ProMarginPercent      *float64 `json:"pro_margin_percent,omitempty"`
	VATType               VATType  `json:"vat_type"`
	WeightGrams           float64  `json:"weight_grams"`
	WidthCM               float64  `json:"width_cm"`
	HeightCM              float64  `json:"height_cm"`
	DepthCM               float64  `json:"depth_cm"`
	EAN                   string   `json:"ean"`
	CategoryID            string   `json:"category_id"`
	VariantID             string   `json:"variant_id"`
	StockAlert            int      `json:"stock_alert"`
	Location              string   `json:"location"`
}

// ProductUpdateRequest uses pointer fields so absent keys leave the stored
// value untouched.
type ProductUpdateRequest struct {
	Name                  *string  `json:"name,omitempty"`
	Description           *string  `json:"description,omitempty"`
	PurchasePriceWithFees *float64 `json:"purchase_price_with_fees,omitempty"`
	RawPurchasePrice      *float64 `json:"raw_purchase_price,omitempty"`
	RetailPrice           *float64 `json:"retail_price,omitempty"`
	MarginPercent         *float64 `json:"margin_percent,omitempty"`
	ProPrice              *float64 `json:"pro_price,omitempty"`
	ProMarginPercent      *float64 `json:"pro_margin_percent,omitempty"`
	VATType               *VATType `json:"vat_type,omitempty"`
	WeightGrams           *float64 `json:"weight_grams,omitempty"`
	WidthCM               *float64 `json:"width_cm,omitempty"`
	HeightCM              *float64 `json:"height_cm,omitempty"`
	DepthCM               *float64 `json:"depth_cm,omitempty"`
	EAN                   *string  `json:"ean,omitempty"`
	CategoryID            *string  `json:"category_id,omitempty"`
	VariantID             *string  `json:"variant_id,omitempty"`
	StockAlert            *int     `json:"stock_alert,omitempty"`
	Location              *string  `json:"location,omitempty"`
}

// ProductStock is the read model for a product's per-location quantities.
type ProductStock struct {
	ProductID   string            `json:"product_id"`
	Total       int               `json:"total"`
	Allocations []StockAllocation `json:"allocations"`
}

type DocumentCreateRequest struct {
	Type       DocumentType   `json:"type"`
	CustomerID string         `json:"customer_id"`
	Lines      []DocumentLine `json:"lines"`
}
