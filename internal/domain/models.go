package domain

import "time"

// VATType selects the pricing regime applied to a product.
type VATType string

const (
	VATNormal VATType = "normal"
	VATMargin VATType = "margin"
)

// ProductType distinguishes single-purchase-price products (PAU) from
// multi-purchase-price parents (PAM).
type ProductType string

const (
	ProductTypePAU ProductType = "PAU"
	ProductTypePAM ProductType = "PAM"
)

type Product struct {
	ID                    string      `json:"id"`
	SKU                   string      `json:"sku"`
	Name                  string      `json:"name"`
	Description           string      `json:"description,omitempty"`
	PurchasePriceWithFees float64     `json:"purchase_price_with_fees"`
	RawPurchasePrice      float64     `json:"raw_purchase_price"`
	RetailPrice           float64     `json:"retail_price"`
	ProPrice              float64     `json:"pro_price"`
	VATType               VATType     `json:"vat_type"`
	MarginPercent         float64     `json:"margin_percent"`
	MarginValue           float64     `json:"margin_value"`
	ProMarginPercent      float64     `json:"pro_margin_percent"`
	ProMarginValue        float64     `json:"pro_margin_value"`
	WeightGrams           float64     `json:"weight_grams"`
	WidthCM               float64     `json:"width_cm"`
	HeightCM              float64     `json:"height_cm"`
	DepthCM               float64     `json:"depth_cm"`
	EAN                   string      `json:"ean,omitempty"`
	CategoryID            string      `json:"category_id,omitempty"`
	VariantID             string      `json:"variant_id,omitempty"`
	StockAlert            int         `json:"stock_alert"`
	Location              string      `json:"location,omitempty"`
	ParentID              string      `json:"parent_id,omitempty"`
	MirrorOf              string      `json:"mirror_of,omitempty"`
	SerialNumber          string      `json:"serial_number,omitempty"`
	IsParent              bool        `json:"is_parent"`
	ProductType           ProductType `json:"product_type"`
	Supplier              string      `json:"supplier,omitempty"`
	BatteryPercentage     int         `json:"battery_percentage,omitempty"`
	WarrantySticker       bool        `json:"warranty_sticker,omitempty"`
	ProductNote           string      `json:"product_note,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// IsMirror reports whether the product is a SKU-distinct alias of a parent.
// A mirror shares the parent's economics but is never serialized.
func (p Product) IsMirror() bool {
	return p.MirrorOf != "" && p.SerialNumber == ""
}

// IsSerialized reports whether the product is a unit-of-one child tied to a
// physical serial number.
func (p Product) IsSerialized() bool {
	return p.SerialNumber != ""
}

type Category struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Brand     string    `json:"brand"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

type Variant struct {
	ID        string    `json:"id"`
	Color     string    `json:"color"`
	Grade     string    `json:"grade"`
	Capacity  int       `json:"capacity"`
	SimType   string    `json:"sim_type"`
	CreatedAt time.Time `json:"created_at"`
}

type StockGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Consignment bool      `json:"consignment"`
	CreatedAt   time.Time `json:"created_at"`
}

type Stock struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	GroupID   string    `json:"group_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StockAllocation holds the quantity of one product held in one stock
// location. A product's effective total stock is the sum of its allocations.
type StockAllocation struct {
	ProductID string `json:"product_id"`
	StockID   string `json:"stock_id"`
	Quantity  int    `json:"quantity"`
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Region     string `json:"region,omitempty"`
}

type Customer struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Group                 string    `json:"customer_group,omitempty"`
	Email                 string    `json:"email,omitempty"`
	Phone                 string    `json:"phone,omitempty"`
	Zone                  string    `json:"zone,omitempty"`
	SIREN                 string    `json:"siren,omitempty"`
	Billing               Address   `json:"billing"`
	ShippingSameAsBilling bool      `json:"shipping_same_as_billing"`
	Shipping              Address   `json:"shipping"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type DocumentType string

const (
	DocumentInvoice    DocumentType = "invoice"
	DocumentQuote      DocumentType = "quote"
	DocumentCreditNote DocumentType = "credit_note"
)

type DocumentSettings struct {
	Type         DocumentType `json:"type"`
	Prefix       string       `json:"prefix"`
	NextNumber   int          `json:"next_number"`
	FooterText   string       `json:"footer_text,omitempty"`
	PaymentTerms string       `json:"payment_terms,omitempty"`
	LogoPath     string       `json:"logo_path,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type DocumentLine struct {
	ProductID string  `json:"product_id,omitempty"`
	Label     string  `json:"label"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	VATRate   float64 `json:"vat_rate"`
}

type Document struct {
	ID         string         `json:"id"`
	Type       DocumentType   `json:"type"`
	Number     string         `json:"number"`
	CustomerID string         `json:"customer_id"`
	Lines      []DocumentLine `json:"lines"`
	TotalHT    float64        `json:"total_ht"`
	TotalVAT   float64        `json:"total_vat"`
	TotalTTC   float64        `json:"total_ttc"`
	IssuedAt   time.Time      `json:"issued_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
