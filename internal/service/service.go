package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/cache"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/csvio"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/pricing"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/restock"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/store"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo        store.Repository
	settings    cache.SettingsCache
	settingsTTL time.Duration
	advisor     *restock.Advisor
}

func New(repo store.Repository, settings cache.SettingsCache, settingsTTL time.Duration) *Service {
	if settings == nil {
		settings = cache.NoopSettingsCache{}
	}
	if settingsTTL <= 0 {
		settingsTTL = 5 * time.Minute
	}

	return &Service{
		repo:        repo,
		settings:    settings,
		settingsTTL: settingsTTL,
		advisor:     restock.NewAdvisor(0, 0),
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	return nil
}

// ---- products ----

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.SKU = domain.SKUKey(req.SKU)
	req.Name = strings.TrimSpace(req.Name)
	if req.SKU == "" || req.Name == "" {
		return domain.Product{}, store.ErrInvalid
	}

	matches, err := s.repo.FindProductsBySKU(ctx, req.SKU)
	if err != nil {
		return domain.Product{}, err
	}
	if len(matches) > 0 {
		return domain.Product{}, store.ErrConflict
	}

	vat := req.VATType
	if vat == "" {
		vat = domain.VATNormal
	}

	retail, err := pricing.Derive(vat, req.PurchasePriceWithFees, pricing.Input{
		SalePrice:     req.RetailPrice,
		MarginPercent: req.MarginPercent,
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("retail price: %w", err)
	}

	now := time.Now().UTC()
	p := domain.Product{
		ID:                    xid.New("prod"),
		SKU:                   req.SKU,
		Name:                  req.Name,
		Description:           strings.TrimSpace(req.Description),
		PurchasePriceWithFees: pricing.Round2(req.PurchasePriceWithFees),
		RawPurchasePrice:      pricing.Round2(req.RawPurchasePrice),
		RetailPrice:           retail.SalePrice,
		MarginPercent:         retail.MarginPercent,
		MarginValue:           retail.MarginValue,
		VATType:               vat,
		WeightGrams:           req.WeightGrams,
		WidthCM:               req.WidthCM,
		HeightCM:              req.HeightCM,
		DepthCM:               req.DepthCM,
		EAN:                   strings.TrimSpace(req.EAN),
		CategoryID:            req.CategoryID,
		VariantID:             req.VariantID,
		StockAlert:            req.StockAlert,
		Location:              strings.TrimSpace(req.Location),
		ProductType:           domain.ProductTypePAU,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if req.ProPrice != nil || req.ProMarginPercent != nil {
		pro, err := pricing.Derive(vat, req.PurchasePriceWithFees, pricing.Input{
			SalePrice:     req.ProPrice,
			MarginPercent: req.ProMarginPercent,
		})
		if err != nil {
			return domain.Product{}, fmt.Errorf("pro price: %w", err)
		}
		p.ProPrice = pro.SalePrice
		p.ProMarginPercent = pro.MarginPercent
		p.ProMarginValue = pro.MarginValue
	}

	created, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalid
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.PurchasePriceWithFees != nil {
		updated.PurchasePriceWithFees = pricing.Round2(*req.PurchasePriceWithFees)
	}
	if req.RawPurchasePrice != nil {
		updated.RawPurchasePrice = pricing.Round2(*req.RawPurchasePrice)
	}
	if req.VATType != nil {
		updated.VATType = *req.VATType
	}
	if req.WeightGrams != nil {
		updated.WeightGrams = *req.WeightGrams
	}
	if req.WidthCM != nil {
		updated.WidthCM = *req.WidthCM
	}
	if req.HeightCM != nil {
		updated.HeightCM = *req.HeightCM
	}
	if req.DepthCM != nil {
		updated.DepthCM = *req.DepthCM
	}
	if req.EAN != nil {
		updated.EAN = strings.TrimSpace(*req.EAN)
	}
	if req.CategoryID != nil {
		updated.CategoryID = *req.CategoryID
	}
	if req.VariantID != nil {
		updated.VariantID = *req.VariantID
	}
	if req.StockAlert != nil {
		updated.StockAlert = *req.StockAlert
	}
	if req.Location != nil {
		updated.Location = strings.TrimSpace(*req.Location)
	}

	// Any touch on the purchase price or a price tier re-derives margins so
	// the stored breakdown never drifts from the sale prices.
	if req.RetailPrice != nil && req.MarginPercent != nil {
		return domain.Product{}, pricing.ErrConflictingInput
	}
	if req.ProPrice != nil && req.ProMarginPercent != nil {
		return domain.Product{}, pricing.ErrConflictingInput
	}
	touchedRetail := req.RetailPrice != nil || req.MarginPercent != nil
	touchedPro := req.ProPrice != nil || req.ProMarginPercent != nil
	touchedPurchase := req.PurchasePriceWithFees != nil || req.VATType != nil

	if touchedRetail || touchedPurchase {
		in := pricing.Input{SalePrice: req.RetailPrice, MarginPercent: req.MarginPercent}
		if !touchedRetail {
			price := updated.RetailPrice
			in.SalePrice = &price
		}
		retail, err := pricing.Derive(updated.VATType, updated.PurchasePriceWithFees, in)
		if err != nil {
			return domain.Product{}, fmt.Errorf("retail price: %w", err)
		}
		updated.RetailPrice = retail.SalePrice
		updated.MarginPercent = retail.MarginPercent
		updated.MarginValue = retail.MarginValue
	}
	if touchedPro || (touchedPurchase && updated.ProPrice > 0) {
		in := pricing.Input{SalePrice: req.ProPrice, MarginPercent: req.ProMarginPercent}
		if !touchedPro {
			price := updated.ProPrice
			in.SalePrice = &price
		}
		pro, err := pricing.Derive(updated.VATType, updated.PurchasePriceWithFees, in)
		if err != nil {
			return domain.Product{}, fmt.Errorf("pro price: %w", err)
		}
		updated.ProPrice = pro.SalePrice
		updated.ProMarginPercent = pro.MarginPercent
		updated.ProMarginValue = pro.MarginValue
	}

	updated.UpdatedAt = time.Now().UTC()
	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.DeleteProduct(ctx, id)
}

// ProductStock aggregates a product's per-location allocations.
func (s *Service) ProductStock(ctx context.Context, productID string) (domain.ProductStock, error) {
	allocs, err := s.repo.ListAllocationsByProduct(ctx, productID)
	if err != nil {
		return domain.ProductStock{}, err
	}
	out := domain.ProductStock{ProductID: productID, Allocations: allocs}
	for _, a := range allocs {
		out.Total += a.Quantity
	}
	return out, nil
}

// RestockSuggestions ranks products whose total stock sits at or below the
// alert threshold.
func (s *Service) RestockSuggestions(ctx context.Context) ([]restock.Suggestion, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int, len(products))
	for _, p := range products {
		if p.StockAlert <= 0 || p.IsMirror() || p.IsSerialized() {
			continue
		}
		allocs, err := s.repo.ListAllocationsByProduct(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range allocs {
			totals[p.ID] += a.Quantity
		}
	}

	return s.advisor.Suggest(products, totals), nil
}

// ---- catalog lookups ----

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) ListVariants(ctx context.Context) ([]domain.Variant, error) {
	return s.repo.ListVariants(ctx)
}

func (s *Service) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	return s.repo.ListStocks(ctx)
}

func (s *Service) ListStockGroups(ctx context.Context) ([]domain.StockGroup, error) {
	return s.repo.ListStockGroups(ctx)
}

func (s *Service) CreateStock(ctx context.Context, name, groupName string, consignment bool) (domain.Stock, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Stock{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Stock{}, store.ErrInvalid
	}

	groupID := ""
	if groupName = strings.TrimSpace(groupName); groupName != "" {
		group, err := s.repo.FindStockGroupByName(ctx, groupName)
		if err == nil {
			groupID = group.ID
		} else {
			created, err := s.repo.CreateStockGroup(ctx, domain.StockGroup{
				ID:          xid.New("stg"),
				Name:        groupName,
				Consignment: consignment,
				CreatedAt:   time.Now().UTC(),
			})
			if err != nil {
				return domain.Stock{}, err
			}
			groupID = created.ID
		}
	}

	created, err := s.repo.CreateStock(ctx, domain.Stock{
		ID:        xid.New("stk"),
		Name:      name,
		GroupID:   groupID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Stock{}, err
	}
	return *created, nil
}

// ---- customers ----

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetCustomerByID(ctx, id)
}

func (s *Service) CreateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if c.Name == "" {
		return domain.Customer{}, store.ErrInvalid
	}
	if c.ShippingSameAsBilling {
		c.Shipping = c.Billing
	}

	c.ID = xid.New("cust")
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	created, err := s.repo.CreateCustomer(ctx, c)
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, c domain.Customer) (domain.Customer, error) {
	existing, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	c.ID = existing.ID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if c.Name == "" {
		return domain.Customer{}, store.ErrInvalid
	}
	if c.ShippingSameAsBilling {
		c.Shipping = c.Billing
	}

	saved, err := s.repo.UpdateCustomer(ctx, c)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.DeleteCustomer(ctx, id)
}

// ---- document settings & documents ----

func (s *Service) GetDocumentSettings(ctx context.Context, typ domain.DocumentType) (domain.DocumentSettings, error) {
	if cached, ok, err := s.settings.Get(ctx, typ); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: settings cache read failed for %s: %v", typ, err)
	}

	cfg, err := s.repo.GetDocumentSettings(ctx, typ)
	if errors.Is(err, store.ErrNotFound) {
		// First use: sensible defaults, persisted on first update.
		return defaultSettings(typ), nil
	}
	if err != nil {
		return domain.DocumentSettings{}, err
	}
	if err := s.settings.Set(ctx, typ, cfg, s.settingsTTL); err != nil {
		log.Printf("[service] WARN: settings cache write failed for %s: %v", typ, err)
	}
	return *cfg, nil
}

func (s *Service) UpdateDocumentSettings(ctx context.Context, settings domain.DocumentSettings) (domain.DocumentSettings, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.DocumentSettings{}, err
	}
	if settings.Type == "" {
		return domain.DocumentSettings{}, store.ErrInvalid
	}
	if settings.NextNumber < 1 {
		settings.NextNumber = 1
	}
	settings.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpsertDocumentSettings(ctx, settings); err != nil {
		return domain.DocumentSettings{}, err
	}
	if err := s.settings.Invalidate(ctx, settings.Type); err != nil {
		log.Printf("[service] WARN: settings cache invalidation failed for %s: %v", settings.Type, err)
	}
	return settings, nil
}

func defaultSettings(typ domain.DocumentType) domain.DocumentSettings {
	prefix := map[domain.DocumentType]string{
		domain.DocumentInvoice:    "FA-",
		domain.DocumentQuote:      "DE-",
		domain.DocumentCreditNote: "AV-",
	}[typ]
	return domain.DocumentSettings{Type: typ, Prefix: prefix, NextNumber: 1}
}

// CreateDocument issues a numbered invoice, quote or credit note. The
// number comes from the per-type settings counter, which advances on every
// issue and never reuses a value.
func (s *Service) CreateDocument(ctx context.Context, req domain.DocumentCreateRequest) (domain.Document, error) {
	switch req.Type {
	case domain.DocumentInvoice, domain.DocumentQuote, domain.DocumentCreditNote:
	default:
		return domain.Document{}, store.ErrInvalid
	}
	if len(req.Lines) == 0 {
		return domain.Document{}, store.ErrInvalid
	}
	if req.CustomerID != "" {
		if _, err := s.repo.GetCustomerByID(ctx, req.CustomerID); err != nil {
			return domain.Document{}, fmt.Errorf("customer: %w", err)
		}
	}

	settings, err := s.GetDocumentSettings(ctx, req.Type)
	if err != nil {
		return domain.Document{}, err
	}

	doc := domain.Document{
		ID:         xid.New("doc"),
		Type:       req.Type,
		Number:     settings.Prefix + strconv.Itoa(settings.NextNumber),
		CustomerID: req.CustomerID,
		Lines:      req.Lines,
		IssuedAt:   time.Now().UTC(),
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 || line.UnitPrice < 0 {
			return domain.Document{}, store.ErrInvalid
		}
		ht := float64(line.Quantity) * line.UnitPrice
		doc.TotalHT += ht
		doc.TotalVAT += ht * line.VATRate / 100
	}
	doc.TotalHT = pricing.Round2(doc.TotalHT)
	doc.TotalVAT = pricing.Round2(doc.TotalVAT)
	doc.TotalTTC = pricing.Round2(doc.TotalHT + doc.TotalVAT)

	created, err := s.repo.CreateDocument(ctx, doc)
	if err != nil {
		return domain.Document{}, err
	}

	settings.NextNumber++
	settings.UpdatedAt = doc.IssuedAt
	if err := s.repo.UpsertDocumentSettings(ctx, settings); err != nil {
		log.Printf("[service] WARN: failed to advance %s counter: %v", req.Type, err)
	}
	if err := s.settings.Invalidate(ctx, req.Type); err != nil {
		log.Printf("[service] WARN: settings cache invalidation failed for %s: %v", req.Type, err)
	}

	return *created, nil
}

func (s *Service) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return s.repo.GetDocumentByID(ctx, id)
}

func (s *Service) ListDocuments(ctx context.Context, typ domain.DocumentType, limit int) ([]domain.Document, error) {
	return s.repo.ListDocuments(ctx, typ, limit)
}

// ---- users ----

func (s *Service) CreateUser(ctx context.Context, username, password, role string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || len(password) < 8 {
		return store.ErrInvalid
	}
	if role != "admin" && role != "staff" {
		return store.ErrInvalid
	}

	if _, err := s.repo.GetUserByUsername(ctx, username); err == nil {
		return store.ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.CreateUser(ctx, domain.UserAccount{
		Username:  username,
		Password:  string(hash),
		Role:      role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
}

// ---- CSV exports ----

// ExportProducts renders the catalog in the import-compatible column
// layout, with one dynamic stock_<name> column per stock location.
func (s *Service) ExportProducts(ctx context.Context) (string, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return "", err
	}
	stocks, err := s.repo.ListStocks(ctx)
	if err != nil {
		return "", err
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].Name < stocks[j].Name })

	headers := []string{
		"sku", "name", "description", "purchase_price_with_fees", "retail_price",
		"pro_price", "vat_type", "margin_percent", "pro_margin_percent",
		"weight_grams", "width_cm", "height_cm", "depth_cm", "ean", "location",
		"stock_alert", "stock",
	}
	for _, st := range stocks {
		headers = append(headers, "stock_"+st.Name)
	}

	rows := [][]string{headers}
	for _, p := range products {
		allocs, err := s.repo.ListAllocationsByProduct(ctx, p.ID)
		if err != nil {
			return "", err
		}
		byStock := map[string]int{}
		total := 0
		for _, a := range allocs {
			byStock[a.StockID] = a.Quantity
			total += a.Quantity
		}

		row := []string{
			p.SKU, p.Name, p.Description,
			formatPrice(p.PurchasePriceWithFees), formatPrice(p.RetailPrice),
			formatPrice(p.ProPrice), string(p.VATType),
			formatPrice(p.MarginPercent), formatPrice(p.ProMarginPercent),
			formatPrice(p.WeightGrams), formatPrice(p.WidthCM),
			formatPrice(p.HeightCM), formatPrice(p.DepthCM),
			p.EAN, p.Location, strconv.Itoa(p.StockAlert), strconv.Itoa(total),
		}
		for _, st := range stocks {
			row = append(row, strconv.Itoa(byStock[st.ID]))
		}
		rows = append(rows, row)
	}

	return csvio.Serialize(rows), nil
}

func (s *Service) ExportCustomers(ctx context.Context) (string, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return "", err
	}

	rows := [][]string{{
		"name", "customer_group", "email", "phone", "zone", "siren",
		"billing_line1", "billing_line2", "billing_city", "billing_postal_code",
		"billing_country", "billing_region", "shipping_same_as_billing",
		"shipping_line1", "shipping_line2", "shipping_city",
		"shipping_postal_code", "shipping_country", "shipping_region",
	}}
	for _, c := range customers {
		same := ""
		if c.ShippingSameAsBilling {
			same = "1"
		}
		rows = append(rows, []string{
			c.Name, c.Group, c.Email, c.Phone, c.Zone, c.SIREN,
			c.Billing.Line1, c.Billing.Line2, c.Billing.City, c.Billing.PostalCode,
			c.Billing.Country, c.Billing.Region, same,
			c.Shipping.Line1, c.Shipping.Line2, c.Shipping.City,
			c.Shipping.PostalCode, c.Shipping.Country, c.Shipping.Region,
		})
	}

	return csvio.Serialize(rows), nil
}

func (s *Service) ExportStocks(ctx context.Context) (string, error) {
	stocks, err := s.repo.ListStocks(ctx)
	if err != nil {
		return "", err
	}
	groups, err := s.repo.ListStockGroups(ctx)
	if err != nil {
		return "", err
	}
	groupNames := map[string]string{}
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}

	rows := [][]string{{"name", "group_name"}}
	for _, st := range stocks {
		rows = append(rows, []string{st.Name, groupNames[st.GroupID]})
	}

	return csvio.Serialize(rows), nil
}

func (s *Service) ExportCategories(ctx context.Context) (string, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return "", err
	}

	rows := [][]string{{"type", "brand", "model"}}
	for _, c := range categories {
		rows = append(rows, []string{c.Type, c.Brand, c.Model})
	}

	return csvio.Serialize(rows), nil
}

func (s *Service) ExportVariants(ctx context.Context) (string, error) {
	variants, err := s.repo.ListVariants(ctx)
	if err != nil {
		return "", err
	}

	rows := [][]string{{"color", "grade", "capacity", "sim_type"}}
	for _, v := range variants {
		rows = append(rows, []string{v.Color, v.Grade, strconv.Itoa(v.Capacity), v.SimType})
	}

	return csvio.Serialize(rows), nil
}

// formatPrice trims trailing zeros so exports stay stable under re-import.
func formatPrice(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
