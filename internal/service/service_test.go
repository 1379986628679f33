package service

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/cache"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.New()
	return New(repo, cache.NoopSettingsCache{}, time.Minute), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func staffCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "staff", Role: "staff"})
}

func f(v float64) *float64 { return &v }

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

func TestCreateProductDerivesMargins(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		SKU:                   "ip14-128",
		Name:                  "iPhone 14 128GB",
		PurchasePriceWithFees: 100,
		MarginPercent:         f(50),
		VATType:               domain.VATNormal,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.SKU != "IP14-128" {
		t.Fatalf("sku should be upper-cased: %s", p.SKU)
	}
	if !almostEqual(p.RetailPrice, 150) || !almostEqual(p.MarginValue, 50) {
		t.Fatalf("unexpected derivation: retail=%v value=%v", p.RetailPrice, p.MarginValue)
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateProduct(staffCtx(), domain.ProductCreateRequest{
		SKU: "X1", Name: "Widget", PurchasePriceWithFees: 10, RetailPrice: f(20),
	})
	if err == nil || !strings.Contains(err.Error(), "admin") {
		t.Fatalf("expected admin gate, got %v", err)
	}
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	svc, _ := newTestService()

	req := domain.ProductCreateRequest{
		SKU: "DUP-1", Name: "Widget", PurchasePriceWithFees: 10, RetailPrice: f(20),
	}
	if _, err := svc.CreateProduct(adminCtx(), req); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.CreateProduct(adminCtx(), req); err == nil {
		t.Fatal("expected conflict on duplicate sku")
	}
}

func TestUpdateProductReDerivesOnPurchaseChange(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		SKU: "RD-1", Name: "Widget", PurchasePriceWithFees: 100, RetailPrice: f(150),
		VATType: domain.VATNormal,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Raising the purchase price keeps the sale price and shrinks the margin.
	updated, err := svc.UpdateProduct(adminCtx(), p.ID, domain.ProductUpdateRequest{
		PurchasePriceWithFees: f(120),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !almostEqual(updated.RetailPrice, 150) {
		t.Fatalf("sale price should hold: %v", updated.RetailPrice)
	}
	if !almostEqual(updated.MarginValue, 30) || !almostEqual(updated.MarginPercent, 25) {
		t.Fatalf("margin not re-derived: %v%% / %v", updated.MarginPercent, updated.MarginValue)
	}
}

func TestUpdateProductConflictingTier(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		SKU: "CF-1", Name: "Widget", PurchasePriceWithFees: 100, RetailPrice: f(150),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.UpdateProduct(adminCtx(), p.ID, domain.ProductUpdateRequest{
		RetailPrice: f(160), MarginPercent: f(60),
	})
	if err == nil {
		t.Fatal("expected conflicting input error")
	}
}

func TestDocumentNumbering(t *testing.T) {
	svc, _ := newTestService()

	lines := []domain.DocumentLine{{Label: "Ecran iPhone 13", Quantity: 1, UnitPrice: 89.90, VATRate: 20}}

	first, err := svc.CreateDocument(adminCtx(), domain.DocumentCreateRequest{
		Type: domain.DocumentInvoice, Lines: lines,
	})
	if err != nil {
		t.Fatalf("first invoice: %v", err)
	}
	second, err := svc.CreateDocument(adminCtx(), domain.DocumentCreateRequest{
		Type: domain.DocumentInvoice, Lines: lines,
	})
	if err != nil {
		t.Fatalf("second invoice: %v", err)
	}

	if first.Number != "FA-1" || second.Number != "FA-2" {
		t.Fatalf("numbering broken: %s then %s", first.Number, second.Number)
	}
	if !almostEqual(first.TotalHT, 89.90) || !almostEqual(first.TotalVAT, 17.98) || !almostEqual(first.TotalTTC, 107.88) {
		t.Fatalf("unexpected totals: %+v", first)
	}

	// Quotes count independently.
	quote, err := svc.CreateDocument(adminCtx(), domain.DocumentCreateRequest{
		Type: domain.DocumentQuote, Lines: lines,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Number != "DE-1" {
		t.Fatalf("quote numbering should not share the invoice counter: %s", quote.Number)
	}
}

func TestUpdateDocumentSettings(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.UpdateDocumentSettings(staffCtx(), domain.DocumentSettings{
		Type: domain.DocumentInvoice, Prefix: "X-",
	}); err == nil {
		t.Fatal("expected admin gate")
	}

	saved, err := svc.UpdateDocumentSettings(adminCtx(), domain.DocumentSettings{
		Type: domain.DocumentInvoice, Prefix: "2026-FA-", NextNumber: 100, FooterText: "TVA non applicable",
	})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if saved.NextNumber != 100 {
		t.Fatalf("unexpected settings: %+v", saved)
	}

	doc, err := svc.CreateDocument(adminCtx(), domain.DocumentCreateRequest{
		Type:  domain.DocumentInvoice,
		Lines: []domain.DocumentLine{{Label: "Forfait", Quantity: 1, UnitPrice: 10}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if doc.Number != "2026-FA-100" {
		t.Fatalf("custom prefix ignored: %s", doc.Number)
	}
}

func TestExportProductsRoundTrippableLayout(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		SKU: "EXP-1", Name: `Coque "Premium", noire`, PurchasePriceWithFees: 5, RetailPrice: f(15),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, err := svc.ExportProducts(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(out, "sku,name,") {
		t.Fatalf("unexpected header: %q", out[:40])
	}
	if !strings.Contains(out, `"Coque ""Premium"", noire"`) {
		t.Fatalf("quoting broken:\n%s", out)
	}
}

func TestCustomerCRUD(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.CreateCustomer(context.Background(), domain.Customer{
		Name:                  "Boutique Lyon",
		Email:                 "Contact@Boutique-Lyon.FR",
		Billing:               domain.Address{Line1: "12 rue de la Paix", City: "Lyon"},
		ShippingSameAsBilling: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Email != "contact@boutique-lyon.fr" {
		t.Fatalf("email should normalize: %s", created.Email)
	}
	if created.Shipping.City != "Lyon" {
		t.Fatal("shipping should copy billing")
	}

	if err := svc.DeleteCustomer(staffCtx(), created.ID); err == nil {
		t.Fatal("delete should require admin")
	}
	if err := svc.DeleteCustomer(adminCtx(), created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestRestockSuggestions(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	low, err := repo.CreateProduct(ctx, domain.Product{
		ID: "p-low", SKU: "LOW-1", Name: "Presque vide", StockAlert: 10, MarginPercent: 30,
	})
	if err != nil {
		t.Fatalf("seed low: %v", err)
	}
	if _, err := repo.CreateProduct(ctx, domain.Product{
		ID: "p-ok", SKU: "OK-1", Name: "Plein", StockAlert: 5,
	}); err != nil {
		t.Fatalf("seed ok: %v", err)
	}

	if err := repo.UpsertAllocation(ctx, domain.StockAllocation{ProductID: low.ID, StockID: "st1", Quantity: 2}); err != nil {
		t.Fatalf("alloc low: %v", err)
	}
	if err := repo.UpsertAllocation(ctx, domain.StockAllocation{ProductID: "p-ok", StockID: "st1", Quantity: 50}); err != nil {
		t.Fatalf("alloc ok: %v", err)
	}

	got, err := svc.RestockSuggestions(ctx)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d: %+v", len(got), got)
	}
	if got[0].SKU != "LOW-1" || got[0].Shortage != 8 {
		t.Fatalf("unexpected suggestion %+v", got[0])
	}
}
