package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/notify"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/store/memory"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/xid"
)

type captureNotifier struct {
	events []notify.ConsignmentEvent
}

func (c *captureNotifier) ConsignmentChanged(_ context.Context, e notify.ConsignmentEvent) error {
	c.events = append(c.events, e)
	return nil
}

func seedStockInGroup(t *testing.T, repo *memory.Store, name, groupName string, consignment bool) domain.Stock {
	t.Helper()
	ctx := context.Background()
	group, err := repo.FindStockGroupByName(ctx, groupName)
	if err != nil {
		group, err = repo.CreateStockGroup(ctx, domain.StockGroup{
			ID:          xid.New("stg"),
			Name:        groupName,
			Consignment: consignment,
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("seed group %s: %v", groupName, err)
		}
	}
	s, err := repo.CreateStock(ctx, domain.Stock{
		ID:        xid.New("stk"),
		Name:      name,
		GroupID:   group.ID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed stock %s: %v", name, err)
	}
	return *s
}

func TestImportSerializedCreate(t *testing.T) {
	repo := memory.New()
	imp := New(repo, nil, NewTracker())

	parent := seedProduct(t, repo, domain.Product{
		SKU: "IP13-256", Name: "iPhone 13 256GB",
		PurchasePriceWithFees: 300, RetailPrice: 500, VATType: domain.VATMargin,
	})
	main := seedStockInGroup(t, repo, "Main", "Shop", false)

	csv := "sku_parent,serial_number,stock_name,battery_percentage,warranty_sticker,product_note\n" +
		"IP13-256,35891104,Main,87,oui,ecran raye\n"
	sum, err := imp.ImportSerialized(context.Background(), csv)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if sum.Created != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	unit := mustFindOne(t, repo, "IP13-256-35891104")
	if unit.SerialNumber != "35891104" || unit.ParentID != parent.ID {
		t.Fatalf("unit not linked to parent: %+v", unit)
	}
	if !unit.IsSerialized() {
		t.Fatal("created product should be serialized")
	}
	if unit.BatteryPercentage != 87 || !unit.WarrantySticker || unit.ProductNote != "ecran raye" {
		t.Fatalf("unit details not applied: %+v", unit)
	}
	if !almostEqual(unit.RetailPrice, 500) {
		t.Fatal("prices should inherit from the parent when absent from the row")
	}

	allocs, _ := repo.ListAllocationsByProduct(context.Background(), unit.ID)
	if len(allocs) != 1 || allocs[0].StockID != main.ID || allocs[0].Quantity != 1 {
		t.Fatalf("serialized unit must sit in exactly one stock with quantity 1: %+v", allocs)
	}
}

func TestImportSerializedUnknownStockIsRowReject(t *testing.T) {
	repo := memory.New()
	imp := New(repo, nil, NewTracker())

	seedProduct(t, repo, domain.Product{SKU: "P-1", Name: "P", VATType: domain.VATNormal})
	seedStockInGroup(t, repo, "Main", "Shop", false)

	csv := "sku_parent,serial_number,stock_name\n" +
		"P-1,SN-BAD,Nowhere\n" +
		"P-1,SN-OK,Main\n"
	sum, err := imp.ImportSerialized(context.Background(), csv)
	if err != nil {
		t.Fatalf("an unknown stock_name value must not abort the run: %v", err)
	}
	if sum.Rejected != 1 || sum.Created != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if !strings.Contains(sum.Errors[0].Message, "Nowhere") {
		t.Fatalf("reject should name the unknown stock: %s", sum.Errors[0].Message)
	}
}

func TestImportSerializedStockMoveEmitsConsignmentEvent(t *testing.T) {
	repo := memory.New()
	capture := &captureNotifier{}
	imp := New(repo, capture, NewTracker())

	parent := seedProduct(t, repo, domain.Product{SKU: "P-2", Name: "P", VATType: domain.VATNormal})
	main := seedStockInGroup(t, repo, "Main", "Shop", false)
	atelier := seedStockInGroup(t, repo, "Atelier", "Sous-traitant", true)

	unit := seedProduct(t, repo, domain.Product{
		SKU: "P-2-SN9", Name: "P", ParentID: parent.ID, SerialNumber: "SN9", VATType: domain.VATNormal,
	})
	if err := repo.UpsertAllocation(context.Background(), domain.StockAllocation{
		ProductID: unit.ID, StockID: main.ID, Quantity: 1,
	}); err != nil {
		t.Fatalf("seed allocation: %v", err)
	}

	csv := "serial_number,stock_name\nSN9,Atelier\n"
	sum, err := imp.ImportSerialized(context.Background(), csv)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if sum.Updated != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	allocs, _ := repo.ListAllocationsByProduct(context.Background(), unit.ID)
	if len(allocs) != 1 || allocs[0].StockID != atelier.ID || allocs[0].Quantity != 1 {
		t.Fatalf("unit not moved: %+v", allocs)
	}

	// Main's group is not consignment, Atelier's is: exactly one "in" event.
	if len(capture.events) != 1 {
		t.Fatalf("expected 1 consignment event, got %d", len(capture.events))
	}
	ev := capture.events[0]
	if ev.Direction != "in" || ev.StockName != "Atelier" || ev.SerialNumber != "SN9" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestImportSerializedMoveOutOfConsignment(t *testing.T) {
	repo := memory.New()
	capture := &captureNotifier{}
	imp := New(repo, capture, NewTracker())

	parent := seedProduct(t, repo, domain.Product{SKU: "P-3", Name: "P", VATType: domain.VATNormal})
	atelier := seedStockInGroup(t, repo, "Atelier", "Sous-traitant", true)
	main := seedStockInGroup(t, repo, "Main", "Shop", false)

	unit := seedProduct(t, repo, domain.Product{
		SKU: "P-3-SN1", Name: "P", ParentID: parent.ID, SerialNumber: "SN1", VATType: domain.VATNormal,
	})
	if err := repo.UpsertAllocation(context.Background(), domain.StockAllocation{
		ProductID: unit.ID, StockID: atelier.ID, Quantity: 1,
	}); err != nil {
		t.Fatalf("seed allocation: %v", err)
	}

	csv := "serial_number,stock_name\nSN1,Main\n"
	if _, err := imp.ImportSerialized(context.Background(), csv); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	allocs, _ := repo.ListAllocationsByProduct(context.Background(), unit.ID)
	if len(allocs) != 1 || allocs[0].StockID != main.ID || allocs[0].Quantity != 1 {
		t.Fatalf("unit should sit in Main after the move: %+v", allocs)
	}

	if len(capture.events) != 1 {
		t.Fatalf("expected 1 consignment event, got %d", len(capture.events))
	}
	if capture.events[0].Direction != "out" || capture.events[0].StockName != "Atelier" {
		t.Fatalf("unexpected event: %+v", capture.events[0])
	}
}

func TestImportSerializedRowPricesRederiveMargins(t *testing.T) {
	repo := memory.New()
	imp := New(repo, nil, NewTracker())

	seedProduct(t, repo, domain.Product{
		SKU: "P-5", Name: "P",
		PurchasePriceWithFees: 300, RetailPrice: 500, VATType: domain.VATNormal,
	})
	seedStockInGroup(t, repo, "Main", "Shop", false)

	csv := "sku_parent,serial_number,stock_name,purchase_price_with_fees,retail_price,pro_price\n" +
		"P-5,SN42,Main,100,150,130\n"
	sum, err := imp.ImportSerialized(context.Background(), csv)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if sum.Created != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	unit := mustFindOne(t, repo, "P-5-SN42")
	if !almostEqual(unit.PurchasePriceWithFees, 100) || !almostEqual(unit.RetailPrice, 150) {
		t.Fatalf("row prices should override the parent's: %+v", unit)
	}
	if !almostEqual(unit.MarginValue, 50) || !almostEqual(unit.MarginPercent, 50) {
		t.Fatalf("retail margin = %v%% / %v, want 50%% / 50", unit.MarginPercent, unit.MarginValue)
	}
	if !almostEqual(unit.ProMarginValue, 30) || !almostEqual(unit.ProMarginPercent, 30) {
		t.Fatalf("pro margin = %v%% / %v, want 30%% / 30", unit.ProMarginPercent, unit.ProMarginValue)
	}
}

func TestImportSerializedDuplicateSerialAborts(t *testing.T) {
	repo := memory.New()
	imp := New(repo, nil, NewTracker())

	for i := 0; i < 2; i++ {
		seedProduct(t, repo, domain.Product{
			SKU: "P-4-SN7", Name: "P", SerialNumber: "SN7", VATType: domain.VATNormal,
		})
	}
	seedStockInGroup(t, repo, "Main", "Shop", false)

	csv := "serial_number,stock_name\nSN7,Main\n"
	if _, err := imp.ImportSerialized(context.Background(), csv); err == nil {
		t.Fatal("expected abort on duplicate serial")
	}
}
