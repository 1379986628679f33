package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
)

func TestImportMirrorsCreateInheritsFromRoot(t *testing.T) {
	imp, repo := newTestImporter()

	root := seedProduct(t, repo, domain.Product{
		SKU:                   "ROOT-1",
		Name:                  "iPhone 13",
		PurchasePriceWithFees: 200,
		RetailPrice:           350,
		MarginPercent:         75,
		MarginValue:           150,
		VATType:               domain.VATMargin,
		WeightGrams:           174,
		ProductType:           domain.ProductTypePAM,
	})
	// A middle node: the new mirror must attach to the root, not here.
	middle := seedProduct(t, repo, domain.Product{
		SKU:      "MID-1",
		Name:     "iPhone 13 alias",
		MirrorOf: root.ID,
		VATType:  domain.VATMargin,
	})

	csv := "parent_sku,child_sku,child_name\nMID-1,MIR-1,iPhone 13 Promo\n"
	sum, err := imp.ImportMirrors(context.Background(), csv)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if sum.Created != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	m := mustFindOne(t, repo, "MIR-1")
	if m.MirrorOf != root.ID {
		t.Fatalf("mirror_of = %s, want root %s (not middle %s)", m.MirrorOf, root.ID, middle.ID)
	}
	if !almostEqual(m.RetailPrice, 350) || !almostEqual(m.PurchasePriceWithFees, 200) {
		t.Fatalf("economic fields not inherited: %+v", m)
	}
	if m.VATType != domain.VATMargin {
		t.Fatalf("vat regime not inherited: %s", m.VATType)
	}
	if !m.IsMirror() {
		t.Fatal("created product should be a mirror")
	}
}

func TestImportMirrorsReParentingRejected(t *testing.T) {
	imp, repo := newTestImporter()

	rootA := seedProduct(t, repo, domain.Product{SKU: "A-1", Name: "A", VATType: domain.VATNormal})
	rootB := seedProduct(t, repo, domain.Product{SKU: "B-1", Name: "B", VATType: domain.VATNormal})
	_ = rootB
	mirror := seedProduct(t, repo, domain.Product{
		SKU: "MIR-A", Name: "Alias of A", MirrorOf: rootA.ID, VATType: domain.VATNormal,
	})

	csv := "parent_sku,child_sku,child_name\nB-1,MIR-A,Moved\n"
	sum, err := imp.ImportMirrors(context.Background(), csv)
	if err != nil {
		t.Fatalf("re-parenting is a row reject: %v", err)
	}
	if sum.Rejected != 1 || !strings.Contains(sum.Errors[0].Message, "re-parenting") {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	got, err := repo.GetProductByID(context.Background(), mirror.ID)
	if err != nil {
		t.Fatalf("reload mirror: %v", err)
	}
	if got.MirrorOf != rootA.ID {
		t.Fatal("rejected row must not alter mirror_of")
	}
	if got.Name != "Alias of A" {
		t.Fatal("rejected row must not apply any field")
	}
}

func TestImportMirrorsUpdateAllowList(t *testing.T) {
	imp, repo := newTestImporter()

	root := seedProduct(t, repo, domain.Product{
		SKU: "R-1", Name: "Root", PurchasePriceWithFees: 100, RetailPrice: 150, VATType: domain.VATNormal,
	})
	seedProduct(t, repo, domain.Product{
		SKU: "MIR-R", Name: "Old name", MirrorOf: root.ID,
		PurchasePriceWithFees: 100, RetailPrice: 150, VATType: domain.VATNormal,
	})

	csv := "parent_sku,child_sku,child_name,description\nR-1,MIR-R,New name,Refreshed\n"
	sum, err := imp.ImportMirrors(context.Background(), csv)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if sum.Updated != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	m := mustFindOne(t, repo, "MIR-R")
	if m.Name != "New name" || m.Description != "Refreshed" {
		t.Fatalf("allow-listed fields not applied: %+v", m)
	}
	if !almostEqual(m.RetailPrice, 150) {
		t.Fatal("economic fields must not change on mirror update")
	}
}

func TestImportMirrorsSubtypeMismatch(t *testing.T) {
	imp, repo := newTestImporter()

	seedProduct(t, repo, domain.Product{SKU: "PLAIN-1", Name: "Plain", VATType: domain.VATNormal})

	csv := "parent_sku,child_sku,child_name\nPLAIN-1,PLAIN-1,Whatever\n"
	sum, err := imp.ImportMirrors(context.Background(), csv)
	if err != nil {
		t.Fatalf("subtype mismatch is a row reject: %v", err)
	}
	if sum.Rejected != 1 || !strings.Contains(sum.Errors[0].Message, "not a mirror") {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestImportMirrorsUnchangedRowSkipped(t *testing.T) {
	imp, repo := newTestImporter()

	root := seedProduct(t, repo, domain.Product{SKU: "R-2", Name: "Root", VATType: domain.VATNormal})
	seedProduct(t, repo, domain.Product{
		SKU: "MIR-S", Name: "Same", MirrorOf: root.ID, VATType: domain.VATNormal,
	})

	csv := "parent_sku,child_sku,child_name\nR-2,MIR-S,Same\n"
	sum, err := imp.ImportMirrors(context.Background(), csv)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if sum.Skipped != 1 || sum.Updated != 0 {
		t.Fatalf("no-op update should count as skipped: %+v", sum)
	}
}
