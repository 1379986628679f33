package domain

import "testing"

func TestStockNameKeyIsDiacriticAndCaseInsensitive(t *testing.T) {
	cases := [][2]string{
		{"Défectueux", "defectueux"},
		{"DEFECTUEUX ", "defectueux"},
		{"SAV - Réparation", "savreparation"},
		{"Back Market", "backmarket"},
		{"dépôt_2", "depot2"},
	}
	for _, c := range cases {
		if got := StockNameKey(c[0]); got != c[1] {
			t.Fatalf("StockNameKey(%q) = %q, want %q", c[0], got, c[1])
		}
	}
}

func TestCategoryKeyUpperCasesAndTrims(t *testing.T) {
	a := CategoryKey(" smartphone", "Apple ", "iPhone 14")
	b := CategoryKey("SMARTPHONE", "APPLE", "IPHONE 14")
	if a != b {
		t.Fatalf("expected equal keys, got %q and %q", a, b)
	}
}

func TestProductSubtypePredicates(t *testing.T) {
	mirror := Product{MirrorOf: "prod-1"}
	if !mirror.IsMirror() || mirror.IsSerialized() {
		t.Fatalf("expected unserialized mirror")
	}

	unit := Product{MirrorOf: "prod-1", SerialNumber: "SN42"}
	if unit.IsMirror() || !unit.IsSerialized() {
		t.Fatalf("expected serialized unit")
	}

	parent := Product{IsParent: true}
	if parent.IsMirror() || parent.IsSerialized() {
		t.Fatalf("expected plain parent")
	}
}
