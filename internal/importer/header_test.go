package importer

import "testing"

func TestResolveIndexExactMatchWinsOverFuzzy(t *testing.T) {
	headers := []string{"parent_name", "name"}
	if got := ResolveIndex(headers, []string{"name"}, nil); got != 1 {
		t.Fatalf("index = %d, want 1", got)
	}
}

func TestResolveIndexBoundaryAware(t *testing.T) {
	headers := []string{"parentname", "the name column"}
	if got := ResolveIndex(headers, []string{"name"}, nil); got != 1 {
		t.Fatalf("index = %d, want 1 (token boundary match)", got)
	}

	if got := ResolveIndex([]string{"parentname"}, []string{"name"}, nil); got != -1 {
		t.Fatalf("index = %d, want -1 (no boundary)", got)
	}
}

func TestResolveIndexExclusion(t *testing.T) {
	headers := []string{"parent_name", "child_name"}
	if got := ResolveIndex(headers, []string{"name"}, []string{"parent_"}); got != 1 {
		t.Fatalf("index = %d, want 1 (parent_ excluded)", got)
	}
}

func TestResolveIndexNormalization(t *testing.T) {
	headers := []string{"\uFEFF\"  SKU  \"", "Product   Name"}
	if got := ResolveIndex(headers, []string{"sku"}, nil); got != 0 {
		t.Fatalf("sku index = %d, want 0", got)
	}
	if got := ResolveIndex(headers, []string{"product name"}, nil); got != 1 {
		t.Fatalf("product name index = %d, want 1", got)
	}
}

func TestResolveIndexNotFound(t *testing.T) {
	if got := ResolveIndex([]string{"a", "b"}, []string{"sku"}, nil); got != -1 {
		t.Fatalf("index = %d, want -1", got)
	}
}
