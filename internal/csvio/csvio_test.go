package csvio

import (
	"reflect"
	"testing"
)

func TestParseQuotedFields(t *testing.T) {
	text := "sku,name,description\n" +
		"ABC,\"Widget, large\",\"He said \"\"ok\"\"\"\n" +
		"DEF,\"Multi\nline\",plain\n"

	rows := Parse(text)
	want := [][]string{
		{"sku", "name", "description"},
		{"ABC", "Widget, large", `He said "ok"`},
		{"DEF", "Multi\nline", "plain"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %#v, want %#v", rows, want)
	}
}

func TestParseDropsEmptyRowsAndStripsCR(t *testing.T) {
	text := "a,b\r\n\r\n1,2\r\n,,\n ,\t\n3,4"
	rows := Parse(text)
	want := [][]string{{"a", "b"}, {"1", "2"}, {"3", "4"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %#v, want %#v", rows, want)
	}
}

func TestParseTrimsCells(t *testing.T) {
	rows := Parse("  a , b \n 1 ,  2  ")
	want := [][]string{{"a", "b"}, {"1", "2"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %#v, want %#v", rows, want)
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	rows := [][]string{
		{"sku", "name", "note"},
		{"A-1", "Widget, large", `quote " inside`},
		{"B-2", "Multi\nline cell", "plain"},
		{"C-3", "semi;colon", "tab\tchar"},
	}
	got := Parse(Serialize(rows))
	if !reflect.DeepEqual(got, rows) {
		t.Fatalf("round trip mismatch:\ngot  %#v\nwant %#v", got, rows)
	}
}

func TestDetectDelimiterSemicolon(t *testing.T) {
	vocab := Vocabulary{
		Fields:   []string{"sku", "name", "retail_price", "stock"},
		Prefixes: []string{"stock_"},
	}
	text := "sku;name;retail_price;stock_PARIS\nA;Widget;10;2\n"
	if got := DetectDelimiter(text, vocab); got != ';' {
		t.Fatalf("delimiter = %q, want ';'", got)
	}

	rows, delim := ParseAuto(text, vocab)
	if delim != ';' || len(rows) != 2 || rows[0][3] != "stock_PARIS" {
		t.Fatalf("ParseAuto returned delim=%q rows=%#v", delim, rows)
	}
}

func TestDetectDelimiterTab(t *testing.T) {
	vocab := Vocabulary{Fields: []string{"sku", "name", "stock"}}
	text := "sku\tname\tstock\nA\tWidget\t3\n"
	if got := DetectDelimiter(text, vocab); got != '\t' {
		t.Fatalf("delimiter = %q, want tab", got)
	}
}

func TestDetectDelimiterTieBreaksOnFrequency(t *testing.T) {
	// No vocabulary hit for either candidate; raw frequency decides.
	text := "x;y;z;w\n1;2;3;4\n"
	if got := DetectDelimiter(text, Vocabulary{}); got != ';' {
		t.Fatalf("delimiter = %q, want ';'", got)
	}
}
