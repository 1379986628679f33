package pdfgen

import (
	"bytes"
	"testing"
	"time"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
)

func TestDocumentRenders(t *testing.T) {
	doc := domain.Document{
		ID:     "doc-1",
		Type:   domain.DocumentInvoice,
		Number: "FA-104",
		Lines: []domain.DocumentLine{
			{Label: "Ecran iPhone 13", Quantity: 1, UnitPrice: 89.90, VATRate: 20},
			{Label: "Main d'oeuvre", Quantity: 1, UnitPrice: 30, VATRate: 20},
		},
		TotalHT:  119.90,
		TotalVAT: 23.98,
		TotalTTC: 143.88,
		IssuedAt: time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC),
	}
	customer := &domain.Customer{
		Name:    "Boutique Lyon",
		SIREN:   "123456789",
		Billing: domain.Address{Line1: "12 rue de la Paix", PostalCode: "69001", City: "Lyon"},
	}

	out, err := Document(doc, domain.DocumentSettings{
		Type: domain.DocumentInvoice, FooterText: "Merci de votre confiance",
	}, customer)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatal("output is not a PDF")
	}

	if got := FileName(doc); got != "FA-104_2026-01-31.pdf" {
		t.Fatalf("unexpected file name: %s", got)
	}
}

func TestLabelRenders(t *testing.T) {
	out, err := Label(domain.Product{
		SKU:          "IP13-256-35891104",
		Name:         "iPhone 13 256GB",
		SerialNumber: "35891104",
		RetailPrice:  499.90,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatal("output is not a PDF")
	}
}
