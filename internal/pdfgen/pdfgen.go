// Package pdfgen renders invoices, quotes, credit notes and shop labels.
// Layout only: totals and numbering are computed upstream and rendered
// verbatim here.
package pdfgen

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
)

var documentTitles = map[domain.DocumentType]string{
	domain.DocumentInvoice:    "FACTURE",
	domain.DocumentQuote:      "DEVIS",
	domain.DocumentCreditNote: "AVOIR",
}

// Document renders a settled document as a single-page A4 PDF.
func Document(doc domain.Document, settings domain.DocumentSettings, customer *domain.Customer) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	if settings.LogoPath != "" {
		pdf.ImageOptions(settings.LogoPath, 15, 12, 40, 0, false, fpdf.ImageOptions{}, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, fmt.Sprintf("%s %s", documentTitles[doc.Type], doc.Number), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, doc.IssuedAt.Format("02/01/2006"), "", 1, "R", false, 0, "")
	pdf.Ln(6)

	if customer != nil {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, customer.Name, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, line := range addressLines(customer.Billing) {
			pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
		}
		if customer.SIREN != "" {
			pdf.CellFormat(0, 5, "SIREN "+customer.SIREN, "", 1, "L", false, 0, "")
		}
		pdf.Ln(6)
	}

	// Line table.
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(90, 8, "Designation", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Qte", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "PU HT", "1", 0, "R", true, 0, "")
	pdf.CellFormat(15, 8, "TVA", "1", 0, "R", true, 0, "")
	pdf.CellFormat(25, 8, "Total HT", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range doc.Lines {
		pdf.CellFormat(90, 7, line.Label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", line.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, euros(line.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(15, 7, fmt.Sprintf("%.0f%%", line.VATRate), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, euros(float64(line.Quantity)*line.UnitPrice), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(155, 6, "Total HT", "", 0, "R", false, 0, "")
	pdf.CellFormat(25, 6, euros(doc.TotalHT), "", 1, "R", false, 0, "")
	pdf.CellFormat(155, 6, "Total TVA", "", 0, "R", false, 0, "")
	pdf.CellFormat(25, 6, euros(doc.TotalVAT), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(155, 7, "Total TTC", "", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, euros(doc.TotalTTC), "", 1, "R", false, 0, "")

	if settings.PaymentTerms != "" {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, settings.PaymentTerms, "", "L", false)
	}
	if settings.FooterText != "" {
		pdf.SetY(-30)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.MultiCell(0, 4, settings.FooterText, "", "C", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render %s %s: %w", doc.Type, doc.Number, err)
	}
	return buf.Bytes(), nil
}

// Label renders a small shop label for one product: name, SKU, serial when
// present, and the retail price. 57x32mm thermal format.
func Label(p domain.Product) ([]byte, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 57, Ht: 32},
	})
	pdf.SetMargins(3, 3, 3)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetXY(3, 3)
	pdf.MultiCell(51, 4, p.Name, "", "L", false)

	pdf.SetFont("Helvetica", "", 7)
	pdf.SetX(3)
	pdf.CellFormat(51, 3.5, p.SKU, "", 1, "L", false, 0, "")
	if p.SerialNumber != "" {
		pdf.SetX(3)
		pdf.CellFormat(51, 3.5, "S/N "+p.SerialNumber, "", 1, "L", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(3, 24)
	pdf.CellFormat(51, 6, euros(p.RetailPrice), "", 0, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render label %s: %w", p.SKU, err)
	}
	return buf.Bytes(), nil
}

func addressLines(a domain.Address) []string {
	var out []string
	if a.Line1 != "" {
		out = append(out, a.Line1)
	}
	if a.Line2 != "" {
		out = append(out, a.Line2)
	}
	if a.PostalCode != "" || a.City != "" {
		out = append(out, fmt.Sprintf("%s %s", a.PostalCode, a.City))
	}
	if a.Country != "" {
		out = append(out, a.Country)
	}
	return out
}

func euros(v float64) string {
	return fmt.Sprintf("%.2f EUR", v)
}

// FileName builds the customary download name, e.g. "FA-104_2026-01-31.pdf".
func FileName(doc domain.Document) string {
	return fmt.Sprintf("%s_%s.pdf", doc.Number, doc.IssuedAt.Format("2006-01-02"))
}
