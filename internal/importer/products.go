package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/csvio"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/pricing"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/xid"
)

var productVocabulary = csvio.Vocabulary{
	Fields: []string{
		"name", "sku", "purchase_price_with_fees", "retail_price", "pro_price",
		"weight_grams", "location", "ean", "stock", "stock_alert", "description",
		"width_cm", "height_cm", "depth_cm", "category_type", "category_brand",
		"category_model", "vat_type", "margin_percent", "pro_margin_percent",
	},
	Prefixes: []string{"stock_"},
}

type productRun struct {
	cols         columns
	stockCols    []stockColumn
	defaultStock *domain.Stock
	categories   map[string]string
}

// ImportProducts reconciles a product CSV against the catalog. Rows are
// processed sequentially; each row either creates a product, updates an
// existing one, or is rejected. A blank SKU or an ambiguous pre-existing
// duplicate aborts the whole run.
func (imp *Importer) ImportProducts(ctx context.Context, text string, mode AllocationMode) (Summary, error) {
	var sum Summary

	rows, _ := csvio.ParseAuto(text, productVocabulary)
	if len(rows) < 2 {
		return sum, imp.abort(abortf(0, "file contains no data rows"))
	}
	headers := rows[0]

	skuIdx := ResolveIndex(headers, []string{"sku"}, []string{"parent"})
	if skuIdx < 0 {
		return sum, imp.abort(abortf(1, "required column sku not found"))
	}

	cols := columns{
		"sku":                      skuIdx,
		"name":                     ResolveIndex(headers, []string{"name", "product_name"}, []string{"parent", "category", "stock", "group"}),
		"purchase_price_with_fees": ResolveIndex(headers, []string{"purchase_price_with_fees", "purchase_price"}, []string{"raw"}),
		"retail_price":             ResolveIndex(headers, []string{"retail_price"}, nil),
		"pro_price":                ResolveIndex(headers, []string{"pro_price"}, []string{"margin"}),
		"weight_grams":             ResolveIndex(headers, []string{"weight_grams", "weight"}, nil),
		"location":                 ResolveIndex(headers, []string{"location"}, nil),
		"ean":                      ResolveIndex(headers, []string{"ean"}, nil),
		"stock":                    ResolveIndex(headers, []string{"stock"}, []string{"alert", "stock_", "stock-", "stock "}),
		"stock_alert":              ResolveIndex(headers, []string{"stock_alert"}, nil),
		"description":              ResolveIndex(headers, []string{"description"}, nil),
		"width_cm":                 ResolveIndex(headers, []string{"width_cm", "width"}, nil),
		"height_cm":                ResolveIndex(headers, []string{"height_cm", "height"}, nil),
		"depth_cm":                 ResolveIndex(headers, []string{"depth_cm", "depth"}, nil),
		"category_type":            ResolveIndex(headers, []string{"category_type"}, nil),
		"category_brand":           ResolveIndex(headers, []string{"category_brand"}, nil),
		"category_model":           ResolveIndex(headers, []string{"category_model"}, nil),
		"vat_type":                 ResolveIndex(headers, []string{"vat_type"}, nil),
		"margin_percent":           ResolveIndex(headers, []string{"margin_percent"}, []string{"pro"}),
		"pro_margin_percent":       ResolveIndex(headers, []string{"pro_margin_percent"}, nil),
	}

	stocks, err := imp.repo.ListStocks(ctx)
	if err != nil {
		return sum, imp.abort(abortf(0, "list stocks: %v", err))
	}
	reserved := make(map[int]bool, len(cols))
	for _, idx := range cols {
		if idx >= 0 {
			reserved[idx] = true
		}
	}
	stockCols, aerr := resolveStockColumns(headers, reserved, stocks)
	if aerr != nil {
		return sum, imp.abort(aerr)
	}

	run := &productRun{
		cols:       cols,
		stockCols:  stockCols,
		categories: map[string]string{},
	}
	if len(stocks) > 0 {
		first := stocks[0]
		for _, s := range stocks[1:] {
			if s.Name < first.Name {
				first = s
			}
		}
		run.defaultStock = &first
	}

	imp.start(len(rows)-1, "products")
	for i, row := range rows[1:] {
		line := i + 2
		if aerr := imp.cancelled(ctx, line); aerr != nil {
			return sum, imp.abort(aerr)
		}
		if aerr := imp.productRow(ctx, run, row, line, mode, &sum); aerr != nil {
			return sum, imp.abort(aerr)
		}
		imp.step()
	}

	return imp.finish(sum), nil
}

func (imp *Importer) productRow(ctx context.Context, run *productRun, row []string, line int, mode AllocationMode, sum *Summary) *AbortError {
	cols := run.cols

	sku := domain.SKUKey(cols.get(row, "sku"))
	if sku == "" {
		return abortf(line, "mandatory sku is blank")
	}

	matches, err := imp.repo.FindProductsBySKU(ctx, sku)
	if err != nil {
		sum.reject(line, "sku lookup failed: %v", err)
		return nil
	}
	if len(matches) > 1 {
		return abortf(line, "%d existing products share sku %s; de-duplicate before importing", len(matches), sku)
	}
	var existing *domain.Product
	if len(matches) == 1 {
		existing = &matches[0]
	}

	vatCell := cols.get(row, "vat_type")
	vat, ok := parseVAT(vatCell)
	if !ok {
		sum.reject(line, "unknown vat_type %q", vatCell)
		return nil
	}
	if vatCell == "" && existing != nil && existing.VATType != "" {
		vat = existing.VATType
	}

	purchaseCell := cols.get(row, "purchase_price_with_fees")
	purchase, purchaseOK := parseDecimal(purchaseCell)
	if purchaseCell != "" && !purchaseOK {
		sum.reject(line, "invalid purchase price %q", purchaseCell)
		return nil
	}
	if purchaseCell == "" && existing != nil {
		purchase, purchaseOK = existing.PurchasePriceWithFees, true
	}

	// A tier accepts either an explicit sale price or a margin percentage,
	// never both. Retail must be specified one way or the other; pro is
	// optional.
	retailCell := cols.get(row, "retail_price")
	retailPctCell := cols.get(row, "margin_percent")
	proCell := cols.get(row, "pro_price")
	proPctCell := cols.get(row, "pro_margin_percent")

	if retailCell != "" && retailPctCell != "" {
		sum.reject(line, "conflicting price specification: retail_price %q and margin_percent %q are both set", retailCell, retailPctCell)
		return nil
	}
	if proCell != "" && proPctCell != "" {
		sum.reject(line, "conflicting price specification: pro_price %q and pro_margin_percent %q are both set", proCell, proPctCell)
		return nil
	}
	if retailCell == "" && retailPctCell == "" {
		sum.reject(line, "missing price specification: provide retail_price or margin_percent")
		return nil
	}

	alloc, err := parseRowAllocations(cols, run.stockCols, row)
	if err != nil {
		sum.reject(line, "%v", err)
		return nil
	}

	// Quantity-weighted purchase price average when adding stock to an
	// existing product at a different purchase price.
	existingQty := 0
	if existing != nil {
		allocs, err := imp.repo.ListAllocationsByProduct(ctx, existing.ID)
		if err != nil {
			sum.reject(line, "stock lookup failed: %v", err)
			return nil
		}
		for _, a := range allocs {
			existingQty += a.Quantity
		}
	}
	if existing != nil && mode == ModeAdditive && purchaseCell != "" && alloc.importedQuantity() > 0 {
		purchase = weightedAveragePurchase(existingQty, existing.PurchasePriceWithFees, alloc.importedQuantity(), purchase)
	}

	if !purchaseOK || purchase <= 0 {
		sum.reject(line, "cannot compute prices: purchase price is missing or not positive")
		return nil
	}

	retail, err := deriveTier(vat, purchase, retailCell, retailPctCell)
	if err != nil {
		sum.reject(line, "retail price: %v", err)
		return nil
	}
	var pro *pricing.Breakdown
	if proCell != "" || proPctCell != "" {
		pro, err = deriveTier(vat, purchase, proCell, proPctCell)
		if err != nil {
			sum.reject(line, "pro price: %v", err)
			return nil
		}
	}

	categoryID := ""
	catType := cols.get(row, "category_type")
	catBrand := cols.get(row, "category_brand")
	catModel := cols.get(row, "category_model")
	switch {
	case catType == "" && catBrand == "" && catModel == "":
	case catType != "" && catBrand != "" && catModel != "":
		categoryID, err = imp.getOrCreateCategory(ctx, run.categories, catType, catBrand, catModel)
		if err != nil {
			sum.reject(line, "category: %v", err)
			return nil
		}
	default:
		sum.reject(line, "incomplete category: type, brand and model must all be set")
		return nil
	}

	if existing == nil {
		return imp.createProductRow(ctx, run, row, line, sku, vat, purchase, retail, pro, categoryID, alloc, sum)
	}
	return imp.updateProductRow(ctx, run, row, line, existing, vat, purchase, retail, pro, categoryID, alloc, mode, sum)
}

func (imp *Importer) createProductRow(ctx context.Context, run *productRun, row []string, line int, sku string, vat domain.VATType, purchase float64, retail, pro *pricing.Breakdown, categoryID string, alloc rowAllocations, sum *Summary) *AbortError {
	cols := run.cols

	name := cols.get(row, "name")
	if name == "" {
		sum.reject(line, "name is required to create product %s", sku)
		return nil
	}

	now := time.Now().UTC()
	p := domain.Product{
		ID:                    xid.New("prod"),
		SKU:                   sku,
		Name:                  name,
		Description:           cols.get(row, "description"),
		PurchasePriceWithFees: pricing.Round2(purchase),
		VATType:               vat,
		EAN:                   cols.get(row, "ean"),
		Location:              cols.get(row, "location"),
		CategoryID:            categoryID,
		ProductType:           domain.ProductTypePAU,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if v, ok := parseDecimal(cols.get(row, "weight_grams")); ok {
		p.WeightGrams = v
	}
	if v, ok := parseDecimal(cols.get(row, "width_cm")); ok {
		p.WidthCM = v
	}
	if v, ok := parseDecimal(cols.get(row, "height_cm")); ok {
		p.HeightCM = v
	}
	if v, ok := parseDecimal(cols.get(row, "depth_cm")); ok {
		p.DepthCM = v
	}
	if v, ok := parseIntCell(cols.get(row, "stock_alert")); ok {
		p.StockAlert = v
	}
	p.RetailPrice = retail.SalePrice
	p.MarginPercent = retail.MarginPercent
	p.MarginValue = retail.MarginValue
	if pro != nil {
		p.ProPrice = pro.SalePrice
		p.ProMarginPercent = pro.MarginPercent
		p.ProMarginValue = pro.MarginValue
	}

	created, err := imp.repo.CreateProduct(ctx, p)
	if err != nil {
		sum.reject(line, "create failed: %v", err)
		return nil
	}
	if err := imp.applyAllocations(ctx, created.ID, alloc, ModeReplace, true, run.defaultStock); err != nil {
		sum.reject(line, "stock allocation failed: %v", err)
		return nil
	}

	sum.Created++
	return nil
}

func (imp *Importer) updateProductRow(ctx context.Context, run *productRun, row []string, line int, existing *domain.Product, vat domain.VATType, purchase float64, retail, pro *pricing.Breakdown, categoryID string, alloc rowAllocations, mode AllocationMode, sum *Summary) *AbortError {
	cols := run.cols

	if existing.IsSerialized() {
		sum.reject(line, "sku %s is a serialized unit; use the serialized import", existing.SKU)
		return nil
	}
	if existing.IsMirror() {
		sum.reject(line, "sku %s is a product mirror; use the mirror import", existing.SKU)
		return nil
	}

	updated := *existing
	if name := cols.get(row, "name"); name != "" {
		updated.Name = name
	}
	if desc := cols.get(row, "description"); desc != "" {
		updated.Description = desc
	}
	if loc := cols.get(row, "location"); loc != "" {
		updated.Location = loc
	}
	if ean := cols.get(row, "ean"); ean != "" {
		updated.EAN = ean
	}
	if v, ok := parseDecimal(cols.get(row, "weight_grams")); ok {
		updated.WeightGrams = v
	}
	if v, ok := parseDecimal(cols.get(row, "width_cm")); ok {
		updated.WidthCM = v
	}
	if v, ok := parseDecimal(cols.get(row, "height_cm")); ok {
		updated.HeightCM = v
	}
	if v, ok := parseDecimal(cols.get(row, "depth_cm")); ok {
		updated.DepthCM = v
	}
	if v, ok := parseIntCell(cols.get(row, "stock_alert")); ok {
		updated.StockAlert = v
	}
	if categoryID != "" {
		updated.CategoryID = categoryID
	}
	updated.VATType = vat
	updated.PurchasePriceWithFees = pricing.Round2(purchase)
	updated.RetailPrice = retail.SalePrice
	updated.MarginPercent = retail.MarginPercent
	updated.MarginValue = retail.MarginValue
	if pro != nil {
		updated.ProPrice = pro.SalePrice
		updated.ProMarginPercent = pro.MarginPercent
		updated.ProMarginValue = pro.MarginValue
	}
	updated.UpdatedAt = time.Now().UTC()

	if _, err := imp.repo.UpdateProduct(ctx, updated); err != nil {
		sum.reject(line, "update failed: %v", err)
		return nil
	}
	if !alloc.empty() {
		if err := imp.applyAllocations(ctx, updated.ID, alloc, mode, false, run.defaultStock); err != nil {
			sum.reject(line, "stock allocation failed: %v", err)
			return nil
		}
	}

	sum.Updated++
	return nil
}

// deriveTier normalizes one price tier through the pricing engine from
// whichever single representation the row carries.
func deriveTier(vat domain.VATType, purchase float64, saleCell, percentCell string) (*pricing.Breakdown, error) {
	in := pricing.Input{}
	switch {
	case saleCell != "":
		v, ok := parseDecimal(saleCell)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", saleCell)
		}
		in.SalePrice = &v
	case percentCell != "":
		v, ok := parseDecimal(percentCell)
		if !ok {
			return nil, fmt.Errorf("invalid percentage %q", percentCell)
		}
		in.MarginPercent = &v
	default:
		return nil, pricing.ErrMissingInput
	}

	b, err := pricing.Derive(vat, purchase, in)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
