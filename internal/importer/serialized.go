package importer

import (
	"context"
	"time"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/csvio"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/notify"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/pricing"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/store"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/xid"
)

var serializedVocabulary = csvio.Vocabulary{
	Fields: []string{
		"sku_parent", "serial_number", "purchase_price_with_fees", "retail_price",
		"pro_price", "raw_purchase_price", "vat_type", "stock_name", "supplier",
		"battery_percentage", "warranty_sticker", "product_note",
	},
}

// ImportSerialized reconciles a serialized-unit CSV. Each row is a physical
// unit identified by its serial number: quantity 1 in exactly one stock, SKU
// generated as <PARENT_SKU>-<SERIAL>. Moving a unit between stocks emits a
// consignment event when either side belongs to a consignment group.
func (imp *Importer) ImportSerialized(ctx context.Context, text string) (Summary, error) {
	var sum Summary

	rows, _ := csvio.ParseAuto(text, serializedVocabulary)
	if len(rows) < 2 {
		return sum, imp.abort(abortf(0, "file contains no data rows"))
	}
	headers := rows[0]

	serialIdx := ResolveIndex(headers, []string{"serial_number", "serial", "imei"}, nil)
	if serialIdx < 0 {
		return sum, imp.abort(abortf(1, "required column serial_number not found"))
	}

	cols := columns{
		"serial_number":            serialIdx,
		"sku_parent":               ResolveIndex(headers, []string{"sku_parent", "parent_sku", "sku"}, []string{"serial"}),
		"purchase_price_with_fees": ResolveIndex(headers, []string{"purchase_price_with_fees", "purchase_price"}, []string{"raw"}),
		"raw_purchase_price":       ResolveIndex(headers, []string{"raw_purchase_price"}, nil),
		"retail_price":             ResolveIndex(headers, []string{"retail_price", "price"}, []string{"pro", "purchase"}),
		"pro_price":                ResolveIndex(headers, []string{"pro_price"}, nil),
		"vat_type":                 ResolveIndex(headers, []string{"vat_type", "vat"}, nil),
		"stock_name":               ResolveIndex(headers, []string{"stock_name", "stock"}, []string{"alert"}),
		"supplier":                 ResolveIndex(headers, []string{"supplier"}, nil),
		"battery_percentage":       ResolveIndex(headers, []string{"battery_percentage", "battery"}, nil),
		"warranty_sticker":         ResolveIndex(headers, []string{"warranty_sticker", "warranty"}, nil),
		"product_note":             ResolveIndex(headers, []string{"product_note", "note"}, nil),
	}

	stocks, err := imp.repo.ListStocks(ctx)
	if err != nil {
		return sum, imp.abort(abortf(1, "listing stocks: %v", err))
	}
	stocksByKey := map[string]domain.Stock{}
	for _, s := range stocks {
		stocksByKey[s.Key()] = s
	}

	imp.start(len(rows)-1, "serialized units")
	for i, row := range rows[1:] {
		line := i + 2
		if aerr := imp.cancelled(ctx, line); aerr != nil {
			return sum, imp.abort(aerr)
		}
		if aerr := imp.serializedRow(ctx, cols, stocksByKey, row, line, &sum); aerr != nil {
			return sum, imp.abort(aerr)
		}
		imp.step()
	}

	return imp.finish(sum), nil
}

func (imp *Importer) serializedRow(ctx context.Context, cols columns, stocksByKey map[string]domain.Stock, row []string, line int, sum *Summary) *AbortError {
	serial := domain.SerialKey(cols.get(row, "serial_number"))
	if serial == "" {
		return abortf(line, "mandatory serial_number is blank")
	}

	matches, err := imp.repo.FindProductsBySerial(ctx, serial)
	if err != nil {
		sum.reject(line, "serial lookup failed: %v", err)
		return nil
	}
	if len(matches) > 1 {
		return abortf(line, "%d existing products share serial %s; de-duplicate before importing", len(matches), serial)
	}

	// Resolve the target stock up front: an unknown stock_name value only
	// rejects the row, it never kills the run.
	var target *domain.Stock
	if name := cols.get(row, "stock_name"); name != "" {
		s, ok := stocksByKey[domain.StockNameKey(name)]
		if !ok {
			sum.reject(line, "unknown stock %q", name)
			return nil
		}
		target = &s
	}

	if len(matches) == 1 {
		return imp.updateSerializedRow(ctx, cols, matches[0], target, row, line, sum)
	}

	// Create path: parent is mandatory and resolved to its root ancestor.
	parentSKU := domain.SKUKey(cols.get(row, "sku_parent"))
	if parentSKU == "" {
		sum.reject(line, "sku_parent is required to create serialized unit %s", serial)
		return nil
	}
	parents, err := imp.repo.FindProductsBySKU(ctx, parentSKU)
	if err != nil {
		sum.reject(line, "parent lookup failed: %v", err)
		return nil
	}
	if len(parents) > 1 {
		return abortf(line, "%d existing products share parent sku %s; de-duplicate before importing", len(parents), parentSKU)
	}
	if len(parents) == 0 {
		sum.reject(line, "sku_parent %s does not match any product", parentSKU)
		return nil
	}
	root, err := imp.resolveRoot(ctx, &parents[0])
	if err != nil {
		sum.reject(line, "%v", err)
		return nil
	}
	if target == nil {
		sum.reject(line, "stock_name is required to create serialized unit %s", serial)
		return nil
	}

	now := time.Now().UTC()
	unit := domain.Product{
		ID:           xid.New("prod"),
		SKU:          root.SKU + "-" + serial,
		Name:         root.Name,
		ParentID:     root.ID,
		SerialNumber: serial,
		CategoryID:   root.CategoryID,
		VariantID:    root.VariantID,
		Supplier:     cols.get(row, "supplier"),
		ProductNote:  cols.get(row, "product_note"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	inheritEconomics(&unit, root)
	if bp, ok := parseIntCell(cols.get(row, "battery_percentage")); ok {
		unit.BatteryPercentage = bp
	}
	if cols.has("warranty_sticker") {
		unit.WarrantySticker = parseBoolCell(cols.get(row, "warranty_sticker"))
	}
	if !applySerializedPrices(cols, row, line, &unit, sum) {
		return nil
	}

	created, err := imp.repo.CreateProduct(ctx, unit)
	if err != nil {
		sum.reject(line, "create failed: %v", err)
		return nil
	}
	if err := imp.repo.UpsertAllocation(ctx, domain.StockAllocation{
		ProductID: created.ID,
		StockID:   target.ID,
		Quantity:  1,
	}); err != nil {
		sum.reject(line, "stock assignment failed: %v", err)
		return nil
	}
	imp.notifyConsignment(ctx, created, target, "in")
	sum.Created++
	return nil
}

func (imp *Importer) updateSerializedRow(ctx context.Context, cols columns, existing domain.Product, target *domain.Stock, row []string, line int, sum *Summary) *AbortError {
	if !existing.IsSerialized() {
		sum.reject(line, "sku %s is not a serialized unit", existing.SKU)
		return nil
	}

	updated := existing
	if s := cols.get(row, "supplier"); s != "" {
		updated.Supplier = s
	}
	if n := cols.get(row, "product_note"); n != "" {
		updated.ProductNote = n
	}
	if bp, ok := parseIntCell(cols.get(row, "battery_percentage")); ok {
		updated.BatteryPercentage = bp
	}
	if cols.has("warranty_sticker") && cols.get(row, "warranty_sticker") != "" {
		updated.WarrantySticker = parseBoolCell(cols.get(row, "warranty_sticker"))
	}
	if !applySerializedPrices(cols, row, line, &updated, sum) {
		return nil
	}

	updated.UpdatedAt = time.Now().UTC()
	saved, err := imp.repo.UpdateProduct(ctx, updated)
	if err != nil {
		sum.reject(line, "update failed: %v", err)
		return nil
	}

	if target != nil {
		if err := imp.moveSerializedUnit(ctx, saved, target); err != nil {
			sum.reject(line, "stock move failed: %v", err)
			return nil
		}
	}
	sum.Updated++
	return nil
}

// applySerializedPrices overlays the row's price cells on the unit and
// re-derives both margin tiers from the effective purchase price. Returns
// false after recording a row reject for any unparseable cell.
func applySerializedPrices(cols columns, row []string, line int, unit *domain.Product, sum *Summary) bool {
	reject := func(format string, args ...any) {
		sum.reject(line, format, args...)
	}

	for _, cell := range []struct {
		key string
		dst *float64
	}{
		{"purchase_price_with_fees", &unit.PurchasePriceWithFees},
		{"raw_purchase_price", &unit.RawPurchasePrice},
		{"retail_price", &unit.RetailPrice},
		{"pro_price", &unit.ProPrice},
	} {
		raw := cols.get(row, cell.key)
		if raw == "" {
			continue
		}
		v, ok := parseDecimal(raw)
		if !ok {
			reject("invalid %s %q", cell.key, raw)
			return false
		}
		*cell.dst = v
	}

	if raw := cols.get(row, "vat_type"); raw != "" {
		vt, ok := parseVAT(raw)
		if !ok {
			reject("invalid vat_type %q", raw)
			return false
		}
		unit.VATType = vt
	}

	if unit.PurchasePriceWithFees > 0 {
		if unit.RetailPrice > 0 {
			b, err := pricing.FromSalePrice(unit.VATType, unit.PurchasePriceWithFees, unit.RetailPrice)
			if err != nil {
				reject("retail price: %v", err)
				return false
			}
			unit.MarginPercent, unit.MarginValue = b.MarginPercent, b.MarginValue
		}
		if unit.ProPrice > 0 {
			b, err := pricing.FromSalePrice(unit.VATType, unit.PurchasePriceWithFees, unit.ProPrice)
			if err != nil {
				reject("pro price: %v", err)
				return false
			}
			unit.ProMarginPercent, unit.ProMarginValue = b.MarginPercent, b.MarginValue
		}
	}
	return true
}

// moveSerializedUnit reassigns a unit to target, clearing any previous
// stock row first. Consignment events fire for each side whose stock group
// is flagged as consignment.
func (imp *Importer) moveSerializedUnit(ctx context.Context, unit *domain.Product, target *domain.Stock) error {
	allocs, err := imp.repo.ListAllocationsByProduct(ctx, unit.ID)
	if err != nil {
		return err
	}
	for _, a := range allocs {
		if a.StockID == target.ID {
			return nil // already there
		}
	}
	for _, a := range allocs {
		if err := imp.repo.DeleteAllocation(ctx, unit.ID, a.StockID); err != nil {
			return err
		}
		if prev, err := imp.stockByID(ctx, a.StockID); err == nil {
			imp.notifyConsignment(ctx, unit, prev, "out")
		}
	}
	if err := imp.repo.UpsertAllocation(ctx, domain.StockAllocation{
		ProductID: unit.ID,
		StockID:   target.ID,
		Quantity:  1,
	}); err != nil {
		return err
	}
	imp.notifyConsignment(ctx, unit, target, "in")
	return nil
}

func (imp *Importer) stockByID(ctx context.Context, id string) (*domain.Stock, error) {
	stocks, err := imp.repo.ListStocks(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range stocks {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

// notifyConsignment emits an event only when the stock's group is a
// consignment group. Notification failures are non-fatal: the unit is
// already moved, the collaborator just catches up later.
func (imp *Importer) notifyConsignment(ctx context.Context, unit *domain.Product, stock *domain.Stock, direction string) {
	if stock == nil || stock.GroupID == "" {
		return
	}
	group, err := imp.repo.GetStockGroupByID(ctx, stock.GroupID)
	if err != nil || !group.Consignment {
		return
	}
	_ = imp.notifier.ConsignmentChanged(ctx, notify.ConsignmentEvent{
		ProductID:    unit.ID,
		SKU:          unit.SKU,
		SerialNumber: unit.SerialNumber,
		StockID:      stock.ID,
		StockName:    stock.Name,
		GroupName:    group.Name,
		Direction:    direction,
		At:           time.Now().UTC(),
	})
}
