package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/pricing"
)

// AllocationMode selects how imported stock quantities reconcile with
// existing per-(product,stock) rows. The interactive choice is made by the
// UI layer; the engine only receives the parameter.
type AllocationMode string

const (
	// ModeAdditive increments existing quantities and averages purchase
	// prices by quantity.
	ModeAdditive AllocationMode = "additive"
	// ModeReplace deletes all existing allocations first; the product's
	// total becomes exactly the imported total.
	ModeReplace AllocationMode = "replace"
)

func ParseMode(s string) (AllocationMode, error) {
	switch AllocationMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAdditive, "":
		return ModeAdditive, nil
	case ModeReplace:
		return ModeReplace, nil
	}
	return "", fmt.Errorf("unknown import mode %q", s)
}

// stockColumn binds a dynamic stock_<name> CSV column to a known stock.
type stockColumn struct {
	index int
	stock domain.Stock
}

// resolveStockColumns matches every stock_<name> header against the known
// stock locations using the diacritic-insensitive name key. Any column that
// does not resolve is fatal: a typo must abort the run rather than silently
// drop quantities. The error lists both the unknown names and the valid
// stock names.
func resolveStockColumns(headers []string, reserved map[int]bool, stocks []domain.Stock) ([]stockColumn, *AbortError) {
	byKey := make(map[string]domain.Stock, len(stocks))
	for _, s := range stocks {
		byKey[s.Key()] = s
	}

	var cols []stockColumn
	var unknown []string
	for i, h := range headers {
		if reserved[i] {
			continue
		}
		n := normalizeHeader(h)
		var rest string
		switch {
		case strings.HasPrefix(n, "stock_"):
			rest = n[len("stock_"):]
		case strings.HasPrefix(n, "stock "):
			rest = n[len("stock "):]
		case strings.HasPrefix(n, "stock-"):
			rest = n[len("stock-"):]
		default:
			continue
		}
		if rest == "" {
			continue
		}
		s, ok := byKey[domain.StockNameKey(rest)]
		if !ok {
			unknown = append(unknown, strings.TrimSpace(h))
			continue
		}
		cols = append(cols, stockColumn{index: i, stock: s})
	}

	if len(unknown) > 0 {
		names := make([]string, 0, len(stocks))
		for _, s := range stocks {
			names = append(names, s.Name)
		}
		sort.Strings(names)
		return nil, abortf(1, "unknown stock column(s) %s; valid stock names: %s",
			strings.Join(unknown, ", "), strings.Join(names, ", "))
	}

	return cols, nil
}

// rowAllocations is the stock quantity information carried by one row.
type rowAllocations struct {
	total    *int
	perStock []domain.StockAllocation
}

// importedQuantity is the total quantity this row brings in.
func (a rowAllocations) importedQuantity() int {
	if len(a.perStock) > 0 {
		q := 0
		for _, alloc := range a.perStock {
			q += alloc.Quantity
		}
		return q
	}
	if a.total != nil {
		return *a.total
	}
	return 0
}

func (a rowAllocations) empty() bool {
	return a.total == nil && len(a.perStock) == 0
}

// parseRowAllocations reads the aggregate stock cell and the per-stock
// cells of one row, and validates that both agree when both are present.
func parseRowAllocations(cols columns, stockCols []stockColumn, row []string) (rowAllocations, error) {
	var alloc rowAllocations

	if raw := cols.get(row, "stock"); raw != "" {
		total, ok := parseIntCell(raw)
		if !ok {
			return alloc, fmt.Errorf("invalid stock quantity %q", raw)
		}
		alloc.total = &total
	}

	for _, sc := range stockCols {
		if sc.index >= len(row) {
			continue
		}
		raw := strings.TrimSpace(row[sc.index])
		if raw == "" {
			continue
		}
		qty, ok := parseIntCell(raw)
		if !ok {
			return rowAllocations{}, fmt.Errorf("invalid quantity %q for stock %s", raw, sc.stock.Name)
		}
		alloc.perStock = append(alloc.perStock, domain.StockAllocation{StockID: sc.stock.ID, Quantity: qty})
	}

	if alloc.total != nil && len(alloc.perStock) > 0 {
		perStockSum := 0
		for _, a := range alloc.perStock {
			perStockSum += a.Quantity
		}
		if perStockSum != *alloc.total {
			return rowAllocations{}, fmt.Errorf("declared total stock %d does not match per-stock sum %d", *alloc.total, perStockSum)
		}
	}

	return alloc, nil
}

// applyAllocations writes a row's quantities for one product. When the row
// only carries an aggregate total, the quantity goes to defaultStock.
func (imp *Importer) applyAllocations(ctx context.Context, productID string, alloc rowAllocations, mode AllocationMode, isNew bool, defaultStock *domain.Stock) error {
	target := alloc.perStock
	if len(target) == 0 {
		if alloc.total == nil || *alloc.total == 0 {
			return nil
		}
		if defaultStock == nil {
			return fmt.Errorf("no stock location exists to receive the aggregate quantity")
		}
		target = []domain.StockAllocation{{StockID: defaultStock.ID, Quantity: *alloc.total}}
	}

	switch mode {
	case ModeReplace:
		if !isNew {
			if err := imp.repo.DeleteAllocationsByProduct(ctx, productID); err != nil {
				return err
			}
		}
		for _, t := range target {
			if t.Quantity <= 0 {
				continue
			}
			if err := imp.repo.UpsertAllocation(ctx, domain.StockAllocation{ProductID: productID, StockID: t.StockID, Quantity: t.Quantity}); err != nil {
				return err
			}
		}
	case ModeAdditive:
		existing := map[string]int{}
		if !isNew {
			allocs, err := imp.repo.ListAllocationsByProduct(ctx, productID)
			if err != nil {
				return err
			}
			for _, a := range allocs {
				existing[a.StockID] = a.Quantity
			}
		}
		for _, t := range target {
			qty := existing[t.StockID] + t.Quantity
			if err := imp.repo.UpsertAllocation(ctx, domain.StockAllocation{ProductID: productID, StockID: t.StockID, Quantity: qty}); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown allocation mode %q", mode)
	}

	return nil
}

// weightedAveragePurchase blends the pre-existing quantity at its price with
// the imported quantity at the imported price. Falls back to the imported
// price when the resulting total quantity is zero.
func weightedAveragePurchase(existingQty int, existingPrice float64, addedQty int, addedPrice float64) float64 {
	totalQty := existingQty + addedQty
	if totalQty == 0 {
		return pricing.Round2(addedPrice)
	}
	blended := (float64(existingQty)*existingPrice + float64(addedQty)*addedPrice) / float64(totalQty)
	return pricing.Round2(blended)
}
