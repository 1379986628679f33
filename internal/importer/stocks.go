package importer

import (
	"context"
	"errors"
	"time"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/csvio"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/store"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/xid"
)

var stockVocabulary = csvio.Vocabulary{
	Fields: []string{"name", "group_name"},
}

// ImportStocks reconciles a stock-location CSV. Stocks are matched on the
// diacritic-insensitive name key; an existing stock is skipped, never
// renamed or moved between groups by import. Missing groups are created on
// first use.
func (imp *Importer) ImportStocks(ctx context.Context, text string) (Summary, error) {
	var sum Summary

	rows, _ := csvio.ParseAuto(text, stockVocabulary)
	if len(rows) < 2 {
		return sum, imp.abort(abortf(0, "file contains no data rows"))
	}
	headers := rows[0]

	nameIdx := ResolveIndex(headers, []string{"name", "stock_name"}, []string{"group"})
	if nameIdx < 0 {
		return sum, imp.abort(abortf(1, "required column name not found"))
	}
	cols := columns{
		"name":       nameIdx,
		"group_name": ResolveIndex(headers, []string{"group_name", "group"}, nil),
	}

	stocks, err := imp.repo.ListStocks(ctx)
	if err != nil {
		return sum, imp.abort(abortf(1, "listing stocks: %v", err))
	}
	byKey := map[string]bool{}
	for _, s := range stocks {
		byKey[s.Key()] = true
	}
	groupIDs := map[string]string{}

	imp.start(len(rows)-1, "stocks")
	for i, row := range rows[1:] {
		line := i + 2
		if aerr := imp.cancelled(ctx, line); aerr != nil {
			return sum, imp.abort(aerr)
		}

		name := cols.get(row, "name")
		if name == "" {
			return sum, imp.abort(abortf(line, "mandatory stock name is blank"))
		}

		key := domain.StockNameKey(name)
		if byKey[key] {
			sum.Skipped++
			imp.step()
			continue
		}

		groupID, err := imp.getOrCreateStockGroup(ctx, groupIDs, cols.get(row, "group_name"))
		if err != nil {
			sum.reject(line, "stock group: %v", err)
			imp.step()
			continue
		}

		_, err = imp.repo.CreateStock(ctx, domain.Stock{
			ID:        xid.New("stk"),
			Name:      name,
			GroupID:   groupID,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			sum.reject(line, "create failed: %v", err)
		} else {
			byKey[key] = true
			sum.Created++
		}
		imp.step()
	}

	return imp.finish(sum), nil
}

func (imp *Importer) getOrCreateStockGroup(ctx context.Context, cache map[string]string, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	key := domain.StockNameKey(name)
	if id, ok := cache[key]; ok {
		return id, nil
	}

	existing, err := imp.repo.FindStockGroupByName(ctx, name)
	if err == nil {
		cache[key] = existing.ID
		return existing.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	created, err := imp.repo.CreateStockGroup(ctx, domain.StockGroup{
		ID:        xid.New("stg"),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	cache[key] = created.ID
	return created.ID, nil
}
