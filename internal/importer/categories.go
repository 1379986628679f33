package importer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/csvio"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/store"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/xid"
)

var categoryVocabulary = csvio.Vocabulary{
	Fields: []string{"type", "brand", "model"},
}

// ImportCategories reconciles a category CSV. Categories are get-or-create
// only: an existing (type, brand, model) triple is counted as skipped,
// never updated in place.
func (imp *Importer) ImportCategories(ctx context.Context, text string) (Summary, error) {
	var sum Summary

	rows, _ := csvio.ParseAuto(text, categoryVocabulary)
	if len(rows) < 2 {
		return sum, imp.abort(abortf(0, "file contains no data rows"))
	}
	headers := rows[0]

	cols := columns{
		"type":  ResolveIndex(headers, []string{"type", "category_type"}, nil),
		"brand": ResolveIndex(headers, []string{"brand", "category_brand"}, nil),
		"model": ResolveIndex(headers, []string{"model", "category_model"}, nil),
	}
	for _, key := range []string{"type", "brand", "model"} {
		if !cols.has(key) {
			return sum, imp.abort(abortf(1, "required column %s not found", key))
		}
	}

	seen := map[string]bool{}

	imp.start(len(rows)-1, "categories")
	for i, row := range rows[1:] {
		line := i + 2
		if aerr := imp.cancelled(ctx, line); aerr != nil {
			return sum, imp.abort(aerr)
		}

		typ := strings.ToUpper(cols.get(row, "type"))
		brand := strings.ToUpper(cols.get(row, "brand"))
		model := strings.ToUpper(cols.get(row, "model"))
		if typ == "" || brand == "" || model == "" {
			return sum, imp.abort(abortf(line, "type, brand and model must all be present"))
		}

		key := domain.CategoryKey(typ, brand, model)
		if seen[key] {
			sum.Skipped++
			imp.step()
			continue
		}
		seen[key] = true

		_, err := imp.repo.FindCategory(ctx, typ, brand, model)
		switch {
		case err == nil:
			sum.Skipped++
		case errors.Is(err, store.ErrNotFound):
			_, err := imp.repo.CreateCategory(ctx, domain.Category{
				ID:        xid.New("cat"),
				Type:      typ,
				Brand:     brand,
				Model:     model,
				CreatedAt: time.Now().UTC(),
			})
			if err != nil {
				sum.reject(line, "create failed: %v", err)
			} else {
				sum.Created++
			}
		default:
			sum.reject(line, "lookup failed: %v", err)
		}
		imp.step()
	}

	return imp.finish(sum), nil
}
