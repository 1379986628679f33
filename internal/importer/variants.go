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

var variantVocabulary = csvio.Vocabulary{
	Fields: []string{"color", "grade", "capacity", "sim_type"},
}

// ImportVariants reconciles a variant CSV with the same get-or-create
// semantics as categories. Capacity must be numeric; a bad capacity rejects
// the row rather than aborting the run.
func (imp *Importer) ImportVariants(ctx context.Context, text string) (Summary, error) {
	var sum Summary

	rows, _ := csvio.ParseAuto(text, variantVocabulary)
	if len(rows) < 2 {
		return sum, imp.abort(abortf(0, "file contains no data rows"))
	}
	headers := rows[0]

	cols := columns{
		"color":    ResolveIndex(headers, []string{"color", "colour"}, nil),
		"grade":    ResolveIndex(headers, []string{"grade"}, nil),
		"capacity": ResolveIndex(headers, []string{"capacity", "storage"}, nil),
		"sim_type": ResolveIndex(headers, []string{"sim_type", "sim"}, nil),
	}
	for _, key := range []string{"color", "grade", "capacity", "sim_type"} {
		if !cols.has(key) {
			return sum, imp.abort(abortf(1, "required column %s not found", key))
		}
	}

	seen := map[string]bool{}

	imp.start(len(rows)-1, "variants")
	for i, row := range rows[1:] {
		line := i + 2
		if aerr := imp.cancelled(ctx, line); aerr != nil {
			return sum, imp.abort(aerr)
		}

		color := strings.ToUpper(cols.get(row, "color"))
		grade := strings.ToUpper(cols.get(row, "grade"))
		simType := strings.ToUpper(cols.get(row, "sim_type"))
		rawCapacity := cols.get(row, "capacity")
		if color == "" || grade == "" || rawCapacity == "" || simType == "" {
			return sum, imp.abort(abortf(line, "color, grade, capacity and sim_type must all be present"))
		}

		capacity, ok := parseIntCell(rawCapacity)
		if !ok || capacity < 0 {
			sum.reject(line, "capacity %q is not a valid number", rawCapacity)
			imp.step()
			continue
		}

		key := domain.VariantKey(color, grade, capacity, simType)
		if seen[key] {
			sum.Skipped++
			imp.step()
			continue
		}
		seen[key] = true

		_, err := imp.repo.FindVariant(ctx, color, grade, capacity, simType)
		switch {
		case err == nil:
			sum.Skipped++
		case errors.Is(err, store.ErrNotFound):
			_, err := imp.repo.CreateVariant(ctx, domain.Variant{
				ID:        xid.New("var"),
				Color:     color,
				Grade:     grade,
				Capacity:  capacity,
				SimType:   simType,
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
