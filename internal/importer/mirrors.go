package importer

import (
	"context"
	"time"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/csvio"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/xid"
)

var mirrorVocabulary = csvio.Vocabulary{
	Fields: []string{
		"parent_sku", "parent_name", "child_sku", "child_name", "description",
		"category_type", "category_brand", "category_model",
	},
}

// ImportMirrors reconciles a mirror CSV. A mirror is a SKU-distinct alias
// of a parent product: on creation it inherits all economic and physical
// fields from the resolved root ancestor; afterwards its SKU and parent
// linkage are immutable, and only name, description and category may be
// updated.
func (imp *Importer) ImportMirrors(ctx context.Context, text string) (Summary, error) {
	var sum Summary

	rows, _ := csvio.ParseAuto(text, mirrorVocabulary)
	if len(rows) < 2 {
		return sum, imp.abort(abortf(0, "file contains no data rows"))
	}
	headers := rows[0]

	childIdx := ResolveIndex(headers, []string{"child_sku", "sku"}, []string{"parent"})
	if childIdx < 0 {
		return sum, imp.abort(abortf(1, "required column child_sku not found"))
	}

	cols := columns{
		"child_sku":      childIdx,
		"parent_sku":     ResolveIndex(headers, []string{"parent_sku", "sku_parent"}, []string{"child"}),
		"child_name":     ResolveIndex(headers, []string{"child_name", "name"}, []string{"parent"}),
		"description":    ResolveIndex(headers, []string{"description"}, nil),
		"category_type":  ResolveIndex(headers, []string{"category_type"}, nil),
		"category_brand": ResolveIndex(headers, []string{"category_brand"}, nil),
		"category_model": ResolveIndex(headers, []string{"category_model"}, nil),
	}

	categories := map[string]string{}

	imp.start(len(rows)-1, "mirrors")
	for i, row := range rows[1:] {
		line := i + 2
		if aerr := imp.cancelled(ctx, line); aerr != nil {
			return sum, imp.abort(aerr)
		}
		if aerr := imp.mirrorRow(ctx, cols, categories, row, line, &sum); aerr != nil {
			return sum, imp.abort(aerr)
		}
		imp.step()
	}

	return imp.finish(sum), nil
}

func (imp *Importer) mirrorRow(ctx context.Context, cols columns, categories map[string]string, row []string, line int, sum *Summary) *AbortError {
	childSKU := domain.SKUKey(cols.get(row, "child_sku"))
	if childSKU == "" {
		return abortf(line, "mandatory child_sku is blank")
	}

	matches, err := imp.repo.FindProductsBySKU(ctx, childSKU)
	if err != nil {
		sum.reject(line, "sku lookup failed: %v", err)
		return nil
	}
	if len(matches) > 1 {
		return abortf(line, "%d existing products share sku %s; de-duplicate before importing", len(matches), childSKU)
	}

	parentSKU := domain.SKUKey(cols.get(row, "parent_sku"))

	// Resolve the row's parent reference to its root ancestor, when given.
	var rowRoot *domain.Product
	if parentSKU != "" {
		parents, err := imp.repo.FindProductsBySKU(ctx, parentSKU)
		if err != nil {
			sum.reject(line, "parent lookup failed: %v", err)
			return nil
		}
		if len(parents) > 1 {
			return abortf(line, "%d existing products share parent sku %s; de-duplicate before importing", len(parents), parentSKU)
		}
		if len(parents) == 0 {
			sum.reject(line, "parent_sku %s does not match any product", parentSKU)
			return nil
		}
		rowRoot, err = imp.resolveRoot(ctx, &parents[0])
		if err != nil {
			sum.reject(line, "%v", err)
			return nil
		}
	}

	categoryID := ""
	catType := cols.get(row, "category_type")
	catBrand := cols.get(row, "category_brand")
	catModel := cols.get(row, "category_model")
	if catType != "" && catBrand != "" && catModel != "" {
		categoryID, err = imp.getOrCreateCategory(ctx, categories, catType, catBrand, catModel)
		if err != nil {
			sum.reject(line, "category: %v", err)
			return nil
		}
	}

	if len(matches) == 1 {
		existing := matches[0]
		if !existing.IsMirror() {
			switch {
			case existing.IsSerialized():
				sum.reject(line, "sku %s is a serialized unit, not an unserialized mirror", childSKU)
			default:
				sum.reject(line, "sku %s is not a mirror", childSKU)
			}
			return nil
		}

		if rowRoot != nil {
			currentRoot, err := imp.resolveRoot(ctx, &existing)
			if err != nil {
				sum.reject(line, "%v", err)
				return nil
			}
			if currentRoot.ID != rowRoot.ID {
				sum.reject(line, "re-parenting forbidden: mirror %s belongs to %s, row references %s", childSKU, currentRoot.SKU, rowRoot.SKU)
				return nil
			}
		}

		// Bounded allow-list: name, description, category. Inherited and
		// economic fields are never touched on update.
		updated := existing
		changed := false
		if name := cols.get(row, "child_name"); name != "" && name != updated.Name {
			updated.Name = name
			changed = true
		}
		if desc := cols.get(row, "description"); desc != "" && desc != updated.Description {
			updated.Description = desc
			changed = true
		}
		if categoryID != "" && categoryID != updated.CategoryID {
			updated.CategoryID = categoryID
			changed = true
		}
		if !changed {
			sum.Skipped++
			return nil
		}

		updated.UpdatedAt = time.Now().UTC()
		if _, err := imp.repo.UpdateProduct(ctx, updated); err != nil {
			sum.reject(line, "update failed: %v", err)
			return nil
		}
		sum.Updated++
		return nil
	}

	// Create path.
	if rowRoot == nil {
		sum.reject(line, "parent_sku is required to create mirror %s", childSKU)
		return nil
	}
	name := cols.get(row, "child_name")
	if name == "" {
		sum.reject(line, "child_name is required to create mirror %s", childSKU)
		return nil
	}
	if categoryID == "" {
		categoryID = rowRoot.CategoryID
	}

	now := time.Now().UTC()
	mirror := domain.Product{
		ID:          xid.New("prod"),
		SKU:         childSKU,
		Name:        name,
		Description: cols.get(row, "description"),
		MirrorOf:    rowRoot.ID,
		CategoryID:  categoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	inheritEconomics(&mirror, rowRoot)

	if _, err := imp.repo.CreateProduct(ctx, mirror); err != nil {
		sum.reject(line, "create failed: %v", err)
		return nil
	}
	sum.Created++
	return nil
}

// inheritEconomics copies the inheritable economic and physical fields from
// the root parent onto a child. Zero values stand in for anything the root
// itself lacks, so NOT-NULL numeric columns downstream never trip.
func inheritEconomics(child *domain.Product, root *domain.Product) {
	child.PurchasePriceWithFees = root.PurchasePriceWithFees
	child.RawPurchasePrice = root.RawPurchasePrice
	child.RetailPrice = root.RetailPrice
	child.ProPrice = root.ProPrice
	child.VATType = root.VATType
	child.MarginPercent = root.MarginPercent
	child.MarginValue = root.MarginValue
	child.ProMarginPercent = root.ProMarginPercent
	child.ProMarginValue = root.ProMarginValue
	child.WeightGrams = root.WeightGrams
	child.WidthCM = root.WidthCM
	child.HeightCM = root.HeightCM
	child.DepthCM = root.DepthCM
	child.StockAlert = root.StockAlert
	child.ProductType = root.ProductType
	if child.VATType == "" {
		child.VATType = domain.VATNormal
	}
	if child.ProductType == "" {
		child.ProductType = domain.ProductTypePAU
	}
}
