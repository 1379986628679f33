// Package importer implements the CSV import reconciliation pipeline:
// header resolution, row-by-row create/update/reject decisions, stock
// allocation reconciliation and progress tracking. Rows are processed
// sequentially; each row's outcome is independent except for the fail-fast
// conditions that abort the whole run.
package importer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/notify"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/store"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/xid"
)

type Importer struct {
	repo     store.Repository
	notifier notify.Notifier
	tracker  *Tracker
}

func New(repo store.Repository, notifier notify.Notifier, tracker *Tracker) *Importer {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Importer{repo: repo, notifier: notifier, tracker: tracker}
}

func (imp *Importer) start(total int, label string) {
	if imp.tracker != nil {
		imp.tracker.Start(total, label)
	}
}

func (imp *Importer) step() {
	if imp.tracker != nil {
		imp.tracker.Increment()
	}
}

// finish finalizes the tracker with either the aggregate success message or
// the collected error list, and returns the summary unchanged.
func (imp *Importer) finish(sum Summary) Summary {
	if imp.tracker != nil {
		if len(sum.Errors) > 0 {
			imp.tracker.Fail(sum.Errors)
		} else {
			imp.tracker.Complete(sum.Message())
		}
	}
	return sum
}

// abort records a fatal condition on the tracker and passes the error up.
func (imp *Importer) abort(err *AbortError) *AbortError {
	if imp.tracker != nil {
		imp.tracker.Fail([]RowError{{Line: err.Line, Message: err.Message}})
	}
	return err
}

func (imp *Importer) cancelled(ctx context.Context, line int) *AbortError {
	if ctx.Err() != nil {
		return abortf(line, "import cancelled: %v", ctx.Err())
	}
	return nil
}

// parseDecimal parses a decimal cell, accepting either '.' or ',' as the
// decimal separator.
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	// ParseFloat accepts "nan" and "inf"; neither is a price.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseIntCell(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Tolerate "3.0"-style exports.
		f, ok := parseDecimal(s)
		if !ok || f != float64(int(f)) {
			return 0, false
		}
		return int(f), true
	}
	return v, true
}

func parseBoolCell(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "oui", "y", "x":
		return true
	}
	return false
}

// parseVAT accepts the canonical regime names plus the French "marge"
// spelling. A blank cell defaults to the normal regime.
func parseVAT(s string) (domain.VATType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return domain.VATNormal, true
	case "normal", "normale":
		return domain.VATNormal, true
	case "margin", "marge", "tva sur marge":
		return domain.VATMargin, true
	}
	return "", false
}

// resolveRoot walks the mirror_of / parent_id chain to the ultimate root
// ancestor. A parent-of-a-parent chain must never leave a child referencing
// a middle node.
func (imp *Importer) resolveRoot(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	current := p
	for depth := 0; depth < 32; depth++ {
		next := current.MirrorOf
		if next == "" {
			next = current.ParentID
		}
		if next == "" {
			return current, nil
		}
		parent, err := imp.repo.GetProductByID(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("resolve parent of %s: %w", current.SKU, err)
		}
		current = parent
	}
	return nil, fmt.Errorf("parent chain of %s is too deep", p.SKU)
}

// getOrCreateCategory resolves a category by composite natural key, creating
// it on first use. Results are cached per run so repeated values across rows
// do not trigger redundant lookups or duplicate creates.
func (imp *Importer) getOrCreateCategory(ctx context.Context, cache map[string]string, typ, brand, model string) (string, error) {
	typ = strings.ToUpper(strings.TrimSpace(typ))
	brand = strings.ToUpper(strings.TrimSpace(brand))
	model = strings.ToUpper(strings.TrimSpace(model))

	key := domain.CategoryKey(typ, brand, model)
	if id, ok := cache[key]; ok {
		return id, nil
	}

	existing, err := imp.repo.FindCategory(ctx, typ, brand, model)
	if err == nil {
		cache[key] = existing.ID
		return existing.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	created, err := imp.repo.CreateCategory(ctx, domain.Category{
		ID:        xid.New("cat"),
		Type:      typ,
		Brand:     brand,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	cache[key] = created.ID
	return created.ID, nil
}

// getOrCreateVariant mirrors getOrCreateCategory for variant keys.
func (imp *Importer) getOrCreateVariant(ctx context.Context, cache map[string]string, color, grade string, capacity int, simType string) (string, error) {
	color = strings.ToUpper(strings.TrimSpace(color))
	grade = strings.ToUpper(strings.TrimSpace(grade))
	simType = strings.ToUpper(strings.TrimSpace(simType))

	key := domain.VariantKey(color, grade, capacity, simType)
	if id, ok := cache[key]; ok {
		return id, nil
	}

	existing, err := imp.repo.FindVariant(ctx, color, grade, capacity, simType)
	if err == nil {
		cache[key] = existing.ID
		return existing.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	created, err := imp.repo.CreateVariant(ctx, domain.Variant{
		ID:        xid.New("var"),
		Color:     color,
		Grade:     grade,
		Capacity:  capacity,
		SimType:   simType,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	cache[key] = created.ID
	return created.ID, nil
}
