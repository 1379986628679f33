// Package restock turns per-product stock levels into a ranked list of
// replenishment suggestions. Scoring is a pure function of the catalog
// snapshot handed in; the advisor never touches the datastore itself.
package restock

import (
	"math"
	"sort"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
)

type Advisor struct {
	minSeverity float64
	maxResults  int
}

func NewAdvisor(minSeverity float64, maxResults int) *Advisor {
	if minSeverity <= 0 {
		minSeverity = 0.25
	}
	if maxResults < 1 {
		maxResults = 20
	}
	return &Advisor{minSeverity: minSeverity, maxResults: maxResults}
}

// Suggestion is one product the shop should reorder, with the signals that
// put it on the list.
type Suggestion struct {
	ProductID  string  `json:"product_id"`
	SKU        string  `json:"sku"`
	Name       string  `json:"name"`
	Total      int     `json:"total"`
	StockAlert int     `json:"stock_alert"`
	Shortage   int     `json:"shortage"`
	Severity   float64 `json:"severity"`
	ReasonCode string  `json:"reason_code"`
}

// Suggest ranks products whose total stock sits at or below their alert
// threshold. totals maps product ID to the sum of its allocations; products
// absent from the map count as zero stock.
func (a *Advisor) Suggest(products []domain.Product, totals map[string]int) []Suggestion {
	suggestions := make([]Suggestion, 0, 16)
	for _, p := range products {
		// Mirrors share the parent's physical stock and serialized units
		// are one-shot by nature; neither is restockable on its own.
		if p.IsMirror() || p.IsSerialized() {
			continue
		}
		if p.StockAlert <= 0 {
			continue
		}

		total := totals[p.ID]
		if total > p.StockAlert {
			continue
		}

		shortage := p.StockAlert - total
		shortageScore := clamp(float64(shortage)/float64(p.StockAlert), 0, 1)
		outScore := 0.0
		if total == 0 {
			outScore = 1.0
		}
		marginScore := clamp(p.MarginPercent/100.0, 0, 1)

		severity := 0.55*shortageScore + 0.30*outScore + 0.15*marginScore
		if severity < a.minSeverity {
			continue
		}

		suggestions = append(suggestions, Suggestion{
			ProductID:  p.ID,
			SKU:        p.SKU,
			Name:       p.Name,
			Total:      total,
			StockAlert: p.StockAlert,
			Shortage:   shortage,
			Severity:   round2(severity),
			ReasonCode: deriveReason(total, shortageScore, marginScore),
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Severity != suggestions[j].Severity {
			return suggestions[i].Severity > suggestions[j].Severity
		}
		return suggestions[i].SKU < suggestions[j].SKU
	})

	if len(suggestions) > a.maxResults {
		suggestions = suggestions[:a.maxResults]
	}
	return suggestions
}

func deriveReason(total int, shortageScore float64, marginScore float64) string {
	if total == 0 {
		return "out_of_stock"
	}
	if marginScore > shortageScore {
		return "high_margin_runner"
	}
	return "below_alert_threshold"
}

func clamp(val float64, minVal float64, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func round2(val float64) float64 {
	return math.Round(val*100) / 100
}
