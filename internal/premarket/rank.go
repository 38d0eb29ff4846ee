package premarket

import (
	"sort"

	"tritrend/internal/model"
)

// Aggregate runs the signal funnel over the merged per-strategy lists:
// drop signals below minStrength, keep the topK strongest per symbol to
// bound order fan-out, then sort globally by descending strength.
// Ordering is stable so equal-strength signals keep their evaluation
// order. The input is not mutated.
func Aggregate(signals []model.Signal, minStrength float64, topK int) []model.Signal {
	if topK <= 0 {
		topK = 2
	}

	kept := make([]model.Signal, 0, len(signals))
	for _, s := range signals {
		if s.Strength >= minStrength {
			kept = append(kept, s)
		}
	}

	// Per-symbol cap. Sort a copy per symbol, preserving arrival order
	// among equals.
	bySymbol := make(map[string][]model.Signal)
	var symbols []string
	for _, s := range kept {
		if _, seen := bySymbol[s.Symbol]; !seen {
			symbols = append(symbols, s.Symbol)
		}
		bySymbol[s.Symbol] = append(bySymbol[s.Symbol], s)
	}

	out := make([]model.Signal, 0, len(kept))
	for _, sym := range symbols {
		group := bySymbol[sym]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Strength > group[j].Strength
		})
		if len(group) > topK {
			group = group[:topK]
		}
		out = append(out, group...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Strength > out[j].Strength
	})
	return out
}
