package scout

import (
	"fmt"
	"strconv"
	"strings"
)

// ShareText builds the one-paragraph summary used when sharing a result.
// With final set and a final report present, the report is summarised instead
// of the initial analysis.
func ShareText(r *Result, final bool) string {
	if r == nil {
		return ""
	}
	a := r.Analysis
	var b strings.Builder
	fmt.Fprintf(&b, "GlutenGuard Report: %s", r.Name())
	if a.CuisineType != "" {
		fmt.Fprintf(&b, " (%s)", a.CuisineType)
	}

	if final && r.FinalReport != nil {
		f := r.FinalReport
		fmt.Fprintf(&b, " - Safety Score: %s/10 %s.", FormatScore(f.AdjustedScore), f.AdjustedLabel)
		fmt.Fprintf(&b, " %s: %s", f.Recommendation, f.RecommendationDetail)
		if len(f.SafeToOrder) > 0 {
			fmt.Fprintf(&b, " Safe to order: %s.", strings.Join(f.SafeToOrder, ", "))
		}
		if len(f.ItemsToAvoid) > 0 {
			fmt.Fprintf(&b, " Avoid: %s.", strings.Join(f.ItemsToAvoid, ", "))
		}
		return b.String()
	}

	fmt.Fprintf(&b, " - Safety Score: %s/10 %s.", FormatScore(a.SafetyScore), a.Label())
	if a.Summary != "" {
		fmt.Fprintf(&b, " %s", a.Summary)
	}
	menu := a.Menu()
	if len(menu.LikelySafe) > 0 {
		fmt.Fprintf(&b, " Menu highlights: %s.", joinItems(menu.LikelySafe))
	}
	if len(menu.AskFirst) > 0 {
		fmt.Fprintf(&b, " Ask about: %s.", joinItems(menu.AskFirst))
	}
	if len(menu.RedFlags) > 0 {
		fmt.Fprintf(&b, " Avoid: %s.", joinItems(menu.RedFlags))
	}
	return b.String()
}

func joinItems(items []MenuItem) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Item)
	}
	return strings.Join(names, ", ")
}

// FormatScore prints whole scores without a decimal point.
func FormatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// FormatScoreChange renders the delta between initial and adjusted score.
func FormatScoreChange(change float64) string {
	switch {
	case change > 0:
		return "+" + FormatScore(change) + " from initial score"
	case change < 0:
		return FormatScore(change) + " from initial score"
	default:
		return "No change from initial score"
	}
}
