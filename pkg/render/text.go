package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/glutenguard/glutenguard/pkg/scout"
	"github.com/glutenguard/glutenguard/pkg/session"
)

// Printer writes views as plain terminal text.
type Printer struct {
	w       io.Writer
	heading *color.Color
	muted   *color.Color
	errc    *color.Color
	tiers   map[scout.Tier]*color.Color
}

// NewPrinter returns a printer writing to w. Colour follows fatih/color's
// terminal detection unless noColor is set.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	p := &Printer{
		w:       w,
		heading: color.New(color.Bold, color.FgCyan),
		muted:   color.New(color.Faint),
		errc:    color.New(color.FgRed, color.Bold),
		tiers: map[scout.Tier]*color.Color{
			scout.TierVeryLowRisk:  color.New(color.FgGreen, color.Bold),
			scout.TierLowRisk:      color.New(color.FgGreen),
			scout.TierModerateRisk: color.New(color.FgYellow),
			scout.TierHighRisk:     color.New(color.FgRed),
			scout.TierVeryHighRisk: color.New(color.FgRed, color.Bold),
		},
	}
	if noColor {
		for _, c := range p.all() {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) all() []*color.Color {
	out := []*color.Color{p.heading, p.muted, p.errc}
	for _, c := range p.tiers {
		out = append(out, c)
	}
	return out
}

// Print writes v.
func (p *Printer) Print(v View) {
	if v.Error != "" {
		p.errc.Fprintf(p.w, "Error: %s\n", v.Error)
	}
	switch {
	case v.Search != nil:
		p.printSearch(v.Search)
	case v.Loading != nil:
		fmt.Fprintln(p.w, v.Loading.Message)
		if v.Loading.Step != "" {
			p.muted.Fprintf(p.w, "  %s...\n", v.Loading.Step)
		}
	case v.Results != nil:
		p.printResults(v.Results)
	case v.Questionnaire != nil:
		p.printQuestionnaire(v.Questionnaire)
	case v.FinalReport != nil:
		p.printFinalReport(v.FinalReport)
	case v.LimitReached != nil:
		p.errc.Fprintln(p.w, v.LimitReached.Message)
	}
}

// Score writes a coloured "8/10 Low Risk".
func (p *Printer) Score(s ScoreView) string {
	return p.tiers[s.Tier].Sprintf("%s %s", s.Text, s.Label)
}

func (p *Printer) printSearch(s *SearchView) {
	p.heading.Fprintln(p.w, "Scout a restaurant")
	p.field("Name", s.RestaurantName)
	p.field("Menu URL", s.MenuURL)
	p.field("Location", s.Location)
}

func (p *Printer) printResults(r *ResultsView) {
	title := r.Restaurant
	if r.Cuisine != "" {
		title += " (" + r.Cuisine + ")"
	}
	p.heading.Fprintln(p.w, title)
	if r.Location != "" {
		p.muted.Fprintln(p.w, r.Location)
	}
	fmt.Fprintf(p.w, "Safety score: %s\n", p.Score(r.Score))
	if r.MenuSource != "" {
		p.muted.Fprintf(p.w, "Menu from %s\n", r.MenuSource)
	}
	fmt.Fprintf(p.w, "Saved: %s\n\n", r.Saved)

	fmt.Fprintln(p.w, r.Summary)
	p.section("Research")
	fmt.Fprintln(p.w, r.ResearchSummary)
	p.section("Community")
	fmt.Fprintln(p.w, r.CommunitySentiment)

	p.section("This restaurant")
	p.field("Staff knowledge", r.StaffKnowledge)
	p.list("Positives", r.Positives)
	p.list("Risks", r.Risks)

	p.section("Menu")
	p.menu("Likely safe", r.LikelySafe)
	p.menu("Ask first", r.AskFirst)
	p.menu("Red flags", r.RedFlags)

	if len(r.GeneralRisks)+len(r.GeneralPositives) > 0 {
		p.section("Cuisine context")
		p.list("General risks", r.GeneralRisks)
		p.list("General positives", r.GeneralPositives)
	}

	p.section(fmt.Sprintf("Call script (%s)", r.Preset))
	fmt.Fprintln(p.w, r.CallScriptContext)
	for _, e := range r.CallScript {
		box := "[ ]"
		if e.Checked {
			box = "[x]"
		}
		fmt.Fprintf(p.w, "  %2d. %s %s", e.Number, box, e.Question)
		if e.Priority == scout.PriorityAdditional {
			p.muted.Fprint(p.w, " (additional)")
		}
		fmt.Fprintln(p.w)
	}
	if r.HiddenCount > 0 {
		p.muted.Fprintf(p.w, "  %d additional question(s) hidden, use show-all\n", r.HiddenCount)
	}

	alts := r.Alternatives
	switch {
	case alts.Loading:
		p.section("Safer alternatives")
		fmt.Fprintln(p.w, "Searching nearby...")
	case len(alts.Items) > 0:
		p.section("Safer alternatives")
		for _, a := range alts.Items {
			fmt.Fprintf(p.w, "  %d. %s  %s", a.Number, a.Name, p.Score(a.Score))
			if a.Cuisine != "" {
				p.muted.Fprintf(p.w, "  %s", a.Cuisine)
			}
			fmt.Fprintln(p.w)
			if a.LocationNote != "" {
				p.muted.Fprintf(p.w, "     %s\n", a.LocationNote)
			}
			if a.Reason != "" {
				fmt.Fprintf(p.w, "     %s\n", a.Reason)
			}
		}
	case alts.Exhausted:
		p.section("Safer alternatives")
		fmt.Fprintln(p.w, "No safer alternatives found nearby.")
	case alts.Offered:
		p.muted.Fprintln(p.w, "\nScore is low: use 'alternatives' to look for safer places nearby.")
	}
}

func (p *Printer) printQuestionnaire(q *QuestionnaireView) {
	p.heading.Fprintf(p.w, "After your call to %s\n", q.Restaurant)
	for _, qq := range q.Questions {
		answer := string(qq.Answer)
		if answer == "" {
			answer = "-"
		}
		fmt.Fprintf(p.w, "  %d. %s [%s]\n", qq.Number, qq.Text, answer)
	}
	p.muted.Fprintf(p.w, "%d of %d answered\n", q.Answered, len(q.Questions))
}

func (p *Printer) printFinalReport(f *FinalReportView) {
	p.heading.Fprintf(p.w, "Final report: %s\n", f.Restaurant)
	fmt.Fprintf(p.w, "Adjusted score: %s (%s)\n", p.Score(f.Score), f.ScoreChange)
	fmt.Fprintf(p.w, "Recommendation: %s\n", p.recommendation(f.Recommendation))
	if f.RecommendationDetail != "" {
		fmt.Fprintln(p.w, f.RecommendationDetail)
	}
	if f.ScoreReasoning != "" {
		p.section("Why")
		fmt.Fprintln(p.w, f.ScoreReasoning)
	}
	p.list("Safe to order", f.SafeToOrder)
	p.list("Avoid", f.ItemsToAvoid)
	p.list("Dining tips", f.DiningTips)
	p.section("Summary")
	fmt.Fprintln(p.w, f.FinalSummary)
	fmt.Fprintf(p.w, "Saved: %s\n", f.Saved)
}

func (p *Printer) recommendation(r string) string {
	switch r {
	case scout.RecommendationGo:
		return p.tiers[scout.TierVeryLowRisk].Sprint(r)
	case scout.RecommendationNoGo:
		return p.tiers[scout.TierVeryHighRisk].Sprint(r)
	}
	return p.tiers[scout.TierModerateRisk].Sprint(r)
}

func (p *Printer) section(title string) {
	fmt.Fprintln(p.w)
	p.heading.Fprintln(p.w, title)
}

func (p *Printer) field(name, value string) {
	if value == "" {
		value = p.muted.Sprint("-")
	}
	fmt.Fprintf(p.w, "%s: %s\n", name, value)
}

func (p *Printer) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(p.w, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(p.w, "  - %s\n", it)
	}
}

func (p *Printer) menu(title string, items []MenuItemView) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(p.w, "%s:\n", title)
	for _, it := range items {
		if it.Note != "" {
			fmt.Fprintf(p.w, "  - %s: %s\n", it.Item, strings.TrimSpace(it.Note))
		} else {
			fmt.Fprintf(p.w, "  - %s\n", it.Item)
		}
	}
}

// PhaseHint lists the commands that make sense in phase.
func PhaseHint(phase session.Phase) string {
	switch phase {
	case session.PhaseSearch:
		return "search <name> [--location L] [--menu-url U], quit"
	case session.PhaseResults:
		return "questionnaire, save, share, preset quick|thorough, toggle N, show-all, alternatives, scout-alt N, new, reset"
	case session.PhaseQuestionnaire:
		return "answer N yes|no|unsure, submit, back, reset"
	case session.PhaseFinalReport:
		return "save, share, new, reset"
	case session.PhaseLimitReached:
		return "reset, quit"
	}
	return "reset"
}

// PrintScan writes a packaged-food label verdict.
func (p *Printer) PrintScan(r scout.ScanRecord) {
	a := r.Analysis
	name := firstNonEmpty(r.ProductName, a.ProductName, "Unnamed product")
	verdict := firstNonEmpty(r.Verdict, a.Verdict)
	p.heading.Fprintln(p.w, name)
	fmt.Fprintf(p.w, "Verdict: %s", p.verdict(verdict))
	if c := firstNonEmpty(r.Confidence, a.Confidence); c != "" {
		p.muted.Fprintf(p.w, " (%s confidence)", strings.ToLower(c))
	}
	fmt.Fprintln(p.w)
	if s := firstNonEmpty(a.Summary, r.Summary); s != "" {
		fmt.Fprintln(p.w, s)
	}
	p.list("Gluten sources", capStrings(a.GlutenSources, scout.MaxListItems))
	p.list("Hidden risks", capStrings(a.HiddenRisks, scout.MaxListItems))
	p.list("Cross-contamination", capStrings(a.CrossContamination, scout.MaxListItems))
	p.list("Certifications", capStrings(a.Certifications, scout.MaxListItems))
	if len(a.IngredientsFound) > 0 {
		fmt.Fprintf(p.w, "Ingredients: %s\n", strings.Join(capStrings(a.IngredientsFound, scout.MaxIngredients), ", "))
	}
	if a.DetailedReasoning != "" {
		p.section("Reasoning")
		fmt.Fprintln(p.w, a.DetailedReasoning)
	}
}

// PrintSaved writes the saved-restaurant list with each entry's best score.
func (p *Printer) PrintSaved(items []scout.SavedRestaurant) {
	if len(items) == 0 {
		fmt.Fprintln(p.w, "No saved restaurants.")
		return
	}
	for i, it := range items {
		a := it.Analysis
		label := a.Label()
		if it.FinalReport != nil {
			label = it.FinalReport.AdjustedLabel
		}
		fmt.Fprintf(p.w, "%d. %s  %s", i+1, firstNonEmpty(a.RestaurantName, it.RestaurantName), p.Score(Score(it.Score(), label)))
		if it.Location != "" {
			p.muted.Fprintf(p.w, "  %s", it.Location)
		}
		fmt.Fprintln(p.w)
	}
}

func (p *Printer) verdict(v string) string {
	switch strings.ToUpper(v) {
	case scout.VerdictSafe:
		return p.tiers[scout.TierVeryLowRisk].Sprint(v)
	case scout.VerdictUnsafe:
		return p.tiers[scout.TierVeryHighRisk].Sprint(v)
	case "":
		return p.muted.Sprint("unknown")
	}
	return p.tiers[scout.TierModerateRisk].Sprint(v)
}
