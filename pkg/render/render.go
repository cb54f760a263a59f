// Package render turns a scout session into a view description. Render is a
// pure function of the session; printing is done separately.
package render

import (
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/glutenguard/glutenguard/pkg/scout"
	"github.com/glutenguard/glutenguard/pkg/session"
)

// Placeholders for textual sections the backend left out.
const (
	NoSummary            = "No summary available."
	NoResearchSummary    = "No research summary available."
	NoCommunitySentiment = "No community reviews found."
	NoCallScriptContext  = "Call ahead and ask these questions before you go."
	NoFinalSummary       = "No final summary available."
)

type View struct {
	Phase session.Phase
	Error string

	Search        *SearchView
	Loading       *LoadingView
	Results       *ResultsView
	Questionnaire *QuestionnaireView
	FinalReport   *FinalReportView
	LimitReached  *LimitReachedView
}

type SearchView struct {
	RestaurantName string
	MenuURL        string
	Location       string
}

type LoadingView struct {
	Message string
	Step    string
}

type ScoreView struct {
	Value float64
	Text  string // "8/10"
	Label string
	Tier  scout.Tier
}

type MenuItemView struct {
	Item string
	Note string
}

type ScriptEntryView struct {
	Number   int
	Question string
	Priority scout.Priority
	Checked  bool
}

type AlternativeView struct {
	Number       int
	Name         string
	Cuisine      string
	LocationNote string
	Score        ScoreView
	Reason       string
}

type AlternativesView struct {
	Offered   bool
	Loading   bool
	Exhausted bool
	Items     []AlternativeView
}

type ResultsView struct {
	Restaurant string
	Cuisine    string
	Location   string
	MenuSource string
	Score      ScoreView

	Summary            string
	ResearchSummary    string
	CommunitySentiment string
	StaffKnowledge     string
	Positives          []string
	Risks              []string

	LikelySafe []MenuItemView
	AskFirst   []MenuItemView
	RedFlags   []MenuItemView

	GeneralRisks     []string
	GeneralPositives []string

	CallScriptContext string
	CallScript        []ScriptEntryView
	HiddenCount       int
	ShowAllToggle     bool
	ShowingAll        bool
	Preset            scout.Preset

	Saved        session.SavedState
	Alternatives AlternativesView
}

type QuestionView struct {
	Number int
	ID     string
	Text   string
	Answer scout.Answer
}

type QuestionnaireView struct {
	Restaurant string
	Questions  []QuestionView
	Answered   int
	CanSubmit  bool
}

type FinalReportView struct {
	Restaurant           string
	Score                ScoreView
	ScoreChange          string
	Recommendation       string
	RecommendationDetail string
	ScoreReasoning       string
	SafeToOrder          []string
	ItemsToAvoid         []string
	DiningTips           []string
	FinalSummary         string
	Saved                session.SavedState
}

type LimitReachedView struct {
	Message string
}

// Render describes s. It never fails: absent fields become empty lists or
// placeholder text.
func Render(s session.Session) View {
	v := View{Phase: s.Phase, Error: s.LastError}

	switch s.Phase {
	case session.PhaseSearch:
		v.Search = &SearchView{
			RestaurantName: s.Query.RestaurantName,
			MenuURL:        s.Query.MenuURL,
			Location:       s.Query.Location,
		}
	case session.PhaseLoading:
		v.Loading = &LoadingView{Message: "Scouting " + s.Query.RestaurantName + "...", Step: s.Progress}
	case session.PhaseQuestionnaireLoading:
		v.Loading = &LoadingView{Message: "Analyzing your answers...", Step: s.Progress}
	case session.PhaseResults:
		if s.Result != nil {
			v.Results = renderResults(&s)
		}
	case session.PhaseQuestionnaire:
		v.Questionnaire = renderQuestionnaire(&s)
	case session.PhaseFinalReport:
		if s.Result != nil && s.Result.FinalReport != nil {
			v.FinalReport = renderFinalReport(&s)
		}
	case session.PhaseLimitReached:
		v.LimitReached = &LimitReachedView{
			Message: "You've reached the free scouting limit. Try again later.",
		}
	}
	return v
}

// Score builds the score view for a 0-10 score.
func Score(score float64, label string) ScoreView {
	tier := scout.TierForScore(score)
	if strings.TrimSpace(label) == "" {
		label = tier.Title()
	}
	return ScoreView{
		Value: score,
		Text:  scout.FormatScore(score) + "/10",
		Label: label,
		Tier:  tier,
	}
}

func renderResults(s *session.Session) *ResultsView {
	r := s.Result
	a := r.Analysis
	here := a.Restaurant()
	menu := a.Menu()
	cuisine := a.Cuisine()

	v := &ResultsView{
		Restaurant: r.Name(),
		Cuisine:    a.CuisineType,
		Location:   s.Query.Location,
		MenuSource: MenuSource(firstNonEmpty(r.MenuURL, s.Query.MenuURL)),
		Score:      Score(a.SafetyScore, a.Label()),

		Summary:            orPlaceholder(a.Summary, NoSummary),
		ResearchSummary:    orPlaceholder(a.ResearchSummary, NoResearchSummary),
		CommunitySentiment: orPlaceholder(a.CommunitySentiment, NoCommunitySentiment),
		StaffKnowledge:     here.Staff(),
		Positives:          capStrings(here.SpecificPositives, scout.MaxListItems),
		Risks:              capStrings(here.SpecificRisks, scout.MaxListItems),

		LikelySafe: menuItems(menu.LikelySafe),
		AskFirst:   menuItems(menu.AskFirst),
		RedFlags:   menuItems(menu.RedFlags),

		GeneralRisks:     capStrings(cuisine.GeneralRisks, scout.MaxListItems),
		GeneralPositives: capStrings(cuisine.GeneralPositives, scout.MaxListItems),

		CallScriptContext: orPlaceholder(a.CallScriptContext, NoCallScriptContext),
		Saved:             s.Saved,
		Alternatives: AlternativesView{
			Offered:   s.AlternativesOffered(),
			Loading:   s.Alternatives.Loading,
			Exhausted: s.Alternatives.Exhausted,
		},
	}

	if cs := s.CallScript; cs != nil {
		v.Preset = cs.Preset
		v.ShowingAll = cs.ShowAdditional
		v.ShowAllToggle = cs.HasAdditional()
		for i, it := range cs.Items {
			if !cs.Visible(i) {
				v.HiddenCount++
				continue
			}
			v.CallScript = append(v.CallScript, ScriptEntryView{
				Number:   i + 1,
				Question: it.Question,
				Priority: it.Priority,
				Checked:  cs.Checked[i],
			})
		}
	}

	for i, alt := range scout.Cap(s.Alternatives.Items, scout.MaxAlternatives) {
		v.Alternatives.Items = append(v.Alternatives.Items, AlternativeView{
			Number:       i + 1,
			Name:         alt.Name,
			Cuisine:      alt.Cuisine,
			LocationNote: alt.LocationNote,
			Score:        Score(alt.EstimatedSafetyScore, ""),
			Reason:       alt.BriefReason,
		})
	}
	return v
}

func renderQuestionnaire(s *session.Session) *QuestionnaireView {
	v := &QuestionnaireView{}
	if s.Result != nil {
		v.Restaurant = s.Result.Name()
	}
	for i, q := range scout.Questions {
		a := s.Answers[q.ID]
		if a != scout.AnswerNone {
			v.Answered++
		}
		v.Questions = append(v.Questions, QuestionView{Number: i + 1, ID: q.ID, Text: q.Text, Answer: a})
	}
	v.CanSubmit = v.Answered == len(scout.Questions)
	return v
}

func renderFinalReport(s *session.Session) *FinalReportView {
	fr := s.Result.FinalReport
	return &FinalReportView{
		Restaurant:           s.Result.Name(),
		Score:                Score(fr.AdjustedScore, fr.AdjustedLabel),
		ScoreChange:          scout.FormatScoreChange(fr.ScoreChange),
		Recommendation:       recommendation(fr.Recommendation),
		RecommendationDetail: fr.RecommendationDetail,
		ScoreReasoning:       fr.ScoreReasoning,
		SafeToOrder:          capStrings(fr.SafeToOrder, scout.MaxListItems),
		ItemsToAvoid:         capStrings(fr.ItemsToAvoid, scout.MaxListItems),
		DiningTips:           capStrings(fr.DiningTips, scout.MaxListItems),
		FinalSummary:         orPlaceholder(fr.FinalSummary, NoFinalSummary),
		Saved:                s.Saved,
	}
}

// MenuSource labels a menu link by its registrable domain
// ("https://order.example.co.uk/menu" -> "example.co.uk").
func MenuSource(menuURL string) string {
	menuURL = strings.TrimSpace(menuURL)
	if menuURL == "" {
		return ""
	}
	u, err := url.Parse(menuURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if !strings.Contains(host, ".") {
		return host
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return host
	}
	return domain
}

func recommendation(r string) string {
	switch strings.ToUpper(strings.TrimSpace(r)) {
	case scout.RecommendationGo:
		return scout.RecommendationGo
	case scout.RecommendationNoGo, "NO_GO", "NOGO":
		return scout.RecommendationNoGo
	case "":
		return scout.RecommendationCaution
	}
	return strings.ToUpper(strings.TrimSpace(r))
}

func menuItems(items []scout.MenuItem) []MenuItemView {
	var out []MenuItemView
	for _, it := range scout.Cap(items, scout.MaxMenuItems) {
		if strings.TrimSpace(it.Item) == "" {
			continue
		}
		out = append(out, MenuItemView{Item: it.Item, Note: it.Note})
	}
	return out
}

func capStrings(items []string, n int) []string {
	var out []string
	for _, it := range scout.Cap(items, n) {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func orPlaceholder(s, placeholder string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return placeholder
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
