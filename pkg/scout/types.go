package scout

import (
	"encoding/json"
	"strings"
)

// Result is a single scout response as returned by the backend.
type Result struct {
	ID             string       `json:"id"`
	RestaurantName string       `json:"restaurant_name"`
	MenuURL        string       `json:"menu_url,omitempty"`
	Timestamp      string       `json:"timestamp,omitempty"`
	Analysis       Analysis     `json:"analysis"`
	FinalReport    *FinalReport `json:"final_report,omitempty"`
}

// Name prefers the name the analysis settled on over the one that was typed.
func (r *Result) Name() string {
	if r == nil {
		return ""
	}
	if n := strings.TrimSpace(r.Analysis.RestaurantName); n != "" {
		return n
	}
	return r.RestaurantName
}

// Analysis is the initial verdict for a restaurant. Every field is optional.
type Analysis struct {
	RestaurantName     string           `json:"restaurant_name"`
	CuisineType        string           `json:"cuisine_type"`
	SafetyScore        float64          `json:"safety_score"`
	SafetyLabel        string           `json:"safety_label,omitempty"`
	ScoreLabel         string           `json:"score_label,omitempty"`
	Summary            string           `json:"summary"`
	ResearchSummary    string           `json:"research_summary,omitempty"`
	CommunitySentiment string           `json:"community_sentiment,omitempty"`
	ThisRestaurant     *ThisRestaurant  `json:"this_restaurant,omitempty"`
	MenuAnalysis       *MenuAnalysis    `json:"menu_analysis,omitempty"`
	CuisineContext     *CuisineContext  `json:"cuisine_context,omitempty"`
	CallScriptContext  string           `json:"call_script_context,omitempty"`
	CallScript         []CallScriptItem `json:"call_script,omitempty"`
}

// Label returns whichever score label the backend filled in.
func (a Analysis) Label() string {
	if a.SafetyLabel != "" {
		return a.SafetyLabel
	}
	return a.ScoreLabel
}

// Restaurant returns the restaurant-specific findings, never nil.
func (a Analysis) Restaurant() ThisRestaurant {
	if a.ThisRestaurant == nil {
		return ThisRestaurant{}
	}
	return *a.ThisRestaurant
}

// Menu returns the menu breakdown, never nil.
func (a Analysis) Menu() MenuAnalysis {
	if a.MenuAnalysis == nil {
		return MenuAnalysis{}
	}
	return *a.MenuAnalysis
}

// Cuisine returns the cuisine-wide context, never nil.
func (a Analysis) Cuisine() CuisineContext {
	if a.CuisineContext == nil {
		return CuisineContext{}
	}
	return *a.CuisineContext
}

type ThisRestaurant struct {
	SpecificPositives []string `json:"specific_positives,omitempty"`
	SpecificRisks     []string `json:"specific_risks,omitempty"`
	StaffKnowledge    string   `json:"staff_knowledge,omitempty"`
}

// Staff returns the staff knowledge level, UNKNOWN when absent.
func (t ThisRestaurant) Staff() string {
	if s := strings.TrimSpace(t.StaffKnowledge); s != "" {
		return strings.ToUpper(s)
	}
	return "UNKNOWN"
}

type MenuAnalysis struct {
	LikelySafe []MenuItem `json:"likely_safe,omitempty"`
	AskFirst   []MenuItem `json:"ask_first,omitempty"`
	RedFlags   []MenuItem `json:"red_flags,omitempty"`
}

type MenuItem struct {
	Item string `json:"item"`
	Note string `json:"note,omitempty"`
}

type CuisineContext struct {
	GeneralRisks     []string `json:"general_risks,omitempty"`
	GeneralPositives []string `json:"general_positives,omitempty"`
}

// Recommendation values used by the final report.
const (
	RecommendationGo      = "GO"
	RecommendationCaution = "CAUTION"
	RecommendationNoGo    = "NO-GO"
)

// FinalReport is the questionnaire-refined verdict.
type FinalReport struct {
	AdjustedScore        float64  `json:"adjusted_score"`
	AdjustedLabel        string   `json:"adjusted_label"`
	ScoreChange          float64  `json:"score_change"`
	Recommendation       string   `json:"recommendation"`
	RecommendationDetail string   `json:"recommendation_detail"`
	ScoreReasoning       string   `json:"score_reasoning,omitempty"`
	SafeToOrder          []string `json:"safe_to_order,omitempty"`
	ItemsToAvoid         []string `json:"items_to_avoid,omitempty"`
	DiningTips           []string `json:"dining_tips,omitempty"`
	FinalSummary         string   `json:"final_summary"`
}

// Alternative is a nearby restaurant suggested when the score is low.
type Alternative struct {
	Name                 string  `json:"name"`
	Cuisine              string  `json:"cuisine,omitempty"`
	LocationNote         string  `json:"location_note,omitempty"`
	EstimatedSafetyScore float64 `json:"estimated_safety_score"`
	BriefReason          string  `json:"brief_reason,omitempty"`
}

// SavedRestaurant is an entry of the user's saved list.
type SavedRestaurant struct {
	ID             string       `json:"id"`
	RestaurantName string       `json:"restaurant_name"`
	Location       string       `json:"location,omitempty"`
	Timestamp      string       `json:"timestamp,omitempty"`
	Analysis       Analysis     `json:"analysis"`
	FinalReport    *FinalReport `json:"final_report,omitempty"`
}

// Score is the final report score when there is one, the initial score otherwise.
func (s SavedRestaurant) Score() float64 {
	if s.FinalReport != nil {
		return s.FinalReport.AdjustedScore
	}
	return s.Analysis.SafetyScore
}

// Label verdicts for packaged-food scans.
const (
	VerdictSafe        = "SAFE"
	VerdictUnsafe      = "UNSAFE"
	VerdictInvestigate = "INVESTIGATE"
)

// ScanRecord is a packaged-food label scan.
type ScanRecord struct {
	ID          string        `json:"id"`
	Filename    string        `json:"filename"`
	ProductName string        `json:"product_name"`
	Verdict     string        `json:"verdict"`
	Confidence  string        `json:"confidence"`
	Summary     string        `json:"summary"`
	Timestamp   string        `json:"timestamp"`
	Analysis    LabelAnalysis `json:"analysis"`
}

type LabelAnalysis struct {
	ProductName        string   `json:"product_name"`
	Verdict            string   `json:"verdict"`
	Confidence         string   `json:"confidence"`
	Summary            string   `json:"summary"`
	IngredientsFound   []string `json:"ingredients_found,omitempty"`
	GlutenSources      []string `json:"gluten_sources,omitempty"`
	HiddenRisks        []string `json:"hidden_risks,omitempty"`
	CrossContamination []string `json:"cross_contamination,omitempty"`
	Certifications     []string `json:"certifications,omitempty"`
	DetailedReasoning  string   `json:"detailed_reasoning,omitempty"`
}

// UnmarshalJSON accepts both {"question": ..., "priority": ...} and a bare string,
// which older backends send and which counts as essential.
func (c *CallScriptItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = CallScriptItem{Question: s, Priority: PriorityEssential}
		return nil
	}
	type plain CallScriptItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = CallScriptItem(p)
	c.Priority = ParsePriority(string(c.Priority))
	return nil
}
