package session

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/glutenguard/glutenguard/pkg/scout"
)

// Phase is the wizard step a session is in.
type Phase int

const (
	PhaseSearch Phase = iota
	PhaseLoading
	PhaseResults
	PhaseQuestionnaire
	PhaseQuestionnaireLoading
	PhaseFinalReport
	PhaseLimitReached
)

func (p Phase) String() string {
	switch p {
	case PhaseSearch:
		return "search"
	case PhaseLoading:
		return "loading"
	case PhaseResults:
		return "results"
	case PhaseQuestionnaire:
		return "questionnaire"
	case PhaseQuestionnaireLoading:
		return "questionnaire-loading"
	case PhaseFinalReport:
		return "final-report"
	case PhaseLimitReached:
		return "limit-reached"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Query is the search form input.
type Query struct {
	RestaurantName string `validate:"required,max=200"`
	MenuURL        string `validate:"omitempty,http_url"`
	Location       string `validate:"max=200"`
}

func (q Query) normalize() Query {
	return Query{
		RestaurantName: strings.TrimSpace(q.RestaurantName),
		MenuURL:        strings.TrimSpace(q.MenuURL),
		Location:       strings.TrimSpace(q.Location),
	}
}

// ParseLaunchURL reads the name and location query parameters of a launch
// link such as https://glutenguard.app/scout?name=Example+Bistro&location=Philadelphia.
// A bare query string ("name=...&location=...") is accepted too.
func ParseLaunchURL(raw string) (Query, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Query{}, nil
	}
	var values url.Values
	if strings.Contains(raw, "://") || strings.HasPrefix(raw, "/") {
		u, err := url.Parse(raw)
		if err != nil {
			return Query{}, fmt.Errorf("invalid launch URL: %w", err)
		}
		values = u.Query()
	} else {
		v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
		if err != nil {
			return Query{}, fmt.Errorf("invalid launch query: %w", err)
		}
		values = v
	}
	return Query{
		RestaurantName: values.Get("name"),
		Location:       values.Get("location"),
	}.normalize(), nil
}

// SavedState is whether the current result is on the saved list.
type SavedState int

const (
	SavedUnknown SavedState = iota
	SavedYes
	SavedNo
)

func (s SavedState) String() string {
	switch s {
	case SavedYes:
		return "saved"
	case SavedNo:
		return "unsaved"
	}
	return "unknown"
}

// AlternativesState is the alternatives sub-state attached to Results.
type AlternativesState struct {
	Loading   bool
	Items     []scout.Alternative
	Exhausted bool
}

// Session is the client-visible state of one scouting session.
type Session struct {
	ID           string
	Phase        Phase
	Query        Query
	Result       *scout.Result
	Saved        SavedState
	Answers      map[string]scout.Answer
	CallScript   *scout.CallScript
	Alternatives AlternativesState
	Progress     string
	LastError    string
}

// AlternativesOffered reports whether safer alternatives may be requested:
// only on the results view, below the alternatives threshold, with a known location.
func (s *Session) AlternativesOffered() bool {
	return s.Phase == PhaseResults &&
		s.Result != nil &&
		s.Result.Analysis.SafetyScore < scout.AlternativesThreshold &&
		strings.TrimSpace(s.Query.Location) != ""
}

// Unanswered returns the questions that still lack an answer, in order.
func (s *Session) Unanswered() []scout.Question {
	var out []scout.Question
	for _, q := range scout.Questions {
		if s.Answers[q.ID] == scout.AnswerNone {
			out = append(out, q)
		}
	}
	return out
}

// Clone returns a copy that shares nothing mutable with s.
func (s *Session) Clone() Session {
	out := *s
	if s.Result != nil {
		r := *s.Result
		if s.Result.FinalReport != nil {
			fr := *s.Result.FinalReport
			r.FinalReport = &fr
		}
		out.Result = &r
	}
	if s.Answers != nil {
		out.Answers = make(map[string]scout.Answer, len(s.Answers))
		for k, v := range s.Answers {
			out.Answers[k] = v
		}
	}
	out.CallScript = s.CallScript.Clone()
	if s.Alternatives.Items != nil {
		out.Alternatives.Items = append([]scout.Alternative(nil), s.Alternatives.Items...)
	}
	return out
}

// clearResult drops everything that belongs to a result.
func (s *Session) clearResult() {
	s.Result = nil
	s.Saved = SavedUnknown
	s.Answers = nil
	s.CallScript = nil
	s.Alternatives = AlternativesState{}
	s.Progress = ""
}
