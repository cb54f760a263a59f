package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glutenguard/glutenguard/pkg/api"
	"github.com/glutenguard/glutenguard/pkg/scout"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	scout         func(api.ScoutRequest) (*scout.Result, error)
	questionnaire func(api.QuestionnaireRequest) (*scout.FinalReport, error)
	save          func(api.RestaurantRef) error
	unsave        func(api.RestaurantRef) error
	checkSaved    func(api.RestaurantRef) (bool, error)
	alternatives  func(api.AlternativesRequest) ([]scout.Alternative, error)
}

func (f *fakeBackend) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) Scout(_ context.Context, req api.ScoutRequest) (*scout.Result, error) {
	f.hit("scout")
	if f.scout == nil {
		return nil, errors.New("scout not stubbed")
	}
	return f.scout(req)
}

func (f *fakeBackend) SubmitQuestionnaire(_ context.Context, req api.QuestionnaireRequest) (*scout.FinalReport, error) {
	f.hit("questionnaire")
	if f.questionnaire == nil {
		return nil, errors.New("questionnaire not stubbed")
	}
	return f.questionnaire(req)
}

func (f *fakeBackend) Save(_ context.Context, ref api.RestaurantRef) error {
	f.hit("save")
	if f.save == nil {
		return nil
	}
	return f.save(ref)
}

func (f *fakeBackend) Unsave(_ context.Context, ref api.RestaurantRef) error {
	f.hit("unsave")
	if f.unsave == nil {
		return nil
	}
	return f.unsave(ref)
}

func (f *fakeBackend) CheckSaved(_ context.Context, ref api.RestaurantRef) (bool, error) {
	f.hit("check-saved")
	if f.checkSaved == nil {
		return false, nil
	}
	return f.checkSaved(ref)
}

func (f *fakeBackend) Alternatives(_ context.Context, req api.AlternativesRequest) ([]scout.Alternative, error) {
	f.hit("alternatives")
	if f.alternatives == nil {
		return nil, nil
	}
	return f.alternatives(req)
}

type memPrefs struct {
	mu       sync.Mutex
	location string
	script   *scout.ScriptPreferences
}

func (m *memPrefs) LastLocation(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.location, nil
}

func (m *memPrefs) SetLastLocation(_ context.Context, loc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.location = loc
	return nil
}

func (m *memPrefs) ScriptPreferences(context.Context) (*scout.ScriptPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.script, nil
}

func (m *memPrefs) SaveScriptPreferences(_ context.Context, p scout.ScriptPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = &p
	return nil
}

func resultWithScore(name string, score float64) *scout.Result {
	return &scout.Result{
		ID:             "scout-1",
		RestaurantName: name,
		Analysis: scout.Analysis{
			CuisineType: "Italian",
			SafetyScore: score,
			CallScript: []scout.CallScriptItem{
				{Question: "Do you have a dedicated fryer?", Priority: scout.PriorityEssential},
				{Question: "Is the pasta water shared?", Priority: scout.PriorityAdditional},
			},
		},
	}
}

func scoutReturning(res *scout.Result) func(api.ScoutRequest) (*scout.Result, error) {
	return func(api.ScoutRequest) (*scout.Result, error) { return res, nil }
}

func newTestController(b *fakeBackend, prefs PreferenceStore) *Controller {
	return New(b, prefs, Options{ID: "test-session", ProgressInterval: time.Hour})
}

func mustResults(t *testing.T, c *Controller, q Query) {
	t.Helper()
	if err := c.SubmitSearch(context.Background(), q); err != nil {
		t.Fatalf("SubmitSearch: %v", err)
	}
	if p := c.Phase(); p != PhaseResults {
		t.Fatalf("expected results, got %s", p)
	}
}

func answerAll(t *testing.T, c *Controller, a scout.Answer) {
	t.Helper()
	for _, q := range scout.Questions {
		if err := c.AnswerQuestion(q.ID, a); err != nil {
			t.Fatalf("AnswerQuestion(%s): %v", q.ID, err)
		}
	}
}

func TestSubmitSearchEmptyNameMakesNoCall(t *testing.T) {
	b := &fakeBackend{scout: scoutReturning(resultWithScore("x", 8))}
	c := newTestController(b, nil)

	for _, name := range []string{"", "   ", "\t"} {
		err := c.SubmitSearch(context.Background(), Query{RestaurantName: name, Location: "Philadelphia"})
		if !errors.Is(err, ErrEmptyName) {
			t.Fatalf("name %q: expected ErrEmptyName, got %v", name, err)
		}
	}
	if n := b.count("scout"); n != 0 {
		t.Fatalf("expected no scout calls, got %d", n)
	}
	if p := c.Phase(); p != PhaseSearch {
		t.Fatalf("phase changed to %s", p)
	}
}

func TestSubmitSearchRejectsBadMenuURL(t *testing.T) {
	b := &fakeBackend{scout: scoutReturning(resultWithScore("x", 8))}
	c := newTestController(b, nil)

	for _, u := range []string{"not a url", "ftp://menus.example.com/a.pdf", "example.com/menu"} {
		if err := c.SubmitSearch(context.Background(), Query{RestaurantName: "Example Bistro", MenuURL: u}); err == nil {
			t.Fatalf("menu URL %q accepted", u)
		}
	}
	if b.count("scout") != 0 || c.Phase() != PhaseSearch {
		t.Fatalf("invalid menu URL must not issue a call or change phase")
	}

	if err := c.SubmitSearch(context.Background(), Query{RestaurantName: "Example Bistro", MenuURL: "https://example.com/menu"}); err != nil {
		t.Fatalf("valid menu URL rejected: %v", err)
	}
}

func TestSubmitSearchSuccess(t *testing.T) {
	var got api.ScoutRequest
	b := &fakeBackend{
		scout: func(req api.ScoutRequest) (*scout.Result, error) {
			got = req
			return &scout.Result{RestaurantName: "Example Bistro", Analysis: scout.Analysis{SafetyScore: 8}}, nil
		},
		checkSaved: func(api.RestaurantRef) (bool, error) { return true, nil },
	}
	prefs := &memPrefs{}
	c := newTestController(b, prefs)

	mustResults(t, c, Query{RestaurantName: " Example Bistro ", Location: "Philadelphia"})

	want := api.ScoutRequest{RestaurantName: "Example Bistro", Location: "Philadelphia"}
	if got != want {
		t.Fatalf("request = %+v, want %+v", got, want)
	}
	s := c.Snapshot()
	if s.Result == nil || s.Result.RestaurantName != "Example Bistro" {
		t.Fatalf("result not stored: %+v", s.Result)
	}
	if tier := scout.TierForScore(s.Result.Analysis.SafetyScore); tier != scout.TierLowRisk {
		t.Fatalf("tier = %s, want low-risk", tier)
	}
	if s.Saved != SavedYes {
		t.Fatalf("saved = %s, want saved", s.Saved)
	}
	if prefs.location != "Philadelphia" {
		t.Fatalf("last location not persisted: %q", prefs.location)
	}
	if s.LastError != "" || s.Progress != "" {
		t.Fatalf("unexpected leftovers: %+v", s)
	}
}

func TestSubmitSearchFailureReturnsToSearch(t *testing.T) {
	b := &fakeBackend{scout: func(api.ScoutRequest) (*scout.Result, error) {
		return nil, &api.Error{StatusCode: 500, Message: "Analysis failed"}
	}}
	c := newTestController(b, nil)

	err := c.SubmitSearch(context.Background(), Query{RestaurantName: "Example Bistro"})
	if err == nil {
		t.Fatal("expected error")
	}
	s := c.Snapshot()
	if s.Phase != PhaseSearch || s.Result != nil || s.CallScript != nil {
		t.Fatalf("partial state left behind: %+v", s)
	}
	if s.LastError != "Analysis failed" {
		t.Fatalf("LastError = %q", s.LastError)
	}
	c.DismissError()
	if c.Snapshot().LastError != "" {
		t.Fatal("error not dismissed")
	}
}

func TestLimitReachedFromAnyCall(t *testing.T) {
	limit := func() error { return api.ErrLimitReached }

	assertLimited := func(t *testing.T, c *Controller) {
		t.Helper()
		s := c.Snapshot()
		if s.Phase != PhaseLimitReached {
			t.Fatalf("phase = %s", s.Phase)
		}
		if s.Result != nil || s.Answers != nil || s.CallScript != nil || !reflect.DeepEqual(s.Alternatives, AlternativesState{}) {
			t.Fatalf("result state left behind: %+v", s)
		}
		if s.Saved != SavedUnknown {
			t.Fatalf("saved = %s", s.Saved)
		}
	}

	t.Run("search", func(t *testing.T) {
		b := &fakeBackend{scout: func(api.ScoutRequest) (*scout.Result, error) { return nil, limit() }}
		c := newTestController(b, nil)
		err := c.SubmitSearch(context.Background(), Query{RestaurantName: "Example Bistro"})
		if !errors.Is(err, api.ErrLimitReached) {
			t.Fatalf("err=%v", err)
		}
		assertLimited(t, c)
	})

	t.Run("questionnaire", func(t *testing.T) {
		b := &fakeBackend{
			scout:         scoutReturning(resultWithScore("Example Bistro", 8)),
			questionnaire: func(api.QuestionnaireRequest) (*scout.FinalReport, error) { return nil, limit() },
		}
		c := newTestController(b, nil)
		mustResults(t, c, Query{RestaurantName: "Example Bistro"})
		c.StartQuestionnaire()
		answerAll(t, c, scout.AnswerYes)
		c.SubmitQuestionnaire(context.Background())
		assertLimited(t, c)
	})

	t.Run("alternatives", func(t *testing.T) {
		b := &fakeBackend{
			scout:        scoutReturning(resultWithScore("Pasta Co", 4)),
			alternatives: func(api.AlternativesRequest) ([]scout.Alternative, error) { return nil, limit() },
		}
		c := newTestController(b, nil)
		mustResults(t, c, Query{RestaurantName: "Pasta Co", Location: "Philadelphia"})
		c.RequestAlternatives(context.Background())
		assertLimited(t, c)
	})

	t.Run("save", func(t *testing.T) {
		b := &fakeBackend{
			scout: scoutReturning(resultWithScore("Example Bistro", 8)),
			save:  func(api.RestaurantRef) error { return limit() },
		}
		c := newTestController(b, nil)
		mustResults(t, c, Query{RestaurantName: "Example Bistro"})
		if err := c.ToggleSaved(context.Background()); !errors.Is(err, api.ErrLimitReached) {
			t.Fatalf("err=%v", err)
		}
		assertLimited(t, c)
	})
}

func TestSubmitQuestionnaireRequiresAllAnswers(t *testing.T) {
	answers := []scout.Answer{scout.AnswerYes, scout.AnswerNo, scout.AnswerUnsure}

	for skip := range scout.Questions {
		b := &fakeBackend{scout: scoutReturning(resultWithScore("Example Bistro", 8))}
		c := newTestController(b, nil)
		mustResults(t, c, Query{RestaurantName: "Example Bistro"})
		if err := c.StartQuestionnaire(); err != nil {
			t.Fatal(err)
		}
		for i, q := range scout.Questions {
			if i == skip {
				continue
			}
			c.AnswerQuestion(q.ID, answers[i%len(answers)])
		}
		err := c.SubmitQuestionnaire(context.Background())
		if !errors.Is(err, ErrIncompleteQuestionnaire) {
			t.Fatalf("skip %d: expected ErrIncompleteQuestionnaire, got %v", skip, err)
		}
		if b.count("questionnaire") != 0 || c.Phase() != PhaseQuestionnaire {
			t.Fatalf("skip %d: call issued or phase changed (%s)", skip, c.Phase())
		}
	}
}

func TestSubmitQuestionnaireAcceptsAnyCompleteAnswers(t *testing.T) {
	answers := []scout.Answer{scout.AnswerYes, scout.AnswerNo, scout.AnswerUnsure}

	for offset := range answers {
		var got api.QuestionnaireRequest
		b := &fakeBackend{
			scout: scoutReturning(resultWithScore("Example Bistro", 6)),
			questionnaire: func(req api.QuestionnaireRequest) (*scout.FinalReport, error) {
				got = req
				return &scout.FinalReport{AdjustedScore: 8, ScoreChange: 2, Recommendation: scout.RecommendationGo}, nil
			},
		}
		c := newTestController(b, nil)
		mustResults(t, c, Query{RestaurantName: "Example Bistro"})
		c.StartQuestionnaire()
		for i, q := range scout.Questions {
			// overwrite once to check idempotent replacement
			c.AnswerQuestion(q.ID, scout.AnswerUnsure)
			c.AnswerQuestion(q.ID, answers[(i+offset)%len(answers)])
		}

		if err := c.SubmitQuestionnaire(context.Background()); err != nil {
			t.Fatalf("offset %d: %v", offset, err)
		}
		s := c.Snapshot()
		if s.Phase != PhaseFinalReport || s.Result.FinalReport == nil || s.Result.FinalReport.AdjustedScore != 8 {
			t.Fatalf("offset %d: unexpected session %+v", offset, s)
		}
		if s.Answers != nil {
			t.Fatalf("answers should be cleared in the final report")
		}
		if got.ScoutID != "scout-1" || len(got.Answers) != len(scout.Questions) {
			t.Fatalf("unexpected request %+v", got)
		}
		first := scout.Questions[0]
		if got.Answers[first.Text] != answers[offset] {
			t.Fatalf("answers must be keyed by question text: %+v", got.Answers)
		}
	}
}

func TestSubmitQuestionnaireFailureReturnsToQuestionnaire(t *testing.T) {
	b := &fakeBackend{
		scout: scoutReturning(resultWithScore("Example Bistro", 8)),
		questionnaire: func(api.QuestionnaireRequest) (*scout.FinalReport, error) {
			return nil, errors.New("connection reset")
		},
	}
	c := newTestController(b, nil)
	mustResults(t, c, Query{RestaurantName: "Example Bistro"})
	c.StartQuestionnaire()
	answerAll(t, c, scout.AnswerNo)

	if err := c.SubmitQuestionnaire(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	s := c.Snapshot()
	if s.Phase != PhaseQuestionnaire || len(s.Unanswered()) != 0 {
		t.Fatalf("answers lost or wrong phase: %+v", s)
	}
	if s.Result.FinalReport != nil {
		t.Fatal("final report set on failure")
	}
}

func TestInvalidTransitions(t *testing.T) {
	c := newTestController(&fakeBackend{}, nil)
	ctx := context.Background()

	checks := map[string]error{
		"start questionnaire": c.StartQuestionnaire(),
		"back":                c.BackToResults(),
		"answer":              c.AnswerQuestion("knows_celiac", scout.AnswerYes),
		"submit":              c.SubmitQuestionnaire(ctx),
		"toggle saved":        c.ToggleSaved(ctx),
		"preset":              c.ApplyPreset(ctx, scout.PresetQuick),
		"new scout":           c.NewScout(),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: expected ErrInvalidTransition, got %v", name, err)
		}
	}
	if err := c.RequestAlternatives(ctx); !errors.Is(err, ErrAlternativesUnavailable) {
		t.Errorf("alternatives: got %v", err)
	}
}

func TestResetFromAnyPhase(t *testing.T) {
	ctx := context.Background()
	setups := map[Phase]func(c *Controller){
		PhaseSearch:   func(c *Controller) {},
		PhaseResults:  func(c *Controller) { c.SubmitSearch(ctx, Query{RestaurantName: "Example Bistro", Location: "Austin"}) },
		PhaseQuestionnaire: func(c *Controller) {
			c.SubmitSearch(ctx, Query{RestaurantName: "Example Bistro", Location: "Austin"})
			c.StartQuestionnaire()
			c.AnswerQuestion("knows_celiac", scout.AnswerYes)
		},
		PhaseFinalReport: func(c *Controller) {
			c.SubmitSearch(ctx, Query{RestaurantName: "Example Bistro", Location: "Austin"})
			c.StartQuestionnaire()
			answerAll(t, c, scout.AnswerYes)
			c.SubmitQuestionnaire(ctx)
		},
	}

	for phase, setup := range setups {
		b := &fakeBackend{
			scout: scoutReturning(resultWithScore("Example Bistro", 8)),
			questionnaire: func(api.QuestionnaireRequest) (*scout.FinalReport, error) {
				return &scout.FinalReport{AdjustedScore: 9}, nil
			},
		}
		prefs := &memPrefs{location: "Boston"}
		c := newTestController(b, prefs)
		setup(c)
		if got := c.Phase(); got != phase {
			t.Fatalf("setup for %s ended in %s", phase, got)
		}

		c.Reset(ctx)
		s := c.Snapshot()
		if s.Phase != PhaseSearch || s.Result != nil || s.Answers != nil || s.CallScript != nil {
			t.Fatalf("reset from %s left state: %+v", phase, s)
		}
		if s.Query.Location != prefs.location || s.Query.RestaurantName != "" {
			t.Fatalf("reset from %s: query = %+v", phase, s.Query)
		}
	}

	b := &fakeBackend{scout: func(api.ScoutRequest) (*scout.Result, error) { return nil, api.ErrLimitReached }}
	c := newTestController(b, nil)
	c.SubmitSearch(ctx, Query{RestaurantName: "x"})
	c.Reset(ctx)
	if c.Phase() != PhaseSearch {
		t.Fatalf("reset from limit reached: %s", c.Phase())
	}
}

func TestAlternativesOffered(t *testing.T) {
	tests := []struct {
		score    float64
		location string
		want     bool
	}{
		{score: 6.9, location: "Philadelphia", want: true},
		{score: 2, location: "Philadelphia", want: true},
		{score: 7, location: "Philadelphia", want: false},
		{score: 9.5, location: "Philadelphia", want: false},
		{score: 3, location: "", want: false},
		{score: 3, location: "   ", want: false},
	}

	for _, tc := range tests {
		b := &fakeBackend{scout: scoutReturning(resultWithScore("Pasta Co", tc.score))}
		c := newTestController(b, nil)
		mustResults(t, c, Query{RestaurantName: "Pasta Co", Location: tc.location})

		s := c.Snapshot()
		if got := s.AlternativesOffered(); got != tc.want {
			t.Errorf("score %v location %q: offered = %v, want %v", tc.score, tc.location, got, tc.want)
		}
		err := c.RequestAlternatives(context.Background())
		if tc.want && err != nil {
			t.Errorf("score %v: unexpected error %v", tc.score, err)
		}
		if !tc.want && !errors.Is(err, ErrAlternativesUnavailable) {
			t.Errorf("score %v location %q: expected ErrAlternativesUnavailable, got %v", tc.score, tc.location, err)
		}
		if !tc.want && b.count("alternatives") != 0 {
			t.Errorf("score %v: alternatives call issued", tc.score)
		}
	}
}

func TestRequestAlternativesCapsAndRescouts(t *testing.T) {
	var altReq api.AlternativesRequest
	var scouted []string
	b := &fakeBackend{
		scout: func(req api.ScoutRequest) (*scout.Result, error) {
			scouted = append(scouted, req.RestaurantName+"@"+req.Location)
			return resultWithScore(req.RestaurantName, 4), nil
		},
		alternatives: func(req api.AlternativesRequest) ([]scout.Alternative, error) {
			altReq = req
			out := make([]scout.Alternative, 8)
			for i := range out {
				out[i] = scout.Alternative{Name: string(rune('A' + i)), EstimatedSafetyScore: 9}
			}
			return out, nil
		},
	}
	c := newTestController(b, nil)
	mustResults(t, c, Query{RestaurantName: "Pasta Co", Location: "Philadelphia"})

	if err := c.RequestAlternatives(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := api.AlternativesRequest{CuisineType: "Italian", Location: "Philadelphia", OriginalRestaurantName: "Pasta Co"}
	if altReq != want {
		t.Fatalf("request = %+v, want %+v", altReq, want)
	}
	s := c.Snapshot()
	if len(s.Alternatives.Items) != scout.MaxAlternatives || s.Alternatives.Loading || s.Alternatives.Exhausted {
		t.Fatalf("alternatives = %+v", s.Alternatives)
	}

	if err := c.ScoutAlternative(context.Background(), 9); err == nil {
		t.Fatal("out of range alternative accepted")
	}
	if err := c.ScoutAlternative(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(scouted, []string{"Pasta Co@Philadelphia", "B@Philadelphia"}) {
		t.Fatalf("scouted = %v", scouted)
	}
	s = c.Snapshot()
	if s.Phase != PhaseResults || s.Result.RestaurantName != "B" || len(s.Alternatives.Items) != 0 {
		t.Fatalf("rescout session = %+v", s)
	}
}

func TestRequestAlternativesEmptyAndFailure(t *testing.T) {
	fail := true
	b := &fakeBackend{
		scout: scoutReturning(resultWithScore("Pasta Co", 3)),
		alternatives: func(api.AlternativesRequest) ([]scout.Alternative, error) {
			if fail {
				return nil, errors.New("timeout")
			}
			return []scout.Alternative{}, nil
		},
	}
	c := newTestController(b, nil)
	mustResults(t, c, Query{RestaurantName: "Pasta Co", Location: "Philadelphia"})

	if err := c.RequestAlternatives(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	s := c.Snapshot()
	if s.Alternatives.Loading || !s.AlternativesOffered() || s.LastError == "" {
		t.Fatalf("failure should re-offer alternatives: %+v", s)
	}

	fail = false
	if err := c.RequestAlternatives(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := c.Snapshot(); !s.Alternatives.Exhausted {
		t.Fatalf("empty list should mark exhausted: %+v", s.Alternatives)
	}
}

func TestToggleSaved(t *testing.T) {
	ctx := context.Background()

	t.Run("flips and reverts on failure", func(t *testing.T) {
		saveErr := error(nil)
		b := &fakeBackend{
			scout:      scoutReturning(resultWithScore("Example Bistro", 8)),
			checkSaved: func(api.RestaurantRef) (bool, error) { return false, nil },
			save:       func(api.RestaurantRef) error { return saveErr },
		}
		c := newTestController(b, nil)
		mustResults(t, c, Query{RestaurantName: "Example Bistro"})
		if c.Snapshot().Saved != SavedNo {
			t.Fatal("expected unsaved")
		}

		saveErr = &api.Error{StatusCode: 500, Message: "db down"}
		if err := c.ToggleSaved(ctx); err == nil {
			t.Fatal("expected error")
		}
		if s := c.Snapshot(); s.Saved != SavedNo || s.LastError == "" {
			t.Fatalf("failed save must revert: %+v", s)
		}

		saveErr = nil
		if err := c.ToggleSaved(ctx); err != nil {
			t.Fatal(err)
		}
		if c.Snapshot().Saved != SavedYes {
			t.Fatal("expected saved")
		}
		if err := c.ToggleSaved(ctx); err != nil {
			t.Fatal(err)
		}
		if c.Snapshot().Saved != SavedNo || b.count("unsave") != 1 {
			t.Fatal("expected unsave")
		}
	})

	t.Run("unknown when check-saved fails", func(t *testing.T) {
		b := &fakeBackend{
			scout:      scoutReturning(resultWithScore("Example Bistro", 8)),
			checkSaved: func(api.RestaurantRef) (bool, error) { return false, errors.New("boom") },
		}
		c := newTestController(b, nil)
		mustResults(t, c, Query{RestaurantName: "Example Bistro"})
		if s := c.Snapshot(); s.Saved != SavedUnknown || s.LastError != "" {
			t.Fatalf("check-saved failure: %+v", s)
		}
		if err := c.ToggleSaved(ctx); !errors.Is(err, ErrSavedStateUnknown) {
			t.Fatalf("expected ErrSavedStateUnknown, got %v", err)
		}
		if b.count("save")+b.count("unsave") != 0 {
			t.Fatal("toggle issued a call with unknown state")
		}
	})

	t.Run("ref falls back to name and location", func(t *testing.T) {
		var ref api.RestaurantRef
		res := resultWithScore("Example Bistro", 8)
		res.ID = ""
		b := &fakeBackend{
			scout:      scoutReturning(res),
			checkSaved: func(r api.RestaurantRef) (bool, error) { ref = r; return false, nil },
		}
		c := newTestController(b, nil)
		mustResults(t, c, Query{RestaurantName: "Example Bistro", Location: "Austin"})
		if ref != (api.RestaurantRef{Name: "Example Bistro", Location: "Austin"}) {
			t.Fatalf("ref = %+v", ref)
		}
	})
}

func TestStaleCompletionAfterResetIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	b := &fakeBackend{scout: func(api.ScoutRequest) (*scout.Result, error) {
		close(started)
		<-release
		return resultWithScore("Example Bistro", 8), nil
	}}
	c := newTestController(b, nil)

	errc := make(chan error, 1)
	go func() { errc <- c.SubmitSearch(context.Background(), Query{RestaurantName: "Example Bistro"}) }()
	<-started
	if c.Phase() != PhaseLoading {
		t.Fatalf("phase = %s, want loading", c.Phase())
	}

	c.Reset(context.Background())
	close(release)

	if err := <-errc; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	s := c.Snapshot()
	if s.Phase != PhaseSearch || s.Result != nil {
		t.Fatalf("stale response written: %+v", s)
	}
	if b.count("check-saved") != 0 {
		t.Fatal("check-saved issued for a stale response")
	}
}

func TestSecondSearchWhileLoadingIsRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	b := &fakeBackend{scout: func(api.ScoutRequest) (*scout.Result, error) {
		close(started)
		<-release
		return resultWithScore("Example Bistro", 8), nil
	}}
	c := newTestController(b, nil)

	errc := make(chan error, 1)
	go func() { errc <- c.SubmitSearch(context.Background(), Query{RestaurantName: "Example Bistro"}) }()
	<-started

	if err := c.SubmitSearch(context.Background(), Query{RestaurantName: "Other"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	close(release)
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if b.count("scout") != 1 {
		t.Fatalf("scout calls = %d", b.count("scout"))
	}
}

func TestProgressStopsOnCompletion(t *testing.T) {
	release := make(chan struct{})
	var fired int32
	firstStep := make(chan struct{}, 1)

	b := &fakeBackend{scout: func(api.ScoutRequest) (*scout.Result, error) {
		<-release
		return nil, errors.New("upstream timeout")
	}}
	c := New(b, nil, Options{
		ProgressInterval: time.Millisecond,
		ProgressSteps:    []string{"one", "two", "three", "four", "five", "six", "seven", "eight"},
		OnProgress: func(int, string) {
			atomic.AddInt32(&fired, 1)
			select {
			case firstStep <- struct{}{}:
			default:
			}
		},
	})

	errc := make(chan error, 1)
	go func() { errc <- c.SubmitSearch(context.Background(), Query{RestaurantName: "Example Bistro"}) }()

	select {
	case <-firstStep:
	case <-time.After(2 * time.Second):
		t.Fatal("progress never fired")
	}
	if c.Snapshot().Progress == "" {
		t.Fatal("progress label not published")
	}
	close(release)
	<-errc

	after := atomic.LoadInt32(&fired)
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != after {
		t.Fatalf("progress fired %d times after completion", got-after)
	}
	if s := c.Snapshot(); s.Progress != "" || s.Phase != PhaseSearch {
		t.Fatalf("unexpected session after failure: %+v", s)
	}
}

func TestCallScriptPreferences(t *testing.T) {
	ctx := context.Background()
	prefs := &memPrefs{}
	b := &fakeBackend{scout: scoutReturning(resultWithScore("Example Bistro", 8))}
	c := newTestController(b, prefs)
	mustResults(t, c, Query{RestaurantName: "Example Bistro"})

	s := c.Snapshot()
	if !reflect.DeepEqual(s.CallScript.Checked, []bool{true, true}) {
		t.Fatalf("default checks = %v", s.CallScript.Checked)
	}

	if err := c.ApplyPreset(ctx, scout.PresetQuick); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(prefs.script.Checks, []bool{true, false}) {
		t.Fatalf("quick preset persisted %v", prefs.script.Checks)
	}
	if err := c.ToggleScriptEntry(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.ToggleScriptEntry(ctx, 5); err == nil {
		t.Fatal("out of range toggle accepted")
	}
	if err := c.ShowAdditional(true); err != nil {
		t.Fatal(err)
	}

	// a new scout with the same number of entries reuses the pattern
	c.NewScout()
	mustResults(t, c, Query{RestaurantName: "Example Bistro"})
	if got := c.Snapshot().CallScript.Checked; !reflect.DeepEqual(got, []bool{false, false}) {
		t.Fatalf("persisted checks not reused: %v", got)
	}
}

func TestStartSeedsAndAutoSearches(t *testing.T) {
	ctx := context.Background()

	b := &fakeBackend{scout: scoutReturning(resultWithScore("Example Bistro", 8))}
	c := newTestController(b, &memPrefs{location: "Denver"})
	if err := c.Start(ctx, Query{}); err != nil {
		t.Fatal(err)
	}
	if s := c.Snapshot(); s.Phase != PhaseSearch || s.Query.Location != "Denver" || b.count("scout") != 0 {
		t.Fatalf("seed from prefs: %+v", s)
	}

	b = &fakeBackend{scout: scoutReturning(resultWithScore("Example Bistro", 8))}
	c = newTestController(b, nil)
	q, err := ParseLaunchURL("https://glutenguard.app/scout?name=Example+Bistro&location=Philadelphia")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Start(ctx, q); err != nil {
		t.Fatal(err)
	}
	if c.Phase() != PhaseResults || b.count("scout") != 1 {
		t.Fatalf("launch link should auto-search, phase %s", c.Phase())
	}

	b = &fakeBackend{}
	c = newTestController(b, nil)
	if err := c.Start(ctx, Query{RestaurantName: "Example Bistro"}); err != nil {
		t.Fatal(err)
	}
	if c.Phase() != PhaseSearch || b.count("scout") != 0 {
		t.Fatal("name without location must not auto-search")
	}
}

func TestParseLaunchURL(t *testing.T) {
	tests := []struct {
		in   string
		want Query
	}{
		{in: "", want: Query{}},
		{in: "https://glutenguard.app/scout?name=Example%20Bistro", want: Query{RestaurantName: "Example Bistro"}},
		{in: "/scout?name=A&location=+Austin+", want: Query{RestaurantName: "A", Location: "Austin"}},
		{in: "?name=A&location=B", want: Query{RestaurantName: "A", Location: "B"}},
		{in: "name=A", want: Query{RestaurantName: "A"}},
	}
	for _, tc := range tests {
		got, err := ParseLaunchURL(tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("%q: got %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	b := &fakeBackend{scout: scoutReturning(resultWithScore("Example Bistro", 8))}
	c := newTestController(b, nil)
	mustResults(t, c, Query{RestaurantName: "Example Bistro"})

	s := c.Snapshot()
	s.CallScript.Checked[0] = false
	s.Result.RestaurantName = "changed"
	if got := c.Snapshot(); !got.CallScript.Checked[0] || got.Result.RestaurantName != "Example Bistro" {
		t.Fatal("snapshot shares state with the controller")
	}
}
