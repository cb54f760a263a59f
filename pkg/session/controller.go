package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/glutenguard/glutenguard/pkg/api"
	"github.com/glutenguard/glutenguard/pkg/scout"
)

var (
	ErrEmptyName               = errors.New("restaurant name is required")
	ErrIncompleteQuestionnaire = errors.New("please answer all questions before submitting")
	ErrInvalidTransition       = errors.New("action not available in the current step")
	ErrBusy                    = errors.New("a request of this kind is already in progress")
	ErrStale                   = errors.New("session moved on before the response arrived")
	ErrAlternativesUnavailable = errors.New("alternatives are only offered for scores below 7 with a known location")
	ErrSavedStateUnknown       = errors.New("saved state is not known yet")
)

const defaultProgressInterval = 1500 * time.Millisecond

// Backend is the analysis service as seen by the controller.
type Backend interface {
	Scout(ctx context.Context, req api.ScoutRequest) (*scout.Result, error)
	SubmitQuestionnaire(ctx context.Context, req api.QuestionnaireRequest) (*scout.FinalReport, error)
	Save(ctx context.Context, ref api.RestaurantRef) error
	Unsave(ctx context.Context, ref api.RestaurantRef) error
	CheckSaved(ctx context.Context, ref api.RestaurantRef) (bool, error)
	Alternatives(ctx context.Context, req api.AlternativesRequest) ([]scout.Alternative, error)
}

// PreferenceStore persists the local preference cache.
type PreferenceStore interface {
	LastLocation(ctx context.Context) (string, error)
	SetLastLocation(ctx context.Context, location string) error
	ScriptPreferences(ctx context.Context) (*scout.ScriptPreferences, error)
	SaveScriptPreferences(ctx context.Context, prefs scout.ScriptPreferences) error
}

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Options configures a Controller. Every field is optional.
type Options struct {
	ID               string        // session id; a random UUID when empty
	ProgressInterval time.Duration // delay between loading steps
	ProgressSteps    []string      // defaults to DefaultProgressSteps
	Log              Logger

	// OnProgress is called each time a loading step is revealed. It is never
	// called after the call it belongs to has completed.
	OnProgress func(step int, label string)
}

// Controller owns one Session and drives it through the scouting wizard.
// All methods are safe for concurrent use; network calls run without the
// lock held, and their completions are discarded when the session has
// moved on in the meantime.
type Controller struct {
	backend          Backend
	prefs            PreferenceStore
	log              Logger
	validate         *validator.Validate
	progressInterval time.Duration
	progressSteps    []string
	onProgress       func(int, string)

	mu       sync.Mutex
	s        Session
	epoch    uint64
	busy     map[string]uint64
	progress *progress
}

// New returns a controller in the Search phase. prefs may be nil.
func New(backend Backend, prefs PreferenceStore, opts Options) *Controller {
	log := opts.Log
	if log == nil {
		log = nopLogger{}
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}
	steps := opts.ProgressSteps
	if steps == nil {
		steps = DefaultProgressSteps
	}
	return &Controller{
		backend:          backend,
		prefs:            prefs,
		log:              log,
		validate:         validator.New(),
		progressInterval: interval,
		progressSteps:    steps,
		onProgress:       opts.OnProgress,
		s:                Session{ID: id, Phase: PhaseSearch},
		busy:             make(map[string]uint64),
	}
}

// Snapshot returns a copy of the current session for rendering.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Clone()
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Phase
}

// Start seeds the search form from a launch link or the persisted location
// and searches right away when both a name and a location are known.
func (c *Controller) Start(ctx context.Context, seed Query) error {
	seed = seed.normalize()
	if seed.Location == "" {
		seed.Location = c.lastLocation(ctx)
	}

	c.mu.Lock()
	if c.s.Phase != PhaseSearch {
		err := c.invalid("start")
		c.mu.Unlock()
		return err
	}
	c.s.Query = seed
	c.mu.Unlock()

	if seed.RestaurantName != "" && seed.Location != "" {
		c.log.Infof("Scouting %s in %s", seed.RestaurantName, seed.Location)
		return c.SubmitSearch(ctx, seed)
	}
	return nil
}

// ValidateQuery checks the search form without touching the session.
func (c *Controller) ValidateQuery(q Query) error {
	q = q.normalize()
	if q.RestaurantName == "" {
		return ErrEmptyName
	}
	if err := c.validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "MenuURL":
				return fmt.Errorf("menu URL must be an http or https link: %q", q.MenuURL)
			case "RestaurantName":
				return fmt.Errorf("restaurant name is too long")
			case "Location":
				return fmt.Errorf("location is too long")
			}
		}
		return err
	}
	return nil
}

// SubmitSearch scouts a restaurant. An invalid query is rejected without a
// network call and without changing phase.
func (c *Controller) SubmitSearch(ctx context.Context, q Query) error {
	return c.search(ctx, q, PhaseSearch)
}

// ScoutAlternative starts a new scout for alternative i of the current list.
func (c *Controller) ScoutAlternative(ctx context.Context, i int) error {
	c.mu.Lock()
	if c.s.Phase != PhaseResults {
		err := c.invalid("scout an alternative")
		c.mu.Unlock()
		return err
	}
	items := c.s.Alternatives.Items
	if i < 0 || i >= len(items) {
		c.mu.Unlock()
		return fmt.Errorf("alternative %d out of range (1-%d)", i+1, len(items))
	}
	q := Query{RestaurantName: items[i].Name, Location: c.s.Query.Location}
	c.mu.Unlock()

	return c.search(ctx, q, PhaseResults)
}

func (c *Controller) search(ctx context.Context, q Query, from Phase) error {
	q = q.normalize()
	if err := c.ValidateQuery(q); err != nil {
		return err
	}

	c.mu.Lock()
	if c.s.Phase != from {
		err := c.invalid("search")
		c.mu.Unlock()
		return err
	}
	if from != PhaseSearch {
		c.enterSearchLocked(q.Location)
	}
	epoch, err := c.acquireLocked("search")
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.s.clearResult()
	c.s.Query = q
	c.s.LastError = ""
	c.s.Phase = PhaseLoading
	p := c.startProgressLocked(epoch, c.progressSteps)
	c.mu.Unlock()
	defer c.release("search", epoch)

	c.log.Debugf("[session] scouting %q", q.RestaurantName)
	res, err := c.backend.Scout(ctx, api.ScoutRequest{
		RestaurantName: q.RestaurantName,
		MenuURL:        q.MenuURL,
		Location:       q.Location,
	})
	p.stop()
	if err == nil && res == nil {
		err = api.ErrMalformedResponse
	}

	var prefs *scout.ScriptPreferences
	if err == nil {
		prefs = c.scriptPreferences(ctx)
	}

	c.mu.Lock()
	if c.epoch != epoch || c.s.Phase != PhaseLoading {
		c.mu.Unlock()
		c.log.Debugf("[session] discarding scout response for %q", q.RestaurantName)
		return ErrStale
	}
	c.s.Progress = ""
	if err != nil {
		c.failLocked(err, PhaseSearch)
		c.mu.Unlock()
		return err
	}
	c.s.Result = res
	c.s.Saved = SavedUnknown
	c.s.CallScript = scout.NewCallScript(res.Analysis.CallScript, prefs)
	c.s.Phase = PhaseResults
	c.mu.Unlock()

	if q.Location != "" && c.prefs != nil {
		if err := c.prefs.SetLastLocation(ctx, q.Location); err != nil {
			c.log.Warnf("Could not remember location: %v", err)
		}
	}
	c.checkSaved(ctx, epoch)
	return nil
}

// RefreshSaved re-runs the saved-state check for the current result.
func (c *Controller) RefreshSaved(ctx context.Context) error {
	c.mu.Lock()
	if c.s.Phase != PhaseResults && c.s.Phase != PhaseFinalReport {
		err := c.invalid("check saved state")
		c.mu.Unlock()
		return err
	}
	epoch := c.epoch
	c.mu.Unlock()
	return c.checkSaved(ctx, epoch)
}

// checkSaved resolves the saved state. Failure leaves it unknown.
func (c *Controller) checkSaved(ctx context.Context, epoch uint64) error {
	c.mu.Lock()
	if c.epoch != epoch || c.s.Result == nil {
		c.mu.Unlock()
		return ErrStale
	}
	ref := c.refLocked()
	c.mu.Unlock()

	saved, err := c.backend.CheckSaved(ctx, ref)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.s.Result == nil {
		return ErrStale
	}
	if e, ok := c.busy["save"]; ok && e == epoch {
		// a toggle is in flight and owns the saved state
		return nil
	}
	if err != nil {
		c.log.Debugf("[session] check-saved failed: %v", err)
		c.s.Saved = SavedUnknown
		return err
	}
	if saved {
		c.s.Saved = SavedYes
	} else {
		c.s.Saved = SavedNo
	}
	return nil
}

// StartQuestionnaire moves from Results to a fresh, unanswered questionnaire.
func (c *Controller) StartQuestionnaire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s.Phase != PhaseResults {
		return c.invalid("start the questionnaire")
	}
	c.s.Answers = make(map[string]scout.Answer, len(scout.Questions))
	for _, q := range scout.Questions {
		c.s.Answers[q.ID] = scout.AnswerNone
	}
	c.s.Alternatives.Loading = false
	c.s.LastError = ""
	c.s.Phase = PhaseQuestionnaire
	return nil
}

// BackToResults leaves the questionnaire without submitting it.
func (c *Controller) BackToResults() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s.Phase != PhaseQuestionnaire {
		return c.invalid("go back to results")
	}
	c.s.Answers = nil
	c.s.Phase = PhaseResults
	return nil
}

// AnswerQuestion records (or overwrites) the answer to question id.
func (c *Controller) AnswerQuestion(id string, a scout.Answer) error {
	if _, ok := scout.QuestionByID(id); !ok {
		return fmt.Errorf("unknown question %q", id)
	}
	if a != scout.AnswerYes && a != scout.AnswerNo && a != scout.AnswerUnsure {
		return fmt.Errorf("invalid answer %q", a)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s.Phase != PhaseQuestionnaire {
		return c.invalid("answer a question")
	}
	c.s.Answers[id] = a
	return nil
}

// SubmitQuestionnaire sends the answers and moves to the final report.
// It is rejected without a network call while any question is unanswered.
func (c *Controller) SubmitQuestionnaire(ctx context.Context) error {
	c.mu.Lock()
	if c.s.Phase != PhaseQuestionnaire {
		err := c.invalid("submit the questionnaire")
		c.mu.Unlock()
		return err
	}
	if missing := c.s.Unanswered(); len(missing) > 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w (%d of %d unanswered)", ErrIncompleteQuestionnaire, len(missing), len(scout.Questions))
	}
	epoch, err := c.acquireLocked("questionnaire")
	if err != nil {
		c.mu.Unlock()
		return err
	}
	req := api.QuestionnaireRequest{
		ScoutID:          c.s.Result.ID,
		OriginalAnalysis: c.s.Result.Analysis,
		Answers:          make(map[string]scout.Answer, len(scout.Questions)),
	}
	for _, q := range scout.Questions {
		req.Answers[q.Text] = c.s.Answers[q.ID]
	}
	c.s.LastError = ""
	c.s.Phase = PhaseQuestionnaireLoading
	p := c.startProgressLocked(epoch, QuestionnaireProgressSteps)
	c.mu.Unlock()
	defer c.release("questionnaire", epoch)

	report, err := c.backend.SubmitQuestionnaire(ctx, req)
	p.stop()
	if err == nil && report == nil {
		err = api.ErrMalformedResponse
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.s.Phase != PhaseQuestionnaireLoading {
		return ErrStale
	}
	c.s.Progress = ""
	if err != nil {
		c.failLocked(err, PhaseQuestionnaire)
		return err
	}
	r := *c.s.Result
	r.FinalReport = report
	c.s.Result = &r
	c.s.Answers = nil
	c.s.Phase = PhaseFinalReport
	return nil
}

// RequestAlternatives fetches safer restaurants nearby. It is only offered
// on the results view for scores below 7 when a location is known.
func (c *Controller) RequestAlternatives(ctx context.Context) error {
	c.mu.Lock()
	if !c.s.AlternativesOffered() {
		c.mu.Unlock()
		return ErrAlternativesUnavailable
	}
	if c.s.Alternatives.Loading {
		c.mu.Unlock()
		return ErrBusy
	}
	epoch, err := c.acquireLocked("alternatives")
	if err != nil {
		c.mu.Unlock()
		return err
	}
	req := api.AlternativesRequest{
		CuisineType:            c.s.Result.Analysis.CuisineType,
		Location:               c.s.Query.Location,
		OriginalRestaurantName: c.s.Result.Name(),
	}
	c.s.Alternatives = AlternativesState{Loading: true}
	c.mu.Unlock()
	defer c.release("alternatives", epoch)

	alts, err := c.backend.Alternatives(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.s.Phase != PhaseResults || !c.s.Alternatives.Loading {
		return ErrStale
	}
	c.s.Alternatives.Loading = false
	if err != nil {
		if errors.Is(err, api.ErrLimitReached) {
			c.failLocked(err, PhaseResults)
			return err
		}
		c.s.LastError = "Could not load alternatives: " + err.Error()
		return err
	}
	c.s.Alternatives.Items = scout.Cap(alts, scout.MaxAlternatives)
	c.s.Alternatives.Exhausted = len(c.s.Alternatives.Items) == 0
	return nil
}

// ToggleSaved saves or unsaves the current result. The new state is shown
// right away and reverted if the call fails.
func (c *Controller) ToggleSaved(ctx context.Context) error {
	c.mu.Lock()
	if c.s.Phase != PhaseResults && c.s.Phase != PhaseFinalReport {
		err := c.invalid("save")
		c.mu.Unlock()
		return err
	}
	if c.s.Saved == SavedUnknown {
		c.mu.Unlock()
		return ErrSavedStateUnknown
	}
	epoch, err := c.acquireLocked("save")
	if err != nil {
		c.mu.Unlock()
		return err
	}
	prev := c.s.Saved
	next := SavedYes
	if prev == SavedYes {
		next = SavedNo
	}
	c.s.Saved = next
	ref := c.refLocked()
	c.mu.Unlock()
	defer c.release("save", epoch)

	if next == SavedYes {
		err = c.backend.Save(ctx, ref)
	} else {
		err = c.backend.Unsave(ctx, ref)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrStale
	}
	if err != nil {
		c.s.Saved = prev
		if errors.Is(err, api.ErrLimitReached) {
			c.failLocked(err, c.s.Phase)
			return err
		}
		c.s.LastError = "Could not update saved restaurants: " + err.Error()
		return err
	}
	return nil
}

// ApplyPreset checks essential entries only (quick) or all entries (thorough)
// and remembers the resulting pattern.
func (c *Controller) ApplyPreset(ctx context.Context, p scout.Preset) error {
	c.mu.Lock()
	if c.s.CallScript == nil {
		err := c.invalid("apply a preset")
		c.mu.Unlock()
		return err
	}
	c.s.CallScript.ApplyPreset(p)
	prefs := c.s.CallScript.Preferences()
	c.mu.Unlock()

	c.saveScriptPreferences(ctx, prefs)
	return nil
}

// ToggleScriptEntry flips the checked state of call-script entry i and
// remembers the resulting pattern.
func (c *Controller) ToggleScriptEntry(ctx context.Context, i int) error {
	c.mu.Lock()
	if c.s.CallScript == nil {
		err := c.invalid("check a call-script entry")
		c.mu.Unlock()
		return err
	}
	if err := c.s.CallScript.Toggle(i); err != nil {
		c.mu.Unlock()
		return err
	}
	prefs := c.s.CallScript.Preferences()
	c.mu.Unlock()

	c.saveScriptPreferences(ctx, prefs)
	return nil
}

// ShowAdditional shows or hides the additional call-script entries.
func (c *Controller) ShowAdditional(show bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s.CallScript == nil {
		return c.invalid("show additional questions")
	}
	c.s.CallScript.SetShowAdditional(show)
	return nil
}

// DismissError clears the transient error message.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.s.LastError = ""
	c.mu.Unlock()
}

// NewScout returns from a result to an empty search form, keeping the location.
func (c *Controller) NewScout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s.Phase != PhaseResults && c.s.Phase != PhaseFinalReport {
		return c.invalid("start a new scout")
	}
	c.enterSearchLocked(c.s.Query.Location)
	return nil
}

// Reset is valid from any phase. It abandons in-flight calls, clears the
// result and answers, and restores the persisted location.
func (c *Controller) Reset(ctx context.Context) {
	location := c.lastLocation(ctx)

	c.mu.Lock()
	p := c.progress
	c.enterSearchLocked(location)
	c.s.LastError = ""
	c.mu.Unlock()

	p.stop()
}

func (c *Controller) enterSearchLocked(location string) {
	c.epoch++
	c.progress = nil
	c.s.clearResult()
	c.s.Query = Query{Location: location}
	c.s.Phase = PhaseSearch
}

// failLocked routes a failed call: the usage limit wins over everything,
// other errors return to fallback with a dismissable message.
func (c *Controller) failLocked(err error, fallback Phase) {
	if errors.Is(err, api.ErrLimitReached) {
		c.log.Warnf("Usage limit reached")
		c.s.clearResult()
		c.s.Phase = PhaseLimitReached
		c.s.LastError = ""
		return
	}
	c.log.Debugf("[session] call failed in %s: %v", c.s.Phase, err)
	if fallback == PhaseSearch {
		c.s.clearResult()
	}
	c.s.Phase = fallback
	c.s.LastError = err.Error()
}

func (c *Controller) startProgressLocked(epoch uint64, steps []string) *progress {
	p := startProgress(c.progressInterval, steps, func(i int, step string) {
		c.mu.Lock()
		if c.epoch != epoch || (c.s.Phase != PhaseLoading && c.s.Phase != PhaseQuestionnaireLoading) {
			c.mu.Unlock()
			return
		}
		c.s.Progress = step
		cb := c.onProgress
		c.mu.Unlock()
		if cb != nil {
			cb(i, step)
		}
	})
	c.progress = p
	return p
}

func (c *Controller) acquireLocked(op string) (uint64, error) {
	if e, ok := c.busy[op]; ok && e == c.epoch {
		return 0, ErrBusy
	}
	c.busy[op] = c.epoch
	return c.epoch, nil
}

func (c *Controller) release(op string, epoch uint64) {
	c.mu.Lock()
	if e, ok := c.busy[op]; ok && e == epoch {
		delete(c.busy, op)
	}
	c.mu.Unlock()
}

func (c *Controller) refLocked() api.RestaurantRef {
	if id := strings.TrimSpace(c.s.Result.ID); id != "" {
		return api.RestaurantRef{RestaurantID: id}
	}
	return api.RestaurantRef{Name: c.s.Result.Name(), Location: c.s.Query.Location}
}

func (c *Controller) invalid(action string) error {
	return fmt.Errorf("%w: cannot %s during %s", ErrInvalidTransition, action, c.s.Phase)
}

func (c *Controller) lastLocation(ctx context.Context) string {
	if c.prefs == nil {
		return ""
	}
	loc, err := c.prefs.LastLocation(ctx)
	if err != nil {
		c.log.Warnf("Could not read last location: %v", err)
		return ""
	}
	return loc
}

func (c *Controller) scriptPreferences(ctx context.Context) *scout.ScriptPreferences {
	if c.prefs == nil {
		return nil
	}
	prefs, err := c.prefs.ScriptPreferences(ctx)
	if err != nil {
		c.log.Warnf("Could not read call script preferences: %v", err)
		return nil
	}
	return prefs
}

func (c *Controller) saveScriptPreferences(ctx context.Context, prefs scout.ScriptPreferences) {
	if c.prefs == nil {
		return
	}
	if err := c.prefs.SaveScriptPreferences(ctx, prefs); err != nil {
		c.log.Warnf("Could not save call script preferences: %v", err)
	}
}
