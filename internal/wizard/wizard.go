// Package wizard is the interactive, line-oriented front end of the scout
// controller. Each typed command maps to one controller operation and the
// rendered view is printed after it.
package wizard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/glutenguard/glutenguard/pkg/render"
	"github.com/glutenguard/glutenguard/pkg/scout"
	"github.com/glutenguard/glutenguard/pkg/session"
	"github.com/glutenguard/glutenguard/pkg/share"
)

var errQuit = errors.New("quit")

// Sharer delivers share text.
type Sharer interface {
	Share(ctx context.Context, text string) (share.Method, error)
}

type Wizard struct {
	ctl     *session.Controller
	in      *bufio.Scanner
	out     io.Writer
	printer *render.Printer
	sharer  Sharer

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New wires a wizard around ctl. sharer may be nil, which disables share.
func New(ctl *session.Controller, in io.Reader, out io.Writer, printer *render.Printer, sharer Sharer) *Wizard {
	return &Wizard{
		ctl:     ctl,
		in:      bufio.NewScanner(in),
		out:     out,
		printer: printer,
		sharer:  sharer,
	}
}

// Run prints the current view and executes commands until quit, end of
// input, or ctx is done.
func (w *Wizard) Run(ctx context.Context) error {
	w.show()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(w.out, "\n[%s] %s\n> ", w.ctl.Phase(), render.PhaseHint(w.ctl.Phase()))
		if !w.in.Scan() {
			fmt.Fprintln(w.out)
			return w.in.Err()
		}
		line := strings.TrimSpace(w.in.Text())
		if line == "" {
			continue
		}
		err := w.exec(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil && !errors.Is(err, session.ErrStale) {
			fmt.Fprintf(w.out, "! %v\n", err)
		}
		w.show()
	}
}

// exec runs line with a context that Interrupt can cancel.
func (w *Wizard) exec(ctx context.Context, line string) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.cancel = nil
		w.mu.Unlock()
		cancel()
	}()
	return w.Exec(ctx, line)
}

// Interrupt abandons the command in progress and resets the session. It
// reports false when no command was running.
func (w *Wizard) Interrupt(ctx context.Context) bool {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel == nil {
		return false
	}
	w.ctl.Reset(ctx)
	cancel()
	return true
}

func (w *Wizard) show() {
	fmt.Fprintln(w.out)
	w.printer.Print(render.Render(w.ctl.Snapshot()))
}

// Exec runs a single command line.
func (w *Wizard) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit", "q!":
		return errQuit
	case "help", "?":
		fmt.Fprintln(w.out, helpText)
		return nil
	case "view", "show":
		return nil
	case "search", "s":
		q, err := ParseSearchArgs(args)
		if err != nil {
			return err
		}
		if q.Location == "" {
			q.Location = w.ctl.Snapshot().Query.Location
		}
		// a rejected query must not cost the current result
		if err := w.ctl.ValidateQuery(q); err != nil {
			return err
		}
		if p := w.ctl.Phase(); p == session.PhaseResults || p == session.PhaseFinalReport {
			if err := w.ctl.NewScout(); err != nil {
				return err
			}
		}
		return w.ctl.SubmitSearch(ctx, q)
	case "new":
		return w.ctl.NewScout()
	case "reset":
		w.ctl.Reset(ctx)
		return nil
	case "questionnaire", "quiz":
		return w.ctl.StartQuestionnaire()
	case "back":
		return w.ctl.BackToResults()
	case "answer", "a":
		if len(args) != 2 {
			return errors.New("usage: answer <question number> yes|no|unsure")
		}
		id, err := questionID(args[0])
		if err != nil {
			return err
		}
		a, err := scout.ParseAnswer(args[1])
		if err != nil {
			return err
		}
		return w.ctl.AnswerQuestion(id, a)
	case "submit":
		return w.ctl.SubmitQuestionnaire(ctx)
	case "alternatives", "alts":
		return w.ctl.RequestAlternatives(ctx)
	case "scout-alt", "alt":
		n, err := number(args, "scout-alt <alternative number>")
		if err != nil {
			return err
		}
		return w.ctl.ScoutAlternative(ctx, n-1)
	case "save", "unsave":
		err := w.ctl.ToggleSaved(ctx)
		if errors.Is(err, session.ErrSavedStateUnknown) {
			if rerr := w.ctl.RefreshSaved(ctx); rerr != nil {
				return fmt.Errorf("%w: %v", err, rerr)
			}
			err = w.ctl.ToggleSaved(ctx)
		}
		return err
	case "share":
		return w.share(ctx)
	case "preset":
		if len(args) != 1 {
			return errors.New("usage: preset quick|thorough")
		}
		p, err := scout.ParsePreset(args[0])
		if err != nil {
			return err
		}
		return w.ctl.ApplyPreset(ctx, p)
	case "toggle", "t":
		n, err := number(args, "toggle <call script number>")
		if err != nil {
			return err
		}
		return w.ctl.ToggleScriptEntry(ctx, n-1)
	case "show-all":
		return w.ctl.ShowAdditional(true)
	case "essential":
		return w.ctl.ShowAdditional(false)
	case "dismiss":
		w.ctl.DismissError()
		return nil
	}
	return fmt.Errorf("unknown command %q, type help for a list", cmd)
}

func (w *Wizard) share(ctx context.Context) error {
	s := w.ctl.Snapshot()
	if s.Result == nil || (s.Phase != session.PhaseResults && s.Phase != session.PhaseFinalReport) {
		return fmt.Errorf("%w: nothing to share yet", session.ErrInvalidTransition)
	}
	if w.sharer == nil {
		return errors.New("sharing is not configured")
	}
	text := scout.ShareText(s.Result, s.Phase == session.PhaseFinalReport)
	method, err := w.sharer.Share(ctx, text)
	if err != nil {
		return err
	}
	switch method {
	case share.MethodCommand:
		fmt.Fprintln(w.out, "Shared.")
	case share.MethodClipboard:
		fmt.Fprintln(w.out, "Copied to clipboard.")
	}
	return nil
}

// ParseSearchArgs reads "<name words> [--location words] [--menu-url url]".
func ParseSearchArgs(args []string) (session.Query, error) {
	var name, location, menu []string
	target := &name
	for _, a := range args {
		switch strings.ToLower(a) {
		case "--location", "-l":
			target = &location
			continue
		case "--menu-url", "--menu", "-m":
			target = &menu
			continue
		}
		*target = append(*target, a)
	}
	if len(menu) > 1 {
		return session.Query{}, errors.New("menu URL must be a single link")
	}
	return session.Query{
		RestaurantName: strings.Join(name, " "),
		Location:       strings.Join(location, " "),
		MenuURL:        strings.Join(menu, ""),
	}, nil
}

func questionID(arg string) (string, error) {
	if q, ok := scout.QuestionByID(arg); ok {
		return q.ID, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(scout.Questions) {
		return "", fmt.Errorf("question must be 1-%d", len(scout.Questions))
	}
	return scout.Questions[n-1].ID, nil
}

func number(args []string, usage string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: " + usage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, errors.New("usage: " + usage)
	}
	return n, nil
}

const helpText = `Commands:
  search <name> [--location L] [--menu-url U]   scout a restaurant
  questionnaire                                 answer questions after calling
  answer <n> yes|no|unsure                      answer question n
  submit                                        get the final report
  back                                          back to the results
  alternatives                                  look for safer places nearby
  scout-alt <n>                                 scout alternative n
  save                                          save or unsave the restaurant
  share                                         share the report
  preset quick|thorough                         pick call script questions
  toggle <n>                                    check or uncheck question n
  show-all | essential                          show or hide additional questions
  new | reset                                   start over
  dismiss                                       clear the error message
  quit`
