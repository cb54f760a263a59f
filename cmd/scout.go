package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/glutenguard/glutenguard/internal/utils"
	"github.com/glutenguard/glutenguard/pkg/api"
	"github.com/glutenguard/glutenguard/pkg/render"
	"github.com/glutenguard/glutenguard/pkg/scout"
	"github.com/glutenguard/glutenguard/pkg/session"
)

// scoutCmd represents the scout command
var scoutCmd = &cobra.Command{
	Use:   "scout <restaurant name>",
	Short: "Scout a single restaurant",
	Long: `Scouts a restaurant and prints the analysis and call script.

With --questionnaire you are asked the follow-up questions after the results
(or pass them with --answers yes,no,unsure,... in question order) and the
final report is printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location, _ := cmd.Flags().GetString("location")
		menuURL, _ := cmd.Flags().GetString("menu-url")
		presetFlag, _ := cmd.Flags().GetString("preset")
		questionnaire, _ := cmd.Flags().GetBool("questionnaire")
		answersFlag, _ := cmd.Flags().GetStringSlice("answers")
		alternatives, _ := cmd.Flags().GetBool("alternatives")
		save, _ := cmd.Flags().GetBool("save")
		shareResult, _ := cmd.Flags().GetBool("share")

		var answers []scout.Answer
		if len(answersFlag) > 0 {
			if len(answersFlag) != len(scout.Questions) {
				return fmt.Errorf("--answers needs %d values, got %d", len(scout.Questions), len(answersFlag))
			}
			for _, s := range answersFlag {
				a, err := scout.ParseAnswer(s)
				if err != nil {
					return err
				}
				answers = append(answers, a)
			}
			questionnaire = true
		}

		var preset scout.Preset
		if presetFlag != "" {
			p, err := scout.ParsePreset(presetFlag)
			if err != nil {
				return err
			}
			preset = p
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		ctl, cleanup, err := newController(cmd, func(_ int, step string) {
			fmt.Fprintf(os.Stderr, "%s...\n", step)
		})
		if err != nil {
			return err
		}
		defer cleanup()

		printer := newPrinter()
		q := session.Query{
			RestaurantName: strings.Join(args, " "),
			MenuURL:        menuURL,
			Location:       location,
		}
		if err := ctl.Start(ctx, q); err != nil {
			return explain(err)
		}
		if ctl.Phase() == session.PhaseSearch {
			// no location given or remembered
			if err := ctl.SubmitSearch(ctx, q); err != nil {
				return explain(err)
			}
		}

		if preset != "" {
			if err := ctl.ApplyPreset(ctx, preset); err != nil {
				return err
			}
		}
		if save && ctl.Snapshot().Saved != session.SavedYes {
			if err := saveResult(ctx, ctl); err != nil {
				utils.Log.Warnf("Could not save restaurant: %v", err)
			}
		}
		if alternatives {
			s := ctl.Snapshot()
			if s.AlternativesOffered() {
				if err := ctl.RequestAlternatives(ctx); err != nil {
					utils.Log.Warnf("Could not load alternatives: %v", err)
				}
			} else {
				utils.Log.Infof("Alternatives are only offered for scores below %d with a location", scout.AlternativesThreshold)
			}
		}
		printer.Print(render.Render(ctl.Snapshot()))

		if questionnaire {
			if err := ctl.StartQuestionnaire(); err != nil {
				return err
			}
			if answers == nil {
				if answers, err = promptAnswers(); err != nil {
					return err
				}
			}
			for i, a := range answers {
				if err := ctl.AnswerQuestion(scout.Questions[i].ID, a); err != nil {
					return err
				}
			}
			if err := ctl.SubmitQuestionnaire(ctx); err != nil {
				return explain(err)
			}
			fmt.Println()
			printer.Print(render.Render(ctl.Snapshot()))
		}

		if shareResult {
			s := ctl.Snapshot()
			text := scout.ShareText(s.Result, s.Phase == session.PhaseFinalReport)
			if _, err := newSharer().Share(ctx, text); err != nil {
				utils.Log.Warnf("Could not share: %v", err)
			}
		}
		return nil
	},
}

// saveResult saves the current restaurant, resolving an unknown saved state
// first.
func saveResult(ctx context.Context, ctl *session.Controller) error {
	if ctl.Snapshot().Saved == session.SavedUnknown {
		if err := ctl.RefreshSaved(ctx); err != nil {
			return err
		}
		if ctl.Snapshot().Saved == session.SavedYes {
			return nil
		}
	}
	return ctl.ToggleSaved(ctx)
}

func promptAnswers() ([]scout.Answer, error) {
	in := bufio.NewScanner(os.Stdin)
	answers := make([]scout.Answer, 0, len(scout.Questions))
	fmt.Println("\nAfter calling the restaurant, answer yes, no or unsure:")
	for i := 0; i < len(scout.Questions); {
		fmt.Printf("%d. %s ", i+1, scout.Questions[i].Text)
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return nil, err
			}
			return nil, session.ErrIncompleteQuestionnaire
		}
		a, err := scout.ParseAnswer(in.Text())
		if err != nil {
			fmt.Println(err)
			continue
		}
		answers = append(answers, a)
		i++
	}
	return answers, nil
}

// explain adds a hint to errors the user can act on.
func explain(err error) error {
	switch {
	case errors.Is(err, api.ErrLimitReached):
		return fmt.Errorf("%w: upgrade your plan to keep scouting", err)
	case errors.Is(err, context.Canceled):
		return errors.New("cancelled")
	}
	return err
}

func init() {
	rootCmd.AddCommand(scoutCmd)

	scoutCmd.Flags().StringP("location", "L", "", "City or neighbourhood (defaults to the last one used)")
	scoutCmd.Flags().StringP("menu-url", "m", "", "Link to the restaurant's menu")
	scoutCmd.Flags().StringP("preset", "p", "", "Call script preset: quick or thorough")
	scoutCmd.Flags().BoolP("questionnaire", "q", false, "Answer the follow-up questionnaire and print the final report")
	scoutCmd.Flags().StringSlice("answers", nil, "Questionnaire answers in order, comma separated (implies --questionnaire)")
	scoutCmd.Flags().BoolP("alternatives", "a", false, "Look for safer alternatives when the score is low")
	scoutCmd.Flags().BoolP("save", "s", false, "Add the restaurant to your saved list")
	scoutCmd.Flags().Bool("share", false, "Share the result (or the final report)")
}
