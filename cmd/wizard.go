package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/glutenguard/glutenguard/internal/utils"
	"github.com/glutenguard/glutenguard/internal/wizard"
	"github.com/glutenguard/glutenguard/pkg/session"
)

// wizardCmd represents the wizard command
var wizardCmd = &cobra.Command{
	Use:     "wizard [launch link]",
	Aliases: []string{"open"},
	Short:   "Interactive scouting session",
	Long: `Starts an interactive session: search a restaurant, read the analysis and
call script, answer the follow-up questionnaire and get the final report.

An optional launch link (for example "?name=Example+Bistro&location=Philadelphia")
pre-fills the search form and starts scouting right away when both a name and
a location are present. Ctrl-C abandons a running request; at the prompt it exits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var seed session.Query
		if len(args) == 1 {
			q, err := session.ParseLaunchURL(args[0])
			if err != nil {
				return err
			}
			seed = q
		}
		return runWizard(cmd, seed)
	},
}

const interruptResetTimeout = 2 * time.Second

func runWizard(cmd *cobra.Command, seed session.Query) error {
	ctx := context.Background()

	ctl, cleanup, err := newController(cmd, func(_ int, step string) {
		fmt.Fprintf(os.Stdout, "  %s...\n", step)
	})
	if err != nil {
		return err
	}
	defer cleanup()

	w := wizard.New(ctl, os.Stdin, os.Stdout, newPrinter(), newSharer())

	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, os.Interrupt)
	defer func() {
		signal.Stop(sigs)
		close(done)
	}()
	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigs:
			}
			// Reset reads the last location and may wait on the file lock.
			resetCtx, cancel := context.WithTimeout(ctx, interruptResetTimeout)
			interrupted := w.Interrupt(resetCtx)
			cancel()
			if interrupted {
				fmt.Fprintln(os.Stdout, "\nCancelled.")
				continue
			}
			fmt.Fprintln(os.Stdout)
			cleanup()
			os.Exit(130)
		}
	}()

	if err := ctl.Start(ctx, seed); err != nil {
		utils.Log.Warnf("Could not scout %q: %v", seed.RestaurantName, err)
	}
	return w.Run(ctx)
}

func init() {
	rootCmd.AddCommand(wizardCmd)
}
