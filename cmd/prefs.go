package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glutenguard/glutenguard/internal/utils"
	"github.com/glutenguard/glutenguard/pkg/storage"
)

// prefsCmd represents the prefs command
var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show the remembered location and call script choices",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		var prefs []storage.Preference
		err = store.with(context.Background(), func() (err error) {
			prefs, err = store.db.ListPreferences(context.Background())
			return err
		})
		if err != nil {
			return err
		}
		if len(prefs) == 0 {
			fmt.Println("No preferences stored yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE\tUPDATED\t")
		for _, p := range prefs {
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", p.Key, p.Value, p.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var prefsSetLocationCmd = &cobra.Command{
	Use:   "set-location <location>",
	Short: "Set the location pre-filled in new searches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.SetLastLocation(context.Background(), args[0])
	},
}

var prefsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the remembered location and call script choices",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		var n int64
		err = store.with(context.Background(), func() (err error) {
			n, err = store.db.ClearPreferences(context.Background())
			return err
		})
		if err != nil {
			return err
		}
		utils.Log.Infof("Removed %d preference(s)", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsSetLocationCmd)
	prefsCmd.AddCommand(prefsResetCmd)
}
