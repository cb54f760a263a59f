package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/glutenguard/glutenguard/internal/utils"
	"github.com/glutenguard/glutenguard/pkg/api"
	"github.com/glutenguard/glutenguard/pkg/export"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List your packaged-food scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd, uuid.NewString())
		if err != nil {
			return err
		}
		scans, err := client.History(context.Background())
		if err != nil {
			return err
		}
		if len(scans) == 0 {
			fmt.Println("No scans yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tWHEN\tPRODUCT\tVERDICT\t")
		for _, s := range scans {
			product := s.ProductName
			if product == "" {
				product = s.Analysis.ProductName
			}
			verdict := s.Verdict
			if verdict == "" {
				verdict = s.Analysis.Verdict
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", s.ID, s.Timestamp, product, verdict)
		}
		return w.Flush()
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <scan id>",
	Short: "Delete a scan from your history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd, uuid.NewString())
		if err != nil {
			return err
		}
		if err := client.DeleteHistory(context.Background(), args[0]); err != nil {
			if api.IsNotFound(err) {
				return fmt.Errorf("no scan with id %s", args[0])
			}
			return err
		}
		utils.Log.Infof("Deleted scan %s", args[0])
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <file.csv|file.xlsx>",
	Short: "Export your scan history to CSV or Excel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := export.FormatForPath(args[0]); err != nil {
			return err
		}
		client, err := newAPIClient(cmd, uuid.NewString())
		if err != nil {
			return err
		}
		scans, err := client.History(context.Background())
		if err != nil {
			return err
		}
		if err := export.WriteFile(args[0], scans); err != nil {
			return err
		}
		utils.Log.Infof("Exported %d scans to %s", len(scans), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyExportCmd)
}
