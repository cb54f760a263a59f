package cmd

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Check a packaged-food ingredient label",
	Long:  "Uploads a photo of an ingredient label (PNG, JPG, WEBP or GIF, up to 10 MB) and prints the gluten verdict.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd, uuid.NewString())
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		rec, err := client.Scan(context.Background(), args[0], f)
		if err != nil {
			return explain(err)
		}
		newPrinter().PrintScan(*rec)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
