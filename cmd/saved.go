package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// savedCmd represents the saved command
var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List your saved restaurants",
	Long:  "Lists your saved restaurants with their best known score: the final report score when you completed the questionnaire, the initial score otherwise.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd, uuid.NewString())
		if err != nil {
			return err
		}
		items, err := client.SavedRestaurants(context.Background())
		if err != nil {
			return err
		}
		newPrinter().PrintSaved(items)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(savedCmd)
}
