package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/glutenguard/glutenguard/pkg/api"
)

// requestCmd represents the request command
var requestCmd = &cobra.Command{
	Use:   "request <restaurant name>",
	Short: "Ask for a restaurant that could not be scouted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location, _ := cmd.Flags().GetString("location")
		name := strings.TrimSpace(strings.Join(args, " "))
		if name == "" {
			return errors.New("restaurant name is required")
		}
		if location == "" {
			if store, err := openStore(cmd); err == nil {
				location, _ = store.LastLocation(context.Background())
				store.Close()
			}
		}

		client, err := newAPIClient(cmd, uuid.NewString())
		if err != nil {
			return err
		}
		label, err := client.RequestRestaurant(context.Background(), api.RestaurantRequest{
			RestaurantName: name,
			Location:       location,
		})
		if err != nil {
			return err
		}
		fmt.Println(label)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.Flags().StringP("location", "L", "", "City or neighbourhood (defaults to the last one used)")
}
