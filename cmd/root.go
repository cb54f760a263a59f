package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/glutenguard/glutenguard/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	       _       _                                       _
	  __ _| |_   _| |_ ___ _ __   __ _ _   _  __ _ _ __ __| |
	 / _' | | | | | __/ _ \ '_ \ / _' | | | |/ _' | '__/ _' |
	| (_| | | |_| | ||  __/ | | | (_| | |_| | (_| | | | (_| |
	 \__, |_|\__,_|\__\___|_| |_|\__, |\__,_|\__,_|_|  \__,_|
	 |___/                       |___/

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "glutenguard",
	Short: "Scout restaurants for celiac safety before you go.",
	Long: LOGO + `glutenguard asks the GlutenGuard analysis service how safe a restaurant is
for someone with celiac disease, gives you a call script for the staff, and
turns your answers into a final go / no-go report.

Run 'glutenguard wizard' for the interactive flow.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.glutenguard.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to the preference database (default is ~/.config/glutenguard/glutenguard.sqlite)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable coloured output")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A .env file in the working directory is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Error loading .env file: %s\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".glutenguard")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GLUTENGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("api.base_url", "http://localhost:5001")
	viper.SetDefault("api.key", "")
	viper.SetDefault("api.retries", 2)
	viper.SetDefault("api.timeout", "90s")
	viper.SetDefault("storage.path", "")
	viper.SetDefault("share.command", "")
	viper.SetDefault("log.file", "")
	viper.SetDefault("scout.progress_interval", "1500ms")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.glutenguard.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s\n", err)
			}
		} else {
			fmt.Printf("Error reading config file: %s\n", err)
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
	if err := utils.SetLogFile(viper.GetString("log.file")); err != nil {
		utils.Log.Warnf("Could not open log file: %v", err)
	}
}
