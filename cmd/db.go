package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glutenguard/glutenguard/internal/utils"
	"github.com/glutenguard/glutenguard/pkg/storage"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the local preference database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	Long: `Starts sqlite3 on the preference database. When sqlite3 is not installed a
minimal built-in shell runs one statement per line instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := utils.GetAbsDBPath(dbPathFlag(cmd))
		if err != nil {
			return err
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		lock, err := utils.NewDBLock(dbPath)
		if err != nil {
			return err
		}
		if err := lock.Lock(context.Background()); err != nil {
			return err
		}
		defer lock.Unlock()

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			utils.Log.Debug("sqlite3 not found, using the built-in shell")
			return builtinShell(dbPath)
		}

		// Print schema first
		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

func builtinShell(dbPath string) error {
	db, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	fmt.Println("--> Starting built-in shell... (Ctrl+D to exit)")
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("sql> ")
		if !in.Scan() {
			fmt.Println()
			return in.Err()
		}
		stmt := strings.TrimSpace(in.Text())
		if stmt == "" {
			continue
		}
		upper := strings.ToUpper(stmt)
		if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "PRAGMA") || strings.HasPrefix(upper, "WITH") {
			cols, rows, err := db.Query(ctx, stmt)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(cols, "\t"))
			for _, r := range rows {
				fmt.Fprintln(w, strings.Join(r, "\t"))
			}
			w.Flush()
			continue
		}
		n, err := db.Exec(ctx, stmt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Printf("%d row(s) affected\n", n)
	}
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the stored preferences.",
	Long:  "Prints statistics about the stored preferences.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		var stats storage.Stats
		err = store.with(context.Background(), func() (err error) {
			stats, err = store.db.GetStats(context.Background())
			return err
		})
		if err != nil {
			return err
		}

		if stats.PreferenceCount == 0 {
			fmt.Println("No preferences stored yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "PREFERENCES\tLAST UPDATED\t")
		fmt.Fprintf(w, "%d\t%s\t\n", stats.PreferenceCount, stats.LastUpdated.Local().Format("2006-01-02 15:04"))
		w.Flush()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(statsCmd)
}
