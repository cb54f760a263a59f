package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/glutenguard/glutenguard/internal/utils"
	"github.com/glutenguard/glutenguard/pkg/api"
	"github.com/glutenguard/glutenguard/pkg/render"
	"github.com/glutenguard/glutenguard/pkg/scout"
	"github.com/glutenguard/glutenguard/pkg/session"
	"github.com/glutenguard/glutenguard/pkg/share"
	"github.com/glutenguard/glutenguard/pkg/storage"
)

func newAPIClient(cmd *cobra.Command, sessionID string) (*api.Client, error) {
	proxy, _ := rootCmd.PersistentFlags().GetString("proxy")
	return api.NewClient(api.Config{
		BaseURL:   viper.GetString("api.base_url"),
		APIKey:    viper.GetString("api.key"),
		Proxy:     proxy,
		RetryMax:  viper.GetInt("api.retries"),
		Timeout:   viper.GetDuration("api.timeout"),
		SessionID: sessionID,
		Log:       utils.Log,
	})
}

func dbPathFlag(cmd *cobra.Command) string {
	dbPath, _ := cmd.Flags().GetString("dbpath")
	if dbPath == "" {
		dbPath = viper.GetString("storage.path")
	}
	return dbPath
}

// lockedStore takes the cross-process file lock around every preference
// read or write, so several glutenguard processes can share one database.
type lockedStore struct {
	db   *storage.DB
	lock *utils.DBLock
}

func openStore(cmd *cobra.Command) (*lockedStore, error) {
	absPath, err := utils.GetAbsDBPath(dbPathFlag(cmd))
	if err != nil {
		return nil, err
	}
	lock, err := utils.NewDBLock(absPath)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("could not open preference database: %w", err)
	}
	return &lockedStore{db: db, lock: lock}, nil
}

func (s *lockedStore) Close() error { return s.db.Close() }

func (s *lockedStore) with(ctx context.Context, fn func() error) error {
	if err := s.lock.Lock(ctx); err != nil {
		return err
	}
	defer s.lock.Unlock()
	return fn()
}

func (s *lockedStore) LastLocation(ctx context.Context) (loc string, err error) {
	err = s.with(ctx, func() error {
		loc, err = s.db.LastLocation(ctx)
		return err
	})
	return loc, err
}

func (s *lockedStore) SetLastLocation(ctx context.Context, location string) error {
	return s.with(ctx, func() error { return s.db.SetLastLocation(ctx, location) })
}

func (s *lockedStore) ScriptPreferences(ctx context.Context) (prefs *scout.ScriptPreferences, err error) {
	err = s.with(ctx, func() error {
		prefs, err = s.db.ScriptPreferences(ctx)
		return err
	})
	return prefs, err
}

func (s *lockedStore) SaveScriptPreferences(ctx context.Context, prefs scout.ScriptPreferences) error {
	return s.with(ctx, func() error { return s.db.SaveScriptPreferences(ctx, prefs) })
}

// newController builds a controller backed by the API and the local store.
// The returned cleanup closes the store.
func newController(cmd *cobra.Command, onProgress func(int, string)) (*session.Controller, func(), error) {
	id := uuid.NewString()
	client, err := newAPIClient(cmd, id)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	ctl := session.New(client, store, session.Options{
		ID:               id,
		ProgressInterval: viper.GetDuration("scout.progress_interval"),
		Log:              utils.Log,
		OnProgress:       onProgress,
	})
	cleanup := func() {
		if err := store.Close(); err != nil {
			utils.Log.Debugf("closing store: %v", err)
		}
	}
	return ctl, cleanup, nil
}

func newPrinter() *render.Printer {
	noColor, _ := rootCmd.PersistentFlags().GetBool("no-color")
	return render.NewPrinter(os.Stdout, noColor)
}

func newSharer() *share.Sharer {
	return &share.Sharer{
		Command: viper.GetString("share.command"),
		Out:     os.Stdout,
		Log:     utils.Log,
	}
}
