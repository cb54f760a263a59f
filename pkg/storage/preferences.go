package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/glutenguard/glutenguard/pkg/scout"
)

const (
	KeyLastLocation      = "last_location"
	KeyScriptPreferences = "script_prefs"
)

// LastLocation returns the last location a search was made for, or "".
func (d *DB) LastLocation(ctx context.Context) (string, error) {
	v, err := d.GetPreference(ctx, KeyLastLocation)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (d *DB) SetLastLocation(ctx context.Context, location string) error {
	location = strings.TrimSpace(location)
	if location == "" {
		return d.DeletePreference(ctx, KeyLastLocation)
	}
	return d.SetPreference(ctx, KeyLastLocation, location)
}

// ScriptPreferences returns the stored call-script pattern. A missing or
// unreadable entry yields nil so that every entry defaults to checked.
func (d *DB) ScriptPreferences(ctx context.Context) (*scout.ScriptPreferences, error) {
	v, err := d.GetPreference(ctx, KeyScriptPreferences)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var prefs scout.ScriptPreferences
	if err := json.Unmarshal([]byte(v), &prefs); err != nil {
		return nil, nil
	}
	if prefs.Count != len(prefs.Checks) {
		return nil, nil
	}
	return &prefs, nil
}

func (d *DB) SaveScriptPreferences(ctx context.Context, prefs scout.ScriptPreferences) error {
	b, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return d.SetPreference(ctx, KeyScriptPreferences, string(b))
}
