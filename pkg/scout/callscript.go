package scout

import (
	"fmt"
	"strings"
)

// Priority tags a call-script question.
type Priority string

const (
	PriorityEssential  Priority = "essential"
	PriorityAdditional Priority = "additional"
)

// ParsePriority treats anything that is not "additional" as essential.
func ParsePriority(s string) Priority {
	if strings.EqualFold(strings.TrimSpace(s), string(PriorityAdditional)) {
		return PriorityAdditional
	}
	return PriorityEssential
}

// CallScriptItem is one question to ask restaurant staff by phone.
type CallScriptItem struct {
	Question string   `json:"question"`
	Priority Priority `json:"priority"`
}

// Preset selects which entries are checked and shown.
type Preset string

const (
	PresetQuick    Preset = "quick"
	PresetThorough Preset = "thorough"
)

// ParsePreset accepts "quick" or "thorough".
func ParsePreset(s string) (Preset, error) {
	switch Preset(strings.ToLower(strings.TrimSpace(s))) {
	case PresetQuick:
		return PresetQuick, nil
	case PresetThorough:
		return PresetThorough, nil
	}
	return "", fmt.Errorf("unknown preset %q (use quick or thorough)", s)
}

// ScriptPreferences is the persisted checked/unchecked pattern, keyed by the
// number of entries it was recorded against.
type ScriptPreferences struct {
	Count  int    `json:"count"`
	Checks []bool `json:"checks"`
}

// Matches reports whether the preferences can be applied to a script of n entries.
func (p *ScriptPreferences) Matches(n int) bool {
	return p != nil && p.Count == n && len(p.Checks) == n
}

// CallScript is the rendered call script with its per-entry state.
type CallScript struct {
	Items          []CallScriptItem
	Checked        []bool
	Preset         Preset
	ShowAdditional bool
}

// NewCallScript caps the entries and applies prefs when they were recorded
// for the same number of entries. Otherwise every entry starts checked.
func NewCallScript(items []CallScriptItem, prefs *ScriptPreferences) *CallScript {
	items = Cap(items, MaxCallScriptItems)
	cs := &CallScript{
		Items:   make([]CallScriptItem, len(items)),
		Checked: make([]bool, len(items)),
		Preset:  PresetQuick,
	}
	copy(cs.Items, items)
	if prefs.Matches(len(items)) {
		copy(cs.Checked, prefs.Checks)
	} else {
		for i := range cs.Checked {
			cs.Checked[i] = true
		}
	}
	return cs
}

// HasAdditional reports whether the show-all toggle is worth offering.
func (c *CallScript) HasAdditional() bool {
	for _, it := range c.Items {
		if it.Priority == PriorityAdditional {
			return true
		}
	}
	return false
}

// ApplyPreset checks essential entries only (quick) or every entry (thorough).
func (c *CallScript) ApplyPreset(p Preset) {
	for i, it := range c.Items {
		c.Checked[i] = p == PresetThorough || it.Priority == PriorityEssential
	}
	c.Preset = p
	c.ShowAdditional = p == PresetThorough
}

// SetShowAdditional toggles visibility without touching the checks.
func (c *CallScript) SetShowAdditional(show bool) {
	c.ShowAdditional = show
	if show {
		c.Preset = PresetThorough
	} else {
		c.Preset = PresetQuick
	}
}

// Toggle flips the checked state of entry i.
func (c *CallScript) Toggle(i int) error {
	if i < 0 || i >= len(c.Items) {
		return fmt.Errorf("call script entry %d out of range (1-%d)", i+1, len(c.Items))
	}
	c.Checked[i] = !c.Checked[i]
	return nil
}

// Visible reports whether entry i is shown under the current toggle.
func (c *CallScript) Visible(i int) bool {
	return c.ShowAdditional || c.Items[i].Priority != PriorityAdditional
}

// Preferences snapshots the checked pattern for persistence.
func (c *CallScript) Preferences() ScriptPreferences {
	checks := make([]bool, len(c.Checked))
	copy(checks, c.Checked)
	return ScriptPreferences{Count: len(c.Items), Checks: checks}
}

// Clone returns a deep copy.
func (c *CallScript) Clone() *CallScript {
	if c == nil {
		return nil
	}
	out := &CallScript{
		Items:          make([]CallScriptItem, len(c.Items)),
		Checked:        make([]bool, len(c.Checked)),
		Preset:         c.Preset,
		ShowAdditional: c.ShowAdditional,
	}
	copy(out.Items, c.Items)
	copy(out.Checked, c.Checked)
	return out
}
