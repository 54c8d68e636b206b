package config

import "strings"

// KeyBindingsConfig is the [keybindings] table of the terminal client.
// Primary is the modifier for chorded actions ("alt" unless set) and Actions
// replaces the key of individual actions outright.
type KeyBindingsConfig struct {
	Primary string            `toml:"primary"`
	Actions map[string]string `toml:"actions,omitempty"`
}

// Actions without a chord flag are bound to the bare key.
var defaultActionKeys = map[string]struct {
	key   string
	chord bool
}{
	"send":               {"enter", false},
	"cancel":             {"esc", false},
	"quit":               {"q", true},
	"yank_last_response": {"y", true},
	"scroll_down":        {"j", true},
	"scroll_up":          {"k", true},
	"new_session":        {"n", true},
}

func DefaultKeybindings() *KeyBindingsConfig {
	return &KeyBindingsConfig{Primary: "alt"}
}

// PrimaryKey chords key with the primary modifier: "s" becomes "alt+s".
func (kb *KeyBindingsConfig) PrimaryKey(key string) string {
	mod := kb.Primary
	if mod == "" {
		mod = "alt"
	}
	return mod + "+" + key
}

// GetActionKey resolves the key bound to action, or "" for unknown actions.
func (kb *KeyBindingsConfig) GetActionKey(action string) string {
	if key := kb.Actions[action]; key != "" {
		return key
	}
	def, ok := defaultActionKeys[action]
	switch {
	case !ok:
		return ""
	case def.chord:
		return kb.PrimaryKey(def.key)
	default:
		return def.key
	}
}

// DisplayActionKey is GetActionKey title-cased for help text ("Alt+J").
func (kb *KeyBindingsConfig) DisplayActionKey(action string) string {
	parts := strings.Split(kb.GetActionKey(action), "+")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "+")
}
