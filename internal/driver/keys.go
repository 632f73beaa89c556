package driver

import "strings"

// keyAliases maps the names people write in job files to robotgo key names.
var keyAliases = map[string]string{
	"ctrl":      "ctrl",
	"control":   "ctrl",
	"cmd":       "cmd",
	"command":   "cmd",
	"super":     "cmd",
	"win":       "cmd",
	"option":    "alt",
	"alt":       "alt",
	"shift":     "shift",
	"return":    "enter",
	"enter":     "enter",
	"del":       "delete",
	"delete":    "delete",
	"esc":       "esc",
	"escape":    "esc",
	"bksp":      "backspace",
	"backspace": "backspace",
	"pgup":      "pageup",
	"pgdn":      "pagedown",
	"spacebar":  "space",
	" ":         "space",
}

// NormalizeKey lower-cases a key name and resolves common aliases.
// Unknown names pass through lower-cased.
func NormalizeKey(name string) string {
	k := strings.ToLower(strings.TrimSpace(name))
	if k == "" && name != "" {
		k = " "
	}
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

// IsChord reports whether spec names several keys joined by "+".
func IsChord(spec string) bool {
	return len(SplitChord(spec)) > 1
}

// SplitChord splits "ctrl+shift+s" into its key names, in order.
// A lone "+" is the plus key.
func SplitChord(spec string) []string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	if spec == "+" {
		return []string{"+"}
	}

	parts := strings.Split(spec, "+")
	keys := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			// "ctrl++" ends in the plus key.
			if i == len(parts)-1 && i > 0 && strings.TrimSpace(parts[i-1]) == "" {
				keys = append(keys, "+")
			}
			continue
		}
		keys = append(keys, p)
	}
	return keys
}
