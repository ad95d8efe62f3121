package extensions

import (
	"fmt"
	"os"
	"path/filepath"
)

const scaffoldManifest = `id: %[1]s
name: %[2]s
version: 0.1.0
author: "Your Name"
kind: free
min_host_version: "1.0.0"

dependencies: []

permissions:
  - action: view
    name: View %[2]s
  - action: manage
    name: Manage %[2]s

menu:
  label: %[2]s
  url_prefix: /%[1]s
  priority: 100

schema:
  namespace: %[1]s
  tables:
    - %[1]s_items
  models:
    - Item
`

const scaffoldMigration = `CREATE TABLE IF NOT EXISTS %[1]s_items (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const scaffoldLocale = `%[1]s.title: "%[2]s"
%[1]s.items: "Items"
`

// Scaffold creates a new extension skeleton under the extensions root in
// the inactive state, ready for packaging.
func Scaffold(states *StateManager, id string) (string, error) {
	if _, err := states.State(id); err == nil {
		return "", &StateConflictError{ExtensionID: id, Target: DirName(id, StateInactive)}
	}

	display := titleize(id)
	dir := states.Path(id, StateInactive)
	for _, sub := range []string{"migrations", "locales", "src", "templates", "static"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", fmt.Errorf("extensions: scaffold %s: %w", id, err)
		}
	}

	files := map[string]string{
		ManifestFile:               fmt.Sprintf(scaffoldManifest, id, display),
		"migrations/0001_init.sql": fmt.Sprintf(scaffoldMigration, id),
		"locales/en.yaml":          fmt.Sprintf(scaffoldLocale, id, display),
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte(body), 0o644); err != nil {
			return "", fmt.Errorf("extensions: scaffold %s: %w", id, err)
		}
	}
	return dir, nil
}

func titleize(id string) string {
	out := []rune(id)
	upperNext := true
	for i, r := range out {
		switch {
		case r == '_':
			out[i] = ' '
			upperNext = true
		case upperNext && r >= 'a' && r <= 'z':
			out[i] = r - ('a' - 'A')
			upperNext = false
		default:
			upperNext = false
		}
	}
	return string(out)
}
