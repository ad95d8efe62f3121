package extensions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TestCompileLocales(t *testing.T) {
	dir := t.TempDir()
	locDir := filepath.Join(dir, "locales")
	require.NoError(t, os.MkdirAll(locDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(locDir, "en.yaml"),
		[]byte("points.title: Loyalty Points\npoints.balance: Balance\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(locDir, "de.yaml"),
		[]byte("points.title: Treuepunkte\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(locDir, "notes.txt"), []byte("ignored"), 0o644))

	bundle, err := CompileLocales(dir)
	require.NoError(t, err)
	require.Equal(t, []language.Tag{language.German, language.English}, bundle.Tags)

	p := message.NewPrinter(language.German, message.Catalog(bundle.Catalog))
	require.Equal(t, "Treuepunkte", p.Sprintf("points.title"))
	p = message.NewPrinter(language.English, message.Catalog(bundle.Catalog))
	require.Equal(t, "Loyalty Points", p.Sprintf("points.title"))
}

func TestCompileLocalesMissingDir(t *testing.T) {
	bundle, err := CompileLocales(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, bundle.Tags)
}

func TestCompileLocalesBadTag(t *testing.T) {
	dir := t.TempDir()
	locDir := filepath.Join(dir, "locales")
	require.NoError(t, os.MkdirAll(locDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(locDir, "not a tag.yaml"), []byte("k: v\n"), 0o644))

	_, err := CompileLocales(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid language tag")
}

func TestPlanMigrationsOrdered(t *testing.T) {
	dir := t.TempDir()
	migDir := filepath.Join(dir, "migrations")
	require.NoError(t, os.MkdirAll(migDir, 0o755))
	for _, name := range []string{"0002_add_index.sql", "0001_init.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(migDir, name), []byte("-- sql"), 0o644))
	}

	scripts, err := PlanMigrations(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"0001_init.sql", "0002_add_index.sql"}, scripts)
}

func TestPlanMigrationsNoDir(t *testing.T) {
	scripts, err := PlanMigrations(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, scripts)
}
