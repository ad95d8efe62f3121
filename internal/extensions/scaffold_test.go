package extensions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScaffold(t *testing.T) {
	states, err := NewStateManager(t.TempDir())
	require.NoError(t, err)

	dir, err := Scaffold(states, "loyalty_points")
	require.NoError(t, err)
	require.Equal(t, states.Path("loyalty_points", StateInactive), dir)

	// The generated skeleton passes its own validation chain.
	m, err := LoadManifest(dir)
	require.NoError(t, err)
	require.Equal(t, "loyalty_points", m.ID)
	require.Equal(t, "Loyalty Points", m.Name)
	require.NoError(t, NewValidator("1.4.0").ValidateManifest(m))

	scripts, err := PlanMigrations(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"0001_init.sql"}, scripts)

	bundle, err := CompileLocales(dir)
	require.NoError(t, err)
	require.Len(t, bundle.Tags, 1)

	state, err := states.State("loyalty_points")
	require.NoError(t, err)
	require.Equal(t, StateInactive, state)
}

func TestScaffoldExistingID(t *testing.T) {
	states, err := NewStateManager(t.TempDir())
	require.NoError(t, err)
	_, err = Scaffold(states, "loyalty")
	require.NoError(t, err)
	_, err = Scaffold(states, "loyalty")
	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestTitleize(t *testing.T) {
	require.Equal(t, "Loyalty", titleize("loyalty"))
	require.Equal(t, "Crm Sync", titleize("crm_sync"))
}
