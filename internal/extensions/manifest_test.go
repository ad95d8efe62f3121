package extensions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)
	require.Equal(t, "loyalty", m.ID)
	require.Equal(t, KindFree, m.Kind)
	require.Equal(t, "1.0.0", m.MinHostVersion)
	require.Len(t, m.Dependencies, 1)
	require.Equal(t, []string{"loyalty.view_points", "loyalty.manage_points"}, m.Codenames())
	require.Equal(t, []string{"loyalty_accounts", "loyalty_transactions"}, m.Schema.Tables)
}

func TestParseManifestDefaults(t *testing.T) {
	m, err := ParseManifest([]byte("id: crm\nname: CRM\nversion: 0.1.0\nauthor: Acme\n"))
	require.NoError(t, err)
	require.Equal(t, KindFree, m.Kind)
	require.Equal(t, "crm", m.Schema.Namespace)
}

func TestParseManifestMissingFields(t *testing.T) {
	_, err := ParseManifest([]byte("id: crm\nname: CRM\n"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "crm", verr.ExtensionID)
	require.GreaterOrEqual(t, len(verr.Issues), 2)
}

func TestParseManifestInvalidID(t *testing.T) {
	bad := []string{"_hidden", ".dot", "UpperCase", "with-dash", "with space", ""}
	for _, id := range bad {
		_, err := ParseManifest([]byte("id: \"" + id + "\"\nname: X\nversion: 1.0.0\nauthor: A\n"))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "id %q should be rejected", id)
	}
}

func TestParseManifestUnknownKind(t *testing.T) {
	_, err := ParseManifest([]byte("id: crm\nname: CRM\nversion: 1.0.0\nauthor: A\nkind: trial\n"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Issues[0], "trial")
}
