package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frameio/frameio-gateway/pkg/principal"
)

func TestLoadRoleMapOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	doc := `roles:
  Designer:
    - generate_posters
    - view_analytics
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	rm, err := LoadRoleMap(path)
	require.NoError(t, err)

	perms := rm.PermissionsFor(principal.RoleDesigner)
	assert.Contains(t, perms, principal.PermViewAnalytics)

	// Roles absent from the file keep the defaults.
	assert.Contains(t, rm.PermissionsFor(principal.RoleAdmin), principal.PermManageBilling)
}

func TestLoadRoleMapRejectsUnknownRole(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  Wizard: [cast_spells]\n"), 0o644))

	_, err := LoadRoleMap(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestLoadRoleMapMissingFile(t *testing.T) {
	_, err := LoadRoleMap(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
