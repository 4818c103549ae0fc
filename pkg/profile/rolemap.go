package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/frameio/frameio-gateway/pkg/observability"
	"github.com/frameio/frameio-gateway/pkg/principal"
)

// RoleMap supplies the permission set for a role when the backend
// profile response carries a role but no explicit permission list.
// Optionally backed by a YAML file that is hot-reloaded on change, so
// permission adjustments do not need a deploy.
type RoleMap struct {
	mu    sync.RWMutex
	perms map[principal.Role][]principal.Permission

	watcher *fsnotify.Watcher
	logger  *observability.Logger
	done    chan struct{}
}

// DefaultRoleMap returns the built-in role to permission mapping
func DefaultRoleMap() *RoleMap {
	return &RoleMap{
		perms: map[principal.Role][]principal.Permission{
			principal.RoleAdmin: {
				principal.PermManageUsers,
				principal.PermManageOrganization,
				principal.PermViewBilling,
				principal.PermManageBilling,
				principal.PermGeneratePosters,
				principal.PermViewAnalytics,
				principal.PermManageSettings,
			},
			principal.RoleManager: {
				principal.PermManageUsers,
				principal.PermViewBilling,
				principal.PermGeneratePosters,
				principal.PermViewAnalytics,
			},
			principal.RoleDesigner: {
				principal.PermGeneratePosters,
			},
		},
		done: make(chan struct{}),
	}
}

// roleMapFile is the YAML document shape:
//
//	roles:
//	  Admin: [manage_users, view_billing]
//	  Designer: [generate_posters]
type roleMapFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadRoleMap reads the mapping from a YAML file, replacing the defaults
// for any role present in the file.
func LoadRoleMap(path string) (*RoleMap, error) {
	rm := DefaultRoleMap()
	if err := rm.loadFile(path); err != nil {
		return nil, err
	}
	return rm, nil
}

func (rm *RoleMap) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read role map: %w", err)
	}

	var doc roleMapFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse role map: %w", err)
	}

	parsed := make(map[principal.Role][]principal.Permission, len(doc.Roles))
	for roleName, permNames := range doc.Roles {
		role := principal.Role(roleName)
		if !principal.ValidRole(role) {
			return fmt.Errorf("role map contains unknown role %q", roleName)
		}
		perms := make([]principal.Permission, 0, len(permNames))
		for _, p := range permNames {
			perms = append(perms, principal.Permission(p))
		}
		parsed[role] = perms
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	for role, perms := range parsed {
		rm.perms[role] = perms
	}
	return nil
}

// Watch reloads the mapping whenever the file changes. A broken edit is
// logged and ignored; the previous mapping stays active.
func (rm *RoleMap) Watch(path string, logger *observability.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which breaks
	// direct file watches.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch role map directory: %w", err)
	}

	rm.watcher = watcher
	rm.logger = logger

	go func() {
		for {
			select {
			case <-rm.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := rm.loadFile(path); err != nil {
					logger.WithError(err).Warn("role map reload failed, keeping previous mapping")
					continue
				}
				logger.Infof("role map reloaded from %s", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("role map watcher error")
			}
		}
	}()

	return nil
}

// Close stops the watcher if one is running
func (rm *RoleMap) Close() error {
	if rm.done != nil {
		close(rm.done)
		rm.done = nil
	}
	if rm.watcher != nil {
		return rm.watcher.Close()
	}
	return nil
}

// PermissionsFor returns the permission set for a role. Unknown roles
// get nothing (fail-closed).
func (rm *RoleMap) PermissionsFor(role principal.Role) []principal.Permission {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	perms, ok := rm.perms[role]
	if !ok {
		return nil
	}
	out := make([]principal.Permission, len(perms))
	copy(out, perms)
	return out
}
