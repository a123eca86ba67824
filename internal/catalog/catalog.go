// Package catalog holds the static registry of callable remote agents.
// It is populated once at startup and read-only for the life of the
// process; a new catalog version requires a restart, not mutation.
package catalog

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/akalogirou/weft/internal/vault"
)

// Descriptor identifies one remote worker agent.
type Descriptor struct {
	Name       string    `yaml:"name" json:"name"`
	Address    string    `yaml:"address" json:"address"`
	Summary    string    `yaml:"summary" json:"summary"`
	Embedding  []float32 `yaml:"embedding,omitempty" json:"-"`
	Credential string    `yaml:"credential,omitempty" json:"-"`
}

// Catalog is the loaded agent registry.
type Catalog struct {
	agents []Descriptor
}

type catalogFile struct {
	Agents []Descriptor `yaml:"agents"`
}

// Load reads the agent catalog from a YAML file. Descriptors without a
// precomputed embedding get a deterministic one derived from their summary.
// Credentials sealed with the vault prefix are decrypted in place; v may be
// nil when no vault is configured.
func Load(path string, v *vault.Vault) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("catalog %s lists no agents", path)
	}

	seen := make(map[string]bool, len(file.Agents))
	for i := range file.Agents {
		a := &file.Agents[i]
		if a.Name == "" || a.Address == "" {
			return nil, fmt.Errorf("catalog entry %d missing name or address", i)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true

		if len(a.Embedding) == 0 {
			a.Embedding = Embed(a.Summary)
		}
		if a.Credential != "" {
			if v == nil && len(a.Credential) > len(vault.Prefix) && a.Credential[:len(vault.Prefix)] == vault.Prefix {
				return nil, fmt.Errorf("agent %s has sealed credential but no vault passphrase is configured", a.Name)
			}
			if v != nil {
				plain, err := v.DecryptString(a.Credential)
				if err != nil {
					return nil, fmt.Errorf("agent %s credential: %w", a.Name, err)
				}
				a.Credential = plain
			}
		}
	}

	slog.Info("agent catalog loaded", "path", path, "agents", len(file.Agents))
	return &Catalog{agents: file.Agents}, nil
}

// New builds a catalog from already-validated descriptors. Descriptors
// without an embedding get one derived from their summary.
func New(agents []Descriptor) *Catalog {
	for i := range agents {
		if len(agents[i].Embedding) == 0 {
			agents[i].Embedding = Embed(agents[i].Summary)
		}
	}
	return &Catalog{agents: agents}
}

// Agents returns the descriptors. The slice must be treated as read-only.
func (c *Catalog) Agents() []Descriptor {
	return c.agents
}

// Get looks an agent up by name.
func (c *Catalog) Get(name string) (Descriptor, bool) {
	for _, a := range c.agents {
		if a.Name == name {
			return a, true
		}
	}
	return Descriptor{}, false
}
