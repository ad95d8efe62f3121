package extensions

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest filename expected at an extension's root.
const ManifestFile = "extension.yaml"

// Manifest is the declarative metadata every extension ships.
type Manifest struct {
	ID             string           `yaml:"id" validate:"required,extension_id"`
	Name           string           `yaml:"name" validate:"required"`
	Version        string           `yaml:"version" validate:"required"`
	Author         string           `yaml:"author" validate:"required"`
	Kind           Kind             `yaml:"kind"`
	MinHostVersion string           `yaml:"min_host_version"`
	Dependencies   []Dependency     `yaml:"dependencies"`
	Permissions    []PermissionDecl `yaml:"permissions"`
	Menu           MenuEntry        `yaml:"menu"`
	Schema         SchemaDecl       `yaml:"schema"`
}

// Dependency declares a third-party package requirement.
type Dependency struct {
	Name string `yaml:"name" validate:"required"`
	// Version is an optional constraint: exact ("1.2.0") or minimum (">=1.2.0").
	Version string `yaml:"version"`
}

// PermissionDecl declares one action code contributed by the extension.
// The stored codename becomes "<extension id>.<action>".
type PermissionDecl struct {
	Action string `yaml:"action" validate:"required"`
	Name   string `yaml:"name"`
}

// MenuEntry is the extension's navigation contribution.
type MenuEntry struct {
	Label     string `yaml:"label"`
	URLPrefix string `yaml:"url_prefix"`
	Icon      string `yaml:"icon"`
	Priority  int    `yaml:"priority"`

	// ExtensionID is filled by the registry, not the manifest.
	ExtensionID string `yaml:"-"`
}

// SchemaDecl is the authoritative list of schema identifiers an extension
// owns. The conflict detector treats this block as the source of truth and
// only uses source scanning to warn about undeclared identifiers.
type SchemaDecl struct {
	Namespace string   `yaml:"namespace"`
	Tables    []string `yaml:"tables"`
	Models    []string `yaml:"models"`
}

var manifestValidate = newManifestValidator()

func newManifestValidator() *validator.Validate {
	v := validator.New()
	// Extension ids become directory names, table prefixes and permission
	// namespaces, so the charset is strict.
	_ = v.RegisterValidation("extension_id", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		if id == "" || strings.HasPrefix(id, "_") || strings.HasPrefix(id, ".") {
			return false
		}
		for _, r := range id {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= '0' && r <= '9':
			case r == '_':
			default:
				return false
			}
		}
		return true
	})
	return v
}

// ParseManifest decodes and structurally validates manifest bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("extensions: parse manifest: %w", err)
	}
	if m.Kind == "" {
		m.Kind = KindFree
	}
	if m.Schema.Namespace == "" {
		m.Schema.Namespace = m.ID
	}
	if err := manifestValidate.Struct(&m); err != nil {
		issues := make([]string, 0, 4)
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				issues = append(issues, fmt.Sprintf("manifest field %s fails %q", strings.ToLower(fe.Field()), fe.Tag()))
			}
		} else {
			issues = append(issues, err.Error())
		}
		return nil, &ValidationError{ExtensionID: m.ID, Issues: issues}
	}
	switch m.Kind {
	case KindFree, KindPaid, KindSubscription:
	default:
		return nil, &ValidationError{ExtensionID: m.ID, Issues: []string{fmt.Sprintf("unknown kind %q", m.Kind)}}
	}
	return &m, nil
}

// LoadManifest reads the manifest from an extension directory.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("extensions: read manifest: %w", err)
	}
	return ParseManifest(data)
}

// Codenames returns the fully qualified permission codenames declared by
// the manifest.
func (m *Manifest) Codenames() []string {
	out := make([]string, 0, len(m.Permissions))
	for _, p := range m.Permissions {
		out = append(out, m.ID+"."+p.Action)
	}
	return out
}
