package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ToolMeta carries the catalog metadata for one tool, keyed in the document
// by "category.name".
type ToolMeta struct {
	Version      string   `yaml:"version"`
	Description  string   `yaml:"description"`
	Dependencies []string `yaml:"dependencies"`
}

// Catalog is the central declarative tool catalog.
type Catalog struct {
	Tools map[string]ToolMeta `yaml:"tools"`
}

// Lookup returns catalog metadata for a (category, name) pair.
func (c Catalog) Lookup(category, name string) (ToolMeta, bool) {
	meta, ok := c.Tools[category+"."+name]
	return meta, ok
}

// DependencySpec describes one system-level dependency: commands that prove
// it is present, OS package names per platform key, and human install notes.
type DependencySpec struct {
	Commands     []string          `yaml:"commands"`
	Packages     map[string]string `yaml:"packages"`
	Description  string            `yaml:"description"`
	InstallNotes map[string]string `yaml:"install_notes"`
}

// PackageFor returns the configured package name for the most specific
// matching platform key, trying the distribution id before the OS family.
func (s DependencySpec) PackageFor(keys ...string) (string, bool) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if pkg, ok := s.Packages[key]; ok && pkg != "" {
			return pkg, true
		}
	}
	if pkg, ok := s.Packages["default"]; ok && pkg != "" {
		return pkg, true
	}
	return "", false
}

// NoteFor returns the install note for the most specific matching platform
// key, if any.
func (s DependencySpec) NoteFor(keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if note, ok := s.InstallNotes[key]; ok {
			return note
		}
	}
	return s.InstallNotes["default"]
}

// Settings controls how dependency resolution behaves.
type Settings struct {
	AutoInstall     *bool               `yaml:"auto_install"`
	SuggestInstall  *bool               `yaml:"suggest_install"`
	CheckCommands   *bool               `yaml:"check_commands"`
	PackageManagers map[string][]string `yaml:"package_managers"`
}

// AutoInstallEnabled reports the effective auto_install flag (default false).
func (s Settings) AutoInstallEnabled() bool {
	return s.AutoInstall != nil && *s.AutoInstall
}

// SuggestInstallEnabled reports the effective suggest_install flag
// (default true).
func (s Settings) SuggestInstallEnabled() bool {
	return s.SuggestInstall == nil || *s.SuggestInstall
}

// CheckCommandsEnabled reports the effective check_commands flag
// (default true).
func (s Settings) CheckCommandsEnabled() bool {
	return s.CheckCommands == nil || *s.CheckCommands
}

// ManagerOrder returns the preferred package manager order for a platform
// key, trying the distribution id before the OS family.
func (s Settings) ManagerOrder(keys ...string) []string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if order, ok := s.PackageManagers[key]; ok && len(order) > 0 {
			return order
		}
	}
	return nil
}

// Dependencies is the system dependency document: a settings block plus one
// DependencySpec per dependency key.
type Dependencies struct {
	Settings Settings                  `yaml:"settings"`
	Specs    map[string]DependencySpec `yaml:"dependencies"`
}

// Spec returns the declared spec for a dependency key. Unknown keys resolve
// to a synthetic spec that treats the key as both the command to probe and
// the package to install, so tools can declare plain binary names without
// editing the document.
func (d Dependencies) Spec(key string) DependencySpec {
	if spec, ok := d.Specs[key]; ok {
		return spec
	}
	return DependencySpec{
		Commands:    []string{key},
		Packages:    map[string]string{"default": key},
		Description: key,
	}
}

// Declared reports whether the key appears in the document.
func (d Dependencies) Declared(key string) bool {
	_, ok := d.Specs[key]
	return ok
}

func defaultSettings() Settings {
	return Settings{
		PackageManagers: map[string][]string{
			"linux":   {"apt", "dnf", "yum", "pacman", "zypper", "apk", "snap", "flatpak"},
			"darwin":  {"brew", "port"},
			"freebsd": {"pkg"},
		},
	}
}

// LoadCatalog reads the tool catalog document. A missing file resolves to an
// empty catalog, not an error.
func LoadCatalog(path string) (Catalog, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Catalog{Tools: map[string]ToolMeta{}}, nil
		}
		return Catalog{}, fmt.Errorf("read tool catalog: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(contents, &cat); err != nil {
		return Catalog{}, fmt.Errorf("unmarshal tool catalog: %w", err)
	}
	if cat.Tools == nil {
		cat.Tools = map[string]ToolMeta{}
	}
	return cat, nil
}

// LoadDependencies reads the system dependency document. A missing file
// resolves to an empty document with default settings, not an error.
func LoadDependencies(path string) (Dependencies, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Dependencies{Settings: defaultSettings(), Specs: map[string]DependencySpec{}}, nil
		}
		return Dependencies{}, fmt.Errorf("read dependency document: %w", err)
	}

	var deps Dependencies
	if err := yaml.Unmarshal(contents, &deps); err != nil {
		return Dependencies{}, fmt.Errorf("unmarshal dependency document: %w", err)
	}
	if deps.Specs == nil {
		deps.Specs = map[string]DependencySpec{}
	}

	// Fill unset settings fields from the defaults; values present in the
	// document win.
	if err := mergo.Merge(&deps.Settings, defaultSettings()); err != nil {
		return Dependencies{}, fmt.Errorf("apply default settings: %w", err)
	}
	return deps, nil
}

// SplitToolKey splits a "category.name" catalog key.
func SplitToolKey(key string) (category, name string, ok bool) {
	category, name, ok = strings.Cut(key, ".")
	if !ok || category == "" || name == "" {
		return "", "", false
	}
	return category, name, true
}
