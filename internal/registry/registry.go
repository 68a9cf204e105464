package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"opskit/internal/config"
	"opskit/internal/paths"
)

// EntryKind distinguishes how a tool's entry file is dispatched.
type EntryKind string

const (
	EntryKindScript EntryKind = "interpreted-script"
	EntryKindShell  EntryKind = "shell-script"
)

// Recognized entry file names, one per kind.
const (
	scriptEntry = "main.py"
	shellEntry  = "run.sh"

	manifestFile = "requirements.txt"
	localEnvFile = ".env"
)

// ToolDescriptor is the immutable record for one discovered tool.
type ToolDescriptor struct {
	Name                   string    `json:"name"`
	Category               string    `json:"category"`
	Path                   string    `json:"path"`
	EntryFile              string    `json:"entry_file"`
	EntryKind              EntryKind `json:"entry_kind"`
	Version                string    `json:"version,omitempty"`
	Description            string    `json:"description,omitempty"`
	DeclaredDependencies   []string  `json:"dependencies,omitempty"`
	HasRequirementManifest bool      `json:"has_requirement_manifest"`
	HasLocalEnvFile        bool      `json:"has_local_env_file"`
}

// ManifestPath returns the tool's requirement manifest location.
func (d ToolDescriptor) ManifestPath() string {
	return filepath.Join(d.Path, manifestFile)
}

// LocalEnvPath returns the tool's optional local env file location.
func (d ToolDescriptor) LocalEnvPath() string {
	return filepath.Join(d.Path, localEnvFile)
}

// Registry discovers tools under <root>/tools/<category>/<name>/ and merges
// catalog metadata. Scan results are cached in memory until Refresh.
type Registry struct {
	paths   paths.InstallPaths
	catalog config.Catalog
	log     *zap.SugaredLogger

	cached []ToolDescriptor
	valid  bool
}

// New builds a registry over the installation's tools tree.
func New(p paths.InstallPaths, catalog config.Catalog, log *zap.SugaredLogger) *Registry {
	return &Registry{paths: p, catalog: catalog, log: log}
}

// Tools returns the discovered descriptors, scanning on first use.
func (r *Registry) Tools() ([]ToolDescriptor, error) {
	if r.valid {
		return r.cached, nil
	}
	return r.Refresh()
}

// Refresh discards the cached scan and walks the tools tree again.
func (r *Registry) Refresh() ([]ToolDescriptor, error) {
	descriptors, err := r.scan()
	if err != nil {
		return nil, err
	}
	r.cached = descriptors
	r.valid = true
	return descriptors, nil
}

// Find locates one tool by category and name.
func (r *Registry) Find(category, name string) (ToolDescriptor, bool, error) {
	tools, err := r.Tools()
	if err != nil {
		return ToolDescriptor{}, false, err
	}
	for _, tool := range tools {
		if tool.Category == category && tool.Name == name {
			return tool, true, nil
		}
	}
	return ToolDescriptor{}, false, nil
}

func (r *Registry) scan() ([]ToolDescriptor, error) {
	categories, err := os.ReadDir(r.paths.ToolsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tools directory: %w", err)
	}

	var descriptors []ToolDescriptor
	for _, category := range categories {
		if !category.IsDir() {
			continue
		}
		categoryDir := filepath.Join(r.paths.ToolsDir, category.Name())
		toolDirs, err := os.ReadDir(categoryDir)
		if err != nil {
			return nil, fmt.Errorf("read category %s: %w", category.Name(), err)
		}

		for _, toolDir := range toolDirs {
			if !toolDir.IsDir() {
				continue
			}
			desc, ok := r.describe(category.Name(), toolDir.Name(), filepath.Join(categoryDir, toolDir.Name()))
			if ok {
				descriptors = append(descriptors, desc)
			}
		}
	}
	return descriptors, nil
}

// describe builds a descriptor for one tool directory. Directories with no
// recognized entry file are skipped silently; they may be reserved for
// future use.
func (r *Registry) describe(category, name, dir string) (ToolDescriptor, bool) {
	entries, err := doublestar.FilepathGlob(filepath.Join(dir, "{"+scriptEntry+","+shellEntry+"}"))
	if err != nil {
		r.log.Warnw("entry file scan failed", "tool", name, "error", err)
		return ToolDescriptor{}, false
	}
	switch len(entries) {
	case 0:
		return ToolDescriptor{}, false
	case 1:
	default:
		r.log.Warnw("multiple entry files, skipping tool", "category", category, "tool", name)
		return ToolDescriptor{}, false
	}

	entryFile := filepath.Base(entries[0])
	kind := EntryKindShell
	if entryFile == scriptEntry {
		kind = EntryKindScript
	}

	desc := ToolDescriptor{
		Name:      name,
		Category:  category,
		Path:      dir,
		EntryFile: entryFile,
		EntryKind: kind,
	}

	if meta, ok := r.catalog.Lookup(category, name); ok {
		desc.Version = meta.Version
		desc.Description = meta.Description
		desc.DeclaredDependencies = append([]string(nil), meta.Dependencies...)
	}

	if exists, _ := paths.FileExists(filepath.Join(dir, manifestFile)); exists {
		desc.HasRequirementManifest = true
	}
	if exists, _ := paths.FileExists(filepath.Join(dir, localEnvFile)); exists {
		desc.HasLocalEnvFile = true
	}
	return desc, true
}
