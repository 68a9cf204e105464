package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// InstallPaths captures canonical locations inside an OpsKit installation
// root.
type InstallPaths struct {
	Root             string
	ToolsDir         string
	CacheDir         string
	DownloadCacheDir string
	ManifestArchive  string
	RuntimeDir       string
	LogsDir          string
	CatalogFile      string
	DependenciesFile string
}

// Resolve determines the installation root using the optional --root flag,
// the OPSKIT_ROOT environment variable, or the current working directory.
func Resolve(rootFlag string) (InstallPaths, error) {
	var (
		root string
		err  error
	)

	switch {
	case rootFlag != "":
		root, err = filepath.Abs(rootFlag)
	case os.Getenv("OPSKIT_ROOT") != "":
		root, err = filepath.Abs(os.Getenv("OPSKIT_ROOT"))
	default:
		root, err = os.Getwd()
	}
	if err != nil {
		return InstallPaths{}, fmt.Errorf("resolve install root: %w", err)
	}

	return New(root), nil
}

// New builds the standard layout under the given root.
func New(root string) InstallPaths {
	cacheDir := filepath.Join(root, "cache")
	configDir := filepath.Join(root, "config")
	return InstallPaths{
		Root:             root,
		ToolsDir:         filepath.Join(root, "tools"),
		CacheDir:         cacheDir,
		DownloadCacheDir: filepath.Join(cacheDir, "pip"),
		ManifestArchive:  filepath.Join(cacheDir, "manifests"),
		RuntimeDir:       filepath.Join(root, ".venv"),
		LogsDir:          filepath.Join(root, "logs"),
		CatalogFile:      filepath.Join(configDir, "tools.yaml"),
		DependenciesFile: filepath.Join(configDir, "dependencies.yaml"),
	}
}

// EnsureMetaDirs creates the cache and logs hierarchy. The runtime directory
// is created lazily by the runtime environment manager, and the tools tree is
// owned by tool authors.
func (p InstallPaths) EnsureMetaDirs() error {
	dirs := []string{p.CacheDir, p.DownloadCacheDir, p.ManifestArchive, p.LogsDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
