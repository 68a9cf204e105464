package runtimeenv

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"opskit/internal/paths"
	"opskit/internal/pkgmgr"
)

const (
	lockWait     = 10 * time.Second
	lockInterval = 100 * time.Millisecond
)

// State describes the shared runtime environment as probed from disk.
type State struct {
	RootPath    string
	Exists      bool
	Interpreter string
	Installer   string
}

// Manager owns the single shared interpreter environment reused by every
// tool. Creation and manifest installs take an advisory file lock so two
// concurrent launcher processes do not trample each other; the lock is
// advisory only and acquisition failure degrades to proceeding unlocked.
type Manager struct {
	paths  paths.InstallPaths
	runner pkgmgr.Runner
	log    *zap.SugaredLogger

	// BasePython locates the interpreter used to create the environment.
	BasePython string
}

// NewManager wires a manager for the given installation.
func NewManager(p paths.InstallPaths, runner pkgmgr.Runner, log *zap.SugaredLogger) *Manager {
	return &Manager{paths: p, runner: runner, log: log, BasePython: "python3"}
}

// State probes the filesystem for the environment's interpreter and
// installer. Nothing is persisted beyond the directory itself.
func (m *Manager) State() State {
	st := State{
		RootPath:    m.paths.RuntimeDir,
		Interpreter: m.interpreterPath(),
		Installer:   m.installerPath(),
	}
	if info, err := os.Stat(st.Interpreter); err == nil && info.Mode().IsRegular() {
		st.Exists = true
	}
	return st
}

// Ensure creates the environment on first use and upgrades its installer
// once. Calling it on a healthy environment performs no side effects.
// Failures here are fatal for the current tool invocation.
func (m *Manager) Ensure(ctx context.Context) error {
	if m.State().Exists {
		return nil
	}

	unlock := m.acquireLock(ctx)
	defer unlock()

	// Re-check under the lock: another process may have just created it.
	if m.State().Exists {
		return nil
	}

	m.log.Infow("creating shared runtime environment", "path", m.paths.RuntimeDir)
	create := pkgmgr.Invocation{Argv: []string{m.BasePython, "-m", "venv", m.paths.RuntimeDir}}
	if result := m.runner.Run(ctx, create, pkgmgr.InstallTimeout); !result.Ok() {
		return fmt.Errorf("create runtime environment: %s", failureReason(result))
	}

	upgrade := pkgmgr.Invocation{Argv: []string{m.installerPath(), "install", "--upgrade", "pip"}}
	if result := m.runner.Run(ctx, upgrade, pkgmgr.InstallTimeout); !result.Ok() {
		return fmt.Errorf("upgrade installer: %s", failureReason(result))
	}
	return nil
}

// IsManifestSatisfied reports whether every package named in the manifest is
// already present in the environment. Introspection failure reports false.
func (m *Manager) IsManifestSatisfied(ctx context.Context, manifestPath string) bool {
	required, err := ReadManifest(manifestPath)
	if err != nil {
		m.log.Debugw("read manifest failed", "path", manifestPath, "error", err)
		return false
	}
	if len(required) == 0 {
		return true
	}

	list := pkgmgr.Invocation{Argv: []string{m.installerPath(), "list", "--format=freeze"}}
	result := m.runner.Run(ctx, list, pkgmgr.ListTimeout)
	if !result.Ok() {
		return false
	}

	installed := map[string]bool{}
	for _, line := range splitLines(string(result.Stdout)) {
		installed[NormalizeName(RequirementName(line))] = true
	}
	for _, req := range required {
		if !installed[NormalizeName(RequirementName(req))] {
			return false
		}
	}
	return true
}

// InstallManifest installs a tool's requirement manifest into the shared
// environment. The upgrade flag makes re-runs after manifest edits converge
// instead of failing on version conflicts. On success a copy of the manifest
// is archived keyed by tool name.
func (m *Manager) InstallManifest(ctx context.Context, toolName, manifestPath string) (bool, string) {
	unlock := m.acquireLock(ctx)
	defer unlock()

	install := pkgmgr.Invocation{Argv: []string{
		m.installerPath(), "install",
		"-r", manifestPath,
		"--cache-dir", m.paths.DownloadCacheDir,
		"--upgrade",
	}}
	result := m.runner.Run(ctx, install, pkgmgr.InstallTimeout)
	if !result.Ok() {
		return false, failureReason(result)
	}

	if err := m.archiveManifest(toolName, manifestPath); err != nil {
		m.log.Warnw("archive manifest failed", "tool", toolName, "error", err)
	}
	return true, result.CombinedOutput()
}

// ValidateIntegrity confirms the interpreter exists and the installer
// responds, independent of any tool's manifest.
func (m *Manager) ValidateIntegrity(ctx context.Context) (bool, string) {
	st := m.State()
	if !st.Exists {
		return false, fmt.Sprintf("runtime environment missing at %s", st.RootPath)
	}

	probe := pkgmgr.Invocation{Argv: []string{st.Interpreter, "--version"}}
	if result := m.runner.Run(ctx, probe, pkgmgr.DetectTimeout); !result.Ok() {
		return false, fmt.Sprintf("interpreter not responding: %s", failureReason(result))
	}

	probe = pkgmgr.Invocation{Argv: []string{st.Installer, "--version"}}
	if result := m.runner.Run(ctx, probe, pkgmgr.DetectTimeout); !result.Ok() {
		return false, fmt.Sprintf("installer not responding: %s", failureReason(result))
	}
	return true, ""
}

func (m *Manager) interpreterPath() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(m.paths.RuntimeDir, "Scripts", "python.exe")
	}
	return filepath.Join(m.paths.RuntimeDir, "bin", "python")
}

func (m *Manager) installerPath() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(m.paths.RuntimeDir, "Scripts", "pip.exe")
	}
	return filepath.Join(m.paths.RuntimeDir, "bin", "pip")
}

func (m *Manager) acquireLock(ctx context.Context) func() {
	if err := os.MkdirAll(m.paths.CacheDir, 0o755); err != nil {
		m.log.Warnw("prepare cache dir for lock failed", "error", err)
		return func() {}
	}

	lock := flock.New(filepath.Join(m.paths.CacheDir, "runtime.lock"))
	lockCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, lockInterval)
	if err != nil || !locked {
		m.log.Warnw("runtime lock not acquired, proceeding unlocked", "error", err)
		return func() {}
	}
	return func() { _ = lock.Unlock() }
}

func (m *Manager) archiveManifest(toolName, manifestPath string) error {
	if err := os.MkdirAll(m.paths.ManifestArchive, 0o755); err != nil {
		return fmt.Errorf("prepare manifest archive: %w", err)
	}

	src, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer src.Close()

	dest, err := os.Create(filepath.Join(m.paths.ManifestArchive, toolName+".txt"))
	if err != nil {
		return fmt.Errorf("create archive copy: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return fmt.Errorf("copy manifest: %w", err)
	}
	return nil
}

func failureReason(result pkgmgr.Result) string {
	switch {
	case result.TimedOut:
		return "timed out"
	case result.Err != nil:
		return result.Err.Error()
	default:
		if out := result.CombinedOutput(); out != "" {
			return out
		}
		return fmt.Sprintf("exit code %d", result.ExitCode)
	}
}
