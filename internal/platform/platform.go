package platform

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Probe answers questions about the host platform. It carries no state of
// its own; every call is re-derived so callers decide what to cache.
type Probe struct {
	// OSReleaseFiles are consulted in order for the Linux distribution id.
	OSReleaseFiles []string
	// LookPath is swappable for tests; defaults to exec.LookPath.
	LookPath func(string) (string, error)
	// GOOS overrides the detected OS family, for tests.
	GOOS string
}

// NewProbe returns a probe wired to the real host.
func NewProbe() *Probe {
	return &Probe{
		OSReleaseFiles: []string{"/etc/os-release", "/usr/lib/os-release"},
		LookPath:       exec.LookPath,
		GOOS:           runtime.GOOS,
	}
}

// OSFamily returns the platform key for the running OS: "linux", "darwin",
// or "freebsd". Other systems report their GOOS value; the package manager
// catalog simply has no entries for them.
func (p *Probe) OSFamily() string {
	if p.GOOS != "" {
		return p.GOOS
	}
	return runtime.GOOS
}

// LinuxDistributionID returns the ID field from the os-release database
// ("debian", "ubuntu", "fedora", ...). It returns "unknown" when the file is
// missing or malformed, never an error.
func (p *Probe) LinuxDistributionID() string {
	if p.OSFamily() != "linux" {
		return "unknown"
	}
	for _, path := range p.OSReleaseFiles {
		if id := parseOSReleaseID(path); id != "" {
			return id
		}
	}
	return "unknown"
}

// CommandExists reports whether an executable is resolvable on the search
// path.
func (p *Probe) CommandExists(name string) bool {
	if name == "" {
		return false
	}
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	_, err := lookPath(name)
	return err == nil
}

func parseOSReleaseID(path string) string {
	contents, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		value, ok := strings.CutPrefix(line, "ID=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}
