package resolver

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"opskit/internal/config"
	"opskit/internal/logx"
	"opskit/internal/pkgmgr"
	"opskit/internal/platform"
)

type fakeRunner struct {
	results map[string]pkgmgr.Result
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, inv pkgmgr.Invocation, _ time.Duration) pkgmgr.Result {
	key := inv.String()
	f.calls = append(f.calls, key)
	if result, ok := f.results[key]; ok {
		return result
	}
	return pkgmgr.Result{Err: errors.New("not found"), ExitCode: -1}
}

func (f *fakeRunner) count(prefix string) int {
	n := 0
	for _, call := range f.calls {
		if strings.HasPrefix(call, prefix) {
			n++
		}
	}
	return n
}

func linuxProbe(existing ...string) *platform.Probe {
	return &platform.Probe{
		GOOS: "linux",
		LookPath: func(name string) (string, error) {
			for _, cmd := range existing {
				if cmd == name {
					return "/usr/bin/" + name, nil
				}
			}
			return "", errors.New("not found")
		},
	}
}

func boolPtr(v bool) *bool { return &v }

func testDeps(autoInstall bool, specs map[string]config.DependencySpec) config.Dependencies {
	return config.Dependencies{
		Settings: config.Settings{
			AutoInstall:     boolPtr(autoInstall),
			PackageManagers: map[string][]string{"linux": {"apt"}, "darwin": {"brew"}, "freebsd": {"pkg"}},
		},
		Specs: specs,
	}
}

func newTestResolver(deps config.Dependencies, probe *platform.Probe, runner pkgmgr.Runner, out *bytes.Buffer) *Resolver {
	return New(deps, probe, runner, out, logx.Nop())
}

func TestNoCheckMethodIsNeverMissing(t *testing.T) {
	// No check commands, no package for any platform, no detected manager:
	// the permissive default applies.
	deps := testDeps(false, map[string]config.DependencySpec{
		"curl": {Description: "transfer tool"},
	})
	runner := &fakeRunner{} // every detect fails
	r := newTestResolver(deps, linuxProbe(), runner, &bytes.Buffer{})

	missing := r.ResolveMissing(context.Background(), []string{"curl"})
	if len(missing) != 0 {
		t.Fatalf("missing = %v, want none", missing)
	}
}

func TestCheckCommandSatisfies(t *testing.T) {
	deps := testDeps(false, map[string]config.DependencySpec{
		"postgres-client": {Commands: []string{"psql"}},
	})
	runner := &fakeRunner{}
	r := newTestResolver(deps, linuxProbe("psql"), runner, &bytes.Buffer{})

	if missing := r.ResolveMissing(context.Background(), []string{"postgres-client"}); len(missing) != 0 {
		t.Fatalf("missing = %v", missing)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("command probe must not invoke package managers, calls = %v", runner.calls)
	}
}

// A missing check command is not the last word: the package may be
// installed under a binary name the spec does not probe for, so the package
// manager is consulted before declaring the dependency missing.
func TestCommandProbeFailureFallsThroughToPackageCheck(t *testing.T) {
	deps := testDeps(false, map[string]config.DependencySpec{
		"postgres-client": {
			Commands: []string{"psql"},
			Packages: map[string]string{"linux": "postgresql-client"},
		},
	})
	runner := &fakeRunner{results: map[string]pkgmgr.Result{
		"apt-get --version":         {},
		"dpkg -s postgresql-client": {},
	}}
	r := newTestResolver(deps, linuxProbe(), runner, &bytes.Buffer{})

	if missing := r.ResolveMissing(context.Background(), []string{"postgres-client"}); len(missing) != 0 {
		t.Fatalf("missing = %v, want none when the package is installed", missing)
	}
	if got := runner.count("dpkg -s postgresql-client"); got != 1 {
		t.Fatalf("package check consulted %d times, want 1", got)
	}
}

// With both the command probe and the package check negative, the
// dependency is missing.
func TestCommandProbeFailureWithPackageAbsent(t *testing.T) {
	deps := testDeps(false, map[string]config.DependencySpec{
		"postgres-client": {
			Commands: []string{"psql"},
			Packages: map[string]string{"linux": "postgresql-client"},
		},
	})
	runner := &fakeRunner{results: map[string]pkgmgr.Result{
		"apt-get --version":         {},
		"dpkg -s postgresql-client": {ExitCode: 1},
	}}
	r := newTestResolver(deps, linuxProbe(), runner, &bytes.Buffer{})

	missing := r.ResolveMissing(context.Background(), []string{"postgres-client"})
	if len(missing) != 1 || missing[0] != "postgres-client" {
		t.Fatalf("missing = %v, want [postgres-client]", missing)
	}
}

func TestPackageCheckThroughDetectedManager(t *testing.T) {
	deps := testDeps(false, map[string]config.DependencySpec{
		"htop": {Packages: map[string]string{"linux": "htop"}},
	})
	runner := &fakeRunner{results: map[string]pkgmgr.Result{
		"apt-get --version": {},
		"dpkg -s htop":      {ExitCode: 1},
	}}
	r := newTestResolver(deps, linuxProbe(), runner, &bytes.Buffer{})

	missing := r.ResolveMissing(context.Background(), []string{"htop"})
	if len(missing) != 1 || missing[0] != "htop" {
		t.Fatalf("missing = %v, want [htop]", missing)
	}
}

func TestResultsAreCached(t *testing.T) {
	deps := testDeps(false, map[string]config.DependencySpec{
		"htop": {Packages: map[string]string{"linux": "htop"}},
	})
	runner := &fakeRunner{results: map[string]pkgmgr.Result{
		"apt-get --version": {},
		"dpkg -s htop":      {},
	}}
	r := newTestResolver(deps, linuxProbe(), runner, &bytes.Buffer{})

	for i := 0; i < 3; i++ {
		if missing := r.ResolveMissing(context.Background(), []string{"htop"}); len(missing) != 0 {
			t.Fatalf("missing = %v", missing)
		}
	}
	if got := runner.count("dpkg -s htop"); got != 1 {
		t.Fatalf("package checked %d times, want 1 (cache)", got)
	}
}

func TestTimeoutDoesNotBlockOtherChecks(t *testing.T) {
	deps := testDeps(false, map[string]config.DependencySpec{
		"slow": {Packages: map[string]string{"linux": "slow"}},
		"fast": {Packages: map[string]string{"linux": "fast"}},
	})
	runner := &fakeRunner{results: map[string]pkgmgr.Result{
		"apt-get --version": {},
		"dpkg -s slow":      {TimedOut: true, ExitCode: -1},
		"dpkg -s fast":      {},
	}}
	r := newTestResolver(deps, linuxProbe(), runner, &bytes.Buffer{})

	missing := r.ResolveMissing(context.Background(), []string{"slow", "fast"})
	if len(missing) != 1 || missing[0] != "slow" {
		t.Fatalf("missing = %v, want [slow]", missing)
	}
	if got := runner.count("dpkg -s fast"); got != 1 {
		t.Fatal("timeout on one check must not prevent the next")
	}
}

func TestInstallAllGuidanceWhenAutoInstallDisabled(t *testing.T) {
	deps := testDeps(false, map[string]config.DependencySpec{
		"postgres-client": {
			Packages:     map[string]string{"linux": "postgresql-client"},
			Description:  "PostgreSQL client binaries",
			InstallNotes: map[string]string{"linux": "requires the pgdg repository on older releases"},
		},
	})
	runner := &fakeRunner{results: map[string]pkgmgr.Result{
		"apt-get --version": {},
	}}
	var out bytes.Buffer
	r := newTestResolver(deps, linuxProbe(), runner, &out)

	installed, failed := r.InstallAll(context.Background(), []string{"postgres-client"})
	if len(installed) != 0 || len(failed) != 1 {
		t.Fatalf("installed=%v failed=%v", installed, failed)
	}

	guidance := out.String()
	if !strings.Contains(guidance, "sudo apt-get install -y postgresql-client") {
		t.Fatalf("guidance %q missing literal install command", guidance)
	}
	if !strings.Contains(guidance, "requires the pgdg repository") {
		t.Fatalf("guidance %q missing install note", guidance)
	}
	if got := runner.count("sudo apt-get install"); got != 0 {
		t.Fatal("disabled auto-install must not run install commands")
	}
}

func TestInstallAllSequentialAndInvalidatesCache(t *testing.T) {
	deps := testDeps(true, map[string]config.DependencySpec{
		"htop": {Packages: map[string]string{"linux": "htop"}},
		"jq":   {Packages: map[string]string{"linux": "jq"}},
	})
	runner := &fakeRunner{results: map[string]pkgmgr.Result{
		"apt-get --version":          {},
		"dpkg -s htop":               {ExitCode: 1},
		"dpkg -s jq":                 {ExitCode: 1},
		"sudo apt-get install -y htop": {},
		"sudo apt-get install -y jq":   {ExitCode: 100, Stderr: []byte("held broken packages")},
	}}
	var out bytes.Buffer
	r := newTestResolver(deps, linuxProbe(), runner, &out)

	missing := r.ResolveMissing(context.Background(), []string{"htop", "jq"})
	if len(missing) != 2 {
		t.Fatalf("missing = %v", missing)
	}

	installed, failed := r.InstallAll(context.Background(), missing)
	if len(installed) != 1 || installed[0] != "htop" {
		t.Fatalf("installed = %v", installed)
	}
	if len(failed) != 1 || failed[0] != "jq" {
		t.Fatalf("failed = %v", failed)
	}
	if !strings.Contains(out.String(), "held broken packages") {
		t.Fatalf("install failure output not surfaced: %q", out.String())
	}

	// The attempted keys were invalidated; the next resolve re-checks both.
	runner.results["dpkg -s htop"] = pkgmgr.Result{}
	before := runner.count("dpkg -s htop")
	still := r.ResolveMissing(context.Background(), []string{"htop", "jq"})
	if len(still) != 1 || still[0] != "jq" {
		t.Fatalf("still = %v", still)
	}
	if runner.count("dpkg -s htop") != before+1 {
		t.Fatal("cache entry for installed key was not invalidated")
	}
}

func TestManagerPreferenceFallback(t *testing.T) {
	deps := config.Dependencies{
		Settings: config.Settings{
			AutoInstall:     boolPtr(false),
			PackageManagers: map[string][]string{"linux": {"apt", "pacman"}},
		},
		Specs: map[string]config.DependencySpec{
			"htop": {Packages: map[string]string{"linux": "htop"}},
		},
	}
	// apt is not usable on this host; pacman is next in preference order.
	runner := &fakeRunner{results: map[string]pkgmgr.Result{
		"pacman --version": {},
		"pacman -Qi htop":  {},
	}}
	r := newTestResolver(deps, linuxProbe(), runner, &bytes.Buffer{})

	if missing := r.ResolveMissing(context.Background(), []string{"htop"}); len(missing) != 0 {
		t.Fatalf("missing = %v", missing)
	}
}
