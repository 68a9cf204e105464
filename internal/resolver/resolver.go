package resolver

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"opskit/internal/config"
	"opskit/internal/pkgmgr"
	"opskit/internal/platform"
)

// Resolver maps declared dependency keys to OS packages for the detected
// platform and decides what is missing. It owns its cache and clock; build
// one per process (or per test) instead of sharing globals.
type Resolver struct {
	deps   config.Dependencies
	probe  *platform.Probe
	cache  *pkgmgr.Cache
	runner pkgmgr.Runner
	log    *zap.SugaredLogger
	out    io.Writer
}

// New builds a resolver. Guidance text for manual installs is written to
// out.
func New(deps config.Dependencies, probe *platform.Probe, runner pkgmgr.Runner, out io.Writer, log *zap.SugaredLogger) *Resolver {
	return &Resolver{
		deps:   deps,
		probe:  probe,
		cache:  pkgmgr.NewCache(),
		runner: runner,
		log:    log,
		out:    out,
	}
}

// platformKeys returns lookup keys from most to least specific.
func (r *Resolver) platformKeys() []string {
	family := r.probe.OSFamily()
	if family == "linux" {
		if id := r.probe.LinuxDistributionID(); id != "unknown" {
			return []string{id, family}
		}
	}
	return []string{family}
}

// managerOrder yields the preference-ordered package manager names for this
// platform, falling back to catalog order when settings are silent.
func (r *Resolver) managerOrder() []string {
	keys := r.platformKeys()
	if order := r.deps.Settings.ManagerOrder(keys...); order != nil {
		return order
	}
	return pkgmgr.Names(r.probe.OSFamily())
}

// detectedAdapter returns an adapter for the first preferred manager that is
// both in the catalog for this platform and usable on this host.
func (r *Resolver) detectedAdapter(ctx context.Context) *pkgmgr.Adapter {
	family := r.probe.OSFamily()
	for _, name := range r.managerOrder() {
		desc, ok := pkgmgr.Lookup(family, name)
		if !ok {
			continue
		}
		adapter := pkgmgr.NewAdapter(desc, r.runner, r.log)
		if adapter.Detect(ctx) {
			return adapter
		}
	}
	return nil
}

// ResolveMissing returns the declared dependency keys that are not
// satisfied on this host. Keys with no way to verify are treated as
// satisfied: blocking a tool on an unverifiable platform helps no one.
func (r *Resolver) ResolveMissing(ctx context.Context, declared []string) []string {
	if len(declared) == 0 {
		return nil
	}

	var adapter *pkgmgr.Adapter
	adapterProbed := false

	var missing []string
	for _, key := range declared {
		if satisfied, ok := r.cache.IsSatisfied(key); ok {
			if !satisfied {
				missing = append(missing, key)
			}
			continue
		}

		spec := r.deps.Spec(key)
		satisfied := r.checkSatisfied(ctx, spec, func() *pkgmgr.Adapter {
			if !adapterProbed {
				adapter = r.detectedAdapter(ctx)
				adapterProbed = true
			}
			return adapter
		})

		r.cache.Record(key, satisfied)
		if !satisfied {
			missing = append(missing, key)
		}
	}
	return missing
}

// checkSatisfied derives one spec's verdict. A found check command settles
// it; a failed command probe falls through to the package manager, since the
// installed package may ship its binary under a different name. Only a spec
// with no way to verify at all is assumed satisfied (permissive default).
func (r *Resolver) checkSatisfied(ctx context.Context, spec config.DependencySpec, getAdapter func() *pkgmgr.Adapter) bool {
	satisfied, decided := r.checkCommands(spec)
	if satisfied {
		return true
	}

	pkg, havePkg := spec.PackageFor(r.platformKeys()...)
	if havePkg {
		if adapter := getAdapter(); adapter != nil {
			return adapter.IsInstalled(ctx, pkg)
		}
	}

	// No package check was possible. A failed command probe stands; with no
	// verdict at all, assume present rather than block the tool.
	return !decided
}

// checkCommands probes the spec's check commands. The second return reports
// whether a verdict was reached at all.
func (r *Resolver) checkCommands(spec config.DependencySpec) (satisfied, decided bool) {
	if !r.deps.Settings.CheckCommandsEnabled() || len(spec.Commands) == 0 {
		return false, false
	}
	for _, cmd := range spec.Commands {
		if r.probe.CommandExists(cmd) {
			return true, true
		}
	}
	return false, true
}

// InstallAll attempts to install every missing key sequentially — package
// managers commonly take exclusive locks, so never in parallel. When
// auto-install is disabled it prints guidance instead and reports everything
// as failed. Each attempted key's cache entry is invalidated regardless of
// outcome so the next resolve re-verifies.
func (r *Resolver) InstallAll(ctx context.Context, missing []string) (installed, failed []string) {
	if len(missing) == 0 {
		return nil, nil
	}

	adapter := r.detectedAdapter(ctx)

	if !r.deps.Settings.AutoInstallEnabled() {
		if r.deps.Settings.SuggestInstallEnabled() {
			r.printGuidance(adapter, missing)
		}
		return nil, append([]string(nil), missing...)
	}

	if adapter == nil {
		fmt.Fprintln(r.out, "no usable package manager detected; install the missing dependencies manually:")
		r.printGuidance(nil, missing)
		return nil, append([]string(nil), missing...)
	}

	for _, key := range missing {
		spec := r.deps.Spec(key)
		pkg, ok := spec.PackageFor(r.platformKeys()...)
		if !ok {
			failed = append(failed, key)
			continue
		}

		result := adapter.Install(ctx, pkg)
		r.cache.Invalidate(key)
		if result.Ok {
			installed = append(installed, key)
			continue
		}

		reason := result.Output
		if result.TimedOut {
			reason = "install timed out"
		}
		r.log.Warnw("install failed", "dependency", key, "package", pkg, "manager", adapter.Name(), "reason", reason)
		fmt.Fprintf(r.out, "failed to install %s (%s): %s\n", key, pkg, reason)
		failed = append(failed, key)
	}
	return installed, failed
}

// Revalidate drops cached verdicts for the given keys (all keys when none
// are given) and re-derives them.
func (r *Resolver) Revalidate(ctx context.Context, declared []string) []string {
	if len(declared) == 0 {
		r.cache.Clear()
		return nil
	}
	for _, key := range declared {
		r.cache.Invalidate(key)
	}
	return r.ResolveMissing(ctx, declared)
}

// printGuidance emits, for each missing key, the exact platform-specific
// install command plus any configured note, so a human can finish the job.
func (r *Resolver) printGuidance(adapter *pkgmgr.Adapter, missing []string) {
	keys := append([]string(nil), missing...)
	sort.Strings(keys)

	for _, key := range keys {
		spec := r.deps.Spec(key)
		desc := spec.Description
		if desc == "" {
			desc = key
		}
		fmt.Fprintf(r.out, "missing dependency: %s (%s)\n", key, desc)

		pkg, ok := spec.PackageFor(r.platformKeys()...)
		if ok && adapter != nil {
			fmt.Fprintf(r.out, "  install with: %s\n", adapter.InstallCommand(pkg))
		} else if ok {
			fmt.Fprintf(r.out, "  package name: %s\n", pkg)
		}
		if note := spec.NoteFor(r.platformKeys()...); note != "" {
			fmt.Fprintf(r.out, "  note: %s\n", note)
		}
	}
}
