package pkgmgr

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Per-operation timeouts. A timeout is an ordinary failed result; nothing in
// this package retries.
const (
	DetectTimeout  = 5 * time.Second
	CheckTimeout   = 10 * time.Second
	ListTimeout    = 30 * time.Second
	InstallTimeout = 300 * time.Second
)

// InstallResult reports one install attempt.
type InstallResult struct {
	Ok       bool
	Output   string
	TimedOut bool
}

// Adapter drives one package manager through its descriptor. All variation
// between managers lives in the descriptor data.
type Adapter struct {
	desc   Descriptor
	runner Runner
	log    *zap.SugaredLogger
}

// NewAdapter binds a descriptor to a runner.
func NewAdapter(desc Descriptor, runner Runner, log *zap.SugaredLogger) *Adapter {
	return &Adapter{desc: desc, runner: runner, log: log}
}

// Name returns the manager name.
func (a *Adapter) Name() string {
	return a.desc.Name
}

// InstallCommand renders the human-typeable install command for a package.
func (a *Adapter) InstallCommand(pkg string) string {
	return a.desc.InstallTemplate.Render(pkg).String()
}

// Detect reports whether the manager is usable on this host.
func (a *Adapter) Detect(ctx context.Context) bool {
	result := a.runner.Run(ctx, a.desc.Detect, DetectTimeout)
	if !result.Ok() {
		a.log.Debugw("package manager not detected", "manager", a.desc.Name, "timedOut", result.TimedOut)
	}
	return result.Ok()
}

// ListInstalled returns the normalized names of installed packages. Any
// failure yields an empty list; callers infer "not installed" from absence.
func (a *Adapter) ListInstalled(ctx context.Context) []string {
	result := a.runner.Run(ctx, a.desc.List, ListTimeout)
	if !result.Ok() {
		a.log.Debugw("list installed failed", "manager", a.desc.Name, "timedOut", result.TimedOut)
		return nil
	}
	return parseList(a.desc.Rule, string(result.Stdout))
}

// IsInstalled reports whether a package is present, preferring the manager's
// dedicated existence check and falling back to list containment.
func (a *Adapter) IsInstalled(ctx context.Context, pkg string) bool {
	if !a.desc.IsInstalledTemplate.IsZero() {
		result := a.runner.Run(ctx, a.desc.IsInstalledTemplate.Render(pkg), CheckTimeout)
		return result.Ok()
	}
	for _, name := range a.ListInstalled(ctx) {
		if name == pkg {
			return true
		}
	}
	return false
}

// Install attempts to install a package, surfacing the manager's combined
// output on failure.
func (a *Adapter) Install(ctx context.Context, pkg string) InstallResult {
	inv := a.desc.InstallTemplate.Render(pkg)
	a.log.Infow("installing package", "manager", a.desc.Name, "package", pkg, "command", inv.String())
	result := a.runner.Run(ctx, inv, InstallTimeout)
	return InstallResult{
		Ok:       result.Ok(),
		Output:   result.CombinedOutput(),
		TimedOut: result.TimedOut,
	}
}

// parseList applies a manager's parse rule to raw list output.
func parseList(rule ParseRule, output string) []string {
	lines := strings.Split(output, "\n")
	if rule.SkipLines > 0 {
		if rule.SkipLines >= len(lines) {
			return nil
		}
		lines = lines[rule.SkipLines:]
	}

	var names []string
line:
	for _, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if rule.LinePrefix != "" && !strings.HasPrefix(trimmed, rule.LinePrefix) {
			continue
		}
		for _, prefix := range rule.ExcludePrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				continue line
			}
		}

		var fields []string
		if rule.Separator == "" {
			fields = strings.Fields(trimmed)
		} else {
			for _, field := range strings.Split(trimmed, rule.Separator) {
				fields = append(fields, strings.TrimSpace(field))
			}
		}
		if rule.FieldIndex >= len(fields) {
			continue
		}

		name := fields[rule.FieldIndex]
		for _, token := range rule.SuffixCutTokens {
			if idx := strings.Index(name, token); idx >= 0 {
				name = name[:idx]
			}
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
