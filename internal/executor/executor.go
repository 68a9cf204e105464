package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"opskit/internal/paths"
	"opskit/internal/registry"
	"opskit/internal/resolver"
	"opskit/internal/runtimeenv"
)

// Executor orchestrates the runtime environment, dependency resolution, and
// final dispatch of one tool as a child process.
type Executor struct {
	paths    paths.InstallPaths
	env      *runtimeenv.Manager
	resolver *resolver.Resolver
	log      *zap.SugaredLogger
}

// New wires an executor.
func New(p paths.InstallPaths, env *runtimeenv.Manager, res *resolver.Resolver, log *zap.SugaredLogger) *Executor {
	return &Executor{paths: p, env: env, resolver: res, log: log}
}

// Run satisfies the tool's prerequisites, builds its execution context, and
// dispatches it with inherited standard streams. It returns the child's exit
// code unchanged, or 1 when resolution fails before anything is spawned.
func (e *Executor) Run(ctx context.Context, desc registry.ToolDescriptor, args []string) (int, error) {
	if err := e.prepare(ctx, desc); err != nil {
		return 1, err
	}

	ec, err := e.buildContext(desc)
	if err != nil {
		return 1, err
	}
	defer func() {
		_ = os.RemoveAll(ec.ToolTempDir)
	}()

	env, err := buildEnv(desc, ec)
	if err != nil {
		return 1, err
	}

	// The child runs inside the tool's own directory; restore the caller's
	// directory on every exit path.
	if err := os.Chdir(ec.WorkingDir); err != nil {
		return 1, fmt.Errorf("enter tool directory: %w", err)
	}
	defer func() {
		_ = os.Chdir(ec.CallerWorkingDir)
	}()

	cmd, err := e.command(ctx, desc, args)
	if err != nil {
		return 1, err
	}
	cmd.Dir = ec.WorkingDir
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	e.log.Infow("dispatching tool", "category", desc.Category, "tool", desc.Name, "entry", desc.EntryFile)
	err = cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, fmt.Errorf("dispatch %s: %w", desc.Name, err)
}

// prepare satisfies the shared runtime environment and the tool's system
// dependencies. Any failure prevents the tool from being spawned.
func (e *Executor) prepare(ctx context.Context, desc registry.ToolDescriptor) error {
	needsRuntime := desc.EntryKind == registry.EntryKindScript || desc.HasRequirementManifest
	if needsRuntime {
		if err := e.env.Ensure(ctx); err != nil {
			return err
		}
	}

	if desc.HasRequirementManifest {
		manifest := desc.ManifestPath()
		if !e.env.IsManifestSatisfied(ctx, manifest) {
			ok, message := e.env.InstallManifest(ctx, desc.Name, manifest)
			if !ok {
				return fmt.Errorf("install requirement manifest for %s: %s", desc.Name, message)
			}
		}
	}

	missing := e.resolver.ResolveMissing(ctx, desc.DeclaredDependencies)
	if len(missing) == 0 {
		return nil
	}

	_, failed := e.resolver.InstallAll(ctx, missing)
	if len(failed) > 0 {
		return fmt.Errorf("unresolved dependencies: %v", failed)
	}

	// Re-verify after installing; the cache entries were invalidated.
	if still := e.resolver.ResolveMissing(ctx, desc.DeclaredDependencies); len(still) > 0 {
		return fmt.Errorf("dependencies still missing after install: %v", still)
	}
	return nil
}

// command builds the child invocation: interpreted tools run under the
// shared environment's interpreter, shell tools under sh.
func (e *Executor) command(ctx context.Context, desc registry.ToolDescriptor, args []string) (*exec.Cmd, error) {
	switch desc.EntryKind {
	case registry.EntryKindScript:
		interpreter := e.env.State().Interpreter
		argv := append([]string{desc.EntryFile}, args...)
		return exec.CommandContext(ctx, interpreter, argv...), nil
	case registry.EntryKindShell:
		argv := append([]string{desc.EntryFile}, args...)
		return exec.CommandContext(ctx, "sh", argv...), nil
	default:
		return nil, fmt.Errorf("unknown entry kind %q for %s", desc.EntryKind, desc.Name)
	}
}
