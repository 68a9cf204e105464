package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"opskit/internal/config"
	"opskit/internal/executor"
	"opskit/internal/logx"
	"opskit/internal/paths"
	"opskit/internal/pkgmgr"
	"opskit/internal/platform"
	"opskit/internal/registry"
	"opskit/internal/resolver"
	"opskit/internal/runtimeenv"
)

// app holds one fully wired launcher instance for the duration of a command.
type app struct {
	paths    paths.InstallPaths
	catalog  config.Catalog
	deps     config.Dependencies
	log      *zap.SugaredLogger
	logFile  io.Closer
	registry *registry.Registry
	env      *runtimeenv.Manager
	resolver *resolver.Resolver
	executor *executor.Executor
}

// buildApp resolves paths, loads both config documents, and wires every
// component around one runner and one logger.
func buildApp(cmd *cobra.Command) (*app, error) {
	p, err := paths.Resolve(rootDir)
	if err != nil {
		return nil, err
	}
	if err := p.EnsureMetaDirs(); err != nil {
		return nil, err
	}

	log, closer, err := logx.New(p, verbose)
	if err != nil {
		return nil, err
	}

	catalog, err := config.LoadCatalog(p.CatalogFile)
	if err != nil {
		closer.Close()
		return nil, err
	}
	deps, err := config.LoadDependencies(p.DependenciesFile)
	if err != nil {
		closer.Close()
		return nil, err
	}

	runner := pkgmgr.ExecRunner{}
	probe := platform.NewProbe()
	env := runtimeenv.NewManager(p, runner, log)
	res := resolver.New(deps, probe, runner, cmd.OutOrStdout(), log)

	return &app{
		paths:    p,
		catalog:  catalog,
		deps:     deps,
		log:      log,
		logFile:  closer,
		registry: registry.New(p, catalog, log),
		env:      env,
		resolver: res,
		executor: executor.New(p, env, res, log),
	}, nil
}

func (a *app) close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// findTool resolves a "category/name" argument against the registry.
func (a *app) findTool(ref string) (registry.ToolDescriptor, error) {
	category, name, ok := strings.Cut(ref, "/")
	if !ok || category == "" || name == "" {
		return registry.ToolDescriptor{}, fmt.Errorf("tool reference must be category/name, got %q", ref)
	}
	desc, found, err := a.registry.Find(category, name)
	if err != nil {
		return registry.ToolDescriptor{}, err
	}
	if !found {
		return registry.ToolDescriptor{}, fmt.Errorf("tool %s/%s not found", category, name)
	}
	return desc, nil
}
