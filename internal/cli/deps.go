package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newDepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Inspect and resolve system dependencies",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <category/name>",
		Short: "Report which of a tool's dependencies are missing",
		Args:  cobra.ExactArgs(1),
		RunE:  runDepsCheck,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "install <category/name>",
		Short: "Install a tool's missing dependencies",
		Args:  cobra.ExactArgs(1),
		RunE:  runDepsInstall,
	})

	return cmd
}

func runDepsCheck(cmd *cobra.Command, args []string) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	desc, err := app.findTool(args[0])
	if err != nil {
		return err
	}

	missing := app.resolver.ResolveMissing(cmd.Context(), desc.DeclaredDependencies)

	if outputJSON {
		payload := map[string]any{
			"tool":     desc.Category + "/" + desc.Name,
			"declared": desc.DeclaredDependencies,
			"missing":  missing,
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(missing) == 0 {
		cmd.Printf("all %d declared dependencies satisfied\n", len(desc.DeclaredDependencies))
		return nil
	}
	cmd.Println("missing dependencies:")
	for _, key := range missing {
		cmd.Println("  " + key)
	}
	return exitCodeError{code: 1}
}

func runDepsInstall(cmd *cobra.Command, args []string) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	desc, err := app.findTool(args[0])
	if err != nil {
		return err
	}

	missing := app.resolver.ResolveMissing(cmd.Context(), desc.DeclaredDependencies)
	if len(missing) == 0 {
		cmd.Println("nothing to install")
		return nil
	}

	installed, failed := app.resolver.InstallAll(cmd.Context(), missing)
	for _, key := range installed {
		cmd.Println("installed " + key)
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to resolve: %v", failed)
	}

	if still := app.resolver.Revalidate(cmd.Context(), desc.DeclaredDependencies); len(still) > 0 {
		return fmt.Errorf("still missing after install: %v", still)
	}
	cmd.Println("all dependencies satisfied")
	return nil
}
