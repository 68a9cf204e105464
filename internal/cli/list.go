package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"opskit/internal/registry"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered tools",
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	tools, err := app.registry.Tools()
	if err != nil {
		return err
	}

	if outputJSON {
		data, err := json.MarshalIndent(tools, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printToolTable(cmd, tools)
	return nil
}

func printToolTable(cmd *cobra.Command, tools []registry.ToolDescriptor) {
	if len(tools) == 0 {
		cmd.Println("no tools discovered")
		return
	}

	cmd.Println(headerStyle.Render(fmt.Sprintf("%-32s %-10s %-8s %s", "TOOL", "VERSION", "KIND", "DEPENDENCIES")))
	for _, tool := range tools {
		kind := "shell"
		if tool.EntryKind == registry.EntryKindScript {
			kind = "script"
		}
		cmd.Println(fmt.Sprintf("%-32s %-10s %-8s %s",
			tool.Category+"/"+tool.Name,
			valueOr(tool.Version, "-"),
			kind,
			valueOr(strings.Join(tool.DeclaredDependencies, ","), "-"),
		))
	}
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
