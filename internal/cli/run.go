package cli

import (
	"github.com/spf13/cobra"

	"opskit/internal/registry"
	"opskit/internal/tui"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [category/name] [args...]",
		Short: "Run a tool after satisfying its prerequisites",
		Args:  cobra.ArbitraryArgs,
		RunE:  runRun,
	}
	// Everything after the tool reference belongs to the tool.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	var (
		desc     registry.ToolDescriptor
		toolArgs []string
	)

	if len(args) == 0 {
		tools, err := app.registry.Tools()
		if err != nil {
			return err
		}
		picked, ok, err := tui.PickTool(tools)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		desc = picked
	} else {
		desc, err = app.findTool(args[0])
		if err != nil {
			return err
		}
		toolArgs = args[1:]
	}

	code, err := app.executor.Run(cmd.Context(), desc, toolArgs)
	if err != nil {
		app.log.Errorw("run failed", "tool", desc.Name, "error", err)
		cmd.PrintErrln("error:", err)
	}
	if code != 0 {
		return exitCodeError{code: code}
	}
	return nil
}
