package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage the shared runtime environment",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the shared runtime environment if it does not exist",
		RunE:  runEnvEnsure,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Verify the shared runtime environment responds",
		RunE:  runEnvCheck,
	})

	return cmd
}

func runEnvEnsure(cmd *cobra.Command, _ []string) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.env.Ensure(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("runtime environment ready:", app.env.State().RootPath)
	return nil
}

func runEnvCheck(cmd *cobra.Command, _ []string) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	ok, message := app.env.ValidateIntegrity(cmd.Context())
	if !ok {
		return fmt.Errorf("runtime environment unhealthy: %s", message)
	}
	cmd.Println("runtime environment healthy")
	return nil
}
