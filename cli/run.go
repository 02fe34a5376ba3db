package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/surajsub/temporal-powerbi-refresh/config"
	"github.com/surajsub/temporal-powerbi-refresh/executors"
	"github.com/surajsub/temporal-powerbi-refresh/models"
)

func newRunCommand() *cobra.Command {
	var req models.RefreshRequest

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one refresh action in-process and print the result",
		Example: `  powerbi-refresh run --env DEV --action refresh_dataset_by_names --workspace Finance --object "Sales Report"
  powerbi-refresh run --env DEV --action get_access_token`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if req.Environment == "" {
				req.Environment = cfg.Environment
			}

			deps, err := buildDependencies(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			executor, err := executors.GetExecutor(executors.POWERBI, deps)
			if err != nil {
				return err
			}

			result, runErr := executor.Execute(cmd.Context(), req)
			if result != nil {
				out, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return runErr
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Environment, "env", "", "environment to refresh in (defaults to $ENV)")
	flags.StringVar(&req.Action, "action", "", fmt.Sprintf("one of %v", models.Actions))
	flags.StringVar(&req.Workspace, "workspace", "", "workspace name, or id for refresh_dataset")
	flags.StringVar(&req.Object, "object", "", "dataset or dataflow name, or dataset id for refresh_dataset")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}
