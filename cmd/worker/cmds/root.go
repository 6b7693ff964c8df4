package cmds

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Worker command for scheduled arena evaluation jobs",
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
