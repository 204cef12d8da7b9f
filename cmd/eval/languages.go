package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/xquad-eval/internal/task"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported XQuAD language variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, l := range task.Languages() {
				fmt.Fprintf(out, "%-4s %-12s xquad.%s\n", l.Code, l.Name, l.Code)
			}
			fmt.Fprintf(out, "\nmetrics: %s\n", strings.Join(task.DefaultMetricNames(), ", "))
			return nil
		},
	}
}
