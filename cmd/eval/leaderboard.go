package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/xquad-eval/internal/config"
	"github.com/stellarlinkco/xquad-eval/internal/task"
)

type leaderboardOptions struct {
	language string
	metric   string
	limit    int
}

func newLeaderboardCmd(st *cliState) *cobra.Command {
	var opts leaderboardOptions

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank saved runs for one language by a metric",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboard(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.language, "language", "", "language code")
	cmd.Flags().StringVar(&opts.metric, "metric", "f1", "metric to rank by")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "max entries (0 = default)")

	return cmd
}

func runLeaderboard(cmd *cobra.Command, st *cliState, opts *leaderboardOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("leaderboard: missing config (internal error)")
	}
	language := strings.ToLower(strings.TrimSpace(opts.language))
	if language == "" {
		return fmt.Errorf("leaderboard: missing --language")
	}
	if !task.Supported(language) {
		return fmt.Errorf("leaderboard: unknown language %q", language)
	}

	store, err := openResultsStore(st.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Leaderboard(cmd.Context(), language, opts.metric, opts.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintf(out, "no runs for language=%s\n", language)
		return nil
	}
	for i, r := range runs {
		fmt.Fprintf(out, "%2d. model=%s provider=%s fewshot=%d docs=%d date=%s\n",
			i+1, r.Model, r.Provider, r.NumFewshot, r.NumDocs, r.EvalDate.Format("2006-01-02"))
	}
	return nil
}
