package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/xquad-eval/internal/config"
)

type historyOptions struct {
	model    string
	language string
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs for a model on one language",
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
			return runHistory(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "", "model name")
	cmd.Flags().StringVar(&opts.language, "language", "", "language code")

	return cmd
}

func runHistory(cmd *cobra.Command, st *cliState, opts *historyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	model := strings.TrimSpace(opts.model)
	language := strings.ToLower(strings.TrimSpace(opts.language))
	if model == "" || language == "" {
		return fmt.Errorf("history: missing --model or --language")
	}

	store, err := openResultsStore(st.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ModelHistory(cmd.Context(), model, language)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintf(out, "no runs for model=%s language=%s\n", model, language)
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "id=%d date=%s provider=%s fewshot=%d docs=%d time_ms=%d\n",
			r.ID, r.EvalDate.Format("2006-01-02 15:04:05"), r.Provider, r.NumFewshot, r.NumDocs, r.Duration.Milliseconds())
	}
	return nil
}
