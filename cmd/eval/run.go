package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/xquad-eval/internal/config"
	"github.com/stellarlinkco/xquad-eval/internal/harness"
	"github.com/stellarlinkco/xquad-eval/internal/llm"
	"github.com/stellarlinkco/xquad-eval/internal/results"
	"github.com/stellarlinkco/xquad-eval/internal/squad"
	"github.com/stellarlinkco/xquad-eval/internal/task"
)

type runOptions struct {
	language     string
	all          bool
	model        string
	provider     string
	numFewshot   int
	limit        int
	saveExamples bool
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a model on one or all XQuAD language variants",
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
			return runEval(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.language, "language", "", "language code (en|ar|de|el|es|hi|ru|th|tr|vi|zh)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "evaluate every language variant")
	cmd.Flags().StringVar(&opts.model, "model", "", "model name (overrides config)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider name (overrides config)")
	cmd.Flags().IntVar(&opts.numFewshot, "num-fewshot", -1, "few-shot exemplar count (-1 = config default)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "max records per language (0 = config default)")
	cmd.Flags().BoolVar(&opts.saveExamples, "save-examples", false, "log per-record prediction/target examples")

	return cmd
}

func runEval(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("run: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("run: nil options")
	}

	codes, err := resolveLanguages(opts)
	if err != nil {
		return err
	}

	backend, modelName, err := llm.FromConfig(st.cfg, opts.provider, opts.model)
	if err != nil {
		return err
	}

	store, err := openResultsStore(st.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	numFewshot := opts.numFewshot
	if numFewshot < 0 {
		numFewshot = st.cfg.Evaluation.NumFewshot
	}
	limit := opts.limit
	if limit <= 0 {
		limit = st.cfg.Evaluation.Limit
	}
	saveExamples := opts.saveExamples || st.cfg.Evaluation.SaveExamples

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if st.cfg.Evaluation.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(st.cfg.Evaluation.Timeout))
		defer cancel()
	}

	runner := &harness.Runner{
		Backend:    backend,
		NumFewshot: numFewshot,
	}

	out := cmd.OutOrStdout()
	for _, code := range codes {
		t, err := task.ForLanguage(code, squad.Evaluate, task.Options{
			DataDir:      st.cfg.Data.Dir,
			Limit:        limit,
			SaveExamples: saveExamples,
		})
		if err != nil {
			return err
		}

		res, err := runner.Run(ctx, t)
		if err != nil {
			return err
		}

		run := &results.Run{
			Model:      modelName,
			Provider:   backend.Name(),
			Language:   code,
			NumFewshot: res.NumFewshot,
			NumDocs:    res.NumDocs,
			Duration:   res.TotalTime,
			EvalDate:   time.Now().UTC(),
			Metrics:    res.Metrics,
		}
		if err := store.Save(cmd.Context(), run); err != nil {
			return err
		}

		printRunResult(out, run, res)
	}

	return nil
}

func printRunResult(out io.Writer, run *results.Run, res *harness.RunResult) {
	fmt.Fprintf(out, "%s model=%s provider=%s fewshot=%d docs=%d errors=%d time_ms=%d\n",
		res.Task, run.Model, run.Provider, run.NumFewshot, run.NumDocs, res.NumErrors, run.Duration.Milliseconds())

	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-18s %8.4f\n", name, res.Metrics[name])
	}

	for _, ex := range res.Examples {
		fmt.Fprintf(out, "  example pred=%q target=%q\n", ex.Pred, strings.Join(ex.Target.Text, " | "))
	}
}

func resolveLanguages(opts *runOptions) ([]string, error) {
	if opts.all {
		if strings.TrimSpace(opts.language) != "" {
			return nil, fmt.Errorf("run: --all and --language are mutually exclusive")
		}
		langs := task.Languages()
		codes := make([]string, 0, len(langs))
		for _, l := range langs {
			codes = append(codes, l.Code)
		}
		return codes, nil
	}

	code := strings.ToLower(strings.TrimSpace(opts.language))
	if code == "" {
		return nil, fmt.Errorf("run: missing --language (or use --all)")
	}
	if !task.Supported(code) {
		return nil, fmt.Errorf("run: unknown language %q", code)
	}
	return []string{code}, nil
}

func openResultsStore(cfg *config.Config) (*results.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("results: missing config")
	}

	storageType := strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	if storageType == "" {
		storageType = "sqlite"
	}

	switch storageType {
	case "sqlite":
		path := strings.TrimSpace(cfg.Storage.Path)
		if path == "" {
			path = results.DefaultSQLitePath
		}
		return results.NewStore(path)
	case "memory":
		return results.NewStore(":memory:")
	default:
		return nil, fmt.Errorf("results: unsupported type %q", storageType)
	}
}
