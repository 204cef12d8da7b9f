// Package harness drives one task over its validation split: it owns the
// request dispatch loop, the per-metric accumulators, and the final
// aggregation call. Tasks stay pure transformers; all sequencing and state
// lives here.
package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stellarlinkco/xquad-eval/internal/dataset"
	"github.com/stellarlinkco/xquad-eval/internal/fewshot"
	"github.com/stellarlinkco/xquad-eval/internal/llm"
	"github.com/stellarlinkco/xquad-eval/internal/task"
)

type Runner struct {
	Backend    llm.Backend
	NumFewshot int
}

type RunResult struct {
	Task       string
	Model      string
	NumFewshot int
	NumDocs    int
	NumErrors  int
	TotalTime  time.Duration
	Metrics    map[string]float64
	Examples   []task.Example
	DocErrors  []DocError
}

type DocError struct {
	ID    string
	Error string
}

// Run evaluates the whole validation split. Per-record backend failures are
// recorded and the record skipped; aggregation runs over the records that
// scored. Context cancellation aborts between records.
func (r *Runner) Run(ctx context.Context, t task.Task) (*RunResult, error) {
	if r == nil {
		return nil, errors.New("harness: nil runner")
	}
	if ctx == nil {
		return nil, errors.New("harness: nil context")
	}
	if r.Backend == nil {
		return nil, errors.New("harness: nil backend")
	}
	if t == nil {
		return nil, errors.New("harness: nil task")
	}
	if !t.HasValidationDocs() {
		return nil, fmt.Errorf("harness: task %q has no validation split", t.Name())
	}

	start := time.Now()

	docs, err := t.ValidationDocs(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("harness: task %q returned no validation docs", t.Name())
	}

	out := &RunResult{
		Task:       strings.TrimSpace(t.Name()),
		Model:      strings.TrimSpace(r.Backend.Name()),
		NumFewshot: r.NumFewshot,
	}

	// Ordered per-metric accumulators, consumed once at aggregation time.
	acc := make(map[string][]task.Pair)

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		results, scoreErr := r.runDoc(ctx, t, docs, doc)
		if scoreErr != nil {
			out.NumErrors++
			out.DocErrors = append(out.DocErrors, DocError{ID: doc.ID, Error: scoreErr.Error()})
			continue
		}

		pairs, example, procErr := t.ProcessResults(doc, results)
		if procErr != nil {
			return out, procErr
		}

		for name, pair := range pairs {
			acc[name] = append(acc[name], pair)
		}
		if example != nil {
			out.Examples = append(out.Examples, *example)
		}
		out.NumDocs++
	}

	if out.NumDocs == 0 {
		return out, fmt.Errorf("harness: all %d records failed (first: %s)", out.NumErrors, out.DocErrors[0].Error)
	}

	aggs := t.Aggregation()
	higher := t.HigherIsBetter()
	out.Metrics = make(map[string]float64, len(aggs))
	for name, agg := range aggs {
		if _, ok := higher[name]; !ok {
			return out, fmt.Errorf("harness: metric %q has no higher-is-better declaration", name)
		}
		v, err := agg(acc[name])
		if err != nil {
			return out, fmt.Errorf("harness: aggregate %q: %w", name, err)
		}
		out.Metrics[name] = v
	}

	out.TotalTime = time.Since(start)
	return out, nil
}

// runDoc issues the record's two requests in construction order and returns
// the ordered results the task's scoring contract expects.
func (r *Runner) runDoc(ctx context.Context, t task.Task, docs []dataset.Record, doc dataset.Record) ([]task.Result, error) {
	exemplars := fewshot.Exemplars(docs, doc, r.NumFewshot)
	promptCtx := fewshot.Context(exemplars, doc)

	gen, ll := t.BuildRequests(doc, promptCtx, task.RunArgs{NumFewshot: r.NumFewshot})

	text, err := r.Backend.GreedyUntil(ctx, gen.Context, gen.Stop, gen.MaxLength)
	if err != nil {
		return nil, fmt.Errorf("harness: generate %q: %w", doc.ID, err)
	}

	logProb, isGreedy, err := r.Backend.Loglikelihood(ctx, ll.Context, ll.Continuation)
	if err != nil {
		return nil, fmt.Errorf("harness: loglikelihood %q: %w", doc.ID, err)
	}

	return []task.Result{
		{Kind: task.KindGeneration, Text: strings.TrimSpace(text)},
		{Kind: task.KindLikelihood, LogProb: logProb, IsGreedy: isGreedy},
	}, nil
}
