package task

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/stellarlinkco/xquad-eval/internal/dataset"
)

// MinMetricSchemaVersion is the oldest provider record shape this task can
// score against. Providers below it lack the no-answer-probability fields of
// the squad_v2 metric schema, so construction fails fast rather than
// producing silently wrong aggregates.
const MinMetricSchemaVersion = 2

const (
	defaultMaxGenerationLength = 64
)

// Prediction is the model-side half of a scorable pair, built once per
// record from the two request results.
type Prediction struct {
	ID                  string
	PredictionText      string
	NoAnswerProbability float64
}

// Reference is the gold-side half, copied verbatim from the record.
type Reference struct {
	ID      string
	Answers dataset.Answers
}

// Pair is one record's scorable (prediction, reference) tuple. Every metric
// name maps to the identical pair; metrics differ only in which field of the
// batched scorer output they read at aggregation time.
type Pair struct {
	Prediction Prediction
	Reference  Reference
}

// Example is an optionally logged per-record inspection value.
type Example struct {
	Pred   string
	Target dataset.Answers
}

// ScoreFunc is the scoring-service contract: one batched pass over parallel
// prediction/reference lists producing every named sub-metric at once.
type ScoreFunc func(preds []Prediction, refs []Reference) (map[string]float64, error)

// AggregateFunc reduces one metric's accumulated pairs to a single value.
type AggregateFunc func(pairs []Pair) (float64, error)

// Task is the contract between the evaluation harness and one per-language
// task instance.
type Task interface {
	Name() string
	HasTrainingDocs() bool
	HasValidationDocs() bool
	HasTestDocs() bool
	ValidationDocs(ctx context.Context) ([]dataset.Record, error)

	BuildRequests(rec dataset.Record, promptCtx string, args RunArgs) (GenerationRequest, LikelihoodRequest)
	ProcessResults(rec dataset.Record, results []Result) (map[string]Pair, *Example, error)

	Aggregation() map[string]AggregateFunc
	HigherIsBetter() map[string]bool
}

// Config fixes one language variant's behavior at construction time.
type Config struct {
	// Language is the two-letter variant code, e.g. "en".
	Language string
	// Selector is the dataset configuration name, e.g. "xquad.en".
	// Defaults to "xquad." + Language.
	Selector string
	// MetricNames is the closed set of declared metric names. Defaults to
	// DefaultMetricNames.
	MetricNames []string
	// Stop are the generation stopping criteria. Defaults to ["\n"].
	Stop []string
	// MaxGenerationLength caps generated answer length in tokens.
	MaxGenerationLength int
	// SaveExamples enables per-record example logging in ProcessResults.
	SaveExamples bool

	Provider dataset.Provider
	Scorer   ScoreFunc
}

// QATask is the single parameterized task adapter shared by all eleven
// language variants.
type QATask struct {
	cfg  Config
	memo *scoreMemo
}

func New(cfg Config) (*QATask, error) {
	lang := strings.TrimSpace(cfg.Language)
	if lang == "" {
		return nil, errors.New("task: empty language")
	}
	cfg.Language = lang

	if strings.TrimSpace(cfg.Selector) == "" {
		cfg.Selector = "xquad." + lang
	}
	if cfg.Provider == nil {
		return nil, errors.New("task: nil dataset provider")
	}
	if cfg.Scorer == nil {
		return nil, errors.New("task: nil scorer")
	}
	if v := cfg.Provider.MetricSchemaVersion(); v < MinMetricSchemaVersion {
		return nil, fmt.Errorf("task: provider metric schema v%d predates required v%d", v, MinMetricSchemaVersion)
	}

	if len(cfg.MetricNames) == 0 {
		cfg.MetricNames = DefaultMetricNames()
	}
	if len(cfg.Stop) == 0 {
		cfg.Stop = []string{"\n"}
	}
	if cfg.MaxGenerationLength <= 0 {
		cfg.MaxGenerationLength = defaultMaxGenerationLength
	}

	return &QATask{cfg: cfg, memo: newScoreMemo()}, nil
}

func (t *QATask) Name() string { return t.cfg.Selector }

func (t *QATask) Language() string { return t.cfg.Language }

func (t *QATask) MetricNames() []string {
	out := make([]string, len(t.cfg.MetricNames))
	copy(out, t.cfg.MetricNames)
	return out
}

func (t *QATask) HasTrainingDocs() bool   { return false }
func (t *QATask) HasValidationDocs() bool { return true }
func (t *QATask) HasTestDocs() bool       { return false }

func (t *QATask) ValidationDocs(ctx context.Context) ([]dataset.Record, error) {
	if t == nil {
		return nil, errors.New("task: nil task")
	}
	return t.cfg.Provider.ValidationDocs(ctx)
}

// BuildRequests turns one record plus its prepared prompt context into the
// fixed request pair: a greedy generation of the answer span, and a
// likelihood probe of the literal " unanswerable" continuation against the
// same context. Pure construction, no adapter or record state is touched.
func (t *QATask) BuildRequests(rec dataset.Record, promptCtx string, args RunArgs) (GenerationRequest, LikelihoodRequest) {
	gen := GenerationRequest{
		Context:    promptCtx,
		Stop:       append([]string(nil), t.cfg.Stop...),
		MaxLength:  t.cfg.MaxGenerationLength,
		NumFewshot: args.NumFewshot,
	}
	ll := LikelihoodRequest{
		Context:      promptCtx,
		Continuation: UnanswerableContinuation,
	}
	return gen, ll
}

// ProcessResults pairs the two request results with the record's gold
// annotation. The returned map carries the identical pair under every
// declared metric name; which sub-metric each name reads is decided at
// aggregation time. The example return is always well-defined: nil when
// example logging is off.
func (t *QATask) ProcessResults(rec dataset.Record, results []Result) (map[string]Pair, *Example, error) {
	if t == nil {
		return nil, nil, errors.New("task: nil task")
	}
	if len(results) != 2 {
		return nil, nil, fmt.Errorf("task: expected 2 results, got %d", len(results))
	}
	if results[0].Kind != KindGeneration {
		return nil, nil, fmt.Errorf("task: result 0 is %s, want generation", results[0].Kind)
	}
	if results[1].Kind != KindLikelihood {
		return nil, nil, fmt.Errorf("task: result 1 is %s, want likelihood", results[1].Kind)
	}

	pred := results[0].Text
	noAnswerProb := math.Exp(results[1].LogProb)

	pair := Pair{
		Prediction: Prediction{
			ID:                  rec.ID,
			PredictionText:      pred,
			NoAnswerProbability: noAnswerProb,
		},
		Reference: Reference{
			ID:      rec.ID,
			Answers: rec.Answers,
		},
	}

	out := make(map[string]Pair, len(t.cfg.MetricNames))
	for _, name := range t.cfg.MetricNames {
		out[name] = pair
	}

	var example *Example
	if t.cfg.SaveExamples {
		example = &Example{
			Pred:   pred,
			Target: rec.Answers,
		}
	}
	return out, example, nil
}
