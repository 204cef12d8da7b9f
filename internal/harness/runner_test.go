package harness

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stellarlinkco/xquad-eval/internal/dataset"
	"github.com/stellarlinkco/xquad-eval/internal/squad"
	"github.com/stellarlinkco/xquad-eval/internal/task"
)

type fakeProvider struct {
	docs []dataset.Record
}

func (p *fakeProvider) Name() string             { return "xquad.en" }
func (p *fakeProvider) Description() string      { return "test split" }
func (p *fakeProvider) MetricSchemaVersion() int { return dataset.MetricSchemaVersion }
func (p *fakeProvider) HasTrainingDocs() bool    { return false }
func (p *fakeProvider) HasValidationDocs() bool  { return true }
func (p *fakeProvider) HasTestDocs() bool        { return false }
func (p *fakeProvider) TrainingDocs(ctx context.Context) ([]dataset.Record, error) {
	return nil, errors.New("no training docs")
}
func (p *fakeProvider) TestDocs(ctx context.Context) ([]dataset.Record, error) {
	return nil, errors.New("no test docs")
}
func (p *fakeProvider) ValidationDocs(ctx context.Context) ([]dataset.Record, error) {
	return p.docs, nil
}

// fakeBackend answers by looking the question up in a canned table. An entry
// mapped to the empty string abstains with high no-answer confidence.
type fakeBackend struct {
	answers map[string]string
	failOn  string
	prompts []string
}

func (b *fakeBackend) Name() string { return "fake-model" }

func (b *fakeBackend) GreedyUntil(ctx context.Context, prompt string, stop []string, maxTokens int) (string, error) {
	b.prompts = append(b.prompts, prompt)
	for q, a := range b.answers {
		if strings.Contains(prompt, q) {
			if q == b.failOn {
				return "", errors.New("backend unavailable")
			}
			return a + "\n", nil
		}
	}
	return "", nil
}

func (b *fakeBackend) Loglikelihood(ctx context.Context, prompt, continuation string) (float64, bool, error) {
	for q, a := range b.answers {
		if strings.Contains(prompt, q) && a == "" {
			return -0.01, true, nil
		}
	}
	return -5.0, false, nil
}

func testDocs() []dataset.Record {
	return []dataset.Record{
		{
			ID:       "1",
			Context:  "Paris is the capital of France.",
			Question: "What is the capital of France?",
			Answers:  dataset.Answers{Text: []string{"Paris"}, AnswerStart: []int{0}},
		},
		{
			ID:       "2",
			Context:  "The Rhine has its sources in Switzerland.",
			Question: "Where does the Rhine have its sources?",
			Answers:  dataset.Answers{Text: []string{"Switzerland"}, AnswerStart: []int{29}},
		},
		{
			ID:       "3",
			Context:  "The Rhine has its sources in Switzerland.",
			Question: "What is the population of the Rhine?",
			Answers:  dataset.Answers{},
		},
	}
}

func perfectAnswers() map[string]string {
	return map[string]string{
		"What is the capital of France?":         "Paris",
		"Where does the Rhine have its sources?": "Switzerland",
		"What is the population of the Rhine?":   "",
	}
}

func newHarnessTask(t *testing.T, docs []dataset.Record, saveExamples bool) task.Task {
	t.Helper()
	tk, err := task.New(task.Config{
		Language:     "en",
		Provider:     &fakeProvider{docs: docs},
		Scorer:       squad.Evaluate,
		SaveExamples: saveExamples,
	})
	if err != nil {
		t.Fatalf("task.New: %v", err)
	}
	return tk
}

func TestRun_PerfectModel(t *testing.T) {
	backend := &fakeBackend{answers: perfectAnswers()}
	r := &Runner{Backend: backend}

	res, err := r.Run(context.Background(), newHarnessTask(t, testDocs(), false))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Task != "xquad.en" || res.Model != "fake-model" {
		t.Fatalf("identity: task=%q model=%q", res.Task, res.Model)
	}
	if res.NumDocs != 3 || res.NumErrors != 0 {
		t.Fatalf("counts: docs=%d errors=%d", res.NumDocs, res.NumErrors)
	}
	if len(res.Metrics) != len(task.DefaultMetricNames()) {
		t.Fatalf("metrics: got %d keys want %d", len(res.Metrics), len(task.DefaultMetricNames()))
	}
	for _, name := range []string{"exact", "f1", "HasAns_exact", "NoAns_exact"} {
		if res.Metrics[name] != 100 {
			t.Fatalf("%s: got %v want 100", name, res.Metrics[name])
		}
	}
	if res.TotalTime <= 0 {
		t.Fatal("TotalTime not recorded")
	}
}

func TestRun_PartialFailuresSkipRecords(t *testing.T) {
	backend := &fakeBackend{
		answers: perfectAnswers(),
		failOn:  "Where does the Rhine have its sources?",
	}
	r := &Runner{Backend: backend}

	res, err := r.Run(context.Background(), newHarnessTask(t, testDocs(), false))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.NumDocs != 2 || res.NumErrors != 1 {
		t.Fatalf("counts: docs=%d errors=%d", res.NumDocs, res.NumErrors)
	}
	if len(res.DocErrors) != 1 || res.DocErrors[0].ID != "2" {
		t.Fatalf("doc errors: %+v", res.DocErrors)
	}
	if res.Metrics["exact"] != 100 {
		t.Fatalf("exact over surviving records: got %v", res.Metrics["exact"])
	}
}

func TestRun_AllRecordsFailed(t *testing.T) {
	docs := testDocs()[:1]
	backend := &fakeBackend{
		answers: perfectAnswers(),
		failOn:  "What is the capital of France?",
	}
	r := &Runner{Backend: backend}

	if _, err := r.Run(context.Background(), newHarnessTask(t, docs, false)); err == nil {
		t.Fatal("Run: expected error when every record fails")
	}
}

func TestRun_SaveExamples(t *testing.T) {
	backend := &fakeBackend{answers: perfectAnswers()}
	r := &Runner{Backend: backend}

	res, err := r.Run(context.Background(), newHarnessTask(t, testDocs(), true))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Examples) != 3 {
		t.Fatalf("examples: got %d want 3", len(res.Examples))
	}
	if res.Examples[0].Pred != "Paris" {
		t.Fatalf("first example pred: %q", res.Examples[0].Pred)
	}
}

func TestRun_FewshotPromptCarriesExemplars(t *testing.T) {
	backend := &fakeBackend{answers: perfectAnswers()}
	r := &Runner{Backend: backend, NumFewshot: 1}

	if _, err := r.Run(context.Background(), newHarnessTask(t, testDocs(), false)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(backend.prompts) != 3 {
		t.Fatalf("prompts: got %d want 3", len(backend.prompts))
	}
	for i, p := range backend.prompts {
		if n := strings.Count(p, "Question:"); n != 2 {
			t.Fatalf("prompt %d: %d questions want 2 (one exemplar + doc)", i, n)
		}
		if !strings.HasSuffix(p, "Answer:") {
			t.Fatalf("prompt %d should end awaiting the answer", i)
		}
	}
}

func TestRun_Validation(t *testing.T) {
	tk := newHarnessTask(t, testDocs(), false)
	backend := &fakeBackend{answers: perfectAnswers()}

	cases := []struct {
		name string
		run  func() error
	}{
		{"nil runner", func() error {
			var r *Runner
			_, err := r.Run(context.Background(), tk)
			return err
		}},
		{"nil backend", func() error {
			r := &Runner{}
			_, err := r.Run(context.Background(), tk)
			return err
		}},
		{"nil task", func() error {
			r := &Runner{Backend: backend}
			_, err := r.Run(context.Background(), nil)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.run() == nil {
				t.Fatal("Run: expected error")
			}
		})
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Backend: &fakeBackend{answers: perfectAnswers()}}
	if _, err := r.Run(ctx, newHarnessTask(t, testDocs(), false)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: got %v want context.Canceled", err)
	}
}
