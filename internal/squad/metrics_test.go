package squad

import (
	"math"
	"strings"
	"testing"

	"github.com/stellarlinkco/xquad-eval/internal/dataset"
	"github.com/stellarlinkco/xquad-eval/internal/task"
)

func TestNormalizeAnswer(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"The Free State of Saxony", "free state of saxony"},
		{"  Paris,  France. ", "paris france"},
		{"an apple a day", "apple day"},
		{"U.S.A.", "usa"},
		{"", ""},
		{"the", ""},
		{"42", "42"},
		// Non-ASCII punctuation stays in place.
		{"北京市。", "北京市。"},
	}
	for _, tc := range cases {
		if got := normalizeAnswer(tc.in); got != tc.want {
			t.Fatalf("normalizeAnswer(%q): got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestComputeExact(t *testing.T) {
	cases := []struct {
		gold, pred string
		want       float64
	}{
		{"Paris", "paris", 1},
		{"the Rhine", "Rhine", 1},
		{"Paris", "Paris, France", 0},
		{"", "", 1},
		{"", "Berlin", 0},
	}
	for _, tc := range cases {
		if got := computeExact(tc.gold, tc.pred); got != tc.want {
			t.Fatalf("computeExact(%q, %q): got %v want %v", tc.gold, tc.pred, got, tc.want)
		}
	}
}

func TestComputeF1(t *testing.T) {
	cases := []struct {
		name       string
		gold, pred string
		want       float64
	}{
		{"identical", "Paris", "Paris", 1},
		{"partial overlap", "the capital city", "capital", 2 * 1.0 * 0.5 / 1.5},
		{"no overlap", "Paris", "Berlin", 0},
		{"both empty", "", "", 1},
		{"empty gold nonempty pred", "", "Berlin", 0},
		{"repeated tokens capped", "big big dog", "big dog dog", 2.0 / 3.0},
	}
	for _, tc := range cases {
		got := computeF1(tc.gold, tc.pred)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: computeF1(%q, %q) got %v want %v", tc.name, tc.gold, tc.pred, got, tc.want)
		}
	}
}

func TestGoldAnswers(t *testing.T) {
	if got := goldAnswers([]string{"Paris", "Paris, France"}); len(got) != 2 {
		t.Fatalf("goldAnswers: got %v", got)
	}
	got := goldAnswers(nil)
	if len(got) != 1 || got[0] != "" {
		t.Fatalf("goldAnswers(nil): got %v want [\"\"]", got)
	}
	// Spans that normalize to nothing count as unanswerable.
	got = goldAnswers([]string{"the", "..."})
	if len(got) != 1 || got[0] != "" {
		t.Fatalf("goldAnswers(articles only): got %v want [\"\"]", got)
	}
}

func answeredPair(id, gold, pred string, logProb float64) (task.Prediction, task.Reference) {
	return task.Prediction{ID: id, PredictionText: pred, NoAnswerProbability: math.Exp(logProb)},
		task.Reference{ID: id, Answers: dataset.Answers{Text: []string{gold}, AnswerStart: []int{0}}}
}

func unansweredPair(id, pred string, logProb float64) (task.Prediction, task.Reference) {
	return task.Prediction{ID: id, PredictionText: pred, NoAnswerProbability: math.Exp(logProb)},
		task.Reference{ID: id, Answers: dataset.Answers{}}
}

func TestEvaluate_CorrectSpan(t *testing.T) {
	p, r := answeredPair("1", "Paris", "Paris", -5.0)
	got, err := Evaluate([]task.Prediction{p}, []task.Reference{r})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	for _, tc := range []struct {
		name string
		want float64
	}{
		{"exact", 100},
		{"f1", 100},
		{"HasAns_exact", 100},
		{"HasAns_f1", 100},
		{"best_exact", 100},
		{"best_f1", 100},
		{"total", 1},
	} {
		if v := got[tc.name]; math.Abs(v-tc.want) > 1e-9 {
			t.Fatalf("%s: got %v want %v", tc.name, v, tc.want)
		}
	}
	if _, ok := got["NoAns_exact"]; ok {
		t.Fatal("NoAns_exact present for all-answerable batch")
	}
}

func TestEvaluate_CorrectAbstention(t *testing.T) {
	p, r := unansweredPair("1", "", -0.01)
	got, err := Evaluate([]task.Prediction{p}, []task.Reference{r})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if got["exact"] != 100 || got["f1"] != 100 {
		t.Fatalf("exact/f1: got %v/%v want 100/100", got["exact"], got["f1"])
	}
	if got["NoAns_exact"] != 100 || got["NoAns_f1"] != 100 {
		t.Fatalf("NoAns: got %v/%v want 100/100", got["NoAns_exact"], got["NoAns_f1"])
	}
	if _, ok := got["HasAns_exact"]; ok {
		t.Fatal("HasAns_exact present for all-unanswerable batch")
	}
}

func TestEvaluate_MixedBatch(t *testing.T) {
	p1, r1 := answeredPair("1", "Paris", "Paris", -5.0)
	p2, r2 := unansweredPair("2", "", -0.01)
	p3, r3 := answeredPair("3", "the Rhine", "Danube", -4.0)

	got, err := Evaluate([]task.Prediction{p1, p2, p3}, []task.Reference{r1, r2, r3})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if want := 100.0 * 2 / 3; math.Abs(got["exact"]-want) > 1e-9 {
		t.Fatalf("exact: got %v want %v", got["exact"], want)
	}
	if want := 50.0; math.Abs(got["HasAns_exact"]-want) > 1e-9 {
		t.Fatalf("HasAns_exact: got %v want %v", got["HasAns_exact"], want)
	}
	if got["NoAns_exact"] != 100 {
		t.Fatalf("NoAns_exact: got %v want 100", got["NoAns_exact"])
	}
	if got["HasAns_total"] != 2 || got["NoAns_total"] != 1 || got["total"] != 3 {
		t.Fatalf("totals: has=%v no=%v all=%v", got["HasAns_total"], got["NoAns_total"], got["total"])
	}
}

func TestEvaluate_BestThreshRescuesWrongNoAnsSpan(t *testing.T) {
	// A non-empty hallucinated span on an unanswerable record scores zero
	// under the fixed threshold, but the sweep can abstain everything and
	// recover full credit.
	p, r := unansweredPair("1", "Berlin", -0.01)
	got, err := Evaluate([]task.Prediction{p}, []task.Reference{r})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if got["exact"] != 0 {
		t.Fatalf("exact: got %v want 0", got["exact"])
	}
	if got["best_exact"] != 100 {
		t.Fatalf("best_exact: got %v want 100", got["best_exact"])
	}
	if got["best_exact_thresh"] != 0 {
		t.Fatalf("best_exact_thresh: got %v want 0", got["best_exact_thresh"])
	}
}

func TestEvaluate_BestThreshValue(t *testing.T) {
	// Keeping the confident span and abstaining on the rest is optimal, so
	// the reported cutoff lands on the confident record's probability.
	p1, r1 := answeredPair("1", "Paris", "Paris", -5.0)
	p2, r2 := unansweredPair("2", "Berlin", -0.2)

	got, err := Evaluate([]task.Prediction{p1, p2}, []task.Reference{r1, r2})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if got["best_exact"] != 100 {
		t.Fatalf("best_exact: got %v want 100", got["best_exact"])
	}
	if want := math.Exp(-5.0); math.Abs(got["best_exact_thresh"]-want) > 1e-12 {
		t.Fatalf("best_exact_thresh: got %v want %v", got["best_exact_thresh"], want)
	}
}

func TestEvaluate_MaxOverGolds(t *testing.T) {
	pred := task.Prediction{ID: "1", PredictionText: "Saxony"}
	ref := task.Reference{ID: "1", Answers: dataset.Answers{
		Text:        []string{"the Free State of Saxony", "Saxony"},
		AnswerStart: []int{10, 28},
	}}

	got, err := Evaluate([]task.Prediction{pred}, []task.Reference{ref})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got["exact"] != 100 {
		t.Fatalf("exact: got %v want 100 (max over golds)", got["exact"])
	}
}

func TestEvaluate_HasAnsFromRawSpans(t *testing.T) {
	// A record whose only spans normalize to nothing is still answerable:
	// answerability comes from the raw annotation, while the gold set
	// collapses to the empty string for matching.
	pred := task.Prediction{ID: "1", PredictionText: "the"}
	ref := task.Reference{ID: "1", Answers: dataset.Answers{
		Text:        []string{"the"},
		AnswerStart: []int{0},
	}}

	got, err := Evaluate([]task.Prediction{pred}, []task.Reference{ref})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got["HasAns_exact"] != 100 || got["HasAns_total"] != 1 {
		t.Fatalf("HasAns: exact=%v total=%v", got["HasAns_exact"], got["HasAns_total"])
	}
	if _, ok := got["NoAns_exact"]; ok {
		t.Fatal("NoAns_exact present despite annotated spans")
	}
}

func TestEvaluate_Errors(t *testing.T) {
	p, r := answeredPair("1", "Paris", "Paris", -5.0)

	cases := []struct {
		name  string
		preds []task.Prediction
		refs  []task.Reference
		msg   string
	}{
		{"empty batch", nil, nil, "empty"},
		{"length mismatch", []task.Prediction{p}, nil, "vs"},
		{"id mismatch",
			[]task.Prediction{{ID: "1", PredictionText: "x"}},
			[]task.Reference{{ID: "2"}},
			"mismatch"},
		{"duplicate id",
			[]task.Prediction{p, p},
			[]task.Reference{r, r},
			"duplicate"},
		{"missing id",
			[]task.Prediction{{PredictionText: "x"}},
			[]task.Reference{{}},
			"no id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Evaluate(tc.preds, tc.refs)
			if err == nil {
				t.Fatal("Evaluate: expected error")
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("Evaluate: error %q missing %q", err, tc.msg)
			}
		})
	}
}
