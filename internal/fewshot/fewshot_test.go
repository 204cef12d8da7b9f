package fewshot

import (
	"strings"
	"testing"

	"github.com/stellarlinkco/xquad-eval/internal/dataset"
)

func rec(id, ctx, q string, answers ...string) dataset.Record {
	return dataset.Record{
		ID:       id,
		Context:  ctx,
		Question: q,
		Answers:  dataset.Answers{Text: answers},
	}
}

func TestDocToText(t *testing.T) {
	got := DocToText(rec("1", "  Paris is the capital of France. ", "What is the capital of France?", "Paris"))
	want := "Background: Paris is the capital of France.\n\nQuestion: What is the capital of France?\n\nAnswer:"
	if got != want {
		t.Fatalf("DocToText:\ngot  %q\nwant %q", got, want)
	}
}

func TestDocToTarget(t *testing.T) {
	cases := []struct {
		name string
		rec  dataset.Record
		want string
	}{
		{"answered", rec("1", "c", "q", "Paris"), " Paris"},
		{"first span wins", rec("1", "c", "q", "Paris", "Paris, France"), " Paris"},
		{"blank spans skipped", rec("1", "c", "q", "  ", "Rhine"), " Rhine"},
		{"unanswerable", rec("1", "c", "q"), " unanswerable"},
	}
	for _, tc := range cases {
		if got := DocToTarget(tc.rec); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestContext_ZeroShot(t *testing.T) {
	doc := rec("1", "ctx", "q?", "a")
	got := Context(nil, doc)

	if !strings.HasPrefix(got, description+"\n\n") {
		t.Fatalf("missing description prefix: %q", got)
	}
	if !strings.HasSuffix(got, "\n\nAnswer:") {
		t.Fatalf("prompt should end awaiting the answer: %q", got)
	}
	if strings.Count(got, "Question:") != 1 {
		t.Fatalf("zero-shot prompt has %d questions", strings.Count(got, "Question:"))
	}
}

func TestContext_WithExemplars(t *testing.T) {
	exemplars := []dataset.Record{
		rec("e1", "c1", "q1?", "a1"),
		rec("e2", "c2", "q2?"),
	}
	doc := rec("d", "cd", "qd?", "ad")
	got := Context(exemplars, doc)

	if strings.Count(got, "Question:") != 3 {
		t.Fatalf("prompt has %d questions want 3", strings.Count(got, "Question:"))
	}
	if !strings.Contains(got, "Answer: a1\n\n") {
		t.Fatalf("exemplar target missing: %q", got)
	}
	if !strings.Contains(got, "Answer: unanswerable\n\n") {
		t.Fatalf("unanswerable exemplar missing: %q", got)
	}
	if !strings.HasSuffix(got, "Question: qd?\n\nAnswer:") {
		t.Fatalf("doc must come last, unanswered: %q", got)
	}
}

func TestContext_SkipsDocItself(t *testing.T) {
	doc := rec("d", "cd", "qd?", "ad")
	got := Context([]dataset.Record{doc}, doc)
	if strings.Contains(got, "Answer: ad") {
		t.Fatal("doc's own answer leaked into the prompt")
	}
}

func TestExemplars(t *testing.T) {
	docs := []dataset.Record{
		rec("1", "c", "q", "a"),
		rec("2", "c", "q", "a"),
		rec("3", "c", "q", "a"),
	}
	doc := docs[1]

	got := Exemplars(docs, doc, 2)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("Exemplars: got %v", got)
	}

	if got := Exemplars(docs, doc, 0); got != nil {
		t.Fatalf("k=0: got %v want nil", got)
	}
	if got := Exemplars(docs, doc, 10); len(got) != 2 {
		t.Fatalf("k=10: got %d exemplars want 2", len(got))
	}

	// Same inputs, same exemplars.
	again := Exemplars(docs, doc, 2)
	for i := range got {
		if got[i].ID != again[i].ID {
			t.Fatal("exemplar selection not deterministic")
		}
	}
}
