// Package fewshot assembles the prompt context a task receives. The task
// treats the result as an opaque string; everything about exemplar selection
// and templating lives here.
package fewshot

import (
	"strings"

	"github.com/stellarlinkco/xquad-eval/internal/dataset"
)

const description = "Answer each question using a span from the given background passage, or reply unanswerable if the passage does not contain the answer."

// DocToText renders one record as the prompt segment the model must
// continue.
func DocToText(rec dataset.Record) string {
	var sb strings.Builder
	sb.WriteString("Background: ")
	sb.WriteString(strings.TrimSpace(rec.Context))
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(strings.TrimSpace(rec.Question))
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

// DocToTarget renders the gold continuation for an exemplar: the first
// answer span, or the unanswerable marker. The leading space joins it to the
// "Answer:" prefix.
func DocToTarget(rec dataset.Record) string {
	for _, t := range rec.Answers.Text {
		if strings.TrimSpace(t) != "" {
			return " " + strings.TrimSpace(t)
		}
	}
	return " unanswerable"
}

// Context builds the full prompt prefix for doc: the task description, the
// exemplars as solved question/answer pairs, then the unanswered question.
func Context(exemplars []dataset.Record, doc dataset.Record) string {
	var sb strings.Builder
	sb.WriteString(description)
	sb.WriteString("\n\n")

	for _, ex := range exemplars {
		if ex.ID == doc.ID {
			continue
		}
		sb.WriteString(DocToText(ex))
		sb.WriteString(DocToTarget(ex))
		sb.WriteString("\n\n")
	}

	sb.WriteString(DocToText(doc))
	return sb.String()
}

// Exemplars picks up to k exemplar records for doc from the split,
// deterministically, never including doc itself.
func Exemplars(docs []dataset.Record, doc dataset.Record, k int) []dataset.Record {
	if k <= 0 {
		return nil
	}
	out := make([]dataset.Record, 0, k)
	for _, d := range docs {
		if d.ID == doc.ID {
			continue
		}
		out = append(out, d)
		if len(out) == k {
			break
		}
	}
	return out
}
