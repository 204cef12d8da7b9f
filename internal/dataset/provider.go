package dataset

import "context"

// MetricSchemaVersion is the version of the answer/metric record shape this
// package produces. Tasks pin a minimum version so they never score against
// records predating the no-answer-probability schema.
const MetricSchemaVersion = 2

type Answers struct {
	Text        []string `json:"text"`
	AnswerStart []int    `json:"answer_start"`
}

type Record struct {
	ID       string  `json:"id"`
	Context  string  `json:"context"`
	Question string  `json:"question"`
	Answers  Answers `json:"answers"`
}

// Provider exposes the evaluation records for one language variant.
type Provider interface {
	Name() string
	Description() string
	MetricSchemaVersion() int

	HasTrainingDocs() bool
	HasValidationDocs() bool
	HasTestDocs() bool

	TrainingDocs(ctx context.Context) ([]Record, error)
	ValidationDocs(ctx context.Context) ([]Record, error)
	TestDocs(ctx context.Context) ([]Record, error)
}

// HasAnswer reports whether the record's gold annotation contains at least
// one non-empty answer span. Records with no spans are genuinely
// unanswerable.
func (r Record) HasAnswer() bool {
	for _, t := range r.Answers.Text {
		if t != "" {
			return true
		}
	}
	return false
}
