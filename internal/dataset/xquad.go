package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultDataDir = "data/xquad"

// XQuADProvider serves one language's parallel slice of the XQuAD validation
// set. Records are read from <dir>/<selector>.jsonl; the English variant
// falls back to a small embedded sample when no data file is present.
type XQuADProvider struct {
	// Selector is the dataset configuration name, e.g. "xquad.en".
	Selector string
	// Dir overrides the data directory (default XQUAD_EVAL_DATA_DIR, then
	// data/xquad).
	Dir string
	// Limit caps the number of records returned (0 = all).
	Limit int
}

type xquadRow struct {
	ID       string  `json:"id"`
	Context  string  `json:"context"`
	Question string  `json:"question"`
	Answers  Answers `json:"answers"`
}

func (p *XQuADProvider) Name() string { return strings.TrimSpace(p.Selector) }

func (p *XQuADProvider) Description() string {
	return "XQuAD cross-lingual extractive question answering (validation split)"
}

func (p *XQuADProvider) MetricSchemaVersion() int { return MetricSchemaVersion }

func (p *XQuADProvider) HasTrainingDocs() bool   { return false }
func (p *XQuADProvider) HasValidationDocs() bool { return true }
func (p *XQuADProvider) HasTestDocs() bool       { return false }

func (p *XQuADProvider) TrainingDocs(ctx context.Context) ([]Record, error) {
	return nil, errors.New("dataset: xquad has no training split")
}

func (p *XQuADProvider) TestDocs(ctx context.Context) ([]Record, error) {
	return nil, errors.New("dataset: xquad has no test split")
}

func (p *XQuADProvider) ValidationDocs(ctx context.Context) ([]Record, error) {
	if p == nil {
		return nil, errors.New("dataset: nil provider")
	}
	if ctx == nil {
		return nil, errors.New("dataset: nil context")
	}

	selector := strings.TrimSpace(p.Selector)
	if selector == "" {
		return nil, errors.New("dataset: empty selector")
	}

	dir := strings.TrimSpace(p.Dir)
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv("XQUAD_EVAL_DATA_DIR"))
	}
	if dir == "" {
		dir = defaultDataDir
	}
	path := filepath.Join(dir, selector+".jsonl")

	rows, err := readJSONL[xquadRow](ctx, path)
	if err != nil {
		if os.IsNotExist(err) && selector == "xquad.en" {
			return takeFirstN(defaultEnglishSample(), p.Limit), nil
		}
		return nil, fmt.Errorf("dataset: load %q: %w", path, err)
	}

	out := make([]Record, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		id := strings.TrimSpace(row.ID)
		if id == "" {
			id = fmt.Sprintf("%s-%d", selector, i+1)
		}
		if strings.TrimSpace(row.Question) == "" {
			continue
		}

		out = append(out, Record{
			ID:       id,
			Context:  row.Context,
			Question: row.Question,
			Answers:  row.Answers,
		})
	}

	out = takeFirstN(out, p.Limit)
	if len(out) == 0 {
		return nil, fmt.Errorf("dataset: no usable records in %q", path)
	}
	return out, nil
}

func defaultEnglishSample() []Record {
	return []Record{
		{
			ID:       "xquad.en-sample-1",
			Context:  "The Amazon rainforest covers most of the Amazon basin of South America. This basin encompasses 7,000,000 square kilometres, of which 5,500,000 square kilometres are covered by the rainforest.",
			Question: "How many square kilometres of the basin are covered by rainforest?",
			Answers:  Answers{Text: []string{"5,500,000 square kilometres", "5,500,000"}, AnswerStart: []int{153, 153}},
		},
		{
			ID:       "xquad.en-sample-2",
			Context:  "Paris is the capital and most populous city of France.",
			Question: "What is the capital of France?",
			Answers:  Answers{Text: []string{"Paris"}, AnswerStart: []int{0}},
		},
		{
			ID:       "xquad.en-sample-3",
			Context:  "The Rhine is a major European river, which has its sources in Switzerland and flows in a mostly northerly direction through Germany and the Netherlands.",
			Question: "Where does the Rhine have its sources?",
			Answers:  Answers{Text: []string{"Switzerland"}, AnswerStart: []int{56}},
		},
	}
}
