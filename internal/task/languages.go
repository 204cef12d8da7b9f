package task

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stellarlinkco/xquad-eval/internal/dataset"
)

// Language describes one XQuAD variant. The corpus is fully parallel: the
// variants differ only in which translation is loaded, so the table is the
// whole per-language configuration surface.
type Language struct {
	Code string
	Name string
}

var languages = []Language{
	{Code: "ar", Name: "Arabic"},
	{Code: "de", Name: "German"},
	{Code: "el", Name: "Greek"},
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "hi", Name: "Hindi"},
	{Code: "ru", Name: "Russian"},
	{Code: "th", Name: "Thai"},
	{Code: "tr", Name: "Turkish"},
	{Code: "vi", Name: "Vietnamese"},
	{Code: "zh", Name: "Chinese"},
}

// Languages returns the supported variants sorted by code.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Supported reports whether code names a known language variant.
func Supported(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// Options tune a language variant without repeating the per-language table.
type Options struct {
	DataDir      string
	Limit        int
	SaveExamples bool
}

// ForLanguage builds the task instance for one language code, wiring the
// matching dataset provider and the given scorer.
func ForLanguage(code string, scorer ScoreFunc, opts Options) (*QATask, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if !Supported(code) {
		return nil, fmt.Errorf("task: unsupported language %q (expected one of %s)", code, supportedCodes())
	}

	selector := "xquad." + code
	return New(Config{
		Language:     code,
		Selector:     selector,
		SaveExamples: opts.SaveExamples,
		Provider: &dataset.XQuADProvider{
			Selector: selector,
			Dir:      opts.DataDir,
			Limit:    opts.Limit,
		},
		Scorer: scorer,
	})
}

func supportedCodes() string {
	codes := make([]string, 0, len(languages))
	for _, l := range Languages() {
		codes = append(codes, l.Code)
	}
	return strings.Join(codes, "|")
}
