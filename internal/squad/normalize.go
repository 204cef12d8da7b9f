package squad

import (
	"regexp"
	"strings"
)

var articlesRe = regexp.MustCompile(`\b(a|an|the)\b`)

// asciiPunct mirrors the punctuation set stripped by the official SQuAD v2
// evaluation script. Deliberately ASCII-only: the reference implementation
// leaves non-Latin punctuation in place, and cross-language scores are only
// comparable if we do too.
const asciiPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// normalizeAnswer lowercases, strips punctuation and English articles, and
// collapses whitespace, matching the official SQuAD answer normalization.
func normalizeAnswer(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 128 && strings.ContainsRune(asciiPunct, r) {
			continue
		}
		b.WriteRune(r)
	}
	s = articlesRe.ReplaceAllString(b.String(), " ")

	return strings.Join(strings.Fields(s), " ")
}

func answerTokens(s string) []string {
	s = normalizeAnswer(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// goldAnswers returns the normalized non-empty gold spans, or the single
// empty string for a genuinely unanswerable record.
func goldAnswers(texts []string) []string {
	var out []string
	for _, t := range texts {
		if normalizeAnswer(t) != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

func computeExact(gold, pred string) float64 {
	if normalizeAnswer(gold) == normalizeAnswer(pred) {
		return 1
	}
	return 0
}

func computeF1(gold, pred string) float64 {
	goldToks := answerTokens(gold)
	predToks := answerTokens(pred)

	if len(goldToks) == 0 || len(predToks) == 0 {
		// Both empty means a correct no-answer prediction.
		if len(goldToks) == len(predToks) {
			return 1
		}
		return 0
	}

	counts := make(map[string]int, len(goldToks))
	for _, t := range goldToks {
		counts[t]++
	}
	common := 0
	for _, t := range predToks {
		if counts[t] > 0 {
			counts[t]--
			common++
		}
	}
	if common == 0 {
		return 0
	}

	precision := float64(common) / float64(len(predToks))
	recall := float64(common) / float64(len(goldToks))
	return 2 * precision * recall / (precision + recall)
}
