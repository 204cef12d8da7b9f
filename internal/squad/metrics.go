// Package squad scores extractive QA predictions against gold annotations
// with the SQuAD v2 metric family: exact match and token-level F1, their
// answerable/unanswerable-conditioned variants, and the best-threshold
// variants found by sweeping the no-answer-probability cutoff over the whole
// batch. The whole family is computed in one pass; callers pick the fields
// they declared.
package squad

import (
	"errors"
	"fmt"
	"sort"

	"github.com/stellarlinkco/xquad-eval/internal/task"
)

// NoAnswerThreshold is the fixed cutoff applied to the plain (non-best)
// metrics: predictions whose no-answer probability exceeds it are treated as
// abstentions. Probabilities never exceed 1, so the default keeps every
// generated span.
const NoAnswerThreshold = 1.0

// Evaluate is the scoring-service entry point consumed by the task adapter
// through the task.ScoreFunc contract.
func Evaluate(preds []task.Prediction, refs []task.Reference) (map[string]float64, error) {
	if len(preds) == 0 {
		return nil, errors.New("squad: empty batch")
	}
	if len(preds) != len(refs) {
		return nil, fmt.Errorf("squad: %d predictions vs %d references", len(preds), len(refs))
	}

	n := len(preds)
	qids := make([]string, 0, n)
	predText := make(map[string]string, n)
	naProb := make(map[string]float64, n)
	hasAns := make(map[string]bool, n)
	exactRaw := make(map[string]float64, n)
	f1Raw := make(map[string]float64, n)

	for i, p := range preds {
		r := refs[i]
		qid := p.ID
		if qid == "" {
			qid = r.ID
		}
		if qid == "" {
			return nil, fmt.Errorf("squad: pair %d has no id", i)
		}
		if r.ID != "" && p.ID != "" && r.ID != p.ID {
			return nil, fmt.Errorf("squad: pair %d id mismatch: prediction %q vs reference %q", i, p.ID, r.ID)
		}
		if _, dup := predText[qid]; dup {
			return nil, fmt.Errorf("squad: duplicate id %q", qid)
		}

		golds := goldAnswers(r.Answers.Text)
		// Answerable means the raw annotation carries spans; golds may still
		// collapse to [""] when every span normalizes to nothing.
		hasAns[qid] = len(r.Answers.Text) > 0

		var bestExact, bestF1 float64
		for _, g := range golds {
			if v := computeExact(g, p.PredictionText); v > bestExact {
				bestExact = v
			}
			if v := computeF1(g, p.PredictionText); v > bestF1 {
				bestF1 = v
			}
		}

		qids = append(qids, qid)
		predText[qid] = p.PredictionText
		naProb[qid] = p.NoAnswerProbability
		exactRaw[qid] = bestExact
		f1Raw[qid] = bestF1
	}

	exactThresh := applyNoAnsThreshold(exactRaw, naProb, hasAns, NoAnswerThreshold)
	f1Thresh := applyNoAnsThreshold(f1Raw, naProb, hasAns, NoAnswerThreshold)

	out := make(map[string]float64, 16)
	addEvalDict(out, "", qids, exactThresh, f1Thresh)

	var hasQids, noQids []string
	for _, qid := range qids {
		if hasAns[qid] {
			hasQids = append(hasQids, qid)
		} else {
			noQids = append(noQids, qid)
		}
	}
	if len(hasQids) > 0 {
		addEvalDict(out, "HasAns_", hasQids, exactThresh, f1Thresh)
	}
	if len(noQids) > 0 {
		addEvalDict(out, "NoAns_", noQids, exactThresh, f1Thresh)
	}

	bestExact, bestExactThresh := findBestThresh(qids, predText, exactRaw, naProb, hasAns)
	bestF1, bestF1Thresh := findBestThresh(qids, predText, f1Raw, naProb, hasAns)
	out["best_exact"] = bestExact
	out["best_exact_thresh"] = bestExactThresh
	out["best_f1"] = bestF1
	out["best_f1_thresh"] = bestF1Thresh

	return out, nil
}

// applyNoAnsThreshold replaces each score with the abstention outcome when
// the model's no-answer probability clears the threshold: credit if the gold
// is unanswerable, zero otherwise.
func applyNoAnsThreshold(scores, naProb map[string]float64, hasAns map[string]bool, threshold float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for qid, s := range scores {
		if naProb[qid] > threshold {
			if hasAns[qid] {
				out[qid] = 0
			} else {
				out[qid] = 1
			}
			continue
		}
		out[qid] = s
	}
	return out
}

func addEvalDict(out map[string]float64, prefix string, qids []string, exact, f1 map[string]float64) {
	var sumExact, sumF1 float64
	for _, qid := range qids {
		sumExact += exact[qid]
		sumF1 += f1[qid]
	}
	n := float64(len(qids))
	out[prefix+"exact"] = 100 * sumExact / n
	out[prefix+"f1"] = 100 * sumF1 / n
	out[prefix+"total"] = n
}

// findBestThresh sweeps candidate no-answer cutoffs in increasing
// probability order and returns the best achievable score with the cutoff
// that achieves it. Below the cutoff the raw span score counts; above it the
// prediction abstains, which scores 1 on unanswerable golds, 0 otherwise.
func findBestThresh(qids []string, predText map[string]string, scores, naProb map[string]float64, hasAns map[string]bool) (float64, float64) {
	numNoAns := 0
	for _, qid := range qids {
		if !hasAns[qid] {
			numNoAns++
		}
	}

	cur := float64(numNoAns)
	best := cur
	bestThresh := 0.0

	sorted := make([]string, len(qids))
	copy(sorted, qids)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if naProb[a] != naProb[b] {
			return naProb[a] < naProb[b]
		}
		return a < b
	})

	for _, qid := range sorted {
		var diff float64
		if hasAns[qid] {
			diff = scores[qid]
		} else if predText[qid] != "" {
			diff = -1
		}
		cur += diff
		if cur > best {
			best = cur
			bestThresh = naProb[qid]
		}
	}

	return 100 * best / float64(len(qids)), bestThresh
}
