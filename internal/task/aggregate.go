package task

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
)

// DefaultMetricNames is the closed metric-name set declared by every
// language variant: plain, answerable-conditioned, unanswerable-conditioned,
// and best-threshold exact/F1, plus the chosen thresholds themselves.
func DefaultMetricNames() []string {
	return []string{
		"exact",
		"f1",
		"HasAns_exact",
		"HasAns_f1",
		"NoAns_exact",
		"NoAns_f1",
		"best_exact",
		"best_exact_thresh",
		"best_f1",
		"best_f1_thresh",
	}
}

// Aggregation returns one aggregator per declared metric name. The scorer
// computes every sub-metric in a single pass over the batch, so the
// per-name aggregators all read from one memoized batch computation rather
// than re-invoking the scorer N times. Observable results are identical to
// calling the scorer per name.
func (t *QATask) Aggregation() map[string]AggregateFunc {
	out := make(map[string]AggregateFunc, len(t.cfg.MetricNames))
	for _, name := range t.cfg.MetricNames {
		name := name
		out[name] = func(pairs []Pair) (float64, error) {
			metrics, err := t.memo.score(t.cfg.Scorer, pairs)
			if err != nil {
				return 0, err
			}
			v, ok := metrics[name]
			if !ok {
				return 0, fmt.Errorf("task: scorer output missing metric %q", name)
			}
			return v, nil
		}
	}
	return out
}

// HigherIsBetter declares aggregation direction per metric. Every metric of
// this benchmark improves upward; the key set is identical to Aggregation's.
func (t *QATask) HigherIsBetter() map[string]bool {
	out := make(map[string]bool, len(t.cfg.MetricNames))
	for _, name := range t.cfg.MetricNames {
		out[name] = true
	}
	return out
}

// scoreMemo caches one batched scorer invocation per distinct batch so the
// per-metric aggregators share it within a split.
type scoreMemo struct {
	mu      sync.Mutex
	results map[uint64]map[string]float64
}

func newScoreMemo() *scoreMemo {
	return &scoreMemo{results: make(map[uint64]map[string]float64)}
}

func (m *scoreMemo) score(scorer ScoreFunc, pairs []Pair) (map[string]float64, error) {
	if scorer == nil {
		return nil, errors.New("task: nil scorer")
	}
	if len(pairs) == 0 {
		return nil, errors.New("task: empty batch")
	}

	key := batchKey(pairs)

	m.mu.Lock()
	cached, ok := m.results[key]
	m.mu.Unlock()
	if ok {
		return cached, nil
	}

	preds := make([]Prediction, len(pairs))
	refs := make([]Reference, len(pairs))
	for i, p := range pairs {
		preds[i] = p.Prediction
		refs[i] = p.Reference
	}

	metrics, err := scorer(preds, refs)
	if err != nil {
		return nil, fmt.Errorf("task: score batch: %w", err)
	}

	m.mu.Lock()
	m.results[key] = metrics
	m.mu.Unlock()
	return metrics, nil
}

func batchKey(pairs []Pair) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(pairs)))
	_, _ = h.Write(buf[:])
	for _, p := range pairs {
		_, _ = h.Write([]byte(p.Prediction.ID))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(p.Prediction.PredictionText))
		_, _ = h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.Prediction.NoAnswerProbability))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
