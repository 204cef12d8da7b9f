package task

// UnanswerableContinuation is the literal continuation scored against the
// prompt to probe the model's implicit confidence that the question has no
// answer. The leading space matters: it is scored as a continuation token.
const UnanswerableContinuation = " unanswerable"

type RequestKind int

const (
	KindGeneration RequestKind = iota
	KindLikelihood
)

func (k RequestKind) String() string {
	switch k {
	case KindGeneration:
		return "generation"
	case KindLikelihood:
		return "likelihood"
	default:
		return "unknown"
	}
}

// GenerationRequest asks the backend to greedily continue Context until a
// stop sequence or MaxLength tokens.
type GenerationRequest struct {
	Context    string
	Stop       []string
	MaxLength  int
	NumFewshot int
}

// LikelihoodRequest asks the backend to score Continuation against Context,
// returning its total log-probability and whether it matches the greedy
// decode.
type LikelihoodRequest struct {
	Context      string
	Continuation string
}

// RunArgs carries harness-side bookkeeping into request construction.
type RunArgs struct {
	NumFewshot int
}

// Result is one request's outcome, tagged by the kind of request that
// produced it. Text is set for generation results; LogProb and IsGreedy for
// likelihood results.
type Result struct {
	Kind     RequestKind
	Text     string
	LogProb  float64
	IsGreedy bool
}
