package xcorr

import "github.com/ChrisMcGann/tidesearch/pkg/preprocess"

// Result is the score of one queue entry. Counter counts from the back of
// the queue: the entry at index i of a queue of n has counter n-i.
type Result struct {
	Score   int
	Counter int
}

// Index recovers the queue index of a result for a queue of size n.
func (r Result) Index(n int) int {
	return n - r.Counter
}

// Scorer scores every program of a queue against one cache.
type Scorer interface {
	ScoreQueue(cache *preprocess.PeakCache, programs []*Program, charge int, out []Result) []Result
}

// DotProduct scores programs one at a time with a plain loop.
type DotProduct struct{}

// ScoreQueue appends one result per program to out, in queue order.
func (DotProduct) ScoreQueue(cache *preprocess.PeakCache, programs []*Program, charge int, out []Result) []Result {
	n := len(programs)
	for i, prog := range programs {
		out = append(out, Result{Score: prog.Score(cache, charge), Counter: n - i})
	}
	return out
}
