package ownership

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ppiankov/ubotrace/internal/model"
)

// Result maps natural persons to their cumulative effective percentage.
// Entries keep the order in which each person was first reached.
type Result struct {
	holdings  *stakes
	omissions []model.Omission
}

func newResult() *Result {
	return &Result{holdings: orderedmap.New[string, float64]()}
}

func (r *Result) add(name string, pct float64) {
	current, _ := r.holdings.Get(name)
	r.holdings.Set(name, current+pct)
}

// Get returns the effective percentage held by name
func (r *Result) Get(name string) (float64, bool) {
	return r.holdings.Get(name)
}

// Len returns the number of natural persons in the result
func (r *Result) Len() int {
	return r.holdings.Len()
}

// Names returns the natural persons in first-seen order
func (r *Result) Names() []string {
	names := make([]string, 0, r.holdings.Len())
	for pair := r.holdings.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Stakes returns every entry in first-seen order
func (r *Result) Stakes() []Stake {
	return collect(r.holdings)
}

// Map returns an unordered copy of the result
func (r *Result) Map() map[string]float64 {
	m := make(map[string]float64, r.holdings.Len())
	for pair := r.holdings.Oldest(); pair != nil; pair = pair.Next() {
		m[pair.Key] = pair.Value
	}
	return m
}

// Ordered returns an ordered copy suitable for JSON output
func (r *Result) Ordered() *orderedmap.OrderedMap[string, float64] {
	out := orderedmap.New[string, float64]()
	for pair := r.holdings.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}
	return out
}

// Omissions returns the contributions dropped during resolution
func (r *Result) Omissions() []model.Omission {
	return append([]model.Omission(nil), r.omissions...)
}

// MarshalJSON encodes the result as a JSON object in first-seen order
func (r *Result) MarshalJSON() ([]byte, error) {
	return r.holdings.MarshalJSON()
}
